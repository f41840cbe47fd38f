package pipeline

import (
	"testing"

	"clipforge/internal/jobs"
)

func TestNextWalksFullPipeline(t *testing.T) {
	stage := FirstStage
	seen := map[string]bool{}
	for i := 0; i < len(Steps); i++ {
		if seen[stage] {
			t.Fatalf("stage %s visited twice", stage)
		}
		seen[stage] = true

		next, nextStatus, ok := Next(stage)
		if !ok {
			t.Fatalf("Next(%s) not found", stage)
		}
		if next == "" {
			if nextStatus != jobs.StatusCompleted {
				t.Errorf("final stage advances to %s, want completed", nextStatus)
			}
			if i != len(Steps)-1 {
				t.Errorf("pipeline ended early at %s", stage)
			}
			return
		}
		stage = next
	}
	t.Fatal("pipeline never terminated")
}

func TestNextUnknownStage(t *testing.T) {
	if _, _, ok := Next("mystery"); ok {
		t.Error("unknown stage resolved")
	}
}

func TestStatusForEveryStageIsValid(t *testing.T) {
	for _, step := range Steps {
		status, ok := StatusFor(step.Stage)
		if !ok {
			t.Errorf("StatusFor(%s) missing", step.Stage)
			continue
		}
		if !status.Valid() || status.IsTerminal() {
			t.Errorf("stage %s has unusable status %s", step.Stage, status)
		}
	}
}

func TestAnalyzeAndClassifyShareStatus(t *testing.T) {
	analyzeStatus, _ := StatusFor("analyze")
	classifyStatus, _ := StatusFor("classify")
	if analyzeStatus != classifyStatus {
		t.Errorf("analyze %s != classify %s", analyzeStatus, classifyStatus)
	}
}
