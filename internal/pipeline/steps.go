package pipeline

import "clipforge/internal/jobs"

// Step pairs a stage name with the job status shown while it runs. The
// analyze and classify stages share a status; every other stage owns one.
type Step struct {
	Stage  string
	Status jobs.Status
}

// Steps is the pipeline in execution order.
var Steps = []Step{
	{"ingest", jobs.StatusPending},
	{"download", jobs.StatusDownloading},
	{"normalize", jobs.StatusNormalizing},
	{"transcribe", jobs.StatusTranscribing},
	{"analyze", jobs.StatusAnalyzing},
	{"classify", jobs.StatusAnalyzing},
	{"select", jobs.StatusSelecting},
	{"reframe", jobs.StatusReframing},
	{"score", jobs.StatusScoring},
	{"caption", jobs.StatusCaptioning},
	{"clip", jobs.StatusGenerating},
	{"post", jobs.StatusPosting},
}

// FirstStage is where newly created jobs enter the pipeline.
const FirstStage = "ingest"

// Next returns the stage that follows and the status the job advances to
// when the given stage succeeds. The final stage returns an empty next
// stage and the completed status. Unknown stages return ok false.
func Next(stage string) (nextStage string, nextStatus jobs.Status, ok bool) {
	for i, step := range Steps {
		if step.Stage != stage {
			continue
		}
		if i+1 < len(Steps) {
			return Steps[i+1].Stage, Steps[i+1].Status, true
		}
		return "", jobs.StatusCompleted, true
	}
	return "", "", false
}

// StatusFor returns the in-flight status for a stage.
func StatusFor(stage string) (jobs.Status, bool) {
	for _, step := range Steps {
		if step.Stage == stage {
			return step.Status, true
		}
	}
	return "", false
}
