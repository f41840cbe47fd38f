// Package whisper runs the external speech-to-text engine as a subprocess
// and parses its JSON output into transcript segments.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clipforge/internal/jobs"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

// Config carries the engine invocation settings.
type Config struct {
	Binary         string
	Model          string
	WordTimestamps bool
	BeamSize       int
	BestOf         int
	FP16           bool
}

// Result is a parsed transcription. Confidence is the mean per-word
// recognition score, zero when the engine emitted no word timings.
type Result struct {
	Language   string
	Text       string
	Segments   []jobs.Segment
	Confidence float64
}

// Service invokes the whisper binary.
type Service struct {
	cfg    Config
	runner media.Runner
}

// New builds a Service. A nil runner gets the os/exec default.
func New(cfg Config, runner media.Runner) *Service {
	if runner == nil {
		runner = media.NewRunner()
	}
	return &Service{cfg: cfg, runner: runner}
}

// Args builds the engine command line for one audio file.
func (s *Service) Args(audioPath, outputDir string) []string {
	args := []string{
		audioPath,
		"--model", s.cfg.Model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--beam_size", strconv.Itoa(s.cfg.BeamSize),
		"--best_of", strconv.Itoa(s.cfg.BestOf),
		"--word_timestamps", pythonBool(s.cfg.WordTimestamps),
		"--fp16", pythonBool(s.cfg.FP16),
	}
	return args
}

// Transcribe runs the engine on an extracted audio file and parses the JSON
// it writes next to outputDir. The audio must already be mono 16kHz PCM.
func (s *Service) Transcribe(ctx context.Context, audioPath, outputDir string) (*Result, error) {
	if _, err := s.runner.Run(ctx, s.cfg.Binary, s.Args(audioPath, outputDir)...); err != nil {
		return nil, err
	}

	jsonPath := outputJSONPath(audioPath, outputDir)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "read output",
			fmt.Sprintf("engine produced no output at %s", jsonPath), err)
	}

	result, err := ParseOutput(data)
	if err != nil {
		return nil, err
	}
	if len(result.Segments) == 0 {
		return nil, services.Wrap(services.ErrDataQuality, "transcribe", "parse output",
			"transcription produced no segments", nil)
	}
	return result, nil
}

// engineOutput mirrors the whisper JSON schema.
type engineOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Score float64 `json:"score"`
		} `json:"words"`
	} `json:"segments"`
}

// ParseOutput decodes the engine's JSON document.
func ParseOutput(data []byte) (*Result, error) {
	var raw engineOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "parse output",
			"malformed engine JSON", err)
	}

	result := &Result{
		Language: raw.Language,
		Text:     strings.TrimSpace(raw.Text),
	}
	var scoreSum float64
	var scored int
	for i, seg := range raw.Segments {
		segment := jobs.Segment{
			Index: i,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
		for _, w := range seg.Words {
			segment.Words = append(segment.Words, jobs.Word{
				Start:      w.Start,
				End:        w.End,
				Word:       strings.TrimSpace(w.Word),
				Confidence: w.Score,
			})
			scoreSum += w.Score
			scored++
		}
		result.Segments = append(result.Segments, segment)
	}
	if scored > 0 {
		result.Confidence = scoreSum / float64(scored)
	}
	return result, nil
}

func outputJSONPath(audioPath, outputDir string) string {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return filepath.Join(outputDir, base+".json")
}

func pythonBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
