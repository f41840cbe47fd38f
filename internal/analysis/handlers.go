// Package analysis holds the semantic stages: candidate discovery from the
// transcript and content classification against the embedding index.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/selection"
	"clipforge/internal/services"
)

// CandidateFinder proposes clip spans from a transcript.
type CandidateFinder interface {
	Candidates(ctx context.Context, transcript *jobs.Transcript, videoDuration float64) ([]selection.Candidate, error)
}

// AnalyzeHandler runs candidate discovery and persists the result for the
// selection stage.
type AnalyzeHandler struct {
	store  *jobs.Store
	finder CandidateFinder
}

// NewAnalyzeHandler builds the handler.
func NewAnalyzeHandler(store *jobs.Store, finder CandidateFinder) *AnalyzeHandler {
	return &AnalyzeHandler{store: store, finder: finder}
}

func (h *AnalyzeHandler) Name() string        { return "analyze" }
func (h *AnalyzeHandler) Status() jobs.Status { return jobs.StatusAnalyzing }

func (h *AnalyzeHandler) Execute(ctx context.Context, job *jobs.Job) error {
	transcript, err := h.store.GetTranscript(ctx, job.VideoID)
	if err != nil {
		return err
	}
	if transcript == nil || len(transcript.Segments) == 0 {
		return services.Wrap(services.ErrDataQuality, "analyze", "load transcript",
			fmt.Sprintf("no transcript for video %s", job.VideoID), nil)
	}

	duration, _ := job.ConfigFloat("source_duration")
	candidates, err := h.finder.Candidates(ctx, transcript, duration)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	return h.store.ReplaceCandidates(ctx, job.VideoID, payload)
}

// Classifier is the embedding index surface the classify stage needs.
type Classifier interface {
	IndexSegments(ctx context.Context, videoID string, segments []jobs.Segment) error
	Classify(ctx context.Context, text string) (string, error)
}

// ClassifyHandler indexes the transcript and tags the job with its nearest
// content category.
type ClassifyHandler struct {
	store      *jobs.Store
	classifier Classifier
	logger     *slog.Logger
}

// NewClassifyHandler builds the handler. A nil classifier disables the
// stage; it completes without touching the job.
func NewClassifyHandler(store *jobs.Store, classifier Classifier, logger *slog.Logger) *ClassifyHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ClassifyHandler{store: store, classifier: classifier, logger: logger}
}

func (h *ClassifyHandler) Name() string        { return "classify" }
func (h *ClassifyHandler) Status() jobs.Status { return jobs.StatusAnalyzing }

func (h *ClassifyHandler) Execute(ctx context.Context, job *jobs.Job) error {
	if h.classifier == nil {
		return nil
	}

	transcript, err := h.store.GetTranscript(ctx, job.VideoID)
	if err != nil {
		return err
	}
	if transcript == nil {
		return services.Wrap(services.ErrDataQuality, "classify", "load transcript",
			fmt.Sprintf("no transcript for video %s", job.VideoID), nil)
	}

	if err := h.classifier.IndexSegments(ctx, job.VideoID, transcript.Segments); err != nil {
		return err
	}

	category, err := h.classifier.Classify(ctx, excerpt(transcript.Text, 1000))
	if err != nil {
		return err
	}
	job.Configuration["category"] = category
	return h.store.UpdateConfiguration(ctx, job.ID, job.Configuration)
}

func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
