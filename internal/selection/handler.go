package selection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"clipforge/internal/jobs"
	"clipforge/internal/services"
)

// Handler is the pipeline stage around the engine: it resolves per-job
// bounds, runs Select, and persists the chosen clips.
type Handler struct {
	store            *jobs.Store
	minTargetClips   int
	maxTargetClips   int
	overlapThreshold float64
}

// NewHandler builds the stage.
func NewHandler(store *jobs.Store, minTargetClips, maxTargetClips int, overlapThreshold float64) *Handler {
	return &Handler{
		store:            store,
		minTargetClips:   minTargetClips,
		maxTargetClips:   maxTargetClips,
		overlapThreshold: overlapThreshold,
	}
}

func (h *Handler) Name() string        { return "select" }
func (h *Handler) Status() jobs.Status { return jobs.StatusSelecting }

func (h *Handler) Execute(ctx context.Context, job *jobs.Job) error {
	payload, err := h.store.GetCandidates(ctx, job.VideoID)
	if err != nil {
		return err
	}
	if payload == nil {
		return services.Wrap(services.ErrDataQuality, "select", "load candidates",
			fmt.Sprintf("no candidates for video %s", job.VideoID), nil)
	}

	var candidates []Candidate
	if err := json.Unmarshal(payload, &candidates); err != nil {
		return services.Wrap(services.ErrDataQuality, "select", "decode candidates",
			fmt.Sprintf("video %s", job.VideoID), err)
	}
	if len(candidates) == 0 {
		return services.Wrap(services.ErrDataQuality, "select", "load candidates",
			fmt.Sprintf("analysis produced zero candidates for video %s", job.VideoID), nil)
	}

	cfg := h.configFor(job)
	clips := Select(candidates, cfg)
	if len(clips) == 0 {
		return services.Wrap(services.ErrDataQuality, "select", "select clips",
			fmt.Sprintf("no clip survived selection for video %s", job.VideoID), nil)
	}

	selected := make([]jobs.SelectedClip, 0, len(clips))
	for i, clip := range clips {
		selected = append(selected, jobs.SelectedClip{
			ID:      uuid.NewString(),
			VideoID: job.VideoID,
			JobID:   job.ID,
			Rank:    i + 1,
			Start:   clip.Start,
			End:     clip.End,
			Score:   clip.Score,
			Title:   clip.Title,
			Reason:  clip.Reason,
		})
	}
	return h.store.ReplaceSelectedClips(ctx, job.ID, selected)
}

// configFor resolves the per-job selection config from the job's
// configuration map and the instance defaults.
func (h *Handler) configFor(job *jobs.Job) Config {
	maxRaw, maxOK := job.ConfigFloat("max_clip_duration", "maxDuration")
	minRaw, minOK := job.ConfigFloat("min_clip_duration", "minDuration")
	minDuration, maxDuration := DurationBounds(maxRaw, maxOK, minRaw, minOK)

	videoDuration, _ := job.ConfigFloat("source_duration")
	target := TargetClips(videoDuration, maxDuration, h.minTargetClips, h.maxTargetClips)

	cfg := Config{
		MinDuration:      minDuration,
		MaxDuration:      maxDuration,
		TargetClips:      target,
		OverlapThreshold: h.overlapThreshold,
		MinTargetClips:   h.minTargetClips,
		MaxTargetClips:   h.maxTargetClips,
	}
	if minScore, ok := job.ConfigFloat("min_score", "minScore"); ok {
		cfg.MinScore = minScore
	}
	return cfg
}
