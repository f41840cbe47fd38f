// Package render holds the output stages that turn selected spans into
// deliverable vertical clips: cutting and reframing, score adjustment,
// caption burning, and final artifact generation.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"clipforge/internal/artifacts"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

// ReframeHandler cuts each selected span out of the normalized video and
// converts it to the vertical delivery frame.
type ReframeHandler struct {
	store    *jobs.Store
	tools    *media.Toolset
	mediaDir string
}

// NewReframeHandler builds the handler.
func NewReframeHandler(store *jobs.Store, tools *media.Toolset, mediaDir string) *ReframeHandler {
	return &ReframeHandler{store: store, tools: tools, mediaDir: mediaDir}
}

func (h *ReframeHandler) Name() string        { return "reframe" }
func (h *ReframeHandler) Status() jobs.Status { return jobs.StatusReframing }

func (h *ReframeHandler) Execute(ctx context.Context, job *jobs.Job) error {
	clips, err := loadClips(ctx, h.store, job, "reframe")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(media.ClipDir(h.mediaDir, job.VideoID), 0o755); err != nil {
		return fmt.Errorf("create clip directory: %w", err)
	}

	source := media.NormalizedPath(h.mediaDir, job.VideoID)
	for _, clip := range clips {
		cut := media.ClipPath(h.mediaDir, job.VideoID, clip.ID, "cut")
		if err := h.tools.Cut(ctx, source, cut, clip.Start, clip.End); err != nil {
			return err
		}
		vertical := media.ClipPath(h.mediaDir, job.VideoID, clip.ID, "vertical")
		if err := h.tools.Reframe(ctx, cut, vertical); err != nil {
			return err
		}
	}
	return nil
}

// Scorer re-ranks selected clips, writing adjusted scores in place.
type Scorer interface {
	Score(ctx context.Context, clips []jobs.SelectedClip, transcript *jobs.Transcript) error
}

// ScoreHandler applies adjusted scores and re-ranks the clip set.
type ScoreHandler struct {
	store  *jobs.Store
	scorer Scorer
	logger *slog.Logger
}

// NewScoreHandler builds the handler. A nil scorer leaves ranks untouched.
func NewScoreHandler(store *jobs.Store, scorer Scorer, logger *slog.Logger) *ScoreHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ScoreHandler{store: store, scorer: scorer, logger: logger}
}

func (h *ScoreHandler) Name() string        { return "score" }
func (h *ScoreHandler) Status() jobs.Status { return jobs.StatusScoring }

func (h *ScoreHandler) Execute(ctx context.Context, job *jobs.Job) error {
	if h.scorer == nil {
		return nil
	}
	clips, err := loadClips(ctx, h.store, job, "score")
	if err != nil {
		return err
	}
	transcript, err := h.store.GetTranscript(ctx, job.VideoID)
	if err != nil {
		return err
	}

	if err := h.scorer.Score(ctx, clips, transcript); err != nil {
		return err
	}

	// Re-rank by the adjusted scores; ties keep their previous order.
	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].Score > clips[j].Score
	})
	for i := range clips {
		clips[i].Rank = i + 1
	}
	return h.store.ReplaceSelectedClips(ctx, job.ID, clips)
}

// CaptionHandler writes per-clip SRT files and burns them into the
// vertical clips.
type CaptionHandler struct {
	store    *jobs.Store
	tools    *media.Toolset
	mediaDir string
}

// NewCaptionHandler builds the handler.
func NewCaptionHandler(store *jobs.Store, tools *media.Toolset, mediaDir string) *CaptionHandler {
	return &CaptionHandler{store: store, tools: tools, mediaDir: mediaDir}
}

func (h *CaptionHandler) Name() string        { return "caption" }
func (h *CaptionHandler) Status() jobs.Status { return jobs.StatusCaptioning }

func (h *CaptionHandler) Execute(ctx context.Context, job *jobs.Job) error {
	clips, err := loadClips(ctx, h.store, job, "caption")
	if err != nil {
		return err
	}
	transcript, err := h.store.GetTranscript(ctx, job.VideoID)
	if err != nil {
		return err
	}
	if transcript == nil {
		return services.Wrap(services.ErrDataQuality, "caption", "load transcript",
			fmt.Sprintf("no transcript for video %s", job.VideoID), nil)
	}

	for _, clip := range clips {
		srtPath := media.ClipSRTPath(h.mediaDir, job.VideoID, clip.ID)
		if err := writeClipSRT(srtPath, transcript, clip); err != nil {
			return err
		}
		vertical := media.ClipPath(h.mediaDir, job.VideoID, clip.ID, "vertical")
		captioned := media.ClipPath(h.mediaDir, job.VideoID, clip.ID, "captioned")
		if err := h.tools.BurnSubtitles(ctx, vertical, srtPath, captioned); err != nil {
			return err
		}
	}
	return nil
}

// GenerateHandler moves the finished clips into the artifact library and
// records their paths.
type GenerateHandler struct {
	store     *jobs.Store
	artifacts artifacts.Store
	mediaDir  string
}

// NewGenerateHandler builds the handler.
func NewGenerateHandler(store *jobs.Store, artifactStore artifacts.Store, mediaDir string) *GenerateHandler {
	return &GenerateHandler{store: store, artifacts: artifactStore, mediaDir: mediaDir}
}

func (h *GenerateHandler) Name() string        { return "clip" }
func (h *GenerateHandler) Status() jobs.Status { return jobs.StatusGenerating }

func (h *GenerateHandler) Execute(ctx context.Context, job *jobs.Job) error {
	clips, err := loadClips(ctx, h.store, job, "clip")
	if err != nil {
		return err
	}
	for _, clip := range clips {
		captioned := media.ClipPath(h.mediaDir, job.VideoID, clip.ID, "captioned")
		stored, err := h.artifacts.Upload(ctx, captioned, job.OrgID, job.VideoID)
		if err != nil {
			return err
		}
		if err := h.store.SetClipArtifact(ctx, clip.ID, stored); err != nil {
			return err
		}
	}
	return nil
}

func loadClips(ctx context.Context, store *jobs.Store, job *jobs.Job, stage string) ([]jobs.SelectedClip, error) {
	clips, err := store.ListSelectedClips(ctx, job.VideoID)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, services.Wrap(services.ErrDataQuality, stage, "load clips",
			fmt.Sprintf("no selected clips for video %s", job.VideoID), nil)
	}
	return clips, nil
}

// writeClipSRT renders the transcript segments overlapping a clip, shifted
// so captions start at the clip's first frame.
func writeClipSRT(path string, transcript *jobs.Transcript, clip jobs.SelectedClip) error {
	var within []jobs.Segment
	for _, seg := range transcript.Segments {
		if seg.End <= clip.Start || seg.Start >= clip.End {
			continue
		}
		within = append(within, seg)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := media.WriteSRT(file, within, clip.Start); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
