// Package publish sends finished clips to the distribution endpoint.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/services"
	"clipforge/internal/services/social"
)

// Publisher is the outbound surface the post stage needs.
type Publisher interface {
	Enabled() bool
	Publish(ctx context.Context, post social.Post) error
}

// Handler runs the post stage.
type Handler struct {
	store     *jobs.Store
	publisher Publisher
	logger    *slog.Logger
}

// New builds the handler.
func New(store *jobs.Store, publisher Publisher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{store: store, publisher: publisher, logger: logger}
}

func (h *Handler) Name() string        { return "post" }
func (h *Handler) Status() jobs.Status { return jobs.StatusPosting }

func (h *Handler) Execute(ctx context.Context, job *jobs.Job) error {
	if h.publisher == nil || !h.publisher.Enabled() {
		h.logger.Info("publishing disabled, completing without posts",
			logging.String(logging.FieldJobID, job.ID))
		return nil
	}

	clips, err := h.store.ListSelectedClips(ctx, job.VideoID)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return services.Wrap(services.ErrDataQuality, "post", "load clips",
			fmt.Sprintf("no selected clips for video %s", job.VideoID), nil)
	}

	for _, clip := range clips {
		if clip.ArtifactPath == "" {
			return services.Wrap(services.ErrDataQuality, "post", "check artifact",
				fmt.Sprintf("clip %s has no rendered artifact", clip.ID), nil)
		}
		err := h.publisher.Publish(ctx, social.Post{
			VideoID:      clip.VideoID,
			ClipID:       clip.ID,
			OrgID:        job.OrgID,
			Title:        clip.Title,
			ArtifactPath: clip.ArtifactPath,
			Score:        clip.Score,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
