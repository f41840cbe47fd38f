// Package notifications sends job lifecycle events to an ntfy topic.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"clipforge/internal/logging"
)

const ntfyBaseURL = "https://ntfy.sh/"

// Service publishes push notifications. An empty topic makes every call a
// no-op, so callers never need to branch on configuration.
type Service struct {
	topic  string
	client *http.Client
	logger *slog.Logger
}

// New builds a Service.
func New(topic string, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		topic:  topic,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// JobCompleted announces a finished pipeline run.
func (s *Service) JobCompleted(ctx context.Context, jobID, videoID string, clipCount int) {
	s.publish(ctx, "Pipeline complete",
		fmt.Sprintf("Video %s produced %d clips (job %s)", videoID, clipCount, jobID),
		"3", "white_check_mark")
}

// JobFailed announces a terminal failure.
func (s *Service) JobFailed(ctx context.Context, jobID, stage, reason string) {
	s.publish(ctx, "Pipeline failed",
		fmt.Sprintf("Job %s failed at %s: %s", jobID, stage, reason),
		"4", "rotating_light")
}

// publish posts the message. Notification failures are logged and
// swallowed; they must never affect the pipeline.
func (s *Service) publish(ctx context.Context, title, message, priority, tags string) {
	if s.topic == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		ntfyBaseURL+s.topic, strings.NewReader(message))
	if err != nil {
		s.logger.Warn("notification request build failed", logging.Error(err))
		return
	}
	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("notification send failed", logging.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.logger.Warn("notification rejected",
			logging.String("status", resp.Status))
	}
}
