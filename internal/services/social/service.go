// Package social publishes finished clips to the configured distribution
// endpoint.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"clipforge/internal/services"
)

// Post is one clip publication request.
type Post struct {
	VideoID      string  `json:"video_id"`
	ClipID       string  `json:"clip_id"`
	OrgID        string  `json:"org_id"`
	Title        string  `json:"title"`
	ArtifactPath string  `json:"artifact_path"`
	Score        float64 `json:"score"`
}

// Service publishes posts over HTTP with bearer auth.
type Service struct {
	endpoint string
	token    string
	client   *http.Client
}

// New builds a Service. An empty endpoint disables publishing; Publish
// becomes a no-op so the stage still completes.
func New(endpoint, token string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an endpoint is configured.
func (s *Service) Enabled() bool {
	return s.endpoint != ""
}

// Publish sends one post. Server errors are transient; client errors are
// not worth retrying.
func (s *Service) Publish(ctx context.Context, post Post) error {
	if !s.Enabled() {
		return nil
	}

	payload, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("encode post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "post", "publish", post.ClipID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := fmt.Sprintf("clip %s: %s: %s", post.ClipID, resp.Status, bytes.TrimSpace(body))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return services.Wrap(services.ErrTransient, "post", "publish", detail, nil)
	}
	return services.Wrap(services.ErrValidation, "post", "publish", detail, nil)
}
