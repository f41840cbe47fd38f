// Package api exposes the HTTP surface of the daemon: job submission,
// job and clip lookups, and a server-sent status stream for progress UIs.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/status"
)

// Submitter enqueues a freshly created job for processing.
type Submitter interface {
	Submit(ctx context.Context, job *jobs.Job) error
}

// Options wires the server's collaborators.
type Options struct {
	Store     *jobs.Store
	Broker    *queue.Broker
	Submitter Submitter
	Status    status.Store
	StatusTTL time.Duration

	// StreamTimeout bounds how long a single SSE connection may stay open.
	StreamTimeout time.Duration
	// StreamInterval is the status poll cadence for SSE connections.
	StreamInterval time.Duration

	Logger *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	echo *echo.Echo
	opts Options
}

// NewServer builds the server and registers its routes.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 10 * time.Minute
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, opts: opts}

	e.GET("/health", s.health)
	e.POST("/api/jobs", s.submitJob)
	e.GET("/api/jobs/:id", s.getJob)
	e.GET("/api/jobs/:id/status", s.streamStatus)
	e.GET("/api/videos/:id/clips", s.listClips)

	return s
}

// Start serves on the given address until Shutdown.
func (s *Server) Start(bind string) error {
	err := s.echo.Start(bind)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

type submitRequest struct {
	VideoID       string         `json:"video_id"`
	OrgID         string         `json:"org_id"`
	Tier          string         `json:"tier"`
	Configuration map[string]any `json:"configuration"`
}

type jobResponse struct {
	ID                 string `json:"id"`
	VideoID            string `json:"video_id"`
	OrgID              string `json:"org_id"`
	Tier               string `json:"tier"`
	Status             string `json:"status"`
	CurrentStep        string `json:"current_step,omitempty"`
	LastSuccessfulStep string `json:"last_successful_step,omitempty"`
	Progress           int    `json:"progress"`
	ErrorMessage       string `json:"error_message,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

func toJobResponse(job *jobs.Job) jobResponse {
	return jobResponse{
		ID:                 job.ID,
		VideoID:            job.VideoID,
		OrgID:              job.OrgID,
		Tier:               string(job.Tier),
		Status:             string(job.Status),
		CurrentStep:        job.CurrentStep,
		LastSuccessfulStep: job.LastSuccessfulStep,
		Progress:           job.Progress,
		ErrorMessage:       job.ErrorMessage,
		CreatedAt:          job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          job.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) submitJob(c echo.Context) error {
	ctx := c.Request().Context()

	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.VideoID == "" || req.OrgID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "video_id and org_id are required"})
	}
	tier := jobs.PlanTier(req.Tier)
	if req.Tier == "" {
		tier = jobs.TierStarter
	}
	if !tier.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown tier %q", req.Tier)})
	}

	job := jobs.NewJob(req.VideoID, req.OrgID, tier, req.Configuration)
	if err := s.opts.Store.CreateJob(ctx, job); err != nil {
		s.opts.Logger.Error("job create failed", logging.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create job"})
	}
	if err := s.opts.Submitter.Submit(ctx, job); err != nil {
		s.opts.Logger.Error("job submit failed",
			logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not enqueue job"})
	}

	rec := status.Record{
		JobID:     job.ID,
		Status:    string(job.Status),
		UpdatedAt: time.Now().Unix(),
	}
	if err := s.opts.Status.Set(ctx, rec, s.opts.StatusTTL); err != nil {
		s.opts.Logger.Warn("initial status publish failed",
			logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}

	return c.JSON(http.StatusAccepted, toJobResponse(job))
}

func (s *Server) getJob(c echo.Context) error {
	ctx := c.Request().Context()
	job, err := s.opts.Store.GetJob(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	return c.JSON(http.StatusOK, toJobResponse(job))
}

func (s *Server) listClips(c echo.Context) error {
	ctx := c.Request().Context()
	clips, err := s.opts.Store.ListSelectedClips(ctx, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if clips == nil {
		clips = []jobs.SelectedClip{}
	}
	return c.JSON(http.StatusOK, clips)
}

// streamStatus emits the job's status as server-sent events, polling until
// the job reaches a terminal state, the stream timeout passes, or the client
// goes away.
func (s *Server) streamStatus(c echo.Context) error {
	jobID := c.Param("id")
	ctx := c.Request().Context()

	rec, found, err := s.snapshot(ctx, jobID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	if err := writeEvent(resp, rec); err != nil {
		return nil
	}
	if terminal(rec.Status) {
		return nil
	}

	deadline := time.NewTimer(s.opts.StreamTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.opts.StreamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-ticker.C:
		}

		next, found, err := s.snapshot(ctx, jobID)
		if err != nil || !found {
			continue
		}
		if sameRecord(next, rec) {
			continue
		}
		rec = next
		if err := writeEvent(resp, rec); err != nil {
			return nil
		}
		if terminal(rec.Status) {
			return nil
		}
	}
}

// snapshot prefers the ephemeral status store and falls back to the durable
// job row. Queue position is advisory and only attached for pending jobs.
func (s *Server) snapshot(ctx context.Context, jobID string) (status.Record, bool, error) {
	if rec, ok, err := s.opts.Status.Get(ctx, jobID); err == nil && ok {
		return rec, true, nil
	}

	job, err := s.opts.Store.GetJob(ctx, jobID)
	if err != nil {
		return status.Record{}, false, err
	}
	if job == nil {
		return status.Record{}, false, nil
	}
	rec := status.Record{
		JobID:     job.ID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Error:     job.ErrorMessage,
		UpdatedAt: job.UpdatedAt.Unix(),
	}
	if job.Status == jobs.StatusPending && s.opts.Broker != nil {
		if ahead, ok, err := s.opts.Broker.PendingAhead(ctx, jobID); err == nil && ok {
			rec.QueuePosition = &ahead
		}
	}
	return rec, true, nil
}

func terminal(s string) bool {
	return jobs.Status(s).IsTerminal()
}

// sameRecord ignores UpdatedAt so an unchanged job does not re-emit on every
// status store refresh.
func sameRecord(a, b status.Record) bool {
	if a.Status != b.Status || a.Progress != b.Progress || a.Error != b.Error {
		return false
	}
	switch {
	case a.QueuePosition == nil && b.QueuePosition == nil:
		return true
	case a.QueuePosition == nil || b.QueuePosition == nil:
		return false
	default:
		return *a.QueuePosition == *b.QueuePosition
	}
}

func writeEvent(resp *echo.Response, rec status.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
