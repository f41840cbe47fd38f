// Package ingest holds the pipeline's intake stages: source validation and
// metadata lookup, video download, and normalization into the canonical
// working format.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/services"
	"clipforge/internal/services/download"
	"clipforge/internal/services/metadata"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// MetadataFetcher is the lookup surface the ingest stage needs.
type MetadataFetcher interface {
	Fetch(ctx context.Context, videoID string) (*metadata.Metadata, error)
}

// IngestHandler validates the job and records source metadata for the
// stages that need the video duration and title.
type IngestHandler struct {
	store    *jobs.Store
	metadata MetadataFetcher
	logger   *slog.Logger
}

// NewIngestHandler builds the handler. metadata may be nil when no API key
// is configured; duration then stays unknown until download.
func NewIngestHandler(store *jobs.Store, fetcher MetadataFetcher, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &IngestHandler{store: store, metadata: fetcher, logger: logger}
}

func (h *IngestHandler) Name() string        { return "ingest" }
func (h *IngestHandler) Status() jobs.Status { return jobs.StatusPending }

func (h *IngestHandler) Execute(ctx context.Context, job *jobs.Job) error {
	if !videoIDPattern.MatchString(job.VideoID) {
		return services.Wrap(services.ErrValidation, "ingest", "validate",
			fmt.Sprintf("malformed video id %q", job.VideoID), nil)
	}
	if job.OrgID == "" {
		return services.Wrap(services.ErrValidation, "ingest", "validate",
			"job has no organization", nil)
	}

	if h.metadata == nil {
		return nil
	}
	md, err := h.metadata.Fetch(ctx, job.VideoID)
	if err != nil {
		return err
	}
	job.Configuration["source_title"] = md.Title
	job.Configuration["source_channel"] = md.ChannelTitle
	if md.DurationSeconds > 0 {
		job.Configuration["source_duration"] = md.DurationSeconds
	}
	return h.store.UpdateConfiguration(ctx, job.ID, job.Configuration)
}

// Downloader is the fetch surface the download stage needs.
type Downloader interface {
	Fetch(ctx context.Context, videoID, destDir string) (*download.Result, error)
}

// DownloadHandler fetches the source video into the media directory.
type DownloadHandler struct {
	store      *jobs.Store
	downloader Downloader
	mediaDir   string
	logger     *slog.Logger
}

// NewDownloadHandler builds the handler.
func NewDownloadHandler(store *jobs.Store, downloader Downloader, mediaDir string, logger *slog.Logger) *DownloadHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DownloadHandler{store: store, downloader: downloader, mediaDir: mediaDir, logger: logger}
}

func (h *DownloadHandler) Name() string        { return "download" }
func (h *DownloadHandler) Status() jobs.Status { return jobs.StatusDownloading }

func (h *DownloadHandler) Execute(ctx context.Context, job *jobs.Job) error {
	path := media.SourcePath(h.mediaDir, job.VideoID)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		h.logger.Info("source already downloaded",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("path", path))
		return nil
	}

	result, err := h.downloader.Fetch(ctx, job.VideoID, h.mediaDir)
	if err != nil {
		return err
	}

	// The download may be the first place the true duration shows up.
	changed := false
	if _, ok := job.Configuration["source_title"]; !ok && result.Title != "" {
		job.Configuration["source_title"] = result.Title
		changed = true
	}
	if _, ok := job.Configuration["source_duration"]; !ok && result.DurationSeconds > 0 {
		job.Configuration["source_duration"] = result.DurationSeconds
		changed = true
	}
	if changed {
		return h.store.UpdateConfiguration(ctx, job.ID, job.Configuration)
	}
	return nil
}

// NormalizeHandler re-encodes the source into the canonical mp4 every
// later ffmpeg invocation assumes.
type NormalizeHandler struct {
	tools    *media.Toolset
	mediaDir string
}

// NewNormalizeHandler builds the handler.
func NewNormalizeHandler(tools *media.Toolset, mediaDir string) *NormalizeHandler {
	return &NormalizeHandler{tools: tools, mediaDir: mediaDir}
}

func (h *NormalizeHandler) Name() string        { return "normalize" }
func (h *NormalizeHandler) Status() jobs.Status { return jobs.StatusNormalizing }

func (h *NormalizeHandler) Execute(ctx context.Context, job *jobs.Job) error {
	source := media.SourcePath(h.mediaDir, job.VideoID)
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrNotFound, "normalize", "stat source",
			fmt.Sprintf("source video missing at %s", source), err)
	}
	return h.tools.Normalize(ctx, source, media.NormalizedPath(h.mediaDir, job.VideoID))
}
