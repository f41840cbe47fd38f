// Package transcribe turns the normalized video into a persisted
// transcript: audio extraction, speech-to-text, optional text refinement,
// and caption artifacts.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"clipforge/internal/artifacts"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/services"
	"clipforge/internal/services/whisper"
)

// Engine is the speech-to-text surface.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, outputDir string) (*whisper.Result, error)
}

// Refiner cleans up transcript text. Implementations must return the
// original segments when they fail.
type Refiner interface {
	Refine(ctx context.Context, segments []jobs.Segment) ([]jobs.Segment, error)
}

// Handler runs the transcription stage.
type Handler struct {
	store           *jobs.Store
	tools           *media.Toolset
	engine          Engine
	refiner         Refiner
	library         artifacts.Store
	mediaDir        string
	maxAudioSeconds int
	logger          *slog.Logger
}

// New builds the handler. refiner may be nil when refinement is disabled.
func New(store *jobs.Store, tools *media.Toolset, engine Engine, refiner Refiner,
	library artifacts.Store, mediaDir string, maxAudioSeconds int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		store:           store,
		tools:           tools,
		engine:          engine,
		refiner:         refiner,
		library:         library,
		mediaDir:        mediaDir,
		maxAudioSeconds: maxAudioSeconds,
		logger:          logger,
	}
}

func (h *Handler) Name() string        { return "transcribe" }
func (h *Handler) Status() jobs.Status { return jobs.StatusTranscribing }

func (h *Handler) Execute(ctx context.Context, job *jobs.Job) error {
	source := media.NormalizedPath(h.mediaDir, job.VideoID)
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrNotFound, "transcribe", "stat source",
			fmt.Sprintf("normalized video missing at %s", source), err)
	}

	// All intermediates live in one scoped directory so a failure at any
	// point leaves nothing behind.
	workDir, err := os.MkdirTemp("", "transcribe-"+job.VideoID+"-")
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, job.VideoID+".wav")
	if err := h.tools.ExtractAudio(ctx, source, audioPath, h.maxAudioSeconds); err != nil {
		return err
	}

	result, err := h.engine.Transcribe(ctx, audioPath, workDir)
	if err != nil {
		return err
	}

	segments := result.Segments
	refined := false
	if h.refiner != nil {
		cleaned, refineErr := h.refiner.Refine(ctx, segments)
		if refineErr != nil {
			// Refinement is best effort; the raw transcript is still good.
			h.logger.Warn("transcript refinement failed, keeping raw text",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(refineErr))
		} else {
			segments = cleaned
			refined = true
		}
	}

	transcript := &jobs.Transcript{
		VideoID:    job.VideoID,
		Language:   result.Language,
		Text:       joinSegments(segments),
		Segments:   segments,
		Refined:    refined,
		Confidence: result.Confidence,
	}

	storagePath, err := h.uploadTranscript(ctx, workDir, job, transcript)
	if err != nil {
		return err
	}
	transcript.StoragePath = storagePath

	if err := h.store.UpsertTranscript(ctx, transcript); err != nil {
		return err
	}
	return h.writeArtifacts(job.VideoID, transcript)
}

// uploadTranscript puts the transcript JSON into the library and returns
// the stored path, recorded on the row so readers can find the artifact.
func (h *Handler) uploadTranscript(ctx context.Context, workDir string, job *jobs.Job, transcript *jobs.Transcript) (string, error) {
	payload, err := json.Marshal(transcript)
	if err != nil {
		return "", fmt.Errorf("encode transcript for video %s: %w", job.VideoID, err)
	}
	localPath := filepath.Join(workDir, job.VideoID+"_transcript.json")
	if err := os.WriteFile(localPath, payload, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", localPath, err)
	}
	storagePath, err := h.library.Upload(ctx, localPath, job.OrgID, job.VideoID)
	if err != nil {
		return "", fmt.Errorf("upload transcript for video %s: %w", job.VideoID, err)
	}
	return storagePath, nil
}

// writeArtifacts leaves the SRT and plaintext transcript next to the
// media files for the API and caption stage.
func (h *Handler) writeArtifacts(videoID string, transcript *jobs.Transcript) error {
	srtPath := media.TranscriptSRTPath(h.mediaDir, videoID)
	srtFile, err := os.Create(srtPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", srtPath, err)
	}
	if err := media.WriteSRT(srtFile, transcript.Segments, 0); err != nil {
		srtFile.Close()
		return err
	}
	if err := srtFile.Close(); err != nil {
		return fmt.Errorf("close %s: %w", srtPath, err)
	}

	textPath := media.TranscriptTextPath(h.mediaDir, videoID)
	if err := os.WriteFile(textPath, []byte(transcript.Text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", textPath, err)
	}
	return nil
}

func joinSegments(segments []jobs.Segment) string {
	var out []byte
	for i, seg := range segments {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, seg.Text...)
	}
	return string(out)
}
