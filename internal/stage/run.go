package stage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/queue"
	"clipforge/internal/retry"
	"clipforge/internal/services"
	"clipforge/internal/status"
)

// Options wires one stage execution.
type Options struct {
	Store     *jobs.Store
	Status    status.Store
	StatusTTL time.Duration
	Broker    *queue.Broker
	Retry     *retry.Controller
	Notifier  *notifications.Service
	Logger    *slog.Logger

	Handler Handler
	Task    *queue.Task

	// NextStage is the stage to enqueue on success; empty for the final
	// stage.
	NextStage string
	// NextStatus is the status the job advances to on success.
	NextStatus jobs.Status
}

// Outcome reports how an execution ended.
type Outcome int

const (
	// OutcomeSkipped means the job was gone or already terminal.
	OutcomeSkipped Outcome = iota
	// OutcomeSucceeded means the stage finished and the job advanced.
	OutcomeSucceeded
	// OutcomeRetrying means the stage failed and a delayed retry is queued.
	OutcomeRetrying
	// OutcomeFailed means the job reached the failed terminal status.
	OutcomeFailed
)

// Run executes one leased task through its handler, honoring the status
// ladder and the retry policy. Infrastructure errors (store or broker
// unavailable) come back as errors; stage failures are absorbed into the
// outcome so the caller still acknowledges the task.
func Run(ctx context.Context, opts Options) (Outcome, error) {
	name := opts.Handler.Name()
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(
		logging.String(logging.FieldJobID, opts.Task.JobID),
		logging.String(logging.FieldStage, name),
		logging.String(logging.FieldQueue, opts.Task.Queue),
	)
	ctx = services.WithJobID(ctx, opts.Task.JobID)
	ctx = services.WithStage(ctx, name)

	job, err := opts.Store.GetJob(ctx, opts.Task.JobID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		logger.Warn("task references missing job, dropping")
		return OutcomeSkipped, nil
	}
	if job.Status.IsTerminal() {
		logger.Info("job already terminal, dropping task",
			logging.String("status", string(job.Status)))
		return OutcomeSkipped, nil
	}

	checkpoint := Checkpoint(name)
	running := opts.Handler.Status()
	if job.Status != running {
		applied, err := opts.Store.TransitionStatus(ctx, job.ID, job.Status, running, name, checkpoint)
		if err != nil {
			return OutcomeSkipped, fmt.Errorf("enter stage: %w", err)
		}
		if !applied {
			// Another worker moved the job; re-read and bail if it left
			// our window.
			fresh, err := opts.Store.GetJob(ctx, job.ID)
			if err != nil || fresh == nil || fresh.Status != running {
				logger.Warn("lost status race, dropping task")
				return OutcomeSkipped, err
			}
			job = fresh
		} else {
			job.Status = running
			job.Progress = checkpoint
		}
	}
	publishStatus(ctx, opts, status.Record{
		JobID:    job.ID,
		Status:   string(running),
		Progress: checkpoint,
	})

	logger.Info("stage started", logging.Int("attempt", opts.Task.Attempt))
	start := time.Now()
	execErr := opts.Handler.Execute(ctx, job)
	elapsed := time.Since(start)

	if execErr == nil {
		return succeed(ctx, opts, job, logger, elapsed)
	}
	return fail(ctx, opts, job, logger, execErr)
}

func succeed(ctx context.Context, opts Options, job *jobs.Job, logger *slog.Logger, elapsed time.Duration) (Outcome, error) {
	name := opts.Handler.Name()
	nextStatus := opts.NextStatus
	progress := Checkpoint(opts.NextStage)
	if nextStatus == jobs.StatusCompleted {
		progress = 100
	}

	if err := opts.Store.RecordStageSuccess(ctx, job.ID, name, nextStatus, progress); err != nil {
		return OutcomeSucceeded, fmt.Errorf("record success: %w", err)
	}
	publishStatus(ctx, opts, status.Record{
		JobID:    job.ID,
		Status:   string(nextStatus),
		Progress: progress,
	})

	if opts.NextStage != "" {
		q := queue.Route(opts.NextStage, job.Tier)
		if _, err := opts.Broker.Enqueue(ctx, job.ID, opts.NextStage, q, 0, 0); err != nil {
			return OutcomeSucceeded, fmt.Errorf("enqueue next stage: %w", err)
		}
	} else if opts.Notifier != nil {
		clips, err := opts.Store.ListSelectedClips(ctx, job.VideoID)
		if err != nil {
			logger.Warn("clip count unavailable for notification", logging.Error(err))
		}
		opts.Notifier.JobCompleted(ctx, job.ID, job.VideoID, len(clips))
	}

	logger.Info("stage finished",
		logging.Duration("elapsed", elapsed),
		logging.String("next_status", string(nextStatus)))
	return OutcomeSucceeded, nil
}

func fail(ctx context.Context, opts Options, job *jobs.Job, logger *slog.Logger, execErr error) (Outcome, error) {
	name := opts.Handler.Name()
	decision := opts.Retry.Decide(name, opts.Task.Attempt, execErr)

	if decision.Retry {
		q := queue.Route(name, job.Tier)
		if _, err := opts.Broker.Enqueue(ctx, job.ID, name, q, opts.Task.Attempt+1, decision.Delay); err != nil {
			return OutcomeRetrying, fmt.Errorf("enqueue retry: %w", err)
		}
		logger.Warn("stage failed, retrying",
			logging.Error(execErr),
			logging.Int("attempt", opts.Task.Attempt),
			logging.Duration("delay", decision.Delay))
		return OutcomeRetrying, nil
	}

	message := services.Message(execErr)
	if err := opts.Store.MarkFailed(ctx, job.ID, message); err != nil {
		return OutcomeFailed, fmt.Errorf("mark failed: %w", err)
	}
	if err := opts.Broker.DeleteForJob(ctx, job.ID); err != nil {
		logger.Warn("stale tasks not cleared", logging.Error(err))
	}
	publishStatus(ctx, opts, status.Record{
		JobID:    job.ID,
		Status:   string(jobs.StatusFailed),
		Progress: job.Progress,
		Error:    message,
	})
	if opts.Notifier != nil {
		opts.Notifier.JobFailed(ctx, job.ID, name, message)
	}
	logger.Error("stage failed terminally",
		logging.Error(execErr),
		logging.Int("attempt", opts.Task.Attempt))
	return OutcomeFailed, nil
}

func publishStatus(ctx context.Context, opts Options, rec status.Record) {
	if opts.Status == nil {
		return
	}
	rec.UpdatedAt = time.Now().Unix()
	if err := opts.Status.Set(ctx, rec, opts.StatusTTL); err != nil {
		logger := opts.Logger
		if logger == nil {
			return
		}
		logger.Warn("status publish failed",
			logging.String(logging.FieldJobID, rec.JobID),
			logging.Error(err))
	}
}
