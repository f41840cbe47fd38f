package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/queue"
	"clipforge/internal/retry"
	"clipforge/internal/stage"
	"clipforge/internal/status"
)

// ManagerConfig carries the daemon timing knobs.
type ManagerConfig struct {
	Workers            int
	PollInterval       time.Duration
	ErrorRetryInterval time.Duration
	TaskTimeLimit      time.Duration
	LeaseTimeout       time.Duration
	CronInterval       time.Duration
	CompletedRetention time.Duration
	StatusTTL          time.Duration
}

// Manager runs the worker pool that drains the broker and a maintenance
// loop that reclaims abandoned leases and prunes old terminal jobs.
type Manager struct {
	cfg      ManagerConfig
	store    *jobs.Store
	broker   *queue.Broker
	status   status.Store
	retries  *retry.Controller
	notifier *notifications.Service
	logger   *slog.Logger

	handlers map[string]stage.Handler

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a Manager. Handlers are registered before Start.
func NewManager(cfg ManagerConfig, store *jobs.Store, broker *queue.Broker,
	statusStore status.Store, retries *retry.Controller,
	notifier *notifications.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		broker:   broker,
		status:   statusStore,
		retries:  retries,
		notifier: notifier,
		logger:   logger,
		handlers: make(map[string]stage.Handler),
	}
}

// Register adds a stage handler. Registering twice for a stage is a
// programming error.
func (m *Manager) Register(h stage.Handler) error {
	if _, exists := m.handlers[h.Name()]; exists {
		return fmt.Errorf("stage %s registered twice", h.Name())
	}
	m.handlers[h.Name()] = h
	return nil
}

// Submit creates the job's first task. The job row must already exist.
func (m *Manager) Submit(ctx context.Context, job *jobs.Job) error {
	q := queue.Route(FirstStage, job.Tier)
	if _, err := m.broker.Enqueue(ctx, job.ID, FirstStage, q, 0, 0); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Start launches the worker pool and maintenance loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go func(worker int) {
			defer m.wg.Done()
			m.workerLoop(runCtx, worker)
		}(i)
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.maintenanceLoop(runCtx)
	}()

	m.logger.Info("pipeline manager started",
		logging.Int("workers", m.cfg.Workers))
}

// Stop halts the loops and waits for in-flight stages to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.logger.Info("pipeline manager stopped")
}

func (m *Manager) workerLoop(ctx context.Context, worker int) {
	logger := m.logger.With(logging.Int("worker", worker))
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		task, err := m.broker.Lease(ctx, m.cfg.LeaseTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("lease failed", logging.Error(err))
			sleepCtx(ctx, m.cfg.ErrorRetryInterval)
			continue
		}
		if task == nil {
			continue
		}
		m.process(ctx, logger, task)
	}
}

func (m *Manager) process(ctx context.Context, logger *slog.Logger, task *queue.Task) {
	handler, ok := m.handlers[task.Stage]
	if !ok {
		logger.Error("no handler for stage, dropping task",
			logging.String(logging.FieldStage, task.Stage),
			logging.String(logging.FieldJobID, task.JobID))
		if err := m.broker.Ack(ctx, task.ID); err != nil {
			logger.Error("ack failed", logging.Error(err))
		}
		return
	}

	nextStage, nextStatus, ok := Next(task.Stage)
	if !ok {
		logger.Error("stage missing from pipeline order",
			logging.String(logging.FieldStage, task.Stage))
		return
	}

	// The wall clock ceiling bounds a single execution, not the job.
	execCtx, cancel := context.WithTimeout(ctx, m.cfg.TaskTimeLimit)
	_, err := stage.Run(execCtx, stage.Options{
		Store:      m.store,
		Status:     m.status,
		StatusTTL:  m.cfg.StatusTTL,
		Broker:     m.broker,
		Retry:      m.retries,
		Notifier:   m.notifier,
		Logger:     logger,
		Handler:    handler,
		Task:       task,
		NextStage:  nextStage,
		NextStatus: nextStatus,
	})
	cancel()

	if err != nil {
		// Infrastructure failure: keep the lease so the task redelivers
		// after expiry.
		logger.Error("stage runner error, task will redeliver",
			logging.String(logging.FieldJobID, task.JobID),
			logging.String(logging.FieldStage, task.Stage),
			logging.Error(err))
		return
	}
	if err := m.broker.Ack(context.WithoutCancel(ctx), task.ID); err != nil {
		logger.Error("ack failed", logging.Error(err))
	}
}

func (m *Manager) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CronInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if reclaimed, err := m.broker.ReclaimExpired(ctx); err != nil {
			if ctx.Err() == nil {
				m.logger.Error("lease reclaim failed", logging.Error(err))
			}
		} else if reclaimed > 0 {
			m.logger.Warn("reclaimed abandoned leases",
				logging.Int64("count", reclaimed))
		}

		if removed, err := m.store.PruneTerminal(ctx, m.cfg.CompletedRetention); err != nil {
			if ctx.Err() == nil {
				m.logger.Error("terminal job prune failed", logging.Error(err))
			}
		} else if removed > 0 {
			m.logger.Info("pruned terminal jobs",
				logging.Int64("count", removed))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
