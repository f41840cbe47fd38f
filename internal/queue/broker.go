package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timeLayout = time.RFC3339Nano

// Task is a unit of queued work: one stage execution for one job.
type Task struct {
	ID          int64
	JobID       string
	Stage       string
	Queue       string
	Priority    int
	Attempt     int
	AvailableAt time.Time
}

// Broker is a sqlite-backed task queue. Tasks are leased rather than
// dequeued: a worker holds a lease while executing and acknowledges only
// after the stage finishes, so a crash mid-stage returns the task to the
// pool when the lease expires. Workers lease one task at a time.
type Broker struct {
	db    *sql.DB
	clock func() time.Time
}

// NewBroker wraps an already-open database that carries the tasks table.
func NewBroker(db *sql.DB) *Broker {
	return &Broker{db: db, clock: time.Now}
}

// Enqueue adds a task, optionally delayed. Returns the task id.
func (b *Broker) Enqueue(ctx context.Context, jobID, stage string, q Queue, attempt int, delay time.Duration) (int64, error) {
	now := b.clock().UTC()
	res, err := b.db.ExecContext(ctx, `
		INSERT INTO tasks (job_id, stage, queue, priority, attempt, available_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jobID, stage, q.Name, q.Priority, attempt,
		now.Add(delay).Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("enqueue %s for job %s: %w", q.Name, jobID, err)
	}
	return res.LastInsertId()
}

// Lease claims the highest priority ready task and holds it for leaseFor.
// Returns (nil, nil) when nothing is ready.
func (b *Broker) Lease(ctx context.Context, leaseFor time.Duration) (*Task, error) {
	now := b.clock().UTC()
	nowStr := now.Format(timeLayout)

	for {
		var task Task
		var availableAt string
		err := b.db.QueryRowContext(ctx, `
			SELECT id, job_id, stage, queue, priority, attempt, available_at
			FROM tasks
			WHERE available_at <= ? AND (leased_until IS NULL OR leased_until < ?)
			ORDER BY priority DESC, available_at ASC, id ASC
			LIMIT 1`, nowStr, nowStr).
			Scan(&task.ID, &task.JobID, &task.Stage, &task.Queue, &task.Priority, &task.Attempt, &availableAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select ready task: %w", err)
		}

		res, err := b.db.ExecContext(ctx, `
			UPDATE tasks SET leased_until = ?
			WHERE id = ? AND (leased_until IS NULL OR leased_until < ?)`,
			now.Add(leaseFor).Format(timeLayout), task.ID, nowStr)
		if err != nil {
			return nil, fmt.Errorf("lease task %d: %w", task.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 1 {
			task.AvailableAt, _ = time.Parse(timeLayout, availableAt)
			return &task, nil
		}
		// Another worker claimed it between select and update. Try again.
	}
}

// Ack removes a finished task. Called only after the stage result is
// persisted, never before execution.
func (b *Broker) Ack(ctx context.Context, taskID int64) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("ack task %d: %w", taskID, err)
	}
	return nil
}

// ExtendLease pushes the lease deadline for a long-running task.
func (b *Broker) ExtendLease(ctx context.Context, taskID int64, leaseFor time.Duration) error {
	_, err := b.db.ExecContext(ctx, `UPDATE tasks SET leased_until = ? WHERE id = ?`,
		b.clock().UTC().Add(leaseFor).Format(timeLayout), taskID)
	if err != nil {
		return fmt.Errorf("extend lease for task %d: %w", taskID, err)
	}
	return nil
}

// ReclaimExpired clears leases whose holders went silent, returning the
// tasks to the ready pool. Returns the number reclaimed.
func (b *Broker) ReclaimExpired(ctx context.Context) (int64, error) {
	res, err := b.db.ExecContext(ctx, `
		UPDATE tasks SET leased_until = NULL
		WHERE leased_until IS NOT NULL AND leased_until < ?`,
		b.clock().UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("reclaim expired leases: %w", err)
	}
	return res.RowsAffected()
}

// PendingAhead estimates how many ready tasks would be leased before the
// given job's oldest task. Used for the advisory queue position in status
// records; returns (0, false) when the job has no queued task.
func (b *Broker) PendingAhead(ctx context.Context, jobID string) (int, bool, error) {
	nowStr := b.clock().UTC().Format(timeLayout)

	var priority int
	var availableAt string
	var id int64
	err := b.db.QueryRowContext(ctx, `
		SELECT id, priority, available_at FROM tasks
		WHERE job_id = ? AND (leased_until IS NULL OR leased_until < ?)
		ORDER BY available_at ASC LIMIT 1`, jobID, nowStr).
		Scan(&id, &priority, &availableAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find task for job %s: %w", jobID, err)
	}

	var ahead int
	err = b.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE available_at <= ? AND (leased_until IS NULL OR leased_until < ?)
			AND (priority > ? OR (priority = ? AND available_at < ?)
				OR (priority = ? AND available_at = ? AND id < ?))`,
		nowStr, nowStr, priority, priority, availableAt, priority, availableAt, id).
		Scan(&ahead)
	if err != nil {
		return 0, false, fmt.Errorf("count tasks ahead of job %s: %w", jobID, err)
	}
	return ahead, true, nil
}

// DeleteForJob removes any queued tasks for a job, used when a job reaches
// a terminal status with work still enqueued.
func (b *Broker) DeleteForJob(ctx context.Context, jobID string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM tasks WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("delete tasks for job %s: %w", jobID, err)
	}
	return nil
}
