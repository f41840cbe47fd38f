package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/jobs"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	store, err := jobs.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewBroker(store.DB())
}

func TestLeaseHonorsPriority(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	if _, err := broker.Enqueue(ctx, "job-starter", "download", Route("download", jobs.TierStarter), 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := broker.Enqueue(ctx, "job-business", "download", Route("download", jobs.TierBusiness), 0, 0); err != nil {
		t.Fatal(err)
	}

	task, err := broker.Lease(ctx, time.Minute)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if task == nil || task.JobID != "job-business" {
		t.Fatalf("leased %+v, want business job first", task)
	}

	task, err = broker.Lease(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if task == nil || task.JobID != "job-starter" {
		t.Fatalf("leased %+v, want starter job second", task)
	}

	task, err = broker.Lease(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if task != nil {
		t.Fatalf("leased %+v from drained queue", task)
	}
}

func TestDelayedTaskNotVisibleEarly(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	now := time.Now()
	broker.clock = func() time.Time { return now }

	if _, err := broker.Enqueue(ctx, "job-1", "transcribe", Route("transcribe", jobs.TierStarter), 1, 30*time.Second); err != nil {
		t.Fatal(err)
	}

	task, err := broker.Lease(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if task != nil {
		t.Fatalf("delayed task leased early: %+v", task)
	}

	now = now.Add(31 * time.Second)
	task, err = broker.Lease(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if task == nil || task.Attempt != 1 {
		t.Fatalf("delayed task not visible after delay: %+v", task)
	}
}

func TestAckRemovesTask(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	id, err := broker.Enqueue(ctx, "job-1", "analyze", Route("analyze", jobs.TierStarter), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	task, err := broker.Lease(ctx, time.Minute)
	if err != nil || task == nil {
		t.Fatalf("lease: %+v %v", task, err)
	}
	if task.ID != id {
		t.Fatalf("leased id %d, want %d", task.ID, id)
	}
	if err := broker.Ack(ctx, task.ID); err != nil {
		t.Fatal(err)
	}
	if again, _ := broker.Lease(ctx, time.Minute); again != nil {
		t.Fatalf("acked task leased again: %+v", again)
	}
}

func TestExpiredLeaseReclaimed(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	now := time.Now()
	broker.clock = func() time.Time { return now }

	if _, err := broker.Enqueue(ctx, "job-1", "reframe", Route("reframe", jobs.TierStarter), 0, 0); err != nil {
		t.Fatal(err)
	}
	if task, _ := broker.Lease(ctx, time.Minute); task == nil {
		t.Fatal("initial lease failed")
	}

	// Lease held: invisible to other workers.
	if task, _ := broker.Lease(ctx, time.Minute); task != nil {
		t.Fatalf("leased task visible to second worker: %+v", task)
	}

	now = now.Add(2 * time.Minute)
	reclaimed, err := broker.ReclaimExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if reclaimed != 1 {
		t.Errorf("reclaimed = %d, want 1", reclaimed)
	}
	if task, _ := broker.Lease(ctx, time.Minute); task == nil {
		t.Fatal("reclaimed task not leasable")
	}
}

func TestPendingAhead(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	if _, err := broker.Enqueue(ctx, "job-a", "download", Route("download", jobs.TierBusiness), 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := broker.Enqueue(ctx, "job-b", "download", Route("download", jobs.TierStarter), 0, 0); err != nil {
		t.Fatal(err)
	}

	ahead, ok, err := broker.PendingAhead(ctx, "job-b")
	if err != nil || !ok {
		t.Fatalf("PendingAhead: ok=%v err=%v", ok, err)
	}
	if ahead != 1 {
		t.Errorf("ahead = %d, want 1", ahead)
	}

	ahead, ok, err = broker.PendingAhead(ctx, "job-a")
	if err != nil || !ok {
		t.Fatal(err)
	}
	if ahead != 0 {
		t.Errorf("ahead = %d, want 0 for highest priority", ahead)
	}

	if _, ok, _ = broker.PendingAhead(ctx, "job-absent"); ok {
		t.Error("PendingAhead reported a task for an absent job")
	}
}
