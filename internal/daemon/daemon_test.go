package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/jobs"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/retry"
	"clipforge/internal/status"
)

func newTestDaemon(t *testing.T, dataDir string) *Daemon {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.DataDir = dataDir
	cfg.Paths.APIBind = "127.0.0.1:0"

	store, err := jobs.Open(filepath.Join(dataDir, "pipeline.db"))
	if err != nil {
		t.Fatal(err)
	}

	broker := queue.NewBroker(store.DB())
	statusStore := status.NewMemoryStore()
	manager := pipeline.NewManager(pipeline.ManagerConfig{
		Workers:            1,
		PollInterval:       10 * time.Millisecond,
		ErrorRetryInterval: 10 * time.Millisecond,
		TaskTimeLimit:      time.Second,
		LeaseTimeout:       time.Second,
		CronInterval:       time.Second,
		CompletedRetention: time.Hour,
		StatusTTL:          time.Minute,
	}, store, broker, statusStore, retry.NewController(nil), nil, nil)

	server := api.NewServer(api.Options{
		Store:     store,
		Broker:    broker,
		Submitter: manager,
		Status:    statusStore,
		StatusTTL: time.Minute,
	})

	d, err := New(cfg, store, manager, server, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	d := newTestDaemon(t, dir)
	defer d.Close()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start should refuse")
	}
	d.Stop()

	// A fresh start after Stop reacquires the lock.
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	dir := t.TempDir()
	first := newTestDaemon(t, dir)
	defer first.Close()
	second := newTestDaemon(t, dir)
	defer second.Close()

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(context.Background())
	if err == nil {
		t.Fatal("second instance should be rejected by the lock")
	}
}
