package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/daemon"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/notifications"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/retry"
	"clipforge/internal/status"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CLIPFORGE_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "clipforged.log"),
		},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := jobs.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("open job store: %v", err)
	}
	broker := queue.NewBroker(store.DB())

	var statusStore status.Store
	if cfg.Redis.Addr != "" {
		redisStore, err := status.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("connect status store: %v", err)
		}
		statusStore = redisStore
	} else {
		logger.Warn("no redis address configured, status records stay in process")
		statusStore = status.NewMemoryStore()
	}

	statusTTL := time.Duration(cfg.Redis.StatusTTLSeconds) * time.Second
	notifier := notifications.New(cfg.Notifications.NtfyTopic,
		time.Duration(cfg.Notifications.RequestTimeout)*time.Second, logger)

	manager := pipeline.NewManager(pipeline.ManagerConfig{
		Workers:            cfg.Workflow.Workers,
		PollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		ErrorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		TaskTimeLimit:      time.Duration(cfg.Workflow.TaskTimeLimit) * time.Second,
		LeaseTimeout:       time.Duration(cfg.Workflow.LeaseTimeout) * time.Second,
		CronInterval:       time.Duration(cfg.Workflow.CronInterval) * time.Second,
		CompletedRetention: time.Duration(cfg.Workflow.CompletedRetention) * time.Second,
		StatusTTL:          statusTTL,
	}, store, broker, statusStore, retry.NewController(retry.DefaultPolicies()), notifier, logger)

	if err := registerStages(ctx, manager, cfg, store, logger); err != nil {
		log.Fatalf("register stages: %v", err)
	}

	server := api.NewServer(api.Options{
		Store:          store,
		Broker:         broker,
		Submitter:      manager,
		Status:         statusStore,
		StatusTTL:      statusTTL,
		StreamTimeout:  time.Duration(cfg.Workflow.StatusStreamTimeout) * time.Second,
		StreamInterval: time.Duration(cfg.Workflow.StatusPollInterval) * time.Second,
		Logger:         logger,
	})

	d, err := daemon.New(cfg, store, manager, server, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("clipforged shutting down")
}
