package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"clipforge/internal/analysis"
	"clipforge/internal/artifacts"
	"clipforge/internal/config"
	"clipforge/internal/ingest"
	"clipforge/internal/jobs"
	"clipforge/internal/media"
	"clipforge/internal/publish"
	"clipforge/internal/render"
	"clipforge/internal/selection"
	"clipforge/internal/services/analyze"
	"clipforge/internal/services/download"
	"clipforge/internal/services/embed"
	"clipforge/internal/services/metadata"
	"clipforge/internal/services/refine"
	"clipforge/internal/services/social"
	"clipforge/internal/services/whisper"
	"clipforge/internal/stage"
	"clipforge/internal/transcribe"
)

type stageRegistrar interface {
	Register(h stage.Handler) error
}

// registerStages wires every pipeline stage into the manager. Optional
// services (metadata lookup, refinement, classification) degrade to nil and
// their stages complete as no-ops or with reduced data.
func registerStages(ctx context.Context, reg stageRegistrar, cfg *config.Config,
	store *jobs.Store, logger *slog.Logger) error {
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key is required: the analyze and score stages call the model")
	}

	runner := media.NewRunner()
	tools := media.NewToolset(cfg.Media.FFmpegBinary, cfg.Media.FFprobeBinary, runner)
	llmClient := newLLMClient(cfg)
	analyzer := analyze.New(llmClient, cfg.LLM.AnalyzeModel)

	var fetcher ingest.MetadataFetcher
	if cfg.YouTube.APIKey != "" {
		svc, err := metadata.New(ctx, cfg.YouTube.APIKey)
		if err != nil {
			return fmt.Errorf("build metadata service: %w", err)
		}
		fetcher = svc
	}

	var refiner transcribe.Refiner
	if cfg.LLM.RefineEnabled {
		refiner = refine.New(llmClient, cfg.LLM.RefineModel, cfg.LLM.RefineMaxSegments)
	}

	var classifier analysis.Classifier
	if cfg.Embeddings.Enabled {
		svc, err := embed.New(cfg.Embeddings.Scheme, cfg.Embeddings.Host,
			cfg.Embeddings.APIKey, cfg.LLM.APIKey)
		if err != nil {
			return fmt.Errorf("build embeddings service: %w", err)
		}
		if err := svc.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("prepare embeddings schema: %w", err)
		}
		classifier = svc
	}

	engine := whisper.New(whisper.Config{
		Binary:         cfg.Whisper.Binary,
		Model:          cfg.Whisper.Model,
		WordTimestamps: cfg.Whisper.WordTimestamps,
		BeamSize:       cfg.Whisper.BeamSize,
		BestOf:         cfg.Whisper.BestOf,
		FP16:           cfg.Whisper.FP16,
	}, runner)

	publisher := social.New(cfg.Social.Endpoint, cfg.Social.Token,
		time.Duration(cfg.Social.TimeoutSeconds)*time.Second)
	library := artifacts.NewFilesystemStore(cfg.Paths.LibraryDir)
	mediaDir := cfg.Paths.MediaDir

	handlers := []stage.Handler{
		ingest.NewIngestHandler(store, fetcher, logger),
		ingest.NewDownloadHandler(store, download.New(), mediaDir, logger),
		ingest.NewNormalizeHandler(tools, mediaDir),
		transcribe.New(store, tools, engine, refiner, library, mediaDir, cfg.Whisper.MaxAudioSeconds, logger),
		analysis.NewAnalyzeHandler(store, analyzer),
		analysis.NewClassifyHandler(store, classifier, logger),
		selection.NewHandler(store, cfg.Selection.MinTargetClips,
			cfg.Selection.MaxTargetClips, cfg.Selection.OverlapThreshold),
		render.NewReframeHandler(store, tools, mediaDir),
		render.NewScoreHandler(store, analyzer, logger),
		render.NewCaptionHandler(store, tools, mediaDir),
		render.NewGenerateHandler(store, library, mediaDir),
		publish.New(store, publisher, logger),
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

func newLLMClient(cfg *config.Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.LLM.APIKey)
	if cfg.LLM.BaseURL != "" {
		clientCfg.BaseURL = cfg.LLM.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
