package config

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "~/.local/share/clipforge"
	}
	if c.Paths.MediaDir == "" {
		c.Paths.MediaDir = "~/.local/share/clipforge/media"
	}
	if c.Paths.LibraryDir == "" {
		c.Paths.LibraryDir = "~/.local/share/clipforge/library"
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = "~/.local/share/clipforge/logs"
	}
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = "127.0.0.1:7733"
	}

	if c.Redis.StatusTTLSeconds <= 0 {
		c.Redis.StatusTTLSeconds = 3600
	}

	if c.Whisper.Binary == "" {
		c.Whisper.Binary = "whisper"
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = "large-v3"
	}
	if c.Whisper.BeamSize <= 0 {
		c.Whisper.BeamSize = 1
	}
	if c.Whisper.BestOf <= 0 {
		c.Whisper.BestOf = 1
	}

	if c.Media.FFmpegBinary == "" {
		c.Media.FFmpegBinary = "ffmpeg"
	}
	if c.Media.FFprobeBinary == "" {
		c.Media.FFprobeBinary = "ffprobe"
	}

	if c.LLM.RefineModel == "" {
		c.LLM.RefineModel = "gpt-4o-mini"
	}
	if c.LLM.AnalyzeModel == "" {
		c.LLM.AnalyzeModel = "gpt-4o"
	}
	if c.LLM.RefineMaxSegments <= 0 {
		c.LLM.RefineMaxSegments = 120
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 120
	}

	if c.Embeddings.Scheme == "" {
		c.Embeddings.Scheme = "https"
	}

	if c.Social.TimeoutSeconds <= 0 {
		c.Social.TimeoutSeconds = 30
	}

	if c.Selection.MinTargetClips <= 0 {
		c.Selection.MinTargetClips = 10
	}
	if c.Selection.MaxTargetClips <= 0 {
		c.Selection.MaxTargetClips = 40
	}
	if c.Selection.OverlapThreshold <= 0 {
		c.Selection.OverlapThreshold = 0.75
	}

	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = 3
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = 1
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = 5
	}
	if c.Workflow.TaskTimeLimit <= 0 {
		c.Workflow.TaskTimeLimit = 90 * 60
	}
	if c.Workflow.LeaseTimeout <= 0 {
		c.Workflow.LeaseTimeout = 10 * 60
	}
	if c.Workflow.CronInterval <= 0 {
		c.Workflow.CronInterval = 60
	}
	if c.Workflow.CompletedRetention <= 0 {
		c.Workflow.CompletedRetention = 24 * 3600
	}
	if c.Workflow.StatusPollInterval <= 0 {
		c.Workflow.StatusPollInterval = 1
	}
	if c.Workflow.StatusStreamTimeout <= 0 {
		c.Workflow.StatusStreamTimeout = 300
	}

	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	c.Paths.DataDir = mustExpand(c.Paths.DataDir)
	c.Paths.MediaDir = mustExpand(c.Paths.MediaDir)
	c.Paths.LibraryDir = mustExpand(c.Paths.LibraryDir)
	c.Paths.LogDir = mustExpand(c.Paths.LogDir)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil || expanded == "" {
		return path
	}
	return expanded
}
