package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	MediaDir   string `toml:"media_dir"`
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Redis contains connection settings for the status store.
type Redis struct {
	Addr             string `toml:"addr"`
	Password         string `toml:"password"`
	DB               int    `toml:"db"`
	StatusTTLSeconds int    `toml:"status_ttl_seconds"`
}

// Whisper contains settings for the external speech-to-text engine.
type Whisper struct {
	Binary          string `toml:"binary"`
	Model           string `toml:"model"`
	WordTimestamps  bool   `toml:"word_timestamps"`
	BeamSize        int    `toml:"beam_size"`
	BestOf          int    `toml:"best_of"`
	FP16            bool   `toml:"fp16"`
	MaxAudioSeconds int    `toml:"max_audio_seconds"`
}

// Media contains paths for the transcoding tools.
type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// LLM contains shared connection settings for text refinement, semantic
// analysis, and clip scoring.
type LLM struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	RefineEnabled     bool   `toml:"refine_enabled"`
	RefineModel       string `toml:"refine_model"`
	RefineMaxSegments int    `toml:"refine_max_segments"`
	AnalyzeModel      string `toml:"analyze_model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Embeddings contains settings for the embedding classification backend.
type Embeddings struct {
	Enabled bool   `toml:"enabled"`
	Scheme  string `toml:"scheme"`
	Host    string `toml:"host"`
	APIKey  string `toml:"api_key"`
}

// YouTube contains settings for source metadata lookup.
type YouTube struct {
	APIKey string `toml:"api_key"`
}

// Social contains settings for the publish stage.
type Social struct {
	Endpoint       string `toml:"endpoint"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Selection contains globally configured bounds for the clip selection
// engine. These are passed into the engine explicitly so tests can inject
// arbitrary values.
type Selection struct {
	MinTargetClips   int     `toml:"min_target_clips"`
	MaxTargetClips   int     `toml:"max_target_clips"`
	OverlapThreshold float64 `toml:"overlap_threshold"`
}

// Workflow contains daemon timing, worker pool, and task ceiling settings.
type Workflow struct {
	Workers             int `toml:"workers"`
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
	TaskTimeLimit       int `toml:"task_time_limit"`
	LeaseTimeout        int `toml:"lease_timeout"`
	CronInterval        int `toml:"cron_interval"`
	CompletedRetention  int `toml:"completed_retention"`
	StatusPollInterval  int `toml:"status_poll_interval"`
	StatusStreamTimeout int `toml:"status_stream_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipforge.
//
// Sections by subsystem:
//   - Paths: directories and API bind address
//   - Redis: status store connection
//   - Whisper: external speech-to-text engine
//   - Media: ffmpeg/ffprobe binaries
//   - LLM: refinement, analysis, and scoring connection settings
//   - Embeddings: weaviate classification backend
//   - YouTube: source metadata lookup
//   - Social: publish stage endpoint
//   - Selection: clip selection bounds
//   - Workflow: worker pool, polling, and task ceilings
//   - Notifications: ntfy settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Redis         Redis         `toml:"redis"`
	Whisper       Whisper       `toml:"whisper"`
	Media         Media         `toml:"media"`
	LLM           LLM           `toml:"llm"`
	Embeddings    Embeddings    `toml:"embeddings"`
	YouTube       YouTube       `toml:"youtube"`
	Social        Social        `toml:"social"`
	Selection     Selection     `toml:"selection"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		data, readErr := os.ReadFile(resolved)
		switch {
		case readErr == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", resolved, err)
			}
		case errors.Is(readErr, fs.ErrNotExist) && path == "":
			// No explicit path and no default file: run on defaults.
		default:
			return nil, fmt.Errorf("read config %s: %w", resolved, readErr)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates all configured directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.MediaDir, c.Paths.LibraryDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite database file backing jobs and the broker.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "pipeline.db")
}

func resolveConfigPath(path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		return expandPath(path)
	}
	return DefaultConfigPath()
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}
