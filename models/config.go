package models

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface for both the capture watcher and
// the ingestion job.
type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Email      EmailConfig      `yaml:"email"`
	Feed       FeedConfig       `yaml:"feed"`
}

// CaptureConfig drives the scheduler and extractor.
type CaptureConfig struct {
	// Source is the timeline page to snapshot: an http(s) URL or a local
	// HTML file path.
	Source          string   `yaml:"source"`
	IntervalMinutes int      `yaml:"interval_minutes"`
	DelayMinutes    int      `yaml:"delay_minutes"`
	Selectors       []string `yaml:"selectors"`
	OutputMode      string   `yaml:"output_mode"`
	ExportDir       string   `yaml:"export_dir"`
}

// IngestConfig drives the batch scanner and state store.
type IngestConfig struct {
	WindowMinutes int    `yaml:"window_minutes"`
	StateDir      string `yaml:"state_dir"`
}

// SummarizerConfig points at a chat-completions endpoint.
type SummarizerConfig struct {
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	ChunkChars          int    `yaml:"chunk_chars"`
	MaxRetries          int    `yaml:"max_retries"`
	RetryBackoffSeconds int    `yaml:"retry_backoff_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	GroupLimit          int    `yaml:"group_limit"`
}

// EmailConfig configures the SMTP notifier.
type EmailConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// FeedConfig controls the static digest feed written after successful runs.
type FeedConfig struct {
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func setDefaults(cfg *Config) {
	if cfg.Capture.IntervalMinutes == 0 {
		cfg.Capture.IntervalMinutes = 60
	}
	if cfg.Capture.OutputMode == "" {
		cfg.Capture.OutputMode = string(OutputAuto)
	}
	if cfg.Capture.ExportDir == "" {
		cfg.Capture.ExportDir = "deck-exports"
	}
	if cfg.Ingest.WindowMinutes == 0 {
		cfg.Ingest.WindowMinutes = 60
	}
	if cfg.Ingest.StateDir == "" {
		cfg.Ingest.StateDir = "."
	}
	if cfg.Summarizer.Model == "" {
		cfg.Summarizer.Model = "gemini-2.5-pro"
	}
	if cfg.Summarizer.ChunkChars == 0 {
		cfg.Summarizer.ChunkChars = 8000
	}
	if cfg.Summarizer.MaxRetries == 0 {
		cfg.Summarizer.MaxRetries = 3
	}
	if cfg.Summarizer.RetryBackoffSeconds == 0 {
		cfg.Summarizer.RetryBackoffSeconds = 5
	}
	if cfg.Summarizer.TimeoutSeconds == 0 {
		cfg.Summarizer.TimeoutSeconds = 60
	}
	if cfg.Summarizer.GroupLimit == 0 {
		cfg.Summarizer.GroupLimit = 5
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.Feed.MaxEntries == 0 {
		cfg.Feed.MaxEntries = 48
	}
}

func validate(cfg *Config) error {
	if cfg.Capture.IntervalMinutes <= 0 {
		return fmt.Errorf("config: capture.interval_minutes must be > 0")
	}
	if cfg.Capture.DelayMinutes < 0 {
		return fmt.Errorf("config: capture.delay_minutes must be >= 0")
	}
	if _, err := ParseOutputMode(cfg.Capture.OutputMode); err != nil {
		return err
	}
	if cfg.Summarizer.BaseURL == "" {
		return fmt.Errorf("config: summarizer.base_url is required")
	}
	if cfg.Summarizer.APIKey == "" {
		return fmt.Errorf("config: summarizer.api_key is required (set LLM_API_KEY env var)")
	}
	if len(cfg.Email.To) == 0 {
		return fmt.Errorf("config: email.to is required")
	}
	if cfg.Email.SMTPHost == "" {
		return fmt.Errorf("config: email.smtp_host is required")
	}
	if cfg.Email.From == "" && cfg.Email.Username == "" {
		return fmt.Errorf("config: email.from or email.username is required")
	}
	return nil
}

// LoadConfig reads the config file, expands environment variables, applies
// defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
