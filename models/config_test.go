package models

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
capture:
  source: https://deck.example/home
  interval_minutes: 15
  selectors:
    - article
  export_dir: /tmp/deck-exports
ingest:
  window_minutes: 30
summarizer:
  base_url: https://llm.example
  api_key: test-key
email:
  smtp_host: smtp.example
  username: digest@example.com
  password: hunter2
  to:
    - reader@example.com
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Capture.Source != "https://deck.example/home" {
		t.Errorf("Source = %q", cfg.Capture.Source)
	}
	if cfg.Capture.IntervalMinutes != 15 {
		t.Errorf("IntervalMinutes = %d", cfg.Capture.IntervalMinutes)
	}
	if cfg.Ingest.WindowMinutes != 30 {
		t.Errorf("WindowMinutes = %d", cfg.Ingest.WindowMinutes)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	minimal := `
summarizer:
  base_url: https://llm.example
  api_key: k
email:
  smtp_host: smtp.example
  username: u@example.com
  to: [r@example.com]
`
	cfg, err := LoadConfig(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Capture.IntervalMinutes != 60 {
		t.Errorf("default interval = %d, want 60", cfg.Capture.IntervalMinutes)
	}
	if cfg.Capture.OutputMode != "auto" {
		t.Errorf("default output mode = %q", cfg.Capture.OutputMode)
	}
	if cfg.Capture.ExportDir != "deck-exports" {
		t.Errorf("default export dir = %q", cfg.Capture.ExportDir)
	}
	if cfg.Ingest.WindowMinutes != 60 {
		t.Errorf("default window = %d", cfg.Ingest.WindowMinutes)
	}
	if cfg.Summarizer.ChunkChars != 8000 {
		t.Errorf("default chunk budget = %d", cfg.Summarizer.ChunkChars)
	}
	if cfg.Summarizer.MaxRetries != 3 || cfg.Summarizer.RetryBackoffSeconds != 5 {
		t.Errorf("default retry = %d/%ds", cfg.Summarizer.MaxRetries, cfg.Summarizer.RetryBackoffSeconds)
	}
	if cfg.Summarizer.GroupLimit != 5 {
		t.Errorf("default group limit = %d", cfg.Summarizer.GroupLimit)
	}
	if cfg.Email.SMTPPort != 587 {
		t.Errorf("default smtp port = %d", cfg.Email.SMTPPort)
	}
	if cfg.Feed.MaxEntries != 48 {
		t.Errorf("default feed cap = %d", cfg.Feed.MaxEntries)
	}
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "secret-from-env")

	content := strings.Replace(validConfig, "api_key: test-key", "api_key: ${TEST_LLM_KEY}", 1)
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Summarizer.APIKey != "secret-from-env" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.Summarizer.APIKey)
	}
}

func TestLoadConfig_UnsetEnvVarKeptLiteral(t *testing.T) {
	content := strings.Replace(validConfig, "api_key: test-key", "api_key: ${DEFINITELY_UNSET_VAR_93}", 1)
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Summarizer.APIKey != "${DEFINITELY_UNSET_VAR_93}" {
		t.Errorf("unset vars must stay literal, got %q", cfg.Summarizer.APIKey)
	}
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mangle func(string) string
	}{
		{"missing base_url", func(s string) string { return strings.Replace(s, "base_url: https://llm.example", "", 1) }},
		{"missing api_key", func(s string) string { return strings.Replace(s, "api_key: test-key", "", 1) }},
		{"missing recipients", func(s string) string { return strings.Replace(s, "- reader@example.com", "", 1) }},
		{"missing smtp host", func(s string) string { return strings.Replace(s, "smtp_host: smtp.example", "", 1) }},
		{"bad output mode", func(s string) string {
			return strings.Replace(s, "interval_minutes: 15", "interval_minutes: 15\n  output_mode: fancy", 1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.mangle(validConfig))); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
