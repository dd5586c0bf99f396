package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Groq.Model != "llama-3.3-70b-versatile" {
		t.Errorf("expected default model llama-3.3-70b-versatile, got %s", cfg.Groq.Model)
	}
	if cfg.Groq.MaxTokens != 1500 {
		t.Errorf("expected default max_tokens 1500, got %d", cfg.Groq.MaxTokens)
	}
	if cfg.Groq.Temperature != 0.8 {
		t.Errorf("expected default temperature 0.8, got %f", cfg.Groq.Temperature)
	}
	if cfg.InboundLimit.MaxRequests != 20 {
		t.Errorf("expected default inbound max_requests 20, got %d", cfg.InboundLimit.MaxRequests)
	}
	if cfg.InboundLimit.Cooldown != 3*time.Second {
		t.Errorf("expected default cooldown 3s, got %v", cfg.InboundLimit.Cooldown)
	}
	if cfg.UpstreamLimit.MaxCalls != 25 {
		t.Errorf("expected default upstream max_calls 25, got %d", cfg.UpstreamLimit.MaxCalls)
	}
	if cfg.Session.MaxRecentPairs != 3 {
		t.Errorf("expected default max_recent_pairs 3, got %d", cfg.Session.MaxRecentPairs)
	}
	if cfg.NATS.SubjectPrefix != "ecoquest.turns" {
		t.Errorf("expected default subject prefix ecoquest.turns, got %s", cfg.NATS.SubjectPrefix)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing server addr",
			modify:  func(c *Config) { c.Server.Addr = "" },
			wantErr: true,
		},
		{
			name:    "missing groq model",
			modify:  func(c *Config) { c.Groq.Model = "" },
			wantErr: true,
		},
		{
			name:    "zero max tokens",
			modify:  func(c *Config) { c.Groq.MaxTokens = 0 },
			wantErr: true,
		},
		{
			name:    "temperature too high",
			modify:  func(c *Config) { c.Groq.Temperature = 2.1 },
			wantErr: true,
		},
		{
			name:    "top_p zero",
			modify:  func(c *Config) { c.Groq.TopP = 0 },
			wantErr: true,
		},
		{
			name:    "top_p above one",
			modify:  func(c *Config) { c.Groq.TopP = 1.1 },
			wantErr: true,
		},
		{
			name:    "zero inbound window",
			modify:  func(c *Config) { c.InboundLimit.Window = 0 },
			wantErr: true,
		},
		{
			name:    "zero upstream calls",
			modify:  func(c *Config) { c.UpstreamLimit.MaxCalls = 0 },
			wantErr: true,
		},
		{
			name:    "zero recent pairs",
			modify:  func(c *Config) { c.Session.MaxRecentPairs = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
server:
  addr: ":9000"
  write_timeout: 90s
groq:
  api_key: "gsk_file"
  model: "test-model"
  timeout: 10s
inbound_limit:
  max_requests: 5
session:
  max_recent_pairs: 2
nats:
  url: "nats://test:4222"
scenarios:
  dir: "/packs"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("expected addr :9000, got %s", cfg.Server.Addr)
	}
	if cfg.Server.WriteTimeout != 90*time.Second {
		t.Errorf("expected write_timeout 90s, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Groq.Model != "test-model" {
		t.Errorf("expected model test-model, got %s", cfg.Groq.Model)
	}
	if cfg.Groq.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %v", cfg.Groq.Timeout)
	}
	if cfg.InboundLimit.MaxRequests != 5 {
		t.Errorf("expected inbound max_requests 5, got %d", cfg.InboundLimit.MaxRequests)
	}
	if cfg.Session.MaxRecentPairs != 2 {
		t.Errorf("expected max_recent_pairs 2, got %d", cfg.Session.MaxRecentPairs)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Scenarios.Dir != "/packs" {
		t.Errorf("expected scenarios dir /packs, got %s", cfg.Scenarios.Dir)
	}

	// Fields the file leaves out keep their defaults
	if cfg.Groq.TopP != 0.95 {
		t.Errorf("expected top_p to remain default 0.95, got %f", cfg.Groq.TopP)
	}
	if cfg.UpstreamLimit.MaxCalls != 25 {
		t.Errorf("expected upstream max_calls to remain default 25, got %d", cfg.UpstreamLimit.MaxCalls)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{}
	override.Server.Addr = ":3000"
	override.Groq.Model = "override-model"

	base.Merge(override)

	if base.Server.Addr != ":3000" {
		t.Errorf("expected addr :3000, got %s", base.Server.Addr)
	}
	if base.Groq.Model != "override-model" {
		t.Errorf("expected model override-model, got %s", base.Groq.Model)
	}
	// BaseURL should remain from base since override didn't set it
	if base.Groq.BaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("expected base_url to remain default, got %s", base.Groq.BaseURL)
	}
	if base.InboundLimit.MaxRequests != 20 {
		t.Errorf("expected inbound max_requests to remain default, got %d", base.InboundLimit.MaxRequests)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Groq.Model = "saved-model"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Groq.Model != "saved-model" {
		t.Errorf("expected model saved-model, got %s", loaded.Groq.Model)
	}
}

func TestLoaderEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
server:
  addr: ":8081"
groq:
  api_key: "gsk_file"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("GROQ_API_KEY", "gsk_env")

	cfg, err := NewLoader(slog.Default()).Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected PORT to win and normalize to :9090, got %s", cfg.Server.Addr)
	}
	if cfg.Groq.APIKey != "gsk_env" {
		t.Errorf("expected env api key to win, got %s", cfg.Groq.APIKey)
	}
}

func TestLoaderExplicitPathMissing(t *testing.T) {
	_, err := NewLoader(slog.Default()).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing explicit config path")
	}
}

func TestLoaderFindsProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
inbound_limit:
  max_requests: 7
`
	if err := os.WriteFile(filepath.Join(tmpDir, ProjectConfigFile), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}

	// Run from a nested directory so the parent walk has work to do
	nested := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}
	t.Chdir(nested)

	cfg, err := NewLoader(slog.Default()).Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InboundLimit.MaxRequests != 7 {
		t.Errorf("expected inbound max_requests 7 from project config, got %d", cfg.InboundLimit.MaxRequests)
	}
}
