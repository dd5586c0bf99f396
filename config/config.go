// Package config provides configuration loading and management for the
// EcoQuest API.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/laredonunes/ecoquest-api/engine"
	"github.com/laredonunes/ecoquest-api/llm"
	"github.com/laredonunes/ecoquest-api/ratelimit"
)

// Config represents the complete EcoQuest configuration
type Config struct {
	Server        ServerConfig             `yaml:"server"`
	Groq          llm.Config               `yaml:"groq"`
	InboundLimit  ratelimit.InboundConfig  `yaml:"inbound_limit"`
	UpstreamLimit ratelimit.UpstreamConfig `yaml:"upstream_limit"`
	Session       engine.Config            `yaml:"session"`
	Scenarios     ScenariosConfig          `yaml:"scenarios"`
	NATS          NATSConfig               `yaml:"nats"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	// Addr is the listen address. A bare port ("8080", the PORT
	// convention) is normalized to ":8080" by the loader.
	Addr string `yaml:"addr" env:"PORT"`
	// ReadTimeout bounds reading a full request, body included
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout bounds writing a response; turns wait on the
	// upstream model, so this runs long
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ScenariosConfig configures scenario pack loading
type ScenariosConfig struct {
	// Dir is an optional directory of YAML scenario packs loaded on
	// top of the built-in scenarios (empty = builtins only)
	Dir string `yaml:"dir"`
}

// NATSConfig configures turn-event publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url" env:"NATS_URL"`
	// SubjectPrefix is prepended to the scenario ID to form the
	// publish subject
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 45 * time.Second,
		},
		Groq:          llm.DefaultConfig(),
		InboundLimit:  ratelimit.DefaultInboundConfig(),
		UpstreamLimit: ratelimit.DefaultUpstreamConfig(),
		Session:       engine.DefaultConfig(),
		Scenarios: ScenariosConfig{
			Dir: "", // Builtins only
		},
		NATS: NATSConfig{
			URL:           "",
			SubjectPrefix: "ecoquest.turns",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Groq.Model == "" {
		return fmt.Errorf("groq.model is required")
	}
	if c.Groq.MaxTokens <= 0 {
		return fmt.Errorf("groq.max_tokens must be positive")
	}
	if c.Groq.Temperature < 0 || c.Groq.Temperature > 2 {
		return fmt.Errorf("groq.temperature must be between 0 and 2")
	}
	if c.Groq.TopP <= 0 || c.Groq.TopP > 1 {
		return fmt.Errorf("groq.top_p must be in (0, 1]")
	}
	if c.Groq.Timeout <= 0 {
		return fmt.Errorf("groq.timeout must be positive")
	}
	if c.Groq.MaxRetries <= 0 {
		return fmt.Errorf("groq.max_retries must be positive")
	}
	if c.InboundLimit.MaxRequests <= 0 {
		return fmt.Errorf("inbound_limit.max_requests must be positive")
	}
	if c.InboundLimit.Window <= 0 {
		return fmt.Errorf("inbound_limit.window must be positive")
	}
	if c.UpstreamLimit.MaxCalls <= 0 {
		return fmt.Errorf("upstream_limit.max_calls must be positive")
	}
	if c.UpstreamLimit.Window <= 0 {
		return fmt.Errorf("upstream_limit.window must be positive")
	}
	if c.Session.MaxRecentPairs < 1 {
		return fmt.Errorf("session.max_recent_pairs must be at least 1")
	}
	if c.Session.MaxDecisions < 1 {
		return fmt.Errorf("session.max_decisions must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ReadTimeout != 0 {
		c.Server.ReadTimeout = other.Server.ReadTimeout
	}
	if other.Server.WriteTimeout != 0 {
		c.Server.WriteTimeout = other.Server.WriteTimeout
	}

	// Groq
	if other.Groq.APIKey != "" {
		c.Groq.APIKey = other.Groq.APIKey
	}
	if other.Groq.BaseURL != "" {
		c.Groq.BaseURL = other.Groq.BaseURL
	}
	if other.Groq.Model != "" {
		c.Groq.Model = other.Groq.Model
	}
	if other.Groq.MaxTokens != 0 {
		c.Groq.MaxTokens = other.Groq.MaxTokens
	}
	if other.Groq.Temperature != 0 {
		c.Groq.Temperature = other.Groq.Temperature
	}
	if other.Groq.TopP != 0 {
		c.Groq.TopP = other.Groq.TopP
	}
	if other.Groq.Timeout != 0 {
		c.Groq.Timeout = other.Groq.Timeout
	}
	if other.Groq.MaxRetries != 0 {
		c.Groq.MaxRetries = other.Groq.MaxRetries
	}

	// Inbound limit
	if other.InboundLimit.MaxRequests != 0 {
		c.InboundLimit.MaxRequests = other.InboundLimit.MaxRequests
	}
	if other.InboundLimit.Window != 0 {
		c.InboundLimit.Window = other.InboundLimit.Window
	}
	if other.InboundLimit.Cooldown != 0 {
		c.InboundLimit.Cooldown = other.InboundLimit.Cooldown
	}
	if other.InboundLimit.IdleEviction != 0 {
		c.InboundLimit.IdleEviction = other.InboundLimit.IdleEviction
	}

	// Upstream limit
	if other.UpstreamLimit.MaxCalls != 0 {
		c.UpstreamLimit.MaxCalls = other.UpstreamLimit.MaxCalls
	}
	if other.UpstreamLimit.Window != 0 {
		c.UpstreamLimit.Window = other.UpstreamLimit.Window
	}
	if other.UpstreamLimit.SafetyMargin != 0 {
		c.UpstreamLimit.SafetyMargin = other.UpstreamLimit.SafetyMargin
	}

	// Session
	if other.Session.MaxRecentPairs != 0 {
		c.Session.MaxRecentPairs = other.Session.MaxRecentPairs
	}
	if other.Session.MaxDecisions != 0 {
		c.Session.MaxDecisions = other.Session.MaxDecisions
	}

	// Scenarios
	if other.Scenarios.Dir != "" {
		c.Scenarios.Dir = other.Scenarios.Dir
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}
}
