// Package config provides shared configuration for e2e tests.
package config

import "time"

// Service endpoint defaults.
const (
	// DefaultBaseURL is where a locally run API listens.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultSubjectPrefix is the subject prefix the API publishes turn
	// events under when NATS is configured.
	DefaultSubjectPrefix = "ecoquest.turns"
)

// Timeout defaults.
const (
	// DefaultRequestTimeout bounds individual HTTP requests.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultSetupTimeout bounds scenario setup.
	DefaultSetupTimeout = 60 * time.Second

	// DefaultStageTimeout bounds a single scenario stage. Stages that
	// play several turns wait out LLM latency plus the per-player
	// cooldown, so this is generous.
	DefaultStageTimeout = 60 * time.Second

	// DefaultPollInterval is how often polling loops re-check state.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultWaitTimeout bounds waiting for the service to become healthy.
	DefaultWaitTimeout = 10 * time.Second
)

// Config holds the runtime configuration for e2e scenarios.
type Config struct {
	// BaseURL is the root URL of the API under test.
	BaseURL string `json:"base_url"`

	// PlayerID is the identity sent with every request. Empty means each
	// client generates its own, giving every run a fresh rate-limit window.
	PlayerID string `json:"player_id,omitempty"`

	// NATSURL is the NATS server the API publishes turn events to.
	// Empty disables event capture scenarios.
	NATSURL string `json:"nats_url,omitempty"`

	// SubjectPrefix is the turn event subject prefix to capture under.
	SubjectPrefix string `json:"subject_prefix"`

	// RequestTimeout bounds individual HTTP requests.
	RequestTimeout time.Duration `json:"request_timeout"`

	// SetupTimeout bounds scenario setup.
	SetupTimeout time.Duration `json:"setup_timeout"`

	// StageTimeout bounds a single scenario stage.
	StageTimeout time.Duration `json:"stage_timeout"`
}

// DefaultConfig returns the default e2e configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		SubjectPrefix:  DefaultSubjectPrefix,
		RequestTimeout: DefaultRequestTimeout,
		SetupTimeout:   DefaultSetupTimeout,
		StageTimeout:   DefaultStageTimeout,
	}
}
