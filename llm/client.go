// Package llm implements the Groq chat-completions client the
// narrative engine speaks through: request shaping, pacing against the
// shared outbound call budget, and a bounded retry policy for the two
// transient failure modes (429 and timeout).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/laredonunes/ecoquest-api/clock"
	"github.com/laredonunes/ecoquest-api/metrics"
)

// maxResponseSize limits the response body read to prevent memory
// exhaustion from a misbehaving upstream.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// timeoutBackoff is the fixed pause before retrying a timed-out
// attempt. Timeouts mean the upstream is already slow; waiting longer
// does not help proportionally, so unlike the 429 path this backoff
// does not grow.
const timeoutBackoff = 2 * time.Second

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message in a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds the Groq connection settings.
type Config struct {
	// APIKey is the bearer token. Required against the real API.
	APIKey string `yaml:"api_key" env:"GROQ_API_KEY"`

	// BaseURL is the OpenAI-compatible API root.
	BaseURL string `yaml:"base_url" env:"GROQ_BASE_URL"`

	// Model names the completion model.
	Model string `yaml:"model" env:"GROQ_MODEL"`

	// MaxTokens caps the reply length.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature and TopP shape sampling.
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries bounds attempts per Complete call.
	MaxRetries int `yaml:"max_retries"`
}

// DefaultConfig returns the settings the API ships with.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "llama-3.3-70b-versatile",
		MaxTokens:   1500,
		Temperature: 0.8,
		TopP:        0.95,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
	}
}

// Limiter gates each outbound attempt. Satisfied by
// *ratelimit.Upstream; nil disables client-side pacing.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Client calls Groq's chat-completions endpoint with pacing and retry.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    Limiter
	clk        clock.Clock
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. The caller owns its
// timeout configuration.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLimiter sets the outbound pacing gate.
func WithLimiter(l Limiter) ClientOption {
	return func(client *Client) {
		client.limiter = l
	}
}

// WithClock sets the clock used for retry backoff. Tests inject
// clock.Fake.
func WithClock(clk clock.Clock) ClientOption {
	return func(client *Client) {
		client.clk = clk
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a Groq client from cfg.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		clk:        clock.Real(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the conversation and returns the assistant reply
// text. Each attempt first passes the pacing gate, then issues one
// HTTP call. 429 replies back off exponentially (2s, 4s, ...);
// timeouts back off a fixed 2s; both are retried up to MaxRetries
// total attempts before failing with an UpstreamError. Any other
// failure surfaces immediately without retry.
func (c *Client) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("at least one message is required")
	}

	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultConfig().MaxRetries
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		text, err := c.doRequest(ctx, messages, maxTokens)
		if err == nil {
			return text, nil
		}

		var rateLimited *rateLimitedError
		var timedOut *timeoutError
		switch {
		case errors.As(err, &rateLimited):
			if attempt == maxRetries {
				return "", &UpstreamError{
					Kind: KindRateLimitExhausted,
					Err:  fmt.Errorf("%d attempts rate limited: %w", attempt, err),
				}
			}
			backoff := time.Duration(1<<attempt) * time.Second
			metrics.UpstreamRetries.WithLabelValues("rate_limited").Inc()
			c.logger.Debug("rate limited by upstream, backing off",
				"attempt", attempt,
				"max_retries", maxRetries,
				"backoff", backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return "", err
			}

		case errors.As(err, &timedOut):
			if attempt == maxRetries {
				return "", &UpstreamError{
					Kind: KindTimeout,
					Err:  fmt.Errorf("%d attempts timed out: %w", attempt, err),
				}
			}
			metrics.UpstreamRetries.WithLabelValues("timeout").Inc()
			c.logger.Debug("upstream attempt timed out, backing off",
				"attempt", attempt,
				"max_retries", maxRetries,
				"backoff", timeoutBackoff)
			if err := c.sleep(ctx, timeoutBackoff); err != nil {
				return "", err
			}

		default:
			// Non-transient: surface without burning further attempts.
			c.logger.Warn("upstream call failed", "attempt", attempt, "error", err)
			return "", err
		}
	}

	// Unreachable: the loop always returns on its final attempt.
	return "", &UpstreamError{Kind: KindNetwork, Err: errors.New("no attempts made")}
}

// sleep blocks for d through the injected clock, honoring ctx.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-c.clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// completionRequest is Groq's OpenAI-compatible request body.
type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
}

// completionResponse is the OpenAI-compatible response shape.
type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// doRequest executes a single HTTP attempt.
func (c *Client) doRequest(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	body, err := json.Marshal(completionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	})
	if err != nil {
		return "", &UpstreamError{Kind: KindDecode, Err: fmt.Errorf("marshal request: %w", err)}
	}

	url := completionsURL(c.cfg.BaseURL)
	c.logger.Debug("sending completion request",
		"model", c.cfg.Model,
		"messages", len(messages),
		"max_tokens", maxTokens)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &UpstreamError{Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		if isTimeoutErr(err) {
			return "", &timeoutError{err: err}
		}
		return "", &UpstreamError{Kind: KindNetwork, Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if isTimeoutErr(err) {
			return "", &timeoutError{err: err}
		}
		return "", &UpstreamError{Kind: KindNetwork, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &rateLimitedError{body: excerpt(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{
			Kind:   KindHTTPStatus,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("groq api error (status %d): %s", resp.StatusCode, excerpt(respBody)),
		}
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &UpstreamError{Kind: KindDecode, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &UpstreamError{Kind: KindDecode, Err: errors.New("no choices in response")}
	}

	c.logger.Debug("completion ok",
		"model", parsed.Model,
		"finish_reason", parsed.Choices[0].FinishReason,
		"total_tokens", parsed.Usage.TotalTokens)

	return parsed.Choices[0].Message.Content, nil
}

// completionsURL joins the configured base URL with the chat
// completions path, tolerating bases that already include it.
func completionsURL(base string) string {
	if base == "" {
		base = DefaultConfig().BaseURL
	}
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// isTimeoutErr reports whether err is a per-attempt timeout: the HTTP
// client deadline, a context deadline, or any net error that reports
// itself as a timeout.
func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// excerpt truncates an error body for logs and error messages.
func excerpt(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
