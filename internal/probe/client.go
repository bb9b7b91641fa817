// Package probe sends timed requests to an inference service.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/inferload/internal/loadtest"
)

// Headers sent with every probe.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderPhase     = "X-Load-Phase"
)

// Error bodies longer than this are truncated.
const maxErrorBody = 64 << 10

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

// ChatResponse is the body of a successful POST /chat. Only TokensGenerated
// is used for statistics; a missing value counts as zero tokens.
type ChatResponse struct {
	Response        string   `json:"response,omitempty"`
	Model           string   `json:"model,omitempty"`
	LatencySeconds  *float64 `json:"latency_seconds,omitempty"`
	TokensGenerated *int     `json:"tokens_generated,omitempty"`
}

// Tokens returns TokensGenerated, or 0 when the target omitted it.
func (r ChatResponse) Tokens() int {
	if r.TokensGenerated == nil {
		return 0
	}
	return *r.TokensGenerated
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}

// Config holds the request parameters shared by every probe.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Prompt    string
	MaxTokens int
}

// DefaultConfig returns the default prompt and limits for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   60 * time.Second,
		Prompt:    "Explain cloud computing",
		MaxTokens: 100,
	}
}

// Client probes one target. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a probe client. The transport keeps enough idle
// connections for a full worker pool.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 200
	transport.MaxIdleConnsPerHost = 200

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		logger: logger,
	}
}

// Probe sends the configured prompt once.
func (c *Client) Probe(ctx context.Context) loadtest.Outcome {
	return c.ProbeWith(ctx, c.cfg.Prompt, c.cfg.MaxTokens)
}

// ProbeWith sends one POST /chat and classifies the result. Transport and
// protocol errors are recorded in the outcome, never returned; there are no
// retries.
func (c *Client) ProbeWith(ctx context.Context, prompt string, maxTokens int) loadtest.Outcome {
	requestID := uuid.NewString()
	outcome := loadtest.Outcome{RequestID: requestID}

	body, err := json.Marshal(ChatRequest{Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		outcome.Error = fmt.Sprintf("encode request: %v", err)
		outcome.Timestamp = time.Now()
		return outcome
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		outcome.Error = err.Error()
		outcome.Timestamp = time.Now()
		return outcome
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if info, ok := loadtest.PhaseFromContext(ctx); ok {
		req.Header.Set(HeaderPhase, info.Name)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		outcome.Latency = time.Since(start)
		outcome.Timestamp = time.Now()
		outcome.Error = err.Error()
		c.logger.Debug("probe transport error",
			zap.String("request_id", requestID),
			zap.Error(err))
		return outcome
	}
	defer resp.Body.Close()

	outcome.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		outcome.Latency = time.Since(start)
		outcome.Timestamp = time.Now()
		outcome.Error = string(raw)
		if outcome.Error == "" {
			outcome.Error = "HTTP " + strconv.Itoa(resp.StatusCode)
		}
		c.logger.Debug("probe failed",
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode))
		return outcome
	}

	var chat ChatResponse
	err = json.NewDecoder(resp.Body).Decode(&chat)
	outcome.Latency = time.Since(start)
	outcome.Timestamp = time.Now()
	if err != nil {
		outcome.Error = fmt.Sprintf("malformed response body: %v", err)
		return outcome
	}

	outcome.Success = true
	outcome.Tokens = chat.Tokens()
	if chat.LatencySeconds != nil {
		outcome.ServerLatency = time.Duration(*chat.LatencySeconds * float64(time.Second))
	}
	return outcome
}

// Health calls GET /health. The target must answer 200 with a JSON body.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", loadtest.ErrPreflight, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot reach %s: %w", loadtest.ErrPreflight, c.cfg.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: health returned HTTP %d: %s", loadtest.ErrPreflight, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: health body is not JSON: %w", loadtest.ErrPreflight, err)
	}
	return &status, nil
}

// CheckHealth implements loadtest.HealthChecker.
func (c *Client) CheckHealth(ctx context.Context) error {
	status, err := c.Health(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("health check passed",
		zap.String("status", status.Status),
		zap.String("model", status.Model))
	return nil
}
