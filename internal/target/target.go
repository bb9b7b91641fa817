// Package target is a stand-in inference service for exercising the harness
// without a real model. It answers the same /health and /chat contract with
// simulated latency, optional capacity limits and injected failures.
package target

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Config controls how the mock behaves.
type Config struct {
	Model        string
	MinLatency   time.Duration
	MaxLatency   time.Duration
	CapacityRPS  float64 // 0 disables the limiter
	Burst        int
	FailureRatio float64 // Share of admitted requests answered with 500
	Seed         uint64  // 0 picks a random seed
}

// DefaultConfig matches the mock model: 300-800ms per request, no limits.
func DefaultConfig() Config {
	return Config{
		Model:      "mock:llama-3.2-3b-q4.gguf",
		MinLatency: 300 * time.Millisecond,
		MaxLatency: 800 * time.Millisecond,
	}
}

// Validate rejects impossible latency ranges and ratios.
func (c Config) Validate() error {
	if c.MinLatency < 0 || c.MaxLatency < c.MinLatency {
		return errors.New("target: latency range must satisfy 0 <= min <= max")
	}
	if c.FailureRatio < 0 || c.FailureRatio > 1 {
		return errors.New("target: failure ratio must be within [0, 1]")
	}
	if c.CapacityRPS < 0 {
		return errors.New("target: capacity must not be negative")
	}
	return nil
}

var responses = map[string]string{
	"cloud":      "Cloud computing is a technology that allows users to access computing resources over the internet. It provides on-demand access to servers, storage, databases, and applications without direct active management.",
	"kubernetes": "Kubernetes is an open-source container orchestration platform that automates the deployment, scaling, and management of containerized applications across clusters of machines.",
	"docker":     "Docker containers provide a lightweight, portable way to package applications and their dependencies. They ensure consistent behavior across different environments from development to production.",
	"default":    "This is a mock response from the LLM inference service. The response is generated based on your prompt and simulates the behavior of a real language model for testing purposes.",
}

// Checked in order; the first keyword found in the prompt wins.
var keywords = []string{"cloud", "kubernetes", "docker"}

// Respond returns the canned answer for prompt and its token count.
func Respond(prompt string) (string, int) {
	text := responses["default"]
	lower := strings.ToLower(prompt)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			text = responses[k]
			break
		}
	}
	return text, len(strings.Fields(text))
}

type chatRequest struct {
	Prompt    *string `json:"prompt"`
	MaxTokens int     `json:"max_tokens"`
}

type chatResponse struct {
	Response        string  `json:"response"`
	Model           string  `json:"model"`
	LatencySeconds  float64 `json:"latency_seconds"`
	TokensGenerated int     `json:"tokens_generated"`
}

// Stats is the body of GET /metrics.
type Stats struct {
	TotalRequests         int64   `json:"total_requests"`
	TotalTokens           int64   `json:"total_tokens"`
	AverageLatencySeconds float64 `json:"average_latency_seconds"`
	Rejected              int64   `json:"rejected"`
	Failed                int64   `json:"failed"`
	Model                 string  `json:"model"`
}

// Server is the mock inference service.
type Server struct {
	cfg      Config
	limiter  *capacityLimiter
	logger   *zap.Logger
	router   chi.Router
	mu       sync.Mutex
	rng      *rand.Rand
	requests int64
	tokens   int64
	latency  time.Duration
	failed   int64
}

// New builds a Server. cfg must be valid.
func New(cfg Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	s := &Server{
		cfg:     cfg,
		limiter: newCapacityLimiter(cfg.CapacityRPS, cfg.Burst),
		logger:  logger,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	s.RegisterRoutes(r)
	s.router = r
	return s, nil
}

// RegisterRoutes mounts the service endpoints on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Get("/metrics", s.handleMetrics)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"model":  s.cfg.Model,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !s.limiter.Allow() {
		s.respondError(w, http.StatusServiceUnavailable, "service at capacity")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == nil {
		s.respondError(w, http.StatusBadRequest, "Missing prompt field")
		return
	}

	delay, fail := s.draw()
	timer := time.NewTimer(delay)
	select {
	case <-timer.C:
	case <-r.Context().Done():
		timer.Stop()
		return
	}

	if fail {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		s.respondError(w, http.StatusInternalServerError, "simulated inference failure")
		return
	}

	text, tokens := Respond(*req.Prompt)
	elapsed := time.Since(start)

	s.mu.Lock()
	s.requests++
	s.tokens += int64(tokens)
	s.latency += elapsed
	s.mu.Unlock()

	s.logger.Debug("chat served",
		zap.String("request_id", r.Header.Get("X-Request-ID")),
		zap.String("phase", r.Header.Get("X-Load-Phase")),
		zap.Duration("latency", elapsed))

	s.respondJSON(w, http.StatusOK, chatResponse{
		Response:        text,
		Model:           s.cfg.Model,
		LatencySeconds:  round3(elapsed.Seconds()),
		TokensGenerated: tokens,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.Stats())
}

// Stats returns the counters served on /metrics.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var avg float64
	if s.requests > 0 {
		avg = round3(s.latency.Seconds() / float64(s.requests))
	}
	return Stats{
		TotalRequests:         s.requests,
		TotalTokens:           s.tokens,
		AverageLatencySeconds: avg,
		Rejected:              s.limiter.Shed(),
		Failed:                s.failed,
		Model:                 s.cfg.Model,
	}
}

// draw picks the simulated latency and whether this request fails.
func (s *Server) draw() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.cfg.MinLatency
	if spread := s.cfg.MaxLatency - s.cfg.MinLatency; spread > 0 {
		delay += time.Duration(s.rng.Int64N(int64(spread) + 1))
	}
	fail := s.cfg.FailureRatio > 0 && s.rng.Float64() < s.cfg.FailureRatio
	return delay, fail
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.logger.Debug("request rejected", zap.Int("status", status), zap.String("error", msg))
	s.respondJSON(w, status, map[string]string{"error": msg})
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
