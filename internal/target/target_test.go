package target

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instant() Config {
	cfg := DefaultConfig()
	cfg.MinLatency = 0
	cfg.MaxLatency = 0
	cfg.Seed = 7
	return cfg
}

func newServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s, err := New(cfg, nil)
	require.NoError(t, err)
	return s
}

func chat(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))
	return rec
}

func TestRespond_Keywords(t *testing.T) {
	tests := []struct {
		prompt string
		prefix string
	}{
		{"Explain cloud computing", "Cloud computing"},
		{"what is KUBERNETES", "Kubernetes"},
		{"docker vs vm", "Docker containers"},
		{"cloud and docker", "Cloud computing"},
		{"hello", "This is a mock response"},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			text, tokens := Respond(tt.prompt)
			assert.True(t, strings.HasPrefix(text, tt.prefix), text)
			assert.Equal(t, len(strings.Fields(text)), tokens)
		})
	}
}

func TestHealth(t *testing.T) {
	s := newServer(t, instant())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "mock:llama-3.2-3b-q4.gguf", body["model"])
}

func TestChat_Success(t *testing.T) {
	s := newServer(t, instant())
	rec := chat(t, s, `{"prompt":"Explain cloud computing","max_tokens":100}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Response, "Cloud computing")
	_, want := Respond("cloud")
	assert.Equal(t, want, resp.TokensGenerated)
	assert.GreaterOrEqual(t, resp.LatencySeconds, 0.0)

	stats := s.Stats()
	assert.EqualValues(t, 1, stats.TotalRequests)
	assert.EqualValues(t, want, stats.TotalTokens)
}

func TestChat_MissingPrompt(t *testing.T) {
	s := newServer(t, instant())
	for _, body := range []string{`{}`, `not json`, ``} {
		rec := chat(t, s, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "Missing prompt field")
	}
	assert.Zero(t, s.Stats().TotalRequests)
}

func TestChat_CapacityLimit(t *testing.T) {
	cfg := instant()
	cfg.CapacityRPS = 0.001
	cfg.Burst = 2
	s := newServer(t, cfg)

	codes := make([]int, 4)
	for i := range codes {
		codes[i] = chat(t, s, `{"prompt":"x"}`).Code
	}
	assert.Equal(t, []int{200, 200, 503, 503}, codes)
	assert.EqualValues(t, 2, s.Stats().Rejected)
}

func TestChat_FailureRatio(t *testing.T) {
	cfg := instant()
	cfg.FailureRatio = 1
	s := newServer(t, cfg)

	rec := chat(t, s, `{"prompt":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "simulated inference failure")
	assert.EqualValues(t, 1, s.Stats().Failed)
	assert.Zero(t, s.Stats().TotalRequests)
}

func TestChat_LatencyWithinRange(t *testing.T) {
	cfg := instant()
	cfg.MinLatency = 20 * time.Millisecond
	cfg.MaxLatency = 40 * time.Millisecond
	s := newServer(t, cfg)

	start := time.Now()
	rec := chat(t, s, `{"prompt":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMetrics(t *testing.T) {
	s := newServer(t, instant())
	chat(t, s, `{"prompt":"docker"}`)
	chat(t, s, `{"prompt":"hello"}`)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 2, stats.TotalRequests)
	assert.Equal(t, "mock:llama-3.2-3b-q4.gguf", stats.Model)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.MaxLatency = bad.MinLatency - 1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.FailureRatio = 1.5
	assert.Error(t, bad.Validate())

	_, err := New(bad, nil)
	assert.Error(t, err)
}
