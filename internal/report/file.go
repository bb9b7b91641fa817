package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const (
	filePrefix   = "inferload_results_"
	fileLayout   = "20060102_150405"
	tracesSuffix = "_traces.jsonl.zst"
)

// FileSink writes reports as indented JSON into a directory.
type FileSink struct {
	Dir           string
	IncludeTraces bool // Also write a zstd JSON-lines sidecar of every outcome
	logger        *zap.Logger
}

// NewFileSink creates a FileSink writing into dir.
func NewFileSink(dir string, includeTraces bool, logger *zap.Logger) *FileSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		dir = "."
	}
	return &FileSink{Dir: dir, IncludeTraces: includeTraces, logger: logger}
}

// FileName returns the report file name for r, derived from its start time.
func FileName(r *Report) string {
	return filePrefix + r.StartedAt.Format(fileLayout) + ".json"
}

// TracesPath returns the sidecar path belonging to a report path.
func TracesPath(reportPath string) string {
	return strings.TrimSuffix(reportPath, ".json") + tracesSuffix
}

// Persist implements Sink.
func (s *FileSink) Persist(ctx context.Context, r *Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	doc, err := Encode(r.WithoutTraces())
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.Dir, FileName(r))
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	if s.IncludeTraces {
		tracesPath := TracesPath(path)
		n, err := writeTraces(tracesPath, r.Traces())
		if err != nil {
			return path, fmt.Errorf("write traces: %w", err)
		}
		s.logger.Debug("traces written",
			zap.String("path", tracesPath),
			zap.Int("outcomes", n))
	}

	return path, nil
}

func writeTraces(path string, traces []OutcomeRecord) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		return 0, err
	}

	jenc := json.NewEncoder(enc)
	for _, t := range traces {
		if err := jenc.Encode(t); err != nil {
			_ = enc.Close()
			return 0, err
		}
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return len(traces), f.Close()
}
