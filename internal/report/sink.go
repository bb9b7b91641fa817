package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Sink persists a finished report and returns where it went.
type Sink interface {
	Persist(ctx context.Context, r *Report) (string, error)
}

// MultiSink fans a report out to several sinks. Every sink is attempted even
// if an earlier one fails.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewMultiSink creates a MultiSink. Nil sinks are ignored.
func NewMultiSink(logger *zap.Logger, sinks ...Sink) *MultiSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MultiSink{logger: logger}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len reports how many sinks are attached.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// PersistAll writes r to every sink and returns the locations that succeeded
// together with the joined failures.
func (m *MultiSink) PersistAll(ctx context.Context, r *Report) ([]string, error) {
	var (
		locations []string
		errs      []error
	)
	for _, s := range m.sinks {
		loc, err := s.Persist(ctx, r)
		if err != nil {
			m.logger.Error("failed to persist report",
				zap.String("run_id", r.RunID),
				zap.String("sink", fmt.Sprintf("%T", s)),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		m.logger.Info("report persisted",
			zap.String("run_id", r.RunID),
			zap.String("location", loc))
		locations = append(locations, loc)
	}
	return locations, errors.Join(errs...)
}

// Persist implements Sink. The first successful location is returned.
func (m *MultiSink) Persist(ctx context.Context, r *Report) (string, error) {
	locations, err := m.PersistAll(ctx, r)
	if len(locations) == 0 {
		return "", err
	}
	return locations[0], err
}
