package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

var schemaQueries = []string{
	`CREATE TABLE IF NOT EXISTS inferload_runs (
		run_id VARCHAR(64) PRIMARY KEY,
		target TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inferload_phase_summaries (
		id SERIAL PRIMARY KEY,
		run_id VARCHAR(64) NOT NULL REFERENCES inferload_runs(run_id),
		test_type VARCHAR(32) NOT NULL,
		phase VARCHAR(255) NOT NULL,
		target_rps DOUBLE PRECISION NOT NULL,
		total INTEGER NOT NULL,
		successful INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		success_rate DOUBLE PRECISION NOT NULL,
		avg_latency DOUBLE PRECISION NOT NULL,
		median_latency DOUBLE PRECISION NOT NULL,
		p95_latency DOUBLE PRECISION NOT NULL,
		p99_latency DOUBLE PRECISION NOT NULL,
		min_latency DOUBLE PRECISION NOT NULL,
		max_latency DOUBLE PRECISION NOT NULL,
		total_tokens INTEGER NOT NULL,
		throughput_rps DOUBLE PRECISION NOT NULL,
		interrupted BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE(run_id, test_type, phase)
	)`,
}

const insertRun = `INSERT INTO inferload_runs (run_id, target, started_at, finished_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (run_id) DO UPDATE SET finished_at = EXCLUDED.finished_at`

const insertPhase = `INSERT INTO inferload_phase_summaries (
		run_id, test_type, phase, target_rps, total, successful, failed, success_rate,
		avg_latency, median_latency, p95_latency, p99_latency, min_latency, max_latency,
		total_tokens, throughput_rps, interrupted)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (run_id, test_type, phase) DO NOTHING`

// PostgresSink stores one row per run and one row per phase summary.
type PostgresSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSink opens a connection pool for dsn.
func NewPostgresSink(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewPostgresSinkWithDB(db, logger), nil
}

// NewPostgresSinkWithDB wraps an open database.
func NewPostgresSinkWithDB(db *sql.DB, logger *zap.Logger) *PostgresSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSink{db: db, logger: logger}
}

// Close closes the database connection
func (p *PostgresSink) Close() error {
	return p.db.Close()
}

// CreateTables creates the summary tables if they do not exist.
func (p *PostgresSink) CreateTables(ctx context.Context) error {
	for _, query := range schemaQueries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// Persist implements Sink. All rows for a run are written in one transaction.
func (p *PostgresSink) Persist(ctx context.Context, r *Report) (string, error) {
	if err := p.CreateTables(ctx); err != nil {
		return "", err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, insertRun, r.RunID, r.Target, r.StartedAt, r.FinishedAt); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	rows := 0
	for _, key := range r.ScenarioKeys() {
		sr := r.Scenarios[key]
		for _, ph := range sr.Phases {
			s := ph.Summary
			_, err := tx.ExecContext(ctx, insertPhase,
				r.RunID, sr.TestType, ph.Name, ph.TargetRPS,
				s.Total, s.Successful, s.Failed, s.SuccessRate,
				s.AvgLatency, s.MedianLatency, s.P95Latency, s.P99Latency, s.MinLatency, s.MaxLatency,
				s.TotalTokens, ph.ThroughputRPS, ph.Interrupted)
			if err != nil {
				return "", fmt.Errorf("insert phase %s/%s: %w", sr.TestType, ph.Name, err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	p.logger.Debug("phase summaries stored",
		zap.String("run_id", r.RunID),
		zap.Int("rows", rows))
	return "postgres://inferload_runs/" + r.RunID, nil
}
