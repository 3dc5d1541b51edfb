// Package sqlstore persists usage records and budgets in a relational store.
// Queries are written with "?" placeholders and rebound per driver, so the
// same store runs on the embedded sqlite backend and on postgres.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docstream/ocrkit/internal/core/domain"
	"github.com/docstream/ocrkit/internal/core/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_records (
    id TEXT PRIMARY KEY,
    ts TIMESTAMP NOT NULL,
    provider TEXT NOT NULL,
    input_path TEXT NOT NULL,
    input_size_mb DOUBLE PRECISION NOT NULL,
    duration_seconds DOUBLE PRECISION NOT NULL,
    cost DOUBLE PRECISION NOT NULL,
    success BOOLEAN NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    character_count BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_records_ts ON usage_records (ts);
CREATE INDEX IF NOT EXISTS idx_usage_records_provider ON usage_records (provider);
CREATE TABLE IF NOT EXISTS budgets (
    provider TEXT PRIMARY KEY,
    monthly_limit DOUBLE PRECISION NOT NULL
);
`

type Store struct {
	db    *sqlx.DB
	clock ports.Clock
}

func New(db *sqlx.DB, clock ports.Clock) *Store {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Store{db: db, clock: clock}
}

// Open connects the named backend. Supported drivers are "sqlite" (the
// default) and "pgx".
func Open(driver, dsn string, clock ports.Clock) (*Store, error) {
	var name string
	switch driver {
	case "", "sqlite":
		name = "sqlite"
	case "pgx", "postgres":
		name = "pgx"
	default:
		return nil, fmt.Errorf("unsupported ledger driver: %q", driver)
	}
	db, err := sqlx.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return New(db, clock), nil
}

func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the tables on first use. Statements are idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

func (s *Store) RecordUsage(ctx context.Context, rec domain.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.clock.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO usage_records (id, ts, provider, input_path, input_size_mb, duration_seconds, cost, success, confidence, character_count)
VALUES (:id, :ts, :provider, :input_path, :input_size_mb, :duration_seconds, :cost, :success, :confidence, :character_count)
`, rec)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// monthStart is the UTC boundary of the current calendar month. Computed here
// rather than in SQL so both backends agree on the window.
func (s *Store) monthStart() time.Time {
	now := s.clock.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (s *Store) CurrentMonthCost(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.GetContext(ctx, &total, s.db.Rebind(`
SELECT COALESCE(SUM(cost), 0) FROM usage_records WHERE ts >= ?
`), s.monthStart())
	if err != nil {
		return 0, fmt.Errorf("current month cost: %w", err)
	}
	return total, nil
}

func (s *Store) CurrentMonthRequests(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, s.db.Rebind(`
SELECT COUNT(*) FROM usage_records WHERE ts >= ?
`), s.monthStart())
	if err != nil {
		return 0, fmt.Errorf("current month requests: %w", err)
	}
	return count, nil
}

func (s *Store) CostByProvider(ctx context.Context, windowDays int) (map[string]float64, error) {
	since := s.clock.Now().UTC().AddDate(0, 0, -windowDays)
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(`
SELECT provider, COALESCE(SUM(cost), 0)
FROM usage_records
WHERE ts >= ?
GROUP BY provider
`), since)
	if err != nil {
		return nil, fmt.Errorf("cost by provider: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var provider string
		var cost float64
		if err := rows.Scan(&provider, &cost); err != nil {
			return nil, fmt.Errorf("scan provider cost: %w", err)
		}
		out[provider] = cost
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider costs: %w", err)
	}
	return out, nil
}

func (s *Store) UsageStats(ctx context.Context, windowDays int) (domain.UsageStats, error) {
	since := s.clock.Now().UTC().AddDate(0, 0, -windowDays)
	stats := domain.UsageStats{
		PeriodDays: windowDays,
		ByProvider: make(map[string]domain.ProviderUsage),
	}

	row := s.db.QueryRowxContext(ctx, s.db.Rebind(`
SELECT COUNT(*),
       COALESCE(SUM(cost), 0),
       COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
       COALESCE(AVG(duration_seconds), 0),
       COALESCE(AVG(confidence), 0),
       COALESCE(SUM(character_count), 0)
FROM usage_records
WHERE ts >= ?
`), since)
	err := row.Scan(&stats.TotalRequests, &stats.TotalCost, &stats.SuccessfulCount,
		&stats.AvgDuration, &stats.AvgConfidence, &stats.TotalCharacters)
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("usage totals: %w", err)
	}
	if stats.TotalRequests > 0 {
		stats.AvgCostPerRequest = stats.TotalCost / float64(stats.TotalRequests)
		stats.SuccessRate = float64(stats.SuccessfulCount) / float64(stats.TotalRequests) * 100
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(`
SELECT provider,
       COUNT(*),
       COALESCE(SUM(cost), 0),
       COALESCE(AVG(duration_seconds), 0),
       COALESCE(AVG(confidence), 0)
FROM usage_records
WHERE ts >= ?
GROUP BY provider
ORDER BY provider
`), since)
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("usage by provider: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pu domain.ProviderUsage
		if err := rows.Scan(&pu.Provider, &pu.Requests, &pu.Cost, &pu.AvgDuration, &pu.AvgConfidence); err != nil {
			return domain.UsageStats{}, fmt.Errorf("scan provider usage: %w", err)
		}
		if pu.Requests > 0 {
			pu.CostPerRequest = pu.Cost / float64(pu.Requests)
		}
		stats.ByProvider[pu.Provider] = pu
	}
	if err := rows.Err(); err != nil {
		return domain.UsageStats{}, fmt.Errorf("iterate provider usage: %w", err)
	}
	return stats, nil
}

func (s *Store) SetBudget(ctx context.Context, provider string, monthlyLimit float64) error {
	if monthlyLimit < 0 {
		return fmt.Errorf("set budget: negative limit %.2f", monthlyLimit)
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
INSERT INTO budgets (provider, monthly_limit) VALUES (?, ?)
ON CONFLICT (provider) DO UPDATE SET monthly_limit = excluded.monthly_limit
`), provider, monthlyLimit)
	if err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}

func (s *Store) Budgets(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT provider, monthly_limit FROM budgets`)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var provider string
		var limit float64
		if err := rows.Scan(&provider, &limit); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out[provider] = limit
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (s *Store) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := s.clock.Now().UTC().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
DELETE FROM usage_records WHERE ts < ?
`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup usage records: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup rows affected: %w", err)
	}
	return deleted, nil
}

var _ ports.UsageLedger = (*Store)(nil)
