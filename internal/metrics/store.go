package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ai-diet-planner/internal/shared"
)

// OutcomeOK marks a generation that produced a plan.
const OutcomeOK = "ok"

// timestampLayout keeps stored timestamps comparable and readable by sqlite date().
const timestampLayout = "2006-01-02 15:04:05"

// ExecutionMetric records metadata for a single completion call.
type ExecutionMetric struct {
	AgentName        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Outcome          string
	Timestamp        time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	outcome := m.Outcome
	if outcome == "" {
		outcome = OutcomeOK
	}

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO execution_metrics (agent_name, model, prompt_tokens, completion_tokens, latency_ms, outcome, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.AgentName, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, outcome, ts.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution metric: %w", err)
	}
	return nil
}

// RecordMeta records a successful generation from shared.AgentMeta. Calls
// that reported no token usage are skipped.
func (s *Store) RecordMeta(meta shared.AgentMeta) error {
	return s.RecordOutcome(meta, OutcomeOK)
}

// RecordOutcome records a generation with the given outcome label. Failed
// generations are always recorded, even when the service reported no usage.
func (s *Store) RecordOutcome(meta shared.AgentMeta, outcome string) error {
	if outcome == "" {
		outcome = OutcomeOK
	}
	if outcome == OutcomeOK && meta.Usage.IsZero() {
		return nil
	}
	m := MapUsage(meta.AgentName, meta.Usage, meta.Latency)
	m.Outcome = outcome
	return s.Record(m)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
	Failures        int
	AvgLatencyMS    int64
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(timestampLayout)
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT date(timestamp) AS day,
		        SUM(prompt_tokens),
		        SUM(completion_tokens),
		        COUNT(*),
		        SUM(CASE WHEN outcome != 'ok' THEN 1 ELSE 0 END),
		        AVG(latency_ms)
		   FROM execution_metrics
		  WHERE timestamp >= ?
		  GROUP BY day
		  ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var (
			day        sql.NullString
			prompt     sql.NullInt64
			completion sql.NullInt64
			count      int
			failures   sql.NullInt64
			latency    sql.NullFloat64
		)
		if err := rows.Scan(&day, &prompt, &completion, &count, &failures, &latency); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}

		u := DailyUsage{
			Date:            "Unknown",
			TotalPrompt:     int(prompt.Int64),
			TotalCompletion: int(completion.Int64),
			TotalExecution:  count,
			Failures:        int(failures.Int64),
			AvgLatencyMS:    int64(latency.Float64),
		}
		if day.Valid {
			u.Date = day.String
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(timestampLayout)
	res, err := s.db.ExecContext(context.Background(),
		`DELETE FROM execution_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup execution metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapUsage converts shared.TokenUsage to an ExecutionMetric.
func MapUsage(agentName string, usage shared.TokenUsage, latency time.Duration) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        agentName,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		Timestamp:        time.Now().UTC(),
	}
}
