package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jjenkins/civicwatch/internal/model"
)

// RunStore handles database operations for ingest runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Open creates a new running ingest run for the source and returns its ID.
func (s *RunStore) Open(ctx context.Context, sourceID int64) (int64, error) {
	query := `
		INSERT INTO ingest_runs (source_id, status, log, stats, started_at)
		VALUES ($1, $2, '', '{}', $3)
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query, sourceID, model.StatusRunning, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to open ingest run: %w", err)
	}

	return id, nil
}

// Close finishes an ingest run exactly once, recording the terminal status,
// the log line and whatever stats exist. Closed runs are never mutated again.
func (s *RunStore) Close(ctx context.Context, runID int64, status, logLine string, stats model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode run stats: %w", err)
	}

	query := `
		UPDATE ingest_runs
		SET status = $2, log = $3, stats = $4, finished_at = $5
		WHERE id = $1 AND finished_at IS NULL
	`

	_, err = s.db.ExecContext(ctx, query, runID, status, logLine, statsJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to close ingest run %d: %w", runID, err)
	}

	return nil
}

// RecentSuccessDurations returns the durations of successful runs closed since
// the given time, most recent first. Filtering of implausible durations is
// left to the caller.
func (s *RunStore) RecentSuccessDurations(ctx context.Context, since time.Time) ([]time.Duration, error) {
	query := `
		SELECT started_at, finished_at
		FROM ingest_runs
		WHERE status = $1 AND finished_at IS NOT NULL AND finished_at >= $2
		ORDER BY finished_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, model.StatusSuccess, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get run durations: %w", err)
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var startedAt, finishedAt time.Time
		if err := rows.Scan(&startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run times: %w", err)
		}
		durations = append(durations, finishedAt.Sub(startedAt))
	}

	return durations, rows.Err()
}

// GetBySource retrieves the run history for one source, most recent first.
func (s *RunStore) GetBySource(ctx context.Context, sourceID int64, limit int) ([]model.IngestRun, error) {
	query := `
		SELECT id, source_id, status, log, stats, started_at, finished_at
		FROM ingest_runs
		WHERE source_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs for source %d: %w", sourceID, err)
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var r model.IngestRun
		var statsJSON []byte
		err := rows.Scan(
			&r.ID,
			&r.SourceID,
			&r.Status,
			&r.Log,
			&statsJSON,
			&r.StartedAt,
			&r.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		if len(statsJSON) > 0 {
			if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
				return nil, fmt.Errorf("failed to decode stats for run %d: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
