package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jjenkins/civicwatch/internal/model"
)

// JobStore handles database operations for guest refresh jobs. Every
// admission rule is answered from these rows rather than process memory, so
// the guards hold across multiple stateless instances.
type JobStore struct {
	db *sql.DB
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

// Create persists a new guest job.
func (s *JobStore) Create(ctx context.Context, job *model.GuestJob) error {
	query := `
		INSERT INTO guest_jobs (id, session_id, scope, status, estimated_duration_ms,
		                        progress_message, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.SessionID,
		job.Scope,
		job.Status,
		job.EstimatedDurationMs,
		job.ProgressMessage,
		job.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create guest job: %w", err)
	}

	return nil
}

// GetByID retrieves a guest job by ID.
func (s *JobStore) GetByID(ctx context.Context, id string) (*model.GuestJob, error) {
	query := `
		SELECT id, session_id, scope, status, estimated_duration_ms,
		       progress_message, started_at, completed_at
		FROM guest_jobs
		WHERE id = $1
	`

	var j model.GuestJob
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&j.ID,
		&j.SessionID,
		&j.Scope,
		&j.Status,
		&j.EstimatedDurationMs,
		&j.ProgressMessage,
		&j.StartedAt,
		&j.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest job %s: %w", id, err)
	}

	return &j, nil
}

// Finish records the single terminal transition for a job.
func (s *JobStore) Finish(ctx context.Context, id, status, message string) error {
	query := `
		UPDATE guest_jobs
		SET status = $2, progress_message = $3, completed_at = $4
		WHERE id = $1 AND completed_at IS NULL
	`

	_, err := s.db.ExecContext(ctx, query, id, status, message, time.Now())
	if err != nil {
		return fmt.Errorf("failed to finish guest job %s: %w", id, err)
	}

	return nil
}

// CountStartedSince counts jobs started at or after the given time.
func (s *JobStore) CountStartedSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM guest_jobs WHERE started_at >= $1`

	var count int
	if err := s.db.QueryRowContext(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent jobs: %w", err)
	}

	return count, nil
}

// CountRunning counts jobs that have not reached a terminal status.
func (s *JobStore) CountRunning(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM guest_jobs WHERE status = $1`

	var count int
	if err := s.db.QueryRowContext(ctx, query, model.JobRunning).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count running jobs: %w", err)
	}

	return count, nil
}

// LastStartedForSession returns when the session last started a job, or nil
// if it never has.
func (s *JobStore) LastStartedForSession(ctx context.Context, sessionID string) (*time.Time, error) {
	query := `
		SELECT started_at
		FROM guest_jobs
		WHERE session_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	var startedAt time.Time
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last job for session: %w", err)
	}

	return &startedAt, nil
}
