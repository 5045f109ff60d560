package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/civicwatch/internal/config"
	"github.com/jjenkins/civicwatch/internal/model"
)

// ErrSystemBusy rejects a refresh when either global capacity guard trips.
var ErrSystemBusy = errors.New("refresh system is busy, try again later")

// CooldownError rejects a refresh from a session that started one too
// recently. Distinct from busy so clients can show a wait-time message.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("refresh already requested, wait %s", e.RetryAfter.Round(time.Second))
}

// guestJobStore is the durable job record store every admission rule is
// answered from.
type guestJobStore interface {
	Create(ctx context.Context, job *model.GuestJob) error
	Finish(ctx context.Context, id, status, message string) error
	CountStartedSince(ctx context.Context, since time.Time) (int, error)
	CountRunning(ctx context.Context) (int, error)
	LastStartedForSession(ctx context.Context, sessionID string) (*time.Time, error)
}

// durationSampler supplies historical run durations for the ETA.
type durationSampler interface {
	RecentSuccessDurations(ctx context.Context, since time.Time) ([]time.Duration, error)
}

// scopeRunner is the fan-out the manager launches in the background.
type scopeRunner interface {
	RunScope(ctx context.Context, scope string) (*model.FanoutResult, error)
}

// taskDispatcher hands detached work to the background workers.
type taskDispatcher interface {
	Dispatch(name string, fn func(ctx context.Context) error, done func(err error)) error
}

// JobManager is the externally-triggered, rate-limited refresh entry point.
// Admission, ETA and launch; the HTTP response never waits for the fan-out.
type JobManager struct {
	jobs       guestJobStore
	runs       durationSampler
	connectors connectorLister
	runner     scopeRunner
	dispatcher taskDispatcher
	cfg        config.Config
	logger     *log.Logger
	errLogger  *log.Logger
	now        func() time.Time
}

// NewJobManager creates a new JobManager.
func NewJobManager(jobs guestJobStore, runs durationSampler, connectors connectorLister, runner scopeRunner, dispatcher taskDispatcher, cfg config.Config) *JobManager {
	return &JobManager{
		jobs:       jobs,
		runs:       runs,
		connectors: connectors,
		runner:     runner,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     log.New(os.Stdout, "", log.LstdFlags),
		errLogger:  log.New(os.Stderr, "ERROR: ", log.LstdFlags),
		now:        time.Now,
	}
}

// RequestRefresh admits or rejects a guest refresh. Admission rules are
// evaluated in order and the first match wins: hourly volume guard, running
// concurrency guard, then per-session cooldown. On admission the fan-out is
// launched detached and the receipt returns immediately.
func (m *JobManager) RequestRefresh(ctx context.Context, scope, sessionID string) (*model.RefreshReceipt, error) {
	now := m.now()

	started, err := m.jobs.CountStartedSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to check job volume: %w", err)
	}
	if started >= m.cfg.HourlyJobCeiling {
		return nil, ErrSystemBusy
	}

	running, err := m.jobs.CountRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check running jobs: %w", err)
	}
	if running >= m.cfg.RunningJobCeiling {
		return nil, ErrSystemBusy
	}

	if sessionID != "" {
		last, err := m.jobs.LastStartedForSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session cooldown: %w", err)
		}
		if last != nil {
			if elapsed := now.Sub(*last); elapsed < m.cfg.SessionCooldown {
				return nil, &CooldownError{RetryAfter: m.cfg.SessionCooldown - elapsed}
			}
		}
	}

	estimate := m.estimateDurationMs(ctx, now)
	previousLastRunAt := m.previousLastRunAt(ctx, scope)

	job := &model.GuestJob{
		ID:                  uuid.NewString(),
		SessionID:           sql.NullString{String: sessionID, Valid: sessionID != ""},
		Scope:               scope,
		Status:              model.JobRunning,
		EstimatedDurationMs: estimate,
		ProgressMessage:     "refresh started",
		StartedAt:           now,
	}
	if err := m.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create guest job: %w", err)
	}

	m.logger.Printf("Guest job %s admitted (scope %q, estimate %dms)", job.ID, scope, estimate)

	err = m.dispatcher.Dispatch("refresh "+job.ID,
		func(taskCtx context.Context) error {
			_, err := m.runner.RunScope(taskCtx, scope)
			return err
		},
		func(err error) {
			m.CompleteJob(job.ID, err)
		},
	)
	if err != nil {
		// the fan-out could not even be launched; that is a job-level failure
		m.CompleteJob(job.ID, err)
	}

	return &model.RefreshReceipt{
		JobID:               job.ID,
		StartedAt:           now,
		PreviousLastRunAt:   previousLastRunAt,
		EstimatedDurationMs: estimate,
	}, nil
}

// CompleteJob records the job's single terminal transition. The verdict
// depends only on whether the fan-out invocation itself failed; connectors
// failing inside a completed fan-out are business as usual.
func (m *JobManager) CompleteJob(jobID string, fanoutErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := model.JobCompleted
	message := "refresh complete"
	if fanoutErr != nil {
		status = model.JobFailed
		message = fmt.Sprintf("refresh failed: %v", fanoutErr)
		m.errLogger.Printf("Guest job %s failed: %v", jobID, fanoutErr)
	}

	if err := m.jobs.Finish(ctx, jobID, status, message); err != nil {
		m.errLogger.Printf("Failed to finish guest job %s: %v", jobID, err)
	}
}

// estimateDurationMs predicts the refresh duration from the mean of recent
// successful run durations, ignoring samples outside (0, max] ms to guard
// against clock skew and stuck runs. No qualifying samples means the fixed
// default.
func (m *JobManager) estimateDurationMs(ctx context.Context, now time.Time) int64 {
	durations, err := m.runs.RecentSuccessDurations(ctx, now.Add(-m.cfg.EstimateWindow))
	if err != nil {
		m.errLogger.Printf("Failed to sample run durations: %v", err)
		return m.cfg.DefaultEstimateMs
	}

	var total, count int64
	for _, d := range durations {
		ms := d.Milliseconds()
		if ms <= 0 || ms > m.cfg.EstimateMaxDurationMs {
			continue
		}
		total += ms
		count++
	}

	if count == 0 {
		return m.cfg.DefaultEstimateMs
	}
	return total / count
}

// previousLastRunAt finds the newest last_run_at among enabled connectors
// matching the scope, so pollers can detect completion by watching for a
// newer timestamp. Best effort; nil when nothing has run.
func (m *JobManager) previousLastRunAt(ctx context.Context, scope string) *time.Time {
	connectors, err := m.connectors.ListEnabled(ctx, trackedKinds, ParseScope(scope))
	if err != nil {
		m.errLogger.Printf("Failed to look up previous run time: %v", err)
		return nil
	}

	var newest *time.Time
	for _, c := range connectors {
		if !c.LastRunAt.Valid {
			continue
		}
		t := c.LastRunAt.Time
		if newest == nil || t.After(*newest) {
			newest = &t
		}
	}
	return newest
}
