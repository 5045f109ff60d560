package model

import (
	"database/sql"
	"time"
)

// Guest job statuses. A job gets exactly one terminal transition, set by the
// fan-out completion callback.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// GuestJob is one externally-triggered, rate-limited refresh request spanning
// potentially many connector runs.
type GuestJob struct {
	ID                  string
	SessionID           sql.NullString
	Scope               string
	Status              string
	EstimatedDurationMs int64
	ProgressMessage     string
	StartedAt           time.Time
	CompletedAt         sql.NullTime
}

// RefreshReceipt is returned to the caller the moment a refresh is admitted,
// before any connector has run.
type RefreshReceipt struct {
	JobID               string     `json:"jobId"`
	StartedAt           time.Time  `json:"startedAt"`
	PreviousLastRunAt   *time.Time `json:"previousLastRunAt"`
	EstimatedDurationMs int64      `json:"estimatedDurationMs"`
}
