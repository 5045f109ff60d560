package model

import (
	"database/sql"
	"time"
)

// Connector data kinds.
const (
	KindMeetings   = "meetings"
	KindElections  = "elections"
	KindOrdinances = "ordinances"
	KindRSS        = "rss"
	KindDocs       = "docs"
)

// Connector run outcomes recorded on the connector row.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusRunning = "running"
)

// Connector binds one jurisdiction and data kind to the parser that fetches it.
// Rows are created by configuration; only last_run_at and last_status are
// mutated here, once per run.
type Connector struct {
	ID               int64
	Key              string
	JurisdictionSlug string
	Kind             string
	ParserKey        string
	SourceURL        string
	Enabled          bool
	SourceID         sql.NullInt64
	LastRunAt        sql.NullTime
	LastStatus       sql.NullString
	CreatedAt        time.Time
}

// Source is the persisted storage handle for a connector, created lazily on
// its first run and immutable afterwards.
type Source struct {
	ID          int64
	ConnectorID int64
	Name        string
	CreatedAt   time.Time
}

// IngestRun is one timestamped execution record of a single connector
// invocation. Opened running, closed exactly once, never mutated after that.
type IngestRun struct {
	ID         int64
	SourceID   int64
	Status     string
	Log        string
	Stats      RunStats
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// maxRecordedErrors caps the error list carried in run stats; the count keeps
// incrementing past the cap.
const maxRecordedErrors = 25

// RunStats is the outcome contract a parser adapter fills in during a run.
// Counts are non-negative; Errors may be truncated relative to ErrorCount, but
// FirstError always equals Errors[0] when any error was recorded.
type RunStats struct {
	NewCount     int      `json:"newCount"`
	UpdatedCount int      `json:"updatedCount"`
	ErrorCount   int      `json:"errorCount"`
	Errors       []string `json:"errors,omitempty"`
	FirstError   string   `json:"firstError,omitempty"`
}

// RecordError notes one record-level failure without aborting the run.
func (s *RunStats) RecordError(msg string) {
	s.ErrorCount++
	if s.FirstError == "" {
		s.FirstError = msg
	}
	if len(s.Errors) < maxRecordedErrors {
		s.Errors = append(s.Errors, msg)
	}
}

// RunResult is what the run executor reports for one connector invocation.
type RunResult struct {
	ConnectorID  int64    `json:"connectorId"`
	ConnectorKey string   `json:"connectorKey"`
	Status       string   `json:"status"`
	Stats        RunStats `json:"stats"`
	Error        string   `json:"error,omitempty"`
}

// FanoutResult aggregates one scope fan-out over many connectors.
type FanoutResult struct {
	Summary string      `json:"summary"`
	Results []RunResult `json:"results"`
}

// Failed counts the connectors that ended in error.
func (f *FanoutResult) Failed() int {
	n := 0
	for _, r := range f.Results {
		if r.Status == StatusError {
			n++
		}
	}
	return n
}
