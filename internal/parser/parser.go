// Package parser holds the pluggable source adapters the run executor
// dispatches by key, and the registry they register themselves in.
package parser

import (
	"context"

	"github.com/jjenkins/civicwatch/internal/model"
)

// Sink persists normalized civic records. Satisfied by store.CivicStore.
type Sink interface {
	UpsertMeeting(ctx context.Context, m *model.Meeting) (created bool, err error)
	UpsertElection(ctx context.Context, e *model.Election) (created bool, err error)
	UpsertOrdinance(ctx context.Context, o *model.Ordinance) (created bool, err error)
}

// Job carries everything an adapter needs for one run. Stats is filled in as
// the adapter goes; whatever is there when it returns gets persisted, success
// or not.
type Job struct {
	SourceID       int64
	JurisdictionID int64
	SourceURL      string
	Stats          *model.RunStats
}

// Parser fetches one external source, normalizes its records and upserts
// them. A returned error marks the whole run as failed; record-level problems
// go through Stats.RecordError instead.
type Parser interface {
	Run(ctx context.Context, job *Job) error
}

// Deps is what factories get to construct an adapter.
type Deps struct {
	Sink   Sink
	Client *Client
}
