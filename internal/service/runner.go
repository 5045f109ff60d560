package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/jjenkins/civicwatch/internal/parser"
)

// connectorStore is the connector state the runner reads and writes.
type connectorStore interface {
	GetByID(ctx context.Context, id int64) (*model.Connector, error)
	GetOrCreateSource(ctx context.Context, connectorID int64, name string) (*model.Source, error)
	UpdateOutcome(ctx context.Context, id int64, runAt time.Time, status string) error
}

// runStore is the ingest run lifecycle the runner drives.
type runStore interface {
	Open(ctx context.Context, sourceID int64) (int64, error)
	Close(ctx context.Context, runID int64, status, logLine string, stats model.RunStats) error
}

// jurisdictionLookup resolves a connector's jurisdiction slug to its row.
type jurisdictionLookup interface {
	GetBySlug(ctx context.Context, slug string) (*model.Jurisdiction, error)
}

// Runner executes one connector end to end: run record lifecycle, parser
// dispatch, stats capture, connector outcome update.
type Runner struct {
	connectors    connectorStore
	runs          runStore
	jurisdictions jurisdictionLookup
	registry      *parser.Registry
	deps          parser.Deps
	logger        *log.Logger
	errLogger     *log.Logger
}

// NewRunner creates a new Runner.
func NewRunner(connectors connectorStore, runs runStore, jurisdictions jurisdictionLookup, registry *parser.Registry, deps parser.Deps) *Runner {
	return &Runner{
		connectors:    connectors,
		runs:          runs,
		jurisdictions: jurisdictions,
		registry:      registry,
		deps:          deps,
		logger:        log.New(os.Stdout, "", log.LstdFlags),
		errLogger:     log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}
}

// RunConnector executes one connector invocation. A configuration problem
// before the run record exists (unknown connector, disabled connector) is
// returned as an error; everything after that is captured on the run and
// reported through the result, never raised.
func (r *Runner) RunConnector(ctx context.Context, connectorID int64) (*model.RunResult, error) {
	connector, err := r.connectors.GetByID(ctx, connectorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connector %d: %w", connectorID, err)
	}
	if connector == nil {
		return nil, fmt.Errorf("connector %d not found", connectorID)
	}
	if !connector.Enabled {
		return nil, fmt.Errorf("connector %s is disabled", connector.Key)
	}

	source, err := r.connectors.GetOrCreateSource(ctx, connector.ID, connector.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source for %s: %w", connector.Key, err)
	}

	jurisdictionID := int64(0)
	if j, err := r.jurisdictions.GetBySlug(ctx, connector.JurisdictionSlug); err != nil {
		return nil, fmt.Errorf("failed to resolve jurisdiction for %s: %w", connector.Key, err)
	} else if j != nil {
		jurisdictionID = j.ID
	}

	runID, err := r.runs.Open(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open run for %s: %w", connector.Key, err)
	}

	result := &model.RunResult{
		ConnectorID:  connector.ID,
		ConnectorKey: connector.Key,
	}

	stats := model.RunStats{}
	runErr := r.invokeParser(ctx, connector, &parser.Job{
		SourceID:       source.ID,
		JurisdictionID: jurisdictionID,
		SourceURL:      connector.SourceURL,
		Stats:          &stats,
	})

	result.Stats = stats

	var logLine string
	if runErr != nil {
		result.Status = model.StatusError
		result.Error = runErr.Error()
		logLine = fmt.Sprintf("%s failed: %v", connector.Key, runErr)
		r.errLogger.Printf("Connector %s failed: %v", connector.Key, runErr)
	} else {
		// errors and success are not mutually exclusive: a parser can record
		// record-level errors and still complete
		result.Status = model.StatusSuccess
		logLine = fmt.Sprintf("%s imported %d new, %d updated, %d errors",
			connector.Key, stats.NewCount, stats.UpdatedCount, stats.ErrorCount)
		if stats.FirstError != "" {
			logLine += fmt.Sprintf(" (first: %s)", stats.FirstError)
		}
		r.logger.Printf("Connector %s: %d new, %d updated, %d errors",
			connector.Key, stats.NewCount, stats.UpdatedCount, stats.ErrorCount)
	}

	// partial stats are still worth keeping on failed runs
	if err := r.runs.Close(ctx, runID, result.Status, logLine, stats); err != nil {
		r.errLogger.Printf("Failed to close run %d for %s: %v", runID, connector.Key, err)
	}

	// unconditional, exactly once per invocation
	if err := r.connectors.UpdateOutcome(ctx, connector.ID, time.Now(), result.Status); err != nil {
		r.errLogger.Printf("Failed to update connector %s outcome: %v", connector.Key, err)
	}

	return result, nil
}

// invokeParser dispatches to the adapter registered under the connector's
// parser key. Unknown keys fail before any fetch happens.
func (r *Runner) invokeParser(ctx context.Context, connector *model.Connector, job *parser.Job) (err error) {
	p, err := r.registry.Create(connector.ParserKey, r.deps)
	if err != nil {
		return err
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parser %s panicked: %v", connector.ParserKey, rec)
		}
	}()

	return p.Run(ctx, job)
}
