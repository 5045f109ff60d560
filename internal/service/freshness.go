package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jjenkins/civicwatch/internal/config"
	"github.com/jjenkins/civicwatch/internal/model"
)

// jurisdictionIDResolver resolves scope slugs to jurisdiction IDs by direct
// lookup. Freshness deliberately does not expand the hierarchy: the verdict
// is about exactly what was requested, not its descendants.
type jurisdictionIDResolver interface {
	GetIDsBySlugs(ctx context.Context, slugs []string) ([]int64, error)
}

// rowCounter counts current rows per tracked table for a jurisdiction set.
type rowCounter interface {
	CountByJurisdictions(ctx context.Context, jurisdictionIDs []int64) (map[string]int, error)
}

// Evaluator answers "is the data we are about to show live or seed" for a
// scope. Pure read; safe to call arbitrarily often and concurrently with
// runs in progress.
type Evaluator struct {
	connectors    connectorLister
	jurisdictions jurisdictionIDResolver
	rows          rowCounter
	window        time.Duration
	now           func() time.Time
}

// NewEvaluator creates a new freshness Evaluator.
func NewEvaluator(connectors connectorLister, jurisdictions jurisdictionIDResolver, rows rowCounter, cfg config.Config) *Evaluator {
	return &Evaluator{
		connectors:    connectors,
		jurisdictions: jurisdictions,
		rows:          rows,
		window:        cfg.FreshnessWindow,
		now:           time.Now,
	}
}

// Evaluate computes the freshness verdict for a scope. Seed is a valid,
// expected state, not an error.
func (e *Evaluator) Evaluate(ctx context.Context, scope string) (*model.FreshnessVerdict, error) {
	slugs := ParseScope(scope)

	jurisdictionIDs, err := e.jurisdictions.GetIDsBySlugs(ctx, slugs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scope jurisdictions: %w", err)
	}

	connectors, err := e.connectors.ListEnabled(ctx, trackedKinds, slugs)
	if err != nil {
		return nil, fmt.Errorf("failed to gather connectors: %w", err)
	}

	cutoff := e.now().Add(-e.window)
	recentRuns := 0
	var lastRunAt *time.Time
	for _, c := range connectors {
		if !c.LastStatus.Valid || c.LastStatus.String != model.StatusSuccess {
			continue
		}
		if !c.LastRunAt.Valid || c.LastRunAt.Time.Before(cutoff) {
			continue
		}
		recentRuns++
		t := c.LastRunAt.Time
		if lastRunAt == nil || t.After(*lastRunAt) {
			lastRunAt = &t
		}
	}

	tableCounts, err := e.rows.CountByJurisdictions(ctx, jurisdictionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	totalRows := 0
	for _, n := range tableCounts {
		totalRows += n
	}

	verdict := &model.FreshnessVerdict{
		LastRunAt:   lastRunAt,
		TableCounts: tableCounts,
		ScopeUsed:   slugs,
		Diagnostics: model.FreshnessDiagnostics{
			EnabledConnectors: len(connectors),
			RecentRuns:        recentRuns,
		},
	}

	switch {
	case recentRuns == 0:
		verdict.Mode = model.ModeSeed
		verdict.Reason = model.ReasonNoSuccessfulRuns
	case totalRows == 0:
		verdict.Mode = model.ModeSeed
		verdict.Reason = model.ReasonTablesEmpty
	default:
		verdict.Mode = model.ModeLive
		verdict.Reason = model.ReasonOK
	}

	return verdict, nil
}
