package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jjenkins/civicwatch/internal/model"
)

// connectorLister is the registry read path used to select connectors.
type connectorLister interface {
	ListEnabled(ctx context.Context, kinds []string, jurisdictionSlugs []string) ([]model.Connector, error)
}

// connectorRunner runs a single connector.
type connectorRunner interface {
	RunConnector(ctx context.Context, connectorID int64) (*model.RunResult, error)
}

// Orchestrator fans one scope out over all matching enabled connectors.
// Execution is strictly sequential with a pacing delay between runs: the
// delay throttles outbound requests against third-party government sites, so
// callers must not parallelize this loop.
type Orchestrator struct {
	connectors connectorLister
	runner     connectorRunner
	pacing     time.Duration
	logger     *log.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(connectors connectorLister, runner connectorRunner, pacing time.Duration) *Orchestrator {
	return &Orchestrator{
		connectors: connectors,
		runner:     runner,
		pacing:     pacing,
		logger:     log.New(os.Stdout, "", log.LstdFlags),
	}
}

// RunScope runs every enabled connector of the tracked kinds matching the
// scope. An empty scope means no jurisdiction restriction. Individual
// connector failures are captured in the results list and never abort the
// loop; only a failure of the orchestration itself returns an error.
func (o *Orchestrator) RunScope(ctx context.Context, scope string) (*model.FanoutResult, error) {
	slugs := ParseScope(scope)

	connectors, err := o.connectors.ListEnabled(ctx, trackedKinds, slugs)
	if err != nil {
		return nil, fmt.Errorf("failed to select connectors: %w", err)
	}

	result := &model.FanoutResult{}

	for idx, connector := range connectors {
		o.logger.Printf("[%d/%d] Running connector %s...", idx+1, len(connectors), connector.Key)

		runResult, err := o.runner.RunConnector(ctx, connector.ID)
		if err != nil {
			runResult = &model.RunResult{
				ConnectorID:  connector.ID,
				ConnectorKey: connector.Key,
				Status:       model.StatusError,
				Error:        err.Error(),
			}
		}
		result.Results = append(result.Results, *runResult)

		// pacing delay between consecutive runs, not after the last
		if idx < len(connectors)-1 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(o.pacing):
			}
		}
	}

	failed := result.Failed()
	result.Summary = fmt.Sprintf("ran %d connectors: %d succeeded, %d failed",
		len(result.Results), len(result.Results)-failed, failed)

	return result, nil
}
