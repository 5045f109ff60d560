package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/jjenkins/civicwatch/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type recordedOutcome struct {
	connectorID int64
	status      string
}

type fakeConnectorStore struct {
	connectors map[int64]*model.Connector
	enabled    []model.Connector
	listErr    error
	outcomes   []recordedOutcome
	sourcesFor []int64
}

func (f *fakeConnectorStore) GetByID(_ context.Context, id int64) (*model.Connector, error) {
	return f.connectors[id], nil
}

func (f *fakeConnectorStore) GetOrCreateSource(_ context.Context, connectorID int64, name string) (*model.Source, error) {
	f.sourcesFor = append(f.sourcesFor, connectorID)
	return &model.Source{ID: 100 + connectorID, ConnectorID: connectorID, Name: name}, nil
}

func (f *fakeConnectorStore) UpdateOutcome(_ context.Context, id int64, _ time.Time, status string) error {
	f.outcomes = append(f.outcomes, recordedOutcome{connectorID: id, status: status})
	return nil
}

func (f *fakeConnectorStore) ListEnabled(_ context.Context, _ []string, _ []string) ([]model.Connector, error) {
	return f.enabled, f.listErr
}

type closedRun struct {
	runID   int64
	status  string
	logLine string
	stats   model.RunStats
}

type fakeRunStore struct {
	nextRunID int64
	opened    []int64
	closed    []closedRun
	durations []time.Duration
}

func (f *fakeRunStore) Open(_ context.Context, sourceID int64) (int64, error) {
	f.nextRunID++
	f.opened = append(f.opened, sourceID)
	return f.nextRunID, nil
}

func (f *fakeRunStore) Close(_ context.Context, runID int64, status, logLine string, stats model.RunStats) error {
	f.closed = append(f.closed, closedRun{runID: runID, status: status, logLine: logLine, stats: stats})
	return nil
}

func (f *fakeRunStore) RecentSuccessDurations(_ context.Context, _ time.Time) ([]time.Duration, error) {
	return f.durations, nil
}

type fakeJurisdictionLookup struct {
	byslug map[string]*model.Jurisdiction
}

func (f *fakeJurisdictionLookup) GetBySlug(_ context.Context, slug string) (*model.Jurisdiction, error) {
	return f.byslug[slug], nil
}

// scriptedParser runs the given function as its adapter body.
type scriptedParser struct {
	fn func(ctx context.Context, job *parser.Job) error
}

func (p scriptedParser) Run(ctx context.Context, job *parser.Job) error {
	return p.fn(ctx, job)
}

func registryWith(key string, fn func(ctx context.Context, job *parser.Job) error) *parser.Registry {
	registry := parser.NewRegistry()
	registry.Register(key, func(parser.Deps) parser.Parser {
		return scriptedParser{fn: fn}
	})
	return registry
}

func testConnector(id int64, parserKey string) *model.Connector {
	return &model.Connector{
		ID:               id,
		Key:              fmt.Sprintf("austin-tx-meetings-%d", id),
		JurisdictionSlug: "austin-tx",
		Kind:             model.KindMeetings,
		ParserKey:        parserKey,
		SourceURL:        "https://example.gov/calendar",
		Enabled:          true,
	}
}

func newTestRunner(connectors *fakeConnectorStore, runs *fakeRunStore, registry *parser.Registry) *Runner {
	lookup := &fakeJurisdictionLookup{byslug: map[string]*model.Jurisdiction{
		"austin-tx": {ID: 3, Slug: "austin-tx", Type: model.JurisdictionCity},
	}}
	return NewRunner(connectors, runs, lookup, registry, parser.Deps{})
}

// --- tests ---

func TestRunConnectorSuccess(t *testing.T) {
	connectors := &fakeConnectorStore{connectors: map[int64]*model.Connector{
		1: testConnector(1, "test-parser"),
	}}
	runs := &fakeRunStore{}
	registry := registryWith("test-parser", func(_ context.Context, job *parser.Job) error {
		job.Stats.NewCount = 4
		job.Stats.UpdatedCount = 2
		job.Stats.RecordError("row 7 malformed")
		return nil
	})

	runner := newTestRunner(connectors, runs, registry)
	result, err := runner.RunConnector(context.Background(), 1)
	require.NoError(t, err)

	// a parser can record errors and still succeed
	assert.Equal(t, model.StatusSuccess, result.Status)
	assert.Equal(t, 4, result.Stats.NewCount)
	assert.Equal(t, 2, result.Stats.UpdatedCount)
	assert.Equal(t, 1, result.Stats.ErrorCount)

	require.Len(t, runs.closed, 1)
	assert.Equal(t, model.StatusSuccess, runs.closed[0].status)
	assert.Contains(t, runs.closed[0].logLine, "4 new")
	assert.Contains(t, runs.closed[0].logLine, "row 7 malformed")

	require.Len(t, connectors.outcomes, 1)
	assert.Equal(t, model.StatusSuccess, connectors.outcomes[0].status)
}

func TestRunConnectorAdapterFailureKeepsPartialStats(t *testing.T) {
	connectors := &fakeConnectorStore{connectors: map[int64]*model.Connector{
		1: testConnector(1, "test-parser"),
	}}
	runs := &fakeRunStore{}
	registry := registryWith("test-parser", func(_ context.Context, job *parser.Job) error {
		job.Stats.NewCount = 3
		return errors.New("connection reset")
	})

	runner := newTestRunner(connectors, runs, registry)
	result, err := runner.RunConnector(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, model.StatusError, result.Status)
	assert.Contains(t, result.Error, "connection reset")

	require.Len(t, runs.closed, 1)
	assert.Equal(t, model.StatusError, runs.closed[0].status)
	assert.Equal(t, 3, runs.closed[0].stats.NewCount, "partial stats are persisted on failure")

	// the connector update is unconditional
	require.Len(t, connectors.outcomes, 1)
	assert.Equal(t, model.StatusError, connectors.outcomes[0].status)
}

func TestRunConnectorUnknownParserKey(t *testing.T) {
	connectors := &fakeConnectorStore{connectors: map[int64]*model.Connector{
		1: testConnector(1, "no-such-parser"),
	}}
	runs := &fakeRunStore{}

	runner := newTestRunner(connectors, runs, parser.NewRegistry())
	result, err := runner.RunConnector(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, model.StatusError, result.Status)
	assert.Contains(t, result.Error, "unknown parser key")

	// the run existed and was closed; no partial execution happened
	require.Len(t, runs.closed, 1)
	assert.Equal(t, model.StatusError, runs.closed[0].status)
	assert.Zero(t, runs.closed[0].stats.NewCount)
}

func TestRunConnectorNotFound(t *testing.T) {
	connectors := &fakeConnectorStore{connectors: map[int64]*model.Connector{}}
	runs := &fakeRunStore{}

	runner := newTestRunner(connectors, runs, parser.NewRegistry())
	_, err := runner.RunConnector(context.Background(), 99)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Empty(t, runs.opened, "no run record for a missing connector")
	assert.Empty(t, connectors.outcomes)
}

func TestRunConnectorDisabled(t *testing.T) {
	disabled := testConnector(1, "test-parser")
	disabled.Enabled = false
	connectors := &fakeConnectorStore{connectors: map[int64]*model.Connector{1: disabled}}
	runs := &fakeRunStore{}

	runner := newTestRunner(connectors, runs, parser.NewRegistry())
	_, err := runner.RunConnector(context.Background(), 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
	assert.Empty(t, runs.opened)
}

func TestRunConnectorPanickingParserClosesRun(t *testing.T) {
	connectors := &fakeConnectorStore{connectors: map[int64]*model.Connector{
		1: testConnector(1, "test-parser"),
	}}
	runs := &fakeRunStore{}
	registry := registryWith("test-parser", func(_ context.Context, _ *parser.Job) error {
		panic("nil dereference in feed parsing")
	})

	runner := newTestRunner(connectors, runs, registry)
	result, err := runner.RunConnector(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, model.StatusError, result.Status)
	assert.True(t, strings.Contains(result.Error, "panicked"))
	require.Len(t, runs.closed, 1)
	require.Len(t, connectors.outcomes, 1)
}
