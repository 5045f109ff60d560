package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jjenkins/civicwatch/internal/config"
	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type finishedJob struct {
	id      string
	status  string
	message string
}

type fakeJobStore struct {
	started        int
	running        int
	lastForSession map[string]time.Time
	created        []*model.GuestJob
	finished       []finishedJob
}

func (f *fakeJobStore) Create(_ context.Context, job *model.GuestJob) error {
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobStore) Finish(_ context.Context, id, status, message string) error {
	f.finished = append(f.finished, finishedJob{id: id, status: status, message: message})
	return nil
}

func (f *fakeJobStore) CountStartedSince(_ context.Context, _ time.Time) (int, error) {
	return f.started, nil
}

func (f *fakeJobStore) CountRunning(_ context.Context) (int, error) {
	return f.running, nil
}

func (f *fakeJobStore) LastStartedForSession(_ context.Context, sessionID string) (*time.Time, error) {
	if t, ok := f.lastForSession[sessionID]; ok {
		return &t, nil
	}
	return nil, nil
}

type fakeScopeRunner struct {
	err    error
	scopes []string
}

func (f *fakeScopeRunner) RunScope(_ context.Context, scope string) (*model.FanoutResult, error) {
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	return &model.FanoutResult{Summary: "ran 0 connectors: 0 succeeded, 0 failed"}, nil
}

// syncDispatcher runs the task inline so tests observe completion directly.
type syncDispatcher struct {
	err error
}

func (d syncDispatcher) Dispatch(_ string, fn func(ctx context.Context) error, done func(err error)) error {
	if d.err != nil {
		return d.err
	}
	done(fn(context.Background()))
	return nil
}

func testJobConfig() config.Config {
	return config.Config{
		HourlyJobCeiling:      50,
		RunningJobCeiling:     20,
		SessionCooldown:       5 * time.Minute,
		DefaultEstimateMs:     120000,
		EstimateWindow:        30 * 24 * time.Hour,
		EstimateMaxDurationMs: 600000,
	}
}

func newTestManager(jobs *fakeJobStore, runs *fakeRunStore, connectors *fakeConnectorStore, runner *fakeScopeRunner, dispatcher taskDispatcher) *JobManager {
	m := NewJobManager(jobs, runs, connectors, runner, dispatcher, testJobConfig())
	m.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return m
}

// --- tests ---

func TestRequestRefreshAdmitted(t *testing.T) {
	jobs := &fakeJobStore{}
	runner := &fakeScopeRunner{}
	lastRun := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	connectors := &fakeConnectorStore{enabled: []model.Connector{
		{ID: 1, Key: "austin-tx-meetings", LastRunAt: sql.NullTime{Time: lastRun, Valid: true}},
	}}

	m := newTestManager(jobs, &fakeRunStore{}, connectors, runner, syncDispatcher{})
	receipt, err := m.RequestRefresh(context.Background(), "city:austin-tx", "sess-1")
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.JobID)
	require.NotNil(t, receipt.PreviousLastRunAt)
	assert.Equal(t, lastRun, *receipt.PreviousLastRunAt)
	assert.Equal(t, int64(120000), receipt.EstimatedDurationMs)

	require.Len(t, jobs.created, 1)
	assert.Equal(t, model.JobRunning, jobs.created[0].Status)
	assert.Equal(t, "city:austin-tx", jobs.created[0].Scope)

	// the sync dispatcher ran the fan-out and the callback fired
	assert.Equal(t, []string{"city:austin-tx"}, runner.scopes)
	require.Len(t, jobs.finished, 1)
	assert.Equal(t, model.JobCompleted, jobs.finished[0].status)
}

func TestRequestRefreshVolumeGuard(t *testing.T) {
	jobs := &fakeJobStore{started: 50}

	m := newTestManager(jobs, &fakeRunStore{}, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{})
	_, err := m.RequestRefresh(context.Background(), "", "sess-1")

	assert.ErrorIs(t, err, ErrSystemBusy)
	assert.Empty(t, jobs.created, "no job row for a rejected request")
}

func TestRequestRefreshConcurrencyGuard(t *testing.T) {
	jobs := &fakeJobStore{running: 20}

	m := newTestManager(jobs, &fakeRunStore{}, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{})
	_, err := m.RequestRefresh(context.Background(), "", "sess-1")

	assert.ErrorIs(t, err, ErrSystemBusy)
}

func TestRequestRefreshSessionCooldown(t *testing.T) {
	jobs := &fakeJobStore{lastForSession: map[string]time.Time{
		"sess-1": time.Date(2026, 3, 14, 11, 58, 0, 0, time.UTC), // 2 minutes ago
	}}

	m := newTestManager(jobs, &fakeRunStore{}, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{})
	_, err := m.RequestRefresh(context.Background(), "", "sess-1")

	var cooldown *CooldownError
	require.ErrorAs(t, err, &cooldown)
	assert.Equal(t, 3*time.Minute, cooldown.RetryAfter)
}

func TestRequestRefreshGlobalGuardWinsOverCooldown(t *testing.T) {
	// both the concurrency cap and the session cooldown would trigger;
	// first matching rule wins
	jobs := &fakeJobStore{
		running: 20,
		lastForSession: map[string]time.Time{
			"sess-1": time.Date(2026, 3, 14, 11, 59, 0, 0, time.UTC),
		},
	}

	m := newTestManager(jobs, &fakeRunStore{}, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{})
	_, err := m.RequestRefresh(context.Background(), "", "sess-1")

	assert.ErrorIs(t, err, ErrSystemBusy)
	var cooldown *CooldownError
	assert.False(t, errors.As(err, &cooldown))
}

func TestRequestRefreshCooldownExpired(t *testing.T) {
	jobs := &fakeJobStore{lastForSession: map[string]time.Time{
		"sess-1": time.Date(2026, 3, 14, 11, 54, 0, 0, time.UTC), // 6 minutes ago
	}}

	m := newTestManager(jobs, &fakeRunStore{}, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{})
	_, err := m.RequestRefresh(context.Background(), "", "sess-1")

	require.NoError(t, err)
	assert.Len(t, jobs.created, 1)
}

func TestRequestRefreshNoSessionSkipsCooldown(t *testing.T) {
	jobs := &fakeJobStore{}

	m := newTestManager(jobs, &fakeRunStore{}, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{})
	_, err := m.RequestRefresh(context.Background(), "", "")

	require.NoError(t, err)
}

func TestEstimateFallbackWithoutHistory(t *testing.T) {
	m := newTestManager(&fakeJobStore{}, &fakeRunStore{}, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{})

	assert.Equal(t, int64(120000), m.estimateDurationMs(context.Background(), m.now()))
}

func TestEstimateExcludesOutliers(t *testing.T) {
	runs := &fakeRunStore{durations: []time.Duration{
		60000 * time.Millisecond,
		90000 * time.Millisecond,
		700000 * time.Millisecond, // above the 600000ms ceiling
	}}

	m := newTestManager(&fakeJobStore{}, runs, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{})

	assert.Equal(t, int64(75000), m.estimateDurationMs(context.Background(), m.now()))
}

func TestEstimateExcludesNonPositiveDurations(t *testing.T) {
	runs := &fakeRunStore{durations: []time.Duration{
		-5 * time.Second, // clock skew
		0,
		30 * time.Second,
	}}

	m := newTestManager(&fakeJobStore{}, runs, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{})

	assert.Equal(t, int64(30000), m.estimateDurationMs(context.Background(), m.now()))
}

func TestCompleteJobFailsOnFanoutError(t *testing.T) {
	jobs := &fakeJobStore{}
	runner := &fakeScopeRunner{err: errors.New("orchestration broke")}

	m := newTestManager(jobs, &fakeRunStore{}, &fakeConnectorStore{}, runner, syncDispatcher{})
	receipt, err := m.RequestRefresh(context.Background(), "", "")
	require.NoError(t, err, "admission succeeds even though the fan-out will fail")

	require.Len(t, jobs.finished, 1)
	assert.Equal(t, receipt.JobID, jobs.finished[0].id)
	assert.Equal(t, model.JobFailed, jobs.finished[0].status)
	assert.Contains(t, jobs.finished[0].message, "orchestration broke")
}

func TestDispatchFailureMarksJobFailed(t *testing.T) {
	jobs := &fakeJobStore{}

	m := newTestManager(jobs, &fakeRunStore{}, &fakeConnectorStore{}, &fakeScopeRunner{}, syncDispatcher{err: errors.New("queue full")})
	_, err := m.RequestRefresh(context.Background(), "", "")
	require.NoError(t, err)

	require.Len(t, jobs.finished, 1)
	assert.Equal(t, model.JobFailed, jobs.finished[0].status)
}

func TestPreviousLastRunAtNilWhenNothingRan(t *testing.T) {
	connectors := &fakeConnectorStore{enabled: []model.Connector{
		{ID: 1, Key: "austin-tx-meetings"}, // never run
	}}

	m := newTestManager(&fakeJobStore{}, &fakeRunStore{}, connectors, &fakeScopeRunner{}, syncDispatcher{})
	receipt, err := m.RequestRefresh(context.Background(), "city:austin-tx,county:travis-county-tx,state:texas", "")

	require.NoError(t, err)
	assert.Nil(t, receipt.PreviousLastRunAt)
}
