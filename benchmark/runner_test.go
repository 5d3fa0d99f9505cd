package benchmark

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTarget reports a fixed series of latencies and can fail on demand
type stubTarget struct {
	BaseTarget
	setupErr    error
	runErr      error
	teardownErr error
	panicMsg    string
	setupPanic  bool
	latencies   []float64
	sleep       time.Duration
	wrongID     bool

	setups, runs, teardowns int
}

func newStub(id string) *stubTarget {
	return &stubTarget{BaseTarget: BaseTarget{TargetID: id}, latencies: []float64{1}}
}

func (s *stubTarget) Setup(context.Context) error {
	s.setups++
	if s.setupPanic {
		panic("setup exploded")
	}
	return s.setupErr
}

func (s *stubTarget) Run(context.Context) (*Result, error) {
	s.runs++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.runErr != nil {
		return nil, s.runErr
	}
	samples := s.latencies
	if s.sleep > 0 {
		var err error
		samples, err = Measure(10, nil, func(int) error {
			time.Sleep(s.sleep)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	st, err := ComputeStats(samples)
	if err != nil {
		return nil, err
	}
	id := s.TargetID
	if s.wrongID {
		id = "someone-else"
	}
	return NewResult(id, st.Metrics(Throughput{OpsPerTrial: 1})), nil
}

func (s *stubTarget) Teardown(context.Context) error {
	s.teardowns++
	return s.teardownErr
}

func testRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	withMemory(t, 0, false)
	var buf bytes.Buffer
	return NewRunner(zerolog.New(&buf)), &buf
}

func TestRunTargetsIsolatesSetupFailure(t *testing.T) {
	r, logs := testRunner(t)
	a, b, c := newStub("a"), newStub("b"), newStub("c")
	b.setupErr = errors.New("no disk")

	batch := r.RunTargets(context.Background(), []Target{a, b, c})

	require.Len(t, batch.Results, 2)
	assert.Equal(t, "a", batch.Results[0].TargetID)
	assert.Equal(t, "c", batch.Results[1].TargetID)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, Failure{TargetID: "b", Phase: PhaseSetup, Err: b.setupErr}, batch.Failures[0])
	assert.Equal(t, 0, b.runs)
	assert.Equal(t, 0, b.teardowns)
	assert.Contains(t, logs.String(), "Setup failed")
	assert.Contains(t, logs.String(), `"target":"b"`)
	assert.NotEmpty(t, batch.RunID)
}

func TestRunTargetsKeepsResultOnTeardownFailure(t *testing.T) {
	r, _ := testRunner(t)
	a := newStub("a")
	a.teardownErr = errors.New("busy")

	batch := r.RunTargets(context.Background(), []Target{a})
	require.Len(t, batch.Results, 1)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, PhaseTeardown, batch.Failures[0].Phase)
}

func TestRunTargetsRecoversPanics(t *testing.T) {
	r, _ := testRunner(t)
	a, b := newStub("a"), newStub("b")
	a.panicMsg = "kaboom"

	batch := r.RunTargets(context.Background(), []Target{a, b})
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "b", batch.Results[0].TargetID)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, PhaseRun, batch.Failures[0].Phase)
	assert.ErrorIs(t, batch.Failures[0], ErrTargetPanicked)
	assert.Equal(t, 1, a.teardowns)
}

func TestRunTargetsRecoversSetupPanic(t *testing.T) {
	r, _ := testRunner(t)
	a, b := newStub("a"), newStub("b")
	a.setupPanic = true

	batch := r.RunTargets(context.Background(), []Target{a, b})
	require.Len(t, batch.Results, 1)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, PhaseSetup, batch.Failures[0].Phase)
	assert.ErrorIs(t, batch.Failures[0], ErrTargetPanicked)
	assert.Zero(t, a.runs)
}

func TestRunTargetsRejectsMislabelledResult(t *testing.T) {
	r, _ := testRunner(t)
	a := newStub("a")
	a.wrongID = true

	batch := r.RunTargets(context.Background(), []Target{a})
	assert.Empty(t, batch.Results)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, PhaseRun, batch.Failures[0].Phase)
}

func TestRunTargetsFixedLatencies(t *testing.T) {
	r, _ := testRunner(t)
	a := newStub("fixed")
	a.latencies = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	batch := r.RunTargets(context.Background(), []Target{a})
	require.Len(t, batch.Results, 1)
	m := batch.Results[0].Metrics
	assert.Equal(t, 6.0, *m.LatencyP50Ms)
	assert.Equal(t, 10.0, *m.LatencyP95Ms)
	assert.Equal(t, 10.0, *m.LatencyP99Ms)
	assert.Equal(t, uint64(10), *m.Iterations)
}

func TestRunTargetsTimedSleep(t *testing.T) {
	r, _ := testRunner(t)
	a := newStub("sleepy")
	a.sleep = 2 * time.Millisecond

	batch := r.RunTargets(context.Background(), []Target{a})
	require.Len(t, batch.Results, 1)
	m := batch.Results[0].Metrics
	assert.Equal(t, uint64(10), *m.Iterations)
	// sleeps never undershoot; allow generous scheduler overshoot
	assert.GreaterOrEqual(t, *m.DurationMs, 2.0)
	assert.InDelta(t, 2.0, *m.DurationMs, 20.0)

	p50, p95, p99 := PercentileIndices(10)
	assert.Equal(t, []int{5, 9, 9}, []int{p50, p95, p99})
	assert.LessOrEqual(t, *m.LatencyP50Ms, *m.LatencyP95Ms)
	assert.Equal(t, *m.LatencyP95Ms, *m.LatencyP99Ms)
	assert.GreaterOrEqual(t, *m.LatencyP50Ms, 2.0)
}

func TestRunByIDAndPrefixErrors(t *testing.T) {
	r, _ := testRunner(t)

	_, err := r.RunByID(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = r.RunByPrefix(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrNoTargetsMatched)
}

func TestRunByIDRunsCatalogTarget(t *testing.T) {
	withMemory(t, 0, false)
	c, err := NewCatalog(CatalogConfig{Iterations: 2})
	require.NoError(t, err)
	r := NewRunner(zerolog.Nop(), WithCatalog(c))

	res, err := r.RunByID(context.Background(), "hashing-sha256-1mb")
	require.NoError(t, err)
	assert.Equal(t, "hashing-sha256-1mb", res.TargetID)
	assert.Equal(t, uint64(2), *res.Metrics.Iterations)
}

func TestSetupLogRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	_, err := SetupLog(&buf, "xml", "info")
	assert.Error(t, err)
	_, err = SetupLog(&buf, "json", "loud")
	assert.Error(t, err)

	logger, err := SetupLog(&buf, "auto", "debug")
	require.NoError(t, err)
	logger.Debug().Msg("hello")
	assert.Contains(t, buf.String(), `"message":"hello"`)
}
