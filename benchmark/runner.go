package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrTargetNotFound   = errors.New("benchmark target not found")
	ErrNoTargetsMatched = errors.New("no benchmark targets matched")
	ErrTargetFailed     = errors.New("benchmark target failed")
	ErrTargetPanicked   = errors.New("benchmark target panicked")
)

// Phase names the lifecycle step a failure happened in
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseRun      Phase = "run"
	PhaseTeardown Phase = "teardown"
)

// Failure records a target that failed in some phase. Setup and run
// failures drop the target's result; teardown failures keep it.
type Failure struct {
	TargetID string
	Phase    Phase
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.TargetID, f.Phase, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Batch is the outcome of one sequential run over a list of targets
type Batch struct {
	RunID    string
	Results  []*Result
	Failures []Failure
	Elapsed  time.Duration
}

// Runner drives targets through setup, run and teardown one at a time
type Runner struct {
	log     zerolog.Logger
	catalog *Catalog
}

// RunnerOption customizes a Runner
type RunnerOption func(*Runner)

// WithCatalog makes the runner resolve targets from c
func WithCatalog(c *Catalog) RunnerOption {
	return func(r *Runner) {
		r.catalog = c
	}
}

// NewRunner creates a runner logging to logger
func NewRunner(logger zerolog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{log: logger, catalog: DefaultCatalog()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunTargets executes targets strictly in order. A target that fails is
// logged and skipped; the remaining targets still run.
func (r *Runner) RunTargets(ctx context.Context, targets []Target) Batch {
	batch := Batch{RunID: uuid.NewString()}
	logger := r.log.With().Str("run_id", batch.RunID).Logger()
	start := time.Now()

	logger.Info().Int("targets", len(targets)).Msg("Starting benchmark run")
	for _, t := range targets {
		res, failures := r.runOne(ctx, logger, t)
		if res != nil {
			batch.Results = append(batch.Results, res)
		}
		batch.Failures = append(batch.Failures, failures...)
	}
	batch.Elapsed = time.Since(start)

	logger.Info().
		Int("results", len(batch.Results)).
		Int("failures", len(batch.Failures)).
		Dur("elapsed", batch.Elapsed).
		Msg("Benchmark run complete")
	return batch
}

func (r *Runner) runOne(ctx context.Context, logger zerolog.Logger, t Target) (*Result, []Failure) {
	id := t.ID()
	tlog := logger.With().Str("target", id).Logger()
	var failures []Failure

	if err := guard(func() error { return t.Setup(ctx) }); err != nil {
		tlog.Error().Err(err).Msg("Setup failed")
		return nil, []Failure{{TargetID: id, Phase: PhaseSetup, Err: err}}
	}

	tlog.Info().Str("name", t.Name()).Msg("Running target")
	start := time.Now()
	res, err := safeRun(ctx, t)
	if err != nil {
		tlog.Error().Err(err).Msg("Run failed")
		failures = append(failures, Failure{TargetID: id, Phase: PhaseRun, Err: err})
		res = nil
	} else {
		ev := tlog.Info().Dur("elapsed", time.Since(start))
		if d := res.Metrics.DurationMs; d != nil {
			ev = ev.Float64("avg_ms", *d)
		}
		ev.Msg("Target complete")
	}

	if err := guard(func() error { return t.Teardown(ctx) }); err != nil {
		tlog.Warn().Err(err).Msg("Teardown failed")
		failures = append(failures, Failure{TargetID: id, Phase: PhaseTeardown, Err: err})
	}
	return res, failures
}

// guard turns a panic in a lifecycle hook into an error
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrTargetPanicked, p)
		}
	}()
	return fn()
}

// safeRun turns panics and malformed results into errors
func safeRun(ctx context.Context, t Target) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrTargetPanicked, p)
		}
	}()

	res, err = t.Run(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("run returned no result")
	}
	if res.TargetID != t.ID() {
		return nil, fmt.Errorf("result labelled %q", res.TargetID)
	}
	if res.Metrics == nil {
		res.Metrics = NewMetrics()
	}
	return res, nil
}

// RunAll executes every catalog target
func (r *Runner) RunAll(ctx context.Context) Batch {
	return r.RunTargets(ctx, r.catalog.All())
}

// RunByPrefix executes every target whose id starts with prefix
func (r *Runner) RunByPrefix(ctx context.Context, prefix string) (Batch, error) {
	targets := r.catalog.ByPrefix(prefix)
	if len(targets) == 0 {
		return Batch{}, fmt.Errorf("%w: prefix %q", ErrNoTargetsMatched, prefix)
	}
	return r.RunTargets(ctx, targets), nil
}

// RunByID executes a single target. A teardown failure is logged but the
// result is still returned.
func (r *Runner) RunByID(ctx context.Context, id string) (*Result, error) {
	t, ok := r.catalog.ByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTargetNotFound, id)
	}
	batch := r.RunTargets(ctx, []Target{t})
	if len(batch.Results) == 0 {
		var cause error = errors.New("no result")
		if len(batch.Failures) > 0 {
			cause = batch.Failures[0]
		}
		return nil, fmt.Errorf("%w: %w", ErrTargetFailed, cause)
	}
	return batch.Results[0], nil
}

// RunAndSave executes every target and persists raw results and the summary
func (r *Runner) RunAndSave(ctx context.Context, rio *ResultIO) (Batch, error) {
	batch := r.RunAll(ctx)
	if err := rio.Persist(batch.Results); err != nil {
		return batch, err
	}
	return batch, nil
}

// SetupLog configures the global logger. format is "json", "console" or
// "auto" (console on a terminal, json otherwise).
func SetupLog(w io.Writer, format, level string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var out io.Writer
	switch strings.ToLower(format) {
	case "json":
		zerolog.TimeFieldFormat = time.RFC3339Nano
		out = w
	case "console", "":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	case "auto":
		if isTerminal(w) {
			out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
		} else {
			zerolog.TimeFieldFormat = time.RFC3339Nano
			out = w
		}
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid log format %q", format)
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
