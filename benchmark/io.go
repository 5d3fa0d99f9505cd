package benchmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultOutputDir is where results land unless told otherwise
	DefaultOutputDir = "benchmarks/output"
	// RawDirName is the subdirectory holding one JSON file per result
	RawDirName = "raw"

	SummaryFile     = "summary.md"
	SummaryJSONFile = "summary.json"
	SummaryPromFile = "summary.prom"

	fileTimestampLayout = "20060102_150405"
)

// ResultIO reads and writes results under an output directory
type ResultIO struct {
	outputDir string
	rawDir    string
	log       zerolog.Logger
}

// NewResultIO uses outputDir/raw for raw results. An empty outputDir means
// DefaultOutputDir.
func NewResultIO(outputDir string) *ResultIO {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	return NewResultIOWithPaths(outputDir, filepath.Join(outputDir, RawDirName))
}

// NewResultIOWithPaths sets both directories explicitly
func NewResultIOWithPaths(outputDir, rawDir string) *ResultIO {
	return &ResultIO{
		outputDir: outputDir,
		rawDir:    rawDir,
		log:       log.Logger,
	}
}

// WithLogger replaces the logger used to report skipped files
func (r *ResultIO) WithLogger(l zerolog.Logger) *ResultIO {
	r.log = l
	return r
}

// OutputDir returns the summary directory
func (r *ResultIO) OutputDir() string { return r.outputDir }

// RawDir returns the raw results directory
func (r *ResultIO) RawDir() string { return r.rawDir }

// EnsureDirectories creates both directories
func (r *ResultIO) EnsureDirectories() error {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.MkdirAll(r.rawDir, 0755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}
	return nil
}

// ResultFileName derives the raw file name for a result. Results of the same
// target within the same second share a name and overwrite each other.
func ResultFileName(res *Result) string {
	id := strings.NewReplacer("/", "_", ":", "_").Replace(res.TargetID)
	return fmt.Sprintf("%s_%s.json", id, res.Timestamp.UTC().Format(fileTimestampLayout))
}

// WriteResult stores one result and returns the file path
func (r *ResultIO) WriteResult(res *Result) (string, error) {
	if err := r.EnsureDirectories(); err != nil {
		return "", err
	}
	data, err := res.ToJSON()
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", res.TargetID, err)
	}
	path := filepath.Join(r.rawDir, ResultFileName(res))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteResults stores every result, stopping at the first failure
func (r *ResultIO) WriteResults(results []*Result) ([]string, error) {
	paths := make([]string, 0, len(results))
	for _, res := range results {
		p, err := r.WriteResult(res)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ReadResults loads every parseable *.json file of the raw directory,
// ordered by timestamp. A missing directory yields no results.
func (r *ResultIO) ReadResults() ([]*Result, error) {
	entries, err := os.ReadDir(r.rawDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.rawDir, err)
	}

	var results []*Result
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(r.rawDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Debug().Err(err).Str("path", path).Msg("Skipping unreadable result")
			continue
		}
		res, err := ParseResult(data)
		if err != nil {
			r.log.Debug().Err(err).Str("path", path).Msg("Skipping unparseable result")
			continue
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.Before(results[j].Timestamp)
	})
	return results, nil
}

// WriteSummary regenerates summary.md from markdown plus summary.json and
// summary.prom from results. It returns the markdown path.
func (r *ResultIO) WriteSummary(results []*Result, markdown string) (string, error) {
	if err := r.EnsureDirectories(); err != nil {
		return "", err
	}

	mdPath := filepath.Join(r.outputDir, SummaryFile)
	if err := os.WriteFile(mdPath, []byte(markdown), 0644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	if results == nil {
		results = []*Result{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.outputDir, SummaryJSONFile), data, 0644); err != nil {
		return "", fmt.Errorf("write summary json: %w", err)
	}

	if err := writePromSummary(filepath.Join(r.outputDir, SummaryPromFile), results); err != nil {
		return "", err
	}
	return mdPath, nil
}

// Persist writes raw results and regenerates the summary artifacts
func (r *ResultIO) Persist(results []*Result) error {
	if _, err := r.WriteResults(results); err != nil {
		return err
	}
	_, err := r.WriteSummary(results, GenerateSummary(results))
	return err
}

// ClearResults deletes the raw *.json files
func (r *ResultIO) ClearResults() error {
	entries, err := os.ReadDir(r.rawDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", r.rawDir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(r.rawDir, e.Name())); err != nil {
			return fmt.Errorf("remove result: %w", err)
		}
	}
	return nil
}

// LatestByTarget keeps the newest result per target id, sorted by id
func LatestByTarget(results []*Result) []*Result {
	latest := make(map[string]*Result)
	for _, res := range results {
		if cur, ok := latest[res.TargetID]; !ok || res.Timestamp.After(cur.Timestamp) {
			latest[res.TargetID] = res
		}
	}
	out := make([]*Result, 0, len(latest))
	for _, res := range latest {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}

// writePromSummary exports the latest result per target as Prometheus gauges
// in the text exposition format.
func writePromSummary(path string, results []*Result) error {
	reg := prometheus.NewRegistry()
	newGauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vault_bench",
			Name:      name,
			Help:      help,
		}, append([]string{"target"}, labels...))
		reg.MustRegister(g)
		return g
	}

	duration := newGauge("duration_ms", "Average trial duration in milliseconds.")
	latency := newGauge("latency_ms", "Trial latency percentiles in milliseconds.", "quantile")
	ops := newGauge("ops_per_second", "Operations per second.")
	bps := newGauge("bytes_per_second", "Bytes processed per second.")
	mem := newGauge("memory_bytes", "Resident memory after the run.")
	iters := newGauge("iterations", "Number of trials.")
	success := newGauge("success_rate", "Fraction of successful trials.")
	ts := newGauge("timestamp_seconds", "Unix time the result was recorded.")

	set := func(g *prometheus.GaugeVec, v *float64, labels ...string) {
		if v != nil {
			g.WithLabelValues(labels...).Set(*v)
		}
	}
	setU := func(g *prometheus.GaugeVec, v *uint64, labels ...string) {
		if v != nil {
			g.WithLabelValues(labels...).Set(float64(*v))
		}
	}

	for _, res := range LatestByTarget(results) {
		m, id := res.Metrics, res.TargetID
		if m == nil {
			continue
		}
		set(duration, m.DurationMs, id)
		set(latency, m.LatencyP50Ms, id, "0.5")
		set(latency, m.LatencyP95Ms, id, "0.95")
		set(latency, m.LatencyP99Ms, id, "0.99")
		set(ops, m.OpsPerSecond, id)
		set(bps, m.BytesPerSecond, id)
		setU(mem, m.MemoryBytes, id)
		setU(iters, m.Iterations, id)
		set(success, m.SuccessRate, id)
		ts.WithLabelValues(id).Set(float64(res.Timestamp.Unix()))
	}

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write prometheus summary: %w", err)
	}
	return nil
}
