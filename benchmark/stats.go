package benchmark

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/shirou/gopsutil/process"
)

// ErrNoSamples indicates that no trial was recorded
var ErrNoSamples = errors.New("no samples collected")

// Custom metrics derived from the latency histogram
const (
	MetricLatencyMaxMs    = "latency_max_ms"
	MetricLatencyStdDevMs = "latency_stddev_ms"
)

// histogram bounds in microseconds: 1µs to one hour, 3 significant digits
const (
	histMinUs  = 1
	histMaxUs  = int64(time.Hour / time.Microsecond)
	histDigits = 3
)

// TrialFunc is one step of a trial, receiving the trial index
type TrialFunc func(i int) error

// Recorder accumulates per-trial wall-clock samples in milliseconds
type Recorder struct {
	samples []float64
}

// NewRecorder preallocates room for n samples
func NewRecorder(n int) *Recorder {
	return &Recorder{samples: make([]float64, 0, n)}
}

// Time runs op and records its elapsed time. A failed op records nothing.
func (r *Recorder) Time(op func() error) error {
	start := time.Now()
	err := op()
	elapsed := time.Since(start)
	if err != nil {
		return err
	}
	r.samples = append(r.samples, durationMs(elapsed))
	return nil
}

// Samples returns a copy of the recorded samples in recording order
func (r *Recorder) Samples() []float64 {
	out := make([]float64, len(r.samples))
	copy(out, r.samples)
	return out
}

// Stats computes statistics over the recorded samples
func (r *Recorder) Stats() (Stats, error) {
	return ComputeStats(r.samples)
}

// Measure runs n trials. prepare (optional) is untimed, trial is timed. The
// first error from either aborts the run.
func Measure(n int, prepare, trial TrialFunc) ([]float64, error) {
	rec := NewRecorder(n)
	for i := 0; i < n; i++ {
		if prepare != nil {
			if err := prepare(i); err != nil {
				return nil, err
			}
		}
		if err := rec.Time(func() error { return trial(i) }); err != nil {
			return nil, err
		}
	}
	return rec.samples, nil
}

// PercentileIndices returns nearest-rank indices into an ascending sample of
// size n: n/2, floor(n*0.95) and floor(n*0.99), each clamped to n-1. No
// interpolation is done; for small n the upper percentiles share an index.
func PercentileIndices(n int) (p50, p95, p99 int) {
	if n <= 0 {
		return 0, 0, 0
	}
	last := n - 1
	p50 = min(n/2, last)
	p95 = min(int(float64(n)*0.95), last)
	p99 = min(int(float64(n)*0.99), last)
	return p50, p95, p99
}

// Stats summarizes a set of trial samples (milliseconds)
type Stats struct {
	Count   int
	Average float64
	P50     float64
	P95     float64
	P99     float64
	// Max and StdDev come from an HDR histogram at microsecond resolution
	Max    float64
	StdDev float64
	// Sorted holds the samples in ascending order
	Sorted []float64
}

// ComputeStats derives average and nearest-rank percentiles from samples
func ComputeStats(samples []float64) (Stats, error) {
	n := len(samples)
	if n == 0 {
		return Stats{}, ErrNoSamples
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	hist := hdrhistogram.New(histMinUs, histMaxUs, histDigits)
	for _, s := range sorted {
		sum += s
		us := int64(math.Round(s * 1000))
		us = max(us, histMinUs)
		us = min(us, histMaxUs)
		if err := hist.RecordValue(us); err != nil {
			return Stats{}, fmt.Errorf("record %vms: %w", s, err)
		}
	}

	i50, i95, i99 := PercentileIndices(n)
	return Stats{
		Count:   n,
		Average: sum / float64(n),
		P50:     sorted[i50],
		P95:     sorted[i95],
		P99:     sorted[i99],
		Max:     float64(hist.Max()) / 1000,
		StdDev:  hist.StdDev() / 1000,
		Sorted:  sorted,
	}, nil
}

// OpsPerSecond converts the average into a rate for opsPerTrial operations
// per trial. ok is false when the average is zero.
func (s Stats) OpsPerSecond(opsPerTrial float64) (float64, bool) {
	if s.Average <= 0 {
		return 0, false
	}
	return opsPerTrial / s.Average * 1000, true
}

// BytesPerSecond converts the average into a byte rate for a payload
// processed once per trial. ok is false when the average is zero.
func (s Stats) BytesPerSecond(payloadBytes uint64) (float64, bool) {
	if s.Average <= 0 {
		return 0, false
	}
	return float64(payloadBytes) / s.Average * 1000, true
}

// Throughput describes how much work a single trial performs
type Throughput struct {
	// PayloadBytes is 0 for workloads that aren't byte-oriented
	PayloadBytes uint64
	// OpsPerTrial is 1 for single operations, the record count for batches,
	// 0 to leave ops_per_second unset.
	OpsPerTrial float64
}

// Metrics builds the standard record: average duration, iteration count,
// payload size and byte rate (when PayloadBytes > 0), ops rate, latency
// percentiles, histogram extras and the process memory footprint when it can
// be sampled.
func (s Stats) Metrics(t Throughput) *Metrics {
	m := NewMetrics().
		WithDurationMs(s.Average).
		WithIterations(uint64(s.Count)).
		WithLatencies(s.P50, s.P95, s.P99).
		WithCustom(MetricLatencyMaxMs, s.Max).
		WithCustom(MetricLatencyStdDevMs, s.StdDev)

	if t.PayloadBytes > 0 {
		m.WithDataSize(t.PayloadBytes)
		if bps, ok := s.BytesPerSecond(t.PayloadBytes); ok {
			m.WithBytesPerSecond(bps)
		}
	}
	if t.OpsPerTrial > 0 {
		if ops, ok := s.OpsPerSecond(t.OpsPerTrial); ok {
			m.WithOpsPerSecond(ops)
		}
	}
	if rss, ok := sampleMemory(); ok {
		m.WithMemoryBytes(rss)
	}
	return m
}

// sampleMemory is swapped out in tests
var sampleMemory = processRSS

// processRSS reads the resident set size of the current process
func processRSS() (uint64, bool) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, false
	}
	mem, err := proc.MemoryInfo()
	if err != nil || mem == nil {
		return 0, false
	}
	return mem.RSS, true
}

func durationMs(d time.Duration) float64 {
	return d.Seconds() * 1000
}
