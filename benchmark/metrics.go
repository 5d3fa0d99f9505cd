package benchmark

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Well-known metric names. Times are milliseconds, sizes are bytes.
const (
	MetricDurationMs     = "duration_ms"
	MetricOpsPerSecond   = "ops_per_second"
	MetricBytesPerSecond = "bytes_per_second"
	MetricLatencyP50Ms   = "latency_p50_ms"
	MetricLatencyP95Ms   = "latency_p95_ms"
	MetricLatencyP99Ms   = "latency_p99_ms"
	MetricMemoryBytes    = "memory_bytes"
	MetricIterations     = "iterations"
	MetricDataSizeBytes  = "data_size_bytes"
	MetricSuccessRate    = "success_rate"
)

var wellKnownMetrics = map[string]bool{
	MetricDurationMs:     true,
	MetricOpsPerSecond:   true,
	MetricBytesPerSecond: true,
	MetricLatencyP50Ms:   true,
	MetricLatencyP95Ms:   true,
	MetricLatencyP99Ms:   true,
	MetricMemoryBytes:    true,
	MetricIterations:     true,
	MetricDataSizeBytes:  true,
	MetricSuccessRate:    true,
}

var (
	// ErrReservedMetric is returned when a custom metric reuses a well-known name
	ErrReservedMetric = errors.New("metric name is reserved")
	// ErrUnsupportedValue is returned for values outside number/string/bool
	ErrUnsupportedValue = errors.New("unsupported metric value")
)

// IsWellKnownMetric reports whether name belongs to the fixed metric set
func IsWellKnownMetric(name string) bool {
	return wellKnownMetrics[name]
}

// ValueKind enumerates what a Value holds
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindNumber
	KindString
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a custom metric value: a number, a string or a boolean
type Value struct {
	kind ValueKind
	num  float64
	str  string
	b    bool
}

// Number wraps a float
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ValueOf converts Go scalars into a Value
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case Value:
		return v, nil
	case float64:
		return Number(v), nil
	case float32:
		return Number(float64(v)), nil
	case int:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case int32:
		return Number(float64(v)), nil
	case uint:
		return Number(float64(v)), nil
	case uint64:
		return Number(float64(v)), nil
	case uint32:
		return Number(float64(v)), nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
	}
}

// Kind reports the held kind
func (v Value) Kind() ValueKind { return v.kind }

// Float returns the number, ok is false for other kinds
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Text returns the string, ok is false for other kinds
func (v Value) Text() (string, bool) { return v.str, v.kind == KindString }

// Boolean returns the bool, ok is false for other kinds
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Equal compares kind and payload
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "<invalid>"
	}
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, v.num)
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return nil, fmt.Errorf("%w: empty value", ErrUnsupportedValue)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Objects, arrays and null are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", ErrUnsupportedValue)
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '{', '[', 'n':
		return fmt.Errorf("%w: %s", ErrUnsupportedValue, data)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnsupportedValue, data)
		}
		*v = Number(f)
	}
	return nil
}

// Metrics is the measurement record a target produces. Well-known fields are
// optional and use fixed units; target-specific values live in Custom, whose
// keys never reuse a well-known name.
type Metrics struct {
	DurationMs     *float64
	OpsPerSecond   *float64
	BytesPerSecond *float64
	LatencyP50Ms   *float64
	LatencyP95Ms   *float64
	LatencyP99Ms   *float64
	MemoryBytes    *uint64
	Iterations     *uint64
	DataSizeBytes  *uint64
	SuccessRate    *float64

	Custom map[string]Value
}

// NewMetrics returns an empty record
func NewMetrics() *Metrics {
	return &Metrics{Custom: make(map[string]Value)}
}

func f64(v float64) *float64 { return &v }
func u64(v uint64) *uint64   { return &v }

// WithDurationMs sets the duration
func (m *Metrics) WithDurationMs(ms float64) *Metrics {
	m.DurationMs = f64(ms)
	return m
}

// WithOpsPerSecond sets operation throughput
func (m *Metrics) WithOpsPerSecond(ops float64) *Metrics {
	m.OpsPerSecond = f64(ops)
	return m
}

// WithBytesPerSecond sets byte throughput
func (m *Metrics) WithBytesPerSecond(bps float64) *Metrics {
	m.BytesPerSecond = f64(bps)
	return m
}

// WithLatencies sets the three latency percentiles
func (m *Metrics) WithLatencies(p50, p95, p99 float64) *Metrics {
	m.LatencyP50Ms = f64(p50)
	m.LatencyP95Ms = f64(p95)
	m.LatencyP99Ms = f64(p99)
	return m
}

// WithMemoryBytes sets memory usage
func (m *Metrics) WithMemoryBytes(n uint64) *Metrics {
	m.MemoryBytes = u64(n)
	return m
}

// WithIterations sets the trial count
func (m *Metrics) WithIterations(n uint64) *Metrics {
	m.Iterations = u64(n)
	return m
}

// WithDataSize sets the payload size
func (m *Metrics) WithDataSize(n uint64) *Metrics {
	m.DataSizeBytes = u64(n)
	return m
}

// WithSuccessRate sets the success rate, expected within [0, 1]
func (m *Metrics) WithSuccessRate(rate float64) *Metrics {
	m.SuccessRate = f64(rate)
	return m
}

// WithCustom adds a target-specific metric. It panics on a reserved name or
// an unsupported value type: custom keys are fixed at compile time, so either
// is a programming error.
func (m *Metrics) WithCustom(key string, value any) *Metrics {
	v, err := ValueOf(value)
	if err != nil {
		panic(fmt.Sprintf("metric %q: %v", key, err))
	}
	if err := m.SetCustom(key, v); err != nil {
		panic(err.Error())
	}
	return m
}

// SetCustom adds a target-specific metric
func (m *Metrics) SetCustom(key string, v Value) error {
	if IsWellKnownMetric(key) {
		return fmt.Errorf("%w: %q", ErrReservedMetric, key)
	}
	if v.kind == KindInvalid {
		return fmt.Errorf("%w: %q has no value", ErrUnsupportedValue, key)
	}
	if m.Custom == nil {
		m.Custom = make(map[string]Value)
	}
	m.Custom[key] = v
	return nil
}

// Get returns any metric, well-known or custom, as a Value
func (m *Metrics) Get(name string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	for _, f := range m.fields() {
		if f.name != name {
			continue
		}
		return f.value()
	}
	v, ok := m.Custom[name]
	return v, ok
}

// Names lists the metrics that are present: well-known first in their
// canonical order, then custom keys sorted.
func (m *Metrics) Names() []string {
	if m == nil {
		return nil
	}
	var names []string
	for _, f := range m.fields() {
		if _, ok := f.value(); ok {
			names = append(names, f.name)
		}
	}
	custom := make([]string, 0, len(m.Custom))
	for k := range m.Custom {
		custom = append(custom, k)
	}
	sort.Strings(custom)
	return append(names, custom...)
}

// Clone deep-copies the record
func (m *Metrics) Clone() *Metrics {
	if m == nil {
		return NewMetrics()
	}
	out := &Metrics{Custom: make(map[string]Value, len(m.Custom))}
	cpF := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		return f64(*p)
	}
	cpU := func(p *uint64) *uint64 {
		if p == nil {
			return nil
		}
		return u64(*p)
	}
	out.DurationMs = cpF(m.DurationMs)
	out.OpsPerSecond = cpF(m.OpsPerSecond)
	out.BytesPerSecond = cpF(m.BytesPerSecond)
	out.LatencyP50Ms = cpF(m.LatencyP50Ms)
	out.LatencyP95Ms = cpF(m.LatencyP95Ms)
	out.LatencyP99Ms = cpF(m.LatencyP99Ms)
	out.MemoryBytes = cpU(m.MemoryBytes)
	out.Iterations = cpU(m.Iterations)
	out.DataSizeBytes = cpU(m.DataSizeBytes)
	out.SuccessRate = cpF(m.SuccessRate)
	for k, v := range m.Custom {
		out.Custom[k] = v
	}
	return out
}

type metricField struct {
	name string
	f    **float64
	u    **uint64
}

func (f metricField) value() (Value, bool) {
	switch {
	case f.f != nil && *f.f != nil:
		return Number(**f.f), true
	case f.u != nil && *f.u != nil:
		return Number(float64(**f.u)), true
	}
	return Value{}, false
}

func (m *Metrics) fields() []metricField {
	return []metricField{
		{name: MetricDurationMs, f: &m.DurationMs},
		{name: MetricOpsPerSecond, f: &m.OpsPerSecond},
		{name: MetricBytesPerSecond, f: &m.BytesPerSecond},
		{name: MetricLatencyP50Ms, f: &m.LatencyP50Ms},
		{name: MetricLatencyP95Ms, f: &m.LatencyP95Ms},
		{name: MetricLatencyP99Ms, f: &m.LatencyP99Ms},
		{name: MetricMemoryBytes, u: &m.MemoryBytes},
		{name: MetricIterations, u: &m.Iterations},
		{name: MetricDataSizeBytes, u: &m.DataSizeBytes},
		{name: MetricSuccessRate, f: &m.SuccessRate},
	}
}

// MarshalJSON flattens well-known fields and custom entries into one object
func (m *Metrics) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(m.Custom)+len(wellKnownMetrics))
	for _, f := range m.fields() {
		switch {
		case f.f != nil && *f.f != nil:
			v := **f.f
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("metric %q: %w: %v", f.name, ErrUnsupportedValue, v)
			}
			obj[f.name] = v
		case f.u != nil && *f.u != nil:
			obj[f.name] = **f.u
		}
	}
	for k, v := range m.Custom {
		if IsWellKnownMetric(k) {
			return nil, fmt.Errorf("%w: %q", ErrReservedMetric, k)
		}
		obj[k] = v
	}
	return json.Marshal(obj)
}

// UnmarshalJSON splits a flat object back into well-known fields and Custom
func (m *Metrics) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := NewMetrics()
	for _, f := range out.fields() {
		msg, ok := raw[f.name]
		if !ok {
			continue
		}
		delete(raw, f.name)
		// absent fields are omitted, never null
		if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			return fmt.Errorf("metric %q: %w: null", f.name, ErrUnsupportedValue)
		}
		if f.f != nil {
			var v float64
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("metric %q: %w", f.name, err)
			}
			*f.f = f64(v)
		} else {
			var v uint64
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("metric %q: %w", f.name, err)
			}
			*f.u = u64(v)
		}
	}
	for k, msg := range raw {
		var v Value
		if err := v.UnmarshalJSON(msg); err != nil {
			return fmt.Errorf("metric %q: %w", k, err)
		}
		out.Custom[k] = v
	}
	*m = *out
	return nil
}
