package benchmark

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsJSONIsFlat(t *testing.T) {
	m := NewMetrics().
		WithDurationMs(12.5).
		WithIterations(10).
		WithCustom("algorithm", "blake3").
		WithCustom("compression", true)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var obj map[string]any
	require.NoError(t, json.Unmarshal(data, &obj))
	assert.Equal(t, map[string]any{
		"duration_ms": 12.5,
		"iterations":  float64(10),
		"algorithm":   "blake3",
		"compression": true,
	}, obj)
}

func TestMetricsRoundTrip(t *testing.T) {
	m := NewMetrics().
		WithDurationMs(1.25).
		WithOpsPerSecond(800).
		WithLatencies(1, 2, 3).
		WithMemoryBytes(4096).
		WithSuccessRate(1).
		WithCustom("record_count", 100).
		WithCustom("mode", "json")

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back Metrics
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(m, &back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMetricsRejectsNonFinite(t *testing.T) {
	_, err := json.Marshal(NewMetrics().WithDurationMs(math.Inf(1)))
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestSetCustomRejectsReservedNames(t *testing.T) {
	m := NewMetrics()
	err := m.SetCustom(MetricDurationMs, Number(1))
	assert.ErrorIs(t, err, ErrReservedMetric)
	assert.Panics(t, func() { m.WithCustom(MetricIterations, 3) })
	assert.Panics(t, func() { m.WithCustom("nested", []int{1}) })
}

func TestValueUnmarshalRejectsComposite(t *testing.T) {
	var m Metrics
	assert.Error(t, json.Unmarshal([]byte(`{"tags":["a"]}`), &m))
	assert.Error(t, json.Unmarshal([]byte(`{"nested":{"a":1}}`), &m))
	assert.Error(t, json.Unmarshal([]byte(`{"missing":null}`), &m))
}

func TestMetricsUnmarshalRejectsNullWellKnown(t *testing.T) {
	var m Metrics
	err := json.Unmarshal([]byte(`{"duration_ms":null}`), &m)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
	err = json.Unmarshal([]byte(`{"iterations":null}`), &m)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestMetricsNamesOrder(t *testing.T) {
	m := NewMetrics().
		WithIterations(1).
		WithDurationMs(1).
		WithCustom("zeta", 1).
		WithCustom("alpha", 2)
	assert.Equal(t, []string{MetricDurationMs, MetricIterations, "alpha", "zeta"}, m.Names())
}

func TestMetricsCloneIsDeep(t *testing.T) {
	m := NewMetrics().WithDurationMs(1).WithCustom("a", 1)
	c := m.Clone()
	*c.DurationMs = 2
	c.Custom["a"] = Number(5)
	assert.Equal(t, 1.0, *m.DurationMs)
	f, _ := m.Custom["a"].Float()
	assert.Equal(t, 1.0, f)
}
