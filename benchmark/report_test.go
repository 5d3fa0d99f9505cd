package benchmark

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   Value
		want string
	}{
		{Number(1_500_000), "1.50M"},
		{Number(1500), "1.50K"},
		{Number(0.005), "0.0050"},
		{Number(42.5), "42.50"},
		{Number(0), "0.00"},
		{Number(-3), "-3.00"},
		{String("blake3"), "blake3"},
		{Bool(true), "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestGenerateSummary(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	md := GenerateSummary([]*Result{sampleResult("encryption-1kb", ts)})

	assert.True(t, strings.HasPrefix(md, "# Benchmark Summary"))
	assert.Contains(t, md, "| encryption-1kb | 1.50 | 1.00 | 2.00 | 3.00 | - | - | 10.00 |")
	assert.Contains(t, md, "### encryption-1kb")
	assert.Contains(t, md, "- `algorithm`: blake3")

	assert.Contains(t, GenerateSummary(nil), "No benchmark results.")
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, PrintResults(&buf, []*Result{sampleResult("a", ts)}))

	out := buf.String()
	assert.Contains(t, out, "BENCHMARK RESULTS")
	assert.Contains(t, out, "Target: a")
	assert.Contains(t, out, "Timestamp: 2024-01-01 08:30:00 UTC")
	assert.Contains(t, out, "  duration_ms: 1.50")
	assert.Contains(t, out, "  algorithm: blake3")
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, []*Result{sampleResult("storage-write-1mb", time.Now())}, true))

	out := buf.String()
	assert.Contains(t, out, "storage-write-1mb")
	assert.Contains(t, out, "Avg (ms)")
	assert.Contains(t, out, "algorithm: blake3")
}
