package benchmark

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestResultHasExactlyThreeFields(t *testing.T) {
	res := NewResultAt("hashing-blake3-1mb", NewMetrics().WithDurationMs(3), time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	data, err := res.ToJSON()
	require.NoError(t, err)

	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &obj))
	assert.Len(t, obj, 3)
	assert.Contains(t, obj, "target_id")
	assert.Contains(t, obj, "metrics")
	assert.JSONEq(t, `"2024-05-01T10:00:00Z"`, string(obj["timestamp"]))
}

func TestNewResultStoresUTC(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	res := NewResultAt("a", nil, time.Date(2024, 1, 1, 12, 0, 0, 0, loc))
	assert.Equal(t, time.UTC, res.Timestamp.Location())
	assert.Equal(t, 9, res.Timestamp.Hour())
	assert.NotNil(t, res.Metrics)
}

func TestParseResultValidates(t *testing.T) {
	_, err := ParseResult([]byte(`{"metrics":{},"timestamp":"2024-01-01T00:00:00Z"}`))
	assert.ErrorIs(t, err, ErrInvalidResult)

	_, err = ParseResult([]byte(`{"target_id":"a","metrics":{}}`))
	assert.ErrorIs(t, err, ErrInvalidResult)

	_, err = ParseResult([]byte(`not json`))
	assert.Error(t, err)

	res, err := ParseResult([]byte(`{"target_id":"a","timestamp":"2024-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.NotNil(t, res.Metrics)
}

func TestResultRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[a-z0-9][a-z0-9/:-]{0,30}`).Draw(t, "id")
		sec := rapid.Int64Range(0, 4_000_000_000).Draw(t, "sec")
		nsec := rapid.Int64Range(0, 999_999_999).Draw(t, "nsec")

		m := NewMetrics()
		if rapid.Bool().Draw(t, "hasDuration") {
			m.WithDurationMs(rapid.Float64Range(0, 1e6).Draw(t, "duration"))
		}
		if rapid.Bool().Draw(t, "hasIterations") {
			m.WithIterations(rapid.Uint64Range(0, 1<<40).Draw(t, "iterations"))
		}
		custom := rapid.MapOf(
			rapid.StringMatching(`x_[a-z]{1,8}`),
			rapid.OneOf(
				rapid.Map(rapid.Float64Range(-1e9, 1e9), Number),
				rapid.Map(rapid.String(), String),
				rapid.Map(rapid.Bool(), Bool),
			),
		).Draw(t, "custom")
		for k, v := range custom {
			if err := m.SetCustom(k, v); err != nil {
				t.Fatal(err)
			}
		}

		res := NewResultAt(id, m, time.Unix(sec, nsec))
		data, err := res.ToJSON()
		if err != nil {
			t.Fatal(err)
		}
		back, err := ParseResult(data)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(res, back); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	})
}
