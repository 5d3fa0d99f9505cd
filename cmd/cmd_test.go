package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tclemos/vault-bench/benchmark"
)

// execute runs the CLI with args and returns stdout and the exit code
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd(&out, &errOut)
	root.SetArgs(append([]string{"--log-format", "json", "--log-level", "error"}, args...))
	if err := root.ExecuteContext(context.Background()); err != nil {
		return out.String(), classify(err).Kind.ExitCode()
	}
	return out.String(), 0
}

func TestListJSON(t *testing.T) {
	out, code := execute(t, "--format", "json", "list", "--prefix", "hashing")
	require.Equal(t, 0, code)

	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Equal(t, []string{"hashing-blake3-1mb", "hashing-sha256-1mb", "hashing-keccak256-1mb"}, ids)
}

func TestListEmptyPrefixMatchIsNotAnError(t *testing.T) {
	out, code := execute(t, "--format", "plain", "list", "--prefix", "nothing")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Total: 0 benchmark(s)")
}

func TestInvalidFormat(t *testing.T) {
	_, code := execute(t, "--format", "xml", "list")
	assert.Equal(t, 2, code)
}

func TestUnknownFlag(t *testing.T) {
	_, code := execute(t, "list", "--bogus")
	assert.Equal(t, 2, code)
}

func TestRunUnknownTarget(t *testing.T) {
	_, code := execute(t, "run", "--target", "nope", "--save=false")
	assert.Equal(t, 2, code)
}

func TestRunEmptyPrefix(t *testing.T) {
	_, code := execute(t, "run", "--prefix", "nope", "--save=false")
	assert.Equal(t, 2, code)
}

func TestRunNegativeIterations(t *testing.T) {
	_, code := execute(t, "run", "--target", "hashing-sha256-1mb", "--iterations", "-1", "--save=false")
	assert.Equal(t, 2, code)
}

func TestRunSavesAndResultsReadsBack(t *testing.T) {
	dir := t.TempDir()
	out, code := execute(t, "--format", "json", "run",
		"--target", "hashing-blake3-1mb", "--iterations", "2", "--output-dir", dir)
	require.Equal(t, 0, code)

	var ran []*benchmark.Result
	require.NoError(t, json.Unmarshal([]byte(out), &ran))
	require.Len(t, ran, 1)
	assert.Equal(t, "hashing-blake3-1mb", ran[0].TargetID)
	assert.FileExists(t, filepath.Join(dir, benchmark.SummaryFile))
	assert.FileExists(t, filepath.Join(dir, benchmark.SummaryJSONFile))
	assert.FileExists(t, filepath.Join(dir, benchmark.SummaryPromFile))

	out, code = execute(t, "--format", "json", "results", "--path", dir, "--latest")
	require.Equal(t, 0, code)
	var read []*benchmark.Result
	require.NoError(t, json.Unmarshal([]byte(out), &read))
	require.Len(t, read, 1)
	assert.Equal(t, "hashing-blake3-1mb", read[0].TargetID)
}

func TestResultsEmptyDir(t *testing.T) {
	out, code := execute(t, "--format", "plain", "results", "--path", t.TempDir())
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No benchmark results found.")
}

func TestInfraStatus(t *testing.T) {
	out, code := execute(t, "--format", "json", "infra", "status")
	require.Equal(t, 0, code)

	var st struct {
		Name   string `json:"name"`
		Health struct {
			Healthy bool `json:"healthy"`
		} `json:"health"`
		Policies struct {
			RateLimit struct {
				RequestsPerSecond int `json:"requests_per_second"`
			} `json:"rate_limit"`
		} `json:"policies"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "infra", st.Name)
	assert.True(t, st.Health.Healthy)
	assert.Equal(t, 100, st.Policies.RateLimit.RequestsPerSecond)
}

func TestInfraStatusPolicyErrors(t *testing.T) {
	dir := t.TempDir()

	_, code := execute(t, "infra", "status", "--policy", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, 1, code)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("retry: [1, 2]\n"), 0644))
	_, code = execute(t, "infra", "status", "--policy", bad)
	assert.Equal(t, 3, code)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("tracing:\n  sample_rate: 2\n"), 0644))
	_, code = execute(t, "infra", "status", "--policy", invalid)
	assert.Equal(t, 2, code)
}

func TestConfigFileSetsDefaults(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("format: json\n"), 0644))

	out, code := execute(t, "--config", cfg, "list", "--prefix", "checksum")
	require.Equal(t, 0, code)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Equal(t, []string{"checksum-verification-1mb"}, ids)
}
