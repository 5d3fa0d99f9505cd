package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterIdentity(t *testing.T) {
	a := NewInfraAdapter(DefaultInfraConfig())
	assert.Equal(t, "infra", a.Name())
	assert.Equal(t, "0.2.0", a.Version())
}

func TestHealthBeforeAndAfterInit(t *testing.T) {
	ctx := context.Background()
	a := NewInfraAdapter(DefaultInfraConfig())

	h, err := a.HealthCheck(ctx)
	require.NoError(t, err)
	assert.False(t, h.Healthy)
	assert.Equal(t, "Adapter not initialized", h.Message)

	require.NoError(t, a.Initialize(ctx))
	h, err = a.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, h.Healthy)
	assert.Contains(t, h.Message, "6/6")

	require.NoError(t, a.Shutdown(ctx))
	h, err = a.HealthCheck(ctx)
	require.NoError(t, err)
	assert.False(t, h.Healthy)
}

func TestDisabledAdapterIsUnhealthy(t *testing.T) {
	cfg := DefaultInfraConfig()
	cfg.Adapter.Enabled = false
	a := NewInfraAdapter(cfg)
	require.NoError(t, a.Initialize(context.Background()))

	h, err := a.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, h.Healthy)
	assert.Equal(t, "Adapter is disabled", h.Message)
}

func TestInitializeIsIdempotent(t *testing.T) {
	var logs bytes.Buffer
	a := NewInfraAdapter(DefaultInfraConfig(), WithLogger(zerolog.New(&logs)))
	ctx := context.Background()

	require.NoError(t, a.Initialize(ctx))
	caps := a.Capabilities()
	require.NoError(t, a.Initialize(ctx))

	assert.True(t, a.Initialized())
	assert.Equal(t, caps, a.Capabilities())
	assert.Contains(t, logs.String(), "already initialized")
}

func TestDisabledCapabilities(t *testing.T) {
	cfg := DefaultInfraConfig()
	cfg.EnableCaching = false
	cfg.EnableRateLimiting = false
	a := NewInfraAdapter(cfg)
	require.NoError(t, a.Initialize(context.Background()))

	caps := a.Capabilities()
	assert.False(t, caps.Caching)
	assert.False(t, caps.RateLimiting)
	assert.True(t, caps.Config)
	assert.Equal(t, 4, caps.Count())
}

func TestDefaultsAfterInit(t *testing.T) {
	a := NewInfraAdapter(DefaultInfraConfig())
	require.NoError(t, a.Initialize(context.Background()))

	if diff := cmp.Diff(DefaultPolicySet(), a.Policies()); diff != "" {
		t.Fatalf("policies differ from defaults (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint32(100), a.RateLimitPolicy().RequestsPerSecond)
	assert.Equal(t, uint64(10_000), a.CachePolicy().MaxEntries)
	assert.True(t, a.CachePolicy().NegativeCache)
}

func TestReadersGetCopies(t *testing.T) {
	a := NewInfraAdapter(DefaultInfraConfig())
	p := a.RetryPolicy()
	p.RetryableStatusCodes[0] = 999
	assert.Equal(t, uint16(408), a.RetryPolicy().RetryableStatusCodes[0])
}

const policyYAML = `
retry:
  max_retries: 7
  initial_backoff_ms: 50
  max_backoff_ms: 1000
  multiplier: 3
  retryable_status_codes: [503]
rate_limit:
  requests_per_second: 5
  burst_size: 10
cache:
  backend: redis
`

func writePolicy(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestFileSourceOverridesDefaults(t *testing.T) {
	path := writePolicy(t, t.TempDir(), policyYAML)
	a := NewInfraAdapter(DefaultInfraConfig(), WithSource(FileSource{Path: path}))
	require.NoError(t, a.Initialize(context.Background()))

	r := a.RetryPolicy()
	assert.Equal(t, uint32(7), r.MaxRetries)
	assert.Equal(t, []uint16{503}, r.RetryableStatusCodes)
	assert.Equal(t, uint32(5), a.RateLimitPolicy().RequestsPerSecond)
	assert.Equal(t, CacheRedis, a.CachePolicy().Backend)
	// untouched keys keep their defaults
	assert.Equal(t, uint64(3600), a.CachePolicy().DefaultTTLSecs)
	assert.Equal(t, DefaultTracingConfig(), a.TracingConfig())
}

func TestRefreshSkipsDisabledPolicies(t *testing.T) {
	path := writePolicy(t, t.TempDir(), policyYAML)
	cfg := DefaultInfraConfig()
	cfg.EnableRetry = false
	a := NewInfraAdapter(cfg, WithSource(FileSource{Path: path}))
	require.NoError(t, a.Initialize(context.Background()))

	assert.Equal(t, DefaultRetryPolicy(), a.RetryPolicy())
	assert.Equal(t, uint32(5), a.RateLimitPolicy().RequestsPerSecond)
	require.NoError(t, a.RefreshRetryPolicy(context.Background()))
	assert.Equal(t, DefaultRetryPolicy(), a.RetryPolicy())
}

func TestInvalidSnapshotLeavesPoliciesUntouched(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, policyYAML)
	a := NewInfraAdapter(DefaultInfraConfig(), WithSource(FileSource{Path: path}))
	require.NoError(t, a.Initialize(context.Background()))

	writePolicy(t, dir, "tracing:\n  sample_rate: 4\n")
	assert.Error(t, a.RefreshAll(context.Background()))
	assert.Equal(t, uint32(7), a.RetryPolicy().MaxRetries)

	writePolicy(t, dir, "retry: [not, a, map]\n")
	assert.Error(t, a.RefreshAll(context.Background()))
}

func TestConcurrentReadsDuringRefresh(t *testing.T) {
	path := writePolicy(t, t.TempDir(), policyYAML)
	a := NewInfraAdapter(DefaultInfraConfig(), WithSource(FileSource{Path: path}))
	ctx := context.Background()
	require.NoError(t, a.Initialize(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r := a.RetryPolicy()
				// a snapshot is either the file's policy or nothing else
				if r.MaxRetries != 7 || len(r.RetryableStatusCodes) != 1 {
					t.Errorf("torn retry policy: %+v", r)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, a.RefreshAll(ctx))
	}
	wg.Wait()
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, policyYAML)
	src := FileSource{Path: path}
	a := NewInfraAdapter(DefaultInfraConfig(), WithSource(src))
	require.NoError(t, a.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx, a, zerolog.Nop()) }()

	require.Eventually(t, func() bool {
		writePolicy(t, dir, "rate_limit:\n  requests_per_second: 42\n  burst_size: 1\n")
		return a.RateLimitPolicy().RequestsPerSecond == 42
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchReloadsIntoAdapterWithDefaultSource(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, policyYAML)
	src := FileSource{Path: path}
	a := NewInfraAdapter(DefaultInfraConfig())
	require.NoError(t, a.Initialize(context.Background()))
	require.Equal(t, DefaultRateLimitPolicy().RequestsPerSecond, a.RateLimitPolicy().RequestsPerSecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx, a, zerolog.Nop()) }()

	require.Eventually(t, func() bool {
		writePolicy(t, dir, "rate_limit:\n  requests_per_second: 42\n  burst_size: 1\n")
		return a.RateLimitPolicy().RequestsPerSecond == 42
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRefreshFromLeavesConfiguredSourceAlone(t *testing.T) {
	dir := t.TempDir()
	path := writePolicy(t, dir, "rate_limit:\n  requests_per_second: 7\n  burst_size: 1\n")
	a := NewInfraAdapter(DefaultInfraConfig())
	ctx := context.Background()
	require.NoError(t, a.Initialize(ctx))

	require.NoError(t, a.RefreshFrom(ctx, FileSource{Path: path}))
	assert.Equal(t, uint32(7), a.RateLimitPolicy().RequestsPerSecond)

	require.NoError(t, a.RefreshAll(ctx))
	assert.Equal(t, DefaultRateLimitPolicy().RequestsPerSecond, a.RateLimitPolicy().RequestsPerSecond)
}
