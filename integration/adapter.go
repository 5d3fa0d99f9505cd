// Package integration serves the infrastructure policies (retry, rate
// limiting, caching, logging, tracing and error reporting) shared by the
// vault's components.
package integration

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	AdapterName    = "infra"
	AdapterVersion = "0.2.0"
)

// AdapterConfig holds settings common to every adapter
type AdapterConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// InfraConfig toggles the individual capabilities
type InfraConfig struct {
	Adapter            AdapterConfig `yaml:"adapter" json:"adapter"`
	EnableConfig       bool          `yaml:"enable_config" json:"enable_config"`
	EnableLogging      bool          `yaml:"enable_logging" json:"enable_logging"`
	EnableTracing      bool          `yaml:"enable_tracing" json:"enable_tracing"`
	EnableCaching      bool          `yaml:"enable_caching" json:"enable_caching"`
	EnableRetry        bool          `yaml:"enable_retry" json:"enable_retry"`
	EnableRateLimiting bool          `yaml:"enable_rate_limiting" json:"enable_rate_limiting"`
}

// DefaultInfraConfig enables everything
func DefaultInfraConfig() InfraConfig {
	return InfraConfig{
		Adapter:            AdapterConfig{Enabled: true},
		EnableConfig:       true,
		EnableLogging:      true,
		EnableTracing:      true,
		EnableCaching:      true,
		EnableRetry:        true,
		EnableRateLimiting: true,
	}
}

// Capabilities reports which policies the adapter serves
type Capabilities struct {
	Config       bool `json:"config"`
	Logging      bool `json:"logging"`
	Tracing      bool `json:"tracing"`
	Caching      bool `json:"caching"`
	Retry        bool `json:"retry"`
	RateLimiting bool `json:"rate_limiting"`
}

// Count returns how many capabilities are available
func (c Capabilities) Count() int {
	n := 0
	for _, on := range []bool{c.Config, c.Logging, c.Tracing, c.Caching, c.Retry, c.RateLimiting} {
		if on {
			n++
		}
	}
	return n
}

// Health is the outcome of a health check
type Health struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

// guarded holds one policy value. Readers get a copy and writers replace
// the whole value.
type guarded[T any] struct {
	mu  sync.RWMutex
	val T
}

func (g *guarded[T]) get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.val
}

func (g *guarded[T]) set(v T) {
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

// InfraAdapter serves policy snapshots to concurrent readers. Policies are
// replaced wholesale on refresh so a reader never sees a partial update.
type InfraAdapter struct {
	cfg    InfraConfig
	source PolicySource
	log    zerolog.Logger

	retry     guarded[RetryPolicy]
	rateLimit guarded[RateLimitPolicy]
	cache     guarded[CachePolicy]
	logging   guarded[LoggingConfig]
	tracing   guarded[TracingConfig]
	errCfg    guarded[ErrorConfig]
	caps      guarded[Capabilities]

	// initMu serializes Initialize and Shutdown
	initMu      sync.Mutex
	initialized guarded[bool]
}

// Option customizes an InfraAdapter
type Option func(*InfraAdapter)

// WithSource sets where refreshes load policies from
func WithSource(s PolicySource) Option {
	return func(a *InfraAdapter) { a.source = s }
}

// WithLogger sets the adapter's logger
func WithLogger(l zerolog.Logger) Option {
	return func(a *InfraAdapter) { a.log = l }
}

// NewInfraAdapter creates an adapter holding the built-in defaults
func NewInfraAdapter(cfg InfraConfig, opts ...Option) *InfraAdapter {
	a := &InfraAdapter{
		cfg:    cfg,
		source: DefaultSource{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.apply(DefaultPolicySet(), true)
	return a
}

// Name identifies the adapter
func (a *InfraAdapter) Name() string { return AdapterName }

// Version is the adapter's protocol version
func (a *InfraAdapter) Version() string { return AdapterVersion }

// Config returns the adapter configuration
func (a *InfraAdapter) Config() InfraConfig { return a.cfg }

// RetryPolicy returns a copy of the current retry policy
func (a *InfraAdapter) RetryPolicy() RetryPolicy { return a.retry.get().clone() }

// RateLimitPolicy returns the current rate limit policy
func (a *InfraAdapter) RateLimitPolicy() RateLimitPolicy { return a.rateLimit.get() }

// CachePolicy returns the current cache policy
func (a *InfraAdapter) CachePolicy() CachePolicy { return a.cache.get() }

// LoggingConfig returns the current logging config
func (a *InfraAdapter) LoggingConfig() LoggingConfig { return a.logging.get() }

// TracingConfig returns the current tracing config
func (a *InfraAdapter) TracingConfig() TracingConfig { return a.tracing.get() }

// ErrorConfig returns the current error config
func (a *InfraAdapter) ErrorConfig() ErrorConfig { return a.errCfg.get() }

// Capabilities returns which policies are served
func (a *InfraAdapter) Capabilities() Capabilities { return a.caps.get() }

// Policies returns a snapshot of every policy
func (a *InfraAdapter) Policies() PolicySet {
	return PolicySet{
		Retry:     a.RetryPolicy(),
		RateLimit: a.RateLimitPolicy(),
		Cache:     a.CachePolicy(),
		Logging:   a.LoggingConfig(),
		Tracing:   a.TracingConfig(),
		Error:     a.ErrorConfig(),
	}
}

// Initialized reports whether Initialize completed
func (a *InfraAdapter) Initialized() bool { return a.initialized.get() }

// Initialize computes capabilities and loads policies. Calling it again is a
// no-op that logs a warning.
func (a *InfraAdapter) Initialize(ctx context.Context) error {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	if a.initialized.get() {
		a.log.Warn().Msg("Infra adapter already initialized")
		return nil
	}

	a.log.Info().
		Bool("enable_config", a.cfg.EnableConfig).
		Bool("enable_logging", a.cfg.EnableLogging).
		Bool("enable_tracing", a.cfg.EnableTracing).
		Bool("enable_caching", a.cfg.EnableCaching).
		Bool("enable_retry", a.cfg.EnableRetry).
		Bool("enable_rate_limiting", a.cfg.EnableRateLimiting).
		Msg("Initializing infra adapter")

	a.caps.set(Capabilities{
		Config:       a.cfg.EnableConfig,
		Logging:      a.cfg.EnableLogging,
		Tracing:      a.cfg.EnableTracing,
		Caching:      a.cfg.EnableCaching,
		Retry:        a.cfg.EnableRetry,
		RateLimiting: a.cfg.EnableRateLimiting,
	})

	if err := a.RefreshAll(ctx); err != nil {
		return errors.Wrap(err, "initialize infra adapter")
	}

	a.initialized.set(true)
	a.log.Info().Msg("Infra adapter initialized")
	return nil
}

// HealthCheck reports unhealthy while disabled or uninitialized
func (a *InfraAdapter) HealthCheck(ctx context.Context) (Health, error) {
	if err := ctx.Err(); err != nil {
		return Health{}, err
	}
	if !a.cfg.Adapter.Enabled {
		return Health{Message: "Adapter is disabled"}, nil
	}
	if !a.initialized.get() {
		return Health{Message: "Adapter not initialized"}, nil
	}
	return Health{
		Healthy: true,
		Message: fmt.Sprintf("Infra adapter healthy: %d/6 capabilities available", a.Capabilities().Count()),
	}, nil
}

// Shutdown marks the adapter uninitialized. Policies stay readable.
func (a *InfraAdapter) Shutdown(context.Context) error {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	a.log.Info().Msg("Shutting down infra adapter")
	a.initialized.set(false)
	return nil
}

// RefreshAll loads a snapshot from the source, validates it and replaces
// every enabled policy. An invalid snapshot changes nothing.
func (a *InfraAdapter) RefreshAll(ctx context.Context) error {
	return a.RefreshFrom(ctx, a.source)
}

// RefreshFrom is RefreshAll against src instead of the configured source
func (a *InfraAdapter) RefreshFrom(ctx context.Context, src PolicySource) error {
	set, err := load(ctx, src)
	if err != nil {
		return err
	}
	a.log.Debug().Msg("Refreshing all policies")
	a.apply(set, false)
	return nil
}

// RefreshRetryPolicy reloads only the retry policy
func (a *InfraAdapter) RefreshRetryPolicy(ctx context.Context) error {
	if !a.cfg.EnableRetry {
		return nil
	}
	set, err := load(ctx, a.source)
	if err != nil {
		return err
	}
	a.retry.set(set.Retry.clone())
	return nil
}

// RefreshRateLimitPolicy reloads only the rate limit policy
func (a *InfraAdapter) RefreshRateLimitPolicy(ctx context.Context) error {
	if !a.cfg.EnableRateLimiting {
		return nil
	}
	set, err := load(ctx, a.source)
	if err != nil {
		return err
	}
	a.rateLimit.set(set.RateLimit)
	return nil
}

// RefreshCachePolicy reloads only the cache policy
func (a *InfraAdapter) RefreshCachePolicy(ctx context.Context) error {
	if !a.cfg.EnableCaching {
		return nil
	}
	set, err := load(ctx, a.source)
	if err != nil {
		return err
	}
	a.cache.set(set.Cache)
	return nil
}

func load(ctx context.Context, src PolicySource) (PolicySet, error) {
	set, err := src.Load(ctx)
	if err != nil {
		return PolicySet{}, errors.Wrap(err, "load policies")
	}
	if err := ValidatePolicies(set); err != nil {
		return PolicySet{}, err
	}
	return set, nil
}

// apply replaces each policy whose capability is enabled, or all of them
// when force is set.
func (a *InfraAdapter) apply(set PolicySet, force bool) {
	if force || a.cfg.EnableRetry {
		a.retry.set(set.Retry.clone())
	}
	if force || a.cfg.EnableRateLimiting {
		a.rateLimit.set(set.RateLimit)
	}
	if force || a.cfg.EnableCaching {
		a.cache.set(set.Cache)
	}
	if force || a.cfg.EnableLogging {
		a.logging.set(set.Logging)
	}
	if force || a.cfg.EnableTracing {
		a.tracing.set(set.Tracing)
	}
	if force || a.cfg.EnableConfig {
		a.errCfg.set(set.Error)
	}
}
