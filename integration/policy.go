package integration

import (
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RetryPolicy describes exponential backoff for shared outbound calls
type RetryPolicy struct {
	MaxRetries           uint32   `yaml:"max_retries" json:"max_retries"`
	InitialBackoffMs     uint64   `yaml:"initial_backoff_ms" json:"initial_backoff_ms" validate:"gt=0"`
	MaxBackoffMs         uint64   `yaml:"max_backoff_ms" json:"max_backoff_ms" validate:"gtefield=InitialBackoffMs"`
	Multiplier           float64  `yaml:"multiplier" json:"multiplier" validate:"gte=1"`
	Jitter               bool     `yaml:"jitter" json:"jitter"`
	RetryableStatusCodes []uint16 `yaml:"retryable_status_codes" json:"retryable_status_codes" validate:"dive,gte=100,lte=599"`
}

// DefaultRetryPolicy returns the built-in retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:           3,
		InitialBackoffMs:     100,
		MaxBackoffMs:         30_000,
		Multiplier:           2.0,
		Jitter:               true,
		RetryableStatusCodes: []uint16{408, 429, 500, 502, 503, 504},
	}
}

// BackoffForAttempt returns the wait before attempt (1-based): the initial
// backoff grown by multiplier per attempt, capped at the maximum, plus up to
// 30% jitter when enabled.
func (p RetryPolicy) BackoffForAttempt(attempt uint32) time.Duration {
	exp := float64(attempt) - 1
	if exp < 0 {
		exp = 0
	}
	backoff := float64(p.InitialBackoffMs) * math.Pow(p.Multiplier, exp)
	backoff = math.Min(backoff, float64(p.MaxBackoffMs))
	if p.Jitter {
		backoff += rand.Float64() * 0.3 * backoff
	}
	return time.Duration(backoff) * time.Millisecond
}

// ShouldRetry reports whether a response status is retryable
func (p RetryPolicy) ShouldRetry(status uint16) bool {
	return slices.Contains(p.RetryableStatusCodes, status)
}

func (p RetryPolicy) clone() RetryPolicy {
	p.RetryableStatusCodes = slices.Clone(p.RetryableStatusCodes)
	return p
}

// RateLimitPolicy is a token bucket description
type RateLimitPolicy struct {
	RequestsPerSecond uint32 `yaml:"requests_per_second" json:"requests_per_second" validate:"gt=0"`
	BurstSize         uint32 `yaml:"burst_size" json:"burst_size" validate:"gt=0"`
	PerUser           bool   `yaml:"per_user" json:"per_user"`
	PerIP             bool   `yaml:"per_ip" json:"per_ip"`
	Global            bool   `yaml:"global" json:"global"`
}

// DefaultRateLimitPolicy returns the built-in rate limit policy
func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{
		RequestsPerSecond: 100,
		BurstSize:         200,
		PerUser:           true,
		PerIP:             true,
		Global:            true,
	}
}

// Limiter builds a token bucket matching the policy
func (p RateLimitPolicy) Limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(p.RequestsPerSecond), int(p.BurstSize))
}

// CacheBackend names where cached entries live
type CacheBackend string

const (
	CacheMemory    CacheBackend = "memory"
	CacheRedis     CacheBackend = "redis"
	CacheMemcached CacheBackend = "memcached"
)

// CachePolicy bounds the shared cache
type CachePolicy struct {
	MaxEntries      uint64       `yaml:"max_entries" json:"max_entries"`
	MaxSizeBytes    uint64       `yaml:"max_size_bytes" json:"max_size_bytes"`
	DefaultTTLSecs  uint64       `yaml:"default_ttl_secs" json:"default_ttl_secs"`
	NegativeCache   bool         `yaml:"negative_cache" json:"negative_cache"`
	NegativeTTLSecs uint64       `yaml:"negative_ttl_secs" json:"negative_ttl_secs"`
	Backend         CacheBackend `yaml:"backend" json:"backend" validate:"oneof=memory redis memcached"`
}

// DefaultCachePolicy returns the built-in cache policy
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{
		MaxEntries:      10_000,
		MaxSizeBytes:    256 * 1024 * 1024,
		DefaultTTLSecs:  3600,
		NegativeCache:   true,
		NegativeTTLSecs: 60,
		Backend:         CacheMemory,
	}
}

// DefaultTTL returns the entry lifetime as a duration
func (p CachePolicy) DefaultTTL() time.Duration {
	return time.Duration(p.DefaultTTLSecs) * time.Second
}

// LoggingConfig describes log output
type LoggingConfig struct {
	Level        string `yaml:"level" json:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format       string `yaml:"format" json:"format" validate:"oneof=json pretty console auto"`
	Timestamps   bool   `yaml:"timestamps" json:"timestamps"`
	Spans        bool   `yaml:"spans" json:"spans"`
	Targets      bool   `yaml:"targets" json:"targets"`
	FileLocation bool   `yaml:"file_location" json:"file_location"`
}

// DefaultLoggingConfig returns the built-in logging config
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Timestamps: true,
		Spans:      true,
		Targets:    true,
	}
}

// ZerologLevel maps Level onto zerolog, falling back to info
func (c LoggingConfig) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// LogFormat maps Format onto the logger formats ("pretty" is console)
func (c LoggingConfig) LogFormat() string {
	if c.Format == "pretty" {
		return "console"
	}
	return c.Format
}

// TracePropagation names a trace context wire format
type TracePropagation string

const (
	PropagationW3C    TracePropagation = "w3c"
	PropagationJaeger TracePropagation = "jaeger"
	PropagationB3     TracePropagation = "b3"
	PropagationXRay   TracePropagation = "x_ray"
)

// TracingConfig describes distributed tracing
type TracingConfig struct {
	Enabled      bool             `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string           `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty" validate:"omitempty,url"`
	ServiceName  string           `yaml:"service_name" json:"service_name" validate:"required"`
	SampleRate   float64          `yaml:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
	Propagation  TracePropagation `yaml:"propagation" json:"propagation" validate:"oneof=w3c jaeger b3 x_ray"`
}

// DefaultTracingConfig returns the built-in tracing config
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:     true,
		ServiceName: "vault-bench",
		SampleRate:  1.0,
		Propagation: PropagationW3C,
	}
}

// ErrorConfig describes error reporting
type ErrorConfig struct {
	IncludeStackTrace bool    `yaml:"include_stack_trace" json:"include_stack_trace"`
	IncludeContext    bool    `yaml:"include_context" json:"include_context"`
	ReportingEndpoint string  `yaml:"reporting_endpoint,omitempty" json:"reporting_endpoint,omitempty" validate:"omitempty,url"`
	SampleRate        float64 `yaml:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
}

// DefaultErrorConfig returns the built-in error config
func DefaultErrorConfig() ErrorConfig {
	return ErrorConfig{
		IncludeContext: true,
		SampleRate:     1.0,
	}
}

// PolicySet is one snapshot of every policy the adapter serves
type PolicySet struct {
	Retry     RetryPolicy     `yaml:"retry" json:"retry"`
	RateLimit RateLimitPolicy `yaml:"rate_limit" json:"rate_limit"`
	Cache     CachePolicy     `yaml:"cache" json:"cache"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
	Error     ErrorConfig     `yaml:"error" json:"error"`
}

// DefaultPolicySet returns every built-in default
func DefaultPolicySet() PolicySet {
	return PolicySet{
		Retry:     DefaultRetryPolicy(),
		RateLimit: DefaultRateLimitPolicy(),
		Cache:     DefaultCachePolicy(),
		Logging:   DefaultLoggingConfig(),
		Tracing:   DefaultTracingConfig(),
		Error:     DefaultErrorConfig(),
	}
}
