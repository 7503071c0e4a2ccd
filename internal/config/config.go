// Package config loads the static YAML topology a dispatch fabric node
// starts from, then layers environment-variable and CLI-flag overrides
// on top via viper. Struct shape and the "zero means apply default"
// loading convention are grounded on cellorg/internal/config/config.go.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full static configuration for an agentd node: which
// endpoints to serve or dial, registry heartbeat tuning, and defaults for
// every middleware a composed agent might wrap.
type Config struct {
	AppName string `yaml:"app_name" mapstructure:"app_name"`
	Debug   bool   `yaml:"debug" mapstructure:"debug"`

	Serve    ServeConfig    `yaml:"serve" mapstructure:"serve"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`

	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Breaker   BreakerConfig   `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
}

// ServeConfig names the endpoint a LocalAgent binds to and how long a
// client call against it may run before RemoteAgent gives up.
type ServeConfig struct {
	Endpoint    string        `yaml:"endpoint" mapstructure:"endpoint"`
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
}

// RegistryConfig tunes the in-memory agent registry's staleness check.
type RegistryConfig struct {
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout" mapstructure:"heartbeat_timeout"`
	PruneInterval    time.Duration `yaml:"prune_interval" mapstructure:"prune_interval"`
}

// RateLimitConfig mirrors internal/middleware/ratelimit.Config.
type RateLimitConfig struct {
	Enabled          bool    `yaml:"enabled" mapstructure:"enabled"`
	Rate             float64 `yaml:"rate" mapstructure:"rate"`
	Capacity         int     `yaml:"capacity" mapstructure:"capacity"`
	TokensPerRequest int     `yaml:"tokens_per_request" mapstructure:"tokens_per_request"`
	Wait             bool    `yaml:"wait" mapstructure:"wait"`
}

// BreakerConfig mirrors internal/middleware/breaker.Config.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold uint32        `yaml:"success_threshold" mapstructure:"success_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" mapstructure:"recovery_timeout"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig mirrors internal/middleware/cache.Config (sans KeyFunc,
// which has no YAML representation and always defaults to DefaultKey).
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxSize    int           `yaml:"max_size" mapstructure:"max_size"`
	DefaultTTL time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
}

// BatchConfig mirrors internal/middleware/batch.Config.
type BatchConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxBatchSize int           `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	MaxWaitTime  time.Duration `yaml:"max_wait_time" mapstructure:"max_wait_time"`
	MaxQueueSize int           `yaml:"max_queue_size" mapstructure:"max_queue_size"`
}

// RetryConfig mirrors internal/middleware/retry.Config (sans Retryable,
// which has no YAML representation and always defaults to DefaultRetryable).
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts  uint          `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
}

// applyDefaults fills in every zero-valued field the fabric needs a
// sane non-zero value for, matching the teacher's "set defaults after
// unmarshal" convention.
func applyDefaults(c *Config) {
	if c.Serve.Endpoint == "" {
		c.Serve.Endpoint = "tcp://:9101"
	}
	if c.Serve.CallTimeout == 0 {
		c.Serve.CallTimeout = 30 * time.Second
	}
	if c.Registry.HeartbeatTimeout == 0 {
		c.Registry.HeartbeatTimeout = 90 * time.Second
	}
	if c.Registry.PruneInterval == 0 {
		c.Registry.PruneInterval = 30 * time.Second
	}
	if c.RateLimit.Rate == 0 {
		c.RateLimit.Rate = 50
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 100
	}
	if c.RateLimit.TokensPerRequest == 0 {
		c.RateLimit.TokensPerRequest = 1
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.SuccessThreshold == 0 {
		c.Breaker.SuccessThreshold = 2
	}
	if c.Breaker.RecoveryTimeout == 0 {
		c.Breaker.RecoveryTimeout = 30 * time.Second
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = 10 * time.Second
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 1000
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = 5 * time.Minute
	}
	if c.Batch.MaxBatchSize == 0 {
		c.Batch.MaxBatchSize = 10
	}
	if c.Batch.MaxWaitTime == 0 {
		c.Batch.MaxWaitTime = 100 * time.Millisecond
	}
	if c.Batch.MaxQueueSize == 0 {
		c.Batch.MaxQueueSize = c.Batch.MaxBatchSize * 10
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = 100 * time.Millisecond
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 5 * time.Second
	}
}

func validate(c *Config) error {
	if c.Registry.HeartbeatTimeout < 0 {
		return fmt.Errorf("config: registry.heartbeat_timeout cannot be negative: %s", c.Registry.HeartbeatTimeout)
	}
	if c.Registry.PruneInterval < 0 {
		return fmt.Errorf("config: registry.prune_interval cannot be negative: %s", c.Registry.PruneInterval)
	}
	if c.RateLimit.Rate < 0 {
		return fmt.Errorf("config: rate_limit.rate cannot be negative: %v", c.RateLimit.Rate)
	}
	return nil
}

// Load reads filename (if non-empty and present), layers AGENKIT_*
// environment variables and the values of flags on top, fills in
// defaults, and validates the result. flags may be nil, in which case
// no flag values are bound. Each call uses a fresh viper instance.
func Load(filename string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AGENKIT")
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", filename, err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyDefaults(&c)
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
