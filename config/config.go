// Package config loads storefront settings from the environment.
//
// Variables are read after an optional .env file is loaded. Values may
// reference other variables (${NAME}) and credentials may be secret
// references such as secretref:env:PCX_TOKEN or secretref:file:/run/token.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pcxmarket/storefront/cache"
	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/observe"
	"github.com/pcxmarket/storefront/secret"
	"github.com/pcxmarket/storefront/storage"
)

// Environment variables.
const (
	EnvBaseURL           = "STOREFRONT_API_BASE_URL"
	EnvTimeout           = "STOREFRONT_API_TIMEOUT"
	EnvCacheTTL          = "STOREFRONT_CACHE_TTL"
	EnvCacheMaxTTL       = "STOREFRONT_CACHE_MAX_TTL"
	EnvCacheBackend      = "STOREFRONT_CACHE"
	EnvFailureTTL        = "STOREFRONT_FAILURE_TTL"
	EnvUnauthorizedDelay = "STOREFRONT_UNAUTHORIZED_DELAY"
	EnvRetryAttempts     = "STOREFRONT_RETRY_ATTEMPTS"
	EnvRetryDelay        = "STOREFRONT_RETRY_DELAY"
	EnvMaxConcurrent     = "STOREFRONT_MAX_CONCURRENT"
	EnvStorage           = "STOREFRONT_STORAGE"
	EnvStoragePath       = "STOREFRONT_STORAGE_PATH"
	EnvRedisAddr         = "STOREFRONT_REDIS_ADDR"
	EnvRedisPrefix       = "STOREFRONT_REDIS_PREFIX"
	EnvLogLevel          = "STOREFRONT_LOG_LEVEL"
	EnvTracingExporter   = "STOREFRONT_TRACING_EXPORTER"
	EnvMetricsExporter   = "STOREFRONT_METRICS_EXPORTER"
	EnvAccessToken       = "STOREFRONT_ACCESS_TOKEN"
	EnvRefreshToken      = "STOREFRONT_REFRESH_TOKEN"
	EnvMockAPI           = "STOREFRONT_MOCK_API"
)

// Storage and cache backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

const (
	defaultStoragePath = ".storefront.json"
	defaultRedisAddr   = "localhost:6379"
	defaultLogLevel    = "info"
	serviceName        = "storefront"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the complete storefront configuration.
type Config struct {
	Client  client.Config
	Storage StorageConfig
	Cache   CacheConfig
	Observe observe.Config

	// AccessToken and RefreshToken seed the token store when set.
	AccessToken  string
	RefreshToken string

	// Mock serves the API from the in-process fake backend.
	Mock bool
}

// StorageConfig selects where tokens, the cart and account ids live.
type StorageConfig struct {
	Backend     string // memory|file|redis
	Path        string
	RedisAddr   string
	RedisPrefix string
}

// CacheConfig selects where GET responses are cached.
type CacheConfig struct {
	Backend string // memory|redis
}

// Load reads the configuration. Files, when given, are .env files that
// must exist; otherwise ./.env is loaded if present. Variables already set
// in the environment win over file values.
func Load(ctx context.Context, files ...string) (*Config, error) {
	if err := loadDotenv(files); err != nil {
		return nil, err
	}
	return FromEnv(ctx, secret.DefaultResolver())
}

func loadDotenv(files []string) error {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return fmt.Errorf("config: load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// FromEnv builds the configuration from the process environment, resolving
// credentials through resolver.
func FromEnv(ctx context.Context, resolver *secret.Resolver) (*Config, error) {
	cfg := &Config{Client: client.DefaultConfig()}
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if v := os.Getenv(EnvBaseURL); v != "" {
		expanded, err := secret.ExpandEnvStrict(v)
		collect(err)
		cfg.Client.BaseURL = expanded
	}
	collect(durationEnv(EnvTimeout, &cfg.Client.Timeout))
	collect(durationEnv(EnvUnauthorizedDelay, &cfg.Client.UnauthorizedDelay))
	collect(durationEnv(EnvRetryDelay, &cfg.Client.RetryDelay))
	collect(durationEnv(EnvFailureTTL, &cfg.Client.FailureTTL))
	collect(durationEnv(EnvCacheTTL, &cfg.Client.CachePolicy.DefaultTTL))
	collect(durationEnv(EnvCacheMaxTTL, &cfg.Client.CachePolicy.MaxTTL))
	collect(intEnv(EnvRetryAttempts, &cfg.Client.RetryAttempts))
	collect(intEnv(EnvMaxConcurrent, &cfg.Client.MaxConcurrent))
	if v, ok := os.LookupEnv(EnvCacheTTL); ok && v == "0" {
		cfg.Client.DisableCache = true
	}

	cfg.Storage = StorageConfig{
		Backend:     strings.ToLower(getEnvOrDefault(EnvStorage, BackendFile)),
		Path:        getEnvOrDefault(EnvStoragePath, defaultStoragePath),
		RedisAddr:   getEnvOrDefault(EnvRedisAddr, defaultRedisAddr),
		RedisPrefix: getEnvOrDefault(EnvRedisPrefix, storage.DefaultRedisPrefix),
	}
	cfg.Cache = CacheConfig{Backend: strings.ToLower(getEnvOrDefault(EnvCacheBackend, BackendMemory))}

	level := getEnvOrDefault(EnvLogLevel, defaultLogLevel)
	tracing := getEnvOrDefault(EnvTracingExporter, "none")
	metrics := getEnvOrDefault(EnvMetricsExporter, "none")
	cfg.Observe = observe.Config{
		ServiceName: serviceName,
		Tracing:     observe.TracingConfig{Enabled: tracing != "none", Exporter: tracing, SamplePct: 1},
		Metrics:     observe.MetricsConfig{Enabled: metrics != "none", Exporter: metrics},
		Logging:     observe.LoggingConfig{Enabled: true, Level: level},
	}

	var err error
	cfg.AccessToken, err = resolver.Resolve(ctx, os.Getenv(EnvAccessToken))
	collect(wrapEnv(EnvAccessToken, err))
	cfg.RefreshToken, err = resolver.Resolve(ctx, os.Getenv(EnvRefreshToken))
	collect(wrapEnv(EnvRefreshToken, err))

	cfg.Mock = getBoolEnv(EnvMockAPI, false)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if !c.Mock {
		if err := c.Client.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: %s is required for file storage", ErrInvalid, EnvStoragePath)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.Storage.Backend)
	}
	switch c.Cache.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalid, c.Cache.Backend)
	}
	if c.usesRedis() && c.Storage.RedisAddr == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, EnvRedisAddr)
	}
	if c.RefreshToken != "" && c.AccessToken == "" {
		return fmt.Errorf("%w: %s requires %s", ErrInvalid, EnvRefreshToken, EnvAccessToken)
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (c *Config) usesRedis() bool {
	return c.Storage.Backend == BackendRedis || c.Cache.Backend == BackendRedis
}

// CachePolicy returns the response cache policy in effect.
func (c *Config) CachePolicy() cache.Policy {
	if c.Client.DisableCache {
		return cache.NoCachePolicy()
	}
	return c.Client.CachePolicy
}

func wrapEnv(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", name, err)
}

func durationEnv(name string, dst *time.Duration) error {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		// Bare numbers are milliseconds.
		*dst = time.Duration(n) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return wrapEnv(name, err)
	}
	*dst = d
	return nil
}

func intEnv(name string, dst *int) error {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return wrapEnv(name, err)
	}
	*dst = n
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return b
	}
	return defaultValue
}
