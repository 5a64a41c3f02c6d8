package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/secret"
	"github.com/pcxmarket/storefront/storage"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, name := range []string{EnvBaseURL, EnvTimeout, EnvStorage, EnvAccessToken, EnvCacheTTL, EnvMockAPI} {
		t.Setenv(name, "")
	}
	cfg, err := FromEnv(context.Background(), secret.DefaultResolver())
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Client.BaseURL != client.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.Client.BaseURL, client.DefaultBaseURL)
	}
	if cfg.Client.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Client.Timeout)
	}
	if cfg.Client.CachePolicy.DefaultTTL != 5*time.Minute {
		t.Errorf("cache TTL = %v, want 5m", cfg.Client.CachePolicy.DefaultTTL)
	}
	if cfg.Storage.Backend != BackendFile || cfg.Cache.Backend != BackendMemory {
		t.Errorf("backends = %s/%s", cfg.Storage.Backend, cfg.Cache.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PCX_HOST", "api.pcx.test")
	t.Setenv("PCX_TOKEN", "tok-123")
	t.Setenv(EnvBaseURL, "https://${PCX_HOST}/api")
	t.Setenv(EnvTimeout, "5s")
	t.Setenv(EnvUnauthorizedDelay, "2000")
	t.Setenv(EnvFailureTTL, "10m")
	t.Setenv(EnvRetryAttempts, "3")
	t.Setenv(EnvCacheTTL, "0")
	t.Setenv(EnvStorage, "Memory")
	t.Setenv(EnvAccessToken, "secretref:env:PCX_TOKEN")
	t.Setenv(EnvMockAPI, "true")

	cfg, err := FromEnv(context.Background(), secret.DefaultResolver())
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"BaseURL", cfg.Client.BaseURL, "https://api.pcx.test/api"},
		{"Timeout", cfg.Client.Timeout, 5 * time.Second},
		{"UnauthorizedDelay", cfg.Client.UnauthorizedDelay, 2 * time.Second},
		{"FailureTTL", cfg.Client.FailureTTL, 10 * time.Minute},
		{"RetryAttempts", cfg.Client.RetryAttempts, 3},
		{"DisableCache", cfg.Client.DisableCache, true},
		{"Storage", cfg.Storage.Backend, BackendMemory},
		{"AccessToken", cfg.AccessToken, "tok-123"},
		{"Mock", cfg.Mock, true},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if cfg.CachePolicy().ShouldCache() {
		t.Error("CachePolicy().ShouldCache() = true with a zero TTL")
	}
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad duration", EnvTimeout, "soon"},
		{"bad int", EnvRetryAttempts, "many"},
		{"missing variable", EnvBaseURL, "https://${PCX_UNSET_HOST}/api"},
		{"unknown secret provider", EnvAccessToken, "secretref:vault:pcx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(context.Background(), secret.DefaultResolver()); err == nil {
				t.Errorf("FromEnv() with %s=%q error = nil", tt.key, tt.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Client:  client.DefaultConfig(),
			Storage: StorageConfig{Backend: BackendMemory},
			Cache:   CacheConfig{Backend: BackendMemory},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad url", func(c *Config) { c.Client.BaseURL = "ftp://x" }, false},
		{"bad url in mock mode", func(c *Config) { c.Client.BaseURL = "ftp://x"; c.Mock = true }, true},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "s3" }, false},
		{"file without path", func(c *Config) { c.Storage.Backend = BackendFile }, false},
		{"redis without addr", func(c *Config) { c.Cache.Backend = BackendRedis }, false},
		{"refresh without access", func(c *Config) { c.RefreshToken = "r" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			c.Observe.ServiceName = serviceName
			tt.mutate(c)
			err := c.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() error = %v, want ok %v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.env")
	data := EnvBaseURL + "=http://127.0.0.1:9000/api\n" + EnvRetryDelay + "=250ms\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvRetryDelay, "")
	os.Unsetenv(EnvBaseURL)
	os.Unsetenv(EnvRetryDelay)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Client.BaseURL != "http://127.0.0.1:9000/api" || cfg.Client.RetryDelay != 250*time.Millisecond {
		t.Errorf("config = %+v", cfg.Client)
	}

	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Load(missing file) error = nil")
	}
}

func TestOpen_SeedsTokens(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{
		Storage:     StorageConfig{Backend: BackendFile, Path: filepath.Join(t.TempDir(), "state.json")},
		Cache:       CacheConfig{Backend: BackendMemory},
		AccessToken: "tok-123",
	}
	b, err := cfg.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	if b.Cache != nil {
		t.Errorf("Cache = %T, want nil for the memory backend", b.Cache)
	}
	access, err := auth.NewTokenStore(b.Store).Access(ctx)
	if err != nil || access != "tok-123" {
		t.Errorf("access = %q, %v", access, err)
	}
	if _, ok := b.Store.(*storage.FileStore); !ok {
		t.Errorf("Store = %T, want *storage.FileStore", b.Store)
	}
}
