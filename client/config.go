package client

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pcxmarket/storefront/cache"
)

// DefaultBaseURL is the API root used when none is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// Config configures a Client.
type Config struct {
	// BaseURL is the API root every request path is appended to.
	// Default: DefaultBaseURL
	BaseURL string

	// Timeout bounds one network attempt.
	// Default: 30s
	Timeout time.Duration

	// UnauthorizedDelay is waited before a final 401 is returned.
	// Default: 2s. A negative value disables the wait.
	UnauthorizedDelay time.Duration

	// RetryAttempts is the number of attempts for a GET that failed without
	// a response. Default: 1 (no retry)
	RetryAttempts int

	// RetryDelay is the constant wait between attempts.
	// Default: 2s
	RetryDelay time.Duration

	// MaxConcurrent caps concurrent network requests. 0 means unlimited.
	MaxConcurrent int

	// CachePolicy controls how long GET responses stay fresh.
	// Default: cache.DefaultPolicy()
	CachePolicy cache.Policy

	// DisableCache turns off response caching.
	DisableCache bool

	// FailureTTL bounds how long a 404 keeps an endpoint blocked.
	// Default: 0, blocked for the life of the Client.
	FailureTTL time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           30 * time.Second,
		UnauthorizedDelay: 2 * time.Second,
		RetryAttempts:     1,
		RetryDelay:        2 * time.Second,
		CachePolicy:       cache.DefaultPolicy(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	switch {
	case c.UnauthorizedDelay == 0:
		c.UnauthorizedDelay = d.UnauthorizedDelay
	case c.UnauthorizedDelay < 0:
		c.UnauthorizedDelay = 0
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.DisableCache {
		c.CachePolicy = cache.NoCachePolicy()
	} else if c.CachePolicy == (cache.Policy{}) {
		c.CachePolicy = d.CachePolicy
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: base URL %q", ErrInvalidConfig, c.BaseURL)
		}
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("%w: max concurrent must be >= 0", ErrInvalidConfig)
	}
	if c.FailureTTL < 0 {
		return fmt.Errorf("%w: failure TTL must be >= 0", ErrInvalidConfig)
	}
	if c.CachePolicy.DefaultTTL < 0 || c.CachePolicy.MaxTTL < 0 {
		return fmt.Errorf("%w: cache TTL must be >= 0", ErrInvalidConfig)
	}
	return nil
}
