package client

import (
	"net/http"
	"time"

	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/cache"
	"github.com/pcxmarket/storefront/failure"
	"github.com/pcxmarket/storefront/observe"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for network calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithCache replaces the response cache.
func WithCache(cc cache.Cache) Option {
	return func(c *Client) {
		if cc != nil {
			c.cache = cc
		}
	}
}

// WithTokens sets the credentials source. Without it requests are anonymous.
func WithTokens(ts auth.TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the request metrics.
func WithMetrics(m observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer sets the request tracer.
func WithTracer(t observe.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithObserver takes tracer, metrics and logger from obs.
func WithObserver(obs observe.Observer) Option {
	return func(c *Client) {
		c.observer = obs
	}
}

// WithClock replaces the clock used for token expiry and, unless WithCache
// or WithFailureRegistry is also given, for cache and registry ages.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFailureRegistry replaces the failed-endpoint registry, for sharing
// one registry between clients.
func WithFailureRegistry(r *failure.Registry) Option {
	return func(c *Client) {
		if r != nil {
			c.failures = r
		}
	}
}
