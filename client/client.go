package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/cache"
	"github.com/pcxmarket/storefront/failure"
	"github.com/pcxmarket/storefront/inflight"
	"github.com/pcxmarket/storefront/observe"
	"github.com/pcxmarket/storefront/resilience"
)

// RefreshPath is the endpoint that exchanges a refresh token for a new
// access token.
const RefreshPath = "/token/refresh/"

// Client is the fetch orchestrator.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: a caller whose context ends stops waiting; a network call shared
//   with other callers keeps running for them.
// - Errors: *NetworkError, *TimeoutError, *HTTPError or *ValidationError,
//   possibly wrapped.
type Client struct {
	config Config

	http     *http.Client
	cache    cache.Cache
	keyer    cache.Keyer
	inflight *inflight.Registry
	failures *failure.Registry
	tokens   auth.TokenSource

	observer observe.Observer
	logger   observe.Logger
	metrics  observe.Metrics
	tracer   observe.Tracer
	mw       *observe.Middleware

	// reads retry transient failures; writes are attempted once.
	reads    *resilience.Executor
	writes   *resilience.Executor
	bulkhead *resilience.Bulkhead

	now func() time.Time
}

// New creates a Client.
func New(config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Client{
		config:   config,
		http:     &http.Client{},
		keyer:    cache.NewRequestKeyer(),
		inflight: inflight.New(),
		logger:   observe.NopLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cache == nil {
		c.cache = cache.NewMemoryCache(config.CachePolicy, cache.WithClock(c.now))
	}
	if c.failures == nil {
		c.failures = failure.New(failure.Config{TTL: config.FailureTTL, Now: c.now})
	}
	if c.tokens != nil {
		hc := *c.http
		hc.Transport = &auth.Transport{Base: c.http.Transport, Tokens: c.tokens}
		c.http = &hc
	}

	if c.observer != nil {
		mw, err := observe.MiddlewareFromObserver(c.observer)
		if err != nil {
			return nil, fmt.Errorf("client: telemetry: %w", err)
		}
		c.mw = mw
	} else {
		c.mw = observe.NewMiddleware(c.tracer, c.metrics, c.logger)
	}
	c.logger = c.mw.Logger()

	c.writes, c.reads = c.executors()
	return c, nil
}

func (c *Client) executors() (writes, reads *resilience.Executor) {
	opts := []resilience.ExecutorOption{resilience.WithTimeout(c.config.Timeout)}
	if c.config.MaxConcurrent > 0 {
		c.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: c.config.MaxConcurrent})
		opts = append(opts, resilience.WithBulkhead(c.bulkhead))
	}
	writes = resilience.NewExecutor(opts...)

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: c.config.RetryAttempts,
		Delay:       c.config.RetryDelay,
		Strategy:    resilience.BackoffConstant,
		RetryIf:     transient,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.logger.Warn(context.Background(), "retrying request",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay", Value: delay.String()},
				observe.Field{Key: "error", Value: err},
			)
		},
	})
	reads = resilience.NewExecutor(append(opts, resilience.WithRetry(retry))...)
	return writes, reads
}

// transient reports whether err is a failure without a response.
func transient(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) || errors.Is(err, resilience.ErrTimeout)
}

// Do executes req without a fallback.
func (c *Client) Do(ctx context.Context, req Request) (*Result, error) {
	return c.DoWithFallback(ctx, req, nil)
}

// DoWithFallback executes req. When the endpoint is known to be permanently
// failed, or answers 404 now, fallback supplies the result instead. A nil
// fallback behaves like Do.
func (c *Client) DoWithFallback(ctx context.Context, req Request, fallback Fallback) (*Result, error) {
	call, err := c.prepare(req)
	if err != nil {
		return nil, err
	}

	var res *Result
	run := c.mw.Wrap(func(ctx context.Context, _ observe.RequestMeta) (observe.Outcome, error) {
		var err error
		res, err = c.fetch(ctx, call, fallback)
		if err != nil {
			return observe.Outcome{Status: StatusOf(err)}, err
		}
		return observe.Outcome{Source: string(res.Source), Status: res.Status}, nil
	})
	if _, err := run(ctx, call.meta); err != nil {
		return nil, err
	}
	return res, nil
}

// call is a Request with everything derived from it.
type call struct {
	Request

	method   string
	target   string
	endpoint string
	key      string
	cacheKey string

	// cacheable GETs are read from and written to the cache.
	cacheable bool
	meta      observe.RequestMeta
}

const anonymousKeySuffix = "|anonymous"

func (c *Client) prepare(req Request) (*call, error) {
	if req.Path == "" {
		return nil, &ValidationError{Fields: map[string]string{"path": "is required"}}
	}

	cl := &call{
		Request:  req,
		method:   req.method(),
		target:   req.target(),
		endpoint: failure.EndpointOf(req.Path),
	}
	key, err := c.keyer.Key(cl.method, cl.target, req.keyBody())
	if err != nil {
		return nil, fmt.Errorf("client: request key: %w", err)
	}
	if req.SkipAuth {
		key += anonymousKeySuffix
	}
	cl.key = key
	cl.cacheable = cl.method == http.MethodGet && req.Resource != "" && c.config.CachePolicy.ShouldCache()
	if cl.cacheable {
		cl.cacheKey = cache.ResourceKey(req.Resource, key)
	}
	cl.meta = observe.RequestMeta{Method: cl.method, Endpoint: cl.endpoint, Resource: req.Resource}
	return cl, nil
}

// fetch walks cache, failure registry, in-flight registry and network, in
// that order.
func (c *Client) fetch(ctx context.Context, cl *call, fallback Fallback) (*Result, error) {
	log := c.logger.WithRequest(cl.meta)

	if cl.cacheable && !cl.ForceRefresh {
		if body, ok := c.cache.Get(ctx, cl.cacheKey); ok {
			return &Result{Source: SourceCache, Status: http.StatusOK, Body: body}, nil
		}
	}

	if cl.method == http.MethodGet {
		if rec, ok := c.failures.Lookup(cl.endpoint); ok {
			log.Warn(ctx, "skipping permanently failed endpoint", observe.Field{Key: "status", Value: rec.Status})
			if fallback != nil {
				return c.useFallback(ctx, cl, fallback)
			}
			return nil, &HTTPError{
				Method:   cl.method,
				Endpoint: cl.endpoint,
				Status:   rec.Status,
				Err:      failure.ErrEndpointFailed,
			}
		}
	}

	v, shared, err := c.inflight.Do(ctx, cl.key, func(ctx context.Context) (any, error) {
		return c.exchange(ctx, cl)
	})
	if err != nil {
		if fallback != nil && errors.Is(err, ErrNotFound) {
			return c.useFallback(ctx, cl, fallback)
		}
		return nil, err
	}

	src := SourceNetwork
	if shared {
		log.Debug(ctx, "duplicate request prevented")
		src = SourceShared
	}
	return v.(*response).result(src), nil
}

// exchange runs on the in-flight leader. Its cache write and failure mark
// are complete before any waiter sees the result.
func (c *Client) exchange(ctx context.Context, cl *call) (*response, error) {
	resp, err := c.send(ctx, cl)
	if err != nil {
		if cl.method == http.MethodGet && StatusOf(err) == http.StatusNotFound && c.failures.MarkFailed(cl.endpoint, http.StatusNotFound) {
			c.logger.WithRequest(cl.meta).Warn(ctx, "registering failed endpoint", observe.Field{Key: "status", Value: http.StatusNotFound})
		}
		return nil, err
	}

	if cl.cacheable {
		if err := c.cache.Set(ctx, cl.cacheKey, resp.body, c.config.CachePolicy.EffectiveTTL(0)); err != nil {
			c.logger.WithRequest(cl.meta).Warn(ctx, "cache write failed", observe.Field{Key: "error", Value: err})
		}
	}
	return resp, nil
}

func (c *Client) useFallback(ctx context.Context, cl *call, fallback Fallback) (*Result, error) {
	c.logger.WithRequest(cl.meta).Info(ctx, "using fallback")

	res, err := fallback(ctx)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("client: fallback for %s returned no result", cl.endpoint)
	}

	out := *res
	out.Source = SourceFallback
	if cl.cacheable && len(out.Body) > 0 {
		if err := c.cache.Set(ctx, cl.cacheKey, out.Body, c.config.CachePolicy.EffectiveTTL(0)); err != nil {
			c.logger.WithRequest(cl.meta).Warn(ctx, "cache write failed", observe.Field{Key: "error", Value: err})
		}
	}
	return &out, nil
}

// Key returns the request key for req, as used by the in-flight registry.
func (c *Client) Key(req Request) (string, error) {
	cl, err := c.prepare(req)
	if err != nil {
		return "", err
	}
	return cl.key, nil
}

// Pending reports whether a request with key is in flight.
func (c *Client) Pending(key string) bool {
	return c.inflight.Pending(key)
}

// Load reports shared fetches in flight and, when MaxConcurrent is set, the
// bulkhead counters.
func (c *Client) Load() map[string]any {
	out := map[string]any{"pending": c.inflight.Len()}
	if c.bulkhead != nil {
		st := c.bulkhead.Stats()
		out["active"] = st.Active
		out["max_active"] = st.MaxActive
		out["max_concurrent"] = st.MaxConcurrent
	}
	return out
}

// Failures returns the failed-endpoint registry.
func (c *Client) Failures() *failure.Registry {
	return c.failures
}

// Cache returns the response cache.
func (c *Client) Cache() cache.Cache {
	return c.cache
}

// InvalidateResource drops every cached response of resource.
func (c *Client) InvalidateResource(ctx context.Context, resource string) error {
	return c.cache.DeletePrefix(ctx, cache.ResourcePrefix(resource))
}

// Tokens returns the credentials source, or nil for an anonymous client.
func (c *Client) Tokens() auth.TokenSource {
	return c.tokens
}

// Logger returns the client's logger.
func (c *Client) Logger() observe.Logger {
	return c.logger
}

// Now returns the client's current time.
func (c *Client) Now() time.Time {
	return c.now()
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}
