package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pcxmarket/storefront/account"
	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/cart"
	"github.com/pcxmarket/storefront/catalog"
	"github.com/pcxmarket/storefront/checkout"
	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/config"
	"github.com/pcxmarket/storefront/health"
	"github.com/pcxmarket/storefront/mockapi"
	"github.com/pcxmarket/storefront/observe"
)

const shutdownTimeout = 5 * time.Second

// app holds the services one invocation works with.
type app struct {
	out io.Writer
	log observe.Logger

	client   *client.Client
	catalog  *catalog.Service
	accounts *account.Service
	cart     *cart.Cart
	checkout *checkout.Service
	health   *health.Aggregator

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) (*app, error) {
	a := &app{out: stdout}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	if cfg.Mock {
		baseURL, stop, err := serveMock()
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, stop)
		cfg.Client.BaseURL = baseURL
	}

	backends, err := cfg.Open(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return backends.Close() })

	cfg.Observe.Output = stderr
	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	a.closers = append(a.closers, obs.Shutdown)

	opts := []client.Option{
		client.WithTokens(auth.NewTokenStore(backends.Store)),
		client.WithObserver(obs),
	}
	if backends.Cache != nil {
		opts = append(opts, client.WithCache(backends.Cache))
	}
	c, err := client.New(cfg.Client, opts...)
	if err != nil {
		return nil, err
	}
	a.client = c
	a.log = a.client.Logger()

	a.accounts = account.New(a.client, backends.Store)
	a.catalog = catalog.New(a.client, catalog.WithViewTracker(a.accounts))
	a.cart = cart.New(backends.Store, cart.WithTracker(a.accounts), cart.WithLogger(a.log))
	a.checkout = checkout.New(a.client, a.accounts)

	a.health = health.NewAggregator(health.DefaultTimeout)
	a.health.Register(client.APIChecker(a.client))
	a.health.Register(client.FailureChecker(a.client.Failures()))
	a.health.Register(health.StoreChecker(backends.Store))
	ready = true
	return a, nil
}

// serveMock starts the fake API on a loopback port.
func serveMock() (string, func(context.Context) error, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("mock api: %w", err)
	}
	srv := &http.Server{Handler: mockapi.New(), ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	return "http://" + ln.Addr().String(), srv.Shutdown, nil
}

// Close releases everything newApp opened, last opened first.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && !errors.Is(err, http.ErrServerClosed) && a.log != nil {
			a.log.Warn(ctx, "shutdown", observe.Field{Key: "error", Value: err.Error()})
		}
	}
	a.closers = nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
