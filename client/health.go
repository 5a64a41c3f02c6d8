package client

import (
	"context"
	"fmt"

	"github.com/pcxmarket/storefront/failure"
	"github.com/pcxmarket/storefront/health"
)

// HealthPath is the endpoint APIChecker probes.
const HealthPath = "/categories/"

// APIChecker reports whether the API answers an anonymous, uncached request.
func APIChecker(c *Client) health.Checker {
	return health.NewCheckerFunc("api", func(ctx context.Context) health.Result {
		res, err := c.Do(ctx, Request{Path: HealthPath, SkipAuth: true})
		if err != nil {
			return health.Unhealthy(Message(err), err).WithDetails(map[string]any{
				"base_url": c.BaseURL(),
				"status":   StatusOf(err),
			})
		}
		details := c.Load()
		details["base_url"] = c.BaseURL()
		details["status"] = res.Status
		return health.Healthy("api reachable").WithDetails(details)
	})
}

// FailureChecker reports degraded while any endpoint is marked failed.
func FailureChecker(r *failure.Registry) health.Checker {
	return health.NewCheckerFunc("failed-endpoints", func(context.Context) health.Result {
		records := r.Records()
		if len(records) == 0 {
			return health.Healthy("no failed endpoints")
		}
		endpoints := make([]string, 0, len(records))
		for _, rec := range records {
			endpoints = append(endpoints, rec.Endpoint)
		}
		return health.Degraded(fmt.Sprintf("%d endpoint(s) served by fallback", len(records))).
			WithDetails(map[string]any{"endpoints": endpoints})
	})
}
