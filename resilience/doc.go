// Package resilience wraps outbound API calls with retry, timeout and
// concurrency limits.
//
// Each pattern can be used on its own or composed through an Executor:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
//	        MaxAttempts: 3,
//	        Delay:       2 * time.Second,
//	    })),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return send(ctx, req)
//	})
package resilience
