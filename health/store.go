package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pcxmarket/storefront/storage"
)

const probeKey = "health_probe"

// StoreChecker verifies that store accepts a write and returns it.
func StoreChecker(store storage.Store) Checker {
	return NewCheckerFunc("storage", func(ctx context.Context) Result {
		if err := ctx.Err(); err != nil {
			return Unhealthy("context cancelled", err)
		}

		want := strconv.FormatInt(time.Now().UnixNano(), 10)
		if err := store.Set(ctx, probeKey, want); err != nil {
			return Unhealthy("storage write failed", err)
		}
		defer func() { _ = store.Delete(context.WithoutCancel(ctx), probeKey) }()

		got, ok, err := store.Get(ctx, probeKey)
		switch {
		case err != nil:
			return Unhealthy("storage read failed", err)
		case !ok || got != want:
			return Unhealthy("storage lost a write", ErrCheckFailed)
		}
		return Healthy("storage writable").WithDetails(map[string]any{"backend": fmt.Sprintf("%T", store)})
	})
}
