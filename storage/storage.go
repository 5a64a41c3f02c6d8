package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known keys.
const (
	KeyAuthState    = "auth_state"
	KeyCart         = "cart_data"
	KeyWishlist     = "wishlist_data"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyCustomerID   = "customer_id"
	KeyVendorID     = "vendor_id"
)

// ErrEmptyKey is returned when writing under an empty key.
var ErrEmptyKey = errors.New("storage: key is empty")

// Store is a string key/value store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Get returns ("", false, nil) for a missing key.
// - Delete is idempotent.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the value under key into v. It reports false when the key
// is missing.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v encoded as JSON under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// DeleteAll removes every key, stopping at the first error.
func DeleteAll(ctx context.Context, s Store, keys ...string) error {
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
