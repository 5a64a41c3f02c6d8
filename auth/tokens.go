package auth

import (
	"context"
	"fmt"

	"github.com/pcxmarket/storefront/storage"
)

// TokenPair is the access/refresh pair returned by the token endpoints.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// TokenSource supplies and rotates the credentials used for API requests.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Access returns "" without error when no one is logged in.
type TokenSource interface {
	Access(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
	SetAccess(ctx context.Context, access string) error
	Clear(ctx context.Context) error
}

// TokenStore keeps the token pair in a storage.Store.
type TokenStore struct {
	store storage.Store
}

// NewTokenStore wraps store.
func NewTokenStore(store storage.Store) *TokenStore {
	return &TokenStore{store: store}
}

// Access returns the stored access token.
func (s *TokenStore) Access(ctx context.Context) (string, error) {
	v, _, err := s.store.Get(ctx, storage.KeyAccessToken)
	return v, err
}

// Refresh returns the stored refresh token.
func (s *TokenStore) Refresh(ctx context.Context) (string, error) {
	v, _, err := s.store.Get(ctx, storage.KeyRefreshToken)
	return v, err
}

// SetAccess replaces the access token, keeping the refresh token.
func (s *TokenStore) SetAccess(ctx context.Context, access string) error {
	return s.store.Set(ctx, storage.KeyAccessToken, access)
}

// SetPair stores both tokens. An empty refresh token leaves the stored one.
func (s *TokenStore) SetPair(ctx context.Context, pair TokenPair) error {
	if pair.Access == "" {
		return ErrMissingCredentials
	}
	if err := s.store.Set(ctx, storage.KeyAccessToken, pair.Access); err != nil {
		return fmt.Errorf("auth: store access token: %w", err)
	}
	if pair.Refresh != "" {
		if err := s.store.Set(ctx, storage.KeyRefreshToken, pair.Refresh); err != nil {
			return fmt.Errorf("auth: store refresh token: %w", err)
		}
	}
	return nil
}

// Clear removes both tokens and the cached account ids.
func (s *TokenStore) Clear(ctx context.Context) error {
	return storage.DeleteAll(ctx, s.store,
		storage.KeyAccessToken,
		storage.KeyRefreshToken,
		storage.KeyAuthState,
		storage.KeyCustomerID,
		storage.KeyVendorID,
	)
}

// Identity decodes the stored access token. It returns nil when no one is
// logged in.
func (s *TokenStore) Identity(ctx context.Context) (*Identity, error) {
	access, err := s.Access(ctx)
	if err != nil || access == "" {
		return nil, err
	}
	return ParseToken(access)
}

var _ TokenSource = (*TokenStore)(nil)
