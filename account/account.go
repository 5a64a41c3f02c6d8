package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/observe"
	"github.com/pcxmarket/storefront/storage"
)

var (
	// ErrAuthRequired is returned when an operation needs an account id and
	// nobody is logged in.
	ErrAuthRequired = errors.New("account: authentication required")

	// ErrInvalidCredentials is returned by Login when the API rejects the
	// username or password.
	ErrInvalidCredentials = errors.New("account: invalid credentials")
)

// Endpoints.
const (
	PathRegister     = "/register/"
	PathLogin        = "/login/"
	PathLogout       = "/logout/"
	PathUser         = "/user/"
	PathOrder        = "/order/"
	PathInteractions = "/customer-interactions/"
)

// Cache resource names.
const (
	ResourceAddresses      = "addresses"
	ResourceWishlist       = "wishlist"
	ResourceOrders         = "orders"
	ResourceVendorProducts = "vendor-products"
	ResourceDashboard      = "dashboard"
)

var userResources = []string{
	ResourceAddresses,
	ResourceWishlist,
	ResourceOrders,
	ResourceVendorProducts,
	ResourceDashboard,
}

// Service manages the logged-in account.
type Service struct {
	client *client.Client
	store  storage.Store
	tokens *auth.TokenStore
	logger observe.Logger
}

// New creates a Service. store must be the store backing the client's
// token source.
func New(c *client.Client, store storage.Store) *Service {
	return &Service{
		client: c,
		store:  store,
		tokens: auth.NewTokenStore(store),
		logger: c.Logger(),
	}
}

// Session describes the logged-in user.
type Session struct {
	UserID     int       `json:"user_id"`
	Username   string    `json:"username"`
	CustomerID int       `json:"customer_id,omitempty"`
	VendorID   int       `json:"vendor_id,omitempty"`
	Role       auth.Role `json:"user_type"`
}

type credentials struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	OK         bool   `json:"bool"`
	Msg        string `json:"msg"`
	Access     string `json:"access"`
	Refresh    string `json:"refresh"`
	UserID     int    `json:"user_id"`
	Username   string `json:"username"`
	CustomerID int    `json:"customer_id"`
	VendorID   int    `json:"vendor_id"`
}

// Login exchanges credentials for a token pair and stores the session.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	in := credentials{Username: username, Password: password}
	if err := client.Validate(in); err != nil {
		return nil, err
	}

	res, err := s.client.Do(ctx, client.Request{
		Method:   http.MethodPost,
		Path:     PathLogin,
		Body:     in,
		SkipAuth: true,
	})
	if err != nil {
		return nil, err
	}
	var out loginResponse
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	if !out.OK {
		msg := out.Msg
		if msg == "" {
			msg = "login rejected"
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, msg)
	}

	if err := s.tokens.SetPair(ctx, auth.TokenPair{Access: out.Access, Refresh: out.Refresh}); err != nil {
		return nil, err
	}
	session := &Session{
		UserID:     out.UserID,
		Username:   out.Username,
		CustomerID: out.CustomerID,
		VendorID:   out.VendorID,
	}
	session.Role = (&auth.Identity{CustomerID: out.CustomerID, VendorID: out.VendorID}).Role()
	if err := s.persistSession(ctx, session); err != nil {
		return nil, err
	}
	// Listings cached for a previous user must not leak into this session.
	s.invalidateUserData(ctx)

	s.logger.Info(ctx, "logged in",
		observe.Field{Key: "user_id", Value: session.UserID},
		observe.Field{Key: "user_type", Value: string(session.Role)})
	return session, nil
}

func (s *Service) persistSession(ctx context.Context, session *Session) error {
	if err := storage.SetJSON(ctx, s.store, storage.KeyAuthState, session); err != nil {
		return err
	}
	if session.CustomerID != 0 {
		if err := s.store.Set(ctx, storage.KeyCustomerID, strconv.Itoa(session.CustomerID)); err != nil {
			return err
		}
	}
	if session.VendorID != 0 {
		if err := s.store.Set(ctx, storage.KeyVendorID, strconv.Itoa(session.VendorID)); err != nil {
			return err
		}
	}
	return nil
}

// CurrentSession returns the stored session. It reports false when nobody
// is logged in.
func (s *Service) CurrentSession(ctx context.Context) (*Session, bool, error) {
	access, err := s.tokens.Access(ctx)
	if err != nil || access == "" {
		return nil, false, err
	}
	var session Session
	ok, err := storage.GetJSON(ctx, s.store, storage.KeyAuthState, &session)
	if err != nil || !ok {
		return nil, false, err
	}
	return &session, true, nil
}

// Logout tells the API the session ended and clears local credentials. The
// API call is best-effort; local state is cleared even when it fails.
func (s *Service) Logout(ctx context.Context) error {
	if _, err := s.client.Do(ctx, client.Request{Method: http.MethodPost, Path: PathLogout}); err != nil {
		s.logger.Warn(ctx, "logout request failed", observe.Field{Key: "error", Value: err.Error()})
	}
	s.invalidateUserData(ctx)
	if err := s.tokens.Clear(ctx); err != nil {
		return err
	}
	return s.store.Delete(ctx, storage.KeyWishlist)
}

func (s *Service) invalidateUserData(ctx context.Context) {
	for _, r := range userResources {
		if err := s.client.InvalidateResource(ctx, r); err != nil {
			s.logger.Warn(ctx, "cache invalidation failed",
				observe.Field{Key: "resource", Value: r},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}
}

type userInfo struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	CustomerID int    `json:"customer_id"`
	VendorID   int    `json:"vendor_id"`
}

// CustomerID returns the logged-in customer's id.
func (s *Service) CustomerID(ctx context.Context) (int, error) {
	return s.resolveID(ctx, storage.KeyCustomerID,
		func(id *auth.Identity) int { return id.CustomerID },
		func(u userInfo) int { return u.CustomerID })
}

// VendorID returns the logged-in vendor's id.
func (s *Service) VendorID(ctx context.Context) (int, error) {
	return s.resolveID(ctx, storage.KeyVendorID,
		func(id *auth.Identity) int { return id.VendorID },
		func(u userInfo) int { return u.VendorID })
}

func (s *Service) resolveID(ctx context.Context, key string, fromClaims func(*auth.Identity) int, fromUser func(userInfo) int) (int, error) {
	access, err := s.tokens.Access(ctx)
	if err != nil {
		return 0, err
	}
	if access == "" {
		return 0, ErrAuthRequired
	}

	if id, err := auth.ParseToken(access); err == nil {
		if v := fromClaims(id); v != 0 {
			return v, nil
		}
	}

	if raw, ok, err := s.store.Get(ctx, key); err != nil {
		return 0, err
	} else if ok {
		if v, err := strconv.Atoi(raw); err == nil && v != 0 {
			return v, nil
		}
	}

	res, err := s.client.Do(ctx, client.Request{Path: PathUser})
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return 0, fmt.Errorf("%w: %v", ErrAuthRequired, err)
		}
		return 0, err
	}
	var u userInfo
	if err := res.Decode(&u); err != nil {
		return 0, err
	}
	v := fromUser(u)
	if v == 0 {
		return 0, ErrAuthRequired
	}
	if err := s.store.Set(ctx, key, strconv.Itoa(v)); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Service) customerPath(ctx context.Context, suffix string) (string, error) {
	id, err := s.CustomerID(ctx)
	if err != nil {
		return "", err
	}
	return "/customer/" + strconv.Itoa(id) + suffix, nil
}

func (s *Service) vendorPath(ctx context.Context, suffix string) (string, error) {
	id, err := s.VendorID(ctx)
	if err != nil {
		return "", err
	}
	return "/vendor/" + strconv.Itoa(id) + suffix, nil
}

func itemPath(base string, id int) string {
	return base + strconv.Itoa(id) + "/"
}

func decodeList[T any](res *client.Result) ([]T, error) {
	var out []T
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
