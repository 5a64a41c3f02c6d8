package mockapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pcxmarket/storefront/auth"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

// Option configures a Server.
type Option func(*Server)

// WithoutFeatured makes /products/featured/ answer 404.
func WithoutFeatured() Option {
	return func(s *Server) {
		s.featured = false
	}
}

// WithSigningKey sets the HS256 key used for tokens.
func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		if len(key) > 0 {
			s.key = key
		}
	}
}

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithLatency delays every response by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// Server is the fake backend. It implements http.Handler.
type Server struct {
	router    chi.Router
	key       []byte
	accessTTL time.Duration
	latency   time.Duration

	mu           sync.Mutex
	featured     bool
	hits         map[string]int
	gates        map[string]chan struct{}
	forced       map[string]int
	categories   []Category
	products     []Product
	addresses    map[int][]Address
	wishlist     map[int][]WishlistItem
	orders       []Order
	interactions []Interaction
	users        []User
	nextID       int
	nextCustomer int
	nextVendor   int
}

// New creates a Server with seeded data.
func New(opts ...Option) *Server {
	s := &Server{
		key:        []byte("mockapi-signing-key"),
		accessTTL:  DefaultAccessTTL,
		featured:   true,
		hits:       make(map[string]int),
		gates:      make(map[string]chan struct{}),
		forced:     make(map[string]int),
		categories: seedCategories(),
		products:   seedProducts(),
		addresses: map[int][]Address{
			Customer.CustomerID: {{ID: 1, Customer: Customer.CustomerID, Address: "1 Main St", City: "Springfield", PostCode: "12345", IsDefault: true}},
		},
		wishlist:     make(map[int][]WishlistItem),
		users:        []User{Customer, Vendor},
		nextID:       100,
		nextCustomer: Customer.CustomerID,
		nextVendor:   Vendor.VendorID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.track)
	r.Use(auth.WithBearerIdentity(s.key))

	r.Post("/register/", s.register)
	r.Post("/login/", s.login)
	r.Post("/logout/", s.logout)
	r.Post("/token/refresh/", s.refresh)

	r.Get("/categories/", s.listCategories)
	r.Get("/categories-with-stats/", s.categoriesWithStats)
	r.Get("/products/", s.listProducts)
	r.Get("/products/featured/", s.featuredProducts)
	r.Get("/products/popular/", s.popularProducts)
	r.Get("/product/{id}/", s.productDetail)
	r.Get("/related-products/", s.relatedProducts)
	r.Patch("/product-statistics/{id}/", s.productStatistics)

	r.Group(func(r chi.Router) {
		r.Use(requireIdentity)

		r.Get("/user/", s.user)
		r.Get("/recommendations/", s.recommendations)
		r.Post("/customer-interactions/", s.customerInteraction)
		r.Post("/orders/", s.createOrder)
		r.Get("/order/{id}/", s.orderDetail)
		r.With(s.requireCustomer).Get("/customer/dashboard/{customerID}/", s.customerDashboard)
		r.With(s.requireVendor).Get("/vendor/dashboard/{vendorID}/", s.vendorDashboard)

		r.Route("/customer/{customerID}", func(r chi.Router) {
			r.Use(s.requireCustomer)
			r.Get("/addresses/", s.listAddresses)
			r.Post("/addresses/", s.createAddress)
			r.Patch("/addresses/{id}/", s.updateAddress)
			r.Delete("/addresses/{id}/", s.deleteAddress)
			r.Get("/wishlist/", s.listWishlist)
			r.Post("/wishlist/", s.addWishlist)
			r.Delete("/wishlist/{id}/", s.removeWishlist)
			r.Get("/orders/", s.listOrders)
		})

		r.Route("/vendor/{vendorID}", func(r chi.Router) {
			r.Use(s.requireVendor)
			r.Get("/products/", s.listVendorProducts)
			r.Post("/products/", s.createVendorProduct)
			r.Patch("/products/{id}/", s.updateVendorProduct)
			r.Delete("/products/{id}/", s.deleteVendorProduct)
		})
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// track counts the hit, applies latency, gates and forced statuses.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := hitKey(r.Method, r.URL.Path)

		s.mu.Lock()
		s.hits[key]++
		gate := s.gates[r.URL.Path]
		status := s.forced[key]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"detail": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hitKey(method, path string) string {
	return method + " " + path
}

// Hits returns how many requests reached method and path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[hitKey(method, path)]
}

// TotalHits returns the number of requests received.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// ResetHits zeroes the hit counters.
func (s *Server) ResetHits() {
	s.mu.Lock()
	s.hits = make(map[string]int)
	s.mu.Unlock()
}

// SetFeatured turns the featured-products endpoint on or off.
func (s *Server) SetFeatured(enabled bool) {
	s.mu.Lock()
	s.featured = enabled
	s.mu.Unlock()
}

// Force makes method and path answer status until Force is called again
// with status 0.
func (s *Server) Force(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.forced, hitKey(method, path))
		return
	}
	s.forced[hitKey(method, path)] = status
}

// Block holds every request to path until the returned release is called.
func (s *Server) Block(path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, path)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// IssueTokens returns a token pair for u.
func (s *Server) IssueTokens(u User) (auth.TokenPair, error) {
	return s.issue(u, time.Now())
}

// IssueExpiredAccess returns an access token for u that expired a minute ago.
func (s *Server) IssueExpiredAccess(u User) (string, error) {
	now := time.Now()
	return auth.IssueToken(identityOf(u), auth.TokenTypeAccess, s.key, now.Add(-s.accessTTL-time.Minute), s.accessTTL)
}

func (s *Server) issue(u User, now time.Time) (auth.TokenPair, error) {
	id := identityOf(u)
	access, err := auth.IssueToken(id, auth.TokenTypeAccess, s.key, now, s.accessTTL)
	if err != nil {
		return auth.TokenPair{}, err
	}
	refresh, err := auth.IssueToken(id, auth.TokenTypeRefresh, s.key, now, DefaultRefreshTTL)
	if err != nil {
		return auth.TokenPair{}, err
	}
	return auth.TokenPair{Access: access, Refresh: refresh}, nil
}

func identityOf(u User) auth.Identity {
	return auth.Identity{UserID: u.ID, Username: u.Username, CustomerID: u.CustomerID, VendorID: u.VendorID}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
