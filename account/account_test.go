package account

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/catalog"
	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/mockapi"
	"github.com/pcxmarket/storefront/storage"
)

type fixture struct {
	api    *mockapi.Server
	client *client.Client
	store  storage.Store
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := mockapi.New()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := storage.NewMemoryStore()
	c, err := client.New(
		client.Config{BaseURL: srv.URL, UnauthorizedDelay: -1},
		client.WithTokens(auth.NewTokenStore(store)),
	)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return &fixture{api: api, client: c, store: store, svc: New(c, store)}
}

func (f *fixture) login(t *testing.T, u mockapi.User) *Session {
	t.Helper()
	s, err := f.svc.Login(context.Background(), u.Username, u.Password)
	if err != nil {
		t.Fatalf("Login(%s) error = %v", u.Username, err)
	}
	return s
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := f.login(t, mockapi.Customer)
	if session.CustomerID != mockapi.Customer.CustomerID || session.Role != auth.RoleCustomer {
		t.Errorf("session = %+v", session)
	}
	if access, _, _ := f.store.Get(ctx, storage.KeyAccessToken); access == "" {
		t.Error("access token not stored")
	}
	if raw, _, _ := f.store.Get(ctx, storage.KeyCustomerID); raw != "1" {
		t.Errorf("customer_id = %q, want 1", raw)
	}
	got, ok, err := f.svc.CurrentSession(ctx)
	if err != nil || !ok || got.Username != mockapi.Customer.Username {
		t.Errorf("CurrentSession() = %+v, %v, %v", got, ok, err)
	}
}

func TestLogin_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, mockapi.Customer.Username, "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v, want ErrInvalidCredentials", err)
	}
	if _, ok, _ := f.store.Get(ctx, storage.KeyAccessToken); ok {
		t.Error("access token stored after rejected login")
	}

	_, err = f.svc.Login(ctx, "", "")
	var ve *client.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if ve.Fields["username"] != "is required" || ve.Fields["password"] != "is required" {
		t.Errorf("Fields = %v", ve.Fields)
	}
	if got := f.api.Hits(http.MethodPost, PathLogin); got != 1 {
		t.Errorf("login calls = %d, want 1", got)
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, mockapi.Customer)
	if _, err := f.svc.Addresses(ctx, false); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if got := f.api.Hits(http.MethodPost, PathLogout); got != 1 {
		t.Errorf("logout calls = %d, want 1", got)
	}
	for _, key := range []string{storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyAuthState, storage.KeyCustomerID} {
		if _, ok, _ := f.store.Get(ctx, key); ok {
			t.Errorf("%s still stored", key)
		}
	}
	if _, ok, _ := f.svc.CurrentSession(ctx); ok {
		t.Error("CurrentSession() ok after logout")
	}
	if _, err := f.svc.Addresses(ctx, false); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("Addresses() after logout error = %v, want ErrAuthRequired", err)
	}
}

func TestCustomerID_Resolution(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CustomerID(ctx); !errors.Is(err, ErrAuthRequired) {
			t.Errorf("error = %v, want ErrAuthRequired", err)
		}
	})

	t.Run("claims", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, mockapi.Customer)
		id, err := f.svc.CustomerID(ctx)
		if err != nil || id != mockapi.Customer.CustomerID {
			t.Errorf("CustomerID() = %d, %v", id, err)
		}
		if got := f.api.Hits(http.MethodGet, PathUser); got != 0 {
			t.Errorf("/user/ calls = %d, want 0", got)
		}
	})

	t.Run("vendor is not a customer", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, mockapi.Vendor)
		if _, err := f.svc.CustomerID(ctx); !errors.Is(err, ErrAuthRequired) {
			t.Errorf("error = %v, want ErrAuthRequired", err)
		}
		if got := f.api.Hits(http.MethodGet, PathUser); got != 1 {
			t.Errorf("/user/ calls = %d, want 1", got)
		}
	})

	t.Run("user endpoint", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			if r.Header.Get("Authorization") != "Bearer opaque" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"id":3,"customer_id":7}`))
		}))
		t.Cleanup(srv.Close)

		store := storage.NewMemoryStore()
		tokens := auth.NewTokenStore(store)
		if err := tokens.SetPair(ctx, auth.TokenPair{Access: "opaque"}); err != nil {
			t.Fatal(err)
		}
		c, err := client.New(client.Config{BaseURL: srv.URL, UnauthorizedDelay: -1}, client.WithTokens(tokens))
		if err != nil {
			t.Fatal(err)
		}
		svc := New(c, store)

		for range 2 {
			id, err := svc.CustomerID(ctx)
			if err != nil || id != 7 {
				t.Fatalf("CustomerID() = %d, %v, want 7", id, err)
			}
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("/user/ calls = %d, want 1", got)
		}
		if raw, _, _ := store.Get(ctx, storage.KeyCustomerID); raw != "7" {
			t.Errorf("stored customer_id = %q, want 7", raw)
		}
	})
}

func TestAddresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, mockapi.Customer)

	created, err := f.svc.CreateAddress(ctx, Address{Address: "1 Main St", City: "Springfield", PostCode: "12345"})
	if err != nil {
		t.Fatalf("CreateAddress() error = %v", err)
	}
	if created.ID == 0 || created.Customer != mockapi.Customer.CustomerID {
		t.Errorf("created = %+v", created)
	}

	city := "Shelbyville"
	isDefault := true
	updated, err := f.svc.UpdateAddress(ctx, created.ID, AddressPatch{City: &city, IsDefault: &isDefault})
	if err != nil {
		t.Fatalf("UpdateAddress() error = %v", err)
	}
	if updated.City != city || updated.Address != "1 Main St" || !updated.IsDefault {
		t.Errorf("updated = %+v", updated)
	}

	list, err := f.svc.Addresses(ctx, true)
	if err != nil {
		t.Fatalf("Addresses() error = %v", err)
	}
	var found bool
	var defaults []int
	for _, a := range list {
		if a.ID == created.ID {
			found = a.City == city
		}
		if a.IsDefault {
			defaults = append(defaults, a.ID)
		}
	}
	if !found {
		t.Errorf("addresses = %+v, want id %d in %s", list, created.ID, city)
	}
	if len(defaults) != 1 || defaults[0] != created.ID {
		t.Errorf("default addresses = %v, want [%d]", defaults, created.ID)
	}

	if err := f.svc.DeleteAddress(ctx, created.ID); err != nil {
		t.Fatalf("DeleteAddress() error = %v", err)
	}
	err = f.svc.DeleteAddress(ctx, created.ID)
	if !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("second DeleteAddress() error = %v, want ErrNotFound", err)
	}
	if msg := client.Message(err); !strings.HasPrefix(msg, "Address not found") {
		t.Errorf("Message() = %q", msg)
	}
}

func TestAddresses_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, mockapi.Customer)
	empty := ""

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"create without address", func() error {
			_, err := f.svc.CreateAddress(ctx, Address{City: "Springfield"})
			return err
		}, "address"},
		{"blank patch", func() error {
			_, err := f.svc.UpdateAddress(ctx, 1, AddressPatch{Address: &empty})
			return err
		}, "address"},
		{"nothing to update", func() error {
			_, err := f.svc.UpdateAddress(ctx, 1, AddressPatch{})
			return err
		}, "address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *client.ValidationError
			if err := tt.call(); !errors.As(err, &ve) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if _, ok := ve.Fields[tt.field]; !ok {
				t.Errorf("Fields = %v, want %s", ve.Fields, tt.field)
			}
		})
	}
	if got := f.api.TotalHits(); got != 1 {
		t.Errorf("requests = %d, want only the login", got)
	}
}

func TestWishlist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, mockapi.Customer)

	item, err := f.svc.AddToWishlist(ctx, 4)
	if err != nil {
		t.Fatalf("AddToWishlist() error = %v", err)
	}
	again, err := f.svc.AddToWishlist(ctx, 4)
	if err != nil || again.ID != item.ID {
		t.Fatalf("second AddToWishlist() = %+v, %v", again, err)
	}

	local, err := f.svc.LocalWishlist(ctx)
	if err != nil || len(local) != 1 || local[0].Product != 4 {
		t.Errorf("LocalWishlist() = %+v, %v", local, err)
	}
	remote, err := f.svc.Wishlist(ctx, false)
	if err != nil || len(remote) != 1 {
		t.Errorf("Wishlist() = %+v, %v", remote, err)
	}

	interactions := f.api.Interactions()
	if len(interactions) == 0 || !interactions[0].AddedToWishlist || interactions[0].Customer != mockapi.Customer.CustomerID {
		t.Errorf("interactions = %+v", interactions)
	}
	if p, _ := f.api.Product(4); p.Wishlisted == 0 {
		t.Error("wishlist statistics not updated")
	}

	if err := f.svc.RemoveFromWishlist(ctx, item.ID); err != nil {
		t.Fatalf("RemoveFromWishlist() error = %v", err)
	}
	if local, _ := f.svc.LocalWishlist(ctx); len(local) != 0 {
		t.Errorf("LocalWishlist() after remove = %+v", local)
	}
}

func TestOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, mockapi.Customer)

	orders, err := f.svc.Orders(ctx, false)
	if err != nil {
		t.Fatalf("Orders() error = %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("orders = %+v, want none", orders)
	}

	o := Order{Items: []OrderItem{{Product: 1, Quantity: 2, Price: 10.5}, {Product: 2, Quantity: 1, Price: 4}}}
	if got := o.Total(); got != 25 {
		t.Errorf("Total() = %v, want 25.00", got)
	}
}

func TestVendorProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t, mockapi.Vendor)

	created, err := f.svc.CreateProduct(ctx, ProductInput{
		Title:    "Ryzen 9 9950X",
		Detail:   "16 cores",
		Price:    649,
		Category: 1,
		Image:    &client.File{Name: "cpu.jpg", ContentType: "image/jpeg", Content: []byte("jpeg")},
	})
	if err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	if created.ID == 0 || created.Price != 649 || created.Thumbnail == "" {
		t.Errorf("created = %+v", created)
	}

	updated, err := f.svc.UpdateProduct(ctx, created.ID, ProductPatch{Price: 599.99})
	if err != nil {
		t.Fatalf("UpdateProduct() error = %v", err)
	}
	if updated.Price != 599.99 || updated.Title != "Ryzen 9 9950X" {
		t.Errorf("updated = %+v", updated)
	}

	products, err := f.svc.VendorProducts(ctx, false)
	if err != nil {
		t.Fatalf("VendorProducts() error = %v", err)
	}
	if len(products) != 13 {
		t.Errorf("len = %d, want 13", len(products))
	}

	if err := f.svc.DeleteProduct(ctx, created.ID); err != nil {
		t.Fatalf("DeleteProduct() error = %v", err)
	}
	if _, ok := f.api.Product(created.ID); ok {
		t.Error("product still present after delete")
	}

	var ve *client.ValidationError
	if _, err := f.svc.CreateProduct(ctx, ProductInput{Title: "No price", Category: 1}); !errors.As(err, &ve) || ve.Fields["price"] == "" {
		t.Errorf("CreateProduct(no price) error = %v", err)
	}
	if _, err := f.svc.UpdateProduct(ctx, created.ID, ProductPatch{}); !errors.As(err, &ve) {
		t.Errorf("UpdateProduct(empty) error = %v", err)
	}
}

func TestVendorProducts_CustomerIsRejected(t *testing.T) {
	f := newFixture(t)
	f.login(t, mockapi.Customer)
	if _, err := f.svc.VendorProducts(context.Background(), false); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("error = %v, want ErrAuthRequired", err)
	}
}

func TestTrackView(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.TrackView(ctx, 3); err != nil {
			t.Fatalf("TrackView() error = %v", err)
		}
		if p, _ := f.api.Product(3); p.ViewCount != 1 {
			t.Errorf("ViewCount = %d, want 1", p.ViewCount)
		}
		if got := len(f.api.Interactions()); got != 0 {
			t.Errorf("interactions = %d, want 0", got)
		}
	})

	t.Run("customer through catalog", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, mockapi.Customer)
		products := catalog.New(f.client, catalog.WithViewTracker(f.svc))

		if _, err := products.FetchProduct(ctx, 5); err != nil {
			t.Fatal(err)
		}
		in := f.api.Interactions()
		if len(in) != 1 || in[0].Product != 5 || !in[0].Viewed {
			t.Errorf("interactions = %+v", in)
		}
		if p, _ := f.api.Product(5); p.ViewCount != 1 {
			t.Errorf("ViewCount = %d, want 1", p.ViewCount)
		}
	})

	t.Run("missing product", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.TrackCartAdd(ctx, 999)
		if !errors.Is(err, client.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
		if err := f.svc.TrackCartAdd(ctx, 0); err == nil {
			t.Error("TrackCartAdd(0) error = nil")
		}
	})
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := Registration{Username: "gpuhaus", Email: "sales@gpuhaus.example", Password: "gpu-pass", Type: RegisterVendor}
	if err := f.svc.Register(ctx, in); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	session, err := f.svc.Login(ctx, in.Username, in.Password)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if session.Role != auth.RoleVendor || session.VendorID == 0 {
		t.Errorf("session = %+v", session)
	}

	err = f.svc.Register(ctx, Registration{Username: "alice", Email: "a@example.com", Password: "secret1"})
	var he *client.HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusBadRequest {
		t.Fatalf("duplicate Register() error = %v", err)
	}
	if got := client.Message(err); got != "Username is already taken." {
		t.Errorf("Message() = %q", got)
	}

	invalid := []Registration{
		{Email: "a@example.com", Password: "secret1"},
		{Username: "dave", Email: "not-an-email", Password: "secret1"},
		{Username: "dave", Email: "d@example.com", Password: "123"},
		{Username: "dave", Email: "d@example.com", Password: "secret1", Type: "admin"},
	}
	before := f.api.TotalHits()
	for _, r := range invalid {
		var ve *client.ValidationError
		if err := f.svc.Register(ctx, r); !errors.As(err, &ve) {
			t.Errorf("Register(%+v) error = %v, want ValidationError", r, err)
		}
	}
	if got := f.api.TotalHits(); got != before {
		t.Errorf("invalid registrations reached the API: %d requests", got-before)
	}
}

func TestDashboardsAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.login(t, mockapi.Customer)
	res, err := f.client.Do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/orders/",
		Body: Order{Customer: mockapi.Customer.CustomerID, Items: []OrderItem{
			{Product: 2, Quantity: 2, Price: 319.99},
			{Product: 9, Quantity: 1, Price: 89.99},
		}},
	})
	if err != nil {
		t.Fatalf("placing order: %v", err)
	}
	var placed Order
	if err := res.Decode(&placed); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Order(ctx, placed.ID, false)
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if got.Total() != 729.97 || got.Status != OrderPending {
		t.Errorf("Order() = %+v, total %v", got, got.Total())
	}
	if _, err := f.svc.Order(ctx, placed.ID, false); err != nil {
		t.Fatal(err)
	}
	if hits := f.api.Hits(http.MethodGet, itemPath(PathOrder, placed.ID)); hits != 1 {
		t.Errorf("order detail hits = %d, want 1 (second read cached)", hits)
	}
	if _, err := f.svc.Order(ctx, 9999, false); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Order(9999) error = %v, want ErrNotFound", err)
	}

	cd, err := f.svc.CustomerDashboard(ctx, false)
	if err != nil {
		t.Fatalf("CustomerDashboard() error = %v", err)
	}
	if cd.TotalOrders != 1 || len(cd.RecentOrders) != 1 || cd.RecentOrders[0].TotalAmount != 729.97 {
		t.Errorf("CustomerDashboard() = %+v", cd)
	}
	if _, err := f.svc.VendorDashboard(ctx, false); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("VendorDashboard() as customer error = %v, want ErrAuthRequired", err)
	}

	f.login(t, mockapi.Vendor)
	vd, err := f.svc.VendorDashboard(ctx, false)
	if err != nil {
		t.Fatalf("VendorDashboard() error = %v", err)
	}
	if vd.TotalOrders != 1 || vd.TotalRevenue.Cents() != 72997 || len(vd.TopProducts) == 0 || vd.TopProducts[0].ID != 2 {
		t.Errorf("VendorDashboard() = %+v", vd)
	}
}
