package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pcxmarket/storefront/account"
	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/cart"
	"github.com/pcxmarket/storefront/catalog"
	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/mockapi"
	"github.com/pcxmarket/storefront/storage"
)

type fixture struct {
	api      *mockapi.Server
	accounts *account.Service
	products *catalog.Service
	basket   *cart.Cart
	svc      *Service
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
	accounts := account.New(c, store)
	return &fixture{
		api:      api,
		accounts: accounts,
		products: catalog.New(c),
		basket:   cart.New(store, cart.WithTracker(accounts)),
		svc:      New(c, accounts),
	}
}

func (f *fixture) addToCart(t *testing.T, id, qty int) {
	t.Helper()
	p, err := f.products.FetchProduct(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.basket.Add(context.Background(), *p, qty); err != nil {
		t.Fatal(err)
	}
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.accounts.Login(ctx, mockapi.Customer.Username, mockapi.Customer.Password); err != nil {
		t.Fatal(err)
	}
	f.addToCart(t, 11, 2)
	f.addToCart(t, 9, 1)

	order, err := f.svc.PlaceOrder(ctx, f.basket, Options{ShippingAddress: 3})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if order.ID == 0 || order.Status != account.OrderPending || order.Customer != mockapi.Customer.CustomerID {
		t.Errorf("order = %+v", order)
	}
	if len(order.Items) != 2 || order.Total().String() != "219.97" {
		t.Errorf("items = %+v, total %s", order.Items, order.Total())
	}
	if order.PaymentMethod != DefaultPaymentMethod || order.ShippingAddress == nil || *order.ShippingAddress != 3 {
		t.Errorf("order details = %+v", order)
	}
	if items, _ := f.basket.Items(ctx); len(items) != 0 {
		t.Errorf("cart after order = %+v", items)
	}

	orders, err := f.accounts.Orders(ctx, false)
	if err != nil || len(orders) != 1 {
		t.Errorf("Orders() = %+v, %v", orders, err)
	}
}

func TestPlaceOrder_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.PlaceOrder(ctx, f.basket, Options{}); !errors.Is(err, ErrEmptyCart) {
			t.Errorf("error = %v, want ErrEmptyCart", err)
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t)
		f.addToCart(t, 1, 1)
		if _, err := f.svc.PlaceOrder(ctx, f.basket, Options{}); !errors.Is(err, account.ErrAuthRequired) {
			t.Errorf("error = %v, want ErrAuthRequired", err)
		}
		if items, _ := f.basket.Items(ctx); len(items) != 1 {
			t.Errorf("cart = %+v, want it untouched", items)
		}
	})

	t.Run("unknown payment method", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.accounts.Login(ctx, mockapi.Customer.Username, mockapi.Customer.Password); err != nil {
			t.Fatal(err)
		}
		f.addToCart(t, 1, 1)
		_, err := f.svc.PlaceOrder(ctx, f.basket, Options{PaymentMethod: "barter"})
		var ve *client.ValidationError
		if !errors.As(err, &ve) || ve.Fields["payment_method"] == "" {
			t.Errorf("error = %v, want payment_method rejected", err)
		}
		if got := f.api.Hits(http.MethodPost, PathOrders); got != 0 {
			t.Errorf("order calls = %d, want 0", got)
		}
	})

	t.Run("server rejects", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.accounts.Login(ctx, mockapi.Customer.Username, mockapi.Customer.Password); err != nil {
			t.Fatal(err)
		}
		f.addToCart(t, 1, 1)
		f.api.Force(http.MethodPost, PathOrders, http.StatusInternalServerError)

		_, err := f.svc.PlaceOrder(ctx, f.basket, Options{})
		if client.StatusOf(err) != http.StatusInternalServerError {
			t.Errorf("error = %v, want 500", err)
		}
		if items, _ := f.basket.Items(ctx); len(items) != 1 {
			t.Errorf("cart = %+v, want it untouched", items)
		}
	})
}
