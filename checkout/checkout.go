// Package checkout turns the local cart into an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pcxmarket/storefront/account"
	"github.com/pcxmarket/storefront/cart"
	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/observe"
)

// PathOrders is the order creation endpoint.
const PathOrders = "/orders/"

// DefaultPaymentMethod is used when Options.PaymentMethod is empty.
const DefaultPaymentMethod = "card"

// ErrEmptyCart is returned when there is nothing to order.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// Options are the order details collected at checkout.
type Options struct {
	PaymentMethod   string
	ShippingAddress int
}

// Service places orders.
type Service struct {
	client   *client.Client
	accounts *account.Service
	logger   observe.Logger
}

// New creates a Service.
func New(c *client.Client, accounts *account.Service) *Service {
	return &Service{client: c, accounts: accounts, logger: c.Logger()}
}

// PlaceOrder submits the contents of basket as a pending order for the
// logged-in customer and empties basket on success. On any error basket is
// left untouched.
func (s *Service) PlaceOrder(ctx context.Context, basket *cart.Cart, opts Options) (*account.Order, error) {
	items, err := basket.Items(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	customerID, err := s.accounts.CustomerID(ctx)
	if err != nil {
		return nil, err
	}

	order := account.Order{
		Customer:      customerID,
		Items:         make([]account.OrderItem, 0, len(items)),
		OrderTime:     s.client.Now().UTC().Format(time.RFC3339),
		PaymentMethod: opts.PaymentMethod,
		Status:        account.OrderPending,
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = DefaultPaymentMethod
	}
	if opts.ShippingAddress > 0 {
		addr := opts.ShippingAddress
		order.ShippingAddress = &addr
	}
	for _, it := range items {
		order.Items = append(order.Items, account.OrderItem{
			Product:  it.ProductID,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}
	if err := client.Validate(order); err != nil {
		return nil, err
	}

	res, err := s.client.Do(ctx, client.Request{Method: http.MethodPost, Path: PathOrders, Body: order})
	if err != nil {
		return nil, err
	}
	var placed account.Order
	if err := res.Decode(&placed); err != nil {
		return nil, err
	}

	if err := basket.Clear(ctx); err != nil {
		return &placed, fmt.Errorf("checkout: order %d placed but cart not cleared: %w", placed.ID, err)
	}
	s.logger.Info(ctx, "order placed",
		observe.Field{Key: "order_id", Value: placed.ID},
		observe.Field{Key: "items", Value: len(placed.Items)},
		observe.Field{Key: "total", Value: placed.Total().String()})
	return &placed, nil
}
