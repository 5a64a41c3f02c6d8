package account

import (
	"context"

	"github.com/pcxmarket/storefront/catalog"
	"github.com/pcxmarket/storefront/client"
)

// Order statuses.
const (
	OrderPending   = "pending"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// OrderItem is one line of an order.
type OrderItem struct {
	Product  int           `json:"product" validate:"gt=0"`
	Quantity int           `json:"quantity" validate:"gt=0"`
	Price    catalog.Price `json:"price" validate:"gte=0"`
}

// Order is a placed order.
type Order struct {
	ID              int         `json:"id,omitempty"`
	Customer        int         `json:"customer" validate:"gt=0"`
	Items           []OrderItem `json:"order_items" validate:"min=1,dive"`
	OrderTime       string      `json:"order_time,omitempty"`
	ShippingAddress *int        `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method,omitempty" validate:"omitempty,oneof=card cash paypal"`
	Status          string      `json:"order_status"`
}

// Total returns the sum of price times quantity over the items.
func (o Order) Total() catalog.Price {
	lines := make([]catalog.Price, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, it.Price.Times(it.Quantity))
	}
	return catalog.Sum(lines...)
}

// Orders lists the customer's orders.
func (s *Service) Orders(ctx context.Context, force bool) ([]Order, error) {
	path, err := s.customerPath(ctx, "/orders/")
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(ctx, client.Request{
		Path:         path,
		Resource:     ResourceOrders,
		ForceRefresh: force,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Order](res)
}

// Order fetches one of the customer's orders.
func (s *Service) Order(ctx context.Context, id int, force bool) (*Order, error) {
	if id <= 0 {
		return nil, &client.ValidationError{Fields: map[string]string{"id": "must be positive"}}
	}
	res, err := s.client.Do(ctx, client.Request{
		Path:         itemPath(PathOrder, id),
		Resource:     ResourceOrders,
		ForceRefresh: force,
	})
	if err != nil {
		return nil, err
	}
	var out Order
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
