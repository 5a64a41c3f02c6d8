package account

import (
	"context"
	"strconv"

	"github.com/pcxmarket/storefront/catalog"
	"github.com/pcxmarket/storefront/client"
)

// CustomerDashboard summarizes a customer's account.
type CustomerDashboard struct {
	TotalOrders        int                `json:"total_orders"`
	TotalWishlistItems int                `json:"total_wishlist_items"`
	TotalAddresses     int                `json:"total_addresses"`
	RecentOrders       []OrderSummary     `json:"recent_orders"`
	RecentWishlist     []WishlistActivity `json:"recent_wishlist"`
}

// OrderSummary is one recent order on the customer dashboard.
type OrderSummary struct {
	ID          int           `json:"id"`
	Date        string        `json:"date"`
	TotalItems  int           `json:"total_items"`
	TotalAmount catalog.Price `json:"total_amount"`
}

// WishlistActivity is one recent wishlist addition.
type WishlistActivity struct {
	ID           int           `json:"id"`
	ProductID    int           `json:"product_id"`
	ProductTitle string        `json:"product_title"`
	ProductPrice catalog.Price `json:"product_price"`
	AddedAt      string        `json:"added_at"`
}

// VendorDashboard summarizes a vendor's sales.
type VendorDashboard struct {
	TotalProducts int           `json:"total_products"`
	TotalOrders   int           `json:"total_orders"`
	TotalRevenue  catalog.Price `json:"total_revenue"`
	RecentOrders  []SaleLine    `json:"recent_orders"`
	TopProducts   []TopSeller   `json:"top_products"`
}

// SaleLine is one order line for a vendor product.
type SaleLine struct {
	OrderID  int           `json:"order_id"`
	Date     string        `json:"date"`
	Product  string        `json:"product"`
	Quantity int           `json:"quantity"`
	Amount   catalog.Price `json:"amount"`
}

// TopSeller ranks a vendor product by units sold.
type TopSeller struct {
	ID           int           `json:"id"`
	Title        string        `json:"title"`
	Price        catalog.Price `json:"price"`
	Orders       int           `json:"orders"`
	QuantitySold int           `json:"quantity_sold"`
}

// CustomerDashboard fetches the logged-in customer's dashboard.
func (s *Service) CustomerDashboard(ctx context.Context, force bool) (*CustomerDashboard, error) {
	id, err := s.CustomerID(ctx)
	if err != nil {
		return nil, err
	}
	var out CustomerDashboard
	if err := s.dashboard(ctx, "/customer/dashboard/"+strconv.Itoa(id)+"/", force, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VendorDashboard fetches the logged-in vendor's dashboard.
func (s *Service) VendorDashboard(ctx context.Context, force bool) (*VendorDashboard, error) {
	id, err := s.VendorID(ctx)
	if err != nil {
		return nil, err
	}
	var out VendorDashboard
	if err := s.dashboard(ctx, "/vendor/dashboard/"+strconv.Itoa(id)+"/", force, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) dashboard(ctx context.Context, path string, force bool, out any) error {
	res, err := s.client.Do(ctx, client.Request{
		Path:         path,
		Resource:     ResourceDashboard,
		ForceRefresh: force,
	})
	if err != nil {
		return err
	}
	return res.Decode(out)
}
