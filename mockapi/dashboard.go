package mockapi

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pcxmarket/storefront/auth"
)

const dashboardRecent = 5

type customerOrderSummary struct {
	ID          int    `json:"id"`
	Date        string `json:"date"`
	TotalItems  int    `json:"total_items"`
	TotalAmount string `json:"total_amount"`
}

type wishlistSummary struct {
	ID           int    `json:"id"`
	ProductID    int    `json:"product_id"`
	ProductTitle string `json:"product_title"`
	ProductPrice string `json:"product_price"`
	AddedAt      string `json:"added_at"`
}

type customerDashboard struct {
	TotalOrders        int                    `json:"total_orders"`
	TotalWishlistItems int                    `json:"total_wishlist_items"`
	TotalAddresses     int                    `json:"total_addresses"`
	RecentOrders       []customerOrderSummary `json:"recent_orders"`
	RecentWishlist     []wishlistSummary      `json:"recent_wishlist"`
}

type vendorOrderLine struct {
	OrderID  int    `json:"order_id"`
	Date     string `json:"date"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Amount   string `json:"amount"`
}

type topProduct struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	Price        string `json:"price"`
	Orders       int    `json:"orders"`
	QuantitySold int    `json:"quantity_sold"`
}

type vendorDashboard struct {
	TotalProducts int               `json:"total_products"`
	TotalOrders   int               `json:"total_orders"`
	TotalRevenue  string            `json:"total_revenue"`
	RecentOrders  []vendorOrderLine `json:"recent_orders"`
	TopProducts   []topProduct      `json:"top_products"`
}

func (s *Server) customerDashboard(w http.ResponseWriter, r *http.Request) {
	cid := atoi(chi.URLParam(r, "customerID"))

	s.mu.Lock()
	defer s.mu.Unlock()

	out := customerDashboard{
		TotalAddresses:     len(s.addresses[cid]),
		TotalWishlistItems: len(s.wishlist[cid]),
		RecentOrders:       []customerOrderSummary{},
		RecentWishlist:     []wishlistSummary{},
	}
	for i := len(s.orders) - 1; i >= 0; i-- {
		o := s.orders[i]
		if o.Customer != cid {
			continue
		}
		out.TotalOrders++
		if len(out.RecentOrders) == dashboardRecent {
			continue
		}
		sum := customerOrderSummary{ID: o.ID, Date: o.OrderTime}
		var cents int64
		for _, it := range o.Items {
			sum.TotalItems += it.Quantity
			cents += toCents(it.Price.String()) * int64(it.Quantity)
		}
		sum.TotalAmount = formatCents(cents)
		out.RecentOrders = append(out.RecentOrders, sum)
	}

	items := s.wishlist[cid]
	for i := len(items) - 1; i >= 0 && len(out.RecentWishlist) < dashboardRecent; i-- {
		it := items[i]
		p, _ := s.productLocked(it.Product)
		out.RecentWishlist = append(out.RecentWishlist, wishlistSummary{
			ID:           it.ID,
			ProductID:    it.Product,
			ProductTitle: p.Title,
			ProductPrice: p.Price,
			AddedAt:      it.AddedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) vendorDashboard(w http.ResponseWriter, r *http.Request) {
	vid := atoi(chi.URLParam(r, "vendorID"))

	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make(map[int]Product)
	for _, p := range s.products {
		if p.Vendor == vid {
			owned[p.ID] = p
		}
	}

	out := vendorDashboard{
		TotalProducts: len(owned),
		RecentOrders:  []vendorOrderLine{},
		TopProducts:   []topProduct{},
	}
	stats := make(map[int]*topProduct)
	var revenue int64
	for i := len(s.orders) - 1; i >= 0; i-- {
		o := s.orders[i]
		counted := false
		for _, it := range o.Items {
			p, ok := owned[it.Product]
			if !ok {
				continue
			}
			if !counted {
				out.TotalOrders++
				counted = true
			}
			amount := toCents(it.Price.String()) * int64(it.Quantity)
			revenue += amount

			st := stats[p.ID]
			if st == nil {
				st = &topProduct{ID: p.ID, Title: p.Title, Price: p.Price}
				stats[p.ID] = st
			}
			st.Orders++
			st.QuantitySold += it.Quantity

			if len(out.RecentOrders) < dashboardRecent {
				out.RecentOrders = append(out.RecentOrders, vendorOrderLine{
					OrderID:  o.ID,
					Date:     o.OrderTime,
					Product:  p.Title,
					Quantity: it.Quantity,
					Amount:   formatCents(amount),
				})
			}
		}
	}
	out.TotalRevenue = formatCents(revenue)

	for _, st := range stats {
		out.TopProducts = append(out.TopProducts, *st)
	}
	sort.Slice(out.TopProducts, func(i, j int) bool {
		a, b := out.TopProducts[i], out.TopProducts[j]
		if a.QuantitySold != b.QuantitySold {
			return a.QuantitySold > b.QuantitySold
		}
		return a.ID < b.ID
	})
	if len(out.TopProducts) > dashboardRecent {
		out.TopProducts = out.TopProducts[:dashboardRecent]
	}
	writeJSON(w, http.StatusOK, out)
}

// orderDetail returns one order. Only the customer who placed it may read
// it.
func (s *Server) orderDetail(w http.ResponseWriter, r *http.Request) {
	oid := atoi(chi.URLParam(r, "id"))
	id := auth.IdentityFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID != oid {
			continue
		}
		if o.Customer != id.CustomerID {
			writeError(w, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		writeJSON(w, http.StatusOK, o)
		return
	}
	writeError(w, http.StatusNotFound, "Not found.")
}

func (s *Server) productLocked(id int) (Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func toCents(price string) int64 {
	f, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

func formatCents(c int64) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}
