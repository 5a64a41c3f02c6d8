package mockapi

import (
	"encoding/json"
	"strconv"
)

// Category is a product category.
type Category struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Product is a product listing. Price is a decimal string, as the backend
// serializes it.
type Product struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	Price      string `json:"price"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	Category   int    `json:"category"`
	Vendor     int    `json:"vendor"`
	Popularity int    `json:"popularity"`
	ViewCount  int    `json:"view_count"`
	CartAdds   int    `json:"cart_add_count"`
	Wishlisted int    `json:"wishlist_add_count"`
}

// Address is a customer shipping address.
type Address struct {
	ID        int    `json:"id"`
	Customer  int    `json:"customer"`
	Address   string `json:"address"`
	City      string `json:"city"`
	PostCode  string `json:"post_code"`
	IsDefault bool   `json:"default_address"`
}

// WishlistItem links a customer to a product.
type WishlistItem struct {
	ID       int    `json:"id"`
	Customer int    `json:"customer"`
	Product  int    `json:"product"`
	AddedAt  string `json:"added_at,omitempty"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	Product  int         `json:"product"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
}

// Order is a placed order.
type Order struct {
	ID              int         `json:"id"`
	Customer        int         `json:"customer"`
	Items           []OrderItem `json:"order_items"`
	OrderTime       string      `json:"order_time,omitempty"`
	ShippingAddress *int        `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
	Status          string      `json:"order_status"`
}

// Interaction is a recorded customer interaction with a product.
type Interaction struct {
	Customer        int  `json:"customer"`
	Product         int  `json:"product"`
	Viewed          bool `json:"viewed,omitempty"`
	ViewCount       int  `json:"view_count,omitempty"`
	AddedToCart     bool `json:"added_to_cart,omitempty"`
	AddedToWishlist bool `json:"added_to_wishlist,omitempty"`
}

// User is a seeded or registered account.
type User struct {
	ID         int
	Username   string
	Password   string
	CustomerID int
	VendorID   int
}

// Seeded accounts.
var (
	Customer = User{ID: 10, Username: "alice", Password: "alice-pass", CustomerID: 1}
	Vendor   = User{ID: 20, Username: "pcxparts", Password: "vendor-pass", VendorID: 1}
)

func seedCategories() []Category {
	return []Category{
		{ID: 1, Title: "Processors", Detail: "Desktop and laptop CPUs"},
		{ID: 2, Title: "Graphics Cards", Detail: "Discrete GPUs"},
		{ID: 3, Title: "Storage", Detail: "SSDs and hard drives"},
	}
}

func seedProducts() []Product {
	type seed struct {
		title      string
		price      string
		category   int
		popularity int
	}
	seeds := []seed{
		{"Ryzen 7 7800X3D", "449.00", 1, 95},
		{"Core i5-14600K", "319.99", 1, 80},
		{"Ryzen 5 7600", "229.00", 1, 70},
		{"GeForce RTX 4070", "599.99", 2, 90},
		{"Radeon RX 7800 XT", "499.99", 2, 85},
		{"GeForce RTX 4060", "299.99", 2, 60},
		{"Arc A750", "189.99", 2, 30},
		{"990 Pro 2TB", "169.99", 3, 75},
		{"SN850X 1TB", "89.99", 3, 65},
		{"Barracuda 4TB", "84.99", 3, 40},
		{"MX500 1TB", "64.99", 3, 50},
		{"P3 Plus 2TB", "109.99", 3, 20},
	}

	products := make([]Product, 0, len(seeds))
	for i, s := range seeds {
		id := i + 1
		products = append(products, Product{
			ID:         id,
			Title:      s.title,
			Detail:     s.title + " retail box",
			Price:      s.price,
			Thumbnail:  "/media/product_imgs/" + strconv.Itoa(id) + ".jpg",
			Category:   s.category,
			Vendor:     Vendor.VendorID,
			Popularity: s.popularity,
		})
	}
	return products
}
