package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Price is a decimal amount. The API sends it as a string ("9.99"); numbers
// are accepted too.
type Price float64

// UnmarshalJSON implements json.Unmarshaler.
func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*p = 0
			return nil
		}
		b = []byte(s)
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("catalog: invalid price %q", b)
	}
	*p = Price(f)
	return nil
}

// MarshalJSON writes the price as a two-decimal string.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p Price) String() string {
	return strconv.FormatFloat(float64(p), 'f', 2, 64)
}

// Cents returns p in whole cents, rounding half away from zero.
func (p Price) Cents() int64 {
	return int64(math.Round(float64(p) * 100))
}

// PriceFromCents converts an amount in cents back to a Price.
func PriceFromCents(cents int64) Price {
	return Price(float64(cents) / 100)
}

// Times returns p multiplied by n. The product is computed in cents.
func (p Price) Times(n int) Price {
	return PriceFromCents(p.Cents() * int64(n))
}

// Sum adds amounts in cents so that totals do not pick up binary rounding.
func Sum(prices ...Price) Price {
	var cents int64
	for _, p := range prices {
		cents += p.Cents()
	}
	return PriceFromCents(cents)
}

// Category is a product category.
type Category struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// CategoryStats is a category with its aggregate numbers.
type CategoryStats struct {
	Category
	ProductCount int `json:"product_count"`
	TotalViews   int `json:"total_views"`
}

// Product is a product listing.
type Product struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
	Price      Price  `json:"price"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	Category   int    `json:"category,omitempty"`
	Vendor     int    `json:"vendor,omitempty"`
	Popularity int    `json:"popularity,omitempty"`
	ViewCount  int    `json:"view_count,omitempty"`

	// Placeholder marks stand-in products shown when nothing could be
	// fetched.
	Placeholder bool `json:"placeholder,omitempty"`
}

type relatedProduct struct {
	TargetProduct int      `json:"target_product"`
	Details       *Product `json:"target_product_details"`
}

// placeholderFeatured is shown when the featured list could never be
// fetched.
func placeholderFeatured() []Product {
	return []Product{
		{ID: -1, Title: "Featured Product 1", Price: 9.99, Thumbnail: "https://via.placeholder.com/800x400?text=Featured+Product+1", Placeholder: true},
		{ID: -2, Title: "Featured Product 2", Price: 19.99, Thumbnail: "https://via.placeholder.com/800x400?text=Featured+Product+2", Placeholder: true},
		{ID: -3, Title: "Featured Product 3", Price: 29.99, Thumbnail: "https://via.placeholder.com/800x400?text=Featured+Product+3", Placeholder: true},
	}
}
