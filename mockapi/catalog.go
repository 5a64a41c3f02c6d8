package mockapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]Category(nil), s.categories...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

type categoryStats struct {
	Category
	ProductCount int `json:"product_count"`
	TotalViews   int `json:"total_views"`
}

func (s *Server) categoriesWithStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]categoryStats, 0, len(s.categories))
	for _, c := range s.categories {
		st := categoryStats{Category: c}
		for _, p := range s.products {
			if p.Category == c.ID {
				st.ProductCount++
				st.TotalViews += p.ViewCount
			}
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}

// listProducts supports category (or category_id), sort, limit and page.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	products := append([]Product(nil), s.products...)
	s.mu.Unlock()

	category := q.Get("category")
	if category == "" {
		category = q.Get("category_id")
	}
	if category != "" {
		id, err := strconv.Atoi(category)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category")
			return
		}
		products = filterProducts(products, func(p Product) bool { return p.Category == id })
	}

	sortProducts(products, q.Get("sort"))
	writeJSON(w, http.StatusOK, paginate(products, atoi(q.Get("limit")), atoi(q.Get("page"))))
}

func (s *Server) featuredProducts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	enabled := s.featured
	products := append([]Product(nil), s.products...)
	s.mu.Unlock()

	if !enabled {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	sortProducts(products, "popularity")
	writeJSON(w, http.StatusOK, paginate(products, 3, 1))
}

func (s *Server) popularProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	products := append([]Product(nil), s.products...)
	s.mu.Unlock()

	sortProducts(products, "views")
	writeJSON(w, http.StatusOK, paginate(products, atoiDefault(r.URL.Query().Get("limit"), 5), 1))
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	products := append([]Product(nil), s.products...)
	s.mu.Unlock()

	sortProducts(products, "popularity")
	limit := atoiDefault(r.URL.Query().Get("limit"), 5)
	// The top seller is left out.
	if len(products) > 0 {
		products = products[1:]
	}
	writeJSON(w, http.StatusOK, paginate(products, limit, 1))
}

func (s *Server) productDetail(w http.ResponseWriter, r *http.Request) {
	p, ok := s.product(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type relatedProduct struct {
	ID            int     `json:"id"`
	SourceProduct int     `json:"source_product"`
	TargetProduct int     `json:"target_product"`
	RelationType  string  `json:"relation_type"`
	TargetDetails Product `json:"target_product_details"`
}

func (s *Server) relatedProducts(w http.ResponseWriter, r *http.Request) {
	src, ok := s.product(r.URL.Query().Get("product_id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []relatedProduct{}
	for _, p := range s.products {
		if p.Category == src.Category && p.ID != src.ID {
			out = append(out, relatedProduct{
				ID:            src.ID*1000 + p.ID,
				SourceProduct: src.ID,
				TargetProduct: p.ID,
				RelationType:  "similar",
				TargetDetails: p,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type statisticsPatch struct {
	ViewCountIncrement     int `json:"view_count_increment"`
	CartAddCountIncrement  int `json:"cart_add_count_increment"`
	WishlistCountIncrement int `json:"wishlist_add_count_increment"`
}

func (s *Server) productStatistics(w http.ResponseWriter, r *http.Request) {
	var patch statisticsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	id := atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == id {
			s.products[i].ViewCount += patch.ViewCountIncrement
			s.products[i].CartAdds += patch.CartAddCountIncrement
			s.products[i].Wishlisted += patch.WishlistCountIncrement
			writeJSON(w, http.StatusOK, s.products[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Not found.")
}

// Product returns the current state of product id.
func (s *Server) Product(id int) (Product, bool) {
	return s.product(strconv.Itoa(id))
}

func (s *Server) product(id string) (Product, bool) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return Product{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productLocked(n)
}

func filterProducts(in []Product, keep func(Product) bool) []Product {
	out := in[:0]
	for _, p := range in {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func sortProducts(products []Product, by string) {
	price := func(p Product) float64 {
		f, _ := strconv.ParseFloat(p.Price, 64)
		return f
	}
	switch by {
	case "popularity":
		sort.SliceStable(products, func(i, j int) bool { return products[i].Popularity > products[j].Popularity })
	case "views":
		sort.SliceStable(products, func(i, j int) bool {
			if products[i].ViewCount != products[j].ViewCount {
				return products[i].ViewCount > products[j].ViewCount
			}
			return products[i].Popularity > products[j].Popularity
		})
	case "price":
		sort.SliceStable(products, func(i, j int) bool { return price(products[i]) < price(products[j]) })
	case "-price":
		sort.SliceStable(products, func(i, j int) bool { return price(products[i]) > price(products[j]) })
	default:
		sort.SliceStable(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	}
}

func paginate(products []Product, limit, page int) []Product {
	if limit <= 0 {
		return products
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(products) {
		return []Product{}
	}
	return products[start:min(start+limit, len(products))]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}
