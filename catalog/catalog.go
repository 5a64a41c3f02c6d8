package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/pcxmarket/storefront/client"
	"github.com/pcxmarket/storefront/observe"
)

// Cache resource names.
const (
	ResourceCategories          = "categories"
	ResourceProducts            = "products"
	ResourceFeatured            = "featured-products"
	ResourceCategoryProducts    = "category-products"
	ResourceProductDetails      = "product-details"
	ResourcePopular             = "popular"
	ResourceCategoriesWithStats = "categories-with-stats"
)

// Endpoints.
const (
	PathCategories          = "/categories/"
	PathCategoriesWithStats = "/categories-with-stats/"
	PathProducts            = "/products/"
	PathFeatured            = "/products/featured/"
	PathPopular             = "/products/popular/"
	PathRelated             = "/related-products/"
	PathRecommendations     = "/recommendations/"
)

// Listing sizes used when the caller passes no limit.
const (
	FeaturedFallbackLimit = 5
	DefaultPopularLimit   = 5
	DefaultRelatedLimit   = 4
)

// Sort orders understood by the products endpoint.
const (
	SortPopularity = "popularity"
	SortViews      = "views"
	SortPrice      = "price"
	SortPriceDesc  = "-price"
)

// ProductQuery filters a product listing. Zero fields are omitted.
type ProductQuery struct {
	Limit    int
	Sort     string
	Category int
	Page     int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Category > 0 {
		v.Set("category", strconv.Itoa(q.Category))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// ViewTracker records product views. account.Service implements it.
type ViewTracker interface {
	TrackView(ctx context.Context, productID int) error
}

// Option configures a Service.
type Option func(*Service)

// WithViewTracker makes FetchProduct record a view after each successful
// fetch.
func WithViewTracker(t ViewTracker) Option {
	return func(s *Service) {
		s.views = t
	}
}

// Service fetches catalog data through a shared client.
type Service struct {
	client *client.Client
	logger observe.Logger
	views  ViewTracker

	// featuredSeen is set once featured products were returned from the
	// network, the cache or the fallback.
	featuredSeen atomic.Bool
}

// New creates a Service over c.
func New(c *client.Client, opts ...Option) *Service {
	s := &Service{client: c, logger: c.Logger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchCategories returns every category.
func (s *Service) FetchCategories(ctx context.Context, force bool) ([]Category, error) {
	res, err := s.client.Do(ctx, client.Request{
		Path:         PathCategories,
		Resource:     ResourceCategories,
		ForceRefresh: force,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Category](res)
}

// FetchCategoriesWithStats returns every category with product counts and
// views.
func (s *Service) FetchCategoriesWithStats(ctx context.Context) ([]CategoryStats, error) {
	res, err := s.client.Do(ctx, client.Request{
		Path:     PathCategoriesWithStats,
		Resource: ResourceCategoriesWithStats,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[CategoryStats](res)
}

// FetchProducts returns a product listing.
func (s *Service) FetchProducts(ctx context.Context, q ProductQuery, force bool) ([]Product, error) {
	res, err := s.client.Do(ctx, productsRequest(q, force))
	if err != nil {
		return nil, err
	}
	return decodeList[Product](res)
}

func productsRequest(q ProductQuery, force bool) client.Request {
	return client.Request{
		Path:         PathProducts,
		Query:        q.values(),
		Resource:     ResourceProducts,
		ForceRefresh: force,
	}
}

// FetchFeatured returns the featured products.
//
// Once the featured endpoint answers 404 it is never called again and the
// five most popular products are returned instead. When nothing can be
// fetched and no featured products were ever returned, placeholder products
// are returned without an error.
func (s *Service) FetchFeatured(ctx context.Context, force bool) ([]Product, error) {
	fallback := func(ctx context.Context) (*client.Result, error) {
		return s.client.Do(ctx, productsRequest(ProductQuery{Limit: FeaturedFallbackLimit, Sort: SortPopularity}, false))
	}
	res, err := s.client.DoWithFallback(ctx, client.Request{
		Path:         PathFeatured,
		Resource:     ResourceFeatured,
		ForceRefresh: force,
	}, fallback)
	if err == nil {
		var products []Product
		products, err = decodeList[Product](res)
		if err == nil {
			s.featuredSeen.Store(true)
			return products, nil
		}
	}
	if ctx.Err() != nil || s.featuredSeen.Load() {
		return nil, err
	}
	s.logger.Warn(ctx, "featured products unavailable, using placeholders",
		observe.Field{Key: "error", Value: err.Error()})
	return placeholderFeatured(), nil
}

// FetchProductsByCategory returns the products of one category.
func (s *Service) FetchProductsByCategory(ctx context.Context, categoryID int, q ProductQuery, force bool) ([]Product, error) {
	if categoryID <= 0 {
		return nil, fmt.Errorf("catalog: invalid category id %d", categoryID)
	}
	q.Category = 0
	query := q.values()
	query.Set("category_id", strconv.Itoa(categoryID))

	res, err := s.client.Do(ctx, client.Request{
		Path:         PathProducts,
		Query:        query,
		Resource:     ResourceCategoryProducts,
		ForceRefresh: force,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Product](res)
}

// FetchProduct returns one product and records a view for it.
func (s *Service) FetchProduct(ctx context.Context, id int) (*Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("catalog: invalid product id %d", id)
	}
	res, err := s.client.Do(ctx, client.Request{
		Path:     "/product/" + strconv.Itoa(id) + "/",
		Resource: ResourceProductDetails,
	})
	if err != nil {
		return nil, err
	}
	var p Product
	if err := res.Decode(&p); err != nil {
		return nil, err
	}

	if s.views != nil {
		if err := s.views.TrackView(ctx, id); err != nil {
			s.logger.Warn(ctx, "tracking product view failed",
				observe.Field{Key: "product_id", Value: id},
				observe.Field{Key: "error", Value: err.Error()})
		}
	}
	return &p, nil
}

// FetchRelated returns up to limit products related to productID. When the
// relations endpoint is missing, a plain product listing is returned.
func (s *Service) FetchRelated(ctx context.Context, productID, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	fallback := func(ctx context.Context) (*client.Result, error) {
		return s.client.Do(ctx, productsRequest(ProductQuery{Limit: limit}, false))
	}
	// Relations and listings share no body shape, so this result is not
	// cached.
	res, err := s.client.DoWithFallback(ctx, client.Request{
		Path:  PathRelated,
		Query: url.Values{"product_id": {strconv.Itoa(productID)}},
	}, fallback)
	if err != nil {
		return nil, err
	}
	if res.Source == client.SourceFallback {
		return decodeList[Product](res)
	}

	relations, err := decodeList[relatedProduct](res)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0, min(limit, len(relations)))
	for _, r := range relations {
		if r.Details == nil {
			continue
		}
		out = append(out, *r.Details)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// FetchPopular returns the most viewed products. Errors are logged and an
// empty list is returned.
func (s *Service) FetchPopular(ctx context.Context, limit int) []Product {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	res, err := s.client.Do(ctx, client.Request{
		Path:     PathPopular,
		Query:    url.Values{"limit": {strconv.Itoa(limit)}},
		Resource: ResourcePopular,
	})
	if err == nil {
		var products []Product
		if products, err = decodeList[Product](res); err == nil {
			return products
		}
	}
	s.logger.Warn(ctx, "popular products unavailable",
		observe.Field{Key: "error", Value: err.Error()})
	return []Product{}
}

// FetchRecommended returns personal recommendations for the logged-in user.
// Anonymous users and failed requests get the popular list.
func (s *Service) FetchRecommended(ctx context.Context, limit int) []Product {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	if !s.loggedIn(ctx) {
		return s.FetchPopular(ctx, limit)
	}

	res, err := s.client.Do(ctx, client.Request{
		Path:  PathRecommendations,
		Query: url.Values{"limit": {strconv.Itoa(limit)}},
	})
	if err == nil {
		var products []Product
		if products, err = decodeList[Product](res); err == nil {
			return products
		}
	}
	level := s.logger.Warn
	if errors.Is(err, client.ErrUnauthorized) {
		level = s.logger.Info
	}
	level(ctx, "recommendations unavailable, using popular products",
		observe.Field{Key: "error", Value: err.Error()})
	return s.FetchPopular(ctx, limit)
}

func (s *Service) loggedIn(ctx context.Context) bool {
	ts := s.client.Tokens()
	if ts == nil {
		return false
	}
	access, err := ts.Access(ctx)
	return err == nil && access != ""
}

// Invalidate drops every cached listing so the next fetch hits the network.
func (s *Service) Invalidate(ctx context.Context) error {
	for _, r := range []string{
		ResourceCategories,
		ResourceProducts,
		ResourceFeatured,
		ResourceCategoryProducts,
		ResourceProductDetails,
		ResourcePopular,
		ResourceCategoriesWithStats,
	} {
		if err := s.client.InvalidateResource(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func decodeList[T any](res *client.Result) ([]T, error) {
	var out []T
	if err := res.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
