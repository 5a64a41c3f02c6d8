// Package catalog fetches categories and products from the marketplace API.
//
// Every fetcher goes through one shared *client.Client, so repeated and
// concurrent calls are deduplicated and cached per resource:
//
//	categories, products, featured-products, category-products,
//	product-details, popular, categories-with-stats
//
// FetchFeatured falls back to the five most popular products once the
// featured endpoint has answered 404, and never calls it again.
package catalog
