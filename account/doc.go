// Package account covers the logged-in side of the storefront: login and
// logout, customer addresses, wishlist and orders, vendor product
// management and interaction tracking.
//
// A Service shares its *client.Client with the catalog and checkout
// services and persists tokens and account ids in a storage.Store. Account
// ids are resolved from the access token claims first, then from storage,
// then from GET /user/.
//
// Writes do not invalidate cached listings; pass force to re-fetch.
package account
