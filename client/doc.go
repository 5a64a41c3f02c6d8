// Package client talks to the marketplace REST API.
//
// A Client owns the three pieces of shared request state: a time-boxed
// response cache, a registry of in-flight requests and a registry of
// endpoints that answered 404. Every fetch walks the same path:
//
//	cache (GET with a Resource) -> failed-endpoint registry -> in-flight registry -> network
//
// Concurrent identical requests share one network call. An endpoint that
// answered 404 is never called again by the same Client; requests to it are
// answered by their fallback, or fail immediately when they have none.
//
// Results are tagged with the Source that produced them so callers and
// telemetry can tell a network response from a cache hit, a shared result
// or a fallback.
//
// Services built on top of this package (catalog, account, checkout) take a
// *Client by reference; services sharing a Client share its state.
package client
