// Package failure remembers API endpoints that answered 404 so that later
// calls skip the network and go straight to a fallback.
//
// Endpoints are keyed by path without the query string: a 404 on
// /products/featured/?page=2 also blocks /products/featured/. Only "not
// found" is considered permanent; transient statuses are never recorded.
package failure
