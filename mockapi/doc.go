// Package mockapi is an in-process fake of the marketplace REST API.
//
// It serves the same paths as the real backend from seeded in-memory data,
// issues HS256 tokens, and counts hits per path so tests can assert how many
// network calls a client made. The featured-products endpoint can be turned
// off to reproduce backends that answer it with 404.
package mockapi
