// Package cache holds the time-boxed response cache used by the storefront
// client.
//
// Entries are keyed by request (method, path and body) and partitioned by
// resource type. An entry is fresh while its age is below the TTL it was
// written with; stale entries are never served and are dropped on the next
// read.
package cache
