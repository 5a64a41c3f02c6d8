// Package storage persists small client-side values such as tokens, the
// cart and resolved account ids.
//
// It plays the role of browser local storage for the storefront client:
// string values under fixed keys, no schema versioning, last write wins.
package storage
