// Package auth holds the storefront session: the token pair issued by the
// marketplace API, the identity those tokens describe, and helpers that
// attach credentials to outgoing requests.
//
// Tokens are decoded without signature verification. The client never holds
// the signing key; it reads claims only to learn account ids and expiry.
package auth
