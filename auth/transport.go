package auth

import (
	"net/http"
	"strings"
)

// Transport is an http.RoundTripper that adds a bearer token from Tokens to
// every request that does not already carry an Authorization header.
type Transport struct {
	Base   http.RoundTripper
	Tokens TokenSource
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Tokens == nil || req.Header.Get("Authorization") != "" || CredentialsDisabled(req.Context()) {
		return base.RoundTrip(req)
	}

	access, err := t.Tokens.Access(req.Context())
	if err != nil || access == "" {
		return base.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+access)
	return base.RoundTrip(req)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// WithBearerIdentity is HTTP middleware that verifies a bearer token with key
// and attaches the resulting identity to the request context. Requests
// without a valid token pass through anonymously.
func WithBearerIdentity(key []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := BearerToken(r.Header.Get("Authorization")); ok {
				if id, err := VerifyToken(token, key); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
