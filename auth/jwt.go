package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names used by the marketplace API.
const (
	ClaimUserID     = "user_id"
	ClaimUsername   = "username"
	ClaimCustomerID = "customer_id"
	ClaimVendorID   = "vendor_id"
	ClaimTokenType  = "token_type"
)

// Token types carried in ClaimTokenType.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var parser = jwt.NewParser(jwt.WithJSONNumber())

// ParseToken decodes token without verifying its signature and returns the
// identity it describes. Expired tokens still parse; use Identity.IsExpired.
func ParseToken(token string) (*Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	id := &Identity{
		UserID:     intClaim(claims, ClaimUserID),
		CustomerID: intClaim(claims, ClaimCustomerID),
		VendorID:   intClaim(claims, ClaimVendorID),
		Claims:     map[string]any(claims),
	}
	if v, ok := claims[ClaimUsername].(string); ok {
		id.Username = v
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		id.IssuedAt = iat.Time
	}
	return id, nil
}

// Expired reports whether token is unreadable or expires within skew of now.
func Expired(token string, now time.Time, skew time.Duration) bool {
	id, err := ParseToken(token)
	if err != nil {
		return true
	}
	if id.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(id.ExpiresAt)
}

// IssueToken signs an HS256 token for id. It is used by the in-process mock
// backend; real tokens come from the marketplace API.
func IssueToken(id Identity, tokenType string, key []byte, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		ClaimTokenType: tokenType,
		ClaimUserID:    id.UserID,
		"iat":          now.Unix(),
		"exp":          now.Add(ttl).Unix(),
	}
	if id.Username != "" {
		claims[ClaimUsername] = id.Username
	}
	if id.CustomerID != 0 {
		claims[ClaimCustomerID] = id.CustomerID
	}
	if id.VendorID != 0 {
		claims[ClaimVendorID] = id.VendorID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// VerifyToken checks token's signature with key and returns its identity.
func VerifyToken(token string, key []byte) (*Identity, error) {
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return ParseToken(token)
}

func intClaim(claims jwt.MapClaims, name string) int {
	switch v := claims[name].(type) {
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
