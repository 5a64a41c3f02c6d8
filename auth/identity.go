package auth

import (
	"strconv"
	"time"
)

// Role distinguishes marketplace account types.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleCustomer  Role = "customer"
	RoleVendor    Role = "vendor"
)

// Identity describes the logged-in account.
type Identity struct {
	UserID     int
	Username   string
	CustomerID int
	VendorID   int
	ExpiresAt  time.Time
	IssuedAt   time.Time

	// Claims contains the raw claims from the token.
	Claims map[string]any
}

// Role reports the account type. A user with both ids is treated as a vendor.
func (id *Identity) Role() Role {
	switch {
	case id == nil:
		return RoleAnonymous
	case id.VendorID != 0:
		return RoleVendor
	case id.CustomerID != 0:
		return RoleCustomer
	default:
		return RoleAnonymous
	}
}

// IsAnonymous reports whether no user is attached.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.UserID == 0
}

// IsExpired reports whether the identity has expired at now. Identities
// without expiry never expire.
func (id *Identity) IsExpired(now time.Time) bool {
	if id == nil || id.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(id.ExpiresAt)
}

// Principal returns the user id as a string, or "anonymous".
func (id *Identity) Principal() string {
	if id.IsAnonymous() {
		return string(RoleAnonymous)
	}
	return strconv.Itoa(id.UserID)
}
