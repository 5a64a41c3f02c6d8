package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for secret resolution.
var (
	ErrUnknownProvider = errors.New("secret: provider is not registered")
	ErrEmptySecret     = errors.New("secret: provider returned empty value")
)

const refPrefix = "secretref:"

// Resolver expands configuration values and resolves secret references.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. When strict is set, a provider returning an
// empty value is an error.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider), strict: strict}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// DefaultResolver resolves env and file references strictly.
func DefaultResolver() *Resolver {
	return NewResolver(true, EnvProvider{}, FileProvider{})
}

// ParseSecretRef parses a value of the form secretref:<provider>:<ref>.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	if !strings.HasPrefix(value, refPrefix) {
		return "", "", false
	}
	provider, ref, found := strings.Cut(strings.TrimPrefix(value, refPrefix), ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

// Resolve expands env references in value, then resolves it if it is a
// secret reference. Empty values resolve to empty.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}

	name, ref, ok := ParseSecretRef(expanded)
	if !ok {
		return expanded, nil
	}

	p, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	out, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && out == "" {
		return "", fmt.Errorf("%w: %q", ErrEmptySecret, name)
	}
	return out, nil
}
