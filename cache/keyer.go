package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Keyer derives the identity of an outgoing API request.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key generates a request key from the HTTP method, the path (including
	// any encoded query string) and the request body.
	Key(method, path string, body any) (string, error)
}

// RequestKeyer generates SHA-256 based request keys.
type RequestKeyer struct{}

// NewRequestKeyer creates a new request keyer.
func NewRequestKeyer() *RequestKeyer {
	return &RequestKeyer{}
}

// Key generates a deterministic request key.
// Format: <METHOD>:<path>:<hash>
// where hash is the first 16 characters of SHA-256(canonical JSON(body)),
// or empty when there is no body.
func (k *RequestKeyer) Key(method, path string, body any) (string, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "GET"
	}
	if body == nil {
		return method + ":" + path + ":", nil
	}

	canonical, err := canonicalize(body)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize body: %w", err)
	}

	hash := sha256.Sum256(canonical)
	hashStr := hex.EncodeToString(hash[:8])

	return fmt.Sprintf("%s:%s:%s", method, path, hashStr), nil
}

// canonicalize produces a deterministic JSON representation of v.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	case []byte:
		return val, nil
	case json.RawMessage:
		return val, nil
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}

// Ensure RequestKeyer implements Keyer
var _ Keyer = (*RequestKeyer)(nil)
