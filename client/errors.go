package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Sentinel errors matched by HTTPError.Is.
var (
	ErrNotFound     = errors.New("client: not found")
	ErrUnauthorized = errors.New("client: unauthorized")
	ErrForbidden    = errors.New("client: forbidden")
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("client: invalid config")

// Human-readable messages shown to end users.
const (
	MsgNetwork      = "Network error. Please check your connection."
	MsgTimeout      = "Request timed out. Please try again or check your internet connection."
	MsgUnauthorized = "Please log in to continue."
	MsgForbidden    = "You do not have permission to perform this action."
	MsgNotFound     = "The requested resource was not found."
	MsgServer       = "Server error. Please try again later."
	MsgValidation   = "Please check your input and try again."
	MsgUnknown      = "An unexpected error occurred. Please try again later."
)

// NetworkError reports a request that got no response.
type NetworkError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("client: %s %s: network error: %v", e.Method, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError reports a request that did not complete within the
// configured timeout.
type TimeoutError struct {
	Method   string
	Endpoint string
	Timeout  time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("client: %s %s: timed out after %s", e.Method, e.Endpoint, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response.
type HTTPError struct {
	Method   string
	Endpoint string
	Status   int

	// Message is the server-provided explanation, if any.
	Message string
	Body    []byte

	// Err is set when the error did not come from a response, for example
	// failure.ErrEndpointFailed for an endpoint skipped by the registry.
	Err error
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("client: %s %s: %d %s", e.Method, e.Endpoint, e.Status, msg)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Is matches the status sentinels.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}

// ValidationError reports input rejected before it was sent.
type ValidationError struct {
	// Fields maps a field name to the reason it was rejected.
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "client: invalid input: " + strings.Join(parts, "; ")
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

// Message translates err into a message suitable for end users. A message
// supplied by the server wins over the generic text for its status, except
// for 404 where the text names the missing resource.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		he *HTTPError
		ne *NetworkError
		te *TimeoutError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &ve):
		return MsgValidation
	case errors.As(err, &te):
		return MsgTimeout
	case errors.As(err, &ne):
		return MsgNetwork
	case errors.As(err, &he):
		if he.Message != "" && he.Status != http.StatusNotFound {
			return he.Message
		}
		return statusMessage(he.Status, he.Endpoint)
	}
	return MsgUnknown
}

func statusMessage(status int, endpoint string) string {
	switch {
	case status == http.StatusUnauthorized:
		return MsgUnauthorized
	case status == http.StatusForbidden:
		return MsgForbidden
	case status == http.StatusNotFound:
		return notFoundMessage(endpoint)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return MsgValidation
	case status >= 500:
		return MsgServer
	}
	return MsgUnknown
}

func notFoundMessage(endpoint string) string {
	switch {
	case strings.Contains(endpoint, "address"):
		return "Address not found. The address may have been deleted or the URL is incorrect."
	case strings.Contains(endpoint, "wishlist"):
		return "Wishlist not found. The wishlist may have been deleted or the URL is incorrect."
	case strings.Contains(endpoint, "product"):
		return "Product not found. The product may have been deleted or the URL is incorrect."
	}
	return MsgNotFound
}

// serverMessage extracts message, msg, detail or error from a JSON error body.
func serverMessage(body []byte) string {
	var payload map[string]any
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	for _, k := range []string{"message", "msg", "detail", "error"} {
		if s, ok := payload[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
