package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Source tells how a Result was produced.
type Source string

const (
	SourceNetwork  Source = "network"
	SourceCache    Source = "cache"
	SourceShared   Source = "shared"
	SourceFallback Source = "fallback"
)

// Request describes one API call.
type Request struct {
	// Method defaults to GET.
	Method string

	// Path is relative to the base URL, for example "/products/".
	Path  string
	Query url.Values

	// Body is encoded as JSON. It also feeds the request key.
	Body any

	// Form sends a multipart body instead of Body.
	Form *Form

	// Resource names the cache partition for GET responses. Requests
	// without a Resource are never cached.
	Resource string

	// ForceRefresh skips the cache read; the response still refreshes it.
	ForceRefresh bool

	// SkipAuth sends the request without credentials. Anonymous requests
	// get their own request key, so they never share a response with an
	// authenticated call to the same path.
	SkipAuth bool
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// target returns the path with its encoded query string.
func (r Request) target() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	sep := "?"
	if strings.Contains(r.Path, "?") {
		sep = "&"
	}
	return r.Path + sep + r.Query.Encode()
}

// keyBody is the value the request key is derived from.
func (r Request) keyBody() any {
	if r.Form != nil {
		return r.Form.Fields
	}
	return r.Body
}

// Form is a multipart/form-data body.
type Form struct {
	Fields map[string]string
	Files  []File
}

// File is one file part of a Form.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     []byte
}

// Result is the outcome of a successful fetch.
type Result struct {
	Source Source
	Status int
	Header http.Header

	// Body is shared between callers of a deduplicated request and must
	// not be modified.
	Body []byte
}

// Decode unmarshals the JSON body into v.
func (r *Result) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return fmt.Errorf("client: decode: empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("client: decode: %w", err)
	}
	return nil
}

// Fallback produces a substitute result for an endpoint that answered 404.
type Fallback func(ctx context.Context) (*Result, error)

// response is what one network call shares with every waiter.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) result(src Source) *Result {
	return &Result{Source: src, Status: r.status, Header: r.header, Body: r.body}
}
