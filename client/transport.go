package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/pcxmarket/storefront/auth"
	"github.com/pcxmarket/storefront/observe"
	"github.com/pcxmarket/storefront/resilience"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 10 << 20

const refreshKey = "auth:refresh"

// send performs the network part of a call: per-attempt timeout, retries for
// reads, one token refresh on 401 and the fixed delay before a final 401.
func (c *Client) send(ctx context.Context, cl *call) (*response, error) {
	payload, contentType, err := encodeBody(cl.Request)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"body": err.Error()}}
	}

	exec := c.writes
	if cl.method == http.MethodGet {
		exec = c.reads
	}

	// Only a successful attempt publishes its response; attempts run
	// one after another on this goroutine.
	var resp *response
	err = exec.Execute(ctx, func(ctx context.Context) error {
		r, err := c.attempt(ctx, cl, payload, contentType)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if errors.Is(err, resilience.ErrTimeout) {
		err = &TimeoutError{Method: cl.method, Endpoint: cl.endpoint, Timeout: c.config.Timeout, Err: err}
	}

	if err != nil && StatusOf(err) == http.StatusUnauthorized && c.config.UnauthorizedDelay > 0 {
		c.logger.WithRequest(cl.meta).Warn(ctx, "unauthorized, backing off",
			observe.Field{Key: "delay", Value: c.config.UnauthorizedDelay.String()})
		if werr := resilience.Wait(ctx, c.config.UnauthorizedDelay); werr != nil {
			return nil, werr
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// attempt sends once, refreshing the access token and resending once when
// the first answer is 401.
func (c *Client) attempt(ctx context.Context, cl *call, payload []byte, contentType string) (*response, error) {
	authed := c.tokens != nil && !cl.SkipAuth
	if authed {
		c.refreshIfExpired(ctx)
	}

	resp, err := c.roundTrip(ctx, cl, payload, contentType)
	if !authed || StatusOf(err) != http.StatusUnauthorized {
		return resp, err
	}

	if rerr := c.refreshAccess(ctx); rerr != nil {
		c.logger.WithRequest(cl.meta).Warn(ctx, "token refresh failed", observe.Field{Key: "error", Value: rerr})
		return nil, err
	}
	return c.roundTrip(ctx, cl, payload, contentType)
}

func (c *Client) roundTrip(ctx context.Context, cl *call, payload []byte, contentType string) (*response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	if cl.SkipAuth {
		ctx = auth.WithoutCredentials(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.config.BaseURL+cl.target, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Method: cl.method, Endpoint: cl.endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Method: cl.method, Endpoint: cl.endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:   cl.method,
			Endpoint: cl.endpoint,
			Status:   resp.StatusCode,
			Message:  serverMessage(data),
			Body:     data,
		}
	}
	return &response{status: resp.StatusCode, header: resp.Header.Clone(), body: data}, nil
}

// refreshIfExpired refreshes an access token whose exp claim has passed.
// Tokens that are not JWTs are sent as they are.
func (c *Client) refreshIfExpired(ctx context.Context) {
	access, err := c.tokens.Access(ctx)
	if err != nil || access == "" {
		return
	}
	id, err := auth.ParseToken(access)
	if err != nil || !id.IsExpired(c.now()) {
		return
	}
	if err := c.refreshAccess(ctx); err != nil {
		c.logger.Warn(ctx, "expired token could not be refreshed", observe.Field{Key: "error", Value: err})
	}
}

// refreshAccess exchanges the refresh token for a new access token.
// Concurrent callers share one exchange. On failure every token is cleared.
func (c *Client) refreshAccess(ctx context.Context) error {
	_, _, err := c.inflight.Do(ctx, refreshKey, func(ctx context.Context) (any, error) {
		err := c.exchangeRefresh(ctx)
		if err != nil {
			if cerr := c.tokens.Clear(ctx); cerr != nil {
				c.logger.Error(ctx, "clearing tokens failed", observe.Field{Key: "error", Value: cerr})
			}
		}
		return nil, err
	})
	return err
}

func (c *Client) exchangeRefresh(ctx context.Context) error {
	refresh, err := c.tokens.Refresh(ctx)
	if err != nil {
		return err
	}
	if refresh == "" {
		return auth.ErrNoRefreshToken
	}

	cl := &call{
		Request:  Request{Method: http.MethodPost, Path: RefreshPath, SkipAuth: true},
		method:   http.MethodPost,
		target:   RefreshPath,
		endpoint: RefreshPath,
		meta:     observe.RequestMeta{Method: http.MethodPost, Endpoint: RefreshPath},
	}
	payload, err := json.Marshal(map[string]string{"refresh": refresh})
	if err != nil {
		return err
	}

	// The caller may hold a bulkhead slot already, so only the timeout applies.
	var resp *response
	timeout := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: c.config.Timeout})
	err = timeout.Execute(ctx, func(ctx context.Context) error {
		r, err := c.roundTrip(ctx, cl, payload, "application/json")
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return fmt.Errorf("client: refresh token: %w", err)
	}

	var pair auth.TokenPair
	if err := json.Unmarshal(resp.body, &pair); err != nil {
		return fmt.Errorf("client: refresh token: %w", err)
	}
	if pair.Access == "" {
		return auth.ErrMissingCredentials
	}
	return c.tokens.SetAccess(ctx, pair.Access)
}

// encodeBody returns the request payload and its content type.
func encodeBody(r Request) ([]byte, string, error) {
	if r.Form != nil {
		return encodeForm(r.Form)
	}
	switch b := r.Body.(type) {
	case nil:
		return nil, "", nil
	case json.RawMessage:
		return b, "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeForm(f *Form) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, f.Fields[name]); err != nil {
			return nil, "", err
		}
	}

	for _, file := range f.Files {
		ct := file.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(file.Field), quoteEscaper.Replace(file.Name)))
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
