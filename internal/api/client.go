package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// HeaderCatalogVersion carries the client's believed catalog version on
// requests and the server's current version on responses.
const HeaderCatalogVersion = "X-Catalog-Version"

// DefaultTimeout bounds non-pricing calls through a context deadline. Price
// has no client-side deadline; its lifetime is the caller's context.
const DefaultTimeout = 30 * time.Second

// Client talks to the quoting backend.
//
// Thread-safety: Client is safe for concurrent use; it holds no mutable state.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (e.g. httptest's client).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTimeout changes the deadline applied to non-pricing calls. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a Client for the backend at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend URL this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes one round trip.
type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string

	// raw replaces the JSON body; contentType goes with it.
	raw         io.Reader
	contentType string

	// unbounded skips the client's timeout.
	unbounded bool
}

// response is a successful round trip's raw body and headers.
type response struct {
	status int
	header http.Header
	body   []byte
}

// do performs the round trip and converts non-2xx statuses into typed errors.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	u := *c.baseURL
	u.Path = u.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	if !r.unbounded && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body := r.raw
	if body == nil && r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case r.raw != nil:
		req.Header.Set("Content-Type", r.contentType)
	case r.body != nil:
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", r.method, r.path, err)
	}

	c.logger.Debug("api round trip",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"elapsed", time.Since(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(r.method, r.path, resp.StatusCode, data)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// getJSON issues a GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	return decodeBody(http.MethodGet, path, resp.body, out)
}

// postJSON issues a POST with an optional body and decodes the reply into out (if non-nil).
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	resp, err := c.do(ctx, request{method: http.MethodPost, path: path, body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeBody(http.MethodPost, path, resp.body, out)
}

// putJSON issues a PUT and decodes the reply into out.
func (c *Client) putJSON(ctx context.Context, path string, query url.Values, body, out any) error {
	resp, err := c.do(ctx, request{method: http.MethodPut, path: path, query: query, body: body})
	if err != nil {
		return err
	}
	return decodeBody(http.MethodPut, path, resp.body, out)
}

func decodeBody(method, path string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// errorBody is the union of error payload shapes the backend produces.
type errorBody struct {
	Field   string          `json:"field"`
	Error   string          `json:"error"`
	Version string          `json:"version"`
	Detail  json.RawMessage `json:"detail"`
}

// decodeError maps an error status and body onto the typed errors.
func decodeError(method, path string, status int, data []byte) error {
	var eb errorBody
	// Non-JSON error bodies still produce a StatusError.
	_ = json.Unmarshal(data, &eb)

	switch {
	case status == http.StatusConflict && eb.Version != "":
		return &VersionConflictError{ServerVersion: eb.Version, Message: eb.Error}
	case status == http.StatusBadRequest && eb.Field != "":
		return &FieldRejectedError{Field: eb.Field, Message: eb.Error}
	}

	se := &StatusError{
		Method: method,
		Path:   path,
		Status: status,
		Code:   eb.Error,
		Detail: detailText(eb.Detail),
	}
	if eb.Error == CodePathMissing {
		se.Err = ErrPathMissing
	}
	return se
}

// detailText flattens FastAPI's "detail", which is a string or a list of objects.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(raw)
}
