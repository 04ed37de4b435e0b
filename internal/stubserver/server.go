// Package stubserver is a fixture-driven stand-in for the pricing backend.
//
// It serves the catalog, validates price requests the way the backend does
// (version check, required fields, option domains) and answers valid ones
// with the fixture's canned result. No pricing arithmetic is performed.
package stubserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/value"
)

// Server serves a Fixture over HTTP.
type Server struct {
	fixture *Fixture
	logger  *slog.Logger
	srv     *fasthttp.Server

	mu       sync.RWMutex
	catalog  *catalog.Catalog
	costGrid string

	uploadDir string

	priceCalls atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithUploadDir stores uploaded cost grids in dir. Without it uploads are refused.
func WithUploadDir(dir string) Option {
	return func(s *Server) {
		s.uploadDir = dir
	}
}

// New builds a server for f.
func New(f *Fixture, opts ...Option) (*Server, error) {
	cat, err := f.Catalog()
	if err != nil {
		return nil, err
	}
	s := &Server{fixture: f, catalog: cat, costGrid: f.CostGridPath, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &fasthttp.Server{
		Handler: s.Handle,
		Name:    "rdsquote-stub",
	}
	return s, nil
}

// Catalog returns the catalog currently served.
func (s *Server) Catalog() *catalog.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// SetCatalog replaces the served catalog, e.g. to simulate a version bump.
// Requests tagged with the old version get 409 from then on.
func (s *Server) SetCatalog(cat *catalog.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = cat
}

// PriceCalls returns how many price requests have been received.
func (s *Server) PriceCalls() int64 {
	return s.priceCalls.Load()
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("stub server listening", "addr", addr, "version", s.Catalog().Version)
	return s.srv.ListenAndServe(addr)
}

// Shutdown stops accepting connections and waits for open ones to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- s.srv.Shutdown()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle routes one request.
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	cat := s.Catalog()
	ctx.Response.Header.Set(api.HeaderCatalogVersion, string(cat.Version))

	path := string(ctx.Path())
	s.logger.Debug("stub request", "method", string(ctx.Method()), "path", path)

	switch {
	case path == "/api/dropdowns" && ctx.IsGet():
		s.handleCatalog(ctx, cat)
	case strings.HasPrefix(path, "/api/dropdowns/") && ctx.IsGet():
		s.handleDropdown(ctx, cat, strings.TrimPrefix(path, "/api/dropdowns/"))
	case path == "/api/price" && ctx.IsPost():
		s.handlePrice(ctx, cat)
	case path == "/api/panel3/summary" && ctx.IsGet():
		s.handlePassthrough(ctx, s.fixture.Summary, "summary")
	case strings.HasPrefix(path, "/api/quote/") && ctx.IsGet():
		s.handleQuote(ctx, strings.TrimPrefix(path, "/api/quote/"))
	case path == "/api/settings/cost-grid-path" && ctx.IsGet():
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"path": s.CostGridPath()})
	case path == "/api/settings/cost-grid-path" && ctx.IsPut():
		s.handleSetCostGrid(ctx)
	case path == "/api/settings/cost-grid-upload" && ctx.IsPost():
		s.handleUploadCostGrid(ctx)
	default:
		writeJSON(ctx, fasthttp.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func (s *Server) handleCatalog(ctx *fasthttp.RequestCtx, cat *catalog.Catalog) {
	data, err := catalog.Encode(cat)
	if err != nil {
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(data)
}

func (s *Server) handleDropdown(ctx *fasthttp.RequestCtx, cat *catalog.Catalog, id string) {
	f, ok := cat.Field(catalog.FieldID(id))
	if !ok {
		writeJSON(ctx, fasthttp.StatusNotFound, map[string]string{"detail": "Unknown dropdown"})
		return
	}
	wire, err := catalog.ToWire(f)
	if err != nil {
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	wire.Version = string(cat.Version)
	wire.UpdatedAt = cat.UpdatedAt
	writeJSON(ctx, fasthttp.StatusOK, wire)
}

type priceBody struct {
	Inputs value.InputSet `json:"inputs"`
}

func (s *Server) handlePrice(ctx *fasthttp.RequestCtx, cat *catalog.Catalog) {
	s.priceCalls.Add(1)

	if v := string(ctx.Request.Header.Peek(api.HeaderCatalogVersion)); v != "" && v != string(cat.Version) {
		s.logger.Debug("stub price stale", "believed", v, "current", cat.Version)
		writeJSON(ctx, fasthttp.StatusConflict, map[string]string{
			"version": string(cat.Version),
			"error":   "stale catalog",
		})
		return
	}

	var body priceBody
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil || body.Inputs == nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{
			"field": "inputs",
			"error": "inputs must be an object",
		})
		return
	}

	if field, msg, ok := s.validate(cat, body.Inputs); !ok {
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{"field": string(field), "error": msg})
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, s.fixture.Price)
}

// validate checks required fields first, in catalog order, then domains.
func (s *Server) validate(cat *catalog.Catalog, inputs value.InputSet) (catalog.FieldID, string, bool) {
	for _, f := range cat.Fields {
		if _, ok := inputs[f.ID]; !ok && !s.fixture.IsOptional(f.ID) {
			return f.ID, "missing field: " + string(f.ID), false
		}
	}
	for _, f := range cat.Fields {
		v, ok := inputs[f.ID]
		if !ok {
			continue
		}
		if !f.InDomain(v) {
			return f.ID, "invalid enum for " + string(f.ID), false
		}
	}
	return "", "", true
}

func (s *Server) handleQuote(ctx *fasthttp.RequestCtx, id string) {
	q, ok := s.fixture.Quotes[id]
	if !ok {
		writeJSON(ctx, fasthttp.StatusNotFound, map[string]string{"detail": "Quote not found"})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, q)
}

func (s *Server) handlePassthrough(ctx *fasthttp.RequestCtx, payload map[string]any, name string) {
	if payload == nil {
		writeJSON(ctx, fasthttp.StatusNotFound, map[string]string{"detail": fmt.Sprintf("no %s in fixture", name)})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, payload)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = fasthttp.StatusInternalServerError
		data = []byte(`{"detail":"encode response"}`)
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(data)
}
