package stubserver

import (
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/roach88/rdsquote/internal/api"
)

// CostGridPath returns the current cost grid setting.
func (s *Server) CostGridPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.costGrid
}

func (s *Server) setCostGrid(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costGrid = path
}

func badRequest(ctx *fasthttp.RequestCtx, msg string) {
	writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{"error": msg})
}

func unsupportedExt() string {
	return "Unsupported extension. Allowed: " + strings.Join(api.CostGridExts, ", ")
}

func (s *Server) handleSetCostGrid(ctx *fasthttp.RequestCtx) {
	var body struct {
		Path string `json:"path"`
	}
	_ = json.Unmarshal(ctx.PostBody(), &body)
	path := strings.TrimSpace(body.Path)
	if path == "" {
		badRequest(ctx, "Missing 'path'")
		return
	}
	if api.CheckCostGridExt(path) != nil {
		badRequest(ctx, unsupportedExt())
		return
	}
	if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
		badRequest(ctx, "File not found: "+path)
		return
	}

	switch string(ctx.QueryArgs().Peek("dry_run")) {
	case "1", "true", "True":
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"ok": true, "validated": true, "path": path})
		return
	}
	s.setCostGrid(path)
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"ok": true, "path": path})
}

func (s *Server) handleUploadCostGrid(ctx *fasthttp.RequestCtx) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		badRequest(ctx, "No file provided as form field 'file'")
		return
	}
	name := filepath.Base(fh.Filename)
	if fh.Filename == "" || name == "." || name == string(filepath.Separator) {
		badRequest(ctx, "Empty filename")
		return
	}
	if api.CheckCostGridExt(name) != nil {
		badRequest(ctx, unsupportedExt())
		return
	}
	if s.uploadDir == "" {
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, map[string]string{"error": "uploads disabled"})
		return
	}

	dst := filepath.Join(s.uploadDir, name)
	if err := fasthttp.SaveMultipartFile(fh, dst); err != nil {
		s.logger.Warn("stub upload failed", "file", name, "err", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.setCostGrid(dst)
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"ok": true, "path": dst})
}
