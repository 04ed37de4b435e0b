package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
)

const settingsPrefix = "/api/settings"

// CostGridExts are the workbook extensions the backend accepts for the cost grid.
var CostGridExts = []string{".xls", ".xlsb", ".xlsx"}

// CheckCostGridExt reports an error unless name has a cost grid extension.
func CheckCostGridExt(name string) error {
	if !slices.Contains(CostGridExts, strings.ToLower(filepath.Ext(name))) {
		return fmt.Errorf("unsupported extension %q: allowed %s", filepath.Ext(name), strings.Join(CostGridExts, ", "))
	}
	return nil
}

// CostGrid is the backend's answer to a cost grid path change or upload.
type CostGrid struct {
	OK bool `json:"ok,omitempty"`
	// Validated is set when the path was only checked (dry run).
	Validated bool   `json:"validated,omitempty"`
	Path      string `json:"path"`
}

// CostGridPath returns the configured cost grid workbook path.
func (c *Client) CostGridPath(ctx context.Context) (*CostGrid, error) {
	var out CostGrid
	if err := c.getJSON(ctx, settingsPrefix+"/cost-grid-path", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetCostGridPath points the backend at a cost grid workbook on its host.
// With dryRun the backend only validates the path and keeps the old one.
func (c *Client) SetCostGridPath(ctx context.Context, path string, dryRun bool) (*CostGrid, error) {
	var q url.Values
	if dryRun {
		q = url.Values{"dry_run": {"1"}}
	}
	var out CostGrid
	if err := c.putJSON(ctx, settingsPrefix+"/cost-grid-path", q, map[string]string{"path": path}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadCostGrid sends a workbook as the multipart form field "file". The
// backend stores it and makes it the cost grid.
func (c *Client) UploadCostGrid(ctx context.Context, name string, r io.Reader) (*CostGrid, error) {
	if err := CheckCostGridExt(name); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, fmt.Errorf("upload cost grid: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("upload cost grid: read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload cost grid: %w", err)
	}

	path := settingsPrefix + "/cost-grid-upload"
	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		raw:         &buf,
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	var out CostGrid
	if err := decodeBody(http.MethodPost, path, resp.body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
