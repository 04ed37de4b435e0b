package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// Panel selects which workbook panel an endpoint targets. The backend exposes
// the same path and browse endpoints under both prefixes.
type Panel string

const (
	// PanelCostSheet is the raw cost sheet panel (/api/cost-sheet).
	PanelCostSheet Panel = "cost-sheet"
	// PanelPanel3 is the summary grid panel (/api/panel3).
	PanelPanel3 Panel = "panel3"
)

// ParsePanel validates a panel name from user input.
func ParsePanel(s string) (Panel, error) {
	switch Panel(s) {
	case PanelCostSheet, PanelPanel3:
		return Panel(s), nil
	default:
		return "", fmt.Errorf("unknown panel %q: must be %q or %q", s, PanelCostSheet, PanelPanel3)
	}
}

func (p Panel) prefix() string {
	return "/api/" + string(p)
}

// PathInfo is the configured workbook path.
type PathInfo struct {
	OK   bool   `json:"ok,omitempty"`
	Path string `json:"path"`
}

// BrowseEntry is one directory entry in a browse listing.
type BrowseEntry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	IsDir   bool   `json:"isDir"`
	IsFile  bool   `json:"isFile"`
	IsExcel bool   `json:"isExcel"`
}

// BrowseResult is a directory listing for the workbook picker.
type BrowseResult struct {
	Cwd     string        `json:"cwd"`
	Parent  string        `json:"parent"`
	Entries []BrowseEntry `json:"entries"`
	Roots   []string      `json:"roots"`
}

// SummaryRow is one line of the panel3 summary grid. Numeric cells may be blank.
type SummaryRow struct {
	Description string              `json:"description"`
	Qty         decimal.NullDecimal `json:"qty"`
	Cost        decimal.NullDecimal `json:"cost"`
	SellPrice   decimal.NullDecimal `json:"sellPrice"`
	Margin      decimal.NullDecimal `json:"margin"`
}

// SummaryMeta describes where and when the summary was read.
type SummaryMeta struct {
	Path       string `json:"path"`
	LastReadAt string `json:"lastReadAt"`
}

// Summary is the panel3 summary grid.
type Summary struct {
	Rows []SummaryRow `json:"rows"`
	Meta SummaryMeta  `json:"meta"`
}

// RawSummary is the cost sheet summary range as a 2D cell grid.
type RawSummary struct {
	Sheet  string  `json:"sheet"`
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
}

// SheetPath returns the workbook path configured for a panel.
func (c *Client) SheetPath(ctx context.Context, panel Panel) (*PathInfo, error) {
	var out PathInfo
	if err := c.getJSON(ctx, panel.prefix()+"/path", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetSheetPath points a panel at a workbook. The backend answers 400 when the
// path does not exist.
func (c *Client) SetSheetPath(ctx context.Context, panel Panel, path string) (*PathInfo, error) {
	var out PathInfo
	if err := c.postJSON(ctx, panel.prefix()+"/path", map[string]string{"path": path}, &out); err != nil {
		return nil, err
	}
	if out.Path == "" {
		out.Path = path
	}
	return &out, nil
}

// Browse lists a directory on the backend host. An empty path asks for the
// backend's starting directory.
func (c *Client) Browse(ctx context.Context, panel Panel, path string) (*BrowseResult, error) {
	var q url.Values
	if path != "" {
		q = url.Values{"path": {path}}
	}
	var out BrowseResult
	if err := c.getJSON(ctx, panel.prefix()+"/browse", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Panel3Summary reads the summary grid from the panel3 workbook.
func (c *Client) Panel3Summary(ctx context.Context) (*Summary, error) {
	var out Summary
	if err := c.getJSON(ctx, PanelPanel3.prefix()+"/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyMargin writes a margin (free text such as "24%" or "0.24") into the
// panel3 workbook and returns the recomputed summary.
func (c *Client) ApplyMargin(ctx context.Context, marginText string) (*Summary, error) {
	var out Summary
	body := map[string]string{"marginText": marginText}
	if err := c.postJSON(ctx, PanelPanel3.prefix()+"/margin", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConnectCostGrid asks the backend to attach to the stored panel3 workbook.
func (c *Client) ConnectCostGrid(ctx context.Context) (*PathInfo, error) {
	var out PathInfo
	if err := c.postJSON(ctx, PanelPanel3.prefix()+"/connect", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CostSheetSummary reads the raw summary range from the cost sheet workbook.
func (c *Client) CostSheetSummary(ctx context.Context) (*RawSummary, error) {
	var out RawSummary
	if err := c.getJSON(ctx, PanelCostSheet.prefix()+"/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
