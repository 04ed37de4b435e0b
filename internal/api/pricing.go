package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/value"
)

// PriceResult is the backend's pricing of one InputSet.
type PriceResult struct {
	Base    decimal.Decimal `json:"base"`
	Totals  Totals          `json:"totals"`
	Derived Derived         `json:"derived"`
	Options []OptionLine    `json:"options"`

	// Version is the catalog version the server priced against, taken from the
	// X-Catalog-Version response header or the body. Empty when not reported.
	Version catalog.Version `json:"version,omitempty"`
}

// Totals holds the margin fraction and the option and grand totals.
type Totals struct {
	Margin  decimal.Decimal `json:"margin"`
	Options decimal.Decimal `json:"options"`
	Grand   decimal.Decimal `json:"grand"`
}

// Derived holds per-unit prices the UI shows next to quantity steppers.
type Derived struct {
	PricePerQty map[string]decimal.Decimal `json:"price_per_qty"`
}

// OptionLine is one priced add-on.
type OptionLine struct {
	ID       string          `json:"id,omitempty"`
	Label    string          `json:"label"`
	Qty      decimal.Decimal `json:"qty"`
	Unit     decimal.Decimal `json:"unit"`
	Extended decimal.Decimal `json:"extended"`
}

// priceRequest is the POST /api/price body.
type priceRequest struct {
	Inputs value.InputSet `json:"inputs"`
}

// Catalog fetches GET /api/dropdowns and validates it.
func (c *Client) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/api/dropdowns"})
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Decode(resp.body)
	if err != nil {
		return nil, fmt.Errorf("GET /api/dropdowns: %w", err)
	}
	return cat, nil
}

// Dropdown fetches a single field definition (GET /api/dropdowns/{id}).
func (c *Client) Dropdown(ctx context.Context, id catalog.FieldID) (catalog.Field, catalog.Version, error) {
	path := "/api/dropdowns/" + url.PathEscape(string(id))
	var wire catalog.WireDropdown
	if err := c.getJSON(ctx, path, nil, &wire); err != nil {
		return catalog.Field{}, "", err
	}
	f, err := wire.Field()
	if err != nil {
		return catalog.Field{}, "", fmt.Errorf("GET %s: %w", path, err)
	}
	f, err = f.Resolve()
	if err != nil {
		return catalog.Field{}, "", fmt.Errorf("GET %s: %w", path, err)
	}
	return f, catalog.Version(wire.Version), nil
}

// Price posts the full InputSet tagged with the believed catalog version.
//
// Errors: *FieldRejectedError (400 with field), *VersionConflictError (409),
// *StatusError otherwise. A cancelled ctx yields an error for which
// IsCanceled reports true.
func (c *Client) Price(ctx context.Context, inputs value.InputSet, version catalog.Version) (*PriceResult, error) {
	headers := map[string]string{}
	if version != "" {
		headers[HeaderCatalogVersion] = string(version)
	}
	// Supersession cancels through ctx, so no client deadline applies.
	resp, err := c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/api/price",
		body:      priceRequest{Inputs: inputs},
		headers:   headers,
		unbounded: true,
	})
	if err != nil {
		return nil, err
	}

	var result PriceResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, fmt.Errorf("POST /api/price: decode response: %w", err)
	}
	if v := resp.header.Get(HeaderCatalogVersion); v != "" {
		result.Version = catalog.Version(v)
	}
	return &result, nil
}
