package api

import (
	"context"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Quote is a persisted quote as returned by /api/quote/{id}.
type Quote struct {
	QuoteNumber string         `json:"quote_number"`
	Customer    string         `json:"customer"`
	Inputs      map[string]any `json:"inputs"`
	Pricing     QuotePricing   `json:"pricing"`
	Summary     QuoteSummary   `json:"summary"`
}

// QuotePricing is the quote's headline pricing.
type QuotePricing struct {
	BaseTotal decimal.Decimal `json:"base_total"`
	Margin    decimal.Decimal `json:"margin"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Raw       map[string]any  `json:"raw,omitempty"`
}

// QuoteSummary holds per-cell totals and option toggles. Toggle values are
// 0/1 or booleans depending on the workbook.
type QuoteSummary struct {
	Totals  map[string]decimal.Decimal `json:"totals"`
	Toggles map[string]any             `json:"toggles"`
}

// Toggled reports whether the optional line behind cell is included.
func (s QuoteSummary) Toggled(cell string) bool {
	switch v := s.Toggles[cell].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case json.Number:
		return v.String() != "0"
	case string:
		return v != "" && v != "0"
	default:
		return false
	}
}

// GeneratedFiles lists the documents produced by /generate. Entries are
// empty when the backend skipped a document.
type GeneratedFiles struct {
	Costing      string `json:"costing"`
	ProposalDOCX string `json:"proposal_docx"`
	ProposalPDF  string `json:"proposal_pdf"`
}

func quotePath(id string) string {
	return "/api/quote/" + url.PathEscape(id)
}

// Quote fetches (or lazily creates) a quote.
func (c *Client) Quote(ctx context.Context, id string) (*Quote, error) {
	var out Quote
	if err := c.getJSON(ctx, quotePath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveQuote replaces the quote's input document and customer.
func (c *Client) SaveQuote(ctx context.Context, id string, data json.RawMessage, customer string) (*Quote, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	body := struct {
		Data     json.RawMessage `json:"data"`
		Customer string          `json:"customer"`
	}{Data: data, Customer: customer}

	var out Quote
	if err := c.postJSON(ctx, quotePath(id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetQuoteMargin overrides the quote margin (a fraction, e.g. 0.24).
func (c *Client) SetQuoteMargin(ctx context.Context, id string, margin decimal.Decimal) (map[string]any, error) {
	body := struct {
		Margin json.Number `json:"margin"`
	}{Margin: json.Number(margin.String())}

	var out map[string]any
	if err := c.postJSON(ctx, quotePath(id)+"/margin", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResetQuoteMargin restores the default margin.
func (c *Client) ResetQuoteMargin(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.postJSON(ctx, quotePath(id)+"/margin/reset", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleQuoteCell includes (on) or excludes an optional line by its toggle cell.
func (c *Client) ToggleQuoteCell(ctx context.Context, id, cell string, on bool) (map[string]any, error) {
	v := 0
	if on {
		v = 1
	}
	body := struct {
		Cell  string `json:"cell"`
		Value int    `json:"value"`
	}{Cell: cell, Value: v}

	var out map[string]any
	if err := c.postJSON(ctx, quotePath(id)+"/toggle", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateQuote produces the costing workbook and proposal documents.
func (c *Client) GenerateQuote(ctx context.Context, id string) (*GeneratedFiles, error) {
	var out GeneratedFiles
	if err := c.postJSON(ctx, quotePath(id)+"/generate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
