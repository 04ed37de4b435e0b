package api

import (
	"context"
	"net/http"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote_Get(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/quote/Q-100", r.URL.Path)
		writeJSON(w, http.StatusOK, `{
			"quote_number": "Q-100",
			"customer": "Acme",
			"inputs": {"sys.guarding": "Tall"},
			"pricing": {"base_total": 300000, "margin": 0.24, "sell_price": 394736.84},
			"summary": {"totals": {"H20": 1200.5}, "toggles": {"J20": 1, "J21": 0, "J22": true}}
		}`)
	})

	q, err := c.Quote(context.Background(), "Q-100")
	require.NoError(t, err)
	assert.Equal(t, "Acme", q.Customer)
	assert.True(t, q.Pricing.SellPrice.Equal(decimal.RequireFromString("394736.84")))
	assert.True(t, q.Summary.Totals["H20"].Equal(decimal.RequireFromString("1200.5")))
	assert.True(t, q.Summary.Toggled("J20"))
	assert.False(t, q.Summary.Toggled("J21"))
	assert.True(t, q.Summary.Toggled("J22"))
	assert.False(t, q.Summary.Toggled("missing"))
}

func TestQuote_Mutations(t *testing.T) {
	var seen []string
	var bodies []map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		var body map[string]any
		if r.ContentLength > 0 {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		}
		bodies = append(bodies, body)

		switch r.URL.Path {
		case "/api/quote/Q-1/generate":
			writeJSON(w, http.StatusOK, `{"costing": "out/Q-1.xlsx", "proposal_docx": "", "proposal_pdf": ""}`)
		case "/api/quote/Q-1":
			writeJSON(w, http.StatusOK, `{"quote_number": "Q-1", "customer": "Acme"}`)
		default:
			writeJSON(w, http.StatusOK, `{"ok": true}`)
		}
	})
	ctx := context.Background()

	_, err := c.SaveQuote(ctx, "Q-1", nil, "Acme")
	require.NoError(t, err)
	_, err = c.SetQuoteMargin(ctx, "Q-1", decimal.RequireFromString("0.3"))
	require.NoError(t, err)
	_, err = c.ResetQuoteMargin(ctx, "Q-1")
	require.NoError(t, err)
	_, err = c.ToggleQuoteCell(ctx, "Q-1", "J20", true)
	require.NoError(t, err)
	files, err := c.GenerateQuote(ctx, "Q-1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /api/quote/Q-1",
		"POST /api/quote/Q-1/margin",
		"POST /api/quote/Q-1/margin/reset",
		"POST /api/quote/Q-1/toggle",
		"POST /api/quote/Q-1/generate",
	}, seen)

	assert.Equal(t, map[string]any{}, bodies[0]["data"])
	assert.Equal(t, "Acme", bodies[0]["customer"])
	assert.Equal(t, 0.3, bodies[1]["margin"])
	assert.Nil(t, bodies[2])
	assert.Equal(t, "J20", bodies[3]["cell"])
	assert.Equal(t, float64(1), bodies[3]["value"])
	assert.Equal(t, "out/Q-1.xlsx", files.Costing)
}
