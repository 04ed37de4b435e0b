package stubserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/value"
)

// startStub serves f on an in-memory listener and returns a client for it.
func startStub(t *testing.T, f *Fixture, opts ...Option) (*Server, *api.Client) {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(f, append([]Option{WithLogger(quiet)}, opts...)...)
	require.NoError(t, err)

	ln := fasthttputil.NewInmemoryListener()
	go func() {
		_ = s.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		_ = ln.Close()
	})

	hc := &http.Client{Transport: &http.Transport{
		DialContext: func(context.Context, string, string) (net.Conn, error) {
			return ln.Dial()
		},
	}}
	c, err := api.New("http://stub", api.WithHTTPClient(hc), api.WithLogger(quiet))
	require.NoError(t, err)
	return s, c
}

func defaults(t *testing.T, c *api.Client) (value.InputSet, catalog.Version) {
	t.Helper()
	cat, err := c.Catalog(context.Background())
	require.NoError(t, err)
	return cat.Defaults(), cat.Version
}

func TestDefaultFixture(t *testing.T) {
	f := DefaultFixture()
	cat, err := f.Catalog()
	require.NoError(t, err)

	assert.Equal(t, catalog.Version("v1"), cat.Version)
	assert.Len(t, cat.Fields, 8)
	assert.True(t, f.IsOptional(catalog.OrientationField))

	def, ok := cat.Default("sys.feeding_funneling")
	require.True(t, ok)
	assert.Equal(t, value.Text("No"), def)
}

func TestParseFixture_RequiresVersion(t *testing.T) {
	_, err := ParseFixture([]byte("dropdowns: []\n"))
	assert.Error(t, err)
}

func TestServer_Catalog(t *testing.T) {
	_, c := startStub(t, DefaultFixture())

	cat, err := c.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.Version("v1"), cat.Version)
	assert.Equal(t, "2025-09-23T00:00:00Z", cat.UpdatedAt)
	assert.Len(t, cat.Fields, 8)
}

func TestServer_Dropdown(t *testing.T) {
	_, c := startStub(t, DefaultFixture())

	f, version, err := c.Dropdown(context.Background(), "sys.transformer")
	require.NoError(t, err)
	assert.Equal(t, catalog.Version("v1"), version)
	assert.Equal(t, value.Text("None"), f.Default)
	assert.Len(t, f.Options, 3)

	_, _, err = c.Dropdown(context.Background(), "unknown")
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
}

func TestServer_PriceDefaults(t *testing.T) {
	s, c := startStub(t, DefaultFixture())
	inputs, version := defaults(t, c)

	res, err := c.Price(context.Background(), inputs, version)
	require.NoError(t, err)

	assert.True(t, res.Base.Equal(decimal.RequireFromString("414320.82")))
	assert.True(t, res.Totals.Grand.Equal(decimal.RequireFromString("427489.82")))
	assert.True(t, res.Totals.Margin.Equal(decimal.RequireFromString("0.24")))
	assert.Len(t, res.Options, 2)
	assert.Equal(t, catalog.Version("v1"), res.Version)
	assert.Equal(t, int64(1), s.PriceCalls())
}

func TestServer_PriceInvalidEnum(t *testing.T) {
	_, c := startStub(t, DefaultFixture())
	inputs, version := defaults(t, c)
	inputs["sys.feeding_funneling"] = value.Text("Diagonal")

	_, err := c.Price(context.Background(), inputs, version)

	var fe *api.FieldRejectedError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "sys.feeding_funneling", fe.Field)
	assert.Equal(t, "invalid enum for sys.feeding_funneling", fe.Message)
}

func TestServer_PriceWrongKind(t *testing.T) {
	_, c := startStub(t, DefaultFixture())
	inputs, version := defaults(t, c)
	inputs["sys.spare_parts_qty"] = value.Text("one")

	_, err := c.Price(context.Background(), inputs, version)

	var fe *api.FieldRejectedError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "sys.spare_parts_qty", fe.Field)
}

func TestServer_PriceMissingField(t *testing.T) {
	_, c := startStub(t, DefaultFixture())

	_, err := c.Price(context.Background(), value.InputSet{"sys.spare_parts_qty": value.NewNumber(1)}, "v1")

	var fe *api.FieldRejectedError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "sys.spare_saw_blades_qty", fe.Field)
	assert.Equal(t, "missing field: sys.spare_saw_blades_qty", fe.Message)
}

func TestServer_PriceOptionalFieldOmitted(t *testing.T) {
	_, c := startStub(t, DefaultFixture())
	inputs, version := defaults(t, c)
	delete(inputs, catalog.OrientationField)

	_, err := c.Price(context.Background(), inputs, version)
	assert.NoError(t, err)
}

func TestServer_PriceStaleVersion(t *testing.T) {
	_, c := startStub(t, DefaultFixture())
	inputs, _ := defaults(t, c)

	_, err := c.Price(context.Background(), inputs, "stale")

	var ve *api.VersionConflictError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "v1", ve.ServerVersion)
	assert.Equal(t, "stale catalog", ve.Message)
}

func TestServer_PriceWithoutVersionSkipsCheck(t *testing.T) {
	_, c := startStub(t, DefaultFixture())
	inputs, _ := defaults(t, c)

	_, err := c.Price(context.Background(), inputs, "")
	assert.NoError(t, err)
}

func TestServer_SetCatalog(t *testing.T) {
	s, c := startStub(t, DefaultFixture())
	inputs, version := defaults(t, c)

	next, err := DefaultFixture().Catalog()
	require.NoError(t, err)
	next.Version = "v2"
	s.SetCatalog(next)

	_, err = c.Price(context.Background(), inputs, version)
	assert.True(t, api.IsVersionConflict(err))

	cat, err := c.Catalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.Version("v2"), cat.Version)

	_, err = c.Price(context.Background(), inputs, cat.Version)
	assert.NoError(t, err)
}

func TestServer_Panel3Summary(t *testing.T) {
	_, c := startStub(t, DefaultFixture())

	sum, err := c.Panel3Summary(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Rows, 2)
	assert.Equal(t, "RDS base system", sum.Rows[0].Description)
	assert.True(t, sum.Rows[0].Margin.Valid)
	assert.False(t, sum.Rows[1].Cost.Valid)
	assert.Equal(t, "/srv/quotes/panel3.xlsx", sum.Meta.Path)
}

func TestServer_Quote(t *testing.T) {
	_, c := startStub(t, DefaultFixture())

	q, err := c.Quote(context.Background(), "Q-1001")
	require.NoError(t, err)
	assert.Equal(t, "Acme Lumber", q.Customer)
	assert.True(t, q.Summary.Toggled("J38"))
	assert.False(t, q.Summary.Toggled("J40"))

	_, err = c.Quote(context.Background(), "Q-404")
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, "Quote not found", se.Detail)
}

func TestServer_CostGridPath(t *testing.T) {
	s, c := startStub(t, DefaultFixture())

	got, err := c.CostGridPath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/srv/quotes/cost-grid.xlsx", got.Path)

	grid := filepath.Join(t.TempDir(), "grid.xlsb")
	require.NoError(t, os.WriteFile(grid, []byte("x"), 0o644))

	res, err := c.SetCostGridPath(context.Background(), grid, true)
	require.NoError(t, err)
	assert.True(t, res.Validated)
	assert.Equal(t, "/srv/quotes/cost-grid.xlsx", s.CostGridPath(), "dry run keeps the old path")

	res, err = c.SetCostGridPath(context.Background(), grid, false)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, grid, s.CostGridPath())
}

func TestServer_SetCostGridPath_Rejections(t *testing.T) {
	_, c := startStub(t, DefaultFixture())
	dir := t.TempDir()

	tests := []struct {
		path string
		want string
	}{
		{"", "Missing 'path'"},
		{filepath.Join(dir, "grid.csv"), "Unsupported extension. Allowed: .xls, .xlsb, .xlsx"},
		{filepath.Join(dir, "missing.xlsx"), "File not found: " + filepath.Join(dir, "missing.xlsx")},
	}
	for _, tt := range tests {
		_, err := c.SetCostGridPath(context.Background(), tt.path, false)
		var se *api.StatusError
		require.ErrorAs(t, err, &se, tt.path)
		assert.Equal(t, http.StatusBadRequest, se.Status)
		assert.Equal(t, tt.want, se.Code)
	}
}

func TestServer_UploadCostGrid(t *testing.T) {
	dir := t.TempDir()
	s, c := startStub(t, DefaultFixture(), WithUploadDir(dir))

	res, err := c.UploadCostGrid(context.Background(), "grid.xlsx", strings.NewReader("workbook"))
	require.NoError(t, err)
	want := filepath.Join(dir, "grid.xlsx")
	assert.Equal(t, want, res.Path)
	assert.Equal(t, want, s.CostGridPath())

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(data))
}

func TestServer_UploadCostGrid_Disabled(t *testing.T) {
	s, c := startStub(t, DefaultFixture())

	_, err := c.UploadCostGrid(context.Background(), "grid.xlsx", strings.NewReader("workbook"))
	var se *api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Equal(t, "/srv/quotes/cost-grid.xlsx", s.CostGridPath())
}
