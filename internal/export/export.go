// Package export writes pricing results and summary grids to .xlsx workbooks.
package export

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/unidoc/unioffice/spreadsheet"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/value"
)

// Sheet names used by the written workbooks.
const (
	SheetPricing = "Pricing"
	SheetInputs  = "Inputs"
	SheetSummary = "Summary"
)

// Quote is what WritePricing needs: the result and, optionally, the inputs
// it was priced from.
type Quote struct {
	Catalog *catalog.Catalog
	Inputs  value.InputSet
	Result  *api.PriceResult
}

// WritePricing writes a Pricing sheet (totals then option lines) and, when
// inputs are given, an Inputs sheet listing each field in catalog order.
func WritePricing(path string, q Quote) error {
	if q.Result == nil {
		return fmt.Errorf("write pricing: no pricing result")
	}

	wb := spreadsheet.New()

	sheet := wb.AddSheet()
	sheet.SetName(SheetPricing)
	res := q.Result

	addRow(sheet, "Catalog version", string(res.Version))
	addAmountRow(sheet, "Base price", res.Base)
	addAmountRow(sheet, "Options", res.Totals.Options)
	addAmountRow(sheet, "Margin", res.Totals.Margin)
	addAmountRow(sheet, "Grand total", res.Totals.Grand)

	if len(res.Options) > 0 {
		sheet.AddRow()
		addRow(sheet, "Option", "Qty", "Unit", "Extended")
		for _, o := range res.Options {
			row := sheet.AddRow()
			row.AddCell().SetString(o.Label)
			setDecimal(row.AddCell(), o.Qty)
			setDecimal(row.AddCell(), o.Unit)
			setDecimal(row.AddCell(), o.Extended)
		}
	}

	if len(res.Derived.PricePerQty) > 0 {
		keys := make([]string, 0, len(res.Derived.PricePerQty))
		for k := range res.Derived.PricePerQty {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sheet.AddRow()
		addRow(sheet, "Per unit")
		for _, k := range keys {
			addAmountRow(sheet, k, res.Derived.PricePerQty[k])
		}
	}

	if len(q.Inputs) > 0 {
		writeInputs(wb.AddSheet(), q.Catalog, q.Inputs)
	}

	if err := wb.SaveToFile(path); err != nil {
		return fmt.Errorf("write pricing %s: %w", path, err)
	}
	return nil
}

// writeInputs lists fields in catalog order, then any the catalog does not
// know in sorted order.
func writeInputs(sheet spreadsheet.Sheet, cat *catalog.Catalog, inputs value.InputSet) {
	sheet.SetName(SheetInputs)
	addRow(sheet, "Field", "Label", "Value")

	seen := make(map[catalog.FieldID]bool, len(inputs))
	if cat != nil {
		for _, f := range cat.Fields {
			v, ok := inputs[f.ID]
			if !ok {
				continue
			}
			seen[f.ID] = true
			addValueRow(sheet, string(f.ID), f.Label, v)
		}
	}
	for _, id := range inputs.SortedKeys() {
		if !seen[id] {
			addValueRow(sheet, string(id), "", inputs[id])
		}
	}
}

// WriteSummary writes the panel3 summary grid. Blank cells stay empty.
func WriteSummary(path string, s *api.Summary) error {
	wb := spreadsheet.New()

	sheet := wb.AddSheet()
	sheet.SetName(SheetSummary)
	addRow(sheet, "Description", "Qty", "Cost", "Sell price", "Margin")
	for _, r := range s.Rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Description)
		for _, d := range []decimal.NullDecimal{r.Qty, r.Cost, r.SellPrice, r.Margin} {
			cell := row.AddCell()
			if d.Valid {
				setDecimal(cell, d.Decimal)
			}
		}
	}
	if s.Meta.Path != "" {
		sheet.AddRow()
		addRow(sheet, "Source", s.Meta.Path)
		addRow(sheet, "Read at", s.Meta.LastReadAt)
	}

	if err := wb.SaveToFile(path); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}

func addRow(sheet spreadsheet.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

func addAmountRow(sheet spreadsheet.Sheet, label string, d decimal.Decimal) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	setDecimal(row.AddCell(), d)
}

func addValueRow(sheet spreadsheet.Sheet, id, label string, v value.Value) {
	row := sheet.AddRow()
	row.AddCell().SetString(id)
	row.AddCell().SetString(label)
	cell := row.AddCell()
	if n, ok := v.(value.Number); ok {
		setDecimal(cell, n.Decimal())
		return
	}
	cell.SetString(v.String())
}

// setDecimal stores d as a numeric cell. Spreadsheet cells are float64.
func setDecimal(cell spreadsheet.Cell, d decimal.Decimal) {
	f, _ := d.Float64()
	cell.SetNumber(f)
}
