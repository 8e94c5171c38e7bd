/*
Package render turns a ledger.Document into a downloadable report.

LAYOUT (one sheet per day, ascending, duplicate days dropped):

    row 1   shop name
    row 2   Report Date: yyyy-mm-dd
    row 3   No | Brand Name | O.B. | Receipts | Sale | Breaks | C.B. | Amount
    row 4             size labels repeated under each group
    ...     category heading, then one row per product in that category
    ...     totals block: receipts, sales, breaks, overall

  Size columns are the same on every sheet: every size id seen anywhere in
  the range, in first-seen order. Zero quantities are left blank.
*/
package render

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/barsheet-engine/ledger"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var groupHeadings = []struct {
	kind  ledger.GroupKind
	title string
}{
	{ledger.GroupOB, "O.B."},
	{ledger.GroupReceipts, "Receipts"},
	{ledger.GroupSales, "Sale"},
	{ledger.GroupBreaks, "Breaks"},
	{ledger.GroupCB, "C.B."},
}

// Excel renders documents as XLSX workbooks.
type Excel struct{}

// FileName is SalesReport_<shop>_<from>_<to>.xlsx with compact dates.
func (Excel) FileName(doc ledger.Document) string {
	return fmt.Sprintf("SalesReport_%d_%s_%s.xlsx", doc.ShopID, doc.From.Compact(), doc.To.Compact())
}

func (Excel) ContentType() string { return ContentType }

// Render builds the workbook. A document without ledgers is an error.
func (Excel) Render(doc ledger.Document) ([]byte, error) {
	days := distinctDays(doc.Ledgers)
	if len(days) == 0 {
		return nil, fmt.Errorf("render report: %w", ledger.ErrNotFound)
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	sizes := sizeOrder(days)
	for i, l := range days {
		sheet := l.Day.String()
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		w := &sheetWriter{f: f, sheet: sheet, bold: bold}
		w.day(doc, l, sizes)
		if w.err != nil {
			return nil, fmt.Errorf("render %s: %w", sheet, w.err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// distinctDays keeps the first ledger per day, ordered by day.
func distinctDays(ledgers []ledger.DailyLedger) []ledger.DailyLedger {
	seen := make(map[string]bool, len(ledgers))
	var out []ledger.DailyLedger
	for _, l := range ledgers {
		if l.Day.IsZero() || seen[l.Day.String()] {
			continue
		}
		seen[l.Day.String()] = true
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

func sizeOrder(days []ledger.DailyLedger) []ledger.SizeID {
	seen := make(map[ledger.SizeID]bool)
	var order []ledger.SizeID
	for i := range days {
		for _, g := range groupHeadings {
			for _, ps := range days[i].Group(g.kind) {
				for _, s := range ps.Sizes {
					if !seen[s.SizeID] {
						seen[s.SizeID] = true
						order = append(order, s.SizeID)
					}
				}
			}
		}
	}
	return order
}

// productRow collects one product's quantities across the five groups.
type productRow struct {
	id       ledger.ProductID
	name     string
	category string
	qty      map[ledger.GroupKind]map[ledger.SizeID]decimal.Decimal
	cbTotal  decimal.Decimal
}

func productRows(doc ledger.Document, l ledger.DailyLedger) []*productRow {
	byID := make(map[ledger.ProductID]*productRow)
	for _, g := range groupHeadings {
		for _, ps := range l.Group(g.kind) {
			row, ok := byID[ps.ProductID]
			if !ok {
				row = &productRow{
					id:       ps.ProductID,
					name:     doc.ProductName(ps.ProductID),
					category: ps.CategoryName,
					qty:      make(map[ledger.GroupKind]map[ledger.SizeID]decimal.Decimal),
				}
				byID[ps.ProductID] = row
			}
			if row.qty[g.kind] == nil {
				row.qty[g.kind] = make(map[ledger.SizeID]decimal.Decimal)
			}
			for _, s := range ps.Sizes {
				row.qty[g.kind][s.SizeID] = row.qty[g.kind][s.SizeID].Add(s.Quantity)
			}
			if g.kind == ledger.GroupCB {
				row.cbTotal = row.cbTotal.Add(ps.TotalAmount)
			}
		}
	}

	rows := make([]*productRow, 0, len(byID))
	for _, r := range byID {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].category != rows[j].category {
			return rows[i].category < rows[j].category
		}
		if rows[i].name != rows[j].name {
			return rows[i].name < rows[j].name
		}
		return rows[i].id < rows[j].id
	})
	return rows
}

// =============================================================================
// SHEET WRITER - Keeps the first error so cell writes read straight through
// =============================================================================

type sheetWriter struct {
	f     *excelize.File
	sheet string
	bold  int
	err   error
}

func (w *sheetWriter) cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil && w.err == nil {
		w.err = err
	}
	return name
}

func (w *sheetWriter) set(col, row int, value any) {
	if w.err != nil {
		return
	}
	if err := w.f.SetCellValue(w.sheet, w.cell(col, row), value); err != nil {
		w.err = err
	}
}

func (w *sheetWriter) setBold(col, row int, value any) {
	w.set(col, row, value)
	if w.err != nil {
		return
	}
	c := w.cell(col, row)
	if err := w.f.SetCellStyle(w.sheet, c, c, w.bold); err != nil {
		w.err = err
	}
}

func (w *sheetWriter) merge(fromCol, toCol, row int) {
	if w.err != nil || fromCol >= toCol {
		return
	}
	if err := w.f.MergeCell(w.sheet, w.cell(fromCol, row), w.cell(toCol, row)); err != nil {
		w.err = err
	}
}

func (w *sheetWriter) day(doc ledger.Document, l ledger.DailyLedger, sizes []ledger.SizeID) {
	w.setBold(1, 1, doc.ShopName)
	w.set(1, 2, "Report Date: "+l.Day.String())

	// header rows 3 and 4
	w.setBold(1, 3, "No")
	w.setBold(2, 3, "Brand Name")
	col := 3
	for _, g := range groupHeadings {
		w.setBold(col, 3, g.title)
		w.merge(col, col+len(sizes)-1, 3)
		for i, id := range sizes {
			w.set(col+i, 4, doc.SizeName(id))
		}
		col += max(len(sizes), 1)
	}
	amountCol := col
	w.setBold(amountCol, 3, "Amount")

	row := 5
	category := ""
	for n, p := range productRows(doc, l) {
		if n == 0 || p.category != category {
			category = p.category
			w.setBold(1, row, category)
			row++
		}
		w.set(1, row, n+1)
		w.set(2, row, p.name)
		col := 3
		for _, g := range groupHeadings {
			for i, id := range sizes {
				if q := p.qty[g.kind][id]; !q.IsZero() {
					w.set(col+i, row, q.InexactFloat64())
				}
			}
			col += max(len(sizes), 1)
		}
		w.set(amountCol, row, p.cbTotal.Round(2).InexactFloat64())
		row++
	}

	row++
	totals := []struct {
		label string
		value decimal.Decimal
	}{
		{"Total Receipts Amount", l.Totals.Receipts},
		{"Total Sales Amount", l.Totals.Sales},
		{"Total Breaks Amount", l.Totals.Breaks},
		{"Overall Total Amount", l.Totals.Overall},
	}
	for _, t := range totals {
		w.setBold(1, row, t.label)
		w.set(2, row, t.value.Round(2).InexactFloat64())
		row++
	}
}
