package render

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/barsheet-engine/ledger"
)

func summary(productID ledger.ProductID, category string, sizeID ledger.SizeID, qty, price int64) ledger.ProductSummary {
	line := ledger.NewSizeAmount(sizeID, decimal.NewFromInt(qty), decimal.NewFromInt(price))
	ps := ledger.ProductSummary{ProductID: productID, CategoryName: category, Sizes: []ledger.SizeAmount{line}}
	ps.TotalAmount = ps.Total()
	return ps
}

func testDocument() ledger.Document {
	day1 := ledger.NewDay(2025, 3, 1)
	day2 := ledger.NewDay(2025, 3, 2)

	first := ledger.DailyLedger{
		ShopID:   7,
		Day:      day1,
		OB:       []ledger.ProductSummary{summary(1, "Beer", 10, 5, 2)},
		Receipts: []ledger.ProductSummary{summary(1, "Beer", 10, 3, 2)},
		Sales:    []ledger.ProductSummary{summary(1, "Beer", 10, 2, 2)},
		CB:       []ledger.ProductSummary{summary(1, "Beer", 10, 6, 2)},
	}
	first.Totals = ledger.ComputeTotals(first.Receipts, first.Sales, first.Breaks)

	second := ledger.DailyLedger{
		ShopID: 7,
		Day:    day2,
		OB:     []ledger.ProductSummary{summary(1, "Beer", 10, 6, 2)},
		CB:     []ledger.ProductSummary{summary(1, "Beer", 10, 6, 2)},
	}

	return ledger.Document{
		ShopID:       7,
		ShopName:     "Corner Bar",
		From:         day1,
		To:           day2,
		Ledgers:      []ledger.DailyLedger{second, first, first},
		ProductNames: map[ledger.ProductID]string{1: "Lager"},
		SizeNames:    map[ledger.SizeID]string{},
	}
}

func TestRender_OneSheetPerDayAscending(t *testing.T) {
	// GIVEN: a document with two days, out of order, one day duplicated
	doc := testDocument()

	// WHEN: rendering
	out, err := Excel{}.Render(doc)
	require.NoError(t, err)

	// THEN: one sheet per distinct day, ascending
	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"2025-03-01", "2025-03-02"}, f.GetSheetList())

	// AND: header rows carry shop name, date and fallback size label
	cell := func(sheet, name string) string {
		v, err := f.GetCellValue(sheet, name)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Corner Bar", cell("2025-03-01", "A1"))
	assert.Equal(t, "Report Date: 2025-03-01", cell("2025-03-01", "A2"))
	assert.Equal(t, "O.B.", cell("2025-03-01", "C3"))
	assert.Equal(t, "Size-10", cell("2025-03-01", "C4"))
	assert.Equal(t, "C.B.", cell("2025-03-01", "G3"))
	assert.Equal(t, "Amount", cell("2025-03-01", "H3"))

	// AND: category heading then the product row with per-group quantities
	assert.Equal(t, "Beer", cell("2025-03-01", "A5"))
	assert.Equal(t, "Lager", cell("2025-03-01", "B6"))
	assert.Equal(t, "5", cell("2025-03-01", "C6"))
	assert.Equal(t, "3", cell("2025-03-01", "D6"))
	assert.Equal(t, "2", cell("2025-03-01", "E6"))
	assert.Equal(t, "", cell("2025-03-01", "F6"), "zero breaks are blank")
	assert.Equal(t, "6", cell("2025-03-01", "G6"))
	assert.Equal(t, "12", cell("2025-03-01", "H6"))

	// AND: the totals block follows after a blank row
	assert.Equal(t, "Total Receipts Amount", cell("2025-03-01", "A8"))
	assert.Equal(t, "6", cell("2025-03-01", "B8"))
	assert.Equal(t, "Overall Total Amount", cell("2025-03-01", "A11"))
	assert.Equal(t, "2", cell("2025-03-01", "B11"))
}

func TestRender_Empty(t *testing.T) {
	_, err := Excel{}.Render(ledger.Document{ShopID: 1})
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestFileName(t *testing.T) {
	doc := testDocument()
	assert.Equal(t, "SalesReport_7_20250301_20250302.xlsx", Excel{}.FileName(doc))
}
