/*
compute.go - Pure ledger computation

PURPOSE:
  Everything here is side-effect free. Given raw client quantities, the
  previously persisted ledger (if any) and a read-only catalog snapshot,
  it produces the five groups and the daily totals, or rejects the whole
  draft.

PIPELINE:
  1. ValidateBreaks: breaks must reference known variants with
     non-negative whole quantities
  2. Merge: a supplied group replaces the persisted one, an absent or
     empty group keeps it, a cleared group becomes empty. With no prior
     ledger, OB is seeded from catalog quantities
  3. DeriveClosingBalance: union of (product, size) keys over the four
     input groups, CB = OB + Receipts - Sales - Breaks, any negative
     key rejects the draft
  4. ComputeTotals: receipts, sales, breaks and overall = R - S - B

ORDERING:
  Submitted groups keep the order the client sent. CB is always ordered
  by product id then size id, so it does not depend on input order.

SEE ALSO:
  - service.go: SaveDraft runs this under the key lock
*/
package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW INPUT
// =============================================================================

type RawSize struct {
	SizeID   SizeID
	Quantity decimal.Decimal
}

type RawEntry struct {
	ProductID ProductID
	Sizes     []RawSize
}

// DraftInput is one draft-save request. CB is never accepted; it is derived.
type DraftInput struct {
	OB       []RawEntry
	Receipts []RawEntry
	Sales    []RawEntry
	Breaks   []RawEntry

	// Clear lists groups to reset to empty. Absent or empty groups
	// otherwise keep their persisted value.
	Clear []GroupKind
}

func (in DraftInput) entries(kind GroupKind) []RawEntry {
	switch kind {
	case GroupOB:
		return in.OB
	case GroupReceipts:
		return in.Receipts
	case GroupSales:
		return in.Sales
	case GroupBreaks:
		return in.Breaks
	}
	return nil
}

func (in DraftInput) clears(kind GroupKind) bool {
	for _, k := range in.Clear {
		if k == kind {
			return true
		}
	}
	return false
}

// =============================================================================
// CATALOG SNAPSHOT - Read-only view taken at the start of an operation
// =============================================================================

type CatalogSnapshot struct {
	ShopID   ShopID
	products map[ProductID]Product
	order    []ProductID
}

// NewCatalogSnapshot deep-copies products so later catalog writes are not observed.
func NewCatalogSnapshot(shopID ShopID, products []Product) *CatalogSnapshot {
	snap := &CatalogSnapshot{ShopID: shopID, products: make(map[ProductID]Product, len(products))}
	for _, p := range products {
		cp := p
		cp.Variants = append([]Variant(nil), p.Variants...)
		if _, dup := snap.products[p.ID]; !dup {
			snap.order = append(snap.order, p.ID)
		}
		snap.products[p.ID] = cp
	}
	return snap
}

func (c *CatalogSnapshot) Product(id ProductID) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Lookup resolves a (product, size) pair to its product and variant.
func (c *CatalogSnapshot) Lookup(productID ProductID, sizeID SizeID) (Product, Variant, bool) {
	p, ok := c.products[productID]
	if !ok {
		return Product{}, Variant{}, false
	}
	v, ok := p.Variant(sizeID)
	return p, v, ok
}

// ProductNames returns id -> name, falling back to the id when unnamed.
func (c *CatalogSnapshot) ProductNames() map[ProductID]string {
	names := make(map[ProductID]string, len(c.products))
	for id, p := range c.products {
		if p.Name == "" {
			names[id] = fmt.Sprint(id)
			continue
		}
		names[id] = p.Name
	}
	return names
}

// =============================================================================
// GROUP BUILDING
// =============================================================================

// BuildGroupSummary prices raw entries from the catalog. Unknown products
// and sizes are dropped. A product with no surviving size lines is omitted.
func BuildGroupSummary(entries []RawEntry, catalog *CatalogSnapshot) []ProductSummary {
	result := make([]ProductSummary, 0, len(entries))
	for _, e := range entries {
		product, ok := catalog.Product(e.ProductID)
		if !ok {
			continue
		}
		summary := ProductSummary{ProductID: product.ID, CategoryName: product.CategoryName}
		for _, s := range e.Sizes {
			variant, ok := product.Variant(s.SizeID)
			if !ok {
				continue
			}
			summary.Sizes = append(summary.Sizes, NewSizeAmount(s.SizeID, s.Quantity, variant.Price))
		}
		if len(summary.Sizes) == 0 {
			continue
		}
		summary.TotalAmount = summary.Total()
		result = append(result, summary)
	}
	return result
}

// SeedOpeningBalance builds OB from the catalog's current on-hand quantities.
func SeedOpeningBalance(catalog *CatalogSnapshot) []ProductSummary {
	result := make([]ProductSummary, 0, len(catalog.order))
	for _, id := range catalog.order {
		product := catalog.products[id]
		summary := ProductSummary{ProductID: product.ID, CategoryName: product.CategoryName}
		for _, v := range product.Variants {
			summary.Sizes = append(summary.Sizes, NewSizeAmount(v.SizeID, v.Quantity, v.Price))
		}
		if len(summary.Sizes) == 0 {
			continue
		}
		summary.TotalAmount = summary.Total()
		result = append(result, summary)
	}
	return result
}

// ValidateBreaks rejects breaks that reference unknown variants or carry
// negative or fractional quantities.
func ValidateBreaks(entries []RawEntry, catalog *CatalogSnapshot) error {
	for _, e := range entries {
		if _, ok := catalog.Product(e.ProductID); !ok {
			return &ValidationError{Field: "breaks", Message: fmt.Sprintf("invalid product ID: %d", e.ProductID)}
		}
		for _, s := range e.Sizes {
			if _, _, ok := catalog.Lookup(e.ProductID, s.SizeID); !ok {
				return &ValidationError{
					Field:   "breaks",
					Message: fmt.Sprintf("invalid size ID: %d for product %d", s.SizeID, e.ProductID),
				}
			}
			if s.Quantity.IsNegative() {
				return &ValidationError{
					Field:   "breaks",
					Message: fmt.Sprintf("break quantity for product %d, size %d cannot be negative", e.ProductID, s.SizeID),
				}
			}
			if !s.Quantity.IsInteger() {
				return &ValidationError{
					Field:   "breaks",
					Message: fmt.Sprintf("break quantity for product %d, size %d must be a whole number", e.ProductID, s.SizeID),
				}
			}
		}
	}
	return nil
}

// =============================================================================
// CLOSING BALANCE
// =============================================================================

type variantKey struct {
	ProductID ProductID
	SizeID    SizeID
}

type flowQuantities struct {
	ob, receipts, sales, breaks decimal.Decimal
}

func (f flowQuantities) closing() decimal.Decimal {
	return f.ob.Add(f.receipts).Sub(f.sales).Sub(f.breaks)
}

// DeriveClosingBalance computes CB over the union of keys in the four groups.
// A key missing from a group counts as zero there. Keys whose variant is no
// longer in the catalog have no price and are left out of CB.
func DeriveClosingBalance(ob, receipts, sales, breaks []ProductSummary, catalog *CatalogSnapshot) ([]ProductSummary, error) {
	flows := make(map[variantKey]*flowQuantities)
	collect := func(group []ProductSummary, pick func(*flowQuantities) *decimal.Decimal) {
		for _, ps := range group {
			for _, s := range ps.Sizes {
				k := variantKey{ProductID: ps.ProductID, SizeID: s.SizeID}
				f, ok := flows[k]
				if !ok {
					f = &flowQuantities{}
					flows[k] = f
				}
				q := pick(f)
				*q = q.Add(s.Quantity)
			}
		}
	}
	collect(ob, func(f *flowQuantities) *decimal.Decimal { return &f.ob })
	collect(receipts, func(f *flowQuantities) *decimal.Decimal { return &f.receipts })
	collect(sales, func(f *flowQuantities) *decimal.Decimal { return &f.sales })
	collect(breaks, func(f *flowQuantities) *decimal.Decimal { return &f.breaks })

	keys := make([]variantKey, 0, len(flows))
	for k := range flows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProductID != keys[j].ProductID {
			return keys[i].ProductID < keys[j].ProductID
		}
		return keys[i].SizeID < keys[j].SizeID
	})

	var result []ProductSummary
	for _, k := range keys {
		product, variant, ok := catalog.Lookup(k.ProductID, k.SizeID)
		if !ok {
			continue
		}
		qty := flows[k].closing()
		if qty.IsNegative() {
			return nil, &BalanceViolationError{ProductID: k.ProductID, SizeID: k.SizeID, Quantity: qty}
		}
		line := NewSizeAmount(k.SizeID, qty, variant.Price)
		if n := len(result); n > 0 && result[n-1].ProductID == k.ProductID {
			result[n-1].Sizes = append(result[n-1].Sizes, line)
			continue
		}
		result = append(result, ProductSummary{
			ProductID:    k.ProductID,
			CategoryName: product.CategoryName,
			Sizes:        []SizeAmount{line},
		})
	}
	for i := range result {
		result[i].TotalAmount = result[i].Total()
	}
	return result, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

func groupTotal(group []ProductSummary) decimal.Decimal {
	total := decimal.Zero
	for _, ps := range group {
		total = total.Add(ps.TotalAmount)
	}
	return total
}

// ComputeTotals sums the daily flows. OB and CB never contribute.
func ComputeTotals(receipts, sales, breaks []ProductSummary) Totals {
	t := Totals{
		Receipts: groupTotal(receipts),
		Sales:    groupTotal(sales),
		Breaks:   groupTotal(breaks),
	}
	t.Overall = t.Receipts.Sub(t.Sales).Sub(t.Breaks)
	return t
}

// =============================================================================
// DRAFT COMPUTATION
// =============================================================================

// ComputeDraft merges in over prior (which may be nil) and returns the
// complete next ledger. prior is not modified. Nothing is returned on error.
func ComputeDraft(key Key, prior *DailyLedger, in DraftInput, catalog *CatalogSnapshot) (*DailyLedger, error) {
	for _, kind := range in.Clear {
		if _, err := ParseGroupKind(string(kind)); err != nil {
			return nil, err
		}
		if len(in.entries(kind)) > 0 {
			return nil, &ValidationError{
				Field:   "clear",
				Message: fmt.Sprintf("group %s cannot be both cleared and supplied", kind),
			}
		}
	}
	if err := ValidateBreaks(in.Breaks, catalog); err != nil {
		return nil, err
	}

	next := &DailyLedger{ShopID: key.ShopID, Day: key.Day}
	if prior != nil {
		cp := *prior
		next = &cp
	}

	merge := func(kind GroupKind, previous []ProductSummary, fallback func() []ProductSummary) []ProductSummary {
		switch {
		case in.clears(kind):
			return []ProductSummary{}
		case len(in.entries(kind)) > 0:
			return BuildGroupSummary(in.entries(kind), catalog)
		case prior != nil:
			return previous
		default:
			return fallback()
		}
	}
	empty := func() []ProductSummary { return []ProductSummary{} }

	var previous DailyLedger
	if prior != nil {
		previous = *prior
	}
	next.OB = merge(GroupOB, previous.OB, func() []ProductSummary { return SeedOpeningBalance(catalog) })
	next.Receipts = merge(GroupReceipts, previous.Receipts, empty)
	next.Sales = merge(GroupSales, previous.Sales, empty)
	next.Breaks = merge(GroupBreaks, previous.Breaks, empty)

	cb, err := DeriveClosingBalance(next.OB, next.Receipts, next.Sales, next.Breaks, catalog)
	if err != nil {
		return nil, err
	}
	if cb == nil {
		cb = []ProductSummary{}
	}
	next.CB = cb
	next.Totals = ComputeTotals(next.Receipts, next.Sales, next.Breaks)
	return next, nil
}

// PreviewLedger is the unsaved view of a day with no ledger yet:
// OB seeded from the catalog, CB equal to OB, no flows.
func PreviewLedger(key Key, catalog *CatalogSnapshot) *DailyLedger {
	ob := SeedOpeningBalance(catalog)
	cb := make([]ProductSummary, len(ob))
	for i, ps := range ob {
		cp := ps
		cp.Sizes = append([]SizeAmount(nil), ps.Sizes...)
		cb[i] = cp
	}
	return &DailyLedger{
		ShopID:   key.ShopID,
		Day:      key.Day,
		OB:       ob,
		Receipts: []ProductSummary{},
		Sales:    []ProductSummary{},
		Breaks:   []ProductSummary{},
		CB:       cb,
		Totals:   ComputeTotals(nil, nil, nil),
	}
}
