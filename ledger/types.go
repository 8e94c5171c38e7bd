/*
Package ledger provides the daily inventory ledger engine.

PURPOSE:
  Each shop keeps one ledger per calendar day. The ledger reconciles five
  groups of quantities per product variant (product + size):

    OB        opening balance, quantity on hand at day start
    Receipts  quantity received during the day
    Sales     quantity sold during the day
    Breaks    quantity lost, damaged or written off
    CB        closing balance = OB + Receipts - Sales - Breaks

  Drafts are saved and re-saved during the day. Publishing a draft applies
  its CB quantities back onto the catalog and freezes the ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Shop / Product / Variant: the catalog, read to price and seed ledgers
  - SizeAmount / ProductSummary: line items inside one group
  - DailyLedger: the persisted record keyed by (ShopID, Day)

DESIGN PRINCIPLES:
  1. Precision: prices, quantities and amounts are decimal.Decimal
  2. Catalog prices only: amounts are never computed from caller prices
  3. Immutability after publish: a published ledger is terminal

SEE ALSO:
  - compute.go: group building, CB derivation, aggregates
  - publish.go: Draft -> Published state machine
  - batch.go: publishing every shop for one day
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ShopID int64
type ProductID int64
type SizeID int64
type CategoryID int64

// Key identifies exactly one DailyLedger.
type Key struct {
	ShopID ShopID
	Day    Day
}

// LockName is the name used for the per-key critical section.
func (k Key) LockName() string {
	return fmt.Sprintf("ledger:%d:%s", k.ShopID, k.Day)
}

func (k Key) String() string {
	return fmt.Sprintf("shop %d on %s", k.ShopID, k.Day)
}

// =============================================================================
// CATALOG - Products and their variants (owned, typed collection)
// =============================================================================

type Shop struct {
	ID   ShopID
	Name string
}

// DisplayName falls back to "Shop <id>" when the shop has no name.
func (s Shop) DisplayName() string {
	if s.Name == "" {
		return fmt.Sprintf("Shop %d", s.ID)
	}
	return s.Name
}

type Size struct {
	ID     SizeID
	ShopID ShopID
	Name   string
}

type Category struct {
	ID     CategoryID
	ShopID ShopID
	Name   string
}

// Variant is one size of one product: its unit price and on-hand quantity.
// Variants are owned by their Product and never shared.
type Variant struct {
	SizeID   SizeID
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

type Product struct {
	ID           ProductID
	Name         string
	CategoryID   CategoryID
	CategoryName string
	ShopID       ShopID
	Variants     []Variant
}

// Variant returns the variant for sizeID, if the product has one.
func (p Product) Variant(sizeID SizeID) (Variant, bool) {
	for _, v := range p.Variants {
		if v.SizeID == sizeID {
			return v, true
		}
	}
	return Variant{}, false
}

// Validate checks the variant collection against the shop's known sizes.
// Stores call it on every product write.
func (p Product) Validate(knownSizes map[SizeID]bool) error {
	seen := make(map[SizeID]bool, len(p.Variants))
	for _, v := range p.Variants {
		if !knownSizes[v.SizeID] {
			return &ValidationError{
				Field:   "variants",
				Message: fmt.Sprintf("unknown size %d for product %d", v.SizeID, p.ID),
			}
		}
		if seen[v.SizeID] {
			return &ValidationError{
				Field:   "variants",
				Message: fmt.Sprintf("duplicate size %d for product %d", v.SizeID, p.ID),
			}
		}
		if v.Price.IsNegative() || v.Quantity.IsNegative() {
			return &ValidationError{
				Field:   "variants",
				Message: fmt.Sprintf("negative price or quantity for product %d size %d", p.ID, v.SizeID),
			}
		}
		seen[v.SizeID] = true
	}
	return nil
}

// QuantityUpdate sets one variant's on-hand quantity. Written only by Publish.
type QuantityUpdate struct {
	ProductID ProductID
	SizeID    SizeID
	Quantity  decimal.Decimal
}

// =============================================================================
// GROUP LINE ITEMS
// =============================================================================

type SizeAmount struct {
	SizeID   SizeID          `json:"productSizeId"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Amount   decimal.Decimal `json:"amount"`
}

func NewSizeAmount(sizeID SizeID, quantity, price decimal.Decimal) SizeAmount {
	return SizeAmount{SizeID: sizeID, Quantity: quantity, Price: price, Amount: quantity.Mul(price)}
}

type ProductSummary struct {
	ProductID    ProductID       `json:"productId"`
	CategoryName string          `json:"categoryName"`
	Sizes        []SizeAmount    `json:"sizes"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
}

// Total returns the exact sum of the size amounts.
func (ps ProductSummary) Total() decimal.Decimal {
	total := decimal.Zero
	for _, s := range ps.Sizes {
		total = total.Add(s.Amount)
	}
	return total
}

// GroupKind names one of the five groups.
type GroupKind string

const (
	GroupOB       GroupKind = "ob"
	GroupReceipts GroupKind = "receipts"
	GroupSales    GroupKind = "sales"
	GroupBreaks   GroupKind = "breaks"
	GroupCB       GroupKind = "cb"
)

func ParseGroupKind(s string) (GroupKind, error) {
	switch k := GroupKind(s); k {
	case GroupOB, GroupReceipts, GroupSales, GroupBreaks:
		return k, nil
	case GroupCB:
		return "", &ValidationError{Field: "clear", Message: "cb is always derived and cannot be cleared"}
	default:
		return "", &ValidationError{Field: "clear", Message: fmt.Sprintf("unknown group %q", s)}
	}
}

// =============================================================================
// DAILY LEDGER
// =============================================================================

// DailyLedger is the persisted record for one (shop, day).
//
// INVARIANTS:
//   - At most one per Key.
//   - CB.qty = OB.qty + Receipts.qty - Sales.qty - Breaks.qty >= 0 per (product, size).
//   - Immutable once IsPublished is true.
type DailyLedger struct {
	ShopID ShopID
	Day    Day

	OB       []ProductSummary
	Receipts []ProductSummary
	Sales    []ProductSummary
	Breaks   []ProductSummary
	CB       []ProductSummary

	Totals Totals

	IsPublished bool
	PublishedAt *time.Time

	// Version is the optimistic concurrency token. Zero means never persisted.
	Version int64

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (l *DailyLedger) Key() Key {
	return Key{ShopID: l.ShopID, Day: l.Day}
}

// Persisted reports whether the ledger has been stored at least once.
func (l *DailyLedger) Persisted() bool {
	return l.Version > 0
}

// Group returns the summaries for one group.
func (l *DailyLedger) Group(kind GroupKind) []ProductSummary {
	switch kind {
	case GroupOB:
		return l.OB
	case GroupReceipts:
		return l.Receipts
	case GroupSales:
		return l.Sales
	case GroupBreaks:
		return l.Breaks
	case GroupCB:
		return l.CB
	}
	return nil
}

// Totals are the daily-flow aggregates. Overall excludes OB and CB.
type Totals struct {
	Receipts decimal.Decimal
	Sales    decimal.Decimal
	Breaks   decimal.Decimal
	Overall  decimal.Decimal
}

// LedgerSummary is the listing row for paginated queries.
type LedgerSummary struct {
	ShopID      ShopID
	Day         Day
	IsPublished bool
	Totals      Totals
}

func (l *DailyLedger) Summary() LedgerSummary {
	return LedgerSummary{ShopID: l.ShopID, Day: l.Day, IsPublished: l.IsPublished, Totals: l.Totals}
}
