package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/barsheet-engine/ledger"
)

// =============================================================================
// REQUEST DTOs
// =============================================================================

// SizeQuantityRequest is one (size, quantity) line. Prices are never accepted.
type SizeQuantityRequest struct {
	ProductSizeID int64           `json:"productSizeId"`
	Quantity      decimal.Decimal `json:"quantity"`
}

type ProductQuantityRequest struct {
	ProductID int64                 `json:"productId"`
	Sizes     []SizeQuantityRequest `json:"sizes"`
}

// SaveDraftRequest is the body of POST /api/ledgers.
// A group that is absent or empty keeps its saved value; list it in Clear to empty it.
type SaveDraftRequest struct {
	ShopID    int64                    `json:"shopId"`
	Date      string                   `json:"date"`
	OB        []ProductQuantityRequest `json:"ob,omitempty"`
	Receipts  []ProductQuantityRequest `json:"receipts,omitempty"`
	Sales     []ProductQuantityRequest `json:"sales,omitempty"`
	Breaks    []ProductQuantityRequest `json:"breaks,omitempty"`
	Clear     []string                 `json:"clear,omitempty"`
	CreatedBy string                   `json:"createdBy,omitempty"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

// LedgerDTO is the full view of one day's ledger.
type LedgerDTO struct {
	ShopID   int64  `json:"shopId"`
	ShopName string `json:"shopName,omitempty"`
	Date     string `json:"date"`

	OB       []ledger.ProductSummary `json:"obProductsSummary"`
	Receipts []ledger.ProductSummary `json:"receiptsProductsSummary"`
	Sales    []ledger.ProductSummary `json:"salesProductsSummary"`
	Breaks   []ledger.ProductSummary `json:"breaksProductsSummary"`
	CB       []ledger.ProductSummary `json:"cbProductsSummary"`

	TotalReceiptsAmount decimal.Decimal `json:"totalReceiptsAmount"`
	TotalSalesAmount    decimal.Decimal `json:"totalSalesAmount"`
	TotalBreaksAmount   decimal.Decimal `json:"totalBreaksAmount"`
	OverallTotalAmount  decimal.Decimal `json:"overallTotalAmount"`

	IsPublished bool       `json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`

	// Persisted is false for the preview of a day with no saved ledger.
	Persisted bool       `json:"persisted"`
	Version   int64      `json:"version"`
	CreatedBy string     `json:"createdBy,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// LedgerSummaryDTO is one listing row.
type LedgerSummaryDTO struct {
	ShopID              int64           `json:"shopId"`
	Date                string          `json:"date"`
	IsPublished         bool            `json:"isPublished"`
	TotalReceiptsAmount decimal.Decimal `json:"totalReceiptsAmount"`
	TotalSalesAmount    decimal.Decimal `json:"totalSalesAmount"`
	TotalBreaksAmount   decimal.Decimal `json:"totalBreaksAmount"`
	OverallTotalAmount  decimal.Decimal `json:"overallTotalAmount"`
}

type SummaryPageResponse struct {
	TotalCount int                `json:"totalCount"`
	PageNumber int                `json:"pageNumber"`
	PageSize   int                `json:"pageSize"`
	Reports    []LedgerSummaryDTO `json:"reports"`
}

type FailedShopDTO struct {
	ShopID       int64  `json:"shopId"`
	ErrorMessage string `json:"errorMessage"`
}

// BatchPublishResponse reports every shop the batch considered.
type BatchPublishResponse struct {
	Date                string          `json:"date"`
	TotalShopsProcessed int             `json:"totalShopsProcessed"`
	SuccessfulShops     int             `json:"successfulShops"`
	SuccessfulShopIDs   []int64         `json:"successfulShopIds"`
	FailedShops         int             `json:"failedShops"`
	FailedShopsDetails  []FailedShopDTO `json:"failedShopsDetails"`
	SkippedShops        int             `json:"skippedShops"`
	SkippedShopIDs      []int64         `json:"skippedShopIds"`
	Cancelled           bool            `json:"cancelled"`
	Summary             string          `json:"summary"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRawEntries(products []ProductQuantityRequest) []ledger.RawEntry {
	if len(products) == 0 {
		return nil
	}
	entries := make([]ledger.RawEntry, 0, len(products))
	for _, p := range products {
		e := ledger.RawEntry{ProductID: ledger.ProductID(p.ProductID)}
		for _, s := range p.Sizes {
			e.Sizes = append(e.Sizes, ledger.RawSize{SizeID: ledger.SizeID(s.ProductSizeID), Quantity: s.Quantity})
		}
		entries = append(entries, e)
	}
	return entries
}

func toDraftInput(req SaveDraftRequest) (ledger.DraftInput, error) {
	in := ledger.DraftInput{
		OB:       toRawEntries(req.OB),
		Receipts: toRawEntries(req.Receipts),
		Sales:    toRawEntries(req.Sales),
		Breaks:   toRawEntries(req.Breaks),
	}
	for _, name := range req.Clear {
		kind, err := ledger.ParseGroupKind(name)
		if err != nil {
			return ledger.DraftInput{}, err
		}
		in.Clear = append(in.Clear, kind)
	}
	return in, nil
}

func orEmpty(group []ledger.ProductSummary) []ledger.ProductSummary {
	if group == nil {
		return []ledger.ProductSummary{}
	}
	return group
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toLedgerDTO(l *ledger.DailyLedger, shopName string) LedgerDTO {
	return LedgerDTO{
		ShopID:              int64(l.ShopID),
		ShopName:            shopName,
		Date:                l.Day.String(),
		OB:                  orEmpty(l.OB),
		Receipts:            orEmpty(l.Receipts),
		Sales:               orEmpty(l.Sales),
		Breaks:              orEmpty(l.Breaks),
		CB:                  orEmpty(l.CB),
		TotalReceiptsAmount: l.Totals.Receipts,
		TotalSalesAmount:    l.Totals.Sales,
		TotalBreaksAmount:   l.Totals.Breaks,
		OverallTotalAmount:  l.Totals.Overall,
		IsPublished:         l.IsPublished,
		PublishedAt:         l.PublishedAt,
		Persisted:           l.Persisted(),
		Version:             l.Version,
		CreatedBy:           l.CreatedBy,
		CreatedAt:           timePtr(l.CreatedAt),
		UpdatedAt:           timePtr(l.UpdatedAt),
	}
}

func toSummaryDTO(s ledger.LedgerSummary) LedgerSummaryDTO {
	return LedgerSummaryDTO{
		ShopID:              int64(s.ShopID),
		Date:                s.Day.String(),
		IsPublished:         s.IsPublished,
		TotalReceiptsAmount: s.Totals.Receipts,
		TotalSalesAmount:    s.Totals.Sales,
		TotalBreaksAmount:   s.Totals.Breaks,
		OverallTotalAmount:  s.Totals.Overall,
	}
}

func toSummaryPageResponse(page ledger.SummaryPage) SummaryPageResponse {
	reports := make([]LedgerSummaryDTO, 0, len(page.Reports))
	for _, s := range page.Reports {
		reports = append(reports, toSummaryDTO(s))
	}
	return SummaryPageResponse{
		TotalCount: page.TotalCount,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
		Reports:    reports,
	}
}

func shopIDs(ids []ledger.ShopID) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

func toBatchPublishResponse(r *ledger.BatchResult) BatchPublishResponse {
	failures := make([]FailedShopDTO, 0, len(r.FailedShopsDetails))
	for _, f := range r.FailedShopsDetails {
		failures = append(failures, FailedShopDTO{ShopID: int64(f.ShopID), ErrorMessage: f.Message})
	}
	return BatchPublishResponse{
		Date:                r.Day.String(),
		TotalShopsProcessed: r.TotalShopsProcessed,
		SuccessfulShops:     r.SuccessfulShops,
		SuccessfulShopIDs:   shopIDs(r.SuccessfulShopIDs),
		FailedShops:         r.FailedShops,
		FailedShopsDetails:  failures,
		SkippedShops:        r.SkippedShops,
		SkippedShopIDs:      shopIDs(r.SkippedShopIDs),
		Cancelled:           r.Cancelled,
		Summary:             r.Summary,
	}
}
