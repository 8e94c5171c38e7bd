package ledger

import (
	"context"
	"fmt"
	"math"
)

// =============================================================================
// REPORT QUERIES - Read-only
// =============================================================================
// Orderings are part of the contract:
//   List       day descending (paginated)
//   ListByDay  day ascending
//   Range      day ascending

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type SummaryPage struct {
	TotalCount int
	PageNumber int
	PageSize   int
	Reports    []LedgerSummary
}

// Get returns the persisted ledger for (shop, day), or ErrNotFound.
func (s *Service) Get(ctx context.Context, shopID ShopID, day Day) (*DailyLedger, error) {
	key := Key{ShopID: shopID, Day: day}
	l, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", key, err)
	}
	if l == nil {
		return nil, fmt.Errorf("ledger for %s: %w", key, ErrNotFound)
	}
	return l, nil
}

// List returns one page of ledger summaries, newest first.
func (s *Service) List(ctx context.Context, shopID ShopID, pageNumber, pageSize int) (SummaryPage, error) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	// A page whose offset does not fit in an int is past any real listing;
	// only the total is fetched.
	offset, limit := 0, pageSize
	if pageNumber-1 > math.MaxInt/pageSize {
		limit = 0
	} else {
		offset = (pageNumber - 1) * pageSize
	}

	rows, total, err := s.Store.ListSummaries(ctx, shopID, offset, limit)
	if err != nil {
		return SummaryPage{}, fmt.Errorf("list ledgers for shop %d: %w", shopID, err)
	}
	return SummaryPage{TotalCount: total, PageNumber: pageNumber, PageSize: pageSize, Reports: rows}, nil
}

// ListByDay returns the full ledgers filtered to one day, ascending.
func (s *Service) ListByDay(ctx context.Context, shopID ShopID, day Day) ([]DailyLedger, error) {
	ledgers, err := s.Store.Range(ctx, shopID, day, day)
	if err != nil {
		return nil, fmt.Errorf("list ledgers for shop %d on %s: %w", shopID, day, err)
	}
	return ledgers, nil
}

// Range returns every ledger between from and to inclusive, ascending.
// An empty range is ErrNotFound.
func (s *Service) Range(ctx context.Context, shopID ShopID, from, to Day) ([]DailyLedger, error) {
	if from.After(to) {
		return nil, &ValidationError{Field: "from", Message: "from date must be less than or equal to to date"}
	}
	ledgers, err := s.Store.Range(ctx, shopID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load ledgers for shop %d: %w", shopID, err)
	}
	if len(ledgers) == 0 {
		return nil, fmt.Errorf("no ledgers for shop %d between %s and %s: %w", shopID, from, to, ErrNotFound)
	}
	return ledgers, nil
}

// =============================================================================
// DOCUMENT - Input handed to the external renderer
// =============================================================================

type Document struct {
	ShopID       ShopID
	ShopName     string
	From, To     Day
	Ledgers      []DailyLedger
	ProductNames map[ProductID]string
	SizeNames    map[SizeID]string
}

// SizeName falls back to "Size-<id>" for sizes without a stored name.
func (d Document) SizeName(id SizeID) string {
	if name, ok := d.SizeNames[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Size-%d", id)
}

func (d Document) ProductName(id ProductID) string {
	if name, ok := d.ProductNames[id]; ok && name != "" {
		return name
	}
	return fmt.Sprint(id)
}

// Document assembles a range of ledgers with the name lookups a renderer needs.
func (s *Service) Document(ctx context.Context, shopID ShopID, from, to Day) (Document, error) {
	ledgers, err := s.Range(ctx, shopID, from, to)
	if err != nil {
		return Document{}, err
	}
	shop, err := s.Store.Shop(ctx, shopID)
	if err != nil {
		return Document{}, err
	}
	catalog, err := s.snapshot(ctx, shopID)
	if err != nil {
		return Document{}, err
	}
	sizes, err := s.Store.SizeNames(ctx, shopID)
	if err != nil {
		return Document{}, fmt.Errorf("load size names for shop %d: %w", shopID, err)
	}
	return Document{
		ShopID:       shopID,
		ShopName:     shop.DisplayName(),
		From:         from,
		To:           to,
		Ledgers:      ledgers,
		ProductNames: catalog.ProductNames(),
		SizeNames:    sizes,
	}, nil
}
