/*
store.go - Persistence and catalog interfaces

PURPOSE:
  Defines the contract between the engine and its collaborators. The
  engine never talks to a database directly; it reads the catalog, gets
  and puts ledgers by key, and runs the publish step inside WithTx.

KEY INTERFACES:
  CatalogReader: shops, products with variants, size names
  CatalogWriter: variant quantity updates (publish only)
  LedgerStore:   get/put one ledger by (shop, day), optimistic version
  ReportStore:   listing and range reads
  Tx:            the view handed to WithTx (ledger + catalog, one transaction)
  Store:         everything above plus WithTx

ATOMICITY:
  WithTx commits the ledger flag flip and the catalog write together or
  not at all. Put is a compare-and-swap on DailyLedger.Version:
  - Version 0 inserts and fails if the key already exists
  - Version n updates only an unpublished row still at version n
  Both failures return ErrConcurrentModification. On success Put
  increments the ledger's Version in place.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - ledger/store/memory.go: in-memory for tests and development
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// CATALOG
// =============================================================================

type CatalogReader interface {
	// Shops returns every shop known to the system, ordered by id.
	Shops(ctx context.Context) ([]Shop, error)

	// Shop returns one shop, or ErrNotFound.
	Shop(ctx context.Context, shopID ShopID) (Shop, error)

	// Products returns the shop's products with their variants, ordered by id.
	Products(ctx context.Context, shopID ShopID) ([]Product, error)

	// SizeNames returns the display names of the shop's sizes.
	SizeNames(ctx context.Context, shopID ShopID) (map[SizeID]string, error)
}

type CatalogWriter interface {
	// SetQuantities overwrites on-hand quantities. Unknown variants are ignored.
	SetQuantities(ctx context.Context, shopID ShopID, updates []QuantityUpdate) error
}

// =============================================================================
// LEDGER
// =============================================================================

type LedgerStore interface {
	// Get returns the ledger for key, or nil when none exists.
	Get(ctx context.Context, key Key) (*DailyLedger, error)

	// Put inserts or updates the ledger, guarded by its Version.
	Put(ctx context.Context, l *DailyLedger) error
}

type ReportStore interface {
	// ListSummaries returns one page ordered by day descending, plus the total count.
	ListSummaries(ctx context.Context, shopID ShopID, offset, limit int) ([]LedgerSummary, int, error)

	// Range returns full ledgers with from <= day <= to, ordered by day ascending.
	Range(ctx context.Context, shopID ShopID, from, to Day) ([]DailyLedger, error)
}

// Tx is the transactional view passed to WithTx.
type Tx interface {
	LedgerStore
	CatalogWriter
}

type Store interface {
	CatalogReader
	CatalogWriter
	LedgerStore
	ReportStore

	// WithTx executes fn within a transaction.
	// If fn returns error, everything fn wrote is rolled back.
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// =============================================================================
// LOCKING - Per-key critical section
// =============================================================================

// Locker serializes writers of one ledger key. Different keys never contend.
type Locker interface {
	// Lock blocks until the key is held or ctx is done.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Clock is injectable for tests.
type Clock func() time.Time
