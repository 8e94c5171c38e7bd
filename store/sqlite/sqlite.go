/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Persists the shop catalog (shops, sizes, categories, products and their
  variants) and the daily ledgers. In production the same patterns apply
  to PostgreSQL with only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.CatalogReader:  Shops, products, size names
  ledger.CatalogWriter:  Variant quantities (written by publish only)
  ledger.LedgerStore:    Daily ledger get / compare-and-swap put
  ledger.ReportStore:    Paginated summaries and date ranges
  ledger.Store.WithTx:   Atomic publish

KEY TABLES:
  daily_ledgers:     One row per (shop_id, ledger_date). Groups as JSON.
  product_variants:  One row per (product_id, size_id). Price and quantity
                     stored as decimal TEXT, never REAL.

OPTIMISTIC CONCURRENCY:
  Put is a compare-and-swap on the version column:
  - version 0 INSERTs; an existing row is a conflict
  - version n UPDATEs only an unpublished row still at version n
  Either conflict returns ledger.ErrConcurrentModification.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  ":memory:" uses one connection so every query sees the same database.

USAGE:
  store, err := sqlite.New("./data/barsheet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  service := ledger.NewService(store, lock.NewKeyMutex(), logger)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/barsheet-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shops (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS sizes (
		id INTEGER PRIMARY KEY,
		shop_id INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sizes_shop ON sizes(shop_id);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY,
		shop_id INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY,
		shop_id INTEGER NOT NULL,
		category_id INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_products_shop ON products(shop_id);

	-- Variants are owned by their product
	CREATE TABLE IF NOT EXISTS product_variants (
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		size_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		price TEXT NOT NULL,
		quantity TEXT NOT NULL,
		PRIMARY KEY (product_id, size_id)
	);

	-- At most one ledger per shop and day
	CREATE TABLE IF NOT EXISTS daily_ledgers (
		shop_id INTEGER NOT NULL,
		ledger_date TEXT NOT NULL,
		ob_json TEXT NOT NULL,
		receipts_json TEXT NOT NULL,
		sales_json TEXT NOT NULL,
		breaks_json TEXT NOT NULL,
		cb_json TEXT NOT NULL,
		total_receipts TEXT NOT NULL,
		total_sales TEXT NOT NULL,
		total_breaks TEXT NOT NULL,
		total_overall TEXT NOT NULL,
		is_published INTEGER NOT NULL DEFAULT 0,
		published_at TEXT,
		version INTEGER NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (shop_id, ledger_date)
	);

	-- Batch publish scans unpublished ledgers for one date
	CREATE INDEX IF NOT EXISTS idx_daily_ledgers_date_published
		ON daily_ledgers(ledger_date, is_published);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CATALOG SEEDING
// =============================================================================

func (s *Store) SaveShop(ctx context.Context, shop ledger.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shops (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, shop.ID, shop.Name)
	if err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	return nil
}

func (s *Store) SaveSize(ctx context.Context, size ledger.Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sizes (id, shop_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET shop_id = excluded.shop_id, name = excluded.name
	`, size.ID, size.ShopID, size.Name)
	if err != nil {
		return fmt.Errorf("failed to save size: %w", err)
	}
	return nil
}

func (s *Store) SaveCategory(ctx context.Context, c ledger.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, shop_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET shop_id = excluded.shop_id, name = excluded.name
	`, c.ID, c.ShopID, c.Name)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

// SaveProduct upserts a product and replaces its variants atomically.
func (s *Store) SaveProduct(ctx context.Context, p ledger.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	known, err := knownSizes(ctx, sqlTx, p.ShopID)
	if err != nil {
		return err
	}
	if err := p.Validate(known); err != nil {
		return err
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO products (id, shop_id, category_id, name) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			shop_id = excluded.shop_id, category_id = excluded.category_id, name = excluded.name
	`, p.ID, p.ShopID, p.CategoryID, p.Name)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to replace variants: %w", err)
	}
	for i, v := range p.Variants {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO product_variants (product_id, size_id, position, price, quantity)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, v.SizeID, i, v.Price.String(), v.Quantity.String())
		if err != nil {
			return fmt.Errorf("failed to save variant: %w", err)
		}
	}

	return sqlTx.Commit()
}

func knownSizes(ctx context.Context, db queryer, shopID ledger.ShopID) (map[ledger.SizeID]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM sizes WHERE shop_id = ?`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sizes: %w", err)
	}
	defer rows.Close()

	known := make(map[ledger.SizeID]bool)
	for rows.Next() {
		var id ledger.SizeID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	return known, rows.Err()
}

// =============================================================================
// CATALOG READS (ledger.CatalogReader)
// =============================================================================

func (s *Store) Shops(ctx context.Context) ([]ledger.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM shops ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shops: %w", err)
	}
	defer rows.Close()

	var shops []ledger.Shop
	for rows.Next() {
		var shop ledger.Shop
		if err := rows.Scan(&shop.ID, &shop.Name); err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}

func (s *Store) Shop(ctx context.Context, shopID ledger.ShopID) (ledger.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shop := ledger.Shop{ID: shopID}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM shops WHERE id = ?`, shopID).Scan(&shop.Name)
	if err == sql.ErrNoRows {
		return ledger.Shop{}, fmt.Errorf("shop %d: %w", shopID, ledger.ErrNotFound)
	}
	if err != nil {
		return ledger.Shop{}, fmt.Errorf("failed to get shop: %w", err)
	}
	return shop, nil
}

func (s *Store) Products(ctx context.Context, shopID ledger.ShopID) ([]ledger.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.category_id, COALESCE(c.name, '')
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.shop_id = ?
		ORDER BY p.id
	`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	var products []ledger.Product
	index := make(map[ledger.ProductID]int)
	for rows.Next() {
		p := ledger.Product{ShopID: shopID}
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName); err != nil {
			rows.Close()
			return nil, err
		}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := s.db.QueryContext(ctx, `
		SELECT v.product_id, v.size_id, v.price, v.quantity
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE p.shop_id = ?
		ORDER BY v.product_id, v.position
	`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var (
			productID       ledger.ProductID
			v               ledger.Variant
			price, quantity string
		)
		if err := vrows.Scan(&productID, &v.SizeID, &price, &quantity); err != nil {
			return nil, err
		}
		if v.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid price for product %d: %w", productID, err)
		}
		if v.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("invalid quantity for product %d: %w", productID, err)
		}
		i := index[productID]
		products[i].Variants = append(products[i].Variants, v)
	}
	return products, vrows.Err()
}

func (s *Store) SizeNames(ctx context.Context, shopID ledger.ShopID) (map[ledger.SizeID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM sizes WHERE shop_id = ?`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sizes: %w", err)
	}
	defer rows.Close()

	names := make(map[ledger.SizeID]string)
	for rows.Next() {
		var (
			id   ledger.SizeID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// =============================================================================
// CATALOG WRITES (ledger.CatalogWriter)
// =============================================================================

func (s *Store) SetQuantities(ctx context.Context, shopID ledger.ShopID, updates []ledger.QuantityUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return setQuantities(ctx, s.db, shopID, updates)
}

func setQuantities(ctx context.Context, db queryer, shopID ledger.ShopID, updates []ledger.QuantityUpdate) error {
	for _, u := range updates {
		if u.Quantity.IsNegative() {
			return &ledger.BalanceViolationError{ProductID: u.ProductID, SizeID: u.SizeID, Quantity: u.Quantity}
		}
		_, err := db.ExecContext(ctx, `
			UPDATE product_variants SET quantity = ?
			WHERE product_id = ? AND size_id = ?
			  AND product_id IN (SELECT id FROM products WHERE shop_id = ?)
		`, u.Quantity.String(), u.ProductID, u.SizeID, shopID)
		if err != nil {
			return fmt.Errorf("failed to update quantity: %w", err)
		}
	}
	return nil
}

// =============================================================================
// LEDGERS (ledger.LedgerStore)
// =============================================================================

const ledgerColumns = `
	shop_id, ledger_date, ob_json, receipts_json, sales_json, breaks_json, cb_json,
	total_receipts, total_sales, total_breaks, total_overall,
	is_published, published_at, version, created_by, created_at, updated_at`

// Get returns the ledger for k, or nil if none exists.
func (s *Store) Get(ctx context.Context, k ledger.Key) (*ledger.DailyLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getLedger(ctx, s.db, k)
}

func getLedger(ctx context.Context, db queryer, k ledger.Key) (*ledger.DailyLedger, error) {
	row := db.QueryRowContext(ctx, `SELECT `+ledgerColumns+`
		FROM daily_ledgers WHERE shop_id = ? AND ledger_date = ?`, k.ShopID, k.Day.String())

	l, err := scanLedger(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return l, nil
}

// Put stores l if its Version still matches the persisted row, then bumps it.
func (s *Store) Put(ctx context.Context, l *ledger.DailyLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return putLedger(ctx, s.db, l)
}

func putLedger(ctx context.Context, db queryer, l *ledger.DailyLedger) error {
	groups := make([]string, 0, 5)
	for _, g := range [][]ledger.ProductSummary{l.OB, l.Receipts, l.Sales, l.Breaks, l.CB} {
		encoded, err := marshalGroup(g)
		if err != nil {
			return err
		}
		groups = append(groups, encoded)
	}

	var publishedAt sql.NullString
	if l.PublishedAt != nil {
		publishedAt = sql.NullString{String: l.PublishedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	if l.Version == 0 {
		_, err := db.ExecContext(ctx, `INSERT INTO daily_ledgers (`+ledgerColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			l.ShopID, l.Day.String(),
			groups[0], groups[1], groups[2], groups[3], groups[4],
			l.Totals.Receipts.String(), l.Totals.Sales.String(), l.Totals.Breaks.String(), l.Totals.Overall.String(),
			l.IsPublished, publishedAt,
			l.CreatedBy, formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ledger.ErrConcurrentModification
			}
			return fmt.Errorf("failed to insert ledger: %w", err)
		}
		l.Version = 1
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE daily_ledgers SET
			ob_json = ?, receipts_json = ?, sales_json = ?, breaks_json = ?, cb_json = ?,
			total_receipts = ?, total_sales = ?, total_breaks = ?, total_overall = ?,
			is_published = ?, published_at = ?, version = version + 1,
			created_by = ?, created_at = ?, updated_at = ?
		WHERE shop_id = ? AND ledger_date = ? AND version = ? AND is_published = 0
	`,
		groups[0], groups[1], groups[2], groups[3], groups[4],
		l.Totals.Receipts.String(), l.Totals.Sales.String(), l.Totals.Breaks.String(), l.Totals.Overall.String(),
		l.IsPublished, publishedAt,
		l.CreatedBy, formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
		l.ShopID, l.Day.String(), l.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	if n == 0 {
		return ledger.ErrConcurrentModification
	}
	l.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedger(row rowScanner) (*ledger.DailyLedger, error) {
	var (
		l                                ledger.DailyLedger
		day                              string
		groups                           [5]string
		receipts, sales, breaks, overall string
		publishedAt                      sql.NullString
		createdAt, updatedAt             string
	)
	err := row.Scan(&l.ShopID, &day,
		&groups[0], &groups[1], &groups[2], &groups[3], &groups[4],
		&receipts, &sales, &breaks, &overall,
		&l.IsPublished, &publishedAt, &l.Version, &l.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if l.Day, err = ledger.ParseDay(day); err != nil {
		return nil, err
	}
	targets := []*[]ledger.ProductSummary{&l.OB, &l.Receipts, &l.Sales, &l.Breaks, &l.CB}
	for i, target := range targets {
		if *target, err = unmarshalGroup(groups[i]); err != nil {
			return nil, err
		}
	}
	if l.Totals, err = parseTotals(receipts, sales, breaks, overall); err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, publishedAt.String)
		if err != nil {
			return nil, err
		}
		l.PublishedAt = &t
	}
	l.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	l.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &l, nil
}

// =============================================================================
// REPORTS (ledger.ReportStore)
// =============================================================================

func (s *Store) ListSummaries(ctx context.Context, shopID ledger.ShopID, offset, limit int) ([]ledger.LedgerSummary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_ledgers WHERE shop_id = ?`, shopID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ledgers: %w", err)
	}
	// SQLite reads a negative LIMIT as unbounded and a negative OFFSET as 0.
	if offset < 0 || limit <= 0 {
		return []ledger.LedgerSummary{}, total, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT shop_id, ledger_date, is_published, total_receipts, total_sales, total_breaks, total_overall
		FROM daily_ledgers
		WHERE shop_id = ?
		ORDER BY ledger_date DESC
		LIMIT ? OFFSET ?
	`, shopID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ledgers: %w", err)
	}
	defer rows.Close()

	summaries := []ledger.LedgerSummary{}
	for rows.Next() {
		var (
			sum                              ledger.LedgerSummary
			day                              string
			receipts, sales, breaks, overall string
		)
		if err := rows.Scan(&sum.ShopID, &day, &sum.IsPublished, &receipts, &sales, &breaks, &overall); err != nil {
			return nil, 0, err
		}
		if sum.Day, err = ledger.ParseDay(day); err != nil {
			return nil, 0, err
		}
		if sum.Totals, err = parseTotals(receipts, sales, breaks, overall); err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, total, rows.Err()
}

func (s *Store) Range(ctx context.Context, shopID ledger.ShopID, from, to ledger.Day) ([]ledger.DailyLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+ledgerColumns+`
		FROM daily_ledgers
		WHERE shop_id = ? AND ledger_date >= ? AND ledger_date <= ?
		ORDER BY ledger_date ASC
	`, shopID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query ledgers: %w", err)
	}
	defer rows.Close()

	ledgers := []ledger.DailyLedger{}
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, *l)
	}
	return ledgers, rows.Err()
}

// =============================================================================
// TRANSACTION SUPPORT
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore wraps a transaction; the parent lock is already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Get(ctx context.Context, k ledger.Key) (*ledger.DailyLedger, error) {
	return getLedger(ctx, ts.tx, k)
}

func (ts *txStore) Put(ctx context.Context, l *ledger.DailyLedger) error {
	return putLedger(ctx, ts.tx, l)
}

func (ts *txStore) SetQuantities(ctx context.Context, shopID ledger.ShopID, updates []ledger.QuantityUpdate) error {
	return setQuantities(ctx, ts.tx, shopID, updates)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"daily_ledgers", "product_variants", "products", "categories", "sizes", "shops"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func marshalGroup(group []ledger.ProductSummary) (string, error) {
	if group == nil {
		group = []ledger.ProductSummary{}
	}
	b, err := json.Marshal(group)
	if err != nil {
		return "", fmt.Errorf("failed to encode group: %w", err)
	}
	return string(b), nil
}

func unmarshalGroup(s string) ([]ledger.ProductSummary, error) {
	group := []ledger.ProductSummary{}
	if err := json.Unmarshal([]byte(s), &group); err != nil {
		return nil, fmt.Errorf("failed to decode group: %w", err)
	}
	return group, nil
}

func parseTotals(receipts, sales, breaks, overall string) (ledger.Totals, error) {
	var (
		t   ledger.Totals
		err error
	)
	if t.Receipts, err = decimal.NewFromString(receipts); err != nil {
		return t, err
	}
	if t.Sales, err = decimal.NewFromString(sales); err != nil {
		return t, err
	}
	if t.Breaks, err = decimal.NewFromString(breaks); err != nil {
		return t, err
	}
	if t.Overall, err = decimal.NewFromString(overall); err != nil {
		return t, err
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
