package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/barsheet-engine/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveShop(ctx, ledger.Shop{ID: 1, Name: "Corner Bar"}))
	require.NoError(t, store.SaveSize(ctx, ledger.Size{ID: 1, ShopID: 1, Name: "330ml"}))
	require.NoError(t, store.SaveSize(ctx, ledger.Size{ID: 2, ShopID: 1, Name: "650ml"}))
	require.NoError(t, store.SaveCategory(ctx, ledger.Category{ID: 1, ShopID: 1, Name: "Beer"}))
	require.NoError(t, store.SaveProduct(ctx, ledger.Product{
		ID: 10, Name: "Lager", CategoryID: 1, ShopID: 1,
		Variants: []ledger.Variant{
			{SizeID: 2, Price: decimal.RequireFromString("3.50"), Quantity: decimal.NewFromInt(4)},
			{SizeID: 1, Price: decimal.NewFromInt(2), Quantity: decimal.NewFromInt(5)},
		},
	}))
	return store
}

func sampleLedger(day ledger.Day) *ledger.DailyLedger {
	sale := ledger.NewSizeAmount(1, decimal.NewFromInt(2), decimal.NewFromInt(2))
	sales := []ledger.ProductSummary{{ProductID: 10, CategoryName: "Beer", Sizes: []ledger.SizeAmount{sale}, TotalAmount: sale.Amount}}
	now := time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)
	return &ledger.DailyLedger{
		ShopID:    1,
		Day:       day,
		OB:        []ledger.ProductSummary{},
		Receipts:  []ledger.ProductSummary{},
		Sales:     sales,
		Breaks:    []ledger.ProductSummary{},
		CB:        []ledger.ProductSummary{},
		Totals:    ledger.ComputeTotals(nil, sales, nil),
		CreatedBy: "alice",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCatalog_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	products, err := store.Products(ctx, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "Beer", p.CategoryName)
	require.Len(t, p.Variants, 2)

	// Variant order is insertion order, prices stay exact
	assert.Equal(t, ledger.SizeID(2), p.Variants[0].SizeID)
	assert.True(t, p.Variants[0].Price.Equal(decimal.RequireFromString("3.5")))

	names, err := store.SizeNames(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "650ml", names[2])

	_, err = store.Shop(ctx, 7)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestSaveProduct_UnknownSizeRejected(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveProduct(context.Background(), ledger.Product{
		ID: 11, ShopID: 1,
		Variants: []ledger.Variant{{SizeID: 9, Price: decimal.NewFromInt(1)}},
	})

	assert.True(t, errors.Is(err, ledger.ErrValidation))
}

func TestLedger_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	l := sampleLedger(ledger.NewDay(2025, 6, 1))

	require.NoError(t, store.Put(ctx, l))
	assert.Equal(t, int64(1), l.Version)

	got, err := store.Get(ctx, l.Key())
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, l.Day, got.Day)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.True(t, l.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Sales, 1)
	assert.True(t, got.Sales[0].Sizes[0].Amount.Equal(decimal.NewFromInt(4)))
	assert.True(t, got.Totals.Overall.Equal(decimal.NewFromInt(-4)))
	assert.NotNil(t, got.Receipts)
	assert.Nil(t, got.PublishedAt)
}

func TestLedger_MissingIsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), ledger.Key{ShopID: 1, Day: ledger.NewDay(2030, 1, 1)})

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLedger_OptimisticVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := ledger.NewDay(2025, 6, 1)

	require.NoError(t, store.Put(ctx, sampleLedger(day)))

	// Second insert for the same key
	assert.True(t, errors.Is(store.Put(ctx, sampleLedger(day)), ledger.ErrConcurrentModification))

	// Stale update
	a, err := store.Get(ctx, ledger.Key{ShopID: 1, Day: day})
	require.NoError(t, err)
	b, err := store.Get(ctx, ledger.Key{ShopID: 1, Day: day})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, a))
	assert.Equal(t, int64(2), a.Version)
	assert.True(t, errors.Is(store.Put(ctx, b), ledger.ErrConcurrentModification))

	// Published rows are frozen
	now := time.Now().UTC()
	a.IsPublished = true
	a.PublishedAt = &now
	require.NoError(t, store.Put(ctx, a))
	assert.True(t, errors.Is(store.Put(ctx, a), ledger.ErrConcurrentModification))

	got, err := store.Get(ctx, ledger.Key{ShopID: 1, Day: day})
	require.NoError(t, err)
	assert.True(t, got.IsPublished)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, now.Equal(*got.PublishedAt))
}

func TestWithTx_CommitsTogether(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := ledger.NewDay(2025, 6, 1)

	err := store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.SetQuantities(ctx, 1, []ledger.QuantityUpdate{{ProductID: 10, SizeID: 1, Quantity: decimal.NewFromInt(3)}}); err != nil {
			return err
		}
		return tx.Put(ctx, sampleLedger(day))
	})
	require.NoError(t, err)

	products, err := store.Products(ctx, 1)
	require.NoError(t, err)
	v, ok := products[0].Variant(1)
	require.True(t, ok)
	assert.True(t, v.Quantity.Equal(decimal.NewFromInt(3)))

	got, err := store.Get(ctx, ledger.Key{ShopID: 1, Day: day})
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestWithTx_RollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := ledger.NewDay(2025, 6, 1)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.SetQuantities(ctx, 1, []ledger.QuantityUpdate{{ProductID: 10, SizeID: 1, Quantity: decimal.NewFromInt(0)}}); err != nil {
			return err
		}
		if err := tx.Put(ctx, sampleLedger(day)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	products, err := store.Products(ctx, 1)
	require.NoError(t, err)
	v, _ := products[0].Variant(1)
	assert.True(t, v.Quantity.Equal(decimal.NewFromInt(5)))

	got, err := store.Get(ctx, ledger.Key{ShopID: 1, Day: day})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReports_Ordering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := ledger.NewDay(2025, 6, 1)
	for _, offset := range []int{1, 2, 0} {
		require.NoError(t, store.Put(ctx, sampleLedger(start.AddDays(offset))))
	}

	rows, total, err := store.ListSummaries(ctx, 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 2)
	assert.Equal(t, start.AddDays(1), rows[0].Day)
	assert.Equal(t, start, rows[1].Day)

	ledgers, err := store.Range(ctx, 1, start, start.AddDays(2))
	require.NoError(t, err)
	require.Len(t, ledgers, 3)
	assert.Equal(t, start, ledgers[0].Day)
	assert.Equal(t, start.AddDays(2), ledgers[2].Day)
}

func TestReports_NegativeBoundsReturnNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, sampleLedger(ledger.NewDay(2025, 6, 1))))

	// A negative OFFSET would otherwise read as page one, a negative LIMIT as unbounded
	rows, total, err := store.ListSummaries(ctx, 1, -4, 2)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 1, total)

	rows, _, err = store.ListSummaries(ctx, 1, 0, -1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPublishThroughService(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := ledger.NewService(store, noopLocker{}, nil)
	day := ledger.NewDay(2025, 6, 1)

	_, err := svc.SaveDraft(ctx, ledger.Key{ShopID: 1, Day: day}, ledger.DraftInput{
		Sales: []ledger.RawEntry{{ProductID: 10, Sizes: []ledger.RawSize{{SizeID: 2, Quantity: decimal.NewFromInt(1)}}}},
	}, "alice")
	require.NoError(t, err)

	published, err := svc.Publish(ctx, 1, day)
	require.NoError(t, err)
	assert.True(t, published.IsPublished)

	products, err := store.Products(ctx, 1)
	require.NoError(t, err)
	v, _ := products[0].Variant(2)
	assert.True(t, v.Quantity.Equal(decimal.NewFromInt(3)))

	_, err = svc.Publish(ctx, 1, day)
	assert.True(t, errors.Is(err, ledger.ErrAlreadyPublished))
}

func TestReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, sampleLedger(ledger.NewDay(2025, 6, 1))))

	require.NoError(t, store.Reset(ctx))

	shops, err := store.Shops(ctx)
	require.NoError(t, err)
	assert.Empty(t, shops)
	rows, total, err := store.ListSummaries(ctx, 1, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
