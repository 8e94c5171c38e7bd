package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/barsheet-engine/ledger"
)

// putNegativeDraft stores a draft whose CB is negative, bypassing SaveDraft.
func putNegativeDraft(t *testing.T, f *fixture, shopID ledger.ShopID, productID ledger.ProductID, sizeID ledger.SizeID) {
	t.Helper()
	line := ledger.NewSizeAmount(sizeID, dec("-3"), dec("2"))
	bad := &ledger.DailyLedger{
		ShopID:   shopID,
		Day:      f.day,
		OB:       []ledger.ProductSummary{},
		Receipts: []ledger.ProductSummary{},
		Sales:    []ledger.ProductSummary{},
		Breaks:   []ledger.ProductSummary{},
		CB:       []ledger.ProductSummary{{ProductID: productID, Sizes: []ledger.SizeAmount{line}}},
	}
	require.NoError(t, f.mem.Put(context.Background(), bad))
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, ledger.StateNoLedger, ledger.StateOf(nil))
	assert.Equal(t, ledger.StateDraft, ledger.StateOf(&ledger.DailyLedger{}))
	assert.Equal(t, ledger.StatePublished, ledger.StateOf(&ledger.DailyLedger{IsPublished: true}))
	assert.Equal(t, "published", ledger.StatePublished.String())
	assert.Equal(t, "no_ledger", ledger.StateNoLedger.String())
}

func TestPublish_WritesClosingBalanceToCatalog(t *testing.T) {
	f := newFixture(t)
	productID, sizeID := f.addShop(t, 1, "Corner Bar", "5")
	ctx := context.Background()

	// GIVEN: a draft that receives 3, sells 2 and breaks 1
	_, err := f.svc.SaveDraft(ctx, f.key(1), ledger.DraftInput{
		Receipts: entry(productID, sizeID, "3"),
		Sales:    entry(productID, sizeID, "2"),
		Breaks:   entry(productID, sizeID, "1"),
	}, "alice")
	require.NoError(t, err)

	// WHEN
	published, err := f.svc.Publish(ctx, 1, f.day)
	require.NoError(t, err)

	// THEN: ledger is published and stamped
	assert.True(t, published.IsPublished)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, fixedNow, *published.PublishedAt)

	// AND: the catalog holds the CB quantity
	assertDecEqual(t, "5", onHand(t, f.mem, 1, productID, sizeID))
}

func TestPublish_NextDaySeedsFromPublishedClosingBalance(t *testing.T) {
	f := newFixture(t)
	productID, sizeID := f.addShop(t, 1, "Corner Bar", "5")
	ctx := context.Background()

	_, err := f.svc.SaveDraft(ctx, f.key(1), ledger.DraftInput{Sales: entry(productID, sizeID, "2")}, "alice")
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, 1, f.day)
	require.NoError(t, err)

	// WHEN: tomorrow's first read
	tomorrow, err := f.svc.Current(ctx, 1, f.day.AddDays(1))
	require.NoError(t, err)

	// THEN: OB is today's CB
	require.Len(t, tomorrow.OB, 1)
	assertDecEqual(t, "3", tomorrow.OB[0].Sizes[0].Quantity)
}

func TestPublish_SecondPublishChangesNothing(t *testing.T) {
	f := newFixture(t)
	productID, sizeID := f.addShop(t, 1, "Corner Bar", "5")
	ctx := context.Background()

	_, err := f.svc.SaveDraft(ctx, f.key(1), ledger.DraftInput{Sales: entry(productID, sizeID, "2")}, "alice")
	require.NoError(t, err)
	first, err := f.svc.Publish(ctx, 1, f.day)
	require.NoError(t, err)

	// GIVEN: the catalog moves after publish
	require.NoError(t, f.mem.SetQuantities(ctx, 1, []ledger.QuantityUpdate{{ProductID: productID, SizeID: sizeID, Quantity: dec("40")}}))

	// WHEN: publishing again later
	f.svc.Clock = func() time.Time { return fixedNow.Add(time.Hour) }
	_, err = f.svc.Publish(ctx, 1, f.day)

	// THEN: state conflict, catalog and ledger untouched
	assert.True(t, errors.Is(err, ledger.ErrAlreadyPublished))
	assertDecEqual(t, "40", onHand(t, f.mem, 1, productID, sizeID))

	stored, err := f.mem.Get(ctx, f.key(1))
	require.NoError(t, err)
	assert.Equal(t, first.Version, stored.Version)
	assert.Equal(t, *first.PublishedAt, *stored.PublishedAt)
}

func TestPublish_NoLedger(t *testing.T) {
	f := newFixture(t)
	f.addShop(t, 1, "Corner Bar", "5")

	_, err := f.svc.Publish(context.Background(), 1, f.day)

	assert.True(t, errors.Is(err, ledger.ErrNoLedgerToPublish))
	assert.True(t, errors.Is(err, ledger.ErrStateConflict))
}

func TestPublish_NegativeStoredBalanceRollsBack(t *testing.T) {
	f := newFixture(t)
	productID, sizeID := f.addShop(t, 1, "Corner Bar", "5")
	ctx := context.Background()

	// GIVEN: a damaged draft with CB -3
	putNegativeDraft(t, f, 1, productID, sizeID)

	// WHEN
	_, err := f.svc.Publish(ctx, 1, f.day)

	// THEN: balance violation, still a draft, catalog untouched
	var bv *ledger.BalanceViolationError
	require.True(t, errors.As(err, &bv))
	assert.Equal(t, productID, bv.ProductID)

	stored, err := f.mem.Get(ctx, f.key(1))
	require.NoError(t, err)
	assert.False(t, stored.IsPublished)
	assertDecEqual(t, "5", onHand(t, f.mem, 1, productID, sizeID))
}

func TestPublish_WaitsForKeyLock(t *testing.T) {
	f := newFixture(t)
	productID, sizeID := f.addShop(t, 1, "Corner Bar", "5")
	_, err := f.svc.SaveDraft(context.Background(), f.key(1), ledger.DraftInput{Sales: entry(productID, sizeID, "1")}, "alice")
	require.NoError(t, err)

	// GIVEN: a writer holds the key
	unlock, err := f.locker.Lock(context.Background(), f.key(1).LockName())
	require.NoError(t, err)
	defer unlock()

	// WHEN: publish gives up waiting
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.svc.Publish(ctx, 1, f.day)

	// THEN: nothing was published
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	stored, err := f.mem.Get(context.Background(), f.key(1))
	require.NoError(t, err)
	assert.False(t, stored.IsPublished)
}
