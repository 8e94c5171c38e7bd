/*
publish.go - Draft -> Published state machine

STATES (per shop + day):

    NoLedger --SaveDraft--> Draft --Publish--> Published (terminal)
                            Draft --SaveDraft--> Draft

TRANSITION:
  Publish reads the persisted CB and, in one store transaction:
    1. sets every referenced catalog variant's quantity to its CB quantity
    2. flips IsPublished and stamps PublishedAt
  Both commit or neither does. A negative CB quantity found here aborts
  the transaction with a BalanceViolationError.

CANCELLATION:
  The caller's context may stop us before the transaction starts (while
  waiting on the key lock). Once the transaction has started it runs on a
  context detached from cancellation, so it is never left half-applied.

ERRORS:
  ErrNoLedgerToPublish  no ledger for the key
  ErrAlreadyPublished   second publish; catalog and ledger untouched
*/
package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type State int

const (
	StateNoLedger State = iota
	StateDraft
	StatePublished
)

func (s State) String() string {
	switch s {
	case StateDraft:
		return "draft"
	case StatePublished:
		return "published"
	default:
		return "no_ledger"
	}
}

// StateOf classifies a ledger as returned by LedgerStore.Get.
func StateOf(l *DailyLedger) State {
	switch {
	case l == nil:
		return StateNoLedger
	case l.IsPublished:
		return StatePublished
	default:
		return StateDraft
	}
}

// closingUpdates turns CB into catalog quantity writes.
func closingUpdates(cb []ProductSummary) ([]QuantityUpdate, error) {
	var updates []QuantityUpdate
	for _, ps := range cb {
		for _, s := range ps.Sizes {
			if s.Quantity.IsNegative() {
				return nil, &BalanceViolationError{ProductID: ps.ProductID, SizeID: s.SizeID, Quantity: s.Quantity}
			}
			updates = append(updates, QuantityUpdate{ProductID: ps.ProductID, SizeID: s.SizeID, Quantity: s.Quantity})
		}
	}
	return updates, nil
}

// Publish transitions the draft for (shop, day) to published and returns
// the ledger as re-read from the store.
func (s *Service) Publish(ctx context.Context, shopID ShopID, day Day) (*DailyLedger, error) {
	key := Key{ShopID: shopID, Day: day}

	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	txCtx := context.WithoutCancel(ctx)
	err = s.Store.WithTx(txCtx, func(tx Tx) error {
		return s.publishInTx(txCtx, tx, key)
	})
	if err != nil {
		return nil, err
	}

	published, err := s.Store.Get(txCtx, key)
	if err != nil {
		return nil, fmt.Errorf("reload published ledger %s: %w", key, err)
	}
	s.Logger.Info("ledger published", zap.Int64("shop_id", int64(shopID)), zap.String("day", day.String()))
	return published, nil
}

func (s *Service) publishInTx(ctx context.Context, tx Tx, key Key) error {
	l, err := tx.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load ledger %s: %w", key, err)
	}
	switch StateOf(l) {
	case StateNoLedger:
		return ErrNoLedgerToPublish
	case StatePublished:
		return ErrAlreadyPublished
	}

	updates, err := closingUpdates(l.CB)
	if err != nil {
		return err
	}
	if err := tx.SetQuantities(ctx, key.ShopID, updates); err != nil {
		return fmt.Errorf("apply closing balance to catalog: %w", err)
	}

	now := s.now()
	l.IsPublished = true
	l.PublishedAt = &now
	l.UpdatedAt = now
	if err := tx.Put(ctx, l); err != nil {
		return fmt.Errorf("mark ledger %s published: %w", key, err)
	}
	return nil
}
