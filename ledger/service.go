package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// SERVICE - Interactive ledger operations
// =============================================================================

// Service runs ledger operations against a Store. Writers of the same key
// are serialized by Locker; the Store's version check backs that up.
type Service struct {
	Store  Store
	Locker Locker
	Clock  Clock
	Logger *zap.Logger
}

func NewService(store Store, locker Locker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:  store,
		Locker: locker,
		Clock:  func() time.Time { return time.Now().UTC() },
		Logger: logger,
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock()
}

// Today is the current day according to the service clock.
func (s *Service) Today() Day {
	return DayOf(s.now())
}

func (s *Service) lock(ctx context.Context, key Key) (func(), error) {
	unlock, err := s.Locker.Lock(ctx, key.LockName())
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return unlock, nil
}

// snapshot loads the catalog for one shop into a read-only snapshot.
func (s *Service) snapshot(ctx context.Context, shopID ShopID) (*CatalogSnapshot, error) {
	products, err := s.Store.Products(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("load catalog for shop %d: %w", shopID, err)
	}
	return NewCatalogSnapshot(shopID, products), nil
}

// Current returns the ledger for (shop, day), or an unsaved preview seeded
// from the catalog when none exists yet.
func (s *Service) Current(ctx context.Context, shopID ShopID, day Day) (*DailyLedger, error) {
	key := Key{ShopID: shopID, Day: day}
	if _, err := s.Store.Shop(ctx, shopID); err != nil {
		return nil, err
	}
	existing, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", key, err)
	}
	if existing != nil {
		return existing, nil
	}
	catalog, err := s.snapshot(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return PreviewLedger(key, catalog), nil
}

// SaveDraft merges in over the persisted draft and stores the result.
// Validation, state and balance failures leave the store untouched.
func (s *Service) SaveDraft(ctx context.Context, key Key, in DraftInput, actor string) (*DailyLedger, error) {
	if _, err := s.Store.Shop(ctx, key.ShopID); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prior, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", key, err)
	}
	if prior != nil && prior.IsPublished {
		return nil, ErrDraftOnPublished
	}

	catalog, err := s.snapshot(ctx, key.ShopID)
	if err != nil {
		return nil, err
	}

	next, err := ComputeDraft(key, prior, in, catalog)
	if err != nil {
		s.Logger.Info("draft rejected", zap.Int64("shop_id", int64(key.ShopID)),
			zap.String("day", key.Day.String()), zap.Error(err))
		return nil, err
	}

	now := s.now()
	if prior == nil {
		if actor == "" {
			actor = "system"
		}
		next.CreatedBy = actor
		next.CreatedAt = now
	}
	next.UpdatedAt = now

	if err := s.Store.Put(ctx, next); err != nil {
		return nil, fmt.Errorf("save draft %s: %w", key, err)
	}

	s.Logger.Debug("draft saved", zap.Int64("shop_id", int64(key.ShopID)),
		zap.String("day", key.Day.String()), zap.Int64("version", next.Version))
	return next, nil
}
