/*
batch.go - Publish every eligible shop's draft for one day

PURPOSE:
  Runs the publish state machine across all shops for a single target
  day. Triggered once a day by the scheduler or the batch endpoint.

PER-SHOP OUTCOMES:
  skipped    no ledger, or already published (neither success nor failure)
  succeeded  draft published, catalog updated
  failed     any error; recorded with the shop id and message

BULKHEAD:
  Each shop produces an outcome value. Errors never leave the shop's own
  iteration, so one shop's bad data cannot stop the run.

RE-RUNS:
  Safe. Published and absent ledgers are skipped again; only shops still
  in Draft are retried.

CONCURRENCY:
  Shops touch disjoint keys. Concurrency > 1 runs that many shops at once
  (errgroup with a limit). Results keep shop iteration order either way.

CANCELLATION:
  When ctx is done no new shop is started. A shop already inside its
  publish transaction finishes.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ShopFailure struct {
	ShopID  ShopID
	Message string
}

type BatchResult struct {
	Day                 Day
	TotalShopsProcessed int
	SuccessfulShops     int
	SuccessfulShopIDs   []ShopID
	FailedShops         int
	FailedShopsDetails  []ShopFailure
	SkippedShops        int
	SkippedShopIDs      []ShopID
	Cancelled           bool
	Summary             string
}

type outcomeStatus int

const (
	outcomeNotStarted outcomeStatus = iota
	outcomeSkipped
	outcomeSucceeded
	outcomeFailed
)

type shopOutcome struct {
	ShopID ShopID
	Status outcomeStatus
	Err    error
}

// BatchPublisher fans Publish out over every shop for one day.
type BatchPublisher struct {
	Service     *Service
	Concurrency int
	Logger      *zap.Logger
}

func NewBatchPublisher(service *Service, concurrency int, logger *zap.Logger) *BatchPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchPublisher{Service: service, Concurrency: concurrency, Logger: logger}
}

// Run publishes all draft ledgers for day. The only error returned is a
// failure to enumerate shops; per-shop errors are in the result.
func (b *BatchPublisher) Run(ctx context.Context, day Day) (*BatchResult, error) {
	shops, err := b.Service.Store.Shops(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}

	b.Logger.Info("batch publish started", zap.String("day", day.String()), zap.Int("shops", len(shops)))

	outcomes := make([]shopOutcome, len(shops))
	limit := b.Concurrency
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, shop := range shops {
		outcomes[i] = shopOutcome{ShopID: shop.ID, Status: outcomeNotStarted}
		if ctx.Err() != nil {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = b.publishShop(ctx, shop.ID, day)
			return nil
		})
	}
	_ = g.Wait()

	result := collect(day, outcomes)
	result.Cancelled = ctx.Err() != nil

	b.Logger.Info("batch publish finished",
		zap.String("day", day.String()),
		zap.String("summary", result.Summary),
		zap.Bool("cancelled", result.Cancelled))
	return result, nil
}

func (b *BatchPublisher) publishShop(ctx context.Context, shopID ShopID, day Day) shopOutcome {
	log := b.Logger.With(zap.Int64("shop_id", int64(shopID)), zap.String("day", day.String()))

	existing, err := b.Service.Store.Get(ctx, Key{ShopID: shopID, Day: day})
	if err != nil {
		logFailure(log, err)
		return shopOutcome{ShopID: shopID, Status: outcomeFailed, Err: err}
	}
	if StateOf(existing) != StateDraft {
		log.Info("batch publish skipped", zap.Stringer("state", StateOf(existing)))
		return shopOutcome{ShopID: shopID, Status: outcomeSkipped}
	}

	if _, err := b.Service.Publish(ctx, shopID, day); err != nil {
		// Another writer moved the ledger out of Draft since we looked.
		if errors.Is(err, ErrAlreadyPublished) || errors.Is(err, ErrNoLedgerToPublish) {
			log.Info("batch publish skipped", zap.Error(err))
			return shopOutcome{ShopID: shopID, Status: outcomeSkipped}
		}
		logFailure(log, err)
		return shopOutcome{ShopID: shopID, Status: outcomeFailed, Err: err}
	}
	log.Info("batch publish succeeded")
	return shopOutcome{ShopID: shopID, Status: outcomeSucceeded}
}

// logFailure reports bad shop data as a warning and store or lock trouble
// as an error.
func logFailure(log *zap.Logger, err error) {
	fields := []zap.Field{zap.Error(err), zap.Bool("retryable", IsRetryable(err))}
	if IsInfrastructure(err) {
		log.Error("batch publish failed", fields...)
		return
	}
	log.Warn("batch publish failed", fields...)
}

func collect(day Day, outcomes []shopOutcome) *BatchResult {
	result := &BatchResult{
		Day:                day,
		SuccessfulShopIDs:  []ShopID{},
		FailedShopsDetails: []ShopFailure{},
		SkippedShopIDs:     []ShopID{},
	}
	for _, o := range outcomes {
		switch o.Status {
		case outcomeNotStarted:
			continue
		case outcomeSkipped:
			result.SkippedShopIDs = append(result.SkippedShopIDs, o.ShopID)
		case outcomeSucceeded:
			result.SuccessfulShopIDs = append(result.SuccessfulShopIDs, o.ShopID)
		case outcomeFailed:
			result.FailedShopsDetails = append(result.FailedShopsDetails, ShopFailure{ShopID: o.ShopID, Message: o.Err.Error()})
		}
		result.TotalShopsProcessed++
	}
	result.SuccessfulShops = len(result.SuccessfulShopIDs)
	result.FailedShops = len(result.FailedShopsDetails)
	result.SkippedShops = len(result.SkippedShopIDs)
	result.Summary = fmt.Sprintf("Processed %d shops: %d succeeded, %d failed, %d skipped",
		result.TotalShopsProcessed, result.SuccessfulShops, result.FailedShops, result.SkippedShops)
	return result
}
