/*
scheduler.go - Daily batch publish scheduler

PURPOSE:
  Fires the batch publisher once a day so every shop's draft for the
  target day is published without anyone pressing the button.

DESIGN:
  - robfig/cron schedule evaluated in the configured time zone
  - Target day = today in that zone + OffsetDays (0 is today, -1 is yesterday)
  - The job shares one base context; Stop cancels it, so a running batch
    starts no new shops and the current one finishes its transaction
  - Overlapping runs are skipped

CONFIGURATION:
  - Spec:       5-field cron expression (default "10 18 * * *")
  - Location:   time zone for both the schedule and "today"
  - OffsetDays: shift applied to today
  - Timeout:    per-run limit (default 10 minutes)

USAGE:
  scheduler, err := NewBatchScheduler(batch, ScheduleConfig{Spec: "10 18 * * *"}, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: BatchPublish endpoint (manual trigger)
  - ledger/batch.go: BatchPublisher
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/barsheet-engine/ledger"
)

const defaultRunTimeout = 10 * time.Minute

type ScheduleConfig struct {
	Spec       string
	Location   *time.Location
	OffsetDays int
	Timeout    time.Duration
}

// BatchScheduler runs the batch publisher on a cron schedule.
type BatchScheduler struct {
	batch  *ledger.BatchPublisher
	cfg    ScheduleConfig
	cron   *cron.Cron
	logger *zap.Logger

	// Now is the clock used to compute the target day.
	Now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// NewBatchScheduler validates the schedule and builds a stopped scheduler.
func NewBatchScheduler(batch *ledger.BatchPublisher, cfg ScheduleConfig, logger *zap.Logger) (*BatchScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRunTimeout
	}

	c := cron.New(cron.WithLocation(cfg.Location))
	s := &BatchScheduler{
		batch:  batch,
		cfg:    cfg,
		cron:   c,
		logger: logger,
		Now:    time.Now,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if _, err := c.AddFunc(cfg.Spec, s.runScheduled); err != nil {
		return nil, fmt.Errorf("invalid batch schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start begins the scheduler.
func (s *BatchScheduler) Start() {
	s.logger.Info("starting batch scheduler",
		zap.String("schedule", s.cfg.Spec),
		zap.String("timezone", s.cfg.Location.String()),
		zap.Int("offset_days", s.cfg.OffsetDays))
	s.cron.Start()
}

// Stop cancels any running batch and waits for it to return.
func (s *BatchScheduler) Stop() {
	s.logger.Info("stopping batch scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
}

// TargetDay is the day a run starting at now publishes.
func (s *BatchScheduler) TargetDay(now time.Time) ledger.Day {
	return ledger.DayOf(now.In(s.cfg.Location)).AddDays(s.cfg.OffsetDays)
}

// RunNow runs one batch immediately for the current target day.
// It returns an error without running if a batch is already in progress.
func (s *BatchScheduler) RunNow(ctx context.Context) (*ledger.BatchResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("batch publish already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	day := s.TargetDay(s.Now())
	return s.batch.Run(ctx, day)
}

func (s *BatchScheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	result, err := s.RunNow(ctx)
	if err != nil {
		s.logger.Error("scheduled batch publish failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled batch publish finished",
		zap.String("day", result.Day.String()),
		zap.String("summary", result.Summary))
}
