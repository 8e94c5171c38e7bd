package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/barsheet-engine/ledger"
)

func TestNewBatchScheduler_InvalidSpec(t *testing.T) {
	_, err := NewBatchScheduler(nil, ScheduleConfig{Spec: "every day"}, nil)

	assert.Error(t, err)
}

func TestTargetDay_UsesLocationAndOffset(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	s, err := NewBatchScheduler(nil, ScheduleConfig{Spec: "10 18 * * *", Location: loc, OffsetDays: -1}, nil)
	require.NoError(t, err)

	// 20:00 UTC on June 1 is already June 2 at +05:30; yesterday there is June 1
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, ledger.NewDay(2025, 6, 1), s.TargetDay(now))

	s.cfg.OffsetDays = 0
	assert.Equal(t, ledger.NewDay(2025, 6, 2), s.TargetDay(now))
}

func TestRunNow_PublishesTargetDay(t *testing.T) {
	ts := setupTestServer(t)
	ts.loadScenario(t, "batch-example")

	s, err := NewBatchScheduler(ts.handler.Batch, ScheduleConfig{Spec: "10 18 * * *"}, nil)
	require.NoError(t, err)
	s.Now = func() time.Time { return testNow }

	result, err := s.RunNow(t.Context())

	require.NoError(t, err)
	assert.Equal(t, ledger.NewDay(2025, 6, 1), result.Day)
	assert.Equal(t, []ledger.ShopID{1}, result.SuccessfulShopIDs)
	assert.Equal(t, 1, result.FailedShops)
}

func TestStartStop(t *testing.T) {
	ts := setupTestServer(t)

	s, err := NewBatchScheduler(ts.handler.Batch, ScheduleConfig{Spec: "@every 1h"}, nil)
	require.NoError(t, err)

	s.Start()
	s.Stop()

	// A stopped scheduler's base context is cancelled
	assert.Error(t, s.ctx.Err())
}

func TestNewBatchScheduler_Timeout(t *testing.T) {
	s, err := NewBatchScheduler(nil, ScheduleConfig{Spec: "10 18 * * *", Timeout: 90 * time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, s.cfg.Timeout)

	s, err = NewBatchScheduler(nil, ScheduleConfig{Spec: "10 18 * * *"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultRunTimeout, s.cfg.Timeout)
}
