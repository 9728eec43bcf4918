package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mercato-labs/mercato-backend/pkg/config"
	"github.com/mercato-labs/mercato-backend/pkg/logger"
)

type fakeOrderExpirer struct {
	lastCutoff time.Time
	lastBatch  int
	calls      int
	err        error
}

func (f *fakeOrderExpirer) ExpirePending(_ context.Context, cutoff time.Time, batch int) (int, error) {
	f.calls++
	f.lastCutoff = cutoff
	f.lastBatch = batch
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func newOrderExpiryJob(t *testing.T, expirer *fakeOrderExpirer, cfg config.OrdersConfig) *orderExpiryJob {
	t.Helper()
	jobIface, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Orders: expirer,
		Config: cfg,
	})
	if err != nil {
		t.Fatalf("NewOrderExpiryJob: %v", err)
	}
	job, ok := jobIface.(*orderExpiryJob)
	if !ok {
		t.Fatalf("expected orderExpiryJob, got %T", jobIface)
	}
	return job
}

func TestOrderExpiryJobUsesConfiguredTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expirer := &fakeOrderExpirer{}
	job := newOrderExpiryJob(t, expirer, config.OrdersConfig{
		PendingExpiry:    48 * time.Hour,
		ExpirySweepBatch: 25,
	})
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-48 * time.Hour)
	if !expirer.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, expirer.lastCutoff)
	}
	if expirer.lastBatch != 25 {
		t.Fatalf("expected batch 25, got %d", expirer.lastBatch)
	}
	if expirer.calls != 1 {
		t.Fatalf("expected one sweep, got %d", expirer.calls)
	}
}

func TestOrderExpiryJobDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expirer := &fakeOrderExpirer{}
	job := newOrderExpiryJob(t, expirer, config.OrdersConfig{})
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !expirer.lastCutoff.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", expirer.lastCutoff)
	}
	if expirer.lastBatch != defaultExpiryBatch {
		t.Fatalf("expected default batch, got %d", expirer.lastBatch)
	}
}

func TestOrderExpiryJobPropagatesError(t *testing.T) {
	expirer := &fakeOrderExpirer{err: errors.New("db down")}
	job := newOrderExpiryJob(t, expirer, config.OrdersConfig{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
