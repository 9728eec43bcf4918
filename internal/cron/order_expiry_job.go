package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mercato-labs/mercato-backend/pkg/config"
	"github.com/mercato-labs/mercato-backend/pkg/logger"
	"gorm.io/gorm"
)

const defaultExpiryBatch = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, batch int) (int, error)
}

// OrderExpiryJobParams configure the stale pending-order sweep.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	Orders orderExpirer
	Config config.OrdersConfig
}

// NewOrderExpiryJob builds the job that cancels unpaid pending orders past
// their TTL and returns their stock.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.Config.PendingExpiry
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	batch := params.Config.ExpirySweepBatch
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders orderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpirePending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"batch":   j.batch,
		"expired": expired,
	})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return nil
}
