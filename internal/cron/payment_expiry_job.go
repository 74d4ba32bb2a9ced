package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultPaymentTTL      = 24 * time.Hour
	defaultExpiryBatch     = 100
	defaultExpiryMaxBatches = 20
)

// PaymentExpiryJobParams configure the stale payment sweeper.
type PaymentExpiryJobParams struct {
	Logger     *logger.Logger
	Expirer    paymentExpirer
	TTL        time.Duration
	BatchSize  int
	MaxBatches int
}

type paymentExpirer interface {
	ExpireStale(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

// NewPaymentExpiryJob builds the job that cancels pending payment sessions
// the buyer abandoned.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("payment expirer required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPaymentTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultExpiryMaxBatches
	}
	return &paymentExpiryJob{
		logg:       params.Logger,
		expirer:    params.Expirer,
		ttl:        ttl,
		batch:      batch,
		maxBatches: maxBatches,
	}, nil
}

type paymentExpiryJob struct {
	logg       *logger.Logger
	expirer    paymentExpirer
	ttl        time.Duration
	batch      int
	maxBatches int
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

// Run sweeps in batches until a batch comes back short. A failed batch is
// recorded and the sweep moves on so one bad row cannot stall the rest.
func (j *paymentExpiryJob) Run(ctx context.Context) error {
	var (
		errs  error
		total int
	)
	for i := 0; i < j.maxBatches; i++ {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		expired, err := j.expirer.ExpireStale(ctx, j.ttl, j.batch)
		total += expired
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("batch %d: %w", i+1, err))
			continue
		}
		if expired < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"ttl_hours":        j.ttl.Hours(),
		"payments_expired": total,
	})
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return errs
}
