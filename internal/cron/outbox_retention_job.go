package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	day                 = 24 * time.Hour
	outboxRetentionDays = 30
	dlqRetentionDays    = 90
)

// pruner deletes rows older than cutoff and reports how many went.
type pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure outbox and dead-letter pruning. DLQ is
// optional. Zero retention values fall back to 30 and 90 days.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Outbox       pruner
	DLQ          pruner
	Retention    int
	DLQRetention int
}

type retentionTarget struct {
	name  string
	rows  pruner
	keep  time.Duration
	field string
}

type outboxRetentionJob struct {
	logg    *logger.Logger
	targets []retentionTarget
	now     func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox repository required")
	}
	targets := []retentionTarget{{
		name:  "published outbox",
		rows:  params.Outbox,
		keep:  daysOr(params.Retention, outboxRetentionDays),
		field: "rows_deleted",
	}}
	if params.DLQ != nil {
		targets = append(targets, retentionTarget{
			name:  "outbox dlq",
			rows:  params.DLQ,
			keep:  daysOr(params.DLQRetention, dlqRetentionDays),
			field: "dlq_deleted",
		})
	}
	return &outboxRetentionJob{logg: params.Logger, targets: targets, now: time.Now}, nil
}

func daysOr(days, fallback int) time.Duration {
	if days <= 0 {
		days = fallback
	}
	return time.Duration(days) * day
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run prunes every target even when an earlier one fails.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	fields := make(map[string]any, len(j.targets))
	var errs error
	for _, target := range j.targets {
		deleted, err := target.rows.PruneBefore(ctx, now.Add(-target.keep))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prune %s: %w", target.name, err))
		}
		fields[target.field] = deleted
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "outbox retention cleanup complete")
	return errs
}
