// Package relay moves committed outbox rows to Pub/Sub.
//
// Rows of one aggregate share an ordering key. Once a row fails in a batch,
// later rows of the same aggregate wait for the next batch so consumers never
// see a payment settle before it started.
package relay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/routing"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Store interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	RecordAttempt(tx *gorm.DB, id uuid.UUID, cause error) error
	Retire(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error
}

type DeadLetters interface {
	Park(tx *gorm.DB, letter models.OutboxDLQ) error
}

type Router interface {
	Route(event models.OutboxEvent) (*routing.Route, error)
}

// Sink delivers one message and blocks until the broker acknowledges it.
type Sink interface {
	Send(ctx context.Context, topic string, msg pubsub.Message) error
}

type Options struct {
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
	SendTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 15 * time.Second
	}
	return o
}

type Params struct {
	Logger      *logger.Logger
	TX          Transactor
	Store       Store
	DeadLetters DeadLetters
	Router      Router
	Sink        Sink
	Metrics     *metrics.OutboxMetrics
	Options     Options
}

type Relay struct {
	logg    *logger.Logger
	tx      Transactor
	store   Store
	dead    DeadLetters
	router  Router
	sink    Sink
	metrics *metrics.OutboxMetrics
	opts    Options
}

func New(p Params) (*Relay, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"logger":       p.Logger != nil,
		"transactor":   p.TX != nil,
		"store":        p.Store != nil,
		"dead letters": p.DeadLetters != nil,
		"router":       p.Router != nil,
		"sink":         p.Sink != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("relay: missing %v", missing)
	}
	return &Relay{
		logg:    p.Logger,
		tx:      p.TX,
		store:   p.Store,
		dead:    p.DeadLetters,
		router:  p.Router,
		sink:    p.Sink,
		metrics: p.Metrics,
		opts:    p.Options.withDefaults(),
	}, nil
}

// Run drains batches back to back while rows keep coming, idles for the poll
// interval when the outbox is empty, and backs off after a failed batch.
func (r *Relay) Run(ctx context.Context) error {
	wait := newBackoff(r.opts.PollInterval, 10*time.Second)
	for {
		handled, err := r.Drain(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "relay.batch_failed", err)
			pause = wait.next()
		case handled == 0:
			wait.reset()
			pause = wait.idle()
		default:
			wait.reset()
		}
		if err := sleep(ctx, pause); err != nil {
			return err
		}
	}
}

// Drain processes one claimed batch inside a transaction and reports how
// many rows it looked at.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var handled int
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.ClaimBatch(tx, r.opts.BatchSize, r.opts.MaxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		handled = len(rows)
		if handled == 0 {
			return nil
		}
		r.metrics.ObserveBatch(handled)

		held := map[string]struct{}{}
		for _, row := range rows {
			key := orderingKey(row)
			if _, wait := held[key]; wait {
				continue
			}
			retry, err := r.deliver(ctx, tx, row)
			if err != nil {
				return err
			}
			if retry {
				held[key] = struct{}{}
			}
		}
		return nil
	})
	return handled, err
}

// deliver reports retry=true when the row stays pending; err is reserved for
// bookkeeping failures that abort the batch.
func (r *Relay) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (retry bool, err error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":    row.ID.String(),
		"event_type":   row.EventType,
		"ordering_key": orderingKey(row),
		"attempt":      row.AttemptCount + 1,
	})

	route, routeErr := r.router.Route(row)
	if routeErr == nil {
		ctx = r.logg.WithFields(ctx, map[string]any{"topic": route.Topic, "event_id": route.Envelope.EventID})
		routeErr = r.send(ctx, row, route)
	}
	switch {
	case routeErr == nil:
		if err := r.store.MarkPublished(tx, row.ID); err != nil {
			return false, fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.metrics.IncPublish(string(row.EventType), metrics.PublishOK)
		r.logg.Info(ctx, "relay.published")
		return false, nil
	case errors.Is(routeErr, routing.ErrPermanent):
		return false, r.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, routeErr)
	case row.AttemptCount+1 >= r.opts.MaxAttempts:
		return false, r.park(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, routeErr))
	}

	r.metrics.IncPublish(string(row.EventType), metrics.PublishRetry)
	r.logg.Warn(ctx, "relay.retry: "+routeErr.Error())
	if err := r.store.RecordAttempt(tx, row.ID, routeErr); err != nil {
		return false, fmt.Errorf("mark %s failed: %w", row.ID, err)
	}
	return true, nil
}

func (r *Relay) send(ctx context.Context, row models.OutboxEvent, route *routing.Route) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.opts.SendTimeout)
	defer cancel()
	return r.sink.Send(sendCtx, route.Topic, pubsub.Message{
		Data:        row.Payload,
		OrderingKey: orderingKey(row),
		Attributes: map[string]string{
			"event_id":       route.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

// park copies the row to the dead letter table and pins it at the attempt
// ceiling so it is never claimed again.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.metrics.IncPublish(string(row.EventType), metrics.PublishDeadLetter)
	r.logg.Warn(r.logg.WithField(ctx, "reason", reason), "relay.dead_letter: "+cause.Error())

	msg := cause.Error()
	if err := r.dead.Park(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("dead letter %s: %w", row.ID, err)
	}
	if err := r.store.Retire(tx, row.ID, cause, r.opts.MaxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	return nil
}

func orderingKey(row models.OutboxEvent) string {
	return string(row.AggregateType) + ":" + row.AggregateID.String()
}
