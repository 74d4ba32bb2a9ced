package enums

// OutboxAggregateType is the kind of entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayment OutboxAggregateType = "payment"
)

var aggregateTypes = set[OutboxAggregateType]{AggregateOrder, AggregatePayment}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

// OutboxEventType names a domain event. The router picks a topic from it.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order_created"
	EventOrderCanceled  OutboxEventType = "order_canceled"
	EventPaymentStarted OutboxEventType = "payment_started"
	EventPaymentSettled OutboxEventType = "payment_settled"
	EventPaymentFailed  OutboxEventType = "payment_failed"
	EventPaymentExpired OutboxEventType = "payment_expired"
)

var eventTypes = set[OutboxEventType]{
	EventOrderCreated, EventOrderCanceled,
	EventPaymentStarted, EventPaymentSettled, EventPaymentFailed, EventPaymentExpired,
}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }
