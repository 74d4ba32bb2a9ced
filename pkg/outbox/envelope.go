package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	Source string     `json:"source"`
}

// Actor sources.
const (
	SourceBuyer   = "buyer"
	SourceGateway = "gateway"
	SourceCron    = "cron"
)

// BuyerActor attributes an event to an authenticated buyer.
func BuyerActor(userID uuid.UUID) *ActorRef {
	return &ActorRef{UserID: &userID, Source: SourceBuyer}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
