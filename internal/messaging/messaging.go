package messaging

import (
	"context"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// Topics used by the storefront.
const (
	TopicCartEvents      = "cart.events"
	TopicOrdersSubmitted = "orders.submitted"
	TopicStockUpdates    = "catalog.stock"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Subscriber defines an interface for subscribing to a message topic.
type Subscriber interface {
	Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error)
}

// Envelope wraps a domain event with its type so consumers can dispatch
// without guessing the payload shape.
type Envelope struct {
	Type       string       `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Payload    entity.Event `json:"payload"`
}

// NewEnvelope wraps e, stamped with the current time.
func NewEnvelope(e entity.Event) Envelope {
	return Envelope{Type: e.EventType(), OccurredAt: time.Now().UTC(), Payload: e}
}
