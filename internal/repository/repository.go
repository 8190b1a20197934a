package repository

import (
	"context"
	"errors"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// ErrConcurrency is returned by SaveEvents when the stream moved past the
// expected version.
var ErrConcurrency = errors.New("concurrency exception")

// EventStore handles appending and loading events for an aggregate stream.
type EventStore interface {
	SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error
	// LoadEvents returns the events of a stream with a version above
	// afterVersion, in order. Zero loads the whole stream.
	LoadEvents(ctx context.Context, streamID string, afterVersion int) ([]entity.EventStoreRecord, error)
}

// Submission statuses.
const (
	SubmissionPending   = "pending"
	SubmissionCompleted = "completed"
)

// Submission records one checkout attempt for a cart version. The idempotency
// key is reused when the same cart version is submitted again after a
// transport failure.
type Submission struct {
	IdempotencyKey string
	CartID         string
	CartVersion    int
	Total          entity.Money
	Status         string
	OrderID        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SubmissionRepository handles persistence for checkout submissions.
type SubmissionRepository interface {
	// Begin returns the existing submission for (cartID, version) or records
	// a new pending one with the given key.
	Begin(ctx context.Context, cartID string, version int, key string, total entity.Money) (*Submission, error)
	Complete(ctx context.Context, key, orderID string) error
}
