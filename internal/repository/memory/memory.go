// Package memory provides in-process implementations of the repository
// interfaces, used in tests and when no database is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

type eventStore struct {
	mu      sync.Mutex
	streams map[string][]entity.EventStoreRecord
}

// NewEventStore creates an empty in-memory EventStore.
func NewEventStore() repository.EventStore {
	return &eventStore{streams: make(map[string][]entity.EventStoreRecord)}
}

func (s *eventStore) SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamID]
	if current := len(stream); current != expectedVersion {
		return fmt.Errorf("%w: expected version %d, got %d", repository.ErrConcurrency, expectedVersion, current)
	}

	version := expectedVersion
	now := time.Now()
	for _, event := range events {
		version++
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
		}
		stream = append(stream, entity.EventStoreRecord{
			ID:         uuid.NewString(),
			StreamID:   streamID,
			StreamType: streamType,
			Version:    version,
			EventType:  event.EventType(),
			Payload:    payload,
			CreatedAt:  now,
		})
	}
	s.streams[streamID] = stream
	return nil
}

func (s *eventStore) LoadEvents(ctx context.Context, streamID string, afterVersion int) ([]entity.EventStoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.streams[streamID]
	if afterVersion < 0 {
		afterVersion = 0
	}
	if afterVersion >= len(stream) {
		return nil, nil
	}
	return append([]entity.EventStoreRecord(nil), stream[afterVersion:]...), nil
}

type submissionRepository struct {
	mu     sync.Mutex
	byKey  map[string]*repository.Submission
	byCart map[string]string
}

// NewSubmissionRepository creates an empty in-memory SubmissionRepository.
func NewSubmissionRepository() repository.SubmissionRepository {
	return &submissionRepository{
		byKey:  make(map[string]*repository.Submission),
		byCart: make(map[string]string),
	}
}

func cartVersionKey(cartID string, version int) string {
	return fmt.Sprintf("%s@%d", cartID, version)
}

func (r *submissionRepository) Begin(ctx context.Context, cartID string, version int, key string, total entity.Money) (*repository.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byCart[cartVersionKey(cartID, version)]; ok {
		cp := *r.byKey[existing]
		return &cp, nil
	}

	now := time.Now()
	sub := &repository.Submission{
		IdempotencyKey: key,
		CartID:         cartID,
		CartVersion:    version,
		Total:          total,
		Status:         repository.SubmissionPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.byKey[key] = sub
	r.byCart[cartVersionKey(cartID, version)] = key

	cp := *sub
	return &cp, nil
}

func (r *submissionRepository) Complete(ctx context.Context, key, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byKey[key]
	if !ok {
		return &entity.NotFoundError{Kind: "submission", Ref: key}
	}
	sub.Status = repository.SubmissionCompleted
	sub.OrderID = orderID
	sub.UpdatedAt = time.Now()
	return nil
}
