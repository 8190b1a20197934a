package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// uniqueViolation is the Postgres error code for a unique constraint failure.
const uniqueViolation = "23505"

type eventStore struct {
	db *sql.DB
}

// NewEventStore creates a cart event store backed by Postgres.
func NewEventStore(db *sql.DB) repository.EventStore {
	return &eventStore{db: db}
}

// SaveEvents appends events to a stream in a single statement. Writers of the
// same stream are serialized with a transaction-scoped advisory lock, and the
// (stream_id, version) constraint rejects anything that slips past it.
func (s *eventStore) SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	if len(events) == 0 {
		return nil
	}

	n := len(events)
	ids := make([]string, n)
	versions := make([]int64, n)
	types := make([]string, n)
	payloads := make([]string, n)
	for i, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
		}
		ids[i] = uuid.NewString()
		versions[i] = int64(expectedVersion + i + 1)
		types[i] = event.EventType()
		payloads[i] = string(payload)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", streamID); err != nil {
		return fmt.Errorf("failed to lock stream %s: %w", streamID, err)
	}

	var current int
	err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = $1", streamID).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to get current stream version: %w", err)
	}
	if current != expectedVersion {
		return fmt.Errorf("%w: stream %s expected version %d, got %d", repository.ErrConcurrency, streamID, expectedVersion, current)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, stream_id, stream_type, version, event_type, payload, created_at)
		SELECT e.id, $1, $2, e.version, e.event_type, e.payload::jsonb, $3
		FROM unnest($4::text[], $5::int[], $6::text[], $7::text[]) AS e(id, version, event_type, payload)`,
		streamID, streamType, time.Now().UTC(),
		pq.Array(ids), pq.Array(versions), pq.Array(types), pq.Array(payloads),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: stream %s: %s", repository.ErrConcurrency, streamID, pqErr.Message)
		}
		return fmt.Errorf("failed to append %d events to %s: %w", n, streamID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *eventStore) LoadEvents(ctx context.Context, streamID string, afterVersion int) ([]entity.EventStoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stream_id, stream_type, version, event_type, payload, created_at
		FROM events WHERE stream_id = $1 AND version > $2 ORDER BY version`, streamID, afterVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for stream %s: %w", streamID, err)
	}
	defer rows.Close()

	var records []entity.EventStoreRecord
	for rows.Next() {
		var rec entity.EventStoreRecord
		if err := rows.Scan(&rec.ID, &rec.StreamID, &rec.StreamType, &rec.Version, &rec.EventType, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events for %s: %w", streamID, err)
	}
	return records, nil
}
