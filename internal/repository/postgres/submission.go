package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

type submissionRepository struct {
	db *sql.DB
}

// NewSubmissionRepository creates a new SubmissionRepository backed by Postgres.
func NewSubmissionRepository(db *sql.DB) repository.SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Begin(ctx context.Context, cartID string, version int, key string, total entity.Money) (*repository.Submission, error) {
	now := time.Now()

	// ON CONFLICT keeps the first key recorded for this cart version, so a
	// retried checkout reuses it.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO checkout_submissions (idempotency_key, cart_id, cart_version, total_cents, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (cart_id, cart_version) DO NOTHING`,
		key, cartID, version, int64(total), repository.SubmissionPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert submission: %w", err)
	}

	var sub repository.Submission
	var totalCents int64
	err = r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, cart_id, cart_version, total_cents, status, order_id, created_at, updated_at
		 FROM checkout_submissions WHERE cart_id = $1 AND cart_version = $2`,
		cartID, version,
	).Scan(&sub.IdempotencyKey, &sub.CartID, &sub.CartVersion, &totalCents, &sub.Status, &sub.OrderID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	sub.Total = entity.Money(totalCents)
	return &sub, nil
}

func (r *submissionRepository) Complete(ctx context.Context, key, orderID string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE checkout_submissions SET status = $1, order_id = $2, updated_at = $3 WHERE idempotency_key = $4",
		repository.SubmissionCompleted, orderID, time.Now(), key,
	)
	if err != nil {
		return fmt.Errorf("failed to complete submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &entity.NotFoundError{Kind: "submission", Ref: key}
	}
	return nil
}
