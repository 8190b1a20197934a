// Package checkout turns a validated cart into an order on the backend.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/pricing"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/reconcile"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/session"
)

// DefaultAttempts is how many validation rounds are tried before giving up
// on a cart that keeps changing underneath.
const DefaultAttempts = 3

// Carts is the cart side of checkout.
type Carts interface {
	GetCart(ctx context.Context, cartID string) (entity.CartSnapshot, error)
	ClearOrdered(ctx context.Context, ordered entity.CartSnapshot) (entity.CartSnapshot, error)
}

// Validator checks a cart snapshot against current stock.
type Validator interface {
	Validate(ctx context.Context, snap entity.CartSnapshot) (*reconcile.Report, error)
}

// OrderGateway submits orders to the backend. An empty token means a guest
// order.
type OrderGateway interface {
	CreateOrder(ctx context.Context, req entity.OrderRequest, token, idempotencyKey string) (*entity.Order, error)
}

// Result is a placed order.
type Result struct {
	Order          *entity.Order `json:"order"`
	IdempotencyKey string        `json:"idempotencyKey"`
	Total          entity.Money  `json:"total"`
	Display        string        `json:"display"`
}

// Service orchestrates checkout.
type Service struct {
	carts       Carts
	validator   Validator
	orders      OrderGateway
	submissions repository.SubmissionRepository
	publisher   messaging.Publisher // optional
	attempts    int
	now         func() time.Time
}

func NewService(
	carts Carts,
	validator Validator,
	orders OrderGateway,
	submissions repository.SubmissionRepository,
	publisher messaging.Publisher,
) *Service {
	return &Service{
		carts:       carts,
		validator:   validator,
		orders:      orders,
		submissions: submissions,
		publisher:   publisher,
		attempts:    DefaultAttempts,
		now:         time.Now,
	}
}

// Begin is the first stock check when the shopper asks to buy. The report
// is returned even when lines are short, together with the
// InsufficientStockError naming them.
func (s *Service) Begin(ctx context.Context, sess *session.Session) (*reconcile.Report, error) {
	slog.Info("Service: Validating cart for checkout", "cart_id", sess.CartID)

	_, report, err := s.validate(ctx, sess.CartID)
	if err != nil {
		return nil, err
	}
	return report, report.Err()
}

// Finalize validates the buyer and the stock again, submits the order and
// clears the cart. Any failure leaves the cart as it was.
func (s *Service) Finalize(ctx context.Context, sess *session.Session, contact Contact) (*Result, error) {
	slog.Info("Service: Finalizing checkout", "cart_id", sess.CartID, "guest", !sess.Authenticated())

	b, err := buyer(sess, contact)
	if err != nil {
		return nil, err
	}

	snap, report, err := s.validate(ctx, sess.CartID)
	if err != nil {
		return nil, err
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	total := pricing.CartTotal(snap.Lines)
	sub, err := s.submissions.Begin(ctx, snap.CartID, snap.Version, uuid.NewString(), total)
	if err != nil {
		return nil, fmt.Errorf("failed to record checkout submission: %w", err)
	}

	if sub.Status == repository.SubmissionCompleted {
		// Placed earlier, but the cart was not cleared afterwards.
		slog.Info("Order already submitted for cart version", "cart_id", snap.CartID, "version", snap.Version, "order_id", sub.OrderID)
		s.clear(ctx, snap)
		return &Result{
			Order:          &entity.Order{ID: sub.OrderID, Total: sub.Total, Status: entity.OrderPending},
			IdempotencyKey: sub.IdempotencyKey,
			Total:          sub.Total,
			Display:        pricing.Format(sub.Total),
		}, nil
	}

	req := entity.OrderRequest{
		Buyer:     b,
		Lines:     orderLines(snap.Lines),
		Total:     total,
		Timestamp: s.now().UTC(),
	}
	order, err := s.orders.CreateOrder(ctx, req, sess.Token, sub.IdempotencyKey)
	if err != nil {
		slog.Error("Order submission failed", "cart_id", snap.CartID, "key", sub.IdempotencyKey, "retryable", entity.IsRetryable(err), "err", err)
		return nil, err
	}

	if err := s.submissions.Complete(ctx, sub.IdempotencyKey, order.ID); err != nil {
		slog.Error("Failed to mark submission completed", "key", sub.IdempotencyKey, "err", err)
	}
	s.clear(ctx, snap)

	if s.publisher != nil {
		event := entity.OrderSubmitted{
			OrderID:        order.ID,
			CartID:         snap.CartID,
			IdempotencyKey: sub.IdempotencyKey,
			Lines:          req.Lines,
			Total:          total,
			Guest:          !sess.Authenticated(),
			SubmittedAt:    req.Timestamp,
		}
		if err := s.publisher.PublishEvent(ctx, messaging.TopicOrdersSubmitted, order.ID, messaging.NewEnvelope(event)); err != nil {
			slog.Error("Failed to publish OrderSubmitted", "order_id", order.ID, "err", err)
		}
	}

	slog.Info("Order submitted", "order_id", order.ID, "cart_id", snap.CartID, "total", total)
	return &Result{Order: order, IdempotencyKey: sub.IdempotencyKey, Total: total, Display: pricing.Format(total)}, nil
}

// validate runs the reconciler on a snapshot and keeps the result only when
// the cart did not move while it ran.
func (s *Service) validate(ctx context.Context, cartID string) (entity.CartSnapshot, *reconcile.Report, error) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		snap, err := s.carts.GetCart(ctx, cartID)
		if err != nil {
			return entity.CartSnapshot{}, nil, err
		}
		if snap.Empty() {
			return entity.CartSnapshot{}, nil, &entity.ValidationError{Field: "cart", Reason: "cart is empty"}
		}

		report, err := s.validator.Validate(ctx, snap)
		if err != nil {
			return entity.CartSnapshot{}, nil, err
		}

		current, err := s.carts.GetCart(ctx, cartID)
		if err != nil {
			return entity.CartSnapshot{}, nil, err
		}
		if current.Version == snap.Version {
			return snap, report, nil
		}
		slog.Info("Cart changed during validation, retrying", "cart_id", cartID, "attempt", attempt, "from", snap.Version, "to", current.Version)
	}
	return entity.CartSnapshot{}, nil, entity.ErrCartChanged
}

// clear takes the ordered lines out of the cart. Lines added while the order
// was in flight stay. The order stands even if this fails, so the error is
// only logged.
func (s *Service) clear(ctx context.Context, ordered entity.CartSnapshot) {
	if _, err := s.carts.ClearOrdered(ctx, ordered); err != nil {
		slog.Error("Failed to clear cart after order", "cart_id", ordered.CartID, "err", err)
	}
}

func orderLines(lines []entity.CartLine) []entity.OrderLine {
	out := make([]entity.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, entity.OrderLine{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			SKU:       l.SKU,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Color:     l.Color,
			Size:      l.Size,
		})
	}
	return out
}
