package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/messaging"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/repository"
)

// Catalog is the part of the product catalog the cart needs: building the
// item snapshot for a selection and looking up the stock behind it.
type Catalog interface {
	Resolve(productID, sku string) (entity.CartItem, error)
	Stock(productID, sku string, inCart int) (entity.StockLevel, error)
}

type cartEntry struct {
	mu     sync.Mutex
	ledger *Ledger

	// Guarded by Service.mu.
	refs     int
	lastUsed time.Time
}

// Service orchestrates shopping cart logic using Event Sourcing. Ledgers are
// cached per cart and caught up with their stream on every access, so writes
// made by other instances sharing the store are seen. Idle entries are
// dropped by Sweep.
type Service struct {
	eventStore repository.EventStore
	catalog    Catalog
	publisher  messaging.Publisher // optional
	now        func() time.Time

	mu    sync.Mutex
	carts map[string]*cartEntry
}

func NewService(eventStore repository.EventStore, catalog Catalog, publisher messaging.Publisher) *Service {
	return &Service{
		eventStore: eventStore,
		catalog:    catalog,
		publisher:  publisher,
		now:        time.Now,
		carts:      make(map[string]*cartEntry),
	}
}

// acquire returns the locked entry of a cart. Every acquire is paired with
// release.
func (s *Service) acquire(cartID string) *cartEntry {
	s.mu.Lock()
	e, ok := s.carts[cartID]
	if !ok {
		e = &cartEntry{}
		s.carts[cartID] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return e
}

func (s *Service) release(e *cartEntry) {
	e.mu.Unlock()

	s.mu.Lock()
	e.refs--
	e.lastUsed = s.now()
	s.mu.Unlock()
}

// Sweep drops cached ledgers not used for idle and returns how many went.
// Their streams stay in the store.
func (s *Service) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-idle)
	n := 0
	for id, e := range s.carts {
		if e.refs == 0 && !e.lastUsed.After(cutoff) {
			delete(s.carts, id)
			n++
		}
	}
	return n
}

// Cached returns how many ledgers are currently cached.
func (s *Service) Cached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}

// load returns the ledger of a cart, rehydrating it or catching it up with
// events appended elsewhere. Callers hold e.mu.
func (s *Service) load(ctx context.Context, cartID string, e *cartEntry) (*Ledger, error) {
	if e.ledger != nil {
		records, err := s.eventStore.LoadEvents(ctx, cartID, e.ledger.Version())
		if err != nil {
			return nil, fmt.Errorf("failed to load cart history: %w", err)
		}
		err = e.ledger.Advance(records)
		if err == nil {
			return e.ledger, nil
		}
		slog.Error("Cached cart out of step with its stream, replaying", "cart_id", cartID, "err", err)
		e.ledger = nil
	}

	records, err := s.eventStore.LoadEvents(ctx, cartID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart history: %w", err)
	}
	l, err := Restore(cartID, records)
	if err != nil {
		return nil, err
	}
	e.ledger = l
	return l, nil
}

// mutate runs fn against the cart and appends the resulting events. On a
// failed append the cached ledger is dropped so the next call replays the
// stream instead of trusting unsaved state.
func (s *Service) mutate(ctx context.Context, cartID string, fn func(l *Ledger) (Mutation, error)) (entity.CartSnapshot, error) {
	e := s.acquire(cartID)
	defer s.release(e)

	l, err := s.load(ctx, cartID, e)
	if err != nil {
		return entity.CartSnapshot{}, err
	}

	m, err := fn(l)
	if err != nil {
		if m.ToVersion != m.FromVersion {
			e.ledger = nil
		}
		return entity.CartSnapshot{}, err
	}
	if !m.Changed() {
		return l.Snapshot(), nil
	}

	if err := s.eventStore.SaveEvents(ctx, cartID, entity.StreamCart, m.FromVersion, m.Events); err != nil {
		e.ledger = nil
		return entity.CartSnapshot{}, fmt.Errorf("failed to save cart events: %w", err)
	}

	s.publish(ctx, cartID, m.Events)
	return l.Snapshot(), nil
}

func (s *Service) publish(ctx context.Context, cartID string, events []entity.Event) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := s.publisher.PublishEvent(ctx, messaging.TopicCartEvents, cartID, messaging.NewEnvelope(ev)); err != nil {
			slog.Error("Failed to publish cart event", "cart_id", cartID, "event", ev.EventType(), "err", err)
		}
	}
}

// GetCart returns the current state of a cart.
func (s *Service) GetCart(ctx context.Context, cartID string) (entity.CartSnapshot, error) {
	e := s.acquire(cartID)
	defer s.release(e)

	l, err := s.load(ctx, cartID, e)
	if err != nil {
		return entity.CartSnapshot{}, err
	}
	return l.Snapshot(), nil
}

// AddItem changes the quantity of a product (and variant) in the cart by qty.
// Increments are checked against the known stock, counting what the cart
// already holds.
func (s *Service) AddItem(ctx context.Context, cartID, productID, sku string, qty int) (entity.CartSnapshot, error) {
	slog.Info("Service: Adding item to cart", "cart_id", cartID, "product_id", productID, "sku", sku, "qty", qty)

	if qty == 0 {
		return entity.CartSnapshot{}, &entity.ValidationError{Field: "quantity", Reason: "must not be zero"}
	}
	item, err := s.catalog.Resolve(productID, sku)
	if err != nil {
		return entity.CartSnapshot{}, err
	}

	return s.mutate(ctx, cartID, func(l *Ledger) (Mutation, error) {
		if qty > 0 {
			inCart := l.Quantity(item.Key())
			level, err := s.catalog.Stock(item.ProductID, item.SKU, inCart)
			if err != nil {
				return Mutation{}, err
			}
			if !level.Covers(qty) {
				return Mutation{}, &entity.InsufficientStockError{Lines: []entity.Shortage{{
					Key:       item.Key(),
					ProductID: item.ProductID,
					SKU:       item.SKU,
					Name:      item.Name,
					Requested: inCart + qty,
					Available: level.OnHand,
				}}}
			}
		}
		return l.AddToCart(item, qty)
	})
}

// RemoveItem removes the lines matching ref and returns the updated cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, ref string) (entity.CartSnapshot, int, error) {
	slog.Info("Service: Removing item from cart", "cart_id", cartID, "ref", ref)

	var removed int
	snap, err := s.mutate(ctx, cartID, func(l *Ledger) (Mutation, error) {
		n, m, err := l.RemoveFromCart(ref)
		removed = n
		return m, err
	})
	if err != nil {
		return entity.CartSnapshot{}, 0, err
	}
	return snap, removed, nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, cartID string) (entity.CartSnapshot, error) {
	slog.Info("Service: Clearing cart", "cart_id", cartID)
	return s.mutate(ctx, cartID, func(l *Ledger) (Mutation, error) {
		return l.ClearCart(), nil
	})
}

// ClearOrdered removes what an order consumed. If the cart has not moved
// since the ordered snapshot it is cleared; otherwise only the ordered
// quantities are taken out and later additions stay.
func (s *Service) ClearOrdered(ctx context.Context, ordered entity.CartSnapshot) (entity.CartSnapshot, error) {
	slog.Info("Service: Removing ordered lines from cart", "cart_id", ordered.CartID, "version", ordered.Version)
	return s.mutate(ctx, ordered.CartID, func(l *Ledger) (Mutation, error) {
		return l.Consume(ordered), nil
	})
}
