// Package cart keeps shopping carts: the in-memory ledger with its key and
// quantity rules, and the service that journals every change as events.
package cart

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/pricing"
)

// Mutation is the outcome of one ledger operation: the events it produced
// and the ledger version before and after. A mutation without events left the
// cart untouched.
type Mutation struct {
	Events      []entity.Event
	FromVersion int
	ToVersion   int
}

// Changed reports whether the mutation produced any event.
func (m Mutation) Changed() bool {
	return len(m.Events) > 0
}

// Ledger is a single cart. Every operation holds the ledger lock for its whole
// duration, so overlapping calls never observe a half-applied change. The
// version grows by one per applied event.
type Ledger struct {
	mu  sync.Mutex
	agg *entity.CartAggregate
	now func() time.Time
}

// NewLedger returns an empty cart.
func NewLedger(cartID string) *Ledger {
	return &Ledger{agg: entity.NewCartAggregate(cartID), now: time.Now}
}

// Restore rebuilds a cart from its event history.
func Restore(cartID string, records []entity.EventStoreRecord) (*Ledger, error) {
	l := NewLedger(cartID)
	if err := l.agg.Rehydrate(records); err != nil {
		return nil, fmt.Errorf("failed to rehydrate cart %s: %w", cartID, err)
	}
	return l, nil
}

// Advance applies events that other writers appended after the ledger's
// version. Records must continue the stream without gaps.
func (l *Ledger) Advance(records []entity.EventStoreRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, rec := range records {
		if want := l.agg.GetVersion() + 1; rec.Version != want {
			return fmt.Errorf("cart %s: expected event version %d, got %d", l.agg.GetAggregateID(), want, rec.Version)
		}
		if err := l.agg.Rehydrate(records[i : i+1]); err != nil {
			return fmt.Errorf("failed to advance cart %s: %w", l.agg.GetAggregateID(), err)
		}
	}
	return nil
}

// ID returns the cart id.
func (l *Ledger) ID() string {
	return l.agg.GetAggregateID()
}

// Version returns the number of events applied so far.
func (l *Ledger) Version() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agg.GetVersion()
}

// Quantity returns the quantity held under key, 0 when absent.
func (l *Ledger) Quantity(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx := l.agg.Find(key); idx >= 0 {
		return l.agg.Lines[idx].Quantity
	}
	return 0
}

// AddToCart changes the quantity under the item's key (SKU, else product id)
// by delta. An existing line absorbs the delta and disappears once its
// quantity drops to zero or below. A missing line is only created for a
// positive delta, with the item's descriptive fields copied into it.
func (l *Ledger) AddToCart(item entity.CartItem, delta int) (Mutation, error) {
	key := item.Key()
	if key == "" {
		return Mutation{}, &entity.ValidationError{Field: "item", Reason: "sku or product id is required"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.agg.GetVersion()
	if delta == 0 || (delta < 0 && l.agg.Find(key) < 0) {
		return Mutation{FromVersion: from, ToVersion: from}, nil
	}

	e := entity.ItemAddedToCart{
		CartID: l.agg.GetAggregateID(),
		Item:   item,
		Delta:  delta,
		At:     l.now().UTC(),
	}
	if l.agg.Find(key) < 0 {
		e.LineID = uuid.NewString()
	}
	return l.apply(from, e)
}

// RemoveFromCart removes every line matching ref by SKU, product id or line id
// and returns the quantity removed. When nothing matches it fails with a
// NotFoundError and the cart is unchanged.
func (l *Ledger) RemoveFromCart(ref string) (int, Mutation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.agg.GetVersion()
	var (
		events  []entity.Event
		removed int
	)
	for _, line := range l.agg.Lines {
		if !line.Matches(ref) {
			continue
		}
		removed += line.Quantity
		events = append(events, entity.ItemRemovedFromCart{
			CartID:   l.agg.GetAggregateID(),
			Key:      line.Key,
			Quantity: line.Quantity,
			At:       l.now().UTC(),
		})
	}
	if len(events) == 0 {
		return 0, Mutation{FromVersion: from, ToVersion: from}, &entity.NotFoundError{Kind: "cart line", Ref: ref}
	}

	m, err := l.apply(from, events...)
	if err != nil {
		return 0, m, err
	}
	return removed, m, nil
}

// ClearCart empties the cart. Clearing an empty cart records nothing.
func (l *Ledger) ClearCart() Mutation {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.agg.GetVersion()
	if len(l.agg.Lines) == 0 {
		return Mutation{FromVersion: from, ToVersion: from}
	}
	// CartCleared cannot fail to apply.
	m, _ := l.apply(from, entity.CartCleared{CartID: l.agg.GetAggregateID(), At: l.now().UTC()})
	return m
}

// Consume takes the lines of an ordered snapshot out of the cart. When the
// cart is still at the snapshot's version it is simply cleared. Otherwise each
// ordered key gives up the ordered quantity, and lines added or grown since
// the snapshot keep the difference.
func (l *Ledger) Consume(ordered entity.CartSnapshot) Mutation {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.agg.GetVersion()
	if len(l.agg.Lines) == 0 {
		return Mutation{FromVersion: from, ToVersion: from}
	}
	at := l.now().UTC()
	if from == ordered.Version {
		m, _ := l.apply(from, entity.CartCleared{CartID: l.agg.GetAggregateID(), At: at})
		return m
	}

	var events []entity.Event
	for _, o := range ordered.Lines {
		idx := l.agg.Find(o.Key)
		if idx < 0 || o.Quantity <= 0 {
			continue
		}
		cur := l.agg.Lines[idx]
		if cur.Quantity <= o.Quantity {
			events = append(events, entity.ItemRemovedFromCart{
				CartID:   l.agg.GetAggregateID(),
				Key:      cur.Key,
				Quantity: cur.Quantity,
				At:       at,
			})
			continue
		}
		events = append(events, entity.ItemAddedToCart{
			CartID: l.agg.GetAggregateID(),
			Item:   itemOf(cur),
			Delta:  -o.Quantity,
			At:     at,
		})
	}
	if len(events) == 0 {
		return Mutation{FromVersion: from, ToVersion: from}
	}
	// Every event targets a line that exists, so none can fail to apply.
	m, _ := l.apply(from, events...)
	return m
}

func itemOf(line entity.CartLine) entity.CartItem {
	return entity.CartItem{
		ProductID: line.ProductID,
		VariantID: line.VariantID,
		SKU:       line.SKU,
		Name:      line.Name,
		Image:     line.Image,
		Price:     line.UnitPrice,
		Color:     line.Color,
		Size:      line.Size,
	}
}

// CalculateTotal returns the sum of unit price times quantity over all lines.
func (l *Ledger) CalculateTotal() entity.Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	return pricing.CartTotal(l.agg.Lines)
}

// Snapshot returns a copy of the cart at its current version.
func (l *Ledger) Snapshot() entity.CartSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return entity.CartSnapshot{
		CartID:  l.agg.GetAggregateID(),
		Version: l.agg.GetVersion(),
		Lines:   append([]entity.CartLine{}, l.agg.Lines...),
		TakenAt: l.now().UTC(),
	}
}

// apply runs the events against the aggregate. Callers hold l.mu.
func (l *Ledger) apply(from int, events ...entity.Event) (Mutation, error) {
	for _, e := range events {
		if err := l.agg.ApplyEvent(e); err != nil {
			return Mutation{FromVersion: from, ToVersion: l.agg.GetVersion()}, err
		}
	}
	return Mutation{Events: events, FromVersion: from, ToVersion: l.agg.GetVersion()}, nil
}
