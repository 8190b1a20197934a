package entity

import (
	"encoding/json"
	"fmt"
)

// CartAggregate manages the state of a shopping cart by replaying events.
// Lines keep insertion order and are unique by key.
type CartAggregate struct {
	AggregateBase
	Lines []CartLine
}

// NewCartAggregate creates a new CartAggregate.
func NewCartAggregate(cartID string) *CartAggregate {
	return &CartAggregate{
		AggregateBase: AggregateBase{ID: cartID, Version: 0},
	}
}

// Find returns the index of the line with the given key, or -1.
func (a *CartAggregate) Find(key string) int {
	for i := range a.Lines {
		if a.Lines[i].Key == key {
			return i
		}
	}
	return -1
}

// ApplyEvent mutates the aggregate state based on the event.
func (a *CartAggregate) ApplyEvent(e Event) error {
	switch e := e.(type) {
	case ItemAddedToCart:
		key := e.Item.Key()
		if key == "" {
			return fmt.Errorf("cart item has neither sku nor product id")
		}
		if idx := a.Find(key); idx >= 0 {
			q := a.Lines[idx].Quantity + e.Delta
			if q <= 0 {
				a.removeAt(idx)
			} else {
				a.Lines[idx].Quantity = q
			}
		} else if e.Delta > 0 {
			a.Lines = append(a.Lines, CartLine{
				LineID:    e.LineID,
				Key:       key,
				ProductID: e.Item.ProductID,
				VariantID: e.Item.VariantID,
				SKU:       e.Item.SKU,
				Name:      e.Item.Name,
				Image:     e.Item.Image,
				UnitPrice: e.Item.Price,
				Color:     e.Item.Color,
				Size:      e.Item.Size,
				Quantity:  e.Delta,
				AddedAt:   e.At,
			})
		}
	case ItemRemovedFromCart:
		if idx := a.Find(e.Key); idx >= 0 {
			a.removeAt(idx)
		}
	case CartCleared:
		a.Lines = nil
	default:
		return fmt.Errorf("unknown event type for CartAggregate: %s", e.EventType())
	}
	a.Version++
	return nil
}

func (a *CartAggregate) removeAt(idx int) {
	a.Lines = append(a.Lines[:idx:idx], a.Lines[idx+1:]...)
}

// Rehydrate rebuilds the aggregate from a list of records.
func (a *CartAggregate) Rehydrate(records []EventStoreRecord) error {
	for _, rec := range records {
		var err error
		switch rec.EventType {
		case "ItemAddedToCart":
			var e ItemAddedToCart
			if err = json.Unmarshal(rec.Payload, &e); err == nil {
				err = a.ApplyEvent(e)
			}
		case "ItemRemovedFromCart":
			var e ItemRemovedFromCart
			if err = json.Unmarshal(rec.Payload, &e); err == nil {
				err = a.ApplyEvent(e)
			}
		case "CartCleared":
			var e CartCleared
			if err = json.Unmarshal(rec.Payload, &e); err == nil {
				err = a.ApplyEvent(e)
			}
		default:
			return fmt.Errorf("unknown event type in cart stream: %s", rec.EventType)
		}
		if err != nil {
			return fmt.Errorf("failed to apply cart event from stream: %w", err)
		}
	}
	return nil
}
