package entity

import "time"

// Stream types used by the event store.
const (
	StreamCart = "cart"
)

// --- Events ---

// ItemAddedToCart is emitted when a shopper changes the quantity of a cart key.
// Delta is signed: a negative delta decrements the line and removes it once the
// quantity reaches zero.
type ItemAddedToCart struct {
	CartID string    `json:"cart_id"`
	LineID string    `json:"line_id"`
	Item   CartItem  `json:"item"`
	Delta  int       `json:"delta"`
	At     time.Time `json:"at"`
}

func (e ItemAddedToCart) EventType() string { return "ItemAddedToCart" }

// ItemRemovedFromCart is emitted when a line is removed explicitly.
type ItemRemovedFromCart struct {
	CartID   string    `json:"cart_id"`
	Key      string    `json:"key"`
	Quantity int       `json:"quantity"`
	At       time.Time `json:"at"`
}

func (e ItemRemovedFromCart) EventType() string { return "ItemRemovedFromCart" }

// CartCleared is emitted when the whole cart is emptied, either by the shopper
// or after a successful order.
type CartCleared struct {
	CartID string    `json:"cart_id"`
	At     time.Time `json:"at"`
}

func (e CartCleared) EventType() string { return "CartCleared" }

// OrderSubmitted is emitted after the backend accepted an order.
type OrderSubmitted struct {
	OrderID        string      `json:"order_id"`
	CartID         string      `json:"cart_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	Lines          []OrderLine `json:"lines"`
	Total          Money       `json:"total"`
	Guest          bool        `json:"guest"`
	SubmittedAt    time.Time   `json:"submitted_at"`
}

func (e OrderSubmitted) EventType() string { return "OrderSubmitted" }

// ProductStockUpdated is emitted by the catalog when stock changes. SKU is
// empty for products sold without variants.
type ProductStockUpdated struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku,omitempty"`
	NewStock  int    `json:"new_stock"`
}

func (e ProductStockUpdated) EventType() string { return "ProductStockUpdated" }
