package entity

import (
	"strings"
	"time"
)

// Category is the product category reference.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Variant is a purchasable configuration of a product.
type Variant struct {
	ID            string `json:"id"`
	SKU           string `json:"sku"`
	Color         string `json:"color"`
	Size          string `json:"size,omitempty"`
	Stock         int    `json:"stock"`
	PriceModifier Money  `json:"priceModifier"`
	Available     bool   `json:"available"`
	ImageURL      string `json:"imageUrl,omitempty"`
}

// Purchasable reports whether the variant can currently be offered.
func (v Variant) Purchasable() bool {
	return v.Available && v.Stock > 0
}

// FinalPrice is the base price of the owning product plus the modifier.
func (v Variant) FinalPrice(base Money) Money {
	return base + v.PriceModifier
}

// Product represents a product in the store. A product exclusively owns its variants.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	BasePrice   Money     `json:"price"`
	Images      []string  `json:"images,omitempty"`
	Category    Category  `json:"category"`
	Tags        []string  `json:"tags,omitempty"`
	Variants    []Variant `json:"variants,omitempty"`
	Stock       int       `json:"stock"`
}

// Variant looks up a variant by SKU.
func (p *Product) Variant(sku string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.SKU == sku {
			return v, true
		}
	}
	return Variant{}, false
}

// TotalStock sums variant stock, or returns the product stock for products
// sold without variants.
func (p *Product) TotalStock() int {
	if len(p.Variants) == 0 {
		return p.Stock
	}
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

// Colors returns the distinct variant colours in catalog order.
func (p *Product) Colors() []string {
	seen := make(map[string]bool, len(p.Variants))
	var colors []string
	for _, v := range p.Variants {
		c := strings.TrimSpace(v.Color)
		if c == "" || seen[strings.ToLower(c)] {
			continue
		}
		seen[strings.ToLower(c)] = true
		colors = append(colors, c)
	}
	return colors
}

// Image returns the first product image, if any.
func (p *Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// CartItem is what the storefront hands to the cart when a shopper adds
// something: the product (and optionally the variant) plus the descriptive
// fields to copy into the line.
type CartItem struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Price     Money  `json:"price"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// Key is the cart key: the SKU when present, the product id otherwise.
func (i CartItem) Key() string {
	if i.SKU != "" {
		return i.SKU
	}
	return i.ProductID
}

// CartLine is one entry in the cart. Descriptive fields are a copy taken when
// the line was created and are never refreshed from the catalog.
type CartLine struct {
	LineID    string    `json:"lineId"`
	Key       string    `json:"key"`
	ProductID string    `json:"productId"`
	VariantID string    `json:"variantId,omitempty"`
	SKU       string    `json:"sku,omitempty"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	UnitPrice Money     `json:"unitPrice"`
	Color     string    `json:"color,omitempty"`
	Size      string    `json:"size,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// Matches reports whether ref names this line by SKU, product id or line id.
func (l CartLine) Matches(ref string) bool {
	if ref == "" {
		return false
	}
	return (l.SKU != "" && l.SKU == ref) || l.ProductID == ref || l.LineID == ref
}

// CartSnapshot is an immutable copy of a cart at a given version.
type CartSnapshot struct {
	CartID  string     `json:"cartId"`
	Version int        `json:"version"`
	Lines   []CartLine `json:"lines"`
	TakenAt time.Time  `json:"takenAt"`
}

// Empty reports whether the snapshot has no lines.
func (s CartSnapshot) Empty() bool {
	return len(s.Lines) == 0
}

// ItemCount returns the number of units across all lines.
func (s CartSnapshot) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// User is the authenticated shopper as returned by the backend login.
type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"nombre"`
	LastName  string   `json:"apellido"`
	Phone     string   `json:"phone,omitempty"`
	Role      string   `json:"role,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

const (
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// HasRole reports whether the user carries role either as primary role or in
// the role list.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	if u.Role == role {
		return true
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Buyer is the contact data attached to an order.
type Buyer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// OrderLine is a line item within an order.
type OrderLine struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unitPrice"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// OrderRequest is the body posted to the backend to create an order.
type OrderRequest struct {
	Buyer     Buyer       `json:"buyer"`
	Lines     []OrderLine `json:"items"`
	Total     Money       `json:"total"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	OrderPending   = "PENDING"
	OrderConfirmed = "CONFIRMED"
	OrderShipped   = "SHIPPED"
	OrderDelivered = "DELIVERED"
	OrderCancelled = "CANCELLED"
)

// Order represents a customer order as known by the backend.
type Order struct {
	ID        string      `json:"id"`
	Buyer     Buyer       `json:"buyer"`
	Lines     []OrderLine `json:"items"`
	Total     Money       `json:"total"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}
