package entity

// StockLevel is the stock of one sellable unit (variant SKU, or product id for
// products without variants) as seen from the storefront.
type StockLevel struct {
	Key      string `json:"key"`
	OnHand   int    `json:"onHand"`
	Reserved int    `json:"reserved"` // units already held in the shopper's cart
}

// Available returns the units that can still be added. Never negative.
func (s StockLevel) Available() int {
	if a := s.OnHand - s.Reserved; a > 0 {
		return a
	}
	return 0
}

// Covers reports whether qty more units fit in the available stock.
func (s StockLevel) Covers(qty int) bool {
	return qty <= s.Available()
}
