package pricing

import (
	"fmt"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// Config holds the display policy of the storefront.
type Config struct {
	Installments    int // number of interest-free installments advertised
	DiscountPercent int // discount shown against the list price
}

// DefaultConfig matches what the storefront advertises on product pages.
func DefaultConfig() Config {
	return Config{Installments: 24, DiscountPercent: 46}
}

// Engine applies the display policy on top of the pure pricing functions.
type Engine struct {
	config Config
}

// NewEngine validates the config and creates an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Installments <= 0 {
		return nil, fmt.Errorf("invalid pricing config: installments must be positive, got %d", cfg.Installments)
	}
	if cfg.DiscountPercent < 0 || cfg.DiscountPercent >= 100 {
		return nil, fmt.Errorf("invalid pricing config: discount must be in [0, 100), got %d", cfg.DiscountPercent)
	}
	return &Engine{config: cfg}, nil
}

// PriceView is the price block of a product page.
type PriceView struct {
	Price             entity.Money `json:"price"`
	ListPrice         entity.Money `json:"listPrice"`
	DiscountPercent   int          `json:"discountPercent"`
	Installments      int          `json:"installments"`
	InstallmentAmount entity.Money `json:"installmentAmount"`
	Display           string       `json:"display"`
	ListDisplay       string       `json:"listDisplay"`
	InstallmentText   string       `json:"installmentDisplay"`
}

// Product prices a product, using the variant when one is selected.
func (e *Engine) Product(p *entity.Product, v *entity.Variant) PriceView {
	price := LineTotal(p.BasePrice, v, 1)
	list, _ := ListPrice(price, e.config.DiscountPercent)
	inst, _ := InstallmentAmount(price, e.config.Installments)
	return PriceView{
		Price:             price,
		ListPrice:         list,
		DiscountPercent:   e.config.DiscountPercent,
		Installments:      e.config.Installments,
		InstallmentAmount: inst,
		Display:           Format(price),
		ListDisplay:       Format(list),
		InstallmentText:   fmt.Sprintf("%d cuotas de %s", e.config.Installments, Format(inst)),
	}
}

// Quote is the summary block of the cart.
type Quote struct {
	Lines             int          `json:"lines"`
	Items             int          `json:"items"`
	Subtotal          entity.Money `json:"subtotal"`
	Total             entity.Money `json:"total"`
	Installments      int          `json:"installments"`
	InstallmentAmount entity.Money `json:"installmentAmount"`
	Display           string       `json:"display"`
}

// Quote summarizes a cart snapshot. Shipping is quoted elsewhere, so the
// total equals the subtotal.
func (e *Engine) Quote(snap entity.CartSnapshot) Quote {
	total := CartTotal(snap.Lines)
	inst, _ := InstallmentAmount(total, e.config.Installments)
	return Quote{
		Lines:             len(snap.Lines),
		Items:             snap.ItemCount(),
		Subtotal:          total,
		Total:             total,
		Installments:      e.config.Installments,
		InstallmentAmount: inst,
		Display:           Format(total),
	}
}
