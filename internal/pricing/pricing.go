// Package pricing derives line, cart and installment amounts from base
// prices and variant modifiers. All arithmetic is done in cents.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// LineTotal returns (base + variant modifier) * quantity. A nil variant
// contributes no modifier.
func LineTotal(base entity.Money, v *entity.Variant, qty int) entity.Money {
	unit := base
	if v != nil {
		unit = v.FinalPrice(base)
	}
	return unit.Mul(qty)
}

// CartTotal sums the line totals of a cart. Each line carries the unit price
// captured when it was added, so this is a pure fold over the lines.
func CartTotal(lines []entity.CartLine) entity.Money {
	var total entity.Money
	for _, l := range lines {
		total += l.UnitPrice.Mul(l.Quantity)
	}
	return total
}

// InstallmentAmount splits total into n equal payments, rounded half up to
// the cent.
func InstallmentAmount(total entity.Money, n int) (entity.Money, error) {
	if n <= 0 {
		return 0, &entity.ValidationError{Field: "installments", Reason: "must be greater than zero"}
	}
	d := decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(n))).Round(0)
	return entity.Money(d.IntPart()), nil
}

// ListPrice returns the pre-discount price for a price shown with a
// percentage discount, i.e. price / (1 - pct/100).
func ListPrice(price entity.Money, discountPct int) (entity.Money, error) {
	if discountPct < 0 || discountPct >= 100 {
		return 0, &entity.ValidationError{Field: "discount", Reason: "must be in [0, 100)"}
	}
	factor := decimal.NewFromInt(int64(100 - discountPct)).Div(decimal.NewFromInt(100))
	d := decimal.NewFromInt(int64(price)).Div(factor).Round(0)
	return entity.Money(d.IntPart()), nil
}
