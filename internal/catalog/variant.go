// Package catalog is the storefront's view of the products it sells: default
// variant selection, colour swatches, the in-memory catalog kept in sync with
// the backend, and the browsing filters.
package catalog

import (
	"strings"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// NeutralColor is shown for colour names with no known swatch.
const NeutralColor = "#CCCCCC"

var colorHex = map[string]string{
	"negro":    "#000000",
	"black":    "#000000",
	"blanco":   "#FFFFFF",
	"white":    "#FFFFFF",
	"rojo":     "#DC2626",
	"red":      "#DC2626",
	"azul":     "#2563EB",
	"blue":     "#2563EB",
	"celeste":  "#7DD3FC",
	"verde":    "#16A34A",
	"green":    "#16A34A",
	"amarillo": "#FACC15",
	"yellow":   "#FACC15",
	"naranja":  "#F97316",
	"orange":   "#F97316",
	"rosa":     "#EC4899",
	"pink":     "#EC4899",
	"violeta":  "#8B5CF6",
	"purple":   "#8B5CF6",
	"gris":     "#6B7280",
	"gray":     "#6B7280",
	"grey":     "#6B7280",
	"marron":   "#92400E",
	"marrón":   "#92400E",
	"brown":    "#92400E",
	"beige":    "#F5F5DC",
	"bordo":    "#7F1D1D",
	"bordó":    "#7F1D1D",
}

// ColorHex maps a colour name to its display swatch. Unknown names fall back
// to NeutralColor.
func ColorHex(name string) string {
	if hex, ok := colorHex[strings.ToLower(strings.TrimSpace(name))]; ok {
		return hex
	}
	return NeutralColor
}

// SelectDefault returns the first purchasable variant, falling back to the
// first variant in list order. ok is false only for an empty list.
func SelectDefault(variants []entity.Variant) (entity.Variant, bool) {
	if len(variants) == 0 {
		return entity.Variant{}, false
	}
	for _, v := range variants {
		if v.Purchasable() {
			return v, true
		}
	}
	return variants[0], true
}
