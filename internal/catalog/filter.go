package catalog

import (
	"sort"
	"strings"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// Sort orders accepted by Filter.
const (
	SortName      = "name"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
)

// Filter narrows the product list the way the storefront's browsing
// sidebar does. Zero values disable a criterion; MaxPrice 0 means no upper
// bound.
type Filter struct {
	Category string
	Search   string
	MinPrice entity.Money
	MaxPrice entity.Money
	Colors   []string
	Tags     []string
	SortBy   string
}

// Apply returns the products matching f, sorted by f.SortBy.
func Apply(products []entity.Product, f Filter) []entity.Product {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	category := strings.TrimSpace(f.Category)

	result := make([]entity.Product, 0, len(products))
	for i := range products {
		p := &products[i]
		if category != "" && !strings.EqualFold(p.Category.Name, category) {
			continue
		}
		if len(f.Colors) > 0 && !anyFold(p.Colors(), f.Colors) {
			continue
		}
		if len(f.Tags) > 0 && !anyExact(p.Tags, f.Tags) {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		if p.BasePrice < f.MinPrice {
			continue
		}
		if f.MaxPrice > 0 && p.BasePrice > f.MaxPrice {
			continue
		}
		result = append(result, *p)
	}

	switch f.SortBy {
	case SortPriceAsc:
		sort.SliceStable(result, func(i, j int) bool { return result[i].BasePrice < result[j].BasePrice })
	case SortPriceDesc:
		sort.SliceStable(result, func(i, j int) bool { return result[i].BasePrice > result[j].BasePrice })
	default:
		sort.SliceStable(result, func(i, j int) bool {
			return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
		})
	}
	return result
}

func matchesSearch(p *entity.Product, term string) bool {
	if strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func anyFold(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func anyExact(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
