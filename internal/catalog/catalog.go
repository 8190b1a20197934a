package catalog

import (
	"log/slog"
	"sync"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// Catalog is an in-memory, concurrency-safe view of the products offered by
// the backend. It is refreshed wholesale with Load and patched with stock
// updates as they arrive.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]*entity.Product
	order    []string
}

// New creates an empty Catalog.
func New() *Catalog {
	return &Catalog{products: make(map[string]*entity.Product)}
}

// Load replaces the catalog contents.
func (c *Catalog) Load(products []entity.Product) {
	m := make(map[string]*entity.Product, len(products))
	order := make([]string, 0, len(products))
	for i := range products {
		p := cloneProduct(&products[i])
		if _, dup := m[p.ID]; !dup {
			order = append(order, p.ID)
		}
		m[p.ID] = p
	}

	c.mu.Lock()
	c.products = m
	c.order = order
	c.mu.Unlock()

	slog.Info("Catalog loaded", "products", len(order))
}

// Products returns a copy of every product in load order.
func (c *Catalog) Products() []entity.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]entity.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *cloneProduct(c.products[id]))
	}
	return out
}

// Product returns a copy of the product with the given id.
func (c *Catalog) Product(id string) (*entity.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, &entity.NotFoundError{Kind: "product", Ref: id}
	}
	return cloneProduct(p), nil
}

// DefaultVariant returns the variant a product page preselects.
func (c *Catalog) DefaultVariant(productID string) (entity.Variant, bool, error) {
	p, err := c.Product(productID)
	if err != nil {
		return entity.Variant{}, false, err
	}
	v, ok := SelectDefault(p.Variants)
	return v, ok, nil
}

// Resolve builds the cart item for a product and optional variant SKU, copying
// name, image, price, colour and size as they are right now. Products with
// variants require a SKU.
func (c *Catalog) Resolve(productID, sku string) (entity.CartItem, error) {
	p, err := c.Product(productID)
	if err != nil {
		return entity.CartItem{}, err
	}

	item := entity.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.Image(),
		Price:     p.BasePrice,
	}

	if len(p.Variants) == 0 {
		if sku != "" && sku != p.ID {
			return entity.CartItem{}, &entity.NotFoundError{Kind: "variant", Ref: sku}
		}
		return item, nil
	}

	if sku == "" {
		return entity.CartItem{}, &entity.ValidationError{Field: "sku", Reason: "a variant must be selected"}
	}
	v, ok := p.Variant(sku)
	if !ok {
		return entity.CartItem{}, &entity.NotFoundError{Kind: "variant", Ref: sku}
	}

	item.VariantID = v.ID
	item.SKU = v.SKU
	item.Price = v.FinalPrice(p.BasePrice)
	item.Color = v.Color
	item.Size = v.Size
	if v.ImageURL != "" {
		item.Image = v.ImageURL
	}
	return item, nil
}

// Stock returns the stock level for a cart key of a product: the variant when
// sku names one, the product otherwise. inCart is the quantity the shopper
// already holds.
func (c *Catalog) Stock(productID, sku string, inCart int) (entity.StockLevel, error) {
	p, err := c.Product(productID)
	if err != nil {
		return entity.StockLevel{}, err
	}
	if sku != "" {
		if v, ok := p.Variant(sku); ok {
			onHand := v.Stock
			if !v.Available {
				onHand = 0
			}
			return entity.StockLevel{Key: sku, OnHand: onHand, Reserved: inCart}, nil
		}
		if len(p.Variants) > 0 {
			return entity.StockLevel{}, &entity.NotFoundError{Kind: "variant", Ref: sku}
		}
	}
	return entity.StockLevel{Key: p.ID, OnHand: p.TotalStock(), Reserved: inCart}, nil
}

// ApplyStockUpdate patches the stock of one product or variant. Updates for
// unknown products are ignored; the next Load brings them in.
func (c *Catalog) ApplyStockUpdate(e entity.ProductStockUpdated) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[e.ProductID]
	if !ok {
		return false
	}
	if e.SKU == "" || (len(p.Variants) == 0 && e.SKU == p.ID) {
		p.Stock = e.NewStock
		return true
	}
	for i := range p.Variants {
		if p.Variants[i].SKU == e.SKU {
			p.Variants[i].Stock = e.NewStock
			return true
		}
	}
	return false
}

func cloneProduct(p *entity.Product) *entity.Product {
	cp := *p
	cp.Images = append([]string(nil), p.Images...)
	cp.Tags = append([]string(nil), p.Tags...)
	cp.Variants = append([]entity.Variant(nil), p.Variants...)
	return &cp
}
