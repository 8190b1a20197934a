// Package reconcile re-checks a cart against authoritative stock before an
// order is submitted.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// DefaultTimeout bounds one validation round.
const DefaultTimeout = 10 * time.Second

// DefaultConcurrency bounds the product fetches in flight.
const DefaultConcurrency = 4

// StockSource returns the current product, variants included, from the
// backend.
type StockSource interface {
	GetProduct(ctx context.Context, id string) (*entity.Product, error)
}

// StockSnapshot maps a line key to the stock fetched for it. It lives for a
// single validation round.
type StockSnapshot map[string]int

// Report is the result of validating one cart snapshot.
type Report struct {
	CartID      string            `json:"cartId"`
	CartVersion int               `json:"cartVersion"`
	Stock       StockSnapshot     `json:"stock"`
	Invalid     []entity.Shortage `json:"invalid"`
	CheckedAt   time.Time         `json:"checkedAt"`
}

// Valid reports whether every line is covered.
func (r *Report) Valid() bool {
	return len(r.Invalid) == 0
}

// Err returns an InsufficientStockError naming the invalid lines, or nil.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	return &entity.InsufficientStockError{Lines: append([]entity.Shortage(nil), r.Invalid...)}
}

// Reconciler validates carts against a StockSource.
type Reconciler struct {
	source      StockSource
	timeout     time.Duration
	concurrency int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTimeout sets the deadline of a validation round. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

// WithConcurrency sets how many products are fetched at once.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func New(source StockSource, opts ...Option) *Reconciler {
	r := &Reconciler{source: source, timeout: DefaultTimeout, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate fetches the stock behind every line of snap and reports the lines
// whose requested quantity exceeds it. Each product is fetched once. The
// snapshot itself is never modified. A round cancelled by the caller returns
// the context error; a round that runs out of time returns a NetworkError.
func (r *Reconciler) Validate(ctx context.Context, snap entity.CartSnapshot) (*Report, error) {
	report := &Report{
		CartID:      snap.CartID,
		CartVersion: snap.Version,
		Stock:       make(StockSnapshot, len(snap.Lines)),
		Invalid:     []entity.Shortage{},
	}
	if snap.Empty() {
		report.CheckedAt = time.Now().UTC()
		return report, nil
	}

	parent := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var ids []string
	seen := make(map[string]bool)
	for _, l := range snap.Lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	products := make([]*entity.Product, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			p, err := r.source.GetProduct(gctx, id)
			if err != nil {
				if entity.IsNotFound(err) {
					slog.Info("Product gone during reconciliation", "product_id", id)
					return nil
				}
				return fmt.Errorf("failed to fetch stock for product %s: %w", id, err)
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, entity.ErrNetwork) {
			return nil, &entity.NetworkError{Op: "validate stock", Err: ctxErr}
		}
		return nil, err
	}

	byID := make(map[string]*entity.Product, len(ids))
	for i, id := range ids {
		byID[id] = products[i]
	}

	for _, l := range snap.Lines {
		stock := lineStock(byID[l.ProductID], l)
		report.Stock[l.Key] = stock
		if stock < l.Quantity {
			report.Invalid = append(report.Invalid, entity.Shortage{
				Key:       l.Key,
				ProductID: l.ProductID,
				SKU:       l.SKU,
				Name:      l.Name,
				Requested: l.Quantity,
				Available: stock,
			})
		}
	}
	report.CheckedAt = time.Now().UTC()

	if !report.Valid() {
		slog.Info("Stock reconciliation failed", "cart_id", snap.CartID, "version", snap.Version, "invalid", len(report.Invalid))
	}
	return report, nil
}

// lineStock is the variant stock for a line with a SKU, the product stock
// otherwise. Gone products, gone variants and unavailable variants have none.
func lineStock(p *entity.Product, l entity.CartLine) int {
	if p == nil {
		return 0
	}
	if l.SKU == "" || (len(p.Variants) == 0 && l.SKU == p.ID) {
		return max(p.TotalStock(), 0)
	}
	v, ok := p.Variant(l.SKU)
	if !ok || !v.Available {
		return 0
	}
	return max(v.Stock, 0)
}
