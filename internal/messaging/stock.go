package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

// StockSink receives stock changes, typically the in-memory catalog.
type StockSink interface {
	ApplyStockUpdate(e entity.ProductStockUpdated) bool
}

// StockUpdateHandler decodes ProductStockUpdated messages, bare or wrapped in
// an Envelope, and applies them to sink.
func StockUpdateHandler(sink StockSink) func(ctx context.Context, payload []byte) error {
	return func(ctx context.Context, payload []byte) error {
		var raw struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		body := payload
		if err := json.Unmarshal(payload, &raw); err == nil && raw.Type != "" {
			if raw.Type != "ProductStockUpdated" {
				return nil
			}
			body = raw.Payload
		}

		var e entity.ProductStockUpdated
		if err := json.Unmarshal(body, &e); err != nil {
			return fmt.Errorf("failed to unmarshal stock update: %w", err)
		}
		if e.ProductID == "" {
			return fmt.Errorf("stock update without product id")
		}
		if e.NewStock < 0 {
			e.NewStock = 0
		}

		if sink.ApplyStockUpdate(e) {
			slog.Info("Stock updated", "product_id", e.ProductID, "sku", e.SKU, "stock", e.NewStock)
		}
		return nil
	}
}
