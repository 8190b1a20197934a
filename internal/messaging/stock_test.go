package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

type sink struct {
	got []entity.ProductStockUpdated
}

func (s *sink) ApplyStockUpdate(e entity.ProductStockUpdated) bool {
	s.got = append(s.got, e)
	return true
}

func TestStockUpdateHandler(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	handle := StockUpdateHandler(s)

	require.NoError(t, handle(ctx, []byte(`{"product_id":"p-1","sku":"RED-M-123","new_stock":4}`)))

	wrapped, err := json.Marshal(NewEnvelope(entity.ProductStockUpdated{ProductID: "mug", NewStock: -2}))
	require.NoError(t, err)
	require.NoError(t, handle(ctx, wrapped))

	other, err := json.Marshal(NewEnvelope(entity.CartCleared{CartID: "c-1"}))
	require.NoError(t, err)
	require.NoError(t, handle(ctx, other))

	require.Len(t, s.got, 2)
	assert.Equal(t, entity.ProductStockUpdated{ProductID: "p-1", SKU: "RED-M-123", NewStock: 4}, s.got[0])
	assert.Equal(t, 0, s.got[1].NewStock, "negative stock is clamped")

	assert.Error(t, handle(ctx, []byte(`{"new_stock":1}`)))
	assert.Error(t, handle(ctx, []byte(`not json`)))
}
