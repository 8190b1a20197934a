package cart

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/pricing"
)

func redM() entity.CartItem {
	return entity.CartItem{ProductID: "p-1", VariantID: "v-1", SKU: "RED-M-123", Name: "Remera", Price: 100, Color: "Rojo", Size: "M"}
}

func TestAddToCartMergesByKey(t *testing.T) {
	l := NewLedger("c-1")

	_, err := l.AddToCart(redM(), 2)
	require.NoError(t, err)
	m, err := l.AddToCart(redM(), 1)
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 3, snap.Lines[0].Quantity)
	assert.Equal(t, entity.Money(300), l.CalculateTotal())
	assert.Equal(t, 1, m.FromVersion)
	assert.Equal(t, 2, m.ToVersion)
}

func TestAddToCartNegativeDeltaRemovesLine(t *testing.T) {
	l := NewLedger("c-1")
	_, err := l.AddToCart(redM(), 3)
	require.NoError(t, err)

	_, err = l.AddToCart(redM(), -5)
	require.NoError(t, err)

	assert.Equal(t, 0, l.Quantity("RED-M-123"))
	assert.True(t, l.Snapshot().Empty())
}

func TestAddToCartNonPositiveOnAbsentKeyIsNoop(t *testing.T) {
	l := NewLedger("c-1")

	m, err := l.AddToCart(redM(), -1)
	require.NoError(t, err)
	assert.False(t, m.Changed())

	m, err = l.AddToCart(redM(), 0)
	require.NoError(t, err)
	assert.False(t, m.Changed())
	assert.Equal(t, 0, l.Version())
}

func TestAddToCartKeysBySKUFirst(t *testing.T) {
	l := NewLedger("c-1")
	blueL := redM()
	blueL.SKU = "BLUE-L-123"
	blueL.Color = "Azul"

	_, err := l.AddToCart(redM(), 1)
	require.NoError(t, err)
	_, err = l.AddToCart(blueL, 2)
	require.NoError(t, err)

	snap := l.Snapshot()
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, "RED-M-123", snap.Lines[0].Key)
	assert.Equal(t, "BLUE-L-123", snap.Lines[1].Key)
	assert.NotEqual(t, snap.Lines[0].LineID, snap.Lines[1].LineID)
}

func TestAddToCartWithoutSKUKeysByProduct(t *testing.T) {
	l := NewLedger("c-1")
	mug := entity.CartItem{ProductID: "mug", Name: "Taza", Price: 50}

	_, err := l.AddToCart(mug, 1)
	require.NoError(t, err)
	_, err = l.AddToCart(mug, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, l.Quantity("mug"))

	_, err = l.AddToCart(entity.CartItem{Name: "nothing"}, 1)
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestLineKeepsAddTimeSnapshot(t *testing.T) {
	l := NewLedger("c-1")
	_, err := l.AddToCart(redM(), 1)
	require.NoError(t, err)

	repriced := redM()
	repriced.Price = 999
	repriced.Name = "Renamed"
	_, err = l.AddToCart(repriced, 1)
	require.NoError(t, err)

	line := l.Snapshot().Lines[0]
	assert.Equal(t, entity.Money(100), line.UnitPrice)
	assert.Equal(t, "Remera", line.Name)
	assert.Equal(t, 2, line.Quantity)
}

func TestRemoveFromCart(t *testing.T) {
	l := NewLedger("c-1")
	_, err := l.AddToCart(redM(), 2)
	require.NoError(t, err)
	lineID := l.Snapshot().Lines[0].LineID

	t.Run("missing ref leaves cart unchanged", func(t *testing.T) {
		before := l.Snapshot()
		n, m, err := l.RemoveFromCart("nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, entity.ErrNotFound)
		assert.Zero(t, n)
		assert.False(t, m.Changed())
		after := l.Snapshot()
		assert.Equal(t, before.Version, after.Version)
		assert.Equal(t, before.Lines, after.Lines)
	})

	t.Run("by line id", func(t *testing.T) {
		n, m, err := l.RemoveFromCart(lineID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.True(t, m.Changed())
		assert.True(t, l.Snapshot().Empty())
	})
}

func TestRemoveByProductIDRemovesEveryVariant(t *testing.T) {
	l := NewLedger("c-1")
	blue := redM()
	blue.SKU = "BLUE-M-123"
	_, _ = l.AddToCart(redM(), 1)
	_, _ = l.AddToCart(blue, 4)

	n, m, err := l.RemoveFromCart("p-1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, m.Events, 2)
	assert.True(t, l.Snapshot().Empty())
}

func TestClearCartIsIdempotent(t *testing.T) {
	l := NewLedger("c-1")
	_, _ = l.AddToCart(redM(), 2)

	first := l.ClearCart()
	assert.True(t, first.Changed())
	once := l.Snapshot()

	second := l.ClearCart()
	assert.False(t, second.Changed())
	twice := l.Snapshot()

	assert.Equal(t, once.Lines, twice.Lines)
	assert.Equal(t, once.Version, twice.Version)
	assert.Equal(t, entity.Money(0), l.CalculateTotal())
}

func TestRestoreReplaysMutations(t *testing.T) {
	l := NewLedger("c-1")
	var records []entity.EventStoreRecord
	record := func(m Mutation) {
		for _, e := range m.Events {
			records = append(records, recordOf(t, e))
		}
	}

	m, _ := l.AddToCart(redM(), 2)
	record(m)
	m, _ = l.AddToCart(entity.CartItem{ProductID: "mug", Name: "Taza", Price: 50}, 1)
	record(m)
	_, m, _ = l.RemoveFromCart("RED-M-123")
	record(m)

	restored, err := Restore("c-1", records)
	require.NoError(t, err)
	assert.Equal(t, l.Snapshot().Lines, restored.Snapshot().Lines)
	assert.Equal(t, l.Version(), restored.Version())
}

// Random add sequences keep one line per key whose quantity is the running
// sum of deltas, with lines dropped whenever that sum reaches zero.
func TestAddToCartRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	skus := []string{"A", "B", "C"}

	for run := 0; run < 200; run++ {
		l := NewLedger("c-rand")
		want := map[string]int{}
		for step := 0; step < 30; step++ {
			sku := skus[rng.Intn(len(skus))]
			delta := rng.Intn(9) - 4
			_, err := l.AddToCart(entity.CartItem{ProductID: "p", SKU: sku, Price: 10}, delta)
			require.NoError(t, err)

			q := want[sku] + delta
			if want[sku] == 0 && delta <= 0 {
				q = 0
			}
			if q <= 0 {
				delete(want, sku)
			} else {
				want[sku] = q
			}
		}

		snap := l.Snapshot()
		seen := map[string]bool{}
		var total entity.Money
		for _, line := range snap.Lines {
			require.False(t, seen[line.Key], "duplicate key %s", line.Key)
			seen[line.Key] = true
			require.Positive(t, line.Quantity)
			assert.Equal(t, want[line.Key], line.Quantity)
			total += pricing.LineTotal(line.UnitPrice, nil, line.Quantity)
		}
		assert.Len(t, snap.Lines, len(want))
		assert.Equal(t, total, l.CalculateTotal())
	}
}

func TestConsumeClearsUnchangedCart(t *testing.T) {
	l := NewLedger("c-1")
	_, err := l.AddToCart(redM(), 2)
	require.NoError(t, err)

	m := l.Consume(l.Snapshot())
	require.Len(t, m.Events, 1)
	assert.Equal(t, "CartCleared", m.Events[0].EventType())
	assert.True(t, l.Snapshot().Empty())
}

func TestConsumeKeepsLaterAdditions(t *testing.T) {
	mug := entity.CartItem{ProductID: "mug", Name: "Taza", Price: 50}
	l := NewLedger("c-1")
	_, err := l.AddToCart(redM(), 1)
	require.NoError(t, err)
	_, err = l.AddToCart(mug, 2)
	require.NoError(t, err)
	ordered := l.Snapshot()

	blue := redM()
	blue.SKU, blue.VariantID = "BLUE-M-123", "v-2"
	_, err = l.AddToCart(redM(), 3)
	require.NoError(t, err)
	_, err = l.AddToCart(blue, 1)
	require.NoError(t, err)

	m := l.Consume(ordered)
	assert.Len(t, m.Events, 2)

	snap := l.Snapshot()
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, "RED-M-123", snap.Lines[0].Key)
	assert.Equal(t, 3, snap.Lines[0].Quantity)
	assert.Equal(t, "BLUE-M-123", snap.Lines[1].Key)
	assert.Equal(t, 1, snap.Lines[1].Quantity)
	assert.Equal(t, 0, l.Quantity("mug"))
}

func TestConsumeOnEmptyCartIsNoop(t *testing.T) {
	l := NewLedger("c-1")
	m := l.Consume(entity.CartSnapshot{CartID: "c-1", Lines: []entity.CartLine{{Key: "mug", Quantity: 1}}})
	assert.False(t, m.Changed())
}

func TestAdvanceRejectsGaps(t *testing.T) {
	l := NewLedger("c-1")
	rec := recordOf(t, entity.ItemAddedToCart{CartID: "c-1", Item: redM(), Delta: 1, LineID: "l-1"})
	rec.Version = 2

	err := l.Advance([]entity.EventStoreRecord{rec})
	require.Error(t, err)
	assert.Equal(t, 0, l.Version())

	rec.Version = 1
	require.NoError(t, l.Advance([]entity.EventStoreRecord{rec}))
	assert.Equal(t, 1, l.Quantity("RED-M-123"))
}
