package cart

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

type recordingSyncer struct {
	mu    sync.Mutex
	calls []Items
}

func (r *recordingSyncer) SyncCart(userID string, items Items) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, items)
}

func (r *recordingSyncer) last() Items {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestLedger(products ...product.Product) (*Ledger, *recordingSyncer) {
	snap := product.NewSnapshot(nil, nil)
	snap.Replace(products)
	syncer := &recordingSyncer{}
	l := NewLedger(snap, syncer, nil)
	l.Bind("user-1", nil)
	return l, syncer
}

func whey(stock int) product.Product {
	return product.Product{ID: "whey", Name: "Whey", Price: price("40"), Stock: stock, Variants: []string{"Vanilla", "Chocolate"}}
}

func TestAddToCart_Success(t *testing.T) {
	l, syncer := newTestLedger(whey(5))

	n, err := l.AddToCart("whey", "Vanilla", 2)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, l.Quantity("whey", "Vanilla"))
	assert.Equal(t, Items{"whey": {"Vanilla": 2}}, syncer.last())
}

func TestAddToCart_AccumulatesUpToStock(t *testing.T) {
	l, _ := newTestLedger(whey(5))

	_, err := l.AddToCart("whey", "Vanilla", 3)
	require.NoError(t, err)
	n, err := l.AddToCart("whey", "Vanilla", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestAddToCart_EmptyVariantUsesDefault(t *testing.T) {
	l, _ := newTestLedger(whey(5))

	_, err := l.AddToCart("whey", "", 1)

	require.NoError(t, err)
	assert.Equal(t, 1, l.Quantity("whey", "Vanilla"))
}

func TestAddToCart_Unauthenticated(t *testing.T) {
	l, syncer := newTestLedger(whey(5))
	l.Unbind()

	_, err := l.AddToCart("whey", "Vanilla", 1)

	assert.ErrorIs(t, err, storefront.ErrUnauthenticated)
	assert.Nil(t, syncer.last())
}

func TestAddToCart_ProductNotFound(t *testing.T) {
	l, _ := newTestLedger(whey(5))

	_, err := l.AddToCart("bcaa", "", 1)

	assert.ErrorIs(t, err, storefront.ErrProductNotFound)
}

func TestAddToCart_InvalidQuantity(t *testing.T) {
	l, _ := newTestLedger(whey(5))

	_, err := l.AddToCart("whey", "Vanilla", 0)

	assert.ErrorIs(t, err, storefront.ErrInvalidArgument)
}

func TestAddToCart_OutOfStock(t *testing.T) {
	l, _ := newTestLedger(whey(0))

	_, err := l.AddToCart("whey", "Vanilla", 1)

	assert.ErrorIs(t, err, storefront.ErrOutOfStock)
	assert.True(t, l.IsEmpty())
}

func TestAddToCart_InsufficientStockReportsRemaining(t *testing.T) {
	l, _ := newTestLedger(whey(5))
	_, err := l.AddToCart("whey", "Vanilla", 3)
	require.NoError(t, err)

	_, err = l.AddToCart("whey", "Vanilla", 3)

	require.ErrorIs(t, err, storefront.ErrInsufficientStock)
	var shortfall *ShortfallError
	require.True(t, errors.As(err, &shortfall))
	assert.Equal(t, 2, shortfall.Available())
	assert.Contains(t, err.Error(), "Only 2 left")
	assert.Equal(t, 3, l.Quantity("whey", "Vanilla"), "cart must be unchanged on failure")
}

func TestAddToCart_CartHoldingAllStockIsOutOfStock(t *testing.T) {
	l, _ := newTestLedger(whey(3))
	_, err := l.AddToCart("whey", "Vanilla", 3)
	require.NoError(t, err)

	_, err = l.AddToCart("whey", "Vanilla", 1)

	assert.ErrorIs(t, err, storefront.ErrOutOfStock)
	assert.Equal(t, 3, l.Quantity("whey", "Vanilla"))
}

func TestAddToCart_UnknownVariant(t *testing.T) {
	l, syncer := newTestLedger(whey(5))

	_, err := l.AddToCart("whey", "Mango", 1)

	assert.ErrorIs(t, err, storefront.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "Mango")
	assert.True(t, l.IsEmpty())
	assert.Nil(t, syncer.last())
}

func TestAddToCart_SucceedsIffWithinStock(t *testing.T) {
	for stock := 0; stock <= 4; stock++ {
		for existing := 0; existing <= stock; existing++ {
			for requested := 1; requested <= 4; requested++ {
				l, _ := newTestLedger(whey(stock))
				if existing > 0 {
					l.Bind("user-1", Items{"whey": {"Vanilla": existing}})
				}

				_, err := l.AddToCart("whey", "Vanilla", requested)

				if existing+requested <= stock {
					assert.NoError(t, err, "stock=%d existing=%d requested=%d", stock, existing, requested)
					assert.Equal(t, existing+requested, l.Quantity("whey", "Vanilla"))
				} else {
					assert.Error(t, err, "stock=%d existing=%d requested=%d", stock, existing, requested)
					assert.Equal(t, existing, l.Quantity("whey", "Vanilla"))
				}
			}
		}
	}
}

func TestAddToCart_ConcurrentAddsNeverExceedObservedStock(t *testing.T) {
	for i := 0; i < 50; i++ {
		l, _ := newTestLedger(whey(1))

		var wg sync.WaitGroup
		var mu sync.Mutex
		successes := 0
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.AddToCart("whey", "Vanilla", 1); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, 1, l.Quantity("whey", "Vanilla"))
	}
}

func TestUpdateQuantity_OverwritesWithoutStockCheck(t *testing.T) {
	l, _ := newTestLedger(whey(1))

	require.NoError(t, l.UpdateQuantity("whey", "Vanilla", 7))

	assert.Equal(t, 7, l.Quantity("whey", "Vanilla"))
}

func TestUpdateQuantity_ZeroRemovesEntryAndEmptyProduct(t *testing.T) {
	l, _ := newTestLedger(whey(5))
	l.Bind("user-1", Items{"whey": {"Vanilla": 2, "Chocolate": 1}})

	require.NoError(t, l.UpdateQuantity("whey", "Vanilla", 0))
	assert.Equal(t, Items{"whey": {"Chocolate": 1}}, l.Items())

	require.NoError(t, l.UpdateQuantity("whey", "Chocolate", -1))
	_, present := l.Items()["whey"]
	assert.False(t, present)
}

func TestUpdateQuantity_IsIdempotent(t *testing.T) {
	l, syncer := newTestLedger(whey(5))

	require.NoError(t, l.UpdateQuantity("whey", "Vanilla", 2))
	require.NoError(t, l.UpdateQuantity("whey", "Vanilla", 2))

	assert.Len(t, syncer.calls, 1)
	assert.Equal(t, 2, l.Quantity("whey", "Vanilla"))
}

func TestCount_SumsAllEntries(t *testing.T) {
	l, _ := newTestLedger(whey(5))
	l.Bind("user-1", Items{"whey": {"Vanilla": 2, "Chocolate": 1}, "creatine": {"": 4}})

	assert.Equal(t, 7, l.Count())
}

func TestAmount_UsesEffectivePrice(t *testing.T) {
	offer := price("300")
	creatine := product.Product{ID: "creatine", Price: price("400"), OnSale: true, OfferPrice: &offer, Stock: 10}
	l, _ := newTestLedger(whey(5), creatine)
	l.Bind("user-1", Items{"whey": {"Vanilla": 2}, "creatine": {"": 3}})

	// 2*40 + 3*300
	assert.True(t, l.Amount().Equal(price("980")), "got %s", l.Amount())
}

func TestAmount_MissingProductContributesZero(t *testing.T) {
	l, _ := newTestLedger(whey(5))
	l.Bind("user-1", Items{"whey": {"Vanilla": 1}, "ghost": {"": 9}})

	assert.True(t, l.Amount().Equal(price("40")))
}

func TestClear_EmptiesAndSyncs(t *testing.T) {
	l, syncer := newTestLedger(whey(5))
	_, err := l.AddToCart("whey", "Vanilla", 1)
	require.NoError(t, err)

	l.Clear()

	assert.True(t, l.IsEmpty())
	assert.Equal(t, Items{}, syncer.last())
}

func TestConsume_RemovesOnlyCheckedOutQuantities(t *testing.T) {
	l, syncer := newTestLedger(whey(10))
	l.Bind("user-1", Items{"whey": {"Vanilla": 3, "Chocolate": 1}})
	checkedOut := l.Items()
	_, err := l.AddToCart("whey", "Vanilla", 2)
	require.NoError(t, err)

	l.Consume(checkedOut)

	assert.Equal(t, Items{"whey": {"Vanilla": 2}}, l.Items())
	assert.Equal(t, Items{"whey": {"Vanilla": 2}}, syncer.last())
}

func TestConsume_IgnoresEntriesAlreadyGone(t *testing.T) {
	l, syncer := newTestLedger(whey(10))
	l.Bind("user-1", Items{"whey": {"Vanilla": 1}})
	checkedOut := l.Items()
	require.NoError(t, l.UpdateQuantity("whey", "Vanilla", 0))
	calls := len(syncer.calls)

	l.Consume(checkedOut)

	assert.True(t, l.IsEmpty())
	assert.Len(t, syncer.calls, calls)
}

func TestLines_StableOrder(t *testing.T) {
	items := Items{"b": {"y": 1, "x": 2}, "a": {"": 3}}
	assert.Equal(t, []Line{
		{ProductID: "a", Variant: "", Quantity: 3},
		{ProductID: "b", Variant: "x", Quantity: 2},
		{ProductID: "b", Variant: "y", Quantity: 1},
	}, items.Lines())
}
