package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// memStore is a versioned in-memory product table. conflictsLeft forces
// that many SetStock calls to fail with a version conflict, as if another
// writer got in between.
type memStore struct {
	mu            sync.Mutex
	products      map[string]product.Product
	conflictsLeft int
	getErr        error
	writes        int
}

func newMemStore(products ...product.Product) *memStore {
	s := &memStore{products: make(map[string]product.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) GetProduct(ctx context.Context, id string) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return product.Product{}, s.getErr
	}
	p, ok := s.products[id]
	if !ok {
		return product.Product{}, storefront.NewError(storefront.ReasonProductNotFound, id)
	}
	return p, nil
}

func (s *memStore) SetStock(ctx context.Context, id string, stock int, ifVersion int64) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		p.Version++
		s.products[id] = p
		return product.Product{}, storefront.NewError(storefront.ReasonVersionConflict, "stale")
	}
	if p.Version != ifVersion {
		return product.Product{}, storefront.NewError(storefront.ReasonVersionConflict, "stale")
	}
	p.Stock = stock
	p.Version++
	s.products[id] = p
	s.writes++
	return p, nil
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func TestDebit_DecrementsStock(t *testing.T) {
	store := newMemStore(product.Product{ID: "whey", Stock: 5})
	a := NewAdjuster(store, nil)

	p, err := a.Debit(context.Background(), "whey", 2)

	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, 3, store.stock("whey"))
}

func TestDebit_RejectsShortfallInsteadOfClamping(t *testing.T) {
	store := newMemStore(product.Product{ID: "whey", Name: "Whey", Stock: 1})
	a := NewAdjuster(store, nil)

	_, err := a.Debit(context.Background(), "whey", 2)

	assert.ErrorIs(t, err, storefront.ErrInsufficientStock)
	assert.Equal(t, 1, store.stock("whey"))
}

func TestDebit_ZeroStockIsOutOfStock(t *testing.T) {
	a := NewAdjuster(newMemStore(product.Product{ID: "whey"}), nil)

	_, err := a.Debit(context.Background(), "whey", 1)

	assert.ErrorIs(t, err, storefront.ErrOutOfStock)
}

func TestAdjust_RetriesOnVersionConflict(t *testing.T) {
	store := newMemStore(product.Product{ID: "whey", Stock: 5})
	store.conflictsLeft = 2
	a := NewAdjuster(store, nil)

	p, err := a.Credit(context.Background(), "whey", 2)

	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)
	assert.Equal(t, 1, store.writes)
}

func TestAdjust_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore(product.Product{ID: "whey", Stock: 5})
	store.conflictsLeft = 10
	a := NewAdjuster(store, nil)
	a.MaxAttempts = 3

	_, err := a.Credit(context.Background(), "whey", 1)

	assert.ErrorIs(t, err, storefront.ErrVersionConflict)
	assert.Equal(t, 5, store.stock("whey"))
}

func TestAdjust_PropagatesReadFailure(t *testing.T) {
	store := newMemStore(product.Product{ID: "whey", Stock: 5})
	store.getErr = storefront.RemoteIOError("get product", errors.New("down"))

	_, err := NewAdjuster(store, nil).Debit(context.Background(), "whey", 1)

	assert.ErrorIs(t, err, storefront.ErrRemoteIO)
}

func TestAdjust_RejectsBadInput(t *testing.T) {
	a := NewAdjuster(newMemStore(), nil)

	_, err := a.Debit(context.Background(), "whey", 0)
	assert.ErrorIs(t, err, storefront.ErrInvalidArgument)

	_, err = a.Adjust(context.Background(), Adjustment{ProductID: " ", Delta: 1})
	assert.ErrorIs(t, err, storefront.ErrInvalidArgument)
}

func TestConcurrentDebits_NeverOversell(t *testing.T) {
	store := newMemStore(product.Product{ID: "whey", Stock: 3})
	a := NewAdjuster(store, nil)
	a.MaxAttempts = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Debit(context.Background(), "whey", 1); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, sold)
	assert.Equal(t, 0, store.stock("whey"))
}

func TestApply_ReturnsAppliedAndJoinedErrors(t *testing.T) {
	store := newMemStore(
		product.Product{ID: "whey", Stock: 5},
		product.Product{ID: "creatine", Stock: 0},
	)
	a := NewAdjuster(store, nil)

	applied, err := a.Apply(context.Background(), []Adjustment{
		{ProductID: "whey", Delta: -2},
		{ProductID: "creatine", Delta: -1},
	})

	assert.ErrorIs(t, err, storefront.ErrOutOfStock)
	assert.Equal(t, []Adjustment{{ProductID: "whey", Delta: -2}}, applied)
	assert.Equal(t, 3, store.stock("whey"))
}

func TestFailures_NamesEachFailedAdjustment(t *testing.T) {
	store := newMemStore(product.Product{ID: "whey", Stock: 5})
	a := NewAdjuster(store, nil)

	_, err := a.Apply(context.Background(), []Adjustment{
		{ProductID: "whey", Delta: 1},
		{ProductID: "gone", Delta: 2},
	})

	failures := Failures(err)
	require.Len(t, failures, 1)
	assert.Equal(t, Adjustment{ProductID: "gone", Delta: 2}, failures[0].Adjustment)
	assert.ErrorIs(t, failures[0], storefront.ErrProductNotFound)
	assert.Contains(t, err.Error(), "gone: ")
	assert.Nil(t, Failures(nil))
}

func TestCompensate_InvertsApplied(t *testing.T) {
	store := newMemStore(product.Product{ID: "whey", Stock: 3})
	a := NewAdjuster(store, nil)

	require.NoError(t, a.Compensate(context.Background(), []Adjustment{{ProductID: "whey", Delta: -2}}))

	assert.Equal(t, 5, store.stock("whey"))
	assert.NoError(t, a.Compensate(context.Background(), nil))
}

func TestAggregate_MergesAndSorts(t *testing.T) {
	got := Aggregate(map[string]int{"whey": 3, "bcaa": 1, "": 4, "zero": 0}, -1)

	assert.Equal(t, []Adjustment{{ProductID: "bcaa", Delta: -1}, {ProductID: "whey", Delta: -3}}, got)
}
