package product

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/benjaminabbitt/gainlabz/storefront"
)

// Source fetches the full product list (GET /products).
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// Snapshot is the Product Snapshot Cache: the last fetched view of all
// products. Reads never touch the network; Refresh replaces the view.
type Snapshot struct {
	source Source
	logger *zap.Logger
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	products  map[string]Product
	order     []string
	fetchedAt time.Time
}

// NewSnapshot creates an empty snapshot backed by source.
func NewSnapshot(source Source, logger *zap.Logger) *Snapshot {
	return &Snapshot{
		source:   source,
		logger:   storefront.OrNop(logger),
		now:      time.Now,
		products: make(map[string]Product),
	}
}

// RefreshTimeout bounds a shared fetch, which outlives any one caller.
const RefreshTimeout = 30 * time.Second

// Refresh re-fetches all products and replaces the view. Concurrent calls
// share a single fetch; a caller whose ctx ends stops waiting without
// cancelling the fetch for the others.
func (s *Snapshot) Refresh(ctx context.Context) error {
	if s.source == nil {
		return storefront.NewInvalidArgument("product snapshot has no source")
	}
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		products, err := s.source.ListProducts(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.Replace(products)
		return nil, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return storefront.RemoteIOError("refresh products", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		s.logger.Warn("product snapshot refresh failed", zap.Error(res.Err))
		return res.Err
	}
	s.logger.Debug("product snapshot refreshed", zap.Int("products", s.Len()), zap.Bool("shared", res.Shared))
	return nil
}

// Replace swaps in a new product list. Later duplicates of an id win.
func (s *Snapshot) Replace(products []Product) {
	next := make(map[string]Product, len(products))
	order := make([]string, 0, len(products))
	for _, p := range products {
		p = p.Normalize()
		if p.ID == "" {
			continue
		}
		if _, seen := next[p.ID]; !seen {
			order = append(order, p.ID)
		}
		next[p.ID] = p.Clone()
	}

	s.mu.Lock()
	s.products = next
	s.order = order
	s.fetchedAt = s.now()
	s.mu.Unlock()
}

// Get returns the product as last observed.
func (s *Snapshot) Get(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, false
	}
	return p.Clone(), true
}

// All returns every product in fetch order.
func (s *Snapshot) All() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id].Clone())
	}
	return out
}

// Len is the number of products in the view.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// FetchedAt is when the current view was installed; zero if never.
func (s *Snapshot) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}
