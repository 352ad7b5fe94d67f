// Package remotetest provides an in-memory remote store for tests. It
// behaves like the document store: versioned product writes, partial-merge
// user patches, and per-operation call counts with failure injection.
package remotetest

import (
	"context"
	"sort"
	"sync"

	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/remote"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// Operation names used for call counts and injected failures.
const (
	OpListProducts = "ListProducts"
	OpGetProduct   = "GetProduct"
	OpSetStock     = "SetStock"
	OpGetUser      = "GetUser"
	OpPatchUser    = "PatchUser"
	OpListUsers    = "ListUsers"
)

// Store is a goroutine-safe in-memory gateway.
type Store struct {
	mu       sync.Mutex
	products map[string]product.Product
	users    map[string]order.User
	calls    map[string]int
	failures map[string][]error

	// BeforeSetStock, when set, runs before every SetStock with the lock
	// released. Tests use it to interleave a competing write.
	BeforeSetStock func(id string)
}

// New returns an empty store.
func New() *Store {
	return &Store{
		products: make(map[string]product.Product),
		users:    make(map[string]order.User),
		calls:    make(map[string]int),
		failures: make(map[string][]error),
	}
}

// PutProduct stores p as-is, including its version.
func (s *Store) PutProduct(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p.Clone()
}

// PutUser stores u as-is, including its version.
func (s *Store) PutUser(u order.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(u)
}

// Product returns the stored product, or the zero value.
func (s *Store) Product(id string) product.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Clone()
}

// User returns the stored user, or the zero value.
func (s *Store) User(id string) order.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.users[id])
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// FailNext makes the next call to op return err. Calls queue up.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// enter records a call and pops an injected failure. Caller holds s.mu.
func (s *Store) enter(op string) error {
	s.calls[op]++
	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListProducts); err != nil {
		return nil, err
	}
	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetProduct); err != nil {
		return product.Product{}, err
	}
	p, ok := s.products[id]
	if !ok {
		return product.Product{}, storefront.NewErrorf(storefront.ReasonProductNotFound, "product %s not found", id)
	}
	return p.Clone(), nil
}

func (s *Store) SetStock(ctx context.Context, id string, stock int, ifVersion int64) (product.Product, error) {
	if hook := s.BeforeSetStock; hook != nil {
		hook(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSetStock); err != nil {
		return product.Product{}, err
	}
	p, ok := s.products[id]
	if !ok {
		return product.Product{}, storefront.NewErrorf(storefront.ReasonProductNotFound, "product %s not found", id)
	}
	if p.Version != ifVersion {
		return product.Product{}, storefront.NewErrorf(storefront.ReasonVersionConflict,
			"product %s is at version %d, not %d", id, p.Version, ifVersion)
	}
	p.Stock = stock
	p.Version++
	s.products[id] = p
	return p.Clone(), nil
}

func (s *Store) GetUser(ctx context.Context, id string) (order.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGetUser); err != nil {
		return order.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return order.User{}, storefront.NewErrorf(storefront.ReasonUserNotFound, "user %s not found", id)
	}
	return cloneUser(u), nil
}

func (s *Store) PatchUser(ctx context.Context, id string, patch order.UserPatch) (order.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpPatchUser); err != nil {
		return order.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return order.User{}, storefront.NewErrorf(storefront.ReasonUserNotFound, "user %s not found", id)
	}
	if patch.IfVersion != nil && *patch.IfVersion != u.Version {
		return order.User{}, storefront.NewErrorf(storefront.ReasonVersionConflict,
			"user %s is at version %d, not %d", id, u.Version, *patch.IfVersion)
	}
	if patch.Cart != nil {
		u.Cart = patch.Cart.Clone()
	}
	if patch.Orders != nil {
		u.Orders = cloneOrders(*patch.Orders)
	}
	if patch.DefaultAddress != nil {
		addr := *patch.DefaultAddress
		u.DefaultAddress = &addr
	}
	u.Version++
	s.users[id] = u
	return cloneUser(u), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]order.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpListUsers); err != nil {
		return nil, err
	}
	out := make([]order.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneUser(u order.User) order.User {
	if u.Cart != nil {
		u.Cart = u.Cart.Clone()
	} else {
		u.Cart = cart.Items{}
	}
	u.Orders = cloneOrders(u.Orders)
	if u.DefaultAddress != nil {
		addr := *u.DefaultAddress
		u.DefaultAddress = &addr
	}
	return u
}

func cloneOrders(in []order.Order) []order.Order {
	if in == nil {
		return nil
	}
	out := make([]order.Order, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}

var _ remote.Gateway = (*Store)(nil)
