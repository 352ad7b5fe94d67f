// Package session holds the per-login service object. A Session owns the
// signed-in identity, its cart ledger and its order manager, and is passed
// explicitly to whatever serves that user.
package session

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/storefront"
	"github.com/benjaminabbitt/gainlabz/syncqueue"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Users    order.UserStore
	Stock    order.StockAdjuster
	Snapshot *product.Snapshot
	// Queue carries cart syncs. When nil the session runs a private queue
	// and closes it on Logout.
	Queue       *syncqueue.Queue
	DeliveryFee *decimal.Decimal
	Logger      *zap.Logger
}

// Session is one user's signed-in state.
type Session struct {
	deps      Deps
	logger    *zap.Logger
	queue     *syncqueue.Queue
	ownsQueue bool
	ledger    *cart.Ledger
	orders    *order.Manager

	mu             sync.RWMutex
	identity       storefront.Identity
	active         bool
	defaultAddress *order.Address
}

// New creates a session for identity. Call Login before use.
func New(identity storefront.Identity, deps Deps) (*Session, error) {
	if !identity.Valid() {
		return nil, storefront.NewError(storefront.ReasonUnauthenticated, ErrMsgNotSignedIn)
	}
	if deps.Users == nil || deps.Stock == nil || deps.Snapshot == nil {
		return nil, storefront.NewInvalidArgument(ErrMsgDepsMissing)
	}
	logger := storefront.OrNop(deps.Logger).With(zap.String("user_id", identity.UserID))

	s := &Session{
		deps:     deps,
		logger:   logger,
		queue:    deps.Queue,
		identity: identity,
	}
	if s.queue == nil {
		s.queue = syncqueue.New(syncqueue.Config{
			Workers:   1,
			Retryable: storefront.IsRetryable,
			Logger:    logger,
		})
		s.ownsQueue = true
	}
	s.ledger = cart.NewLedger(deps.Snapshot, NewCartSyncer(s.queue, deps.Users, logger), logger)
	s.orders = order.NewManager(order.Config{
		Users:       deps.Users,
		Stock:       deps.Stock,
		Catalog:     deps.Snapshot,
		Principal:   s,
		DeliveryFee: deps.DeliveryFee,
		Logger:      logger,
	})
	return s, nil
}

// Login refreshes the product snapshot and adopts the cart and default
// address stored on the user record.
func (s *Session) Login(ctx context.Context) error {
	if err := s.deps.Snapshot.Refresh(ctx); err != nil {
		s.logger.Warn("login continuing with stale product snapshot", zap.Error(err))
	}

	id := s.Identity()
	user, err := s.deps.Users.GetUser(ctx, id.UserID)
	if err != nil {
		return err
	}

	s.ledger.Bind(id.UserID, user.Cart)

	s.mu.Lock()
	s.active = true
	s.defaultAddress = user.DefaultAddress
	s.mu.Unlock()

	s.logger.Info("session started",
		zap.String("role", string(id.Role)),
		zap.Int("cart_items", s.ledger.Count()),
	)
	return nil
}

// Logout drops the local cart, waits for queued writes and ends the
// session. The remote cart is kept for the next login.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.active = false
	s.defaultAddress = nil
	s.mu.Unlock()

	s.ledger.Unbind()

	var err error
	if s.ownsQueue {
		err = s.queue.Close(ctx)
	} else {
		err = s.queue.Flush(ctx)
	}
	if err != nil {
		s.logger.Warn("session ended with cart writes outstanding", zap.Error(err))
		return err
	}
	s.logger.Info("session ended")
	return nil
}

// Current implements order.Principal. It reports false once logged out.
func (s *Session) Current() (storefront.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.active
}

// Identity is the identity the session was created for.
func (s *Session) Identity() storefront.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Active reports whether Login succeeded and Logout has not run.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Cart is the session's ledger.
func (s *Session) Cart() *cart.Ledger {
	return s.ledger
}

// Orders is the session's order manager.
func (s *Session) Orders() *order.Manager {
	return s.orders
}

// DefaultAddress is the saved shipping address, if any.
func (s *Session) DefaultAddress() (order.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.defaultAddress == nil {
		return order.Address{}, false
	}
	return *s.defaultAddress, true
}

// Checkout places an order from the session's cart. A blank address falls
// back to the saved default address.
func (s *Session) Checkout(ctx context.Context, in order.Checkout) (*order.PlaceResult, error) {
	if in.Address == (order.Address{}) {
		if addr, ok := s.DefaultAddress(); ok {
			in.Address = addr
		}
	}
	return s.orders.PlaceOrder(ctx, s.ledger, in)
}

// SaveDefaultAddress persists addr and keeps it for later checkouts.
func (s *Session) SaveDefaultAddress(ctx context.Context, addr order.Address) error {
	saved, err := s.orders.SaveDefaultAddress(ctx, addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.defaultAddress = &saved
	s.mu.Unlock()
	return nil
}

// SyncStatus reports the state of the cart sync queue.
func (s *Session) SyncStatus() syncqueue.Status {
	return s.queue.Status()
}

// FlushSync waits for queued cart writes.
func (s *Session) FlushSync(ctx context.Context) error {
	return s.queue.Flush(ctx)
}
