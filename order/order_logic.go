package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/inventory"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// DefaultDeliveryFee is added to every order total.
var DefaultDeliveryFee = decimal.NewFromInt(50)

// DefaultWriteAttempts bounds conditional user-record writes.
const DefaultWriteAttempts = 5

// UserStore reads and patches user records (GET/PATCH /users/{id}, GET /users).
type UserStore interface {
	GetUser(ctx context.Context, id string) (User, error)
	PatchUser(ctx context.Context, id string, patch UserPatch) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// StockAdjuster applies and compensates per-product stock changes.
type StockAdjuster interface {
	Apply(ctx context.Context, adjs []inventory.Adjustment) ([]inventory.Adjustment, error)
	Compensate(ctx context.Context, applied []inventory.Adjustment) error
}

// Catalog resolves product names and prices from the snapshot.
type Catalog interface {
	Get(id string) (product.Product, bool)
	Refresh(ctx context.Context) error
}

// Principal supplies the signed-in identity for the session.
type Principal interface {
	Current() (storefront.Identity, bool)
}

// Cart is the ledger the manager checks out. Consume removes the
// checked-out quantities once the order is persisted.
type Cart interface {
	Items() cart.Items
	Consume(items cart.Items)
}

// Config wires a Manager.
type Config struct {
	Users         UserStore
	Stock         StockAdjuster
	Catalog       Catalog
	Principal     Principal
	DeliveryFee   *decimal.Decimal
	WriteAttempts int
	Now           func() time.Time
	NewID         func() string
	Logger        *zap.Logger
}

// Manager is the Order Lifecycle Manager for one session.
type Manager struct {
	users         UserStore
	stock         StockAdjuster
	catalog       Catalog
	principal     Principal
	deliveryFee   decimal.Decimal
	writeAttempts int
	now           func() time.Time
	newID         func() string
	logger        *zap.Logger
}

// NewManager creates a Manager from cfg, filling defaults.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		users:         cfg.Users,
		stock:         cfg.Stock,
		catalog:       cfg.Catalog,
		principal:     cfg.Principal,
		deliveryFee:   DefaultDeliveryFee,
		writeAttempts: cfg.WriteAttempts,
		now:           cfg.Now,
		newID:         cfg.NewID,
		logger:        storefront.OrNop(cfg.Logger),
	}
	if cfg.DeliveryFee != nil {
		m.deliveryFee = *cfg.DeliveryFee
	}
	if m.writeAttempts <= 0 {
		m.writeAttempts = DefaultWriteAttempts
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = storefront.NewOrderID
	}
	return m
}

// DeliveryFee is the flat fee added to each order.
func (m *Manager) DeliveryFee() decimal.Decimal {
	return m.deliveryFee
}

func (m *Manager) identity() (storefront.Identity, error) {
	if m.principal == nil {
		return storefront.Identity{}, storefront.NewError(storefront.ReasonUnauthenticated, ErrMsgNotSignedIn)
	}
	id, ok := m.principal.Current()
	if !ok || !id.Valid() {
		return storefront.Identity{}, storefront.NewError(storefront.ReasonUnauthenticated, ErrMsgNotSignedIn)
	}
	return id, nil
}

func (m *Manager) admin() (storefront.Identity, error) {
	id, err := m.identity()
	if err != nil {
		return id, err
	}
	if !id.IsAdmin() {
		return id, storefront.NewError(storefront.ReasonUnauthorized, ErrMsgAdminOnly)
	}
	return id, nil
}

// updateOrders applies mutate to the user's order list and writes it back
// conditioned on the record version, re-reading and re-applying on
// conflict. start, when non-nil, is used for the first attempt instead of
// a fresh read. extra is merged into every patch.
func (m *Manager) updateOrders(ctx context.Context, userID string, start *User, extra UserPatch,
	mutate func(orders []Order) ([]Order, error)) (User, error) {

	user := start
	for attempt := 1; attempt <= m.writeAttempts; attempt++ {
		if user == nil {
			fresh, err := m.users.GetUser(ctx, userID)
			if err != nil {
				return User{}, err
			}
			user = &fresh
		}

		current := make([]Order, len(user.Orders))
		for i, o := range user.Orders {
			current[i] = o.Clone()
		}
		next, err := mutate(current)
		if err != nil {
			return User{}, err
		}

		version := user.Version
		patch := extra
		patch.Orders = &next
		patch.IfVersion = &version

		updated, err := m.users.PatchUser(ctx, userID, patch)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, storefront.ErrVersionConflict) {
			return User{}, err
		}
		m.logger.Info("user record changed underneath; retrying",
			zap.String("user_id", userID),
			zap.Int64("read_version", version),
			zap.Int("attempt", attempt),
		)
		user = nil
	}
	return User{}, storefront.NewErrorf(storefront.ReasonVersionConflict, ErrMsgOrderWriteConflict, userID, m.writeAttempts)
}
