package cart

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// Items maps product id -> variant -> quantity. Quantities are always > 0.
type Items map[string]map[string]int

// Clone returns a deep copy with non-positive entries dropped.
func (it Items) Clone() Items {
	out := make(Items, len(it))
	for pid, variants := range it {
		for v, qty := range variants {
			if qty <= 0 {
				continue
			}
			if out[pid] == nil {
				out[pid] = make(map[string]int, len(variants))
			}
			out[pid][v] = qty
		}
	}
	return out
}

// Line is one (product, variant) entry of the cart.
type Line struct {
	ProductID string `json:"productId"`
	Variant   string `json:"variant"`
	Quantity  int    `json:"quantity"`
}

// Lines flattens the items into a stable order (product id, then variant).
func (it Items) Lines() []Line {
	out := make([]Line, 0, len(it))
	for pid, variants := range it {
		for v, qty := range variants {
			if qty > 0 {
				out = append(out, Line{ProductID: pid, Variant: v, Quantity: qty})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Variant < out[j].Variant
	})
	return out
}

// Catalog is the read side of the product snapshot the ledger validates against.
type Catalog interface {
	Get(id string) (product.Product, bool)
}

// Syncer receives a copy of the cart after every mutation. Implementations
// must not block; the ledger does not wait for the remote write.
type Syncer interface {
	SyncCart(userID string, items Items)
}

// Ledger is the Cart Ledger for one session.
type Ledger struct {
	catalog Catalog
	syncer  Syncer
	logger  *zap.Logger

	mu    sync.Mutex
	owner string
	items Items
}

// NewLedger creates an empty, unbound ledger. syncer may be nil.
func NewLedger(catalog Catalog, syncer Syncer, logger *zap.Logger) *Ledger {
	return &Ledger{
		catalog: catalog,
		syncer:  syncer,
		logger:  storefront.OrNop(logger),
		items:   make(Items),
	}
}

// Bind attaches the ledger to a signed-in user and adopts items as the
// starting cart (typically the cart stored on the user record).
func (l *Ledger) Bind(userID string, items Items) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owner = strings.TrimSpace(userID)
	l.items = items.Clone()
}

// Unbind empties the cart and detaches it from the user (logout).
func (l *Ledger) Unbind() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owner = ""
	l.items = make(Items)
}

// Owner is the bound user id, or "" when no session is active.
func (l *Ledger) Owner() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// Items returns a copy of the current cart.
func (l *Ledger) Items() Items {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Clone()
}

// Lines returns the cart as stable-ordered lines.
func (l *Ledger) Lines() []Line {
	return l.Items().Lines()
}

// Quantity is the current quantity for (productID, variant).
func (l *Ledger) Quantity(productID, variant string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items[productID][variant]
}

// IsEmpty reports whether the cart has no positive entries.
func (l *Ledger) IsEmpty() bool {
	return l.Count() == 0
}

// set writes qty for (pid, v), deleting the entry when qty <= 0 and the
// product when its last variant goes. Caller holds l.mu.
func (l *Ledger) set(pid, v string, qty int) {
	if qty <= 0 {
		if variants, ok := l.items[pid]; ok {
			delete(variants, v)
			if len(variants) == 0 {
				delete(l.items, pid)
			}
		}
		return
	}
	if l.items[pid] == nil {
		l.items[pid] = make(map[string]int)
	}
	l.items[pid][v] = qty
}

// notify hands the mutated cart to the syncer. Caller holds l.mu so that
// successive snapshots reach the syncer in mutation order.
func (l *Ledger) notify() {
	if l.syncer == nil || l.owner == "" {
		return
	}
	l.syncer.SyncCart(l.owner, l.items.Clone())
}
