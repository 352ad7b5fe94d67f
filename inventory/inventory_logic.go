package inventory

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// DefaultMaxAttempts bounds compare-and-swap retries per product.
const DefaultMaxAttempts = 5

// Store is the per-product read and conditional write pair
// (GET /products/{id}, PATCH /products/{id} with If-Match).
// SetStock must fail with a VersionConflict CommandError when the stored
// version differs from ifVersion.
type Store interface {
	GetProduct(ctx context.Context, id string) (product.Product, error)
	SetStock(ctx context.Context, id string, stock int, ifVersion int64) (product.Product, error)
}

// Adjustment is a signed stock change: negative debits, positive credits.
type Adjustment struct {
	ProductID string `json:"productId"`
	Delta     int    `json:"delta"`
}

// Inverse is the adjustment that undoes a.
func (a Adjustment) Inverse() Adjustment {
	return Adjustment{ProductID: a.ProductID, Delta: -a.Delta}
}

// Adjuster applies stock debits and credits as versioned read-modify-write
// cycles, so a concurrent sale between read and write is never lost.
type Adjuster struct {
	store       Store
	logger      *zap.Logger
	MaxAttempts int
}

// NewAdjuster creates an Adjuster over store.
func NewAdjuster(store Store, logger *zap.Logger) *Adjuster {
	return &Adjuster{
		store:       store,
		logger:      storefront.OrNop(logger),
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Aggregate merges per-line quantities into one adjustment per product,
// sorted by product id. sign is -1 for debits and +1 for credits.
func Aggregate(quantities map[string]int, sign int) []Adjustment {
	out := make([]Adjustment, 0, len(quantities))
	for pid, qty := range quantities {
		pid = strings.TrimSpace(pid)
		if pid == "" || qty <= 0 {
			continue
		}
		out = append(out, Adjustment{ProductID: pid, Delta: sign * qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
