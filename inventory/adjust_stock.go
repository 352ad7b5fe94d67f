package inventory

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// Debit removes qty units. It fails with InsufficientStock (or OutOfStock
// when nothing is left) rather than clamping at zero.
func (a *Adjuster) Debit(ctx context.Context, productID string, qty int) (product.Product, error) {
	if qty <= 0 {
		return product.Product{}, storefront.NewInvalidArgument(ErrMsgQuantityPositive)
	}
	return a.Adjust(ctx, Adjustment{ProductID: productID, Delta: -qty})
}

// Credit returns qty units to stock.
func (a *Adjuster) Credit(ctx context.Context, productID string, qty int) (product.Product, error) {
	if qty <= 0 {
		return product.Product{}, storefront.NewInvalidArgument(ErrMsgQuantityPositive)
	}
	return a.Adjust(ctx, Adjustment{ProductID: productID, Delta: qty})
}

// Adjust re-reads the product's current stock, applies adj.Delta and writes
// it back conditioned on the version it read, retrying on conflict.
func (a *Adjuster) Adjust(ctx context.Context, adj Adjustment) (product.Product, error) {
	pid := strings.TrimSpace(adj.ProductID)
	if pid == "" {
		return product.Product{}, storefront.NewInvalidArgument(ErrMsgProductIDRequired)
	}

	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return product.Product{}, storefront.RemoteIOError("adjust stock", err)
		}

		current, err := a.store.GetProduct(ctx, pid)
		if err != nil {
			return product.Product{}, err
		}

		next := current.Stock + adj.Delta
		if next < 0 {
			name := current.Name
			if name == "" {
				name = pid
			}
			if current.Stock <= 0 {
				return product.Product{}, storefront.NewErrorf(storefront.ReasonOutOfStock, ErrMsgOutOfStock, name)
			}
			return product.Product{}, storefront.NewErrorf(storefront.ReasonInsufficientStock,
				ErrMsgInsufficientStock, name, current.Stock, -adj.Delta)
		}

		updated, err := a.store.SetStock(ctx, pid, next, current.Version)
		if err == nil {
			a.logger.Debug("stock adjusted",
				zap.String("product_id", pid),
				zap.Int("delta", adj.Delta),
				zap.Int("stock", updated.Stock),
				zap.Int64("version", updated.Version),
				zap.Int("attempt", attempt),
			)
			return updated, nil
		}
		if !errors.Is(err, storefront.ErrVersionConflict) {
			return product.Product{}, err
		}
		a.logger.Info("stock version conflict; retrying",
			zap.String("product_id", pid),
			zap.Int64("read_version", current.Version),
			zap.Int("attempt", attempt),
		)
	}

	return product.Product{}, storefront.NewErrorf(storefront.ReasonVersionConflict, ErrMsgTooManyConflicts, pid, attempts)
}
