package cart

import (
	"strings"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/storefront"
)

// AddToCart adds qty units of (productID, variant), checked against the
// stock last observed in the snapshot. An empty variant selects the
// product's default variant; any other variant must be one the product
// lists. OutOfStock means nothing more can be added. On failure the cart is left unchanged.
// Returns the new quantity for the entry.
func (l *Ledger) AddToCart(productID, variant string, qty int) (int, error) {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return 0, storefront.NewInvalidArgument(ErrMsgProductIDRequired)
	}
	if qty < 1 {
		return 0, storefront.NewInvalidArgument(ErrMsgQuantityPositive)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner == "" {
		return 0, storefront.NewError(storefront.ReasonUnauthenticated, ErrMsgNotSignedIn)
	}

	p, ok := l.catalog.Get(pid)
	if !ok {
		return 0, storefront.NewErrorf(storefront.ReasonProductNotFound, ErrMsgProductNotFound, pid)
	}

	v := strings.TrimSpace(variant)
	if v == "" {
		v = p.DefaultVariant()
	}
	if !p.HasVariant(v) {
		return 0, storefront.NewInvalidArgument(formatMsg(ErrMsgUnknownVariant, v, displayName(p.Name, pid, "")))
	}

	current := l.items[pid][v]
	newTotal := current + qty
	if newTotal > p.Stock {
		shortfall := &ShortfallError{ProductID: pid, Variant: v, InCart: current, Requested: qty, Stock: p.Stock}
		name := displayName(p.Name, pid, v)
		l.logger.Info("add to cart rejected",
			zap.String("product_id", pid),
			zap.String("variant", v),
			zap.Int("in_cart", current),
			zap.Int("requested", qty),
			zap.Int("stock", p.Stock),
		)
		if !p.InStock() || shortfall.Available() == 0 {
			return 0, &storefront.CommandError{
				Code:    storefront.StatusFailedPrecondition,
				Reason:  storefront.ReasonOutOfStock,
				Message: formatMsg(ErrMsgOutOfStock, name),
				Cause:   shortfall,
			}
		}
		return 0, &storefront.CommandError{
			Code:    storefront.StatusFailedPrecondition,
			Reason:  storefront.ReasonInsufficientStock,
			Message: formatMsg(ErrMsgOnlyLeft, shortfall.Available(), name),
			Cause:   shortfall,
		}
	}

	l.set(pid, v, newTotal)
	l.notify()
	return newTotal, nil
}

func displayName(name, pid, variant string) string {
	if name == "" {
		name = pid
	}
	if variant == "" {
		return name
	}
	return name + " (" + variant + ")"
}
