package cart

import (
	"strings"

	"github.com/benjaminabbitt/gainlabz/storefront"
)

// UpdateQuantity sets the quantity for (productID, variant). qty <= 0
// removes the entry, and the product once it has no variants left.
// Unlike AddToCart, stock is not checked.
func (l *Ledger) UpdateQuantity(productID, variant string, qty int) error {
	pid := strings.TrimSpace(productID)
	if pid == "" {
		return storefront.NewInvalidArgument(ErrMsgProductIDRequired)
	}
	v := strings.TrimSpace(variant)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.items[pid][v] == qty || (qty <= 0 && l.items[pid][v] == 0) {
		return nil
	}
	l.set(pid, v, qty)
	l.notify()
	return nil
}

// RemoveItem removes (productID, variant) from the cart.
func (l *Ledger) RemoveItem(productID, variant string) error {
	return l.UpdateQuantity(productID, variant, 0)
}
