package cart

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Count is the sum of all quantities in the cart.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, variants := range l.items {
		for _, qty := range variants {
			n += qty
		}
	}
	return n
}

// Amount is the cart total at effective unit prices. A product missing
// from the snapshot contributes zero.
func (l *Ledger) Amount() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for pid, variants := range l.items {
		p, ok := l.catalog.Get(pid)
		if !ok {
			l.logger.Warn("cart product missing from snapshot; priced at zero", zap.String("product_id", pid))
			continue
		}
		price := p.EffectivePrice()
		for _, qty := range variants {
			total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		}
	}
	return total
}
