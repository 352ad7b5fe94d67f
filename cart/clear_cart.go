package cart

// Clear empties the cart. The remote copy is updated through the syncer;
// Clear does not wait for it.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = make(Items)
	l.notify()
}

// Consume subtracts items from the cart, leaving anything added since items
// was read. Entries that drop to zero are removed.
func (l *Ledger) Consume(items Items) {
	l.mu.Lock()
	defer l.mu.Unlock()
	changed := false
	for pid, variants := range items {
		for v, qty := range variants {
			current, ok := l.items[pid][v]
			if !ok || qty <= 0 {
				continue
			}
			l.set(pid, v, current-qty)
			changed = true
		}
	}
	if changed {
		l.notify()
	}
}
