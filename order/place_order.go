package order

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/inventory"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// PlaceResult is the outcome of a successful checkout.
type PlaceResult struct {
	Order Order `json:"order"`
	// Skipped lists cart lines whose product was missing from the snapshot
	// and therefore were not ordered.
	Skipped []cart.Line `json:"skipped,omitempty"`
}

// PlaceOrder converts the cart into a persisted order.
//
// Local validation runs first and never touches the network. Stock is then
// debited for each distinct product concurrently; if any debit or the final
// user write fails, the debits that did apply are credited back and the
// original failure is returned, joined with any compensation failure.
// On success the checked-out quantities are removed from the cart; items
// added while the checkout was in flight stay.
func (m *Manager) PlaceOrder(ctx context.Context, ledger Cart, in Checkout) (*PlaceResult, error) {
	items := ledger.Items()
	if len(items) == 0 {
		return nil, storefront.NewError(storefront.ReasonEmptyCart, ErrMsgCartEmpty)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	who, err := m.identity()
	if err != nil {
		return nil, err
	}

	lines, skipped := m.buildLines(items)
	for _, s := range skipped {
		m.logger.Warn("cart line dropped at checkout: product not in snapshot",
			zap.String("user_id", who.UserID),
			zap.String("product_id", s.ProductID),
			zap.String("variant", s.Variant),
			zap.Int("quantity", s.Quantity),
		)
	}
	if len(lines) == 0 {
		return nil, storefront.NewError(storefront.ReasonEmptyCart, ErrMsgNothingToOrder)
	}

	o := Order{
		ID:            m.newID(),
		UserID:        who.UserID,
		Items:         lines,
		DeliveryFee:   m.deliveryFee,
		Amount:        m.deliveryFee,
		Status:        StatusProcessing,
		Date:          m.now().UTC(),
		PaymentMethod: PaymentMethod(strings.ToLower(strings.TrimSpace(string(in.PaymentMethod)))),
		Address:       in.Address,
	}
	if o.PaymentMethod == PaymentUPI {
		o.UPIID = strings.TrimSpace(in.UPIID)
	}
	for _, l := range lines {
		o.Amount = o.Amount.Add(l.Total())
	}

	user, err := m.users.GetUser(ctx, who.UserID)
	if err != nil {
		return nil, err
	}

	debits := inventory.Aggregate(o.Quantities(), -1)
	applied, err := m.stock.Apply(ctx, debits)
	if err != nil {
		m.logger.Warn("stock debit failed; compensating",
			zap.String("order_id", o.ID),
			zap.Int("debits", len(debits)),
			zap.Int("applied", len(applied)),
			zap.Error(err),
		)
		return nil, m.abort(ctx, firstCommandError(err, ErrMsgStockNotReserved), applied)
	}

	emptyCart := cart.Items{}
	_, err = m.updateOrders(ctx, who.UserID, &user, UserPatch{Cart: &emptyCart},
		func(orders []Order) ([]Order, error) {
			return append([]Order{o}, orders...), nil
		})
	if err != nil {
		m.logger.Warn("order write failed; compensating",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		return nil, m.abort(ctx, firstCommandError(err, ErrMsgOrderNotPersisted), applied)
	}

	ledger.Consume(items)
	m.refresh(ctx)

	m.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Int("lines", len(o.Items)),
		zap.String("amount", o.Amount.String()),
	)
	return &PlaceResult{Order: o, Skipped: skipped}, nil
}

// buildLines prices every cart line from the snapshot. Lines whose product
// is not in the snapshot are returned separately.
func (m *Manager) buildLines(items cart.Items) (lines []Line, skipped []cart.Line) {
	for _, cl := range items.Lines() {
		p, ok := m.catalog.Get(cl.ProductID)
		if !ok {
			skipped = append(skipped, cl)
			continue
		}
		lines = append(lines, Line{
			ProductID: cl.ProductID,
			Name:      p.Name,
			Variant:   cl.Variant,
			UnitPrice: p.EffectivePrice(),
			Quantity:  cl.Quantity,
		})
	}
	return lines, skipped
}

// abort credits back applied adjustments and returns cause joined with any
// compensation failure.
func (m *Manager) abort(ctx context.Context, cause error, applied []inventory.Adjustment) error {
	if len(applied) == 0 {
		return cause
	}
	if err := m.stock.Compensate(ctx, applied); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// refresh reloads the product snapshot; failures only cost freshness.
func (m *Manager) refresh(ctx context.Context) {
	if m.catalog == nil {
		return
	}
	if err := m.catalog.Refresh(ctx); err != nil {
		m.logger.Warn("snapshot refresh failed", zap.Error(err))
	}
}

// firstCommandError returns err unchanged when it carries a CommandError,
// and wraps it as RemoteIO otherwise.
func firstCommandError(err error, op string) error {
	if storefront.AsCommandError(err) != nil {
		return err
	}
	return storefront.RemoteIOError(op, err)
}
