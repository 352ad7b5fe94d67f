package order

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/inventory"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// CancelResult is the outcome of CancelOrder.
type CancelResult struct {
	Order Order `json:"order"`
	// AlreadyCancelled is set when the order was cancelled before this call;
	// stock was left untouched.
	AlreadyCancelled bool `json:"alreadyCancelled"`
	// Skipped lists products no longer in the store; their stock could not
	// be restored and the order was cancelled regardless.
	Skipped []string `json:"skipped,omitempty"`
}

var errAlreadyCancelled = errors.New("order already cancelled")

// CancelOrder cancels one of the signed-in user's orders and credits its
// stock back. Cancelling a cancelled order is not an error. A product that
// has since been removed from the store has nothing to restore and does not
// block the cancellation; any other credit failure aborts it.
func (m *Manager) CancelOrder(ctx context.Context, orderID string) (*CancelResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, storefront.NewInvalidArgument(ErrMsgOrderIDRequired)
	}
	who, err := m.identity()
	if err != nil {
		return nil, err
	}

	user, err := m.users.GetUser(ctx, who.UserID)
	if err != nil {
		return nil, err
	}
	idx := user.FindOrder(orderID)
	if idx < 0 {
		return nil, storefront.NewErrorf(storefront.ReasonOrderNotFound, ErrMsgOrderNotFound, orderID)
	}
	target := user.Orders[idx].Clone()
	if target.Status == StatusCancelled {
		m.logger.Warn("order already cancelled",
			zap.String("order_id", orderID),
			zap.String("user_id", who.UserID),
		)
		return &CancelResult{Order: target, AlreadyCancelled: true}, nil
	}
	if !target.Status.Cancellable() {
		return nil, storefront.NewFailedPreconditionf(ErrMsgCannotCancel, target.Status)
	}

	credits := inventory.Aggregate(target.Quantities(), 1)
	applied, err := m.stock.Apply(ctx, credits)
	skipped, err := splitMissingProducts(err)
	if err != nil {
		m.logger.Warn("stock credit failed; compensating",
			zap.String("order_id", orderID),
			zap.Int("credits", len(credits)),
			zap.Int("applied", len(applied)),
			zap.Error(err),
		)
		return nil, m.abort(ctx, firstCommandError(err, ErrMsgStockNotRestored), applied)
	}
	for _, pid := range skipped {
		m.logger.Warn("stock not restored: product no longer exists",
			zap.String("order_id", orderID),
			zap.String("product_id", pid),
		)
	}

	var cancelled Order
	_, err = m.updateOrders(ctx, who.UserID, &user, UserPatch{},
		func(orders []Order) ([]Order, error) {
			for i := range orders {
				if orders[i].ID != orderID {
					continue
				}
				switch {
				case orders[i].Status == StatusCancelled:
					cancelled = orders[i]
					return nil, errAlreadyCancelled
				case !orders[i].Status.Cancellable():
					return nil, storefront.NewFailedPreconditionf(ErrMsgCannotCancel, orders[i].Status)
				}
				orders[i].Status = StatusCancelled
				cancelled = orders[i]
				return orders, nil
			}
			return nil, storefront.NewErrorf(storefront.ReasonOrderNotFound, ErrMsgOrderNotFound, orderID)
		})
	if errors.Is(err, errAlreadyCancelled) {
		// Lost a race with another cancellation; its credits already stand.
		if cerr := m.stock.Compensate(ctx, applied); cerr != nil {
			return nil, cerr
		}
		return &CancelResult{Order: cancelled, AlreadyCancelled: true}, nil
	}
	if err != nil {
		m.logger.Warn("cancellation write failed; compensating",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, m.abort(ctx, firstCommandError(err, ErrMsgCancelNotPersisted), applied)
	}

	m.refresh(ctx)

	m.logger.Info("order cancelled",
		zap.String("order_id", orderID),
		zap.String("user_id", who.UserID),
		zap.Int("credits", len(applied)),
		zap.Int("skipped", len(skipped)),
	)
	return &CancelResult{Order: cancelled, Skipped: skipped}, nil
}

// splitMissingProducts separates credits that failed because the product is
// gone from every other failure. The remaining failures are returned joined.
func splitMissingProducts(err error) (missing []string, rest error) {
	if err == nil {
		return nil, nil
	}
	failures := inventory.Failures(err)
	if len(failures) == 0 {
		return nil, err
	}
	var others []error
	for _, f := range failures {
		if errors.Is(f, storefront.ErrProductNotFound) {
			missing = append(missing, f.Adjustment.ProductID)
			continue
		}
		others = append(others, f)
	}
	return missing, errors.Join(others...)
}
