package order

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/storefront"
)

// UpdateOrderStatus overwrites the status of another user's order. It is
// restricted to administrators and goes through AdminOverride, so the
// customer transition table does not apply. Stock is not adjusted.
func (m *Manager) UpdateOrderStatus(ctx context.Context, userID, orderID string, status Status) (Order, error) {
	admin, err := m.admin()
	if err != nil {
		return Order{}, err
	}
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if userID == "" {
		return Order{}, storefront.NewInvalidArgument(ErrMsgUserIDRequired)
	}
	if orderID == "" {
		return Order{}, storefront.NewInvalidArgument(ErrMsgOrderIDRequired)
	}
	if !status.Valid() {
		return Order{}, storefront.NewErrorf(storefront.ReasonInvalidArgument, ErrMsgUnknownStatus, status)
	}

	var (
		updated  Order
		previous Status
	)
	_, err = m.updateOrders(ctx, userID, nil, UserPatch{},
		func(orders []Order) ([]Order, error) {
			for i := range orders {
				if orders[i].ID != orderID {
					continue
				}
				previous = orders[i].Status
				orders[i].Status, _ = AdminOverride(previous, status)
				updated = orders[i]
				return orders, nil
			}
			return nil, storefront.NewErrorf(storefront.ReasonOrderNotFound, ErrMsgOrderNotFound, orderID)
		})
	if err != nil {
		return Order{}, err
	}

	m.logger.Info("order status overridden",
		zap.String("admin_id", admin.UserID),
		zap.String("user_id", userID),
		zap.String("order_id", orderID),
		zap.String("from", previous.String()),
		zap.String("to", updated.Status.String()),
	)
	return updated, nil
}
