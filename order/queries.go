package order

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/storefront"
)

// ListOrders returns the signed-in user's orders, newest first.
func (m *Manager) ListOrders(ctx context.Context) ([]Order, error) {
	who, err := m.identity()
	if err != nil {
		return nil, err
	}
	user, err := m.users.GetUser(ctx, who.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]Order, len(user.Orders))
	for i, o := range user.Orders {
		out[i] = o.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// ListAllOrders aggregates every user's orders for administrators, newest first.
func (m *Manager) ListAllOrders(ctx context.Context) ([]View, error) {
	if _, err := m.admin(); err != nil {
		return nil, err
	}
	users, err := m.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var out []View
	for _, u := range users {
		for _, o := range u.Orders {
			out = append(out, View{UserID: u.ID, UserEmail: u.Email, Order: o.Clone()})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order.Date.After(out[j].Order.Date)
	})
	return out, nil
}

// SaveDefaultAddress stores addr as the signed-in user's default shipping address.
func (m *Manager) SaveDefaultAddress(ctx context.Context, addr Address) (Address, error) {
	who, err := m.identity()
	if err != nil {
		return Address{}, err
	}
	if missing := addr.MissingFields(); len(missing) > 0 {
		return Address{}, storefront.NewErrorf(storefront.ReasonMissingField, ErrMsgAddressFieldReq, missing[0])
	}
	if _, err := m.users.PatchUser(ctx, who.UserID, UserPatch{DefaultAddress: &addr}); err != nil {
		return Address{}, err
	}
	m.logger.Debug("default address saved", zap.String("user_id", who.UserID))
	return addr, nil
}
