package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/storefront"
	"github.com/benjaminabbitt/gainlabz/syncqueue"
)

// CartPatcher is the part of the user store cart syncs write through.
type CartPatcher interface {
	PatchUser(ctx context.Context, id string, patch order.UserPatch) (order.User, error)
}

// CartSyncer writes cart snapshots to the user record through the sync
// queue. Successive snapshots for a user coalesce, so only the latest cart
// is written once the queue catches up.
type CartSyncer struct {
	queue  *syncqueue.Queue
	users  CartPatcher
	logger *zap.Logger
}

// NewCartSyncer creates a syncer over queue.
func NewCartSyncer(queue *syncqueue.Queue, users CartPatcher, logger *zap.Logger) *CartSyncer {
	return &CartSyncer{queue: queue, users: users, logger: storefront.OrNop(logger)}
}

// CartKey is the queue key cart writes for userID are coalesced under.
func CartKey(userID string) string {
	return "cart:" + storefront.SessionRoot(userID).String()
}

// SyncCart implements cart.Syncer.
func (s *CartSyncer) SyncCart(userID string, items cart.Items) {
	err := s.queue.Submit(CartKey(userID), func(ctx context.Context) error {
		_, err := s.users.PatchUser(ctx, userID, order.UserPatch{Cart: &items})
		return err
	})
	if err != nil {
		s.logger.Warn("cart sync not queued", zap.String("user_id", userID), zap.Error(err))
	}
}
