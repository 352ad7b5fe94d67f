package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/inventory"
	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/remote/remotetest"
	"github.com/benjaminabbitt/gainlabz/session"
	"github.com/benjaminabbitt/gainlabz/storefront"
	"github.com/benjaminabbitt/gainlabz/syncqueue"
)

func testDeps(t *testing.T) (session.Deps, *remotetest.Store) {
	t.Helper()
	store := remotetest.New()
	store.PutProduct(product.Product{
		ID: "A", Name: "Whey Isolate", Price: decimal.NewFromInt(40),
		Stock: 5, Variants: []string{"Vanilla"},
	})
	home := order.Address{
		FirstName: "Asha", LastName: "Rao", Email: "asha@example.com",
		Street: "12 MG Road", City: "Pune", Zip: "411001", Country: "IN", Phone: "9999999999",
	}
	store.PutUser(order.User{ID: "u1", Cart: cart.Items{"A": {"Vanilla": 1}}, DefaultAddress: &home})

	q := syncqueue.New(syncqueue.Config{BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, MaxAttempts: 2})
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	return session.Deps{
		Users:    store,
		Stock:    inventory.NewAdjuster(store, nil),
		Snapshot: product.NewSnapshot(store, nil),
		Queue:    q,
	}, store
}

func login(t *testing.T, deps session.Deps) *session.Session {
	t.Helper()
	s, err := session.New(storefront.Identity{UserID: "u1", Role: storefront.RoleUser}, deps)
	require.NoError(t, err)
	require.NoError(t, s.Login(context.Background()))
	return s
}

func TestNew_RequiresIdentity(t *testing.T) {
	deps, _ := testDeps(t)

	_, err := session.New(storefront.Identity{}, deps)

	assert.True(t, errors.Is(err, storefront.ErrUnauthenticated))
}

func TestLogin_AdoptsRemoteCart(t *testing.T) {
	deps, _ := testDeps(t)

	s := login(t, deps)

	assert.True(t, s.Active())
	assert.Equal(t, 1, s.Cart().Quantity("A", "Vanilla"))
	addr, ok := s.DefaultAddress()
	require.True(t, ok)
	assert.Equal(t, "Pune", addr.City)
}

func TestLogin_UnknownUser(t *testing.T) {
	deps, _ := testDeps(t)
	s, err := session.New(storefront.Identity{UserID: "ghost"}, deps)
	require.NoError(t, err)

	err = s.Login(context.Background())

	assert.True(t, errors.Is(err, storefront.ErrUserNotFound))
	assert.False(t, s.Active())
}

func TestCartMutationsReachRemoteRecord(t *testing.T) {
	deps, store := testDeps(t)
	s := login(t, deps)

	_, err := s.Cart().AddToCart("A", "Vanilla", 2)
	require.NoError(t, err)
	require.NoError(t, s.FlushSync(context.Background()))

	assert.Equal(t, cart.Items{"A": {"Vanilla": 3}}, store.User("u1").Cart)
	assert.Equal(t, 1, s.SyncStatus().Succeeded)
}

func TestCartSyncFailureIsVisible(t *testing.T) {
	deps, store := testDeps(t)
	s := login(t, deps)
	boom := storefront.RemoteIOError("patch user", errors.New("503"))
	store.FailNext(remotetest.OpPatchUser, boom)
	store.FailNext(remotetest.OpPatchUser, boom)

	s.Cart().Clear()
	require.NoError(t, s.FlushSync(context.Background()))

	st := s.SyncStatus()
	assert.Equal(t, 1, st.Failed)
	assert.Contains(t, st.LastError, "503")
	assert.Equal(t, cart.Items{"A": {"Vanilla": 1}}, store.User("u1").Cart)
}

func TestCheckout_FallsBackToDefaultAddress(t *testing.T) {
	deps, store := testDeps(t)
	s := login(t, deps)

	res, err := s.Checkout(context.Background(), order.Checkout{PaymentMethod: order.PaymentCOD})

	require.NoError(t, err)
	assert.Equal(t, "Pune", res.Order.Address.City)
	assert.Equal(t, 4, store.Product("A").Stock)
	assert.True(t, s.Cart().IsEmpty())

	require.NoError(t, s.FlushSync(context.Background()))
	assert.Empty(t, store.User("u1").Cart)
}

func TestLogout_KeepsRemoteCartAndEndsSession(t *testing.T) {
	deps, store := testDeps(t)
	s := login(t, deps)

	require.NoError(t, s.Logout(context.Background()))

	assert.False(t, s.Active())
	assert.True(t, s.Cart().IsEmpty())
	assert.Equal(t, cart.Items{"A": {"Vanilla": 1}}, store.User("u1").Cart)

	_, err := s.Cart().AddToCart("A", "Vanilla", 1)
	assert.True(t, errors.Is(err, storefront.ErrUnauthenticated))
	_, err = s.Orders().ListOrders(context.Background())
	assert.True(t, errors.Is(err, storefront.ErrUnauthenticated))
}

func TestLogout_ClosesPrivateQueue(t *testing.T) {
	deps, _ := testDeps(t)
	deps.Queue = nil
	s := login(t, deps)

	require.NoError(t, s.Logout(context.Background()))

	assert.True(t, s.SyncStatus().Closed)
}
