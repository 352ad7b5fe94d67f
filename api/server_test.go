package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminabbitt/gainlabz/api"
	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/inventory"
	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/remote/remotetest"
	"github.com/benjaminabbitt/gainlabz/session"
	"github.com/benjaminabbitt/gainlabz/storefront"
	"github.com/benjaminabbitt/gainlabz/syncqueue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	t        *testing.T
	store    *remotetest.Store
	verifier *session.TokenVerifier
	server   *api.Server
	router   *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := remotetest.New()
	store.PutProduct(product.Product{
		ID: "A", Name: "Whey Isolate", Price: decimal.NewFromInt(40),
		Stock: 5, Variants: []string{"Vanilla"},
	})
	store.PutUser(order.User{ID: "u1", Email: "asha@example.com", Cart: cart.Items{"A": {"Vanilla": 1}}})
	store.PutUser(order.User{ID: "admin", Email: "ops@example.com", Role: "admin"})

	verifier, err := session.NewTokenVerifier([]byte("test-secret"), "gainlabz")
	require.NoError(t, err)

	q := syncqueue.New(syncqueue.Config{BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	srv, err := api.NewServer(api.Config{
		Verifier: verifier,
		Deps: session.Deps{
			Users:    store,
			Stock:    inventory.NewAdjuster(store, nil),
			Snapshot: product.NewSnapshot(store, nil),
			Queue:    q,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.Close(context.Background())
		_ = q.Close(context.Background())
	})

	return &harness{t: t, store: store, verifier: verifier, server: srv, router: srv.Router()}
}

func (h *harness) token(userID string, role storefront.Role) string {
	h.t.Helper()
	tok, err := h.verifier.Issue(storefront.Identity{UserID: userID, Role: role}, time.Hour)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into), rec.Body.String())
}

func reason(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body storefront.ErrorResponse
	decode(t, rec, &body)
	return body.Reason
}

func address() order.Address {
	return order.Address{
		FirstName: "Asha", LastName: "Rao", Email: "asha@example.com",
		Street: "12 MG Road", City: "Pune", Zip: "411001", Country: "IN", Phone: "9999999999",
	}
}

func TestNewServer_RequiresVerifier(t *testing.T) {
	_, err := api.NewServer(api.Config{})

	assert.ErrorIs(t, err, storefront.ErrInvalidArgument)
}

func TestProducts_ArePublic(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/products", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz_ReportsCatalog(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, float64(0), body["products"])
	assert.NotContains(t, body, "catalogFetchedAt")

	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)

	rec = h.do(http.MethodGet, "/healthz", "", nil)
	body = nil
	decode(t, rec, &body)
	assert.Equal(t, float64(1), body["products"])
	assert.Equal(t, float64(1), body["sessions"])
	assert.Contains(t, body, "catalogFetchedAt")
}

func TestSession_MissingToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/session", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(storefront.ReasonUnauthenticated), reason(t, rec))
}

func TestCart_RequiresSession(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/cart", h.token("u1", storefront.RoleUser), nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_AdoptsRemoteCartAndResumes(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)

	rec := h.do(http.MethodPost, "/session", tok, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started api.SessionResponse
	decode(t, rec, &started)
	assert.Equal(t, "u1", started.User.UserID)
	assert.Equal(t, 1, started.Cart.Count)
	assert.False(t, started.Resumed)

	rec = h.do(http.MethodPost, "/session", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resumed api.SessionResponse
	decode(t, rec, &resumed)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, 1, h.server.SessionCount())
}

func TestSession_UnknownUser(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/session", h.token("ghost", storefront.RoleUser), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, h.server.SessionCount())
}

func TestCheckoutAndCancel(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)

	rec := h.do(http.MethodPost, "/cart/items", tok, api.AddItemRequest{ProductID: "A", Variant: "Vanilla"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var c api.CartResponse
	decode(t, rec, &c)
	assert.Equal(t, 2, c.Count)
	assert.True(t, decimal.NewFromInt(80).Equal(c.Amount))
	assert.True(t, decimal.NewFromInt(50).Equal(c.DeliveryFee))
	assert.True(t, decimal.NewFromInt(130).Equal(c.Total), "total %s", c.Total)

	rec = h.do(http.MethodPost, "/checkout", tok, order.Checkout{Address: address(), PaymentMethod: order.PaymentCOD})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var placed order.PlaceResult
	decode(t, rec, &placed)
	assert.True(t, decimal.NewFromInt(130).Equal(placed.Order.Amount))
	assert.Equal(t, 3, h.store.Product("A").Stock)

	rec = h.do(http.MethodGet, "/cart", tok, nil)
	decode(t, rec, &c)
	assert.Zero(t, c.Count)
	assert.True(t, c.Total.IsZero())

	rec = h.do(http.MethodGet, "/orders", tok, nil)
	var orders []order.Order
	decode(t, rec, &orders)
	require.Len(t, orders, 1)

	path := "/orders/" + placed.Order.ID + "/cancel"
	rec = h.do(http.MethodPost, path, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, h.store.Product("A").Stock)

	rec = h.do(http.MethodPost, path, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var again order.CancelResult
	decode(t, rec, &again)
	assert.True(t, again.AlreadyCancelled)
	assert.Equal(t, 5, h.store.Product("A").Stock)
}

func TestAddItem_InsufficientStock(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)
	qty := 5

	rec := h.do(http.MethodPost, "/cart/items", tok, api.AddItemRequest{ProductID: "A", Variant: "Vanilla", Quantity: &qty})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(storefront.ReasonInsufficientStock), reason(t, rec))
}

func TestAddItem_MalformedBody(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)

	rec := h.do(http.MethodPost, "/cart/items", tok, map[string]int{"quantity": 1})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(storefront.ReasonInvalidArgument), reason(t, rec))
}

func TestUpdateItem_ZeroRemoves(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)

	rec := h.do(http.MethodPut, "/cart/items", tok, api.SetItemRequest{ProductID: "A", Variant: "Vanilla", Quantity: 0})

	require.Equal(t, http.StatusOK, rec.Code)
	var c api.CartResponse
	decode(t, rec, &c)
	assert.Empty(t, c.Items)
}

func TestRemoveItem(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)

	rec := h.do(http.MethodDelete, "/cart/items?productId=A&variant=Vanilla", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c api.CartResponse
	decode(t, rec, &c)
	assert.Zero(t, c.Count)

	rec = h.do(http.MethodDelete, "/cart/items?variant=Vanilla", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/cart", tok, nil).Code)

	rec := h.do(http.MethodPost, "/checkout", tok, order.Checkout{Address: address(), PaymentMethod: order.PaymentCOD})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(storefront.ReasonEmptyCart), reason(t, rec))
}

func TestAdmin_RoutesRequireAdminRole(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)

	rec := h.do(http.MethodGet, "/admin/orders", tok, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(storefront.ReasonUnauthorized), reason(t, rec))
}

func TestAdmin_UpdatesStatusAndListsOrders(t *testing.T) {
	h := newHarness(t)
	user := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", user, nil).Code)
	rec := h.do(http.MethodPost, "/checkout", user, order.Checkout{Address: address(), PaymentMethod: order.PaymentCard})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var placed order.PlaceResult
	decode(t, rec, &placed)

	admin := h.token("admin", storefront.RoleAdmin)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", admin, nil).Code)

	rec = h.do(http.MethodPut, "/admin/users/u1/orders/"+placed.Order.ID+"/status", admin, api.StatusRequest{Status: "shipped"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated order.Order
	decode(t, rec, &updated)
	assert.Equal(t, order.StatusShipped, updated.Status)

	rec = h.do(http.MethodGet, "/admin/orders", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []order.View
	decode(t, rec, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "u1", views[0].UserID)

	rec = h.do(http.MethodPut, "/admin/users/u1/orders/"+placed.Order.ID+"/status", admin, api.StatusRequest{Status: "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSession_DowngradedRoleLosesAdminAccess(t *testing.T) {
	h := newHarness(t)
	admin := h.token("admin", storefront.RoleAdmin)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", admin, nil).Code)
	demoted := h.token("admin", storefront.RoleUser)

	rec := h.do(http.MethodGet, "/admin/orders", demoted, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(storefront.ReasonUnauthenticated), reason(t, rec))

	rec = h.do(http.MethodPost, "/session", demoted, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started api.SessionResponse
	decode(t, rec, &started)
	assert.False(t, started.Resumed)
	assert.Equal(t, storefront.RoleUser, started.User.Role)
	assert.Equal(t, 1, h.server.SessionCount())

	rec = h.do(http.MethodGet, "/admin/orders", demoted, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/admin/orders", admin, nil).Code)
}

func TestEndSession_ThenRoutesRejected(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)

	rec := h.do(http.MethodDelete, "/session", tok, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/cart", tok, nil).Code)
	assert.Equal(t, cart.Items{"A": {"Vanilla": 1}}, h.store.User("u1").Cart)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/session", tok, nil).Code)
}

func TestSyncStatus_ReportsCartWrites(t *testing.T) {
	h := newHarness(t)
	tok := h.token("u1", storefront.RoleUser)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/session", tok, nil).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/cart", tok, nil).Code)

	rec := h.do(http.MethodGet, "/sync", tok, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var st syncqueue.Status
	decode(t, rec, &st)
	assert.False(t, st.Closed)
}
