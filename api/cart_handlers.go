package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/benjaminabbitt/gainlabz/cart"
	"github.com/benjaminabbitt/gainlabz/session"
)

// CartResponse is the cart as the API reports it. Total is what checkout
// would charge: Amount plus the delivery fee, or zero for an empty cart.
type CartResponse struct {
	Items       cart.Items      `json:"items"`
	Lines       []cart.Line     `json:"lines"`
	Count       int             `json:"count"`
	Amount      decimal.Decimal `json:"amount"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Total       decimal.Decimal `json:"total"`
}

// AddItemRequest adds units of one product variant. Quantity defaults to 1.
type AddItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Variant   string `json:"variant"`
	Quantity  *int   `json:"quantity"`
}

// SetItemRequest overwrites the quantity of one entry; zero or less removes it.
type SetItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Variant   string `json:"variant"`
	Quantity  int    `json:"quantity"`
}

func cartResponse(sess *session.Session) CartResponse {
	ledger := sess.Cart()
	resp := CartResponse{
		Items:       ledger.Items(),
		Lines:       ledger.Lines(),
		Count:       ledger.Count(),
		Amount:      ledger.Amount(),
		DeliveryFee: sess.Orders().DeliveryFee(),
	}
	if resp.Count > 0 {
		resp.Total = resp.Amount.Add(resp.DeliveryFee)
	}
	return resp
}

func (s *Server) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Snapshot.All())
}

func (s *Server) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, cartResponse(sessionOf(c)))
}

func (s *Server) clearCart(c *gin.Context) {
	sess := sessionOf(c)
	sess.Cart().Clear()
	c.JSON(http.StatusOK, cartResponse(sess))
}

func (s *Server) addItem(c *gin.Context) {
	var req AddItemRequest
	if !s.bind(c, &req) {
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	sess := sessionOf(c)
	if _, err := sess.Cart().AddToCart(req.ProductID, req.Variant, qty); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(sess))
}

func (s *Server) updateItem(c *gin.Context) {
	var req SetItemRequest
	if !s.bind(c, &req) {
		return
	}
	sess := sessionOf(c)
	if err := sess.Cart().UpdateQuantity(req.ProductID, req.Variant, req.Quantity); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(sess))
}

func (s *Server) removeItem(c *gin.Context) {
	sess := sessionOf(c)
	if err := sess.Cart().RemoveItem(c.Query("productId"), c.Query("variant")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(sess))
}

func (s *Server) syncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, sessionOf(c).SyncStatus())
}
