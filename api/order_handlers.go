package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benjaminabbitt/gainlabz/order"
)

// StatusRequest is the body of the admin status update.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) checkout(c *gin.Context) {
	var in order.Checkout
	if !s.bind(c, &in) {
		return
	}
	res, err := sessionOf(c).Checkout(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) listOrders(c *gin.Context) {
	orders, err := sessionOf(c).Orders().ListOrders(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) cancelOrder(c *gin.Context) {
	res, err := sessionOf(c).Orders().CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) saveAddress(c *gin.Context) {
	var addr order.Address
	if !s.bind(c, &addr) {
		return
	}
	sess := sessionOf(c)
	if err := sess.SaveDefaultAddress(c.Request.Context(), addr); err != nil {
		s.fail(c, err)
		return
	}
	saved, _ := sess.DefaultAddress()
	c.JSON(http.StatusOK, saved)
}

func (s *Server) listAllOrders(c *gin.Context) {
	views, err := sessionOf(c).Orders().ListAllOrders(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var req StatusRequest
	if !s.bind(c, &req) {
		return
	}
	status, ok := order.ParseStatus(req.Status)
	if !ok {
		status = order.Status(req.Status)
	}
	updated, err := sessionOf(c).Orders().UpdateOrderStatus(c.Request.Context(), c.Param("uid"), c.Param("oid"), status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
