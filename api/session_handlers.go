package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/session"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// SessionResponse describes a started session.
type SessionResponse struct {
	User storefront.Identity `json:"user"`
	Cart CartResponse        `json:"cart"`
	// Resumed is set when the user already had an active session.
	Resumed bool `json:"resumed"`
}

func (s *Server) startSession(c *gin.Context) {
	id := identityOf(c)
	if sess := s.lookup(id.UserID); sess != nil && sess.Active() {
		if sameRole(sess.Identity(), id) {
			c.JSON(http.StatusOK, SessionResponse{User: sess.Identity(), Cart: cartResponse(sess), Resumed: true})
			return
		}
		s.logger.Info("role changed; replacing session",
			zap.String("user_id", id.UserID),
			zap.String("from", string(sess.Identity().Role)),
			zap.String("to", string(id.Role)),
		)
		if s.retire(sess) {
			if err := sess.Logout(c.Request.Context()); err != nil {
				s.fail(c, err)
				return
			}
		}
	}

	sess, err := session.New(id, s.deps)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := sess.Login(c.Request.Context()); err != nil {
		_ = sess.Logout(c.Request.Context())
		s.fail(c, err)
		return
	}

	adopted, fresh := s.adopt(sess)
	if !fresh {
		// Lost a race with a concurrent sign-in for the same user.
		_ = sess.Logout(c.Request.Context())
	}
	s.logger.Info("session registered", zap.String("user_id", id.UserID), zap.Bool("fresh", fresh))

	status := http.StatusCreated
	if !fresh {
		status = http.StatusOK
	}
	c.JSON(status, SessionResponse{User: adopted.Identity(), Cart: cartResponse(adopted), Resumed: !fresh})
}

func (s *Server) endSession(c *gin.Context) {
	sess := s.remove(identityOf(c).UserID)
	if sess == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if err := sess.Logout(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func sameRole(a, b storefront.Identity) bool {
	return a.IsAdmin() == b.IsAdmin()
}
