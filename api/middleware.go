package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/session"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

const (
	keyIdentity = "identity"
	keySession  = "session"
)

// authenticate verifies the bearer token and stores the identity.
func (s *Server) authenticate(c *gin.Context) {
	id, err := s.verifier.Verify(c.GetHeader("Authorization"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Set(keyIdentity, id)
	c.Next()
}

// requireSession resolves the caller's active session. A token whose role
// differs from the one the session was started with must sign in again.
func (s *Server) requireSession(c *gin.Context) {
	id := identityOf(c)
	sess := s.lookup(id.UserID)
	if sess == nil || !sess.Active() {
		s.fail(c, storefront.NewError(storefront.ReasonUnauthenticated, ErrMsgNoSession))
		return
	}
	if !sameRole(sess.Identity(), id) {
		s.fail(c, storefront.NewError(storefront.ReasonUnauthenticated, ErrMsgRoleChanged))
		return
	}
	c.Set(keySession, sess)
	c.Next()
}

func identityOf(c *gin.Context) storefront.Identity {
	v, _ := c.Get(keyIdentity)
	id, _ := v.(storefront.Identity)
	return id
}

func sessionOf(c *gin.Context) *session.Session {
	v, _ := c.Get(keySession)
	sess, _ := v.(*session.Session)
	return sess
}

func (s *Server) bind(c *gin.Context, into interface{}) bool {
	if err := c.ShouldBindJSON(into); err != nil {
		s.fail(c, storefront.NewErrorf(storefront.ReasonInvalidArgument, ErrMsgBadBody, err))
		return false
	}
	return true
}

// fail writes err with the status its gRPC code maps to.
func (s *Server) fail(c *gin.Context, err error) {
	status := storefront.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", identityOf(c).UserID),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, storefront.NewErrorResponse(err))
}
