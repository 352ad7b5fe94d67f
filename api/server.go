// Package api is the storefront HTTP API. Callers authenticate with a
// bearer JWT; POST /session starts a session for the token's user and every
// cart and order route then runs against that session.
package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/session"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// Config wires the API to its collaborators.
type Config struct {
	Verifier *session.TokenVerifier
	Deps     session.Deps
	Logger   *zap.Logger
}

// Server hosts one session per signed-in user.
type Server struct {
	verifier *session.TokenVerifier
	deps     session.Deps
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewServer validates cfg and creates an API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Verifier == nil {
		return nil, storefront.NewInvalidArgument(ErrMsgVerifierRequired)
	}
	if cfg.Deps.Users == nil || cfg.Deps.Stock == nil || cfg.Deps.Snapshot == nil {
		return nil, storefront.NewInvalidArgument(ErrMsgDepsRequired)
	}
	logger := storefront.OrNop(cfg.Logger)
	deps := cfg.Deps
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Server{
		verifier: cfg.Verifier,
		deps:     deps,
		logger:   logger,
		sessions: make(map[string]*session.Session),
	}, nil
}

// Router builds the gin engine:
//
//	GET    /healthz                                public
//	GET    /products                               public
//	POST   /session            DELETE /session
//	GET    /cart               DELETE /cart
//	POST   /cart/items         PUT    /cart/items
//	DELETE /cart/items?productId=&variant=
//	POST   /checkout           GET    /orders
//	POST   /orders/:id/cancel  PUT    /address
//	GET    /sync
//	GET    /admin/orders
//	PUT    /admin/users/:uid/orders/:oid/status
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), storefront.RequestLogger(s.logger))

	r.GET("/healthz", s.healthz)
	r.GET("/products", s.listProducts)

	authed := r.Group("/", s.authenticate)
	authed.POST("/session", s.startSession)
	authed.DELETE("/session", s.endSession)

	in := authed.Group("/", s.requireSession)
	in.GET("/cart", s.getCart)
	in.DELETE("/cart", s.clearCart)
	in.POST("/cart/items", s.addItem)
	in.PUT("/cart/items", s.updateItem)
	in.DELETE("/cart/items", s.removeItem)
	in.POST("/checkout", s.checkout)
	in.GET("/orders", s.listOrders)
	in.POST("/orders/:id/cancel", s.cancelOrder)
	in.PUT("/address", s.saveAddress)
	in.GET("/sync", s.syncStatus)

	admin := in.Group("/admin")
	admin.GET("/orders", s.listAllOrders)
	admin.PUT("/users/:uid/orders/:oid/status", s.updateOrderStatus)
	return r
}

// SessionCount is the number of hosted sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every hosted session, waiting for their cart writes until ctx
// is done.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	sessions := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		sessions = append(sessions, s.sessions[id])
	}
	s.sessions = make(map[string]*session.Session)
	s.mu.Unlock()

	var errs []error
	for _, sess := range sessions {
		if err := sess.Logout(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) lookup(userID string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

// adopt registers sess unless another request registered one for the same
// user first, in which case that one is returned.
func (s *Server) adopt(sess *session.Session) (*session.Session, bool) {
	userID := sess.Identity().UserID
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[userID]; ok && existing.Active() {
		return existing, false
	}
	s.sessions[userID] = sess
	return sess, true
}

// retire unregisters sess if it is still the registered session for its user.
func (s *Server) retire(sess *session.Session) bool {
	userID := sess.Identity().UserID
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[userID] != sess {
		return false
	}
	delete(s.sessions, userID)
	return true
}

func (s *Server) remove(userID string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[userID]
	delete(s.sessions, userID)
	return sess
}

func (s *Server) healthz(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"service":  "storefront",
		"sessions": s.SessionCount(),
		"products": s.deps.Snapshot.Len(),
	}
	if at := s.deps.Snapshot.FetchedAt(); !at.IsZero() {
		body["catalogFetchedAt"] = at.UTC()
	}
	c.JSON(http.StatusOK, body)
}
