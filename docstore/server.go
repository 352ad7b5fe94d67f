package docstore

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/order"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/remote"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// RouterConfig configures the HTTP surface.
type RouterConfig struct {
	// Token, when set, must be presented as a bearer credential.
	Token string
}

type server struct {
	store  *Store
	logger *zap.Logger
}

// NewRouter exposes store over HTTP:
//
//	GET    /products            GET    /users
//	GET    /products/:id        GET    /users/:id
//	PUT    /products/:id        PUT    /users/:id
//	PATCH  /products/:id        PATCH  /users/:id
//
// PATCH honours If-Match against the record version; every single-record
// response carries the version as ETag.
func NewRouter(store *Store, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	s := &server{store: store, logger: storefront.OrNop(logger)}

	r := gin.New()
	r.Use(gin.Recovery(), storefront.RequestLogger(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "docstore"})
	})

	api := r.Group("/")
	if cfg.Token != "" {
		api.Use(requireToken(cfg.Token))
	}
	api.GET("/products", s.listProducts)
	api.GET("/products/:id", s.getProduct)
	api.PUT("/products/:id", s.putProduct)
	api.PATCH("/products/:id", s.patchProduct)
	api.GET("/users", s.listUsers)
	api.GET("/users/:id", s.getUser)
	api.PUT("/users/:id", s.putUser)
	api.PATCH("/users/:id", s.patchUser)
	return r
}

func (s *server) listProducts(c *gin.Context) {
	products, err := s.store.ListProducts()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (s *server) getProduct(c *gin.Context) {
	p, err := s.store.GetProduct(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.record(c, http.StatusOK, p.Version, p)
}

func (s *server) putProduct(c *gin.Context) {
	var p product.Product
	if !s.bind(c, &p) {
		return
	}
	id := c.Param("id")
	if p.ID == "" {
		p.ID = id
	}
	if p.ID != id {
		s.fail(c, storefront.NewErrorf(storefront.ReasonInvalidArgument, ErrMsgIDMismatch, p.ID, id))
		return
	}
	stored, err := s.store.PutProduct(p)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.record(c, http.StatusOK, stored.Version, stored)
}

func (s *server) patchProduct(c *gin.Context) {
	ifVersion, ok := s.ifMatch(c)
	if !ok {
		return
	}
	var body remote.StockPatch
	if !s.bind(c, &body) {
		return
	}
	p, err := s.store.SetStock(c.Param("id"), body.Stock, ifVersion)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Debug("stock written",
		zap.String("product_id", p.ID),
		zap.Int("stock", p.Stock),
		zap.Int64("version", p.Version),
		zap.Bool("conditional", ifVersion != nil),
	)
	s.record(c, http.StatusOK, p.Version, p)
}

func (s *server) listUsers(c *gin.Context) {
	users, err := s.store.ListUsers()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *server) getUser(c *gin.Context) {
	u, err := s.store.GetUser(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.record(c, http.StatusOK, u.Version, u)
}

func (s *server) putUser(c *gin.Context) {
	var u order.User
	if !s.bind(c, &u) {
		return
	}
	id := c.Param("id")
	if u.ID == "" {
		u.ID = id
	}
	if u.ID != id {
		s.fail(c, storefront.NewErrorf(storefront.ReasonInvalidArgument, ErrMsgIDMismatch, u.ID, id))
		return
	}
	stored, err := s.store.PutUser(u)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.record(c, http.StatusOK, stored.Version, stored)
}

func (s *server) patchUser(c *gin.Context) {
	ifVersion, ok := s.ifMatch(c)
	if !ok {
		return
	}
	var patch order.UserPatch
	if !s.bind(c, &patch) {
		return
	}
	u, err := s.store.PatchUser(c.Param("id"), patch, ifVersion)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.record(c, http.StatusOK, u.Version, u)
}

// ifMatch reads an optional If-Match header. A present but unparseable
// header is rejected.
func (s *server) ifMatch(c *gin.Context) (*int64, bool) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	if raw == "" || raw == "*" {
		return nil, true
	}
	v, err := remote.ParseETag(raw)
	if err != nil {
		s.fail(c, storefront.NewInvalidArgument(ErrMsgBadIfMatch))
		return nil, false
	}
	return &v, true
}

func (s *server) bind(c *gin.Context, into interface{}) bool {
	if err := c.ShouldBindJSON(into); err != nil {
		s.fail(c, storefront.NewErrorf(storefront.ReasonInvalidArgument, ErrMsgBadBody, err))
		return false
	}
	return true
}

func (s *server) record(c *gin.Context, status int, version int64, body interface{}) {
	c.Header("ETag", remote.FormatETag(version))
	c.JSON(status, body)
}

// fail writes err. Version conflicts are 412 Precondition Failed, the
// If-Match answer; everything else follows the gRPC code mapping.
func (s *server) fail(c *gin.Context, err error) {
	status := storefront.HTTPStatus(err)
	if storefront.ReasonOf(err) == storefront.ReasonVersionConflict {
		status = http.StatusPreconditionFailed
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, storefront.NewErrorResponse(err))
}

func requireToken(token string) gin.HandlerFunc {
	want := []byte("Bearer " + token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, storefront.ErrorResponse{
				Error:  ErrMsgUnauthorized,
				Reason: string(storefront.ReasonUnauthenticated),
				Code:   storefront.StatusUnauthenticated.String(),
			})
			return
		}
		c.Next()
	}
}
