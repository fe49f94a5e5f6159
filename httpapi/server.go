package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authcore "github.com/croftbar/authcore"
	"github.com/croftbar/authcore/rbac"
)

// Server binds engine operations to HTTP routes.
type Server struct {
	engine *authcore.Engine
	logger *zap.Logger
}

// NewServer creates a server around a built engine. A nil logger is replaced
// with zap.NewNop.
func NewServer(engine *authcore.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, logger: logger}
}

// Router returns a gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(r.Group("/api/v1"))
	return r
}

// RegisterRoutes mounts all routes under g, letting callers compose the API
// into an existing router.
func (s *Server) RegisterRoutes(g *gin.RouterGroup) {
	auth := g.Group("/auth")
	{
		auth.POST("/login", s.handleLogin)
		auth.POST("/refresh", s.handleRefresh)
		auth.POST("/logout", s.handleLogout)
		auth.POST("/logout-all", s.authn(), s.handleLogoutAll)
	}

	users := g.Group("/users")
	{
		users.POST("", s.handleRegister)
		users.GET("/me", s.authn(), s.handleMe)
		users.GET("", s.authn(), s.requirePermission(rbac.ResourceUsers, rbac.ActionList), s.handleListUsers)
		users.GET("/:id", s.authn(), s.requirePermission(rbac.ResourceUsers, rbac.ActionRead), s.handleGetUser)
		users.DELETE("/:id", s.authn(), s.requirePermission(rbac.ResourceUsers, rbac.ActionDelete), s.handleDeleteUser)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps engine sentinels onto status codes. Unknown errors are
// logged and answered as 500 without leaking detail.
func (s *Server) writeError(c *gin.Context, err error) {
	var status int
	var msg string

	switch {
	case errors.Is(err, authcore.ErrInvalidCredentials),
		errors.Is(err, authcore.ErrTokenInvalid),
		errors.Is(err, authcore.ErrRefreshInvalid):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, authcore.ErrPermissionDenied),
		errors.Is(err, authcore.ErrPrincipalInactive):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, authcore.ErrPrincipalNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, authcore.ErrPrincipalExists):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, authcore.ErrRoleInvalid):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		status, msg = http.StatusInternalServerError, "internal error"
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

func requestContext(c *gin.Context) context.Context {
	return authcore.WithClientIP(c.Request.Context(), c.ClientIP())
}
