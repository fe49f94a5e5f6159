package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	authcore "github.com/croftbar/authcore"
	"github.com/croftbar/authcore/rbac"
)

const principalContextKey = "httpapi.principal"

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := header[len(prefix):]
	return token, token != ""
}

// authn validates the bearer token and resolves the current principal. The
// role used downstream is the live store role, not the token snapshot, so a
// demoted principal loses admin routes without waiting for token expiry.
func (s *Server) authn() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		payload, err := s.engine.ValidateAccessToken(token)
		if err != nil {
			s.writeError(c, err)
			return
		}

		principal, err := s.engine.Provider().FindByID(requestContext(c), payload.Subject)
		if err != nil {
			if errors.Is(err, authcore.ErrPrincipalNotFound) {
				s.writeError(c, authcore.ErrTokenInvalid)
				return
			}
			s.writeError(c, err)
			return
		}
		if !principal.Active {
			s.writeError(c, authcore.ErrPrincipalInactive)
			return
		}

		c.Set(principalContextKey, principal)
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) (*authcore.Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*authcore.Principal)
	return p, ok
}

func (s *Server) requirePermission(resource rbac.Resource, action rbac.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := currentPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		if err := s.engine.Authorize(requestContext(c), principal.ID, principal.Role, resource, action); err != nil {
			s.writeError(c, err)
			return
		}

		c.Next()
	}
}
