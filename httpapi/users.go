package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	authcore "github.com/croftbar/authcore"
	"github.com/croftbar/authcore/rbac"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type principalView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func viewOf(p *authcore.Principal) principalView {
	return principalView{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Role:      string(p.Role),
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
}

// handleRegister creates an account. Registration is open, but a requested
// non-default role is honored only when the caller presents a token whose
// principal may create users; everyone else gets the default role.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	role := rbac.RoleUser
	if req.Role != "" && req.Role != string(rbac.RoleUser) {
		if !s.callerMayAssignRoles(c) {
			c.JSON(http.StatusForbidden, errorResponse{Error: "role assignment requires users:create permission"})
			return
		}
		role = rbac.Role(req.Role)
	}

	principal, err := s.engine.CreateAccount(requestContext(c), authcore.CreateAccountRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     role,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, viewOf(principal))
}

func (s *Server) callerMayAssignRoles(c *gin.Context) bool {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		return false
	}
	payload, err := s.engine.ValidateAccessToken(token)
	if err != nil {
		return false
	}
	return s.engine.IsAuthorized(payload.Role, rbac.ResourceUsers, rbac.ActionCreate)
}

func (s *Server) handleMe(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, viewOf(principal))
}

func (s *Server) handleListUsers(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	principals, err := s.engine.Provider().List(requestContext(c), offset, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	views := make([]principalView, 0, len(principals))
	for _, p := range principals {
		views = append(views, viewOf(p))
	}

	c.JSON(http.StatusOK, gin.H{"users": views, "offset": offset, "limit": limit})
}

func (s *Server) handleGetUser(c *gin.Context) {
	principal, err := s.engine.Provider().FindByID(requestContext(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(principal))
}

// handleDeleteUser removes a principal and revokes its outstanding refresh
// tokens so the deleted account cannot rotate its way back in. Self-deletion
// is rejected so an admin cannot lock the last admin out mid-session.
func (s *Server) handleDeleteUser(c *gin.Context) {
	id := c.Param("id")

	if caller, ok := currentPrincipal(c); ok && caller.ID == id {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "cannot delete own account"})
		return
	}

	if err := s.engine.Provider().Delete(requestContext(c), id); err != nil {
		s.writeError(c, err)
		return
	}

	if _, err := s.engine.RevokeAll(requestContext(c), id); err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
