package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"outreach_backend/internal/auth/service"
	"outreach_backend/internal/auth/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles authentication HTTP requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new auth handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterPublicRoutes mounts the credential endpoints on the given group.
func (h *Handler) RegisterPublicRoutes(g *gin.RouterGroup) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
}

// RegisterProtectedRoutes mounts the authenticated account endpoints.
func (h *Handler) RegisterProtectedRoutes(g *gin.RouterGroup) {
	g.GET("/me", h.Me)
}

// Register creates an operator account.
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req transport.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Register(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// Login exchanges credentials for an access token.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req transport.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Me returns the authenticated account.
// GET /api/v1/auth/me
func (h *Handler) Me(c *gin.Context) {
	identity, ok := httpkit.GetIdentity(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	result, err := h.svc.Me(c.Request.Context(), identity.UserID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
