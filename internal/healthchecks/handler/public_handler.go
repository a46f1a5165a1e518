package handler

import (
	"net/http"

	"workshop_portal_backend/internal/healthchecks/service"
	"workshop_portal_backend/internal/healthchecks/transport"
	"workshop_portal_backend/platform/httpkit"
	"workshop_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// publicTokenLength is the hex length of a 256-bit token.
const publicTokenLength = 64

// PublicHandler serves the unauthenticated customer report endpoints. Access
// is granted by the bearer token in the path, not by a session.
type PublicHandler struct {
	svc *service.Service
	val *validator.Validator
}

// NewPublicHandler creates the public report handler.
func NewPublicHandler(svc *service.Service, val *validator.Validator) *PublicHandler {
	return &PublicHandler{svc: svc, val: val}
}

// RegisterRoutes registers the public routes.
func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:token", h.View)
	rg.POST("/:token/authorize", h.Authorize)
}

func tokenParam(c *gin.Context) (string, bool) {
	token := c.Param("token")
	if len(token) != publicTokenLength {
		httpkit.Error(c, http.StatusNotFound, "report not found", nil)
		return "", false
	}
	return token, true
}

func (h *PublicHandler) View(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}

	result, err := h.svc.PublicView(c.Request.Context(), token)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *PublicHandler) Authorize(c *gin.Context) {
	token, ok := tokenParam(c)
	if !ok {
		return
	}

	var req transport.AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.RecordDecisions(c.Request.Context(), token, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
