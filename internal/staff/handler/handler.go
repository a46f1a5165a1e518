// Package handler exposes the staff directory over HTTP.
package handler

import (
	"workshop_portal_backend/internal/staff/service"
	"workshop_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles staff directory requests.
type Handler struct {
	svc *service.Service
}

// New creates a new staff handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the staff routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/technicians", h.ListTechnicians)
}

func (h *Handler) List(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	result, err := h.svc.List(c.Request.Context(), id.OrganizationID(), c.Query("role"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListTechnicians(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	result, err := h.svc.ListTechnicians(c.Request.Context(), id.OrganizationID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
