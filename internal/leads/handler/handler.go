// Package handler contains HTTP handlers for the leads API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadscoring_backend/internal/leads/service"
	"leadscoring_backend/internal/leads/transport"
	"leadscoring_backend/platform/httpkit"
	"leadscoring_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgClientIDRequired = "clientId is required"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.POST("/reset-scores", h.ResetScores)
}

func (h *Handler) List(c *gin.Context) {
	clientID := c.Query("clientId")
	if clientID == "" {
		httpkit.Error(c, http.StatusBadRequest, msgClientIDRequired, nil)
		return
	}

	leads, err := h.svc.List(c.Request.Context(), clientID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, leads)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.UpdateStatus(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) ResetScores(c *gin.Context) {
	clientID := c.Query("clientId")
	if clientID == "" {
		httpkit.Error(c, http.StatusBadRequest, msgClientIDRequired, nil)
		return
	}

	result, err := h.svc.ResetScores(c.Request.Context(), clientID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
