// Package api provides the HTTP handlers for the chat service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/shopchat/service"
	"github.com/xiaot623/shopchat/store"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	store   store.Store
	logger  *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, st store.Store, logger *slog.Logger) *Handler {
	return &Handler{
		service: svc,
		store:   st,
		logger:  logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/chat", h.Chat)
	e.OPTIONS("/chat", h.ChatPreflight)

	e.GET("/conversations/:conversation_id/messages", h.GetConversationMessages)

	e.GET("/settings/:shop", h.GetSettings)
	e.PUT("/settings/:shop", h.UpdateSettings)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
