package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetConversationMessages returns the full message history for a conversation.
// GET /conversations/:conversation_id/messages
func (h *Handler) GetConversationMessages(c echo.Context) error {
	ctx := c.Request().Context()
	conversationID := c.Param("conversation_id")

	conv, err := h.store.GetConversation(ctx, conversationID)
	if err != nil {
		h.logger.Error("failed to get conversation", "conversation_id", conversationID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get conversation"})
	}
	if conv == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	}

	messages, err := h.store.LoadHistory(ctx, conversationID)
	if err != nil {
		h.logger.Error("failed to load messages", "conversation_id", conversationID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load messages"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     messages,
	})
}
