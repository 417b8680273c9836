package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/shopchat/domain"
	"github.com/xiaot623/shopchat/service"
	"github.com/xiaot623/shopchat/sse"
)

// shopDomainHeader carries the shop domain when the chat widget is embedded
// through the platform's app proxy.
const shopDomainHeader = "X-Shopify-Shop-Domain"

// Chat handles one chat turn.
// POST /chat
//
// The Accept header selects the delivery mode: "text/event-stream" streams
// events as they occur, anything else returns one buffered JSON reply. Both
// modes persist the same messages.
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	// Shop identity precedence: explicit body field, proxy header, query param.
	if req.ShopID == "" && req.ShopDomain == "" {
		if hdr := c.Request().Header.Get(shopDomainHeader); hdr != "" {
			req.ShopDomain = hdr
		} else if q := c.QueryParam("shop"); q != "" {
			req.ShopDomain = q
		}
	}

	if c.Request().Header.Get(echo.HeaderAccept) == "text/event-stream" {
		return h.chatStream(c, req)
	}

	reply, err := h.service.Respond(c.Request().Context(), req)
	if err != nil {
		return h.chatError(c, req, err)
	}
	if reply.ToolResults == nil {
		reply.ToolResults = []domain.ToolOutcome{}
	}
	return c.JSON(http.StatusOK, reply)
}

// chatStream validates eagerly so client errors still get a JSON status
// response instead of a broken event stream, then hands off to the producer.
func (h *Handler) chatStream(c echo.Context, req domain.ChatRequest) error {
	if err := service.ValidateChatRequest(req); err != nil {
		return h.chatError(c, req, err)
	}
	return sse.Serve(c, h.logger, func(send sse.SendFunc) error {
		return h.service.RespondStream(c.Request().Context(), req, send)
	})
}

func (h *Handler) chatError(c echo.Context, req domain.ChatRequest, err error) error {
	if errors.Is(err, service.ErrMissingMessage) || errors.Is(err, service.ErrMissingShop) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	h.logger.Error("chat turn failed", "shop", req.ShopID, "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// ChatPreflight answers the CORS preflight for the chat widget.
// OPTIONS /chat
func (h *Handler) ChatPreflight(c echo.Context) error {
	origin := c.Request().Header.Get(echo.HeaderOrigin)
	if origin == "" {
		origin = "*"
	}
	header := c.Response().Header()
	header.Set(echo.HeaderAccessControlAllowOrigin, origin)
	header.Set(echo.HeaderAccessControlAllowMethods, "POST, OPTIONS")
	header.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type, Authorization, Accept")
	header.Set(echo.HeaderAccessControlMaxAge, "86400")
	return c.NoContent(http.StatusNoContent)
}
