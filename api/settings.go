package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/shopchat/domain"
	"github.com/xiaot623/shopchat/service"
)

// settingsView is StoreSettings with the API key masked. Secrets go in
// through PUT but never come back out whole.
type settingsView struct {
	ShopID          string `json:"shop_id"`
	OpenAIKey       string `json:"openai_key,omitempty"`
	SystemPrompt    string `json:"system_prompt,omitempty"`
	StorefrontToken string `json:"storefront_token,omitempty"`
}

func maskSettings(s *domain.StoreSettings) settingsView {
	return settingsView{
		ShopID:          s.ShopID,
		OpenAIKey:       maskSecret(s.OpenAIKey),
		SystemPrompt:    s.SystemPrompt,
		StorefrontToken: maskSecret(s.StorefrontToken),
	}
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

// GetSettings returns the settings for a shop, creating an empty row on
// first access.
// GET /settings/:shop
func (h *Handler) GetSettings(c echo.Context) error {
	ctx := c.Request().Context()
	shopID := service.NormalizeShopID(c.Param("shop"))
	if shopID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing shop"})
	}

	settings, err := h.store.GetOrCreateSettings(ctx, shopID)
	if err != nil {
		h.logger.Error("failed to get settings", "shop", shopID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
	}

	return c.JSON(http.StatusOK, maskSettings(settings))
}

// UpdateSettings applies a partial update to a shop's settings. Fields absent
// from the body are left untouched.
// PUT /settings/:shop
func (h *Handler) UpdateSettings(c echo.Context) error {
	ctx := c.Request().Context()
	shopID := service.NormalizeShopID(c.Param("shop"))
	if shopID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing shop"})
	}

	var update domain.SettingsUpdate
	if err := c.Bind(&update); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	settings, err := h.store.UpdateSettings(ctx, shopID, update)
	if err != nil {
		h.logger.Error("failed to update settings", "shop", shopID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update settings"})
	}

	return c.JSON(http.StatusOK, maskSettings(settings))
}
