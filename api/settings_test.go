package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/shopchat/llm"
)

func TestGetSettingsCreatesRow(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, func(llm.Handlers) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/settings/acme", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("shop")
	c.SetParamValues("acme")

	if err := h.GetSettings(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var view settingsView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode settings: %v", err)
	}
	if view.ShopID != "acme.myshopify.com" {
		t.Fatalf("expected normalized shop id, got %q", view.ShopID)
	}
}

func TestUpdateSettingsPartialAndMasked(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t, func(llm.Handlers) error { return nil })

	body := `{"openai_key":"sk-verysecretkey12345","system_prompt":"conciseAssistant"}`
	req := httptest.NewRequest(http.MethodPut, "/settings/acme", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("shop")
	c.SetParamValues("acme")

	if err := h.UpdateSettings(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var view settingsView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode settings: %v", err)
	}
	if view.SystemPrompt != "conciseAssistant" {
		t.Fatalf("unexpected prompt: %q", view.SystemPrompt)
	}
	if strings.Contains(view.OpenAIKey, "verysecret") {
		t.Fatalf("API key must be masked in responses, got %q", view.OpenAIKey)
	}

	// The stored value keeps the full secret.
	settings, err := h.store.GetOrCreateSettings(context.Background(), "acme.myshopify.com")
	if err != nil {
		t.Fatalf("GetOrCreateSettings failed: %v", err)
	}
	if settings.OpenAIKey != "sk-verysecretkey12345" {
		t.Fatalf("stored key mangled: %q", settings.OpenAIKey)
	}
}

