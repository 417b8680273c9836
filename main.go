package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/shopchat/api"
	"github.com/xiaot623/shopchat/config"
	"github.com/xiaot623/shopchat/llm"
	"github.com/xiaot623/shopchat/policy"
	"github.com/xiaot623/shopchat/service"
	"github.com/xiaot623/shopchat/store"
	"github.com/xiaot623/shopchat/tools"
)

// completerFactory builds the per-turn completion client. A shop with no key
// override falls back to the process-wide API key from configuration.
func completerFactory(cfg *config.Config, logger *slog.Logger) service.CompleterFactory {
	return func(apiKey string) service.Completer {
		if apiKey == "" {
			apiKey = cfg.OpenAIAPIKey
		}
		return llm.NewClient(cfg.OpenAIBaseURL, apiKey, cfg.Model, cfg.MaxTokens,
			llm.DefaultPrompts(), cfg.DefaultPromptKey, cfg.LLMTimeout, logger)
	}
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLogs := config.SetupLogger(cfg.LogFile, config.ParseLogLevel(cfg.LogLevel))
	defer closeLogs()

	logger.Info("starting shopchat",
		"port", cfg.HTTPPort,
		"database", cfg.DatabaseDSN,
		"model", cfg.Model)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Per-turn factories. The completer and executor are rebuilt each turn
	// because the API key and storefront token come from shop settings.
	newCompleter := completerFactory(cfg, logger)
	newExecutor := func(shopDomain, accessToken, customerID string) service.ToolExecutor {
		client := tools.NewStorefrontClient(shopDomain, accessToken, cfg.StorefrontAPIVersion, cfg.ToolTimeout)
		return tools.NewExecutor(client, policyEngine, cfg.ToolTimeout, customerID, logger)
	}

	// Initialize service
	svc := service.New(db, newCompleter, newExecutor, logger)

	// Initialize handler
	h := api.NewHandler(svc, db, logger)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Info("chat API started", "port", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down server gracefully", "error", err)
	}

	logger.Info("stopped")
}
