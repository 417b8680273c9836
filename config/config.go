// Package config provides configuration for the chat service.
//
// Sources, highest priority first: environment variables with the SHOPCHAT_
// prefix, an optional shopchat.yaml in the working directory, built-in
// defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int `mapstructure:"http_port"`

	// Database
	DatabaseDSN string `mapstructure:"database_dsn"`

	// Completion provider (OpenAI-compatible)
	OpenAIBaseURL    string        `mapstructure:"openai_base_url"`
	OpenAIAPIKey     string        `mapstructure:"openai_api_key"`
	Model            string        `mapstructure:"model"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	DefaultPromptKey string        `mapstructure:"default_prompt_key"`
	LLMTimeout       time.Duration `mapstructure:"llm_timeout"`

	// Commerce backend
	StorefrontAPIVersion string        `mapstructure:"storefront_api_version"`
	ToolTimeout          time.Duration `mapstructure:"tool_timeout"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 8080)
	v.SetDefault("database_dsn", "file:shopchat.db?cache=shared&mode=rwc")
	v.SetDefault("openai_base_url", "https://api.openai.com")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("max_tokens", 2000)
	v.SetDefault("default_prompt_key", "standardAssistant")
	v.SetDefault("llm_timeout", 2*time.Minute)
	v.SetDefault("storefront_api_version", "2025-04")
	v.SetDefault("tool_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetConfigName("shopchat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SHOPCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ParseLogLevel maps a config string to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
