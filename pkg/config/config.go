package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "composebot"

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Channels ChannelsConfig `json:"channels"`
	Gateway  GatewayConfig  `json:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Webhook  WebhookConfig  `json:"webhook"`
	NATS     NATSConfig     `json:"nats"`
	Telegram TelegramConfig `json:"telegram"`
}

// WebhookConfig configures the HTTP activity endpoint.
type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// NATSConfig configures the NATS request/reply channel.
type NATSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Subject string `json:"subject"`
	Queue   string `json:"queue"`
}

// TelegramConfig configures the Telegram inline query bridge.
type TelegramConfig struct {
	Enabled      bool     `json:"enabled"`
	Token        string   `json:"token"`
	AllowFrom    []string `json:"allow_from"`
	QueryCommand string   `json:"query_command"`
	PageSize     int      `json:"page_size"`
}

// GatewayConfig configures the health/readiness server bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// envOverlay lists the settings that may be overridden from the environment.
// Tagged names are read with the COMPOSEBOT_ prefix first, then without it.
type envOverlay struct {
	TelegramToken     string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowFrom string `envconfig:"TELEGRAM_ALLOW_FROM"`
	NATSURL           string `envconfig:"NATS_URL"`
	WebhookPort       int    `envconfig:"WEBHOOK_PORT"`
	GatewayPort       int    `envconfig:"GATEWAY_PORT"`
}

// LoadConfig resolves config.json, unmarshals it, and applies environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var overlay envOverlay
	if err := envconfig.Process(envPrefix, &overlay); err != nil {
		return fmt.Errorf("read environment overrides: %w", err)
	}

	if token := strings.TrimSpace(overlay.TelegramToken); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if rawAllowFrom := strings.TrimSpace(overlay.TelegramAllowFrom); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}
	if url := strings.TrimSpace(overlay.NATSURL); url != "" {
		cfg.Channels.NATS.URL = url
	}
	if overlay.WebhookPort > 0 {
		cfg.Channels.Webhook.Port = overlay.WebhookPort
	}
	if overlay.GatewayPort > 0 {
		cfg.Gateway.Port = overlay.GatewayPort
	}

	return nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is COMPOSEBOT_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("COMPOSEBOT_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("COMPOSEBOT_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
