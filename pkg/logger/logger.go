package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmLog "github.com/charmbracelet/log"
	"github.com/kelseyhightower/envconfig"

	"composebot/pkg/config"
)

const (
	formatText = "text"
	formatJSON = "json"

	defaultLevel = "info"
)

// envSettings are read from COMPOSEBOT_LOG_FORMAT, COMPOSEBOT_LOG_LEVEL
// and COMPOSEBOT_LOG_ADD_SOURCE and win over file config.
type envSettings struct {
	Format    string `envconfig:"LOG_FORMAT"`
	Level     string `envconfig:"LOG_LEVEL"`
	AddSource string `envconfig:"LOG_ADD_SOURCE"`
}

// New builds the process logger writing to stderr.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, writer io.Writer) (*slog.Logger, error) {
	resolved, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	level, err := parseLevel(resolved.Level)
	if err != nil {
		return nil, err
	}

	switch resolved.Format {
	case formatText:
		pretty := charmLog.NewWithOptions(writer, charmLog.Options{
			Level:           charmLevel(level),
			ReportTimestamp: true,
			ReportCaller:    resolved.AddSource,
			Formatter:       charmLog.TextFormatter,
		})
		return slog.New(pretty), nil
	case formatJSON:
		return slog.New(newEntryHandler(writer, level, resolved.AddSource)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", resolved.Format)
	}
}

// resolve merges file config with environment overrides and applies defaults.
func resolve(cfg config.LoggingConfig) (config.LoggingConfig, error) {
	var env envSettings
	if err := envconfig.Process("composebot", &env); err != nil {
		return config.LoggingConfig{}, fmt.Errorf("read logging environment: %w", err)
	}

	out := config.LoggingConfig{
		Format:    strings.ToLower(strings.TrimSpace(cfg.Format)),
		Level:     strings.ToLower(strings.TrimSpace(cfg.Level)),
		AddSource: cfg.AddSource,
	}
	if value := strings.TrimSpace(env.Format); value != "" {
		out.Format = strings.ToLower(value)
	}
	if value := strings.TrimSpace(env.Level); value != "" {
		out.Level = strings.ToLower(value)
	}
	if value := strings.TrimSpace(env.AddSource); value != "" {
		out.AddSource = parseBool(value)
	}

	if out.Format == "" {
		out.Format = formatText
	}
	if out.Level == "" {
		out.Level = defaultLevel
	}

	return out, nil
}

func charmLevel(level slog.Level) charmLog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmLog.DebugLevel
	case level <= slog.LevelInfo:
		return charmLog.InfoLevel
	case level <= slog.LevelWarn:
		return charmLog.WarnLevel
	default:
		return charmLog.ErrorLevel
	}
}

func parseLevel(levelText string) (slog.Level, error) {
	switch levelText {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", levelText)
	}
}

func parseBool(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
