// Package config loads process configuration from the environment
package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

// Entropy modes
const (
	EntropyBlended = "blended"
	EntropyToolkit = "toolkit"
)

// Config holds every setting the binaries read. Cobra flags override the environment.
type Config struct {
	GRPCPort int    `env:"RPG_SHEET_GRPC_PORT" envDefault:"50051"`
	DataPath string `env:"RPG_SHEET_DATA_PATH" envDefault:"~/.rpg-sheet/sheet.db"`

	RedisAddr     string `env:"RPG_SHEET_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"RPG_SHEET_REDIS_PASSWORD"`
	RedisDB       int    `env:"RPG_SHEET_REDIS_DB" envDefault:"0"`
	RedisTLS      bool   `env:"RPG_SHEET_REDIS_TLS" envDefault:"false"`

	LogLevel  string `env:"RPG_SHEET_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"RPG_SHEET_LOG_FORMAT" envDefault:"text"`

	MaxExpressionLength int           `env:"RPG_SHEET_MAX_EXPRESSION_LENGTH" envDefault:"100"`
	HistoryLimit        int           `env:"RPG_SHEET_HISTORY_LIMIT" envDefault:"50"`
	SessionTTL          time.Duration `env:"RPG_SHEET_SESSION_TTL" envDefault:"15m"`
	Entropy             string        `env:"RPG_SHEET_ENTROPY" envDefault:"blended"`

	Animate           bool          `env:"RPG_SHEET_ANIMATE" envDefault:"true"`
	CountdownSteps    int           `env:"RPG_SHEET_COUNTDOWN_STEPS" envDefault:"3"`
	CountdownInterval time.Duration `env:"RPG_SHEET_COUNTDOWN_INTERVAL" envDefault:"150ms"`
}

// Load parses the environment into a Config and validates it
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	errors.ValidateRange("GRPCPort", c.GRPCPort, 1, 65535, vb)
	errors.ValidateRequired("DataPath", c.DataPath, vb)
	errors.ValidateEnum("LogLevel", strings.ToLower(c.LogLevel), []string{"debug", "info", "warn", "error"}, vb)
	errors.ValidateEnum("LogFormat", strings.ToLower(c.LogFormat), []string{"text", "json"}, vb)
	errors.ValidateEnum("Entropy", c.Entropy, []string{EntropyBlended, EntropyToolkit}, vb)
	if c.RedisDB < 0 {
		vb.InvalidField("RedisDB", "must not be negative")
	}
	if c.MaxExpressionLength < 1 {
		vb.InvalidField("MaxExpressionLength", "must be at least 1")
	}
	if c.HistoryLimit < 1 {
		vb.InvalidField("HistoryLimit", "must be at least 1")
	}
	if c.SessionTTL <= 0 {
		vb.InvalidField("SessionTTL", "must be positive")
	}
	if c.CountdownSteps < 0 {
		vb.InvalidField("CountdownSteps", "must not be negative")
	}
	if c.CountdownInterval < 0 {
		vb.InvalidField("CountdownInterval", "must not be negative")
	}

	return vb.Build()
}

// ResolvedDataPath expands a leading ~ to the user's home directory
func (c *Config) ResolvedDataPath() (string, error) {
	p := c.DataPath
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve home directory")
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p, nil
}

// NewLogger builds a slog logger writing to w at the configured level and format
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetupLogging installs the configured logger as the slog default
func (c *Config) SetupLogging() {
	slog.SetDefault(c.NewLogger(os.Stderr))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
