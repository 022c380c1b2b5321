package config_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/rpg-sheet/internal/config"
	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.False(t, cfg.RedisTLS)
	assert.Equal(t, 100, cfg.MaxExpressionLength)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, config.EntropyBlended, cfg.Entropy)
	assert.True(t, cfg.Animate)
	assert.Equal(t, 150*time.Millisecond, cfg.CountdownInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RPG_SHEET_GRPC_PORT", "6000")
	t.Setenv("RPG_SHEET_ENTROPY", "toolkit")
	t.Setenv("RPG_SHEET_ANIMATE", "false")
	t.Setenv("RPG_SHEET_SESSION_TTL", "1h")
	t.Setenv("RPG_SHEET_REDIS_DB", "2")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.GRPCPort)
	assert.Equal(t, config.EntropyToolkit, cfg.Entropy)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.False(t, cfg.Animate)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("RPG_SHEET_GRPC_PORT", "not-a-port")
	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "parse env")
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Entropy = "dice-goblin"
	cfg.HistoryLimit = 0
	cfg.LogFormat = "xml"

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "Entropy")
	assert.Contains(t, err.Error(), "HistoryLimit")
	assert.Contains(t, err.Error(), "LogFormat")
}

func TestResolvedDataPath(t *testing.T) {
	t.Setenv("HOME", "/home/aria")
	cfg := &config.Config{DataPath: "~/.rpg-sheet/sheet.db"}

	p, err := cfg.ResolvedDataPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/aria", ".rpg-sheet", "sheet.db"), p)

	cfg.DataPath = "/tmp/sheet.db"
	p, err = cfg.ResolvedDataPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sheet.db", p)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{LogLevel: "warn", LogFormat: "json"}

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "roll_id", "roll_1")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, `"roll_id":"roll_1"`)
}
