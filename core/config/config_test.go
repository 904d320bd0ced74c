package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", AdminID: 7, RunMode: "polling"}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestNormalizeRequiresAdmin(t *testing.T) {
	t.Setenv("ADMIN_ID", "")
	err := Normalize(&Config{Telegram: TelegramConfig{Token: "t"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin_id")
}

func TestNormalizeAdminIDFallbackEnv(t *testing.T) {
	t.Setenv("ADMIN_ID", "4242")
	cfg := &Config{Telegram: TelegramConfig{Token: "t"}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, int64(4242), cfg.Telegram.AdminID)
}

func TestNormalizeWebhookValidation(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", AdminID: 1, RunMode: "webhook"}}
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook.url")
}

func TestLoadYAMLWithEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "telegram:\n  token: from-file\n  admin_id: 10\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, int64(10), cfg.Telegram.AdminID)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-only")
	t.Setenv("TELEGRAM_ADMIN_ID", "3")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Telegram.Token)
	assert.Equal(t, int64(3), cfg.Telegram.AdminID)
}
