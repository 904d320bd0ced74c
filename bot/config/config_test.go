package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv removes keys for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestParseQuestions(t *testing.T) {
	assert.Equal(t, []string{"Name?", "Issue?"}, ParseQuestions(" Name? || Issue? |"))
	assert.Empty(t, ParseQuestions(""))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_ID", "77")
	t.Setenv("QUESTIONS", "Name?|Issue?")
	t.Setenv("DATABASE", filepath.Join(t.TempDir(), "bot.db"))
	unsetenv(t, "STEP_TIMEOUT_SECONDS", "WELCOME_MESSAGE", "FINAL_MESSAGE")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, int64(77), cfg.Telegram.AdminID)
	assert.Equal(t, []string{"Name?", "Issue?"}, cfg.Relay.Questions)
	assert.Equal(t, DefaultWelcomeMessage, cfg.Relay.WelcomeMessage)
	assert.Equal(t, DefaultFinalMessage, cfg.Relay.FinalMessage)
	assert.Equal(t, 300*time.Second, cfg.Relay.StepTimeout())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
telegram:
  token: "1:yaml"
  admin_id: 5
database:
  driver: sqlite
  path: ` + filepath.Join(t.TempDir(), "r.db") + `
relay:
  questions: ["  First? ", ""]
  final_message: "bye"
  step_timeout_seconds: 30
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("WELCOME_MESSAGE", "hi from env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1:yaml", cfg.Telegram.Token)
	assert.Equal(t, []string{"First?"}, cfg.Relay.Questions)
	assert.Equal(t, "hi from env", cfg.Relay.WelcomeMessage)
	assert.Equal(t, "bye", cfg.Relay.FinalMessage)
	assert.Equal(t, 30*time.Second, cfg.Relay.StepTimeout())
}

func TestLoadRequiresOperator(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	unsetenv(t, "ADMIN_ID", "TELEGRAM_ADMIN_ID")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadStorageSkipsTelegram(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DATABASE", filepath.Join(t.TempDir(), "s.db"))
	cfg, err := LoadStorage("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}
