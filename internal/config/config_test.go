package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "outreach.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "api", cfg.Directory.Kind)
	assert.Equal(t, 20, cfg.Directory.PageSize)
	assert.InDelta(t, 1.0, cfg.Directory.RateLimit, 0.001)
	assert.Equal(t, 30, cfg.Directory.TimeoutSecs)
	assert.True(t, cfg.Harvest.Contact.Phone)
	assert.True(t, cfg.Harvest.Contact.WhatsApp)
	assert.True(t, cfg.Harvest.Contact.Email)
	assert.False(t, cfg.Harvest.Contact.Website)
	assert.Equal(t, 3, cfg.Dispatch.DelaySecs)
	assert.Equal(t, 3*time.Second, cfg.Dispatch.Delay())
	assert.Equal(t, "templates.yaml", cfg.Dispatch.TemplateFile)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  path: /var/lib/outreach/outreach.db
  driver: postgres
  database_url: postgres://localhost/outreach
directory:
  kind: html
  search_url: "https://dir.example/search?q=%s&near=%s"
  selectors:
    list_item: div.result
    link: a
    name: h2
harvest:
  max_results: 100
  contact:
    phone: false
    email: true
dispatch:
  delay_secs: 10
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/outreach", cfg.Store.DatabaseURL)
	assert.Equal(t, "html", cfg.Directory.Kind)
	assert.Equal(t, "div.result", cfg.Directory.Selectors.ListItem)
	assert.Equal(t, "h2", cfg.Directory.Selectors.Name)
	assert.Equal(t, 100, cfg.Harvest.MaxResults)
	assert.False(t, cfg.Harvest.Contact.Phone)
	assert.True(t, cfg.Harvest.Contact.Email)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.Delay())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	chTempDir(t)

	t.Setenv("OUTREACH_STORE_DRIVER", "postgres")
	t.Setenv("OUTREACH_MESSENGER_TOKEN", "secret-token")
	t.Setenv("OUTREACH_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "secret-token", cfg.Messenger.Token)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := chTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [broken"), 0o644))

	_, err := Load()
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	require.Error(t, err)
}
