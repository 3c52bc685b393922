package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	t.Chdir(t.TempDir()) // 确保找不到任何 config.yaml

	require.NoError(t, Load(""))

	assert.Equal(t, "disk", viper.GetString("store.type"))
	assert.Equal(t, filepath.Join("public", "fonts"), viper.GetString("store.path"))
	assert.Equal(t, 4, viper.GetInt("fetch.workers"))
	assert.Equal(t, 10*time.Second, viper.GetDuration("fetch.timeout"))
	assert.Equal(t, 0, viper.GetInt("fetch.retries"))
	assert.Equal(t, "sqlite", viper.GetString("meta.driver"))
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg := filepath.Join(t.TempDir(), "fg.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("store:\n  path: /srv/fonts\nfetch:\n  workers: 2\n"), 0o644))
	t.Setenv("FG_FETCH_WORKERS", "8")
	t.Setenv("FG_S3_BUCKET", "assets")

	require.NoError(t, Load(cfg))

	assert.Equal(t, "/srv/fonts", viper.GetString("store.path"))
	assert.Equal(t, 8, viper.GetInt("fetch.workers"), "env overrides file")
	assert.Equal(t, "assets", viper.GetString("s3.bucket"))
}

func TestLoad_BrokenFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("store: [unterminated"), 0o644))

	assert.ErrorContains(t, Load(cfg), "fatal error config file")
}

func TestSetupLogger(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	viper.Set("log.level", "warn")
	viper.Set("log.format", "json")
	logger, err := SetupLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "file", "roboto.woff2")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"file":"roboto.woff2"`)

	viper.Set("log.format", "xml")
	_, err = SetupLogger(&buf)
	assert.ErrorContains(t, err, "unsupported log.format")

	viper.Set("log.format", "text")
	viper.Set("log.level", "loud")
	_, err = SetupLogger(&buf)
	assert.ErrorContains(t, err, "invalid log.level")
}
