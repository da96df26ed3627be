package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigReadsExplicitFile(t *testing.T) {
	path := writeConfigFile(t, `{"api": {"provider": "openrouter", "api_key": "file-key", "base_url": "https://config.example/api"}}`)

	cfg, err := loadConfig(&CLI{Config: path})
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.API.APIKey)
	assert.Equal(t, "https://config.example/api", cfg.API.BaseURL)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `{"api": {"provider": "openrouter", "api_key": "file-key", "base_url": "https://config.example/api"}}`)

	cfg, err := loadConfig(&CLI{
		Config:  path,
		APIKey:  "flag-key",
		BaseURL: "https://flag.example/api",
	})
	require.NoError(t, err)

	assert.Equal(t, "flag-key", cfg.API.APIKey)
	assert.Equal(t, "https://flag.example/api", cfg.API.BaseURL)
}

func TestLoadConfigMissingFileIsConfigError(t *testing.T) {
	_, err := loadConfig(&CLI{Config: filepath.Join(t.TempDir(), "absent.json")})
	require.Error(t, err)

	var cfgErr *configError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ExitConfig, exitCode(err))
}
