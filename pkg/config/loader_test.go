package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadConfigLayersEnvOverBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
timezone: "UTC"
decision:
  max_reach_outs_per_day: 5
  cooldown_minutes: 60
`)
	writeFile(t, dir, "dev.yaml", `
decision:
  max_reach_outs_per_day: 20
`)

	cfg, err := LoadConfig("dev", dir)
	require.NoError(t, err)

	decision := cfg["decision"].(map[string]interface{})
	assert.Equal(t, 20, decision["max_reach_outs_per_day"])
	assert.Equal(t, 60, decision["cooldown_minutes"])
	assert.Equal(t, "UTC", cfg["timezone"])
}

func TestLoadConfigMissingEnvFileFallsBackToBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `timezone: "UTC"`)

	cfg, err := LoadConfig("staging", dir)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg["timezone"])
}

func TestLoadConfigSubstitutesSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  password: "${DB_PASSWORD}"
`)
	writeFile(t, dir, "secrets.env", "DB_PASSWORD=hunter2\n")

	cfg, err := LoadConfig("base", dir)
	require.NoError(t, err)

	db := cfg["db"].(map[string]interface{})
	assert.Equal(t, "hunter2", db["password"])
}

func TestLoadConfigMissingBaseFails(t *testing.T) {
	_, err := LoadConfig("dev", t.TempDir())
	assert.Error(t, err)
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("LOADER_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnv("LOADER_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("LOADER_TEST_MISSING", "fallback"))
}
