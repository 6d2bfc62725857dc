package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseFile_JSON(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"storage":            "postgres",
		"dsn":                "postgres://u:p@localhost/jp",
		"http_timeout":       "10s",
		"auto_sync_interval": 0,
		"drive": map[string]any{
			"client_id": "cid",
			"scopes":    []string{"s1", "s2"},
		},
	})

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NoError(t, parseFile(cfg, []string{"--config", path}))

	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.Equal(t, "postgres://u:p@localhost/jp", cfg.DSN)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Duration(0), cfg.AutoSyncInterval)
	assert.Equal(t, "cid", cfg.Drive.ClientID)
	assert.Equal(t, []string{"s1", "s2"}, cfg.Drive.Scopes)
	// untouched fields keep their defaults
	assert.Equal(t, "https://oauth2.googleapis.com/token", cfg.Drive.TokenURL)
}

func Test_parseFile_NoFlagNoChanges(t *testing.T) {
	cfg := &Config{ListenAddr: "defaults:1234", HTTPTimeout: 42 * time.Second}
	require.NoError(t, parseFile(cfg, []string{"list"}))

	assert.Equal(t, "defaults:1234", cfg.ListenAddr)
	assert.Equal(t, 42*time.Second, cfg.HTTPTimeout)
}

func Test_parseFile_InvalidContent(t *testing.T) {
	dir := t.TempDir()

	badJSON := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badJSON, []byte(`{ this is not valid json`), 0o600))
	require.Error(t, parseFile(&Config{}, []string{"-c", badJSON}))

	badYAML := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(badYAML, []byte("http_timeout: [1, 2"), 0o600))
	require.Error(t, parseFile(&Config{}, []string{"-c", badYAML}))
}
