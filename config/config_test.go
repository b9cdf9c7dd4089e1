package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  dsn: \"x\"\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ModeEmbedded, cfg.Collaborator.Mode)
	assert.Equal(t, 30*time.Second, cfg.Collaborator.Timeout)
	assert.EqualValues(t, DefaultMaxResponseBytes, cfg.Collaborator.MaxResponseBytes)
	assert.Equal(t, 10*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, time.Second, cfg.Refresh.Tick)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3600, cfg.Push.TTL)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, "allocation.escalated", cfg.Events.Queue)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 30*time.Minute, cfg.Session.DraftTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("config.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WorkerPool.Size)
	assert.Equal(t, 20, cfg.Server.RateLimitBurst)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "Unknown collaborator mode", body: "collaborator:\n  mode: carrier-pigeon\n"},
		{name: "HTTP mode without base URL", body: "collaborator:\n  mode: http\n"},
		{name: "Events without URL", body: "events:\n  enabled: true\n"},
		{name: "Malformed YAML", body: "server: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
