package config

import (
	"log/slog"
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
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, ":8080", cfg.HttpListenAddr)
	assert.Equal(t, ":50052", cfg.GrpcListenAddr)
	assert.Equal(t, "memory", cfg.ExecutionStore)
	assert.Equal(t, 15*time.Second, cfg.HttpWorker.Timeout)
	assert.Equal(t, 30*time.Second, cfg.ShellWorker.Timeout)
	assert.False(t, cfg.HttpAPI.AllowShell)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Empty(t, cfg.Schedules)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
shutdown_timeout: 5s
log_level: debug
execution_store: sqlite
sqlite_path: /tmp/taskhost.db
http_worker:
  timeout: 2s
  rate_limit: 10
  burst: 3
schedules:
  - name: ping
    cron_expr: "*/10 * * * * *"
    kind: http
    url: http://localhost:9000/ping
  - name: cleanup
    cron_expr: "@every 1m"
    kind: shell
    command: echo cleanup
`)
	t.Setenv("TASKHOST_HTTP_LISTEN_ADDR", ":9999")
	t.Setenv("TASKHOST_SHELL_WORKER_TIMEOUT", "7s")
	t.Setenv("TASKHOST_HTTP_API_ALLOW_SHELL", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, ":9999", cfg.HttpListenAddr)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "sqlite", cfg.ExecutionStore)
	assert.Equal(t, 2*time.Second, cfg.HttpWorker.Timeout)
	assert.Equal(t, 10.0, cfg.HttpWorker.RateLimit)
	assert.Equal(t, 3, cfg.HttpWorker.Burst)
	assert.Equal(t, 7*time.Second, cfg.ShellWorker.Timeout)
	assert.True(t, cfg.HttpAPI.AllowShell)
	require.Len(t, cfg.Schedules, 2)
	assert.Equal(t, "ping", cfg.Schedules[0].Name)
	assert.Equal(t, "echo cleanup", cfg.Schedules[1].Command)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad store", "execution_store: mongo\n"},
		{"redis without addr", "execution_store: redis\n"},
		{"etcd without endpoints", "execution_store: etcd\n"},
		{"bad log level", "log_level: loud\n"},
		{"bad cron", "schedules:\n  - name: a\n    cron_expr: nope\n    kind: shell\n    command: ls\n"},
		{"http schedule without url", "schedules:\n  - name: a\n    cron_expr: \"* * * * * *\"\n    kind: http\n"},
		{"shell schedule without command", "schedules:\n  - name: a\n    cron_expr: \"* * * * * *\"\n    kind: shell\n"},
		{"duplicate names", "schedules:\n  - name: a\n    cron_expr: \"* * * * * *\"\n    kind: shell\n    command: ls\n  - name: a\n    cron_expr: \"* * * * * *\"\n    kind: shell\n    command: ls\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
