package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "/tmp/sqlchecker.sock", cfg.SocketPath)
	require.Equal(t, "info", cfg.LogLevel)
	require.False(t, cfg.DevMode)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout)
	require.Equal(t, 3, cfg.FetchAttempts)
	require.Equal(t, 100*time.Millisecond, cfg.FetchRetryDelay)
	require.Empty(t, cfg.PolicyFile)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CHAMICORE_SQLGATE_SOCKET_PATH", "/run/sqlgate/gate.sock")
	t.Setenv("CHAMICORE_SQLGATE_LOG_LEVEL", "DEBUG")
	t.Setenv("CHAMICORE_SQLGATE_DEV_MODE", "yes")
	t.Setenv("CHAMICORE_SQLGATE_REQUEST_TIMEOUT", "5s")
	t.Setenv("CHAMICORE_SQLGATE_FETCH_TIMEOUT", "2s")
	t.Setenv("CHAMICORE_SQLGATE_FETCH_RETRIES", "5")
	t.Setenv("CHAMICORE_SQLGATE_FETCH_RETRY_DELAY", "250ms")
	t.Setenv("CHAMICORE_SQLGATE_POLICY_FILE", "/etc/sqlgate/permissions.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "/run/sqlgate/gate.sock", cfg.SocketPath)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.DevMode)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Equal(t, 2*time.Second, cfg.FetchTimeout)
	require.Equal(t, 5, cfg.FetchAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.FetchRetryDelay)
	require.Equal(t, "/etc/sqlgate/permissions.yaml", cfg.PolicyFile)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CHAMICORE_SQLGATE_FETCH_RETRIES", "-2")
	t.Setenv("CHAMICORE_SQLGATE_FETCH_TIMEOUT", "soon")
	t.Setenv("CHAMICORE_SQLGATE_DEV_MODE", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 3, cfg.FetchAttempts)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout)
	require.False(t, cfg.DevMode)
}

func TestLoad_BlankSocketPathRejected(t *testing.T) {
	t.Setenv("CHAMICORE_SQLGATE_SOCKET_PATH", "   ")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "CHAMICORE_SQLGATE_SOCKET_PATH")
}
