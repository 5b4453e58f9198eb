package skillset

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func serveStore(t *testing.T, handler http.Handler) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "store.sock")
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return socket
}

func TestGetContext_ReturnsRawValue(t *testing.T) {
	raw := `{"allow": {"select": ["support_tickets"]}}`
	socket := serveStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(raw))
	}))

	client := New(socket)
	got, err := client.GetContext(context.Background(), "s", "i", ContextNameSQLPermissions)
	require.NoError(t, err)
	require.JSONEq(t, raw, string(got))
}

func TestGetContext_SendsIdentifiers(t *testing.T) {
	queries := make(chan url.Values, 1)
	socket := serveStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case queries <- r.URL.Query():
		default:
		}
		_, _ = w.Write([]byte(`{}`))
	}))

	client := New(socket)
	_, err := client.GetContext(context.Background(), "session-9", "invocation-9", "sql-permissions")
	require.NoError(t, err)

	query := <-queries
	require.Equal(t, "session-9", query.Get("session_id"))
	require.Equal(t, "invocation-9", query.Get("invocation_id"))
	require.Equal(t, "sql-permissions", query.Get("name"))
}

func TestGetContext_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	socket := serveStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))

	client := New(socket, WithAttempts(3), WithRetryDelay(time.Millisecond))
	_, err := client.GetContext(context.Background(), "s", "i", "sql-permissions")
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestGetContext_GivesUpAfterConfiguredAttempts(t *testing.T) {
	var calls atomic.Int32
	socket := serveStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "still broken", http.StatusInternalServerError)
	}))

	client := New(socket, WithAttempts(2), WithRetryDelay(time.Millisecond))
	_, err := client.GetContext(context.Background(), "s", "i", "sql-permissions")
	require.ErrorIs(t, err, ErrFetch)
	require.EqualValues(t, 2, calls.Load())
}

func TestGetContext_SocketAbsent(t *testing.T) {
	client := New(filepath.Join(t.TempDir(), "missing.sock"),
		WithAttempts(2), WithRetryDelay(time.Millisecond))
	_, err := client.GetContext(context.Background(), "s", "i", "sql-permissions")
	require.ErrorIs(t, err, ErrFetch)
}

func TestGetContext_CancelledContext(t *testing.T) {
	socket := serveStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(socket)
	_, err := client.GetContext(ctx, "s", "i", "sql-permissions")
	require.ErrorIs(t, err, ErrFetch)
}
