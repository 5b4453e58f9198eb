package client

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-sqlgate/pkg/types"
)

func serveCanned(t *testing.T, status int, body string) string {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "svc.sock")
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}),
		ReadHeaderTimeout: time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	return socket
}

func TestNew_RequiresSocketPath(t *testing.T) {
	_, err := New(Config{SocketPath: "   "})
	require.Error(t, err)
	require.Contains(t, err.Error(), "SocketPath is required")
}

func TestValidate_DecodesResult(t *testing.T) {
	socket := serveCanned(t, http.StatusOK,
		`{"allowed":false,"details":[{"type":"DELETE","tables":["orders"],"ctes":[],"allowed":false,"denied":true,"reason":"Denied by deny.all for table orders"}],"reason":"Denied by deny.all for table orders"}`)

	c, err := New(Config{SocketPath: socket, Timeout: time.Second})
	require.NoError(t, err)

	result, err := c.Validate(context.Background(), types.ValidationRequest{
		SessionID:    "session-1",
		InvocationID: "invocation-1",
		InputArgs:    types.InputArgs{SQL: "DELETE FROM orders"},
	})
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Len(t, result.Details, 1)
	require.Equal(t, "DELETE", *result.Details[0].Type)
	require.True(t, result.Details[0].Denied)
}

func TestValidate_SurfacesServiceError(t *testing.T) {
	socket := serveCanned(t, http.StatusInternalServerError, `{"error":"resolve sql permissions: context fetch failed"}`)

	c, err := New(Config{SocketPath: socket, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Validate(context.Background(), types.ValidationRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "context fetch failed")
	require.Contains(t, err.Error(), "status 500")
}

func TestValidate_UnexpectedStatusWithoutBody(t *testing.T) {
	socket := serveCanned(t, http.StatusBadGateway, "")

	c, err := New(Config{SocketPath: socket, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Validate(context.Background(), types.ValidationRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 502")
}

func TestValidate_ConnectionFailure(t *testing.T) {
	c, err := New(Config{
		SocketPath: filepath.Join(t.TempDir(), "absent.sock"),
		Timeout:    time.Second,
	})
	require.NoError(t, err)

	_, err = c.Validate(context.Background(), types.ValidationRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "validating sql")
}
