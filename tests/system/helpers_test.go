//go:build system

package system

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

const defaultCommandTimeout = 30 * time.Second

// binPath resolves the chamicore-sqlgate binary under test, either from
// CHAMICORE_SQLGATE_TEST_BIN or from PATH.
func binPath(t *testing.T) string {
	t.Helper()

	if explicit := strings.TrimSpace(os.Getenv("CHAMICORE_SQLGATE_TEST_BIN")); explicit != "" {
		return explicit
	}
	resolved, err := exec.LookPath("chamicore-sqlgate")
	if err != nil {
		t.Fatalf("chamicore-sqlgate not found in PATH; set CHAMICORE_SQLGATE_TEST_BIN: %v", err)
	}
	return resolved
}

func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), defaultCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binPath(t), args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("run %v: %v", args, err)
		}
		return outBuf.String(), errBuf.String(), exitErr.ExitCode()
	}
	return outBuf.String(), errBuf.String(), 0
}
