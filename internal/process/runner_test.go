package process

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_NotFound(t *testing.T) {
	var logs bytes.Buffer
	r := NewExecRunner(slog.New(slog.NewTextHandler(&logs, nil)))

	err := r.Run(context.Background(), "mysqldump-nonexistent", "--no-data")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dumperr.ErrIO), "want IO kind, got %v", err)
	assert.True(t, errors.Is(err, exec.ErrNotFound), "want not found cause, got %v", err)
	assert.Contains(t, logs.String(), "command failed to run")
	assert.Contains(t, logs.String(), "mysqldump-nonexistent")
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireShell(t)
	var logs bytes.Buffer
	r := NewExecRunner(slog.New(slog.NewTextHandler(&logs, nil)))

	err := r.Run(context.Background(), "sh", "-c", "echo partial; echo unknown option --norberto >&2; exit 2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dumperr.ErrCommandRun), "want command-run kind, got %v", err)

	var de *dumperr.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "output: partial\n\nstderr: unknown option --norberto\n", de.Msg)

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.ExitCode())

	assert.Contains(t, logs.String(), "command failed")
}

func TestExecRunner_Success(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	assert.NoError(t, r.Run(context.Background(), "sh", "-c", "echo ignored"))
}

func TestExecRunner_NilLogger(t *testing.T) {
	requireShell(t)
	r := &ExecRunner{}
	assert.NoError(t, r.Run(context.Background(), "sh", "-c", "exit 0"))
}

func TestExecRunner_CanceledContext(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewExecRunner(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	assert.Error(t, r.Run(ctx, "sh", "-c", "sleep 5"))
}

func TestRedactArgs(t *testing.T) {
	args := []string{
		"--user", "root",
		"--password=hunter2",
		"postgresql://bob:s3cret@db:5432/app",
		"postgresql://db/app",
		"app",
		"postgres://u@h/db?sslmode=disable&password=secret",
	}
	got := RedactArgs(args)

	assert.Equal(t, "--password=xxxxx", got[2])
	assert.False(t, strings.Contains(got[3], "s3cret"), "url password leaked: %s", got[3])
	assert.Equal(t, "postgresql://db/app", got[4])
	assert.Equal(t, "app", got[5])
	assert.NotContains(t, got[6], "secret")
	assert.Contains(t, got[6], "password=xxxxx")
	assert.Contains(t, got[6], "sslmode=disable")
	// The input is left untouched.
	assert.Equal(t, "--password=hunter2", args[2])
}

func TestNewestVersionedBinary(t *testing.T) {
	intel, arm := t.TempDir(), t.TempDir()
	install := func(root, formula string) string {
		t.Helper()
		bin := filepath.Join(root, formula, "bin")
		require.NoError(t, os.MkdirAll(bin, 0o755))
		p := filepath.Join(bin, "mysqldump")
		require.NoError(t, os.WriteFile(p, nil, 0o755))
		return p
	}
	install(arm, "mysql@8.0")
	want := install(intel, "mysql@8.4")
	install(arm, "mysql@latest")
	install(arm, "mysql-client@9")
	// Formula directory without the binary.
	require.NoError(t, os.MkdirAll(filepath.Join(arm, "mysql@9.1"), 0o755))

	roots := []string{arm, intel, filepath.Join(t.TempDir(), "missing")}
	assert.Equal(t, want, newestVersionedBinary(roots, "mysql@", "mysqldump"))
	assert.Empty(t, newestVersionedBinary(roots, "postgresql@", "pg_dump"))

	// Earlier roots win ties.
	tie := install(arm, "mysql@8.4")
	assert.Equal(t, tie, newestVersionedBinary(roots, "mysql@", "mysqldump"))
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want []int
		ok   bool
	}{
		{"18", []int{18}, true},
		{"8.4", []int{8, 4}, true},
		{"", nil, false},
		{"0", nil, false},
		{"latest", nil, false},
		{"8.", nil, false},
	}
	for _, tt := range tests {
		got, ok := parseVersion(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestLookPath_Missing(t *testing.T) {
	assert.Equal(t, "definitely-not-a-dump-tool", LookPath("definitely-not-a-dump-tool"))
}
