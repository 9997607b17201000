//go:build integration

package schemadump

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	ctr, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithDatabase("app"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { ctr.Terminate(context.Background()) }) //nolint:errcheck

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

func TestDump_PostgresContainer(t *testing.T) {
	if _, err := exec.LookPath("pg_dump"); err != nil {
		t.Skip("pg_dump not installed")
	}
	url := startPostgres(t)

	// Both backends share the database, each with its own bookkeeping table.
	for backend, table := range map[string]string{"native": "accounts", "golang-migrate": "users"} {
		t.Run(backend, func(t *testing.T) {
			dir := writeMigrations(t, map[string]string{
				"1_create_" + table + ".sql": "CREATE TABLE " + table + " (id BIGSERIAL PRIMARY KEY, email TEXT NOT NULL)",
			})
			dest := filepath.Join(t.TempDir(), "structure.sql")

			req, err := Config{URL: url, Backend: backend, MigrationsDir: dir, Destination: dest}.Resolve()
			require.NoError(t, err)

			res, err := (&Dumper{}).Dump(context.Background(), req)
			require.NoError(t, err)
			assert.Positive(t, res.Bytes)

			out, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Contains(t, string(out), "CREATE TABLE public."+table+" (")
			assert.NotContains(t, string(out), "INSERT INTO")
		})
	}
}
