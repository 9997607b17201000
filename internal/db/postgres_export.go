package db

import (
	"context"

	"github.com/SedlarDavid/schemadump/internal/process"
)

// PostgresDumpArgs builds the pg_dump argument list. pg_dump accepts the
// connection URI directly as a positional argument and reads host, port,
// credentials and SSL settings from it.
func PostgresDumpArgs(url, dest string) []string {
	return []string{
		"--schema-only",
		"--no-owner",
		"--no-privileges",
		"--file", dest,
		url,
	}
}

// DumpPostgres runs pg_dump against url.
// pg_dump writes to a temp file next to dest, renamed over dest on success.
func DumpPostgres(ctx context.Context, runner process.Runner, url, dest string) error {
	tool := process.LookPath(DefaultsFor(Postgres).DumpTool)
	return exportVia(dest, func(tmp string) error {
		return runner.Run(ctx, tool, PostgresDumpArgs(url, tmp)...)
	})
}
