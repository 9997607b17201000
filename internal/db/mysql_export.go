package db

import (
	"context"
	"strconv"

	"github.com/SedlarDavid/schemadump/internal/process"
)

// MySQLDumpArgs builds the mysqldump argument list for a structure-only dump
// into dest. Optional flags appear only when the option is set, and the
// database name (or --all-databases) is always last.
func MySQLDumpArgs(opts ConnectionOptions, dest string) []string {
	args := []string{
		"--no-data",
		"--routines",
		"--skip-comments",
		"--result-file", dest,
		"--host", opts.Host,
		"--port", strconv.Itoa(int(opts.Port)),
		"--user", opts.Username,
		"--ssl-mode", opts.SSLMode.String(),
	}
	// Attached form: "--password" followed by a separate value would make
	// mysqldump prompt and read the value as the database name.
	if opts.Password != nil {
		args = append(args, "--password="+*opts.Password)
	}
	if opts.SSLCA != "" {
		args = append(args, "--ssl-ca", opts.SSLCA)
	}
	if opts.SSLClientCert != "" {
		args = append(args, "--ssl-cert", opts.SSLClientCert)
	}
	if opts.SSLClientKey != "" {
		args = append(args, "--ssl-key", opts.SSLClientKey)
	}
	if opts.Socket != "" {
		args = append(args, "--socket", opts.Socket)
	}
	if opts.HasDatabase() {
		args = append(args, opts.Database)
	} else {
		args = append(args, "--all-databases")
	}
	return args
}

// DumpMySQL runs mysqldump against the server described by opts.
// mysqldump writes to a temp file next to dest, renamed over dest on success.
func DumpMySQL(ctx context.Context, runner process.Runner, opts ConnectionOptions, dest string) error {
	tool := process.LookPath(DefaultsFor(MySQL).DumpTool)
	return exportVia(dest, func(tmp string) error {
		return runner.Run(ctx, tool, MySQLDumpArgs(opts, tmp)...)
	})
}
