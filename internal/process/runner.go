// Package process runs the external dump utilities and classifies how they
// ended: not launched, launched but failed, or succeeded.
package process

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// Runner executes a program to completion.
type Runner interface {
	Run(ctx context.Context, program string, args ...string) error
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	Logger *slog.Logger
}

// NewExecRunner returns an ExecRunner logging to logger (slog.Default if nil).
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Logger: logger}
}

// Run launches program, waits for it and captures both output streams.
// A program that cannot be started yields a KindIO error wrapping the
// launch error; a non-zero exit yields KindCommandRun carrying the captured
// stdout and stderr. There is no timeout beyond ctx.
func (r *ExecRunner) Run(ctx context.Context, program string, args ...string) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.CommandContext(ctx, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		logger.Error("command failed to run",
			"program", program, "args", RedactArgs(args), "error", err)
		return dumperr.Wrap(dumperr.KindIO, program, err)
	}

	if err := cmd.Wait(); err != nil {
		logger.Error("command failed",
			"program", program,
			"args", RedactArgs(args),
			"error", err,
			"stdout", stdout.String(),
			"stderr", stderr.String())
		return &dumperr.Error{
			Kind: dumperr.KindCommandRun,
			Op:   program,
			Msg:  fmt.Sprintf("output: %s\nstderr: %s", stdout.String(), stderr.String()),
			Err:  err,
		}
	}

	logger.Debug("command succeeded", "program", program, "args", RedactArgs(args))
	return nil
}

var _ Runner = (*ExecRunner)(nil)

// RedactArgs returns a copy of args safe to log: inline password flags and
// passwords embedded in connection URLs (user info or query) are masked.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch {
		case strings.HasPrefix(a, "--password="):
			out[i] = "--password=xxxxx"
		case strings.Contains(a, "://"):
			out[i] = redactURL(a)
		default:
			out[i] = a
		}
	}
	return out
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("password") {
		q.Set("password", "xxxxx")
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}

// brewPrefixes maps CLI tool names to the Homebrew formula prefixes where
// versioned copies may be installed (e.g. postgresql@18/bin/pg_dump).
var brewPrefixes = map[string]string{
	"pg_dump":   "postgresql@",
	"mysqldump": "mysql@",
}

// LookPath returns the absolute path to the best available version of a
// CLI tool. On macOS it inspects Homebrew versioned formula directories so
// that the newest installed version is used regardless of PATH ordering.
// When nothing is found the bare name is returned, so that running it
// surfaces the launcher's own "not found" error.
func LookPath(name string) string {
	if runtime.GOOS == "darwin" {
		if prefix, ok := brewPrefixes[name]; ok {
			if p := findNewestBrewBinary(prefix, name); p != "" {
				return p
			}
		}
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return name
	}
	return p
}

// brewOptDirs are the Homebrew "opt" roots for Apple Silicon and Intel.
var brewOptDirs = []string{"/opt/homebrew/opt", "/usr/local/opt"}

func findNewestBrewBinary(formulaPrefix, binary string) string {
	return newestVersionedBinary(brewOptDirs, formulaPrefix, binary)
}

// newestVersionedBinary returns <root>/<prefix><version>/bin/<binary> for the
// highest version found under roots, or "" when none exists. Versions are
// dot-separated integers ("17", "8.4"); other suffixes are ignored. Earlier
// roots win ties.
func newestVersionedBinary(roots []string, formulaPrefix, binary string) string {
	var (
		best    string
		bestVer []int
	)
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			suffix, ok := strings.CutPrefix(e.Name(), formulaPrefix)
			if !ok {
				continue
			}
			ver, ok := parseVersion(suffix)
			if !ok || (best != "" && slices.Compare(ver, bestVer) <= 0) {
				continue
			}
			p := filepath.Join(root, e.Name(), "bin", binary)
			if fi, err := os.Stat(p); err != nil || fi.IsDir() {
				continue
			}
			best, bestVer = p, ver
		}
	}
	return best
}

func parseVersion(s string) ([]int, bool) {
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	ver := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, false
		}
		ver[i] = n
	}
	return ver, ver[0] > 0
}
