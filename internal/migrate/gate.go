package migrate

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/SedlarDavid/schemadump/internal/db"
	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// Backend selects who applies migrations.
type Backend string

const (
	// Native applies migrations with NativeRunner.
	Native Backend = "native"
	// GolangMigrate delegates to github.com/golang-migrate/migrate.
	GolangMigrate Backend = "golang-migrate"
)

// ParseBackend maps a backend name to a Backend. Empty means Native.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return Native, nil
	case "golang-migrate", "golangmigrate", "migrate":
		return GolangMigrate, nil
	}
	return "", dumperr.New(dumperr.KindURIConfiguration, "parse backend", "unsupported migration backend %q", s)
}

// Runner applies the pending migrations of set to conn and returns the ones
// it applied, in order. A failure stops before any later migration.
type Runner interface {
	Run(ctx context.Context, conn *sql.DB, d Dialect, set Set) ([]Migration, error)
}

// NewRunner returns the Runner for backend.
func NewRunner(backend Backend, logger *slog.Logger) (Runner, error) {
	switch backend {
	case Native, "":
		return &NativeRunner{Logger: logger}, nil
	case GolangMigrate:
		return &GolangMigrateRunner{Logger: logger}, nil
	}
	return nil, dumperr.New(dumperr.KindURIConfiguration, "migration backend", "unsupported migration backend %q", string(backend))
}

// Gate brings a database to the latest migration before it is dumped.
type Gate struct {
	Engine db.Engine
	Runner Runner
	Logger *slog.Logger
}

// NewGate returns a Gate for engine using backend's runner.
func NewGate(engine db.Engine, backend Backend, logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r, err := NewRunner(backend, logger)
	if err != nil {
		return nil, err
	}
	return &Gate{Engine: engine, Runner: r, Logger: logger}, nil
}

// EnsureAndApply discovers the migrations in dir and applies the pending
// ones to conn. Running it twice against the same database applies nothing
// the second time.
func (g *Gate) EnsureAndApply(ctx context.Context, conn *sql.DB, dir string) ([]Migration, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d, err := DialectFor(g.Engine)
	if err != nil {
		return nil, err
	}
	set, err := DiscoverDir(dir)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	applied, err := g.Runner.Run(ctx, conn, d, set)
	if err != nil {
		return applied, err
	}
	logger.Info("migrations up to date",
		"engine", string(g.Engine),
		"available", len(set),
		"applied", len(applied),
		"duration", time.Since(start))
	return applied, nil
}
