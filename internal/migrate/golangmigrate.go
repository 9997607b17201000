package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	gomigrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	gmmysql "github.com/golang-migrate/migrate/v4/database/mysql"
	gmpgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	gmsqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"

	"github.com/SedlarDavid/schemadump/internal/db"
	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// GolangMigrateRunner applies migrations with golang-migrate. Its
// bookkeeping lives in golang-migrate's own schema_migrations table.
type GolangMigrateRunner struct {
	Logger *slog.Logger
}

// Run implements Runner.
//
// For SQLite the handle is left open because introspection reuses it. For
// MySQL and PostgreSQL golang-migrate owns the handle it was given and
// closes it when done.
func (r *GolangMigrateRunner) Run(ctx context.Context, conn *sql.DB, d Dialect, set Set) ([]Migration, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keepHandle := db.DefaultsFor(d.Engine).Strategy == db.Introspection

	driver, err := databaseDriver(conn, d.Engine)
	if err != nil {
		return nil, dumperr.Wrap(dumperr.KindMigration, "golang-migrate", err)
	}
	if len(set) == 0 {
		// golang-migrate treats an empty source as an error.
		if !keepHandle {
			driver.Close()
		}
		return nil, nil
	}

	m, err := gomigrate.NewWithInstance("schemadump", &setSource{set: set}, string(d.Engine), driver)
	if err != nil {
		if !keepHandle {
			driver.Close()
		}
		return nil, dumperr.Wrap(dumperr.KindMigration, "golang-migrate", err)
	}
	m.Log = migrateLogger{logger}
	if !keepHandle {
		defer m.Close()
	}

	// golang-migrate has no context support; GracefulStop is its way to
	// interrupt between migrations.
	stop := context.AfterFunc(ctx, func() { m.GracefulStop <- true })
	defer stop()

	before, err := currentVersion(m)
	if err != nil {
		return nil, err
	}

	upErr := m.Up()
	if errors.Is(upErr, gomigrate.ErrNoChange) {
		upErr = nil
	}

	after, err := currentVersion(m)
	if err != nil && upErr == nil {
		upErr = err
	}

	var done []Migration
	for _, mig := range set {
		if mig.Version > before && mig.Version <= after {
			logger.Info("migration applied", "version", mig.Version, "description", mig.Description)
			done = append(done, mig)
		}
	}
	if upErr != nil {
		return done, dumperr.Wrap(dumperr.KindMigration, "golang-migrate", upErr)
	}
	return done, nil
}

func currentVersion(m *gomigrate.Migrate) (int64, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, gomigrate.ErrNilVersion) {
		return -1, nil
	}
	if err != nil {
		return 0, dumperr.Wrap(dumperr.KindMigration, "golang-migrate version", err)
	}
	if dirty {
		return 0, dumperr.New(dumperr.KindMigration, "golang-migrate version",
			"database is dirty at version %d; fix and force the version", v)
	}
	return int64(v), nil
}

func databaseDriver(conn *sql.DB, engine db.Engine) (database.Driver, error) {
	switch engine {
	case db.SQLite:
		return gmsqlite.WithInstance(conn, &gmsqlite.Config{})
	case db.MySQL:
		return gmmysql.WithInstance(conn, &gmmysql.Config{})
	case db.Postgres:
		return gmpgx.WithInstance(conn, &gmpgx.Config{})
	}
	return nil, fmt.Errorf("unsupported engine %q", string(engine))
}

// migrateLogger adapts slog to golang-migrate's logger.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "golang-migrate")
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}

// setSource serves a discovered Set as a golang-migrate source, so both
// runners accept the same directory layouts.
type setSource struct {
	set Set
}

var _ source.Driver = (*setSource)(nil)

func (s *setSource) Open(string) (source.Driver, error) {
	return nil, errors.New("setSource cannot be opened from a URL")
}

func (s *setSource) Close() error { return nil }

func (s *setSource) First() (uint, error) {
	if len(s.set) == 0 {
		return 0, &fs.PathError{Op: "first", Path: "migrations", Err: fs.ErrNotExist}
	}
	return uint(s.set[0].Version), nil
}

func (s *setSource) Prev(version uint) (uint, error) {
	for i := len(s.set) - 1; i >= 0; i-- {
		if uint(s.set[i].Version) < version {
			return uint(s.set[i].Version), nil
		}
	}
	return 0, &fs.PathError{Op: fmt.Sprintf("prev for version %d", version), Path: "migrations", Err: fs.ErrNotExist}
}

func (s *setSource) Next(version uint) (uint, error) {
	for _, m := range s.set {
		if uint(m.Version) > version {
			return uint(m.Version), nil
		}
	}
	return 0, &fs.PathError{Op: fmt.Sprintf("next for version %d", version), Path: "migrations", Err: fs.ErrNotExist}
}

func (s *setSource) ReadUp(version uint) (io.ReadCloser, string, error) {
	if m, ok := s.set.Get(int64(version)); ok {
		return io.NopCloser(bytes.NewReader(m.SQL)), m.Description, nil
	}
	return nil, "", &fs.PathError{Op: fmt.Sprintf("read up for version %d", version), Path: "migrations", Err: fs.ErrNotExist}
}

func (s *setSource) ReadDown(version uint) (io.ReadCloser, string, error) {
	return nil, "", &fs.PathError{Op: fmt.Sprintf("read down for version %d", version), Path: "migrations", Err: fs.ErrNotExist}
}
