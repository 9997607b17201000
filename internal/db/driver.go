// Package db knows the three supported engines: how their connection strings
// are parsed, how a connection is opened for the migration step, and how their
// structure is extracted (introspection for SQLite, an external dump utility
// for MySQL and PostgreSQL).
package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// Engine is the class of database being targeted.
type Engine string

const (
	SQLite   Engine = "sqlite"
	MySQL    Engine = "mysql"
	Postgres Engine = "postgres"
)

// Engines lists the supported engines in a stable order.
var Engines = []Engine{SQLite, MySQL, Postgres}

// ParseEngine maps an engine name or one of its aliases to an Engine.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	}
	return "", dumperr.New(dumperr.KindURIConfiguration, "parse engine", "unsupported engine %q", s)
}

// EngineFromURL guesses the engine from a connection string's scheme.
// Anything that is not a MySQL or PostgreSQL URL is treated as SQLite.
func EngineFromURL(raw string) Engine {
	scheme, _, ok := strings.Cut(raw, "://")
	if !ok {
		return SQLite
	}
	switch strings.ToLower(scheme) {
	case "mysql", "mariadb":
		return MySQL
	case "postgres", "postgresql", "pg":
		return Postgres
	}
	return SQLite
}

// CanonicalURL rewrites the pg:// alias to postgres://, the form libpq and
// pgx accept. Other URLs are returned unchanged.
func CanonicalURL(engine Engine, raw string) string {
	if engine != Postgres {
		return raw
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if ok && strings.EqualFold(scheme, "pg") {
		return "postgres://" + rest
	}
	return raw
}

// Strategy is how an engine's structure is produced.
type Strategy int

const (
	// Introspection queries the engine's own catalog.
	Introspection Strategy = iota
	// ExternalDump delegates to the engine's dump utility.
	ExternalDump
)

func (s Strategy) String() string {
	if s == ExternalDump {
		return "external-dump"
	}
	return "introspection"
}

// Defaults holds the per-engine fallbacks used when a connection string
// leaves a component out.
type Defaults struct {
	URL      string
	Host     string
	Port     uint16
	Username string
	// DumpTool is the external utility for ExternalDump engines.
	DumpTool string
	Strategy Strategy
}

// EngineDefaults is the single source of per-engine defaults.
var EngineDefaults = map[Engine]Defaults{
	SQLite: {
		URL:      MemoryTarget,
		Strategy: Introspection,
	},
	MySQL: {
		URL:      "mysql://root:@127.0.0.1:3306/mysql",
		Host:     "localhost",
		Port:     3306,
		Username: "root",
		DumpTool: "mysqldump",
		Strategy: ExternalDump,
	},
	Postgres: {
		URL:      "postgresql://postgres@localhost:5432/postgres",
		Host:     "localhost",
		Port:     5432,
		Username: "postgres",
		DumpTool: "pg_dump",
		Strategy: ExternalDump,
	},
}

// DefaultsFor returns the defaults for engine. Unknown engines get the zero value.
func DefaultsFor(engine Engine) Defaults {
	return EngineDefaults[engine]
}

// Open connects to the database at url and verifies the connection. The
// caller owns the returned handle and must close it.
//
// URL problems keep their URI kinds; anything that goes wrong while reaching
// the server is reported as a connection error.
func Open(ctx context.Context, engine Engine, url string) (*sql.DB, error) {
	switch engine {
	case SQLite:
		return OpenSQLite(ctx, url)
	case MySQL:
		opts, err := ParseURL(MySQL, url)
		if err != nil {
			return nil, err
		}
		return OpenMySQL(ctx, opts)
	case Postgres:
		return OpenPostgres(ctx, url)
	}
	return nil, dumperr.New(dumperr.KindURIConfiguration, "open", "unsupported engine %q", string(engine))
}

func ping(ctx context.Context, db *sql.DB, op string) error {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dumperr.Wrap(dumperr.KindDatabaseConnection, op, err)
	}
	return nil
}

// Queryer is the subset of *sql.DB needed for introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
