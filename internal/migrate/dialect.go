package migrate

import (
	"strconv"
	"strings"

	"github.com/SedlarDavid/schemadump/internal/db"
	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// BookkeepingTable records the migrations applied by the native runner.
const BookkeepingTable = "_schema_migrations"

// Dialect holds the SQL differences the native runner cares about.
type Dialect struct {
	Engine db.Engine
	// CreateTable creates BookkeepingTable if it does not exist.
	CreateTable string
	// TransactionalDDL is false when DDL statements commit implicitly, in
	// which case a migration is recorded as in progress before it runs.
	TransactionalDDL bool
	// positional selects "$n" placeholders instead of "?".
	positional bool
}

var dialects = map[db.Engine]Dialect{
	db.SQLite: {
		Engine: db.SQLite,
		CreateTable: `CREATE TABLE IF NOT EXISTS _schema_migrations (
    version BIGINT PRIMARY KEY,
    description TEXT NOT NULL,
    installed_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    success BOOLEAN NOT NULL,
    checksum BLOB NOT NULL,
    execution_time BIGINT NOT NULL
)`,
		TransactionalDDL: true,
	},
	db.MySQL: {
		Engine: db.MySQL,
		CreateTable: `CREATE TABLE IF NOT EXISTS _schema_migrations (
    version BIGINT PRIMARY KEY,
    description TEXT NOT NULL,
    installed_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    success BOOLEAN NOT NULL,
    checksum BLOB NOT NULL,
    execution_time BIGINT NOT NULL
)`,
	},
	db.Postgres: {
		Engine: db.Postgres,
		CreateTable: `CREATE TABLE IF NOT EXISTS _schema_migrations (
    version BIGINT PRIMARY KEY,
    description TEXT NOT NULL,
    installed_on TIMESTAMPTZ NOT NULL DEFAULT now(),
    success BOOLEAN NOT NULL,
    checksum BYTEA NOT NULL,
    execution_time BIGINT NOT NULL
)`,
		TransactionalDDL: true,
		positional:       true,
	},
}

// DialectFor returns the dialect of engine.
func DialectFor(engine db.Engine) (Dialect, error) {
	d, ok := dialects[engine]
	if !ok {
		return Dialect{}, dumperr.New(dumperr.KindMigration, "dialect", "unsupported engine %q", string(engine))
	}
	return d, nil
}

// bind rewrites "?" placeholders for dialects that number them.
func (d Dialect) bind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
