package db

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// OpenSQLite opens a SQLite database using modernc.org/sqlite (pure Go, no CGO).
// raw may be a path, a file: URI, a sqlite: URL or empty for an in-memory database.
//
// The pool is pinned to a single connection: every connection to ":memory:"
// is a separate database, and the migrations and the introspection query
// must see the same one.
func OpenSQLite(ctx context.Context, raw string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", SQLiteTarget(raw))
	if err != nil {
		return nil, dumperr.Wrap(dumperr.KindDatabaseConnection, "sqlite open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	if err := ping(ctx, db, "sqlite ping"); err != nil {
		return nil, err
	}
	return db, nil
}
