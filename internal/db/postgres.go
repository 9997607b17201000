package db

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// ParsePostgresConfig validates url with pgx's libpq-compatible grammar.
// The pgx error is dropped because it may echo the URL.
func ParsePostgresConfig(url string) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, dumperr.New(dumperr.KindURIConfiguration, "parse url", "invalid postgres connection string")
	}
	return cfg, nil
}

// OpenPostgres connects to PostgreSQL through pgx's database/sql adapter.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	if _, err := ParseURL(Postgres, url); err != nil {
		return nil, err
	}
	cfg, err := ParsePostgresConfig(url)
	if err != nil {
		return nil, err
	}
	db := stdlib.OpenDB(*cfg)
	if err := ping(ctx, db, "postgres ping"); err != nil {
		return nil, err
	}
	return db, nil
}
