package migrate

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// NativeRunner applies migrations itself over database/sql, recording each
// one in BookkeepingTable together with its checksum.
type NativeRunner struct {
	Logger *slog.Logger
}

type appliedRow struct {
	checksum []byte
	success  bool
}

// Run implements Runner.
func (r *NativeRunner) Run(ctx context.Context, conn *sql.DB, d Dialect, set Set) ([]Migration, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := conn.ExecContext(ctx, d.CreateTable); err != nil {
		return nil, dumperr.Wrap(dumperr.KindMigration, "create bookkeeping table", err)
	}

	applied, err := r.appliedVersions(ctx, conn)
	if err != nil {
		return nil, err
	}
	if err := validateApplied(applied, set); err != nil {
		return nil, err
	}

	var done []Migration
	for _, m := range set {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		start := time.Now()
		if err := r.apply(ctx, conn, d, m); err != nil {
			logger.Error("migration failed", "version", m.Version, "description", m.Description, "error", err)
			return done, err
		}
		logger.Info("migration applied",
			"version", m.Version,
			"description", m.Description,
			"duration", time.Since(start))
		done = append(done, m)
	}
	return done, nil
}

func (r *NativeRunner) appliedVersions(ctx context.Context, conn *sql.DB) (map[int64]appliedRow, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT version, checksum, success FROM _schema_migrations ORDER BY version`)
	if err != nil {
		return nil, dumperr.Wrap(dumperr.KindMigration, "read applied migrations", err)
	}
	defer rows.Close()

	out := make(map[int64]appliedRow)
	for rows.Next() {
		var v int64
		var row appliedRow
		if err := rows.Scan(&v, &row.checksum, &row.success); err != nil {
			return nil, dumperr.Wrap(dumperr.KindMigration, "read applied migrations", err)
		}
		out[v] = row
	}
	if err := rows.Err(); err != nil {
		return nil, dumperr.Wrap(dumperr.KindMigration, "read applied migrations", err)
	}
	return out, nil
}

// validateApplied rejects databases whose history disagrees with set.
func validateApplied(applied map[int64]appliedRow, set Set) error {
	for v, row := range applied {
		if !row.success {
			return dumperr.New(dumperr.KindMigration, "validate migrations",
				"migration %d is partially applied; fix and remove its row from %s", v, BookkeepingTable)
		}
		m, ok := set.Get(v)
		if !ok {
			return dumperr.New(dumperr.KindMigration, "validate migrations",
				"migration %d was previously applied but is missing from the migrations directory", v)
		}
		if !bytes.Equal(m.Checksum, row.checksum) {
			return dumperr.New(dumperr.KindMigration, "validate migrations",
				"migration %d was previously applied but has been modified", v)
		}
	}
	return nil
}

func (r *NativeRunner) apply(ctx context.Context, conn *sql.DB, d Dialect, m Migration) error {
	op := fmt.Sprintf("apply %d", m.Version)
	if !d.TransactionalDDL {
		return r.applyUntracked(ctx, conn, d, m, op)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return dumperr.Wrap(dumperr.KindMigration, op, err)
	}
	defer tx.Rollback()

	start := time.Now()
	if _, err := tx.ExecContext(ctx, string(m.SQL)); err != nil {
		return dumperr.Wrap(dumperr.KindMigration, op, err)
	}
	if _, err := tx.ExecContext(ctx, d.bind(
		`INSERT INTO _schema_migrations (version, description, success, checksum, execution_time) VALUES (?, ?, ?, ?, ?)`),
		m.Version, m.Description, true, m.Checksum, time.Since(start).Nanoseconds()); err != nil {
		return dumperr.Wrap(dumperr.KindMigration, op, err)
	}
	return dumperr.Wrap(dumperr.KindMigration, op, tx.Commit())
}

// applyUntracked marks the migration as in progress, runs it and then marks
// it successful. A failure leaves the row with success = false.
func (r *NativeRunner) applyUntracked(ctx context.Context, conn *sql.DB, d Dialect, m Migration, op string) error {
	if _, err := conn.ExecContext(ctx, d.bind(
		`INSERT INTO _schema_migrations (version, description, success, checksum, execution_time) VALUES (?, ?, ?, ?, ?)`),
		m.Version, m.Description, false, m.Checksum, int64(-1)); err != nil {
		return dumperr.Wrap(dumperr.KindMigration, op, err)
	}
	start := time.Now()
	if _, err := conn.ExecContext(ctx, string(m.SQL)); err != nil {
		return dumperr.Wrap(dumperr.KindMigration, op, err)
	}
	_, err := conn.ExecContext(ctx, d.bind(
		`UPDATE _schema_migrations SET success = ?, execution_time = ? WHERE version = ?`),
		true, time.Since(start).Nanoseconds(), m.Version)
	return dumperr.Wrap(dumperr.KindMigration, op, err)
}

var _ Runner = (*NativeRunner)(nil)
