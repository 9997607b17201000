package schemadump

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/SedlarDavid/schemadump/internal/db"
	"github.com/SedlarDavid/schemadump/internal/dumperr"
	"github.com/SedlarDavid/schemadump/internal/metrics"
	"github.com/SedlarDavid/schemadump/internal/migrate"
	"github.com/SedlarDavid/schemadump/internal/process"
)

// Stage is a state of a dump run. A run moves through the stages in order
// and stops at the first one it cannot reach.
type Stage int

const (
	StageInit Stage = iota
	StageOptionsResolved
	StageMigrationsApplied
	StageStructureWritten
)

var stageNames = [...]string{
	StageInit:              "init",
	StageOptionsResolved:   "options_resolved",
	StageMigrationsApplied: "migrations_applied",
	StageStructureWritten:  "structure_written",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// StageError reports the stage a run failed to reach. Err is the kind error
// from internal/dumperr, so errors.Is(err, dumperr.ErrMigration) and
// friends work on it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("schemadump: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result describes a successful run.
type Result struct {
	RunID       string
	Engine      db.Engine
	Destination string
	// Bytes is the size of the written structure file.
	Bytes int64
	// Applied lists the migrations this run applied, in order.
	Applied  []migrate.Migration
	Duration time.Duration
}

// Dumper runs dump requests. The zero value logs to slog.Default, launches
// dump utilities with os/exec and records no metrics. A Dumper keeps no
// state between runs and may be shared.
type Dumper struct {
	Logger  *slog.Logger
	Runner  process.Runner
	Metrics *metrics.Metrics
}

func (d *Dumper) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Dumper) runner(logger *slog.Logger) process.Runner {
	if d.Runner == nil {
		return process.NewExecRunner(logger)
	}
	return d.Runner
}

// Dump applies the pending migrations of req and writes its structure to
// req.Destination(). Every failure is a *StageError; the destination is
// left untouched unless the run succeeds. Migrations applied before a
// failure stay applied.
func (d *Dumper) Dump(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	engine := req.Engine()
	logger := d.logger().With("run_id", runID)
	start := time.Now()

	fail := func(stage Stage, err error) (*Result, error) {
		elapsed := time.Since(start)
		d.Metrics.RecordDumpFailure(string(engine), stage.String(), elapsed)
		logger.Error("dump failed",
			"stage", stage.String(),
			"kind", dumperr.KindOf(err).String(),
			"duration", elapsed,
			"err", err)
		return nil, &StageError{Stage: stage, Err: err}
	}

	logger.Info("dump started", "request", req)

	// Options: client/server engines get their URL parsed up front so a bad
	// connection string never reaches a driver.
	var opts db.ConnectionOptions
	if db.DefaultsFor(engine).Strategy == db.ExternalDump {
		var err error
		if opts, err = db.ParseURL(engine, req.URL()); err != nil {
			return fail(StageOptionsResolved, err)
		}
	}
	// MySQL has no default schema to hold the bookkeeping table.
	if engine == db.MySQL && !opts.HasDatabase() {
		return fail(StageOptionsResolved, dumperr.New(dumperr.KindURIConfiguration, "resolve options",
			"mysql url must name a database"))
	}

	// Migrations.
	conn, err := d.open(ctx, engine, req.URL(), opts)
	if err != nil {
		return fail(StageMigrationsApplied, err)
	}
	defer conn.Close()

	gate, err := migrate.NewGate(engine, req.Backend(), logger)
	if err != nil {
		return fail(StageMigrationsApplied, err)
	}
	applied, err := gate.EnsureAndApply(ctx, conn, req.MigrationsDir())
	d.Metrics.RecordMigrationsApplied(string(engine), len(applied))
	if err != nil {
		return fail(StageMigrationsApplied, err)
	}

	// Structure.
	if err := d.extract(ctx, logger, req, conn, opts); err != nil {
		return fail(StageStructureWritten, err)
	}
	info, err := os.Stat(req.Destination())
	if err != nil {
		return fail(StageStructureWritten, dumperr.Wrap(dumperr.KindIO, "stat destination", err))
	}

	res := &Result{
		RunID:       runID,
		Engine:      engine,
		Destination: req.Destination(),
		Bytes:       info.Size(),
		Applied:     applied,
		Duration:    time.Since(start),
	}
	d.Metrics.RecordDumpSuccess(string(engine), res.Duration)
	logger.Info("structure written",
		"destination", res.Destination,
		"bytes", res.Bytes,
		"migrations_applied", len(applied),
		"duration", res.Duration)
	return res, nil
}

func (d *Dumper) open(ctx context.Context, engine db.Engine, url string, opts db.ConnectionOptions) (*sql.DB, error) {
	if engine == db.MySQL {
		return db.OpenMySQL(ctx, opts)
	}
	return db.Open(ctx, engine, url)
}

func (d *Dumper) extract(ctx context.Context, logger *slog.Logger, req Request, conn *sql.DB, opts db.ConnectionOptions) error {
	switch req.Engine() {
	case db.SQLite:
		return db.DumpSQLite(ctx, conn, req.Destination())
	case db.MySQL:
		return db.DumpMySQL(ctx, d.runner(logger), opts, req.Destination())
	case db.Postgres:
		return db.DumpPostgres(ctx, d.runner(logger), req.URL(), req.Destination())
	}
	return dumperr.New(dumperr.KindURIConfiguration, "extract", "unsupported engine %q", string(req.Engine()))
}

// Generate resolves a request from url, migrationsDir and destination and
// dumps it with a zero Dumper.
func Generate(ctx context.Context, url, migrationsDir, destination string) (*Result, error) {
	req, err := Config{URL: url, MigrationsDir: migrationsDir, Destination: destination}.Resolve()
	if err != nil {
		return nil, &StageError{Stage: StageInit, Err: err}
	}
	var d Dumper
	return d.Dump(ctx, req)
}
