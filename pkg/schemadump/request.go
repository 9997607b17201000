// Package schemadump brings a database up to date with a migrations
// directory and writes its structure to a file.
//
// A dump starts from a Config, which Resolve validates and canonicalizes
// into an immutable Request before anything touches the database or the
// filesystem. A Dumper then runs the request:
//
//	req, err := schemadump.Config{URL: "sqlite:///tmp/app.db"}.Resolve()
//	if err != nil { ... }
//	res, err := (&schemadump.Dumper{}).Dump(ctx, req)
package schemadump

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/SedlarDavid/schemadump/internal/db"
	"github.com/SedlarDavid/schemadump/internal/dumperr"
	"github.com/SedlarDavid/schemadump/internal/migrate"
)

// Defaults used by Resolve for empty Config fields.
const (
	DefaultMigrationsDir = "migrations"
	DefaultDestination   = "structure.sql"
)

// Config holds the raw, possibly relative, inputs of a dump.
type Config struct {
	// Engine is one of sqlite, mysql, postgres (or an alias). Empty means
	// it is taken from the URL scheme.
	Engine string
	// Backend selects the migration runner: native (default) or golang-migrate.
	Backend string
	// URL is the connection string. Empty means the engine's default URL.
	URL string
	// MigrationsDir must exist. Empty means DefaultMigrationsDir.
	MigrationsDir string
	// Destination is overwritten on success. Empty means DefaultDestination.
	Destination string
}

// Request is a validated dump request. The zero value is not usable; build
// one with Config.Resolve.
type Request struct {
	engine        db.Engine
	backend       migrate.Backend
	url           string
	migrationsDir string
	destination   string
}

// Resolve validates c and turns it into a Request. It reads the filesystem
// to canonicalize the migrations directory but writes nothing.
func (c Config) Resolve() (Request, error) {
	var (
		engine db.Engine
		err    error
	)
	if c.Engine == "" {
		engine = db.EngineFromURL(c.URL)
	} else if engine, err = db.ParseEngine(c.Engine); err != nil {
		return Request{}, err
	}

	backend, err := migrate.ParseBackend(c.Backend)
	if err != nil {
		return Request{}, err
	}

	url := db.CanonicalURL(engine, c.URL)
	if url == "" {
		url = db.DefaultsFor(engine).URL
	}

	dir, err := resolveMigrationsDir(c.MigrationsDir)
	if err != nil {
		return Request{}, err
	}

	dest := c.Destination
	if dest == "" {
		dest = DefaultDestination
	}
	dest, err = filepath.Abs(dest)
	if err != nil {
		return Request{}, dumperr.Wrap(dumperr.KindIO, "resolve destination", err)
	}

	return Request{
		engine:        engine,
		backend:       backend,
		url:           url,
		migrationsDir: dir,
		destination:   dest,
	}, nil
}

func resolveMigrationsDir(dir string) (string, error) {
	if dir == "" {
		dir = DefaultMigrationsDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", dumperr.Wrap(dumperr.KindIO, "resolve migrations dir", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &dumperr.Error{Kind: dumperr.KindIO, Op: "resolve migrations dir", Msg: fmt.Sprintf("%s does not exist", abs), Err: err}
		}
		return "", dumperr.Wrap(dumperr.KindIO, "resolve migrations dir", err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return "", dumperr.Wrap(dumperr.KindIO, "resolve migrations dir", err)
	}
	if !info.IsDir() {
		return "", dumperr.New(dumperr.KindIO, "resolve migrations dir", "%s is not a directory", canonical)
	}
	return canonical, nil
}

func (r Request) Engine() db.Engine { return r.engine }
func (r Request) Backend() migrate.Backend { return r.backend }
func (r Request) MigrationsDir() string { return r.migrationsDir }
func (r Request) Destination() string { return r.destination }

// URL returns the connection string. It may carry credentials; never log it.
func (r Request) URL() string { return r.url }

// LogValue renders the request without its URL.
func (r Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("engine", string(r.engine)),
		slog.String("backend", string(r.backend)),
		slog.String("migrations", r.migrationsDir),
		slog.String("destination", r.destination),
	)
}
