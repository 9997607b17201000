package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

func TestPostgresDumpArgs(t *testing.T) {
	url := "postgresql://app:pw@db:5432/shop?sslmode=require"
	got := PostgresDumpArgs(url, "/tmp/structure.sql")
	want := []string{"--schema-only", "--no-owner", "--no-privileges", "--file", "/tmp/structure.sql", url}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("PostgresDumpArgs = %v, want %v", got, want)
	}
}

func TestParsePostgresConfig(t *testing.T) {
	cfg, err := ParsePostgresConfig("postgresql://app@db:6543/shop?sslmode=disable")
	if err != nil {
		t.Fatalf("ParsePostgresConfig: %v", err)
	}
	if cfg.Host != "db" || cfg.Port != 6543 || cfg.Database != "shop" || cfg.User != "app" {
		t.Errorf("unexpected config host=%s port=%d db=%s user=%s", cfg.Host, cfg.Port, cfg.Database, cfg.User)
	}

	_, err = ParsePostgresConfig("postgresql://app:secret@db/shop?sslmode=sometimes")
	if !errors.Is(err, dumperr.ErrURIConfiguration) {
		t.Fatalf("error = %v, want URI configuration", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("error leaks the password: %v", err)
	}
}

func TestDumpPostgres_FailureKeepsDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "structure.sql")
	if err := os.WriteFile(dest, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := &recordingRunner{err: dumperr.New(dumperr.KindCommandRun, "pg_dump", "output: \nstderr: refused")}
	if err := DumpPostgres(context.Background(), r, "postgresql://localhost/x", dest); !errors.Is(err, dumperr.ErrCommandRun) {
		t.Fatalf("error = %v", err)
	}
	if b, _ := os.ReadFile(dest); string(b) != "old" {
		t.Errorf("destination modified: %q", b)
	}
	if r.args[len(r.args)-1] != "postgresql://localhost/x" {
		t.Errorf("url must be the last argument: %v", r.args)
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("scratch file left behind: %v", entries)
	}
}

func TestWriteStructure_MissingParent(t *testing.T) {
	err := WriteStructure(filepath.Join(t.TempDir(), "nope", "structure.sql"), []byte("x"))
	if !errors.Is(err, dumperr.ErrIO) {
		t.Errorf("error = %v, want IO kind", err)
	}
}
