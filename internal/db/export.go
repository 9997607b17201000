package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// validateExportPath normalizes the output file path and checks that its
// parent directory exists.
func validateExportPath(path string) (string, error) {
	if path == "" {
		return "", dumperr.New(dumperr.KindIO, "export", "path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", dumperr.Wrap(dumperr.KindIO, "export", err)
	}
	dir := filepath.Dir(abs)
	info, err := os.Stat(dir)
	if err != nil {
		return "", dumperr.Wrap(dumperr.KindIO, "export", fmt.Errorf("parent directory: %w", err))
	}
	if !info.IsDir() {
		return "", dumperr.New(dumperr.KindIO, "export", "parent path is not a directory: %s", dir)
	}
	return abs, nil
}

// exportVia lets produce write to a scratch file next to dest and renames
// it over dest only when produce succeeds. On failure dest is untouched.
func exportVia(dest string, produce func(tmp string) error) error {
	abs, err := validateExportPath(dest)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(abs), "."+filepath.Base(abs)+".*.tmp")
	if err != nil {
		return dumperr.Wrap(dumperr.KindIO, "export", err)
	}
	tmp := f.Name()
	f.Close()

	if err := produce(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return dumperr.Wrap(dumperr.KindIO, "export", err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		os.Remove(tmp)
		return dumperr.Wrap(dumperr.KindIO, "export", err)
	}
	return nil
}

// WriteStructure atomically replaces dest with data.
func WriteStructure(dest string, data []byte) error {
	return exportVia(dest, func(tmp string) error {
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return dumperr.Wrap(dumperr.KindIO, "export", err)
		}
		return nil
	})
}
