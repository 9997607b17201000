// Package migrate brings a database up to the state described by a
// directory of SQL migration files before its structure is dumped.
package migrate

import (
	"crypto/sha256"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// Migration is one forward migration.
type Migration struct {
	Version     int64
	Description string
	// Path is relative to the migrations directory.
	Path     string
	SQL      []byte
	Checksum []byte
}

// Set is a list of migrations in ascending version order.
type Set []Migration

// Versions returns the versions in s.
func (s Set) Versions() []int64 {
	out := make([]int64, len(s))
	for i, m := range s {
		out[i] = m.Version
	}
	return out
}

// Get returns the migration with version v.
func (s Set) Get(v int64) (Migration, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].Version >= v })
	if i < len(s) && s[i].Version == v {
		return s[i], true
	}
	return Migration{}, false
}

// Checksum returns the SHA-256 of a migration's contents.
func Checksum(sql []byte) []byte {
	sum := sha256.Sum256(sql)
	return sum[:]
}

// migrationName matches "<version>_<description>", where the version may be
// written with dashes (2024-01-31-120000).
var migrationName = regexp.MustCompile(`^([0-9][0-9-]*)_(.+)$`)

// DiscoverDir reads the migrations in dir. See Discover.
func DiscoverDir(dir string) (Set, error) {
	return Discover(os.DirFS(dir))
}

// Discover reads the migrations at the root of fsys. It accepts
//
//	<version>_<description>.sql
//	<version>_<description>.up.sql
//	<version>_<description>/up.sql
//
// and ignores .down.sql files, down.sql files, hidden entries and anything
// that is not SQL. A .sql file whose name cannot be parsed, or two
// migrations with the same version, are errors.
func Discover(fsys fs.FS) (Set, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, dumperr.Wrap(dumperr.KindMigration, "read migrations", err)
	}

	var set Set
	seen := make(map[int64]string)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		var stem, file string
		switch {
		case e.IsDir():
			if !migrationName.MatchString(name) {
				continue
			}
			stem, file = name, path.Join(name, "up.sql")
		case strings.HasSuffix(name, ".down.sql"):
			continue
		case strings.HasSuffix(name, ".up.sql"):
			stem, file = strings.TrimSuffix(name, ".up.sql"), name
		case strings.HasSuffix(name, ".sql"):
			stem, file = strings.TrimSuffix(name, ".sql"), name
		default:
			continue
		}

		version, desc, err := parseName(stem)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, dumperr.New(dumperr.KindMigration, "read migrations",
				"duplicate migration version %d: %s and %s", version, prev, file)
		}
		seen[version] = file

		sql, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, dumperr.Wrap(dumperr.KindMigration, "read migrations", err)
		}
		set = append(set, Migration{
			Version:     version,
			Description: desc,
			Path:        file,
			SQL:         sql,
			Checksum:    Checksum(sql),
		})
	}

	sort.Slice(set, func(i, j int) bool { return set[i].Version < set[j].Version })
	return set, nil
}

func parseName(stem string) (int64, string, error) {
	m := migrationName.FindStringSubmatch(stem)
	if m == nil {
		return 0, "", dumperr.New(dumperr.KindMigration, "read migrations",
			"invalid migration name %q: expected <version>_<description>", stem)
	}
	version, err := strconv.ParseInt(strings.ReplaceAll(m[1], "-", ""), 10, 64)
	if err != nil {
		return 0, "", dumperr.New(dumperr.KindMigration, "read migrations",
			"invalid migration version in %q", stem)
	}
	return version, strings.ReplaceAll(m[2], "_", " "), nil
}
