package migrate

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

func TestDiscover_Layouts(t *testing.T) {
	fsys := fstest.MapFS{
		"20240102_add_email.up.sql":                 {Data: []byte("ALTER TABLE users ADD email TEXT;")},
		"20240102_add_email.down.sql":               {Data: []byte("-- ignored")},
		"20240101_create_users.sql":                 {Data: []byte("CREATE TABLE users (id INTEGER);")},
		"2024-01-03-000000_create_posts/up.sql":     {Data: []byte("CREATE TABLE posts (id INTEGER);")},
		"2024-01-03-000000_create_posts/down.sql":   {Data: []byte("DROP TABLE posts;")},
		"README.md":                                 {Data: []byte("not a migration")},
		".keep":                                     {Data: nil},
		"fixtures/seed.csv":                         {Data: []byte("1,2")},
	}

	set, err := Discover(fsys)
	require.NoError(t, err)
	require.Len(t, set, 3)

	assert.Equal(t, []int64{20240101, 20240102, 20240103000000}, set.Versions())
	assert.Equal(t, "create users", set[0].Description)
	assert.Equal(t, "add email", set[1].Description)
	assert.Equal(t, "2024-01-03-000000_create_posts/up.sql", set[2].Path)
	assert.Equal(t, "CREATE TABLE posts (id INTEGER);", string(set[2].SQL))
	assert.Equal(t, Checksum(set[0].SQL), set[0].Checksum)
}

func TestDiscover_Empty(t *testing.T) {
	set, err := Discover(fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestDiscover_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"unparsable name", fstest.MapFS{"create_users.sql": {Data: []byte("x")}}},
		{"duplicate version", fstest.MapFS{
			"1_a.sql":    {Data: []byte("x")},
			"1_b.up.sql": {Data: []byte("y")},
		}},
		{"directory without up.sql", fstest.MapFS{"3_thing/down.sql": {Data: []byte("x")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Discover(tt.fsys)
			require.Error(t, err)
			assert.True(t, errors.Is(err, dumperr.ErrMigration), "want migration kind, got %v", err)
		})
	}
}

func TestDiscoverDir_Missing(t *testing.T) {
	_, err := DiscoverDir(t.TempDir() + "/nope")
	assert.True(t, errors.Is(err, dumperr.ErrMigration), "got %v", err)
}

func TestSet_Get(t *testing.T) {
	set := Set{{Version: 1}, {Version: 5}, {Version: 9}}
	m, ok := set.Get(5)
	assert.True(t, ok)
	assert.Equal(t, int64(5), m.Version)
	_, ok = set.Get(4)
	assert.False(t, ok)
}
