package db

import (
	"errors"
	"reflect"
	"testing"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

func strPtr(s string) *string { return &s }

func TestParseURL_Scenario(t *testing.T) {
	got, err := ParseURL(MySQL, "mysql://user:p@ss@host:1234/dbname?ssl_mode=verify_ca")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	want := ConnectionOptions{
		Host:     "host",
		Port:     1234,
		Username: "user",
		Password: strPtr("p@ss"),
		Database: "dbname",
		SSLMode:  SSLVerifyCA,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseURL = %+v, want %+v", got, want)
	}
}

func TestParseURL_Defaults(t *testing.T) {
	tests := []struct {
		engine       Engine
		raw          string
		host         string
		port         uint16
		user         string
		hasPassword  bool
		wantDatabase string
	}{
		{MySQL, "mysql://", "localhost", 3306, "root", false, ""},
		{MySQL, "mysql:///", "localhost", 3306, "root", false, ""},
		{MySQL, "mysql://db.internal", "db.internal", 3306, "root", false, ""},
		{MySQL, "mysql://root:@127.0.0.1:3306/mysql", "127.0.0.1", 3306, "root", true, "mysql"},
		{Postgres, "postgresql://", "localhost", 5432, "postgres", false, ""},
		{Postgres, "postgres://app@pg:6543/shop", "pg", 6543, "app", false, "shop"},
	}
	for _, tt := range tests {
		got, err := ParseURL(tt.engine, tt.raw)
		if err != nil {
			t.Errorf("ParseURL(%q): %v", tt.raw, err)
			continue
		}
		if got.Host != tt.host || got.Port != tt.port || got.Username != tt.user {
			t.Errorf("ParseURL(%q) = %s:%d user %s, want %s:%d user %s",
				tt.raw, got.Host, got.Port, got.Username, tt.host, tt.port, tt.user)
		}
		if got.HasPassword() != tt.hasPassword {
			t.Errorf("ParseURL(%q).HasPassword() = %v", tt.raw, got.HasPassword())
		}
		if got.Database != tt.wantDatabase || got.HasDatabase() != (tt.wantDatabase != "") {
			t.Errorf("ParseURL(%q).Database = %q, want %q", tt.raw, got.Database, tt.wantDatabase)
		}
		if got.SSLMode != SSLPreferred {
			t.Errorf("ParseURL(%q).SSLMode = %v, want preferred", tt.raw, got.SSLMode)
		}
	}
}

func TestParseURL_EmptyPassword(t *testing.T) {
	got, err := ParseURL(MySQL, "mysql://root:@localhost/app")
	if err != nil {
		t.Fatal(err)
	}
	if got.Password == nil || *got.Password != "" {
		t.Errorf("Password = %v, want pointer to empty string", got.Password)
	}

	got, err = ParseURL(MySQL, "mysql://root@localhost/app")
	if err != nil {
		t.Fatal(err)
	}
	if got.Password != nil {
		t.Errorf("Password = %q, want nil", *got.Password)
	}
}

func TestParseURL_MySQLSynonyms(t *testing.T) {
	base := "mysql://u@h/db?"
	groups := [][]string{
		{"sslmode=required", "ssl-mode=required", "ssl_mode=required", "SSL_MODE=REQUIRED"},
		{"sslca=/ca.pem", "ssl-ca=/ca.pem", "ssl_ca=/ca.pem"},
		{"sslcert=/c.pem", "ssl-cert=/c.pem", "ssl_cert=/c.pem"},
		{"sslkey=/k.pem", "ssl-key=/k.pem", "ssl_key=/k.pem"},
	}
	for _, group := range groups {
		first, err := ParseURL(MySQL, base+group[0])
		if err != nil {
			t.Fatalf("ParseURL(%q): %v", group[0], err)
		}
		for _, q := range group[1:] {
			got, err := ParseURL(MySQL, base+q)
			if err != nil {
				t.Fatalf("ParseURL(%q): %v", q, err)
			}
			if !reflect.DeepEqual(got, first) {
				t.Errorf("%q parsed to %+v, want same as %q (%+v)", q, got, group[0], first)
			}
		}
	}
}

func TestParseURL_AllOptions(t *testing.T) {
	got, err := ParseURL(MySQL,
		"mysql://u:pw@h:3307/db?ssl-mode=verify_identity&ssl-ca=%2Fetc%2Fca.pem&ssl-cert=/c.pem&ssl-key=/k.pem&socket=/tmp/mysql.sock&unknown=1")
	if err != nil {
		t.Fatal(err)
	}
	want := ConnectionOptions{
		Host: "h", Port: 3307, Username: "u", Password: strPtr("pw"), Database: "db",
		SSLMode: SSLVerifyIdentity, SSLCA: "/etc/ca.pem", SSLClientCert: "/c.pem",
		SSLClientKey: "/k.pem", Socket: "/tmp/mysql.sock",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseURL = %+v, want %+v", got, want)
	}
}

func TestParseURL_PostgresModes(t *testing.T) {
	tests := []struct {
		token string
		want  SSLMode
	}{
		{"disable", SSLDisabled},
		{"allow", SSLPreferred},
		{"prefer", SSLPreferred},
		{"require", SSLRequired},
		{"verify-ca", SSLVerifyCA},
		{"Verify-Full", SSLVerifyIdentity},
	}
	for _, tt := range tests {
		got, err := ParseURL(Postgres, "postgresql://u@h/db?sslmode="+tt.token)
		if err != nil {
			t.Errorf("sslmode=%s: %v", tt.token, err)
			continue
		}
		if got.SSLMode != tt.want {
			t.Errorf("sslmode=%s: got %v, want %v", tt.token, got.SSLMode, tt.want)
		}
	}

	// MySQL tokens are not part of the libpq grammar.
	if _, err := ParseURL(Postgres, "postgresql://u@h/db?sslmode=verify_ca"); !errors.Is(err, dumperr.ErrURIConfiguration) {
		t.Errorf("expected URI configuration error, got %v", err)
	}
}

func TestParseURL_PostgresSocketAndFiles(t *testing.T) {
	got, err := ParseURL(Postgres, "postgresql://u@/db?host=/var/run/postgresql&sslrootcert=/ca&sslcert=/c&sslkey=/k")
	if err != nil {
		t.Fatal(err)
	}
	if got.Socket != "/var/run/postgresql" || got.SSLCA != "/ca" || got.SSLClientCert != "/c" || got.SSLClientKey != "/k" {
		t.Errorf("unexpected options %+v", got)
	}
	if got.Host != "localhost" {
		t.Errorf("Host = %q, want default", got.Host)
	}
}

func TestParseURL_FirstOccurrenceWins(t *testing.T) {
	got, err := ParseURL(MySQL, "mysql://u@h/db?ssl-mode=disabled&sslmode=required&ssl_mode=bogus")
	if err != nil {
		t.Fatalf("later duplicates must not be evaluated: %v", err)
	}
	if got.SSLMode != SSLDisabled {
		t.Errorf("SSLMode = %v, want disabled", got.SSLMode)
	}
}

func TestParseURL_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not a url", "://nope", dumperr.ErrURIConfiguration},
		{"no scheme", "localhost:3306", dumperr.ErrURIConfiguration},
		{"port overflow", "mysql://h:70000/db", dumperr.ErrURIConfiguration},
		{"port not numeric", "mysql://h:abc/db", dumperr.ErrURIConfiguration},
		{"unknown ssl mode", "mysql://h/db?ssl_mode=sometimes", dumperr.ErrURIConfiguration},
		{"invalid utf8 user", "mysql://%ff@h/db", dumperr.ErrURIConfigurationDecoding},
		{"invalid utf8 password", "mysql://u:%ff%fe@h/db", dumperr.ErrURIConfigurationDecoding},
		{"invalid utf8 database", "mysql://u@h/%ff", dumperr.ErrURIConfigurationDecoding},
		{"invalid utf8 query value", "mysql://u@h/db?ssl-ca=%ff", dumperr.ErrURIConfigurationDecoding},
		{"bad escape in query", "mysql://u@h/db?ssl-ca=%zz", dumperr.ErrURIConfigurationDecoding},
		{"bad escape in user", "mysql://%zz@h/db", dumperr.ErrURIConfigurationDecoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(MySQL, tt.raw)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseURL(%q) error = %v, want kind %v", tt.raw, err, dumperr.KindOf(tt.want))
			}
		})
	}
}

func TestParseURL_ErrorCarriesToken(t *testing.T) {
	_, err := ParseURL(MySQL, "mysql://h/db?ssl_mode=sometimes")
	var de *dumperr.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *dumperr.Error, got %T", err)
	}
	if want := "unknown value \"sometimes\" for `ssl_mode`"; de.Msg != want {
		t.Errorf("Msg = %q, want %q", de.Msg, want)
	}
}

func TestParseURL_Pure(t *testing.T) {
	raw := "mysql://u:pw@h:1/db?ssl_mode=required&ssl_ca=/x"
	a, errA := ParseURL(MySQL, raw)
	b, errB := ParseURL(MySQL, raw)
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("two parses differ: %+v vs %+v", a, b)
	}
	if a.Password == b.Password {
		t.Error("parses must not share password storage")
	}
}

func TestParseURL_SQLiteHasNoGrammar(t *testing.T) {
	if _, err := ParseURL(SQLite, "sqlite:///tmp/x.db"); !errors.Is(err, dumperr.ErrURIConfiguration) {
		t.Errorf("expected URI configuration error, got %v", err)
	}
}

func TestSQLiteTarget(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ":memory:"},
		{":memory:", ":memory:"},
		{"sqlite::memory:", ":memory:"},
		{"sqlite:", ":memory:"},
		{"sqlite:///tmp/app.db", "/tmp/app.db"},
		{"sqlite://app.db", "app.db"},
		{"sqlite:app.db", "app.db"},
		{"file:app.db?mode=ro", "file:app.db?mode=ro"},
		{"/var/lib/app.db", "/var/lib/app.db"},
	}
	for _, tt := range tests {
		if got := SQLiteTarget(tt.in); got != tt.want {
			t.Errorf("SQLiteTarget(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
