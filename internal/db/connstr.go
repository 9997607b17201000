package db

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

const opParseURL = "parse url"

// option identifies one logical connection option; several query keys may
// map to the same option.
type option int

const (
	optSSLMode option = iota
	optSSLCA
	optSSLCert
	optSSLKey
	optSocket
)

// dialect is an engine's connection-string grammar.
type dialect struct {
	keys  map[string]option
	modes map[string]SSLMode
	// modeKey names the option in error messages.
	modeKey string
}

var dialects = map[Engine]dialect{
	MySQL: {
		keys: map[string]option{
			"sslmode": optSSLMode, "ssl-mode": optSSLMode, "ssl_mode": optSSLMode,
			"sslca": optSSLCA, "ssl-ca": optSSLCA, "ssl_ca": optSSLCA,
			"sslcert": optSSLCert, "ssl-cert": optSSLCert, "ssl_cert": optSSLCert,
			"sslkey": optSSLKey, "ssl-key": optSSLKey, "ssl_key": optSSLKey,
			"socket": optSocket,
		},
		modes: map[string]SSLMode{
			"disabled":        SSLDisabled,
			"preferred":       SSLPreferred,
			"required":        SSLRequired,
			"verify_ca":       SSLVerifyCA,
			"verify_identity": SSLVerifyIdentity,
		},
		modeKey: "ssl_mode",
	},
	// libpq keyword names.
	Postgres: {
		keys: map[string]option{
			"sslmode":     optSSLMode,
			"sslrootcert": optSSLCA,
			"sslcert":     optSSLCert,
			"sslkey":      optSSLKey,
			"host":        optSocket,
		},
		modes: map[string]SSLMode{
			"disable":     SSLDisabled,
			"allow":       SSLPreferred,
			"prefer":      SSLPreferred,
			"require":     SSLRequired,
			"verify-ca":   SSLVerifyCA,
			"verify-full": SSLVerifyIdentity,
		},
		modeKey: "sslmode",
	},
}

// ParseURL parses a MySQL or PostgreSQL connection string into options.
// It is pure: the same input always yields the same result.
//
// Components the URL leaves out take the engine defaults. Query keys are
// matched case-insensitively against the engine's synonym table and unknown
// keys are ignored. When a logical option appears more than once the first
// occurrence wins.
func ParseURL(engine Engine, raw string) (ConnectionOptions, error) {
	d, ok := dialects[engine]
	if !ok {
		return ConnectionOptions{}, dumperr.New(dumperr.KindURIConfiguration, opParseURL,
			"engine %q has no connection-string grammar", string(engine))
	}
	def := DefaultsFor(engine)

	u, err := url.Parse(raw)
	if err != nil {
		var esc url.EscapeError
		if errors.As(err, &esc) {
			return ConnectionOptions{}, &dumperr.Error{Kind: dumperr.KindURIConfigurationDecoding, Op: opParseURL, Err: esc}
		}
		return ConnectionOptions{}, dumperr.New(dumperr.KindURIConfiguration, opParseURL, "invalid url")
	}
	if u.Scheme == "" || u.Opaque != "" {
		return ConnectionOptions{}, dumperr.New(dumperr.KindURIConfiguration, opParseURL, "not an absolute url")
	}

	opts := ConnectionOptions{
		Host:     def.Host,
		Port:     def.Port,
		Username: def.Username,
	}

	if h := u.Hostname(); h != "" {
		opts.Host = h
	}
	if p := u.Port(); p != "" {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return ConnectionOptions{}, dumperr.New(dumperr.KindURIConfiguration, opParseURL, "invalid port %q", p)
		}
		opts.Port = uint16(port)
	}

	if u.User != nil {
		if name := u.User.Username(); name != "" {
			if !utf8.ValidString(name) {
				return ConnectionOptions{}, decodingError("username")
			}
			opts.Username = name
		}
		if pw, ok := u.User.Password(); ok {
			if !utf8.ValidString(pw) {
				return ConnectionOptions{}, decodingError("password")
			}
			opts.Password = &pw
		}
	}

	if path := strings.TrimLeft(u.Path, "/"); path != "" {
		if !utf8.ValidString(path) {
			return ConnectionOptions{}, decodingError("database")
		}
		opts.Database = path
	}

	if err := d.applyQuery(&opts, u.RawQuery); err != nil {
		return ConnectionOptions{}, err
	}
	return opts, nil
}

// applyQuery walks the raw query in the order it was written.
func (d dialect) applyQuery(opts *ConnectionOptions, rawQuery string) error {
	seen := make(map[option]bool)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := unescapeQuery(rawKey, "query key")
		if err != nil {
			return err
		}
		opt, ok := d.keys[strings.ToLower(key)]
		if !ok || seen[opt] {
			continue
		}
		value, err := unescapeQuery(rawValue, key)
		if err != nil {
			return err
		}
		seen[opt] = true

		switch opt {
		case optSSLMode:
			mode, ok := d.modes[strings.ToLower(value)]
			if !ok {
				return dumperr.New(dumperr.KindURIConfiguration, opParseURL,
					"unknown value %q for `%s`", value, d.modeKey)
			}
			opts.SSLMode = mode
		case optSSLCA:
			opts.SSLCA = value
		case optSSLCert:
			opts.SSLClientCert = value
		case optSSLKey:
			opts.SSLClientKey = value
		case optSocket:
			opts.Socket = value
		}
	}
	return nil
}

func unescapeQuery(s, what string) (string, error) {
	v, err := url.QueryUnescape(s)
	if err != nil {
		return "", &dumperr.Error{Kind: dumperr.KindURIConfigurationDecoding, Op: opParseURL, Msg: what, Err: err}
	}
	if !utf8.ValidString(v) {
		return "", decodingError(what)
	}
	return v, nil
}

func decodingError(what string) error {
	return dumperr.New(dumperr.KindURIConfigurationDecoding, opParseURL, "%s is not valid UTF-8", what)
}

// MemoryTarget is the SQLite in-memory database name.
const MemoryTarget = ":memory:"

// SQLiteTarget normalizes a SQLite connection string into something the
// sqlite driver accepts: a file path, a file: URI, or MemoryTarget.
func SQLiteTarget(raw string) string {
	s := strings.TrimSpace(raw)
	switch s {
	case "", MemoryTarget, "sqlite::memory:", "sqlite://:memory:":
		return MemoryTarget
	}
	if strings.HasPrefix(s, "file:") {
		return s
	}
	if rest, ok := strings.CutPrefix(s, "sqlite://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(s, "sqlite3://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(s, "sqlite:"); ok {
		if rest == "" {
			return MemoryTarget
		}
		return rest
	}
	return s
}
