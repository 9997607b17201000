// Package dumperr defines the error kinds surfaced by a structure dump.
//
// Every failure returned by the dump pipeline is (or wraps) an *Error whose
// Kind tells the caller which stage of the contract broke. Kinds are plain
// integers so new ones can be added without breaking existing matches.
package dumperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	// KindUnknown is never set on errors created by this module.
	KindUnknown Kind = iota
	// KindIO is a filesystem or process-launch failure.
	KindIO
	// KindCommandRun means an external utility ran but exited non-zero.
	KindCommandRun
	// KindDatabase is a query failure reported by the database driver.
	KindDatabase
	// KindDatabaseConnection means the database could not be reached.
	KindDatabaseConnection
	// KindMigration means a migration could not be read or applied.
	KindMigration
	// KindExtractDatabaseName is reserved for connection strings that
	// should name a database but do not.
	KindExtractDatabaseName
	// KindURIConfiguration is a connection string that parsed as a URL
	// but carried an invalid value, or did not parse at all.
	KindURIConfiguration
	// KindURIConfigurationDecoding is a percent-encoded segment that is not valid UTF-8.
	KindURIConfigurationDecoding
)

var kindNames = map[Kind]string{
	KindIO:                       "IO error",
	KindCommandRun:               "Command run error",
	KindDatabase:                 "DB error",
	KindDatabaseConnection:       "DB connection error",
	KindMigration:                "Migration error",
	KindExtractDatabaseName:      "Unable to extract database name from connection string",
	KindURIConfiguration:         "Uri configuration error",
	KindURIConfigurationDecoding: "Uri configuration encoding error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified dump failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "mysqldump" or "parse url".
	Op string
	// Msg carries kind-specific detail such as captured process output.
	Msg string
	Err error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s += " (" + e.Op + ")"
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrIO                       = &Error{Kind: KindIO}
	ErrCommandRun               = &Error{Kind: KindCommandRun}
	ErrDatabase                 = &Error{Kind: KindDatabase}
	ErrDatabaseConnection       = &Error{Kind: KindDatabaseConnection}
	ErrMigration                = &Error{Kind: KindMigration}
	ErrExtractDatabaseName      = &Error{Kind: KindExtractDatabaseName}
	ErrURIConfiguration         = &Error{Kind: KindURIConfiguration}
	ErrURIConfigurationDecoding = &Error{Kind: KindURIConfigurationDecoding}
)

// New returns an Error of the given kind with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. It returns nil when err is nil and leaves err
// untouched when it is already an *Error.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}
