package db

// SSLMode is the desired security state of a client/server connection.
// The zero value is SSLPreferred.
type SSLMode int

const (
	// SSLPreferred tries an encrypted connection and falls back to plaintext.
	SSLPreferred SSLMode = iota
	// SSLDisabled establishes an unencrypted connection.
	SSLDisabled
	// SSLRequired fails unless the connection is encrypted.
	SSLRequired
	// SSLVerifyCA is SSLRequired plus verification of the server certificate
	// against the configured CA.
	SSLVerifyCA
	// SSLVerifyIdentity is SSLVerifyCA plus host name verification.
	SSLVerifyIdentity
)

// String renders the mode the way mysqldump's --ssl-mode expects it.
func (m SSLMode) String() string {
	switch m {
	case SSLDisabled:
		return "disabled"
	case SSLRequired:
		return "required"
	case SSLVerifyCA:
		return "verify_ca"
	case SSLVerifyIdentity:
		return "verify_identity"
	}
	return "preferred"
}

// ConnectionOptions is the validated form of a client/server connection string.
// Empty strings mean "absent" for the optional fields.
type ConnectionOptions struct {
	Host string
	Port uint16
	// Socket is a local socket path (MySQL) or socket directory (PostgreSQL).
	// It is only recorded; the consuming driver decides whether to use it.
	Socket   string
	Username string
	// Password is nil when the URL had no password segment, and points to
	// an empty string for "user:@host".
	Password *string
	// Database is empty when the URL selects no database.
	Database      string
	SSLMode       SSLMode
	SSLCA         string
	SSLClientCert string
	SSLClientKey  string
}

func (o ConnectionOptions) HasDatabase() bool { return o.Database != "" }

func (o ConnectionOptions) HasPassword() bool { return o.Password != nil }
