package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// MySQLConfig translates parsed options into a go-sql-driver/mysql config.
// Multi-statement mode is enabled so a migration file can hold several statements.
func MySQLConfig(opts ConnectionOptions) (*mysql.Config, error) {
	cfg := mysql.NewConfig()
	cfg.User = opts.Username
	if opts.Password != nil {
		cfg.Passwd = *opts.Password
	}
	if opts.Socket != "" {
		cfg.Net = "unix"
		cfg.Addr = opts.Socket
	} else {
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(int(opts.Port)))
	}
	cfg.DBName = opts.Database
	cfg.MultiStatements = true
	cfg.ParseTime = true

	switch opts.SSLMode {
	case SSLDisabled:
		cfg.TLSConfig = "false"
	case SSLPreferred:
		cfg.TLSConfig = "preferred"
	default:
		tlsCfg, err := mysqlTLS(opts)
		if err != nil {
			return nil, err
		}
		cfg.TLS = tlsCfg
	}
	return cfg, nil
}

// mysqlTLS builds the client TLS config for the required and verifying modes.
func mysqlTLS(opts ConnectionOptions) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if opts.SSLClientCert != "" && opts.SSLClientKey != "" {
		cert, err := tls.LoadX509KeyPair(opts.SSLClientCert, opts.SSLClientKey)
		if err != nil {
			return nil, dumperr.Wrap(dumperr.KindIO, "load client certificate", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	var roots *x509.CertPool
	if opts.SSLCA != "" {
		pem, err := os.ReadFile(opts.SSLCA)
		if err != nil {
			return nil, dumperr.Wrap(dumperr.KindIO, "read ssl ca", err)
		}
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, dumperr.New(dumperr.KindURIConfiguration, "read ssl ca", "no certificates in %s", opts.SSLCA)
		}
		tlsCfg.RootCAs = roots
	}

	switch opts.SSLMode {
	case SSLRequired:
		tlsCfg.InsecureSkipVerify = true
	case SSLVerifyCA:
		// Chain is verified below; the host name is not.
		tlsCfg.InsecureSkipVerify = true
		tlsCfg.VerifyPeerCertificate = verifyChain(roots)
	case SSLVerifyIdentity:
		tlsCfg.ServerName = opts.Host
	}
	return tlsCfg, nil
}

func verifyChain(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("server sent no certificate")
		}
		certs := make([]*x509.Certificate, len(rawCerts))
		for i, raw := range rawCerts {
			c, err := x509.ParseCertificate(raw)
			if err != nil {
				return err
			}
			certs[i] = c
		}
		inter := x509.NewCertPool()
		for _, c := range certs[1:] {
			inter.AddCert(c)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: inter})
		return err
	}
}

// OpenMySQL connects to MySQL using go-sql-driver/mysql.
func OpenMySQL(ctx context.Context, opts ConnectionOptions) (*sql.DB, error) {
	cfg, err := MySQLConfig(opts)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, dumperr.Wrap(dumperr.KindDatabaseConnection, "mysql open", err)
	}
	db := sql.OpenDB(connector)
	if err := ping(ctx, db, "mysql ping"); err != nil {
		return nil, err
	}
	return db, nil
}
