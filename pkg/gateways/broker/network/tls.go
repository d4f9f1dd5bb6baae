package network

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Credentials points at the externally provisioned certificate material.
type Credentials struct {
	CAFile     string
	CertFile   string
	KeyFile    string
	ServerName string
}

// LoadTLSConfig builds a mutual-TLS client config. Every failure wraps
// ErrCredentials.
func LoadTLSConfig(credentials Credentials) (*tls.Config, error) {
	caPEM, err := os.ReadFile(filepath.Clean(credentials.CAFile))
	if err != nil {
		return nil, errors.Wrapf(ErrCredentials, "read CA certificate: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.Wrap(ErrCredentials, "CA certificate contains no PEM certificates")
	}

	certPEM, err := os.ReadFile(filepath.Clean(credentials.CertFile))
	if err != nil {
		return nil, errors.Wrapf(ErrCredentials, "read client certificate: %v", err)
	}
	keyPEM, err := os.ReadFile(filepath.Clean(credentials.KeyFile))
	if err != nil {
		return nil, errors.Wrapf(ErrCredentials, "read private key: %v", err)
	}
	certificate, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.Wrapf(ErrCredentials, "load key pair: %v", err)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		RootCAs:      pool,
		Certificates: []tls.Certificate{certificate},
		ServerName:   credentials.ServerName,
	}, nil
}

// tlsLink owns the raw TCP connection and upgrades it to TLS.
type tlsLink struct {
	mu          sync.Mutex
	address     string
	credentials Credentials
	config      *tls.Config
	dialer      net.Dialer
	raw         net.Conn
}

func newTLSLink(address string, credentials Credentials) *tlsLink {
	return &tlsLink{address: address, credentials: credentials}
}

func (l *tlsLink) attach(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
	conn, err := l.dialer.DialContext(ctx, "tcp", l.address)
	if err != nil {
		return errors.Wrapf(ErrLinkDown, "dial %s: %v", l.address, err)
	}
	l.raw = conn
	return nil
}

// handshake upgrades the attached link. The raw connection is consumed
// whatever the outcome, so a failed handshake needs a new attach.
func (l *tlsLink) handshake(ctx context.Context) (*tls.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.config == nil {
		config, err := LoadTLSConfig(l.credentials)
		if err != nil {
			return nil, err
		}
		if config.ServerName == "" {
			host, _, splitErr := net.SplitHostPort(l.address)
			if splitErr == nil {
				config.ServerName = host
			}
		}
		l.config = config
	}
	if l.raw == nil {
		return nil, errors.Wrap(ErrLinkDown, "link not attached")
	}

	conn := tls.Client(l.raw, l.config)
	l.raw = nil
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, classifyHandshakeError(err)
	}
	return conn, nil
}

func (l *tlsLink) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
}

func (l *tlsLink) closeLocked() {
	if l.raw != nil {
		_ = l.raw.Close()
		l.raw = nil
	}
}

func classifyHandshakeError(err error) error {
	var verification *tls.CertificateVerificationError
	var alert tls.AlertError
	switch {
	case errors.As(err, &verification), errors.As(err, &alert):
		return errors.Wrapf(ErrAuthRejected, "tls handshake: %v", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errors.Wrapf(ErrLinkDown, "tls handshake timed out: %v", err)
	default:
		return errors.Wrapf(ErrLinkDown, "tls handshake: %v", err)
	}
}
