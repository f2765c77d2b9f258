package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

var (
	ErrAddressRequired     = errors.New("transport: address required")
	ErrTLSTrustUnspecified = errors.New("transport: tls ca file required when chain verification is enabled")
	ErrTLSCABundle         = errors.New("transport: parse tls ca bundle")
)

// Validate checks that the TLS settings describe a usable client.
func (c Config) Validate() error {
	if c.TLS.VerifyChain && strings.TrimSpace(c.TLS.CAFile) == "" {
		return ErrTLSTrustUnspecified
	}
	return nil
}

func (c Config) clientTLSConfig(addr string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !c.TLS.VerifyChain,
	}

	serverName := strings.TrimSpace(c.TLS.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(c.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("%w: %s", ErrTLSCABundle, caPath)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
