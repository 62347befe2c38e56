// Package pki builds mutual-TLS (mTLS) configurations for the transport
// core's client and server roles.
package pki

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// WireALPNProtocol is advertised and required during the handshake so a
// listener that also serves other TLS protocols on the same port rejects a
// peer that didn't ask for this one, instead of handing it a framed message
// stream it can't speak.
const WireALPNProtocol = "wiretransport/1"

// NewClientTLSConfig builds a TLS 1.3 configuration for a client connection
// with mutual authentication.
func NewClientTLSConfig(caCertPath, clientCertPath, clientKeyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(clientCertPath, clientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading client certificate: %w", err)
	}

	caPool, err := loadCACertPool(caCertPath)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		NextProtos:   []string{WireALPNProtocol},
	}, nil
}

// NewServerTLSConfig builds a TLS 1.3 configuration for a listener that
// requires and verifies a client certificate on every connection, and
// rejects any handshake that doesn't negotiate WireALPNProtocol.
func NewServerTLSConfig(caCertPath, serverCertPath, serverKeyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(serverCertPath, serverKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading server certificate: %w", err)
	}

	caPool, err := loadCACertPool(caCertPath)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		ClientCAs:    caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		NextProtos:   []string{WireALPNProtocol},
		VerifyConnection: func(cs tls.ConnectionState) error {
			if cs.NegotiatedProtocol != WireALPNProtocol {
				return fmt.Errorf("pki: peer did not negotiate %q (got %q)", WireALPNProtocol, cs.NegotiatedProtocol)
			}
			return nil
		},
	}, nil
}

func loadCACertPool(caCertPath string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate from %s", caCertPath)
	}

	return pool, nil
}
