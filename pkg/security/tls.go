// Package security wraps crypto/tls into the two roles the protocol needs:
// a server-side acceptor (optionally requiring client certificates) and a
// client-side connector (optionally presenting one). No pack repo ships a
// general-purpose mTLS library for plain cert/key/CA-file configuration —
// see DESIGN.md — so this stays on the standard library, the idiomatic Go
// choice here.
package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"

	"github.com/WiccyCheng/MyKVServer/pkg/kverrors"
)

// ALPNProtocol is the sole protocol the KV service negotiates.
const ALPNProtocol = "kv"

// ServerAcceptor turns a raw net.Conn into an authenticated, encrypted
// tls.Conn on the server side.
type ServerAcceptor struct {
	config *tls.Config
}

// NewServerAcceptor loads certChainPEM/keyPEM and, if clientCAPEM is
// non-empty, installs a client certificate verifier rooted at it and
// requires client certificates.
func NewServerAcceptor(certChainPEM, keyPEM, clientCAPEM []byte) (*ServerAcceptor, error) {
	cert, err := loadKeyPair(certChainPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPNProtocol},
		MinVersion:   tls.VersionTLS12,
	}

	if len(clientCAPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(clientCAPEM) {
			return nil, &kverrors.CertificateParseError{Subject: "client", Part: "ca"}
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return &ServerAcceptor{config: cfg}, nil
}

// Accept performs the TLS handshake over conn and returns the secured
// stream.
func (a *ServerAcceptor) Accept(ctx context.Context, conn net.Conn) (*tls.Conn, error) {
	tlsConn := tls.Server(conn, a.config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, &kverrors.TLSError{Cause: err}
	}
	return tlsConn, nil
}

// ClientConnector turns a raw net.Conn into an authenticated, encrypted
// tls.Conn on the client side.
type ClientConnector struct {
	config *tls.Config
}

// NewClientConnector builds a connector expecting serverName. If
// serverCAPEM is provided it is the sole trust root; otherwise the
// platform root store is used. If clientCertPEM/clientKeyPEM are
// provided, mutual authentication is configured.
func NewClientConnector(serverName string, clientCertPEM, clientKeyPEM, serverCAPEM []byte) (*ClientConnector, error) {
	cfg := &tls.Config{
		ServerName: serverName,
		NextProtos: []string{ALPNProtocol},
		MinVersion: tls.VersionTLS12,
	}

	if len(serverCAPEM) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(serverCAPEM) {
			return nil, &kverrors.CertificateParseError{Subject: "server", Part: "ca"}
		}
		cfg.RootCAs = pool
	}

	if len(clientCertPEM) > 0 {
		cert, err := loadKeyPair(clientCertPEM, clientKeyPEM)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if _, err := parseDNSName(serverName); err != nil {
		return nil, err
	}

	return &ClientConnector{config: cfg}, nil
}

// Connect performs the TLS handshake over conn and returns the secured
// stream.
func (c *ClientConnector) Connect(ctx context.Context, conn net.Conn) (*tls.Conn, error) {
	tlsConn := tls.Client(conn, c.config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, &kverrors.TLSError{Cause: err}
	}
	return tlsConn, nil
}

func parseDNSName(name string) (string, error) {
	if name == "" {
		return "", &kverrors.InvalidDNSName{Name: name}
	}
	return name, nil
}

// loadKeyPair parses a certificate chain and its private key, trying
// PKCS#8 first, then PKCS#1 RSA, then SEC1 EC, using only the first key in
// the PEM file.
func loadKeyPair(certPEM, keyPEM []byte) (tls.Certificate, error) {
	keyDER, err := firstPrivateKeyDER(keyPEM)
	if err != nil {
		return tls.Certificate{}, err
	}

	key, err := parsePrivateKey(keyDER)
	if err != nil {
		return tls.Certificate{}, err
	}

	return certificateFromParts(certPEM, key)
}

func firstPrivateKeyDER(keyPEM []byte) ([]byte, error) {
	rest := keyPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, &kverrors.CertificateParseError{Subject: "private", Part: "key"}
		}
		if block.Type == "PRIVATE KEY" || block.Type == "RSA PRIVATE KEY" || block.Type == "EC PRIVATE KEY" {
			return block.Bytes, nil
		}
	}
}

func parsePrivateKey(der []byte) (any, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, &kverrors.CertificateParseError{Subject: "private", Part: "key"}
}

func certificateFromParts(certPEM []byte, key any) (tls.Certificate, error) {
	var certs [][]byte
	rest := certPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			certs = append(certs, block.Bytes)
		}
	}
	if len(certs) == 0 {
		return tls.Certificate{}, &kverrors.CertificateParseError{Subject: "server", Part: "cert"}
	}
	return tls.Certificate{Certificate: certs, PrivateKey: key}, nil
}
