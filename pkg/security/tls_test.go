package security_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/WiccyCheng/MyKVServer/pkg/security"
)

// generateCert builds a self-signed ECDSA cert/key pair for localhost,
// PEM-encoded the way the server and client both expect to load them.
func generateCert(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:         true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestServerAcceptorClientConnectorHandshake(t *testing.T) {
	certPEM, keyPEM := generateCert(t)

	acceptor, err := security.NewServerAcceptor(certPEM, keyPEM, nil)
	require.NoError(t, err)

	connector, err := security.NewClientConnector("localhost", nil, nil, certPEM)
	require.NoError(t, err)

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	type result struct {
		ok  bool
		err error
	}
	serverDone := make(chan result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := acceptor.Accept(ctx, serverConn)
		serverDone <- result{err == nil, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = connector.Connect(ctx, clientConn)
	require.NoError(t, err)

	r := <-serverDone
	require.NoError(t, r.err)
	require.True(t, r.ok)
}

func TestNewClientConnectorRejectsEmptyServerName(t *testing.T) {
	_, err := security.NewClientConnector("", nil, nil, nil)
	require.Error(t, err)
}

func TestNewServerAcceptorRejectsMalformedClientCA(t *testing.T) {
	certPEM, keyPEM := generateCert(t)
	_, err := security.NewServerAcceptor(certPEM, keyPEM, []byte("not a pem"))
	require.Error(t, err)
}

func TestNewServerAcceptorRejectsMissingCertBlock(t *testing.T) {
	_, keyPEM := generateCert(t)
	_, err := security.NewServerAcceptor([]byte("garbage"), keyPEM, nil)
	require.Error(t, err)
}
