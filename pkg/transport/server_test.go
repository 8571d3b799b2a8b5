package transport_test

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/WiccyCheng/MyKVServer/pkg/broadcaster"
	"github.com/WiccyCheng/MyKVServer/pkg/frame"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
	"github.com/WiccyCheng/MyKVServer/pkg/security"
	"github.com/WiccyCheng/MyKVServer/pkg/service"
	"github.com/WiccyCheng/MyKVServer/pkg/storage"
	"github.com/WiccyCheng/MyKVServer/pkg/stream"
	"github.com/WiccyCheng/MyKVServer/pkg/transport"
)

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

// reserveLoopbackAddr grabs an ephemeral port from the OS and immediately
// releases it, so the transport.Server (which only takes an address, not a
// net.Listener) and the test's client dialer agree on where to connect.
func reserveLoopbackAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func dialClient(t *testing.T, addr string, certPEM []byte) *stream.Stream[kvpb.CommandResponse, kvpb.CommandRequest] {
	t.Helper()
	connector, err := security.NewClientConnector("localhost", nil, nil, certPEM)
	require.NoError(t, err)

	var conn net.Conn
	var dialErr error
	for i := 0; i < 50; i++ {
		conn, dialErr = net.Dial("tcp", addr)
		if dialErr == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, dialErr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tlsConn, err := connector.Connect(ctx, conn)
	require.NoError(t, err)

	return stream.New[kvpb.CommandResponse, kvpb.CommandRequest](tlsConn, &frame.Codec{}, kvpb.UnmarshalCommandResponse)
}

func TestServerRoundTripsHsetAndHget(t *testing.T) {
	addr := reserveLoopbackAddr(t)
	certPEM, keyPEM := generateCert(t)
	acceptor, err := security.NewServerAcceptor(certPEM, keyPEM, nil)
	require.NoError(t, err)

	svc := service.New(storage.NewMemTable(4), broadcaster.New(nil), service.Hooks{}, zap.NewNop())
	srv := transport.NewServer(addr, acceptor, svc, &frame.Codec{}, zap.NewNop(), nil)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	st := dialClient(t, addr, certPEM)
	defer st.Close()

	require.NoError(t, st.Send(kvpb.NewHset("users", "alice", kvpb.IntValue(1))))
	require.NoError(t, st.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := st.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, kvpb.StatusOK, resp.Status)

	require.NoError(t, st.Send(kvpb.NewHget("users", "alice")))
	require.NoError(t, st.Flush())

	resp, err = st.Recv(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Values, 1)
	assert.Equal(t, kvpb.IntValue(1), resp.Values[0])
}

func TestServerSubscribeAndPublishOverTwoConnections(t *testing.T) {
	addr := reserveLoopbackAddr(t)
	certPEM, keyPEM := generateCert(t)
	acceptor, err := security.NewServerAcceptor(certPEM, keyPEM, nil)
	require.NoError(t, err)

	svc := service.New(storage.NewMemTable(4), broadcaster.New(nil), service.Hooks{}, zap.NewNop())
	srv := transport.NewServer(addr, acceptor, svc, &frame.Codec{}, zap.NewNop(), nil)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	subscriber := dialClient(t, addr, certPEM)
	defer subscriber.Close()
	publisher := dialClient(t, addr, certPEM)
	defer publisher.Close()

	require.NoError(t, subscriber.Send(kvpb.NewSubscribe("alerts")))
	require.NoError(t, subscriber.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	confirm, err := subscriber.Recv(ctx)
	require.NoError(t, err)
	require.Len(t, confirm.Values, 1)

	require.NoError(t, publisher.Send(kvpb.NewPublish("alerts", []kvpb.Value{kvpb.StringValue("fire")})))
	require.NoError(t, publisher.Flush())
	ackResp, err := publisher.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, kvpb.StatusOK, ackResp.Status)

	published, err := subscriber.Recv(ctx)
	require.NoError(t, err)
	require.Len(t, published.Values, 1)
	assert.Equal(t, "fire", published.Values[0].Str)
}

func TestDisconnectedSubscriberIsReleasedOnNextPublish(t *testing.T) {
	addr := reserveLoopbackAddr(t)
	certPEM, keyPEM := generateCert(t)
	acceptor, err := security.NewServerAcceptor(certPEM, keyPEM, nil)
	require.NoError(t, err)

	bcast := broadcaster.New(nil)
	svc := service.New(storage.NewMemTable(4), bcast, service.Hooks{}, zap.NewNop())
	srv := transport.NewServer(addr, acceptor, svc, &frame.Codec{}, zap.NewNop(), nil)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	subscriber := dialClient(t, addr, certPEM)
	publisher := dialClient(t, addr, certPEM)
	defer publisher.Close()

	require.NoError(t, subscriber.Send(kvpb.NewSubscribe("alerts")))
	require.NoError(t, subscriber.Flush())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = subscriber.Recv(ctx)
	require.NoError(t, err)

	require.NoError(t, subscriber.Close())

	// The server only notices the dropped consumer on its next attempt to
	// forward a publish to it; a single publish may race the OS's own
	// detection of the closed socket, so retry a few times.
	require.Eventually(t, func() bool {
		require.NoError(t, publisher.Send(kvpb.NewPublish("alerts", []kvpb.Value{kvpb.StringValue("ping")})))
		require.NoError(t, publisher.Flush())
		ackCtx, ackCancel := context.WithTimeout(context.Background(), time.Second)
		defer ackCancel()
		_, ackErr := publisher.Recv(ackCtx)
		require.NoError(t, ackErr)
		return bcast.SubscriberCount("alerts") == 0
	}, 2*time.Second, 50*time.Millisecond)
}
