package main

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/WiccyCheng/MyKVServer/pkg/frame"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
	"github.com/WiccyCheng/MyKVServer/pkg/security"
	"github.com/WiccyCheng/MyKVServer/pkg/stream"
)

func dial(ctx context.Context) (*stream.Stream[kvpb.CommandResponse, kvpb.CommandRequest], func(), error) {
	var clientCertPEM, clientKeyPEM, serverCAPEM []byte
	var err error

	if clientCert != "" {
		if clientCertPEM, err = os.ReadFile(clientCert); err != nil {
			return nil, nil, err
		}
		if clientKeyPEM, err = os.ReadFile(clientKey); err != nil {
			return nil, nil, err
		}
	}
	if serverCAFile != "" {
		if serverCAPEM, err = os.ReadFile(serverCAFile); err != nil {
			return nil, nil, err
		}
	}

	connector, err := security.NewClientConnector(serverName, clientCertPEM, clientKeyPEM, serverCAPEM)
	if err != nil {
		return nil, nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var d net.Dialer
	raw, err := d.DialContext(dialCtx, "tcp", serverAddr)
	if err != nil {
		return nil, nil, err
	}

	tlsConn, err := connector.Connect(dialCtx, raw)
	if err != nil {
		raw.Close()
		return nil, nil, err
	}

	st := stream.New[kvpb.CommandResponse, kvpb.CommandRequest](tlsConn, &frame.Codec{}, kvpb.UnmarshalCommandResponse)
	return st, func() { st.Close() }, nil
}

// roundTrip sends one request and reads exactly one response, the shape
// every unary subcommand needs.
func roundTrip(ctx context.Context, req kvpb.CommandRequest) (kvpb.CommandResponse, error) {
	st, closeFn, err := dial(ctx)
	if err != nil {
		return kvpb.CommandResponse{}, err
	}
	defer closeFn()

	if err := st.Send(req); err != nil {
		return kvpb.CommandResponse{}, err
	}
	if err := st.Flush(); err != nil {
		return kvpb.CommandResponse{}, err
	}
	return st.Recv(ctx)
}
