package stream_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WiccyCheng/MyKVServer/pkg/frame"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
	"github.com/WiccyCheng/MyKVServer/pkg/stream"
)

func TestSendRecvRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	codec := &frame.Codec{}
	sender := stream.New[kvpb.CommandResponse, kvpb.CommandResponse](server, codec, kvpb.UnmarshalCommandResponse)
	receiver := stream.New[kvpb.CommandResponse, kvpb.CommandResponse](client, codec, kvpb.UnmarshalCommandResponse)

	want := kvpb.OK()
	errCh := make(chan error, 1)
	go func() {
		if err := sender.Send(want); err != nil {
			errCh <- err
			return
		}
		errCh <- sender.Flush()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, want, got)
}

func TestRecvPropagatesContextCancellation(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	codec := &frame.Codec{}
	receiver := stream.New[kvpb.CommandResponse, kvpb.CommandResponse](client, codec, kvpb.UnmarshalCommandResponse)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := receiver.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseFlushesPendingWrites(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	codec := &frame.Codec{}
	sender := stream.New[kvpb.CommandResponse, kvpb.CommandResponse](server, codec, kvpb.UnmarshalCommandResponse)
	receiver := stream.New[kvpb.CommandResponse, kvpb.CommandResponse](client, codec, kvpb.UnmarshalCommandResponse)

	want := kvpb.FromValue(kvpb.StringValue("pending"))
	require.NoError(t, sender.Send(want))

	doneCh := make(chan error, 1)
	go func() { doneCh <- sender.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.NoError(t, <-doneCh)
	assert.Equal(t, want, got)
}
