// Package stream wraps a bidirectional byte stream (typically a *tls.Conn)
// plus a frame codec into a typed, lazy inbound sequence and a buffered
// outbound sink.
package stream

import (
	"bytes"
	"context"
	"net"

	"github.com/WiccyCheng/MyKVServer/pkg/frame"
)

// Marshaler is satisfied by outbound message types (kvpb.CommandRequest,
// kvpb.CommandResponse).
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Stream is generic over the inbound message type In and outbound type
// Out. A server instantiates Stream[kvpb.CommandRequest, kvpb.CommandResponse];
// a client instantiates the mirror image.
type Stream[In any, Out Marshaler] struct {
	conn  net.Conn
	codec *frame.Codec

	decodeIn func([]byte) (In, error)

	rbuf bytes.Buffer
	wbuf bytes.Buffer
}

// New wraps conn. decodeIn unmarshals one frame's payload into In.
func New[In any, Out Marshaler](conn net.Conn, codec *frame.Codec, decodeIn func([]byte) (In, error)) *Stream[In, Out] {
	return &Stream[In, Out]{conn: conn, codec: codec, decodeIn: decodeIn}
}

// Recv blocks until one full frame has been decoded, or returns io.EOF
// once the underlying stream is closed. Between two successful calls the
// internal read buffer is always empty.
func (s *Stream[In, Out]) Recv(ctx context.Context) (In, error) {
	var zero In
	if s.rbuf.Len() != 0 {
		panic("stream: Recv called with a non-empty read buffer")
	}

	if err := s.codec.ReadFrame(ctx, s.conn, &s.rbuf); err != nil {
		return zero, err
	}

	payload, err := s.codec.DecodeFrame(&s.rbuf)
	if err != nil {
		return zero, err
	}
	return s.decodeIn(payload)
}

// Send encodes msg into the write buffer. Transport backpressure is left
// to the OS socket buffer; Send itself never blocks on the network.
func (s *Stream[In, Out]) Send(msg Out) error {
	payload, err := msg.Marshal()
	if err != nil {
		return err
	}
	return s.codec.EncodeFrame(payload, &s.wbuf)
}

// Flush drains the write buffer to the underlying stream, looping over
// partial writes. It is the sole suspension point for outbound data.
func (s *Stream[In, Out]) Flush() error {
	for s.wbuf.Len() > 0 {
		n, err := s.conn.Write(s.wbuf.Bytes())
		if err != nil {
			return err
		}
		s.wbuf.Next(n)
	}
	s.wbuf.Reset()
	return nil
}

// Close flushes any pending writes then shuts down the stream.
func (s *Stream[In, Out]) Close() error {
	_ = s.Flush()
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	return s.conn.Close()
}
