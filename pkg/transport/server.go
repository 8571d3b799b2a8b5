// Package transport runs the TCP accept loop and per-connection
// read-dispatch-send loop: TLS handshake, then framed-stream wrapping and
// service dispatch.
package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/WiccyCheng/MyKVServer/internal/metricsx"
	"github.com/WiccyCheng/MyKVServer/pkg/frame"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
	"github.com/WiccyCheng/MyKVServer/pkg/security"
	"github.com/WiccyCheng/MyKVServer/pkg/service"
	"github.com/WiccyCheng/MyKVServer/pkg/stream"
)

// Server accepts raw TCP connections, upgrades them to TLS and hands each
// one to a per-connection goroutine running the request/response loop.
type Server struct {
	addr     string
	acceptor *security.ServerAcceptor
	svc      service.Service
	codec    *frame.Codec
	logger   *zap.Logger
	metrics  *metricsx.Registry

	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(addr string, acceptor *security.ServerAcceptor, svc service.Service, codec *frame.Codec, logger *zap.Logger, metrics *metricsx.Registry) *Server {
	return &Server{addr: addr, acceptor: acceptor, svc: svc, codec: codec, logger: logger, metrics: metrics}
}

func (s *Server) Start(ctx context.Context) error {
	if s.listener != nil {
		return errors.New("transport already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("transport listening", zap.String("addr", s.addr))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	return nil
}

// Stop closes the listener and waits for every in-flight connection
// goroutine to return.
func (s *Server) Stop() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("accept error", zap.Error(err))
			return
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConnection(ctx, c)
		}(conn)
	}
}

func (s *Server) handleConnection(parent context.Context, conn net.Conn) {
	defer conn.Close()

	connID := uuid.New()
	logger := s.logger.With(zap.String("conn", connID.String()))

	handshakeCtx, cancel := context.WithTimeout(parent, 10*time.Second)
	tlsConn, err := s.acceptor.Accept(handshakeCtx, conn)
	cancel()
	if err != nil {
		if s.metrics != nil {
			s.metrics.AcceptErrors.Inc()
		}
		logger.Debug("tls handshake failed", zap.Error(err))
		return
	}

	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
		defer s.metrics.ActiveConnections.Dec()
	}

	st := stream.New[kvpb.CommandRequest, kvpb.CommandResponse](tlsConn, s.codec, kvpb.UnmarshalCommandRequest)
	defer st.Close()

	connCtx, cancel := context.WithCancel(parent)
	defer cancel()

	s.requestLoop(connCtx, st, logger)
}

// requestLoop implements the protocol's per-connection ordering guarantee:
// one request is fully dispatched and its response stream fully drained
// before the next request is read. A SUBSCRIBE's stream only drains when
// another connection unsubscribes it, or when sending a response to this
// connection fails after it has disconnected; a disconnect is not noticed
// until then. Issuing UNSUBSCRIBE for a subscription therefore requires a
// separate connection — the connection holding it open can't also read
// the request that would end it.
func (s *Server) requestLoop(ctx context.Context, st *stream.Stream[kvpb.CommandRequest, kvpb.CommandResponse], logger *zap.Logger) {
	hooks := s.svc.Hooks()
	for {
		req, err := st.Recv(ctx)
		if err != nil {
			return
		}

		if s.metrics != nil {
			s.metrics.RequestsTotal.Inc()
		}

		_, isSubscribe := req.Data.(kvpb.Subscribe)
		var subID uint32
		first := true

		respCh := s.svc.Execute(ctx, req)
		for resp := range respCh {
			if isSubscribe && first {
				first = false
				if len(resp.Values) == 1 && resp.Values[0].Kind == kvpb.KindInteger {
					subID = uint32(resp.Values[0].Integer)
				}
			}

			if err := st.Send(resp); err != nil {
				logger.Debug("send error", zap.Error(err))
				s.releaseIfSubscribed(isSubscribe, subID)
				return
			}
			if err := st.Flush(); err != nil {
				logger.Debug("flush error", zap.Error(err))
				s.releaseIfSubscribed(isSubscribe, subID)
				return
			}
			hooks.FireAfterSend()
		}
	}
}

// releaseIfSubscribed cleans up a subscription left open by a connection
// that dropped mid-stream, the Go-idiomatic stand-in for the broadcaster
// noticing a closed consumer channel (see pkg/broadcaster).
func (s *Server) releaseIfSubscribed(isSubscribe bool, subID uint32) {
	if isSubscribe && subID != 0 {
		s.svc.ReleaseSubscription(subID)
	}
}
