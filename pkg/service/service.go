// Package service implements the command dispatcher and hook pipeline: it
// routes a decoded CommandRequest to a storage-backed handler or to the
// broadcaster, and runs the four lifecycle hooks around that dispatch.
//
// The dispatcher is tagged by request variant rather than by checking for
// the wire-level "default response" sentinel: a request is either resolved
// by the unary table or routed to streaming, decided directly from its
// Go type, never by inspecting an intermediate zero-value response. The
// sentinel still exists on the wire (kvpb.CommandResponse{}.IsDefault) as a
// documented boundary between unary and streaming phases, but nothing in
// this package branches on it.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/WiccyCheng/MyKVServer/pkg/broadcaster"
	"github.com/WiccyCheng/MyKVServer/pkg/kverrors"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
	"github.com/WiccyCheng/MyKVServer/pkg/storage"
)

// inner holds everything a cloned Service handle shares: the storage
// backend (exclusive to the process, safe for concurrent use per its own
// contract), the broadcaster (shared by every clone) and the immutable
// hook lists.
type inner struct {
	storage     storage.Storage
	broadcaster *broadcaster.Broadcaster
	hooks       Hooks
	logger      *zap.Logger
}

// Service is a cheaply cloneable handle: copying a Service copies only the
// pointer to its shared inner state, mirroring the "shared ownership"
// lifecycle a service handle needs across connection goroutines.
type Service struct {
	in *inner
}

func New(store storage.Storage, bcast *broadcaster.Broadcaster, hooks Hooks, logger *zap.Logger) Service {
	return Service{in: &inner{storage: store, broadcaster: bcast, hooks: hooks, logger: logger}}
}

// Hooks returns the service's hook lists, for the connection loop to fire
// OnAfterSend once a response frame has actually been written.
func (s Service) Hooks() Hooks { return s.in.hooks }

// ReleaseSubscription tears down subscription id regardless of topic. The
// connection loop calls this when a subscriber's connection drops while
// its stream is still open, standing in for the broadcaster's "consumer
// dropped" detection (see pkg/broadcaster).
func (s Service) ReleaseSubscription(id uint32) {
	s.in.broadcaster.ReleaseID(id)
}

// Execute runs the full dispatch pipeline for one request and returns the
// stream of responses to send back: a closed, single-element channel for
// unary commands, or the subscriber's live queue for SUBSCRIBE. The
// connection loop ranges over the result uniformly either way.
func (s Service) Execute(ctx context.Context, req kvpb.CommandRequest) <-chan kvpb.CommandResponse {
	s.in.hooks.fireReceived(&req)

	switch data := req.Data.(type) {
	case kvpb.Subscribe:
		_, ch := s.in.broadcaster.Subscribe(data.Topic)
		return ch
	case kvpb.Unsubscribe:
		ok := s.in.broadcaster.Unsubscribe(data.Topic, data.ID)
		resp := kvpb.OK()
		if !ok {
			resp = kvpb.CommandResponse{Status: kvpb.StatusNotFound}
		}
		return singleton(resp)
	case kvpb.Publish:
		s.in.broadcaster.Publish(data.Topic, data.Values)
		return singleton(kvpb.OK())
	case nil:
		return singleton(kverrors.ToResponse(&kverrors.InvalidCommand{Description: "empty request"}))
	default:
		resp := s.unaryDispatch(data)
		s.in.hooks.fireExecuted(&resp)
		s.in.hooks.fireBeforeSend(&resp)
		return singleton(resp)
	}
}

func singleton(resp kvpb.CommandResponse) <-chan kvpb.CommandResponse {
	ch := make(chan kvpb.CommandResponse, 1)
	ch <- resp
	close(ch)
	return ch
}

// unaryDispatch resolves every request variant that is answered
// synchronously from storage. SUBSCRIBE/UNSUBSCRIBE/PUBLISH never reach
// here; Execute routes them to the broadcaster directly.
func (s Service) unaryDispatch(data kvpb.RequestData) kvpb.CommandResponse {
	switch r := data.(type) {
	case kvpb.Hget:
		return s.handleHget(r)
	case kvpb.Hgetall:
		return s.handleHgetall(r)
	case kvpb.Hset:
		return s.handleHset(r)
	case kvpb.Hdel:
		return s.handleHdel(r)
	case kvpb.Hexist:
		return s.handleHexist(r)
	case kvpb.Hmget:
		return s.handleHmget(r)
	case kvpb.Hmset:
		return s.handleHmset(r)
	case kvpb.Hmdel:
		return s.handleHmdel(r)
	case kvpb.Hmexist:
		return s.handleHmexist(r)
	default:
		return kverrors.ToResponse(&kverrors.InvalidCommand{Description: "unrecognized request variant"})
	}
}

func (s Service) handleHget(r kvpb.Hget) kvpb.CommandResponse {
	v, ok, err := s.in.storage.Get(r.Table, r.Key)
	if err != nil {
		return kverrors.ToResponse(err)
	}
	if !ok {
		return kverrors.ToResponse(&kverrors.NotFound{Table: r.Table, Key: r.Key})
	}
	return kvpb.FromValue(v)
}

func (s Service) handleHgetall(r kvpb.Hgetall) kvpb.CommandResponse {
	pairs, err := s.in.storage.GetAll(r.Table)
	if err != nil {
		return kverrors.ToResponse(err)
	}
	return kvpb.FromPairs(pairs)
}

func (s Service) handleHset(r kvpb.Hset) kvpb.CommandResponse {
	prev, had, err := s.in.storage.Set(r.Table, r.Pair.Key, r.Pair.Value)
	if err != nil {
		return kverrors.ToResponse(err)
	}
	if !had {
		return kvpb.FromValue(kvpb.Value{})
	}
	return kvpb.FromValue(prev)
}

func (s Service) handleHdel(r kvpb.Hdel) kvpb.CommandResponse {
	prev, had, err := s.in.storage.Del(r.Table, r.Key)
	if err != nil {
		return kverrors.ToResponse(err)
	}
	if !had {
		return kverrors.ToResponse(&kverrors.NotFound{Table: r.Table, Key: r.Key})
	}
	return kvpb.FromValue(prev)
}

func (s Service) handleHexist(r kvpb.Hexist) kvpb.CommandResponse {
	ok, err := s.in.storage.Contains(r.Table, r.Key)
	if err != nil {
		return kverrors.ToResponse(err)
	}
	return kvpb.FromValue(kvpb.BoolValue(ok))
}

func (s Service) handleHmget(r kvpb.Hmget) kvpb.CommandResponse {
	values := make([]kvpb.Value, len(r.Keys))
	for i, k := range r.Keys {
		v, ok, err := s.in.storage.Get(r.Table, k)
		if err != nil {
			return kverrors.ToResponse(err)
		}
		if ok {
			values[i] = v
		}
	}
	return kvpb.FromValues(values)
}

func (s Service) handleHmset(r kvpb.Hmset) kvpb.CommandResponse {
	prevs := make([]kvpb.Value, len(r.Pairs))
	for i, p := range r.Pairs {
		prev, had, err := s.in.storage.Set(r.Table, p.Key, p.Value)
		if err != nil {
			return kverrors.ToResponse(err)
		}
		if had {
			prevs[i] = prev
		}
	}
	return kvpb.FromValues(prevs)
}

func (s Service) handleHmdel(r kvpb.Hmdel) kvpb.CommandResponse {
	values := make([]kvpb.Value, len(r.Keys))
	for i, k := range r.Keys {
		prev, had, err := s.in.storage.Del(r.Table, k)
		if err != nil {
			return kverrors.ToResponse(err)
		}
		if had {
			values[i] = prev
		}
	}
	return kvpb.FromValues(values)
}

func (s Service) handleHmexist(r kvpb.Hmexist) kvpb.CommandResponse {
	values := make([]kvpb.Value, len(r.Keys))
	for i, k := range r.Keys {
		ok, err := s.in.storage.Contains(r.Table, k)
		if err != nil {
			return kverrors.ToResponse(err)
		}
		values[i] = kvpb.BoolValue(ok)
	}
	return kvpb.FromValues(values)
}
