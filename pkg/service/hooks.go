package service

import "github.com/WiccyCheng/MyKVServer/pkg/kvpb"

// Hooks are the four ordered lifecycle callback lists a Service fires
// during Execute. They are registered once at construction and are
// read-only from every connection goroutine afterward.
type Hooks struct {
	// OnReceived inspects a request before dispatch.
	OnReceived []func(*kvpb.CommandRequest)
	// OnExecuted inspects a response after unary execution, before
	// OnBeforeSend.
	OnExecuted []func(*kvpb.CommandResponse)
	// OnBeforeSend may mutate a response (status, message, fields)
	// before it is handed to the connection's writer.
	OnBeforeSend []func(*kvpb.CommandResponse)
	// OnAfterSend fires once the frame carrying a response has been
	// written to the wire. The connection loop invokes it, not Execute,
	// since Execute has no visibility into the write.
	OnAfterSend []func()
}

func (h Hooks) fireReceived(req *kvpb.CommandRequest) {
	for _, fn := range h.OnReceived {
		fn(req)
	}
}

func (h Hooks) fireExecuted(resp *kvpb.CommandResponse) {
	for _, fn := range h.OnExecuted {
		fn(resp)
	}
}

func (h Hooks) fireBeforeSend(resp *kvpb.CommandResponse) {
	for _, fn := range h.OnBeforeSend {
		fn(resp)
	}
}

// FireAfterSend runs the after-send hooks. Exported for the connection
// loop, which owns the actual write.
func (h Hooks) FireAfterSend() {
	for _, fn := range h.OnAfterSend {
		fn()
	}
}
