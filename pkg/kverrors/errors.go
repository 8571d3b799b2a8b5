// Package kverrors defines the error taxonomy: storage/handler errors
// translate into a CommandResponse status; frame and transport errors
// terminate the connection and are never surfaced as a response.
package kverrors

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
)

// NotFound is returned when a (table, key) lookup or delete finds nothing.
type NotFound struct {
	Table, Key string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("not found: table=%q key=%q", e.Table, e.Key)
}

// InvalidCommand is returned for malformed or unsupported requests.
type InvalidCommand struct {
	Description string
}

func (e *InvalidCommand) Error() string {
	return "invalid command: " + e.Description
}

// ConvertError is returned when a Value can't be coerced to the requested
// Go type.
type ConvertError struct {
	Source, Target string
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("cannot convert %s into %s", e.Source, e.Target)
}

// InvalidKey is returned when a logical key contains the table/key
// separator used by flat-namespace backends.
type InvalidKey struct {
	Key string
}

func (e *InvalidKey) Error() string {
	return fmt.Sprintf("key %q must not contain ':'", e.Key)
}

// StorageError wraps a failure from a Storage backend (I/O, encode/decode,
// unsupported operation).
type StorageError struct {
	Detail string
	Cause  error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage error: %s: %v", e.Detail, e.Cause)
	}
	return "storage error: " + e.Detail
}

func (e *StorageError) Unwrap() error { return e.Cause }

// Internal wraps any other unexpected failure.
type Internal struct {
	Message string
	Cause   error
}

func (e *Internal) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Message, e.Cause)
	}
	return "internal error: " + e.Message
}

func (e *Internal) Unwrap() error { return e.Cause }

// NewStorageError wraps cause with errors.Wrap so a stack trace is attached
// at the point of failure, the way packetd-packetd/rockstar-0000-aistore
// wrap storage/backend errors.
func NewStorageError(detail string, cause error) error {
	return &StorageError{Detail: detail, Cause: errors.Wrap(cause, detail)}
}

// Frame/transport-level errors. These never become a CommandResponse; the
// connection is closed instead.

type FrameError struct {
	Cause error
}

func (e *FrameError) Error() string { return "frame error: " + e.Cause.Error() }
func (e *FrameError) Unwrap() error { return e.Cause }

var ErrFrameTooLarge = errors.New("frame exceeds configured maximum payload size")

type TLSError struct{ Cause error }

func (e *TLSError) Error() string { return "tls error: " + e.Cause.Error() }
func (e *TLSError) Unwrap() error { return e.Cause }

type CertificateParseError struct {
	Subject, Part string
}

func (e *CertificateParseError) Error() string {
	return fmt.Sprintf("certificate parse error: %s %s", e.Subject, e.Part)
}

type InvalidDNSName struct{ Name string }

func (e *InvalidDNSName) Error() string { return fmt.Sprintf("invalid DNS name: %q", e.Name) }

// ToResponse converts a core error into the CommandResponse status/message
// its category maps to. Frame/TLS-level errors have no sensible response
// (they terminate the connection) and map to StatusInternal only as a
// defensive fallback — callers must not reach this path for them.
func ToResponse(err error) kvpb.CommandResponse {
	if err == nil {
		return kvpb.OK()
	}

	resp := kvpb.CommandResponse{Status: kvpb.StatusInternal, Message: err.Error()}

	var nf *NotFound
	var ic *InvalidCommand
	switch {
	case errors.As(err, &nf):
		resp.Status = kvpb.StatusNotFound
	case errors.As(err, &ic):
		resp.Status = kvpb.StatusBadRequest
	}
	return resp
}
