// Package kvpb holds the wire schema for the KV protocol: Value, Kvpair,
// CommandRequest and CommandResponse, hand-encoded against the protobuf
// wire format with google.golang.org/protobuf/encoding/protowire. Schema
// generation from an IDL is out of scope; these types play the role a
// protoc-gen-go output would.
package kvpb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Value is a tagged union: string, int64, float64, bool or []byte. The
// zero Value (Kind == KindNone) is the sentinel "default value".
type Value struct {
	Kind    ValueKind
	Str     string
	Integer int64
	Float   float64
	Bool    bool
	Binary  []byte
}

type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindString
	KindInteger
	KindFloat
	KindBool
	KindBinary
)

const (
	fieldValueString  protowire.Number = 1
	fieldValueInteger protowire.Number = 2
	fieldValueFloat   protowire.Number = 3
	fieldValueBool    protowire.Number = 4
	fieldValueBinary  protowire.Number = 5
)

// IsDefault reports whether v carries no payload (the sentinel "default
// value" used for absent results in HSET/HMSET/HMGET/HMDEL responses).
func (v Value) IsDefault() bool { return v.Kind == KindNone }

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value      { return Value{Kind: KindInteger, Integer: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func BinaryValue(b []byte) Value  { return Value{Kind: KindBinary, Binary: b} }

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInteger:
		return fmt.Sprintf("%d", v.Integer)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindBinary:
		return fmt.Sprintf("<%d bytes>", len(v.Binary))
	default:
		return "<default>"
	}
}

// Marshal appends the protobuf-wire encoding of v to b.
func (v Value) Marshal(b []byte) []byte {
	switch v.Kind {
	case KindString:
		b = protowire.AppendTag(b, fieldValueString, protowire.BytesType)
		b = protowire.AppendString(b, v.Str)
	case KindInteger:
		b = protowire.AppendTag(b, fieldValueInteger, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Integer))
	case KindFloat:
		b = protowire.AppendTag(b, fieldValueFloat, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.Float))
	case KindBool:
		b = protowire.AppendTag(b, fieldValueBool, protowire.VarintType)
		var i uint64
		if v.Bool {
			i = 1
		}
		b = protowire.AppendVarint(b, i)
	case KindBinary:
		b = protowire.AppendTag(b, fieldValueBinary, protowire.BytesType)
		b = protowire.AppendBytes(b, v.Binary)
	}
	return b
}

// MarshalEmbedded appends v as a length-prefixed embedded message under
// field number num, or nothing at all if v is the default value (matching
// protobuf's "absent optional message" convention).
func (v Value) MarshalEmbedded(b []byte, num protowire.Number) []byte {
	if v.IsDefault() {
		return b
	}
	inner := v.Marshal(nil)
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b
}

// UnmarshalValue decodes a Value from its raw (un-enveloped) field bytes.
func UnmarshalValue(data []byte) (Value, error) {
	var v Value
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return v, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fieldValueString:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return v, protowire.ParseError(n)
			}
			v = Value{Kind: KindString, Str: s}
			data = data[n:]
		case fieldValueInteger:
			i, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return v, protowire.ParseError(n)
			}
			v = Value{Kind: KindInteger, Integer: int64(i)}
			data = data[n:]
		case fieldValueFloat:
			f, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return v, protowire.ParseError(n)
			}
			v = Value{Kind: KindFloat, Float: math.Float64frombits(f)}
			data = data[n:]
		case fieldValueBool:
			i, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return v, protowire.ParseError(n)
			}
			v = Value{Kind: KindBool, Bool: i != 0}
			data = data[n:]
		case fieldValueBinary:
			bs, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return v, protowire.ParseError(n)
			}
			cp := append([]byte(nil), bs...)
			v = Value{Kind: KindBinary, Binary: cp}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return v, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return v, nil
}
