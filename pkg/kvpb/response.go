package kvpb

import (
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// CommandResponse is the unified reply envelope: a status code, a message
// and ordered values/pairs. The zero CommandResponse (status 0, all else
// empty) is the "default response"; pkg/service dispatches by request type
// and neither returns nor inspects it.
type CommandResponse struct {
	Status  uint32
	Message string
	Values  []Value
	Pairs   []Kvpair
}

const (
	StatusOK          uint32 = 200
	StatusBadRequest  uint32 = 400
	StatusNotFound    uint32 = 404
	StatusInternal    uint32 = 500
)

// IsDefault reports whether r is the default response (status 0, no
// message, values or pairs).
func (r CommandResponse) IsDefault() bool {
	return r.Status == 0 && r.Message == "" && len(r.Values) == 0 && len(r.Pairs) == 0
}

func OK() CommandResponse {
	return CommandResponse{Status: StatusOK}
}

func FromValue(v Value) CommandResponse {
	return CommandResponse{Status: StatusOK, Values: []Value{v}}
}

func FromValues(vs []Value) CommandResponse {
	return CommandResponse{Status: StatusOK, Values: vs}
}

func FromPairs(p []Kvpair) CommandResponse {
	return CommandResponse{Status: StatusOK, Pairs: p}
}

const (
	fieldRespStatus  protowire.Number = 1
	fieldRespMessage protowire.Number = 2
	fieldRespValues  protowire.Number = 3
	fieldRespPairs   protowire.Number = 4
)

func (r CommandResponse) Marshal() ([]byte, error) {
	var b []byte
	if r.Status != 0 {
		b = protowire.AppendTag(b, fieldRespStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Status))
	}
	if r.Message != "" {
		b = protowire.AppendTag(b, fieldRespMessage, protowire.BytesType)
		b = protowire.AppendString(b, r.Message)
	}
	for _, v := range r.Values {
		// Unlike a singular optional field, a repeated entry must be
		// written even when it is the default value: HMGET-family
		// responses rely on one wire entry per requested key to keep
		// values[] the same length as keys[].
		b = protowire.AppendTag(b, fieldRespValues, protowire.BytesType)
		b = protowire.AppendBytes(b, v.Marshal(nil))
	}
	for _, p := range r.Pairs {
		b = p.MarshalEmbedded(b, fieldRespPairs)
	}
	return b, nil
}

func UnmarshalCommandResponse(data []byte) (CommandResponse, error) {
	var r CommandResponse
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return r, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fieldRespStatus:
			i, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			r.Status = uint32(i)
			data = data[n:]
		case fieldRespMessage:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			r.Message = s
			data = data[n:]
		case fieldRespValues:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			v, err := UnmarshalValue(msg)
			if err != nil {
				return r, err
			}
			r.Values = append(r.Values, v)
			data = data[n:]
		case fieldRespPairs:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			p, err := UnmarshalKvpair(msg)
			if err != nil {
				return r, err
			}
			r.Pairs = append(r.Pairs, p)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return r, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return r, nil
}

func (r CommandResponse) String() string {
	var sb strings.Builder
	sb.WriteString("status: ")
	sb.WriteString(strconv.FormatUint(uint64(r.Status), 10))
	if r.Message != "" {
		sb.WriteString(", message: ")
		sb.WriteString(r.Message)
	}
	if len(r.Values) > 0 {
		sb.WriteString(", values: [")
		for i, v := range r.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.String())
		}
		sb.WriteString("]")
	}
	if len(r.Pairs) > 0 {
		sb.WriteString(", pairs: [")
		for i, p := range r.Pairs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		sb.WriteString("]")
	}
	return sb.String()
}
