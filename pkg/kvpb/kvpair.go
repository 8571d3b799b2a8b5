package kvpb

import "google.golang.org/protobuf/encoding/protowire"

// Kvpair is a (key, value) pair as carried in HSET/HMSET requests and
// HGETALL responses.
type Kvpair struct {
	Key   string
	Value Value
}

func NewKvpair(key string, value Value) Kvpair {
	return Kvpair{Key: key, Value: value}
}

const (
	fieldKvpairKey   protowire.Number = 1
	fieldKvpairValue protowire.Number = 2
)

func (p Kvpair) Marshal(b []byte) []byte {
	b = protowire.AppendTag(b, fieldKvpairKey, protowire.BytesType)
	b = protowire.AppendString(b, p.Key)
	b = p.Value.MarshalEmbedded(b, fieldKvpairValue)
	return b
}

// MarshalEmbedded appends p as a length-prefixed embedded message under
// field number num.
func (p Kvpair) MarshalEmbedded(b []byte, num protowire.Number) []byte {
	inner := p.Marshal(nil)
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b
}

func UnmarshalKvpair(data []byte) (Kvpair, error) {
	var p Kvpair
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return p, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fieldKvpairKey:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			p.Key = s
			data = data[n:]
		case fieldKvpairValue:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			v, err := UnmarshalValue(msg)
			if err != nil {
				return p, err
			}
			p.Value = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return p, nil
}

func (p Kvpair) String() string {
	return p.Key + "=" + p.Value.String()
}
