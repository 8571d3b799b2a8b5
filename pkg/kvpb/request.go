package kvpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// RequestData is the oneof carried by a CommandRequest. Concrete types are
// Hget, Hgetall, Hset, Hdel, Hexist, Hmget, Hmset, Hmdel, Hmexist,
// Subscribe, Unsubscribe and Publish.
type RequestData interface {
	requestFieldNumber() protowire.Number
	marshalBody(b []byte) []byte
}

// CommandRequest is exactly one of the RequestData variants, or nil if the
// request carried no recognizable payload.
type CommandRequest struct {
	Data RequestData
}

type Hget struct{ Table, Key string }
type Hgetall struct{ Table string }
type Hset struct {
	Table string
	Pair  Kvpair
}
type Hdel struct{ Table, Key string }
type Hexist struct{ Table, Key string }
type Hmget struct {
	Table string
	Keys  []string
}
type Hmset struct {
	Table string
	Pairs []Kvpair
}
type Hmdel struct {
	Table string
	Keys  []string
}
type Hmexist struct {
	Table string
	Keys  []string
}
type Subscribe struct{ Topic string }
type Unsubscribe struct {
	Topic string
	ID    uint32
}
type Publish struct {
	Topic  string
	Values []Value
}

const (
	reqFieldHget        protowire.Number = 1
	reqFieldHgetall     protowire.Number = 2
	reqFieldHset        protowire.Number = 3
	reqFieldHdel        protowire.Number = 4
	reqFieldHexist      protowire.Number = 5
	reqFieldHmget       protowire.Number = 6
	reqFieldHmset       protowire.Number = 7
	reqFieldHmdel       protowire.Number = 8
	reqFieldHmexist     protowire.Number = 9
	reqFieldSubscribe   protowire.Number = 10
	reqFieldUnsubscribe protowire.Number = 11
	reqFieldPublish     protowire.Number = 12
)

// field numbers inside each variant's embedded message.
const (
	fTable  protowire.Number = 1
	fKey    protowire.Number = 2
	fPair   protowire.Number = 2
	fKeys   protowire.Number = 2
	fPairs  protowire.Number = 2
	fTopic  protowire.Number = 1
	fSubID  protowire.Number = 2
	fValues protowire.Number = 2
)

func (Hget) requestFieldNumber() protowire.Number        { return reqFieldHget }
func (Hgetall) requestFieldNumber() protowire.Number     { return reqFieldHgetall }
func (Hset) requestFieldNumber() protowire.Number        { return reqFieldHset }
func (Hdel) requestFieldNumber() protowire.Number        { return reqFieldHdel }
func (Hexist) requestFieldNumber() protowire.Number      { return reqFieldHexist }
func (Hmget) requestFieldNumber() protowire.Number       { return reqFieldHmget }
func (Hmset) requestFieldNumber() protowire.Number       { return reqFieldHmset }
func (Hmdel) requestFieldNumber() protowire.Number       { return reqFieldHmdel }
func (Hmexist) requestFieldNumber() protowire.Number     { return reqFieldHmexist }
func (Subscribe) requestFieldNumber() protowire.Number   { return reqFieldSubscribe }
func (Unsubscribe) requestFieldNumber() protowire.Number { return reqFieldUnsubscribe }
func (Publish) requestFieldNumber() protowire.Number     { return reqFieldPublish }

func (h Hget) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTable, h.Table)
	b = appendStringField(b, fKey, h.Key)
	return b
}

func (h Hgetall) marshalBody(b []byte) []byte {
	return appendStringField(b, fTable, h.Table)
}

func (h Hset) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTable, h.Table)
	b = h.Pair.MarshalEmbedded(b, fPair)
	return b
}

func (h Hdel) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTable, h.Table)
	b = appendStringField(b, fKey, h.Key)
	return b
}

func (h Hexist) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTable, h.Table)
	b = appendStringField(b, fKey, h.Key)
	return b
}

func (h Hmget) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTable, h.Table)
	for _, k := range h.Keys {
		b = appendStringField(b, fKeys, k)
	}
	return b
}

func (h Hmset) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTable, h.Table)
	for _, p := range h.Pairs {
		b = p.MarshalEmbedded(b, fPairs)
	}
	return b
}

func (h Hmdel) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTable, h.Table)
	for _, k := range h.Keys {
		b = appendStringField(b, fKeys, k)
	}
	return b
}

func (h Hmexist) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTable, h.Table)
	for _, k := range h.Keys {
		b = appendStringField(b, fKeys, k)
	}
	return b
}

func (s Subscribe) marshalBody(b []byte) []byte {
	return appendStringField(b, fTopic, s.Topic)
}

func (u Unsubscribe) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTopic, u.Topic)
	b = protowire.AppendTag(b, fSubID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(u.ID))
	return b
}

func (p Publish) marshalBody(b []byte) []byte {
	b = appendStringField(b, fTopic, p.Topic)
	for _, v := range p.Values {
		b = v.MarshalEmbedded(b, fValues)
	}
	return b
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendString(b, s)
	return b
}

// Marshal encodes the full CommandRequest.
func (r CommandRequest) Marshal() ([]byte, error) {
	if r.Data == nil {
		return nil, nil
	}
	var b []byte
	body := r.Data.marshalBody(nil)
	b = protowire.AppendTag(b, r.Data.requestFieldNumber(), protowire.BytesType)
	b = protowire.AppendBytes(b, body)
	return b, nil
}

// UnmarshalCommandRequest decodes a full CommandRequest frame payload.
func UnmarshalCommandRequest(data []byte) (CommandRequest, error) {
	var req CommandRequest
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return req, protowire.ParseError(n)
		}
		data = data[n:]
		msg, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return req, protowire.ParseError(n)
		}
		data = data[n:]

		var (
			d   RequestData
			err error
		)
		switch num {
		case reqFieldHget:
			d, err = unmarshalHget(msg)
		case reqFieldHgetall:
			d, err = unmarshalHgetall(msg)
		case reqFieldHset:
			d, err = unmarshalHset(msg)
		case reqFieldHdel:
			d, err = unmarshalHdel(msg)
		case reqFieldHexist:
			d, err = unmarshalHexist(msg)
		case reqFieldHmget:
			d, err = unmarshalHmget(msg)
		case reqFieldHmset:
			d, err = unmarshalHmset(msg)
		case reqFieldHmdel:
			d, err = unmarshalHmdel(msg)
		case reqFieldHmexist:
			d, err = unmarshalHmexist(msg)
		case reqFieldSubscribe:
			d, err = unmarshalSubscribe(msg)
		case reqFieldUnsubscribe:
			d, err = unmarshalUnsubscribe(msg)
		case reqFieldPublish:
			d, err = unmarshalPublish(msg)
		default:
			_ = typ
			continue
		}
		if err != nil {
			return req, err
		}
		req.Data = d
	}
	return req, nil
}

func consumeTableKey(data []byte) (table, key string, err error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", "", protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fTable:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", "", protowire.ParseError(n)
			}
			table = s
			data = data[n:]
		case fKey:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", "", protowire.ParseError(n)
			}
			key = s
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", "", protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return table, key, nil
}

func unmarshalHget(data []byte) (RequestData, error) {
	t, k, err := consumeTableKey(data)
	return Hget{Table: t, Key: k}, err
}

func unmarshalHdel(data []byte) (RequestData, error) {
	t, k, err := consumeTableKey(data)
	return Hdel{Table: t, Key: k}, err
}

func unmarshalHexist(data []byte) (RequestData, error) {
	t, k, err := consumeTableKey(data)
	return Hexist{Table: t, Key: k}, err
}

func unmarshalHgetall(data []byte) (RequestData, error) {
	var h Hgetall
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return h, protowire.ParseError(n)
		}
		data = data[n:]
		if num == fTable {
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			h.Table = s
			data = data[n:]
		} else {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return h, nil
}

func unmarshalHset(data []byte) (RequestData, error) {
	var h Hset
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return h, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fTable:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			h.Table = s
			data = data[n:]
		case fPair:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			p, err := UnmarshalKvpair(msg)
			if err != nil {
				return h, err
			}
			h.Pair = p
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return h, nil
}

func consumeTableKeys(data []byte) (table string, keys []string, err error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fTable:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			table = s
			data = data[n:]
		case fKeys:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			keys = append(keys, s)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return "", nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return table, keys, nil
}

func unmarshalHmget(data []byte) (RequestData, error) {
	t, k, err := consumeTableKeys(data)
	return Hmget{Table: t, Keys: k}, err
}

func unmarshalHmdel(data []byte) (RequestData, error) {
	t, k, err := consumeTableKeys(data)
	return Hmdel{Table: t, Keys: k}, err
}

func unmarshalHmexist(data []byte) (RequestData, error) {
	t, k, err := consumeTableKeys(data)
	return Hmexist{Table: t, Keys: k}, err
}

func unmarshalHmset(data []byte) (RequestData, error) {
	var h Hmset
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return h, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fTable:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			h.Table = s
			data = data[n:]
		case fPairs:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			p, err := UnmarshalKvpair(msg)
			if err != nil {
				return h, err
			}
			h.Pairs = append(h.Pairs, p)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return h, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return h, nil
}

func unmarshalSubscribe(data []byte) (RequestData, error) {
	var s Subscribe
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return s, protowire.ParseError(n)
		}
		data = data[n:]
		if num == fTopic {
			str, n := protowire.ConsumeString(data)
			if n < 0 {
				return s, protowire.ParseError(n)
			}
			s.Topic = str
			data = data[n:]
		} else {
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return s, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return s, nil
}

func unmarshalUnsubscribe(data []byte) (RequestData, error) {
	var u Unsubscribe
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return u, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fTopic:
			str, n := protowire.ConsumeString(data)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			u.Topic = str
			data = data[n:]
		case fSubID:
			i, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			u.ID = uint32(i)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return u, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return u, nil
}

func unmarshalPublish(data []byte) (RequestData, error) {
	var p Publish
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return p, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case fTopic:
			str, n := protowire.ConsumeString(data)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			p.Topic = str
			data = data[n:]
		case fValues:
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			v, err := UnmarshalValue(msg)
			if err != nil {
				return p, err
			}
			p.Values = append(p.Values, v)
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

// Builder helpers for constructing a CommandRequest one variant at a time.
// Kept minimal: request construction is an external-collaborator concern,
// not core dispatch, but tests and cmd/kvclient need some way to build one.

func NewHget(table, key string) CommandRequest       { return CommandRequest{Data: Hget{table, key}} }
func NewHgetall(table string) CommandRequest         { return CommandRequest{Data: Hgetall{table}} }
func NewHset(table, key string, v Value) CommandRequest {
	return CommandRequest{Data: Hset{Table: table, Pair: NewKvpair(key, v)}}
}
func NewHdel(table, key string) CommandRequest   { return CommandRequest{Data: Hdel{table, key}} }
func NewHexist(table, key string) CommandRequest { return CommandRequest{Data: Hexist{table, key}} }
func NewHmget(table string, keys []string) CommandRequest {
	return CommandRequest{Data: Hmget{Table: table, Keys: keys}}
}
func NewHmset(table string, pairs []Kvpair) CommandRequest {
	return CommandRequest{Data: Hmset{Table: table, Pairs: pairs}}
}
func NewHmdel(table string, keys []string) CommandRequest {
	return CommandRequest{Data: Hmdel{Table: table, Keys: keys}}
}
func NewHmexist(table string, keys []string) CommandRequest {
	return CommandRequest{Data: Hmexist{Table: table, Keys: keys}}
}
func NewSubscribe(topic string) CommandRequest { return CommandRequest{Data: Subscribe{topic}} }
func NewUnsubscribe(topic string, id uint32) CommandRequest {
	return CommandRequest{Data: Unsubscribe{Topic: topic, ID: id}}
}
func NewPublish(topic string, values []Value) CommandRequest {
	return CommandRequest{Data: Publish{Topic: topic, Values: values}}
}

func (r CommandRequest) String() string {
	if r.Data == nil {
		return "<empty request>"
	}
	return fmt.Sprintf("%#v", r.Data)
}
