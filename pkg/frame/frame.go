// Package frame implements the length-delimited, optionally-compressed
// wire framing the KV protocol carries over a TLS stream: a 4-byte
// big-endian header (high bit = compression flag, low 31 bits = payload
// length) followed by the payload.
package frame

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/bytebufferpool"

	"github.com/WiccyCheng/MyKVServer/pkg/kverrors"
)

const (
	compressionBit = uint32(1) << 31
	lenMask        = compressionBit - 1

	// DefaultMaxPayloadSize is the cap EncodeFrame and ReadFrame enforce
	// unless a Codec overrides it.
	DefaultMaxPayloadSize = 16 << 20

	// CompressionThreshold is the payload size above which a frame is
	// gzip-compressed, approximating MTU minus headers.
	CompressionThreshold = 1436
)

// Codec encodes/decodes frames. The zero Codec is ready to use with
// default limits.
type Codec struct {
	MaxPayloadSize uint32
	// CompressionThreshold overrides CompressionThreshold when non-zero.
	CompressionThreshold int
}

func (c *Codec) maxPayload() uint32 {
	if c.MaxPayloadSize == 0 {
		return DefaultMaxPayloadSize
	}
	return c.MaxPayloadSize
}

func (c *Codec) threshold() int {
	if c.CompressionThreshold == 0 {
		return CompressionThreshold
	}
	return c.CompressionThreshold
}

// EncodeFrame appends the frame header and payload (raw or gzip-compressed
// depending on size) to out. out need not be empty.
func (c *Codec) EncodeFrame(payload []byte, out *bytes.Buffer) error {
	body := payload
	compressed := false

	if len(payload) > c.threshold() {
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)

		gw := gzip.NewWriter(buf)
		if _, err := gw.Write(payload); err != nil {
			return kverrors.NewStorageError("gzip compress frame", err)
		}
		if err := gw.Close(); err != nil {
			return kverrors.NewStorageError("gzip close frame", err)
		}
		body = buf.Bytes()
		compressed = true
	}

	if uint32(len(body)) > c.maxPayload()&lenMask {
		return kverrors.ErrFrameTooLarge
	}

	header := uint32(len(body))
	if compressed {
		header |= compressionBit
	}

	var hb [4]byte
	binary.BigEndian.PutUint32(hb[:], header)
	out.Write(hb[:])
	out.Write(body)
	return nil
}

// ReadFrame reads exactly one frame (header + payload) from r into buf,
// appending to whatever buf already holds. It is the sole suspension
// point for inbound data.
func (c *Codec) ReadFrame(ctx context.Context, r io.Reader, buf *bytes.Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var hb [4]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return kverrors.NewStorageError("read frame header", err)
	}

	header := binary.BigEndian.Uint32(hb[:])
	length := header & lenMask

	if length > c.maxPayload()&lenMask {
		return kverrors.ErrFrameTooLarge
	}

	buf.Write(hb[:])
	if _, err := io.CopyN(buf, r, int64(length)); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return kverrors.NewStorageError("read frame payload", err)
	}
	return nil
}

// DecodeFrame consumes exactly one frame from the front of buf, advancing
// it past the consumed bytes, and returns the decompressed payload. It is
// a programmer error to call DecodeFrame without first having used
// ReadFrame to ensure buf holds a complete frame.
func (c *Codec) DecodeFrame(buf *bytes.Buffer) ([]byte, error) {
	data := buf.Bytes()
	if len(data) < 4 {
		panic("frame: DecodeFrame called without a complete frame buffered")
	}

	header := binary.BigEndian.Uint32(data[:4])
	length := header & lenMask
	compressed := header&compressionBit != 0

	if uint32(len(data)-4) < length {
		panic("frame: DecodeFrame called without a complete frame buffered")
	}

	payload := data[4 : 4+length]

	var result []byte
	if compressed {
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, kverrors.NewStorageError("gzip open frame", err)
		}
		out, err := io.ReadAll(gr)
		if err != nil {
			return nil, kverrors.NewStorageError("gzip decompress frame", err)
		}
		result = out
	} else {
		result = append([]byte(nil), payload...)
	}

	buf.Next(int(4 + length))
	return result, nil
}
