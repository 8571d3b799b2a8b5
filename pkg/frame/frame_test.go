package frame_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WiccyCheng/MyKVServer/pkg/frame"
	"github.com/WiccyCheng/MyKVServer/pkg/kverrors"
)

func roundTrip(t *testing.T, c *frame.Codec, payload []byte) []byte {
	t.Helper()
	var wire bytes.Buffer
	require.NoError(t, c.EncodeFrame(payload, &wire))

	var buf bytes.Buffer
	require.NoError(t, c.ReadFrame(context.Background(), &wire, &buf))

	out, err := c.DecodeFrame(&buf)
	require.NoError(t, err)
	return out
}

func TestEncodeDecodeSmallFrameUncompressed(t *testing.T) {
	c := &frame.Codec{}
	payload := []byte("hello world")
	out := roundTrip(t, c, payload)
	assert.Equal(t, payload, out)
}

func TestEncodeDecodeLargeFrameCompressed(t *testing.T) {
	c := &frame.Codec{}
	payload := []byte(strings.Repeat("a", frame.CompressionThreshold+1))
	out := roundTrip(t, c, payload)
	assert.Equal(t, payload, out)
}

func TestEncodeFrameRejectsOversizePayload(t *testing.T) {
	c := &frame.Codec{MaxPayloadSize: 8}
	var wire bytes.Buffer
	err := c.EncodeFrame(bytes.Repeat([]byte{1}, 64), &wire)
	assert.ErrorIs(t, err, kverrors.ErrFrameTooLarge)
}

func TestReadFrameRejectsOversizeHeader(t *testing.T) {
	c := &frame.Codec{MaxPayloadSize: 8}
	bigger := &frame.Codec{}
	var wire bytes.Buffer
	require.NoError(t, bigger.EncodeFrame(bytes.Repeat([]byte{1}, 64), &wire))

	var buf bytes.Buffer
	err := c.ReadFrame(context.Background(), &wire, &buf)
	assert.ErrorIs(t, err, kverrors.ErrFrameTooLarge)
}

func TestReadFrameReturnsEOFOnEmptyStream(t *testing.T) {
	c := &frame.Codec{}
	var buf bytes.Buffer
	err := c.ReadFrame(context.Background(), &bytes.Buffer{}, &buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMultipleFramesShareOneBuffer(t *testing.T) {
	c := &frame.Codec{}
	var wire bytes.Buffer
	require.NoError(t, c.EncodeFrame([]byte("first"), &wire))
	require.NoError(t, c.EncodeFrame([]byte("second"), &wire))

	var buf bytes.Buffer
	require.NoError(t, c.ReadFrame(context.Background(), &wire, &buf))
	first, err := c.DecodeFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), first)

	require.NoError(t, c.ReadFrame(context.Background(), &wire, &buf))
	second, err := c.DecodeFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), second)
}
