package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
)

func TestParseValueBareLiteralIsString(t *testing.T) {
	v, err := parseValue("hello")
	require.NoError(t, err)
	assert.Equal(t, kvpb.StringValue("hello"), v)
}

func TestParseValueIntegerPrefix(t *testing.T) {
	v, err := parseValue("i:42")
	require.NoError(t, err)
	assert.Equal(t, kvpb.IntValue(42), v)
}

func TestParseValueFloatPrefix(t *testing.T) {
	v, err := parseValue("f:3.14")
	require.NoError(t, err)
	assert.Equal(t, kvpb.FloatValue(3.14), v)
}

func TestParseValueBoolPrefix(t *testing.T) {
	v, err := parseValue("b:true")
	require.NoError(t, err)
	assert.Equal(t, kvpb.BoolValue(true), v)
}

func TestParseValueHexPrefix(t *testing.T) {
	v, err := parseValue("x:deadbeef")
	require.NoError(t, err)
	assert.Equal(t, kvpb.BinaryValue([]byte{0xde, 0xad, 0xbe, 0xef}), v)
}

func TestParseValueUnknownPrefixFallsBackToString(t *testing.T) {
	v, err := parseValue("z:notaknowntype")
	require.NoError(t, err)
	assert.Equal(t, kvpb.StringValue("z:notaknowntype"), v)
}

func TestParseValueInvalidIntegerReturnsError(t *testing.T) {
	_, err := parseValue("i:notanumber")
	assert.Error(t, err)
}

func TestParseValueInvalidHexReturnsError(t *testing.T) {
	_, err := parseValue("x:zz")
	assert.Error(t, err)
}
