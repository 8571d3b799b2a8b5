package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
)

// parseValue interprets a CLI-supplied literal as a Value. Prefix forms
// let callers pick a type explicitly (i:42, f:3.14, b:true, x:deadbeef);
// a bare literal is always a string.
func parseValue(raw string) (kvpb.Value, error) {
	typ, rest, hasPrefix := strings.Cut(raw, ":")
	if !hasPrefix {
		return kvpb.StringValue(raw), nil
	}

	switch typ {
	case "i":
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return kvpb.Value{}, fmt.Errorf("parse integer value %q: %w", rest, err)
		}
		return kvpb.IntValue(n), nil
	case "f":
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return kvpb.Value{}, fmt.Errorf("parse float value %q: %w", rest, err)
		}
		return kvpb.FloatValue(f), nil
	case "b":
		bv, err := strconv.ParseBool(rest)
		if err != nil {
			return kvpb.Value{}, fmt.Errorf("parse bool value %q: %w", rest, err)
		}
		return kvpb.BoolValue(bv), nil
	case "x":
		b, err := hex.DecodeString(rest)
		if err != nil {
			return kvpb.Value{}, fmt.Errorf("parse hex value %q: %w", rest, err)
		}
		return kvpb.BinaryValue(b), nil
	default:
		return kvpb.StringValue(raw), nil
	}
}
