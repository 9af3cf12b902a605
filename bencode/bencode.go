// Package bencode is a thin wrapper around github.com/jackpal/bencode-go
// (the teacher's own bencode dependency, used in core/info.go to hash a
// torrent's info dict) that decodes a single bencode value into the
// generic Go shape callers walk by hand: map[string]interface{} for
// dicts, []interface{} for lists, int64 for integers, and string for byte
// strings. A Go string holds an arbitrary byte sequence with no UTF-8
// validation on either direction of a []byte<->string conversion, so a
// path containing non-UTF8 bytes survives the round trip unchanged.
package bencode

import (
	"bytes"
	"errors"
	"fmt"

	bencodego "github.com/jackpal/bencode-go"
)

// ErrMalformed wraps every error the underlying decoder returns.
var ErrMalformed = errors.New("bencode: malformed data")

// Decode parses the single bencode value at the start of data.
func Decode(data []byte) (interface{}, error) {
	var v interface{}
	if err := bencodego.Unmarshal(bytes.NewReader(data), &v); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	return v, nil
}

// Dict type-asserts v as a bencode dictionary.
func Dict(v interface{}) (map[string]interface{}, bool) {
	d, ok := v.(map[string]interface{})
	return d, ok
}

// List type-asserts v as a bencode list.
func List(v interface{}) ([]interface{}, bool) {
	l, ok := v.([]interface{})
	return l, ok
}

// Bytes type-asserts v as a bencode byte string, returned as raw bytes.
func Bytes(v interface{}) ([]byte, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return []byte(s), true
}

// Int type-asserts v as a bencode integer.
func Int(v interface{}) (int64, bool) {
	i, ok := v.(int64)
	return i, ok
}

// Get looks up key in a dict value, returning false if v isn't a dict or
// key is absent.
func Get(v interface{}, key string) (interface{}, bool) {
	d, ok := Dict(v)
	if !ok {
		return nil, false
	}
	e, ok := d[key]
	return e, ok
}
