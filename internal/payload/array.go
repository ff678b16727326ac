package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmpty is returned when a body holds no JSON value at all
var ErrEmpty = errors.New("empty payload")

// ErrNotArray is returned when a combined response is not a JSON array
var ErrNotArray = errors.New("payload is not a JSON array")

// JoinArray wraps already-serialized payloads into a single JSON array.
// Payloads are copied verbatim, they are never decoded or re-encoded.
func JoinArray(items [][]byte) []byte {
	size := 2
	for _, item := range items {
		size += len(item) + 1
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(bytes.TrimSpace(item))
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// SplitArray parses a JSON array and returns its elements as compact JSON values
func SplitArray(data []byte) ([]json.RawMessage, error) {
	data = trimWhitespace(data)
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if data[0] != '[' {
		return nil, ErrNotArray
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("failed to parse array: %w", err)
	}
	for i, el := range elements {
		compact, err := Compact(el)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		elements[i] = compact
	}
	return elements, nil
}

// IsArray returns true if the body looks like a JSON array
func IsArray(data []byte) bool {
	data = trimWhitespace(data)
	return len(data) > 0 && data[0] == '['
}

// Compact returns the compact serialization of a single JSON value
func Compact(raw json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("failed to compact element: %w", err)
	}
	return buf.Bytes(), nil
}

// Valid reports whether data is a single well-formed JSON value
func Valid(data []byte) bool {
	if len(trimWhitespace(data)) == 0 {
		return false
	}
	return json.Valid(data)
}

// trimWhitespace removes leading whitespace from byte slice
func trimWhitespace(data []byte) []byte {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return data[i:]
		}
	}
	return data[len(data):]
}
