package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Policy decides which destinations may be cached
type Policy struct {
	disabled map[string]bool
}

// NewPolicy creates a Policy that excludes the given destination paths
func NewPolicy(disabledPaths []string) *Policy {
	disabled := make(map[string]bool, len(disabledPaths))
	for _, p := range disabledPaths {
		disabled[normalizePath(p)] = true
	}
	return &Policy{disabled: disabled}
}

// IsCacheable returns false for destinations listed in disabledPaths
func (p *Policy) IsCacheable(destination string) bool {
	if p == nil {
		return true
	}
	return !p.disabled[normalizePath(destination)]
}

func normalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return "/" + strings.Trim(path, "/")
}

// GenerateCacheKey builds a key from the destination and a hash of the normalized payload.
// Payloads that differ only in object key order or whitespace share a key.
func GenerateCacheKey(destination string, payload []byte) string {
	hash := sha256.Sum256(normalizePayload(payload))
	return destination + ":" + hex.EncodeToString(hash[:8])
}

// normalizePayload re-encodes JSON with sorted object keys; invalid JSON is hashed as-is
func normalizePayload(payload []byte) []byte {
	if len(payload) == 0 {
		return []byte("null")
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var data interface{}
	if err := dec.Decode(&data); err != nil || dec.More() {
		return payload
	}

	// encoding/json writes map keys in sorted order
	result, err := json.Marshal(data)
	if err != nil {
		return payload
	}
	return result
}
