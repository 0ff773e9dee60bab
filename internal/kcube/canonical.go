package kcube

import (
	"bytes"
	"encoding/json"
)

// CanonicalJSON serializes v as JSON with map keys sorted, matching the
// canonical form version hashing relies on (encoding/json already sorts
// map[string]X keys; this just centralizes the one spot that forbids
// HTML-escaping so hashes are stable regardless of content).
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; trim it so the
	// hashed bytes match a plain json.Marshal shape.
	b := buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	return b, nil
}
