package vault

import (
	"encoding/json"

	"github.com/kcube/kcube/internal/index"
	"github.com/kcube/kcube/internal/kcube"
)

// canonicalVersionHash computes SHA-256 of the canonical (sorted-keys)
// JSON serialization of {timestamp, message, manifest}, exactly as
// spec §3 defines a version's identity. Building the payload as nested
// map[string]any (rather than a struct) is what guarantees
// encoding/json sorts every level of keys alphabetically, matching
// Python's json.dumps(..., sort_keys=True).
func canonicalVersionHash(timestamp int64, message index.Message, manifest map[string]string) (string, error) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return "", err
	}
	var messageMap map[string]any
	if err := json.Unmarshal(messageBytes, &messageMap); err != nil {
		return "", err
	}

	payload := map[string]any{
		"timestamp": timestamp,
		"message":   messageMap,
		"manifest":  manifest,
	}

	canonical, err := kcube.CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return kcube.HashBlob(canonical), nil
}
