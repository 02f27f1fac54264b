package style

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// StableHash derives a cache key from prefix and params. Map keys are
// serialized in sorted order at every level, so two maps with the same
// contents always hash the same regardless of insertion order.
func StableHash(prefix string, params map[string]any) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("serialize cache key params: %w", err)
	}
	sum := sha256.Sum256(data)
	return prefix + ":" + hex.EncodeToString(sum[:16]), nil
}
