package chain

import (
	"encoding/json"
	"fmt"
)

// NormalizeFields converts a free-form map to its JSON storage form, so that the
// in-memory record hashes exactly like the one read back from storage.
func NormalizeFields(fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize fields: %w", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("failed to normalize fields: %w", err)
	}
	return normalized, nil
}
