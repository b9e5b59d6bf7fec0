package config

import "encoding/json"

// marshalLine marshals v compactly and appends a trailing newline, for
// JSONL append-only files (config_audit.jsonl and friends).
func marshalLine(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
