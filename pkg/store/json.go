package store

import (
	"encoding/json"
	"fmt"
)

func marshalValue(key string, value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", key, err)
	}
	return raw, nil
}

func jsonRaw(data []byte) json.RawMessage {
	return append(json.RawMessage(nil), data...)
}
