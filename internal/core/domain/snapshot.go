package domain

import (
	"encoding/json"
	"fmt"
)

// MarshalSnapshot encodes a snapshot as one JSON object with an array per
// collection. Every collection key is written, empty ones as [].
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	out := make(map[string][]VectorDocument, len(AllCollections()))
	for _, c := range AllCollections() {
		docs := s[c]
		if docs == nil {
			docs = []VectorDocument{}
		}
		out[c.String()] = docs
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a snapshot, requiring every collection key.
// Unknown keys are rejected so a typo cannot silently drop data.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %w", ErrInvalidInput, err)
	}

	for key := range raw {
		if !Collection(key).IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, key)
		}
	}

	s := make(Snapshot, len(AllCollections()))
	for _, c := range AllCollections() {
		msg, ok := raw[c.String()]
		if !ok {
			return nil, fmt.Errorf("%w: snapshot is missing collection %q", ErrInvalidInput, c)
		}
		var docs []VectorDocument
		if err := json.Unmarshal(msg, &docs); err != nil {
			return nil, fmt.Errorf("%w: decode collection %q: %w", ErrInvalidInput, c, err)
		}
		if docs == nil {
			docs = []VectorDocument{}
		}
		seen := make(map[string]bool, len(docs))
		for _, d := range docs {
			if d.ID == "" {
				return nil, fmt.Errorf("%w: collection %q has a document without id", ErrInvalidInput, c)
			}
			if seen[d.ID] {
				return nil, fmt.Errorf("%w: collection %q has duplicate id %q", ErrInvalidInput, c, d.ID)
			}
			seen[d.ID] = true
		}
		s[c] = docs
	}
	return s, nil
}

// MetaInt reads an integer metadata value written either as an int or,
// after a JSON round trip, as a float64.
func MetaInt(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// MetaStrings reads a string list metadata value written either as []string
// or, after a JSON round trip, as []any.
func MetaStrings(meta map[string]any, key string) []string {
	switch v := meta[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
