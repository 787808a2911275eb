package mattermost

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChannelList is the canonical channel envelope: item sequence plus total
// count, regardless of which shape the upstream answered in.
type ChannelList struct {
	Channels   []Channel `json:"channels"`
	TotalCount int       `json:"total_count"`
}

// UserList is the canonical user envelope.
type UserList struct {
	Users      []User `json:"users"`
	TotalCount int    `json:"total_count"`
}

// ShapeError reports an upstream listing payload that is neither a bare
// array nor the enveloped object expected for the resource.
type ShapeError struct {
	Resource string
	Got      string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected %s payload: got %s, want array or envelope", e.Resource, e.Got)
}

// NormalizeChannels folds either channel listing shape into the canonical
// envelope. Pure transform, no I/O.
func NormalizeChannels(raw json.RawMessage) (*ChannelList, error) {
	channels, total, err := normalizeList[Channel](raw, "channels")
	if err != nil {
		return nil, err
	}
	return &ChannelList{Channels: channels, TotalCount: total}, nil
}

// NormalizeUsers folds either user listing shape into the canonical
// envelope. Pure transform, no I/O.
func NormalizeUsers(raw json.RawMessage) (*UserList, error) {
	users, total, err := normalizeList[User](raw, "users")
	if err != nil {
		return nil, err
	}
	return &UserList{Users: users, TotalCount: total}, nil
}

// normalizeList decodes a listing payload in either shape. A bare array
// becomes items with total = len(items); an envelope must carry the
// resource-named field and keeps its own total_count when present.
func normalizeList[T any](raw json.RawMessage, resource string) ([]T, int, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, 0, &ShapeError{Resource: resource, Got: "empty body"}
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, 0, fmt.Errorf("decode %s array: %w", resource, err)
		}
		return items, len(items), nil

	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, 0, fmt.Errorf("decode %s envelope: %w", resource, err)
		}
		itemsRaw, ok := envelope[resource]
		if !ok {
			return nil, 0, &ShapeError{Resource: resource, Got: fmt.Sprintf("object without %q field", resource)}
		}
		var items []T
		if err := json.Unmarshal(itemsRaw, &items); err != nil {
			return nil, 0, fmt.Errorf("decode %s envelope items: %w", resource, err)
		}
		total := len(items)
		if countRaw, ok := envelope["total_count"]; ok {
			if err := json.Unmarshal(countRaw, &total); err != nil {
				return nil, 0, fmt.Errorf("decode %s total_count: %w", resource, err)
			}
		}
		return items, total, nil

	default:
		return nil, 0, &ShapeError{Resource: resource, Got: jsonTypeName(trimmed)}
	}
}

func jsonTypeName(b []byte) string {
	switch c := b[0]; {
	case c == '"':
		return "string"
	case c == 't' || c == 'f':
		return "boolean"
	case c == 'n':
		return "null"
	case c == '-' || ('0' <= c && c <= '9'):
		return "number"
	default:
		return "invalid JSON"
	}
}
