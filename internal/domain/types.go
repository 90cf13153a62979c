package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Raw is an undecoded JSON object as received from the REST or socket
// boundary. Server payloads name the same concept in several ways, so the
// accessors take candidate keys in priority order and return the first hit.
type Raw map[string]any

// DecodeRaw decodes a JSON object.
func DecodeRaw(data []byte) (Raw, error) {
	var r Raw
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r Raw) lookup(keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String returns the first non-empty string value.
func (r Raw) String(keys ...string) string {
	for _, k := range keys {
		if s, ok := r[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ID returns an identifier that may arrive as a string, a number, or an
// object carrying its own id (a populated reference).
func (r Raw) ID(keys ...string) string {
	for _, k := range keys {
		if id := IDString(r[k]); id != "" {
			return id
		}
	}
	return ""
}

// Int returns the first value that is numeric or a numeric string.
func (r Raw) Int(keys ...string) (int, bool) {
	for _, k := range keys {
		switch v := r[k].(type) {
		case float64:
			return int(v), true
		case int:
			return v, true
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n), true
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// Bool returns the first boolean value.
func (r Raw) Bool(keys ...string) (bool, bool) {
	for _, k := range keys {
		if b, ok := r[k].(bool); ok {
			return b, true
		}
	}
	return false, false
}

// Time accepts RFC3339 strings and epoch milliseconds.
func (r Raw) Time(keys ...string) time.Time {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return t
			}
		case float64:
			return time.UnixMilli(int64(v))
		}
	}
	return time.Time{}
}

// Object returns the first nested object.
func (r Raw) Object(keys ...string) Raw {
	for _, k := range keys {
		if m, ok := r[k].(map[string]any); ok {
			return Raw(m)
		}
	}
	return nil
}

// Objects returns the first array value, keeping only object elements.
// Non-object elements are reported as bare ids.
func (r Raw) Objects(keys ...string) []Raw {
	v, ok := r.lookup(keys)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Raw, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case map[string]any:
			out = append(out, Raw(it))
		default:
			if id := IDString(it); id != "" {
				out = append(out, Raw{"id": id})
			}
		}
	}
	return out
}

// IDString renders an id value as a string.
func IDString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int:
		return strconv.Itoa(id)
	case json.Number:
		return id.String()
	case map[string]any:
		return Raw(id).ID("id", "_id")
	}
	return ""
}
