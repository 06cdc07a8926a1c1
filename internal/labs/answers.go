package labs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// fields is a loosely typed view of a JSON answers object. Getters return
// zero values for missing or mistyped fields so a bad field never fails the
// whole computation.
type fields map[string]any

func decodeFields(raw []byte) (fields, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return fields{}, nil
	}
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswers, err)
	}
	if f == nil {
		return fields{}, nil
	}
	return f, nil
}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func (f fields) boolean(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1", "on":
			return true
		}
	case float64:
		return v != 0
	}
	return false
}

func (f fields) strs(key string) []string {
	switch v := f[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{strings.TrimSpace(v)}
	default:
		return nil
	}
}

func (f fields) integer(key string) int {
	switch v := f[key].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscan(strings.TrimSpace(v), &n); err == nil {
			return n
		}
	}
	return 0
}

// sub returns a nested object, or an empty one.
func (f fields) sub(key string) fields {
	if m, ok := f[key].(map[string]any); ok {
		return fields(m)
	}
	return fields{}
}
