package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// ExtractJSON recovers a JSON object from free-form model text: code fences
// are stripped, then the outermost brace pair is taken.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
	}
	if json.Valid([]byte(s)) && strings.HasPrefix(s, "{") {
		return s, nil
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found", ErrParse)
	}
	s = s[start : end+1]
	if !json.Valid([]byte(s)) {
		return "", fmt.Errorf("%w: invalid JSON object", ErrParse)
	}
	return s, nil
}

// DecodeObject extracts and decodes a JSON object into a generic map.
func DecodeObject(raw string) (map[string]any, error) {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return out, nil
}

// Field helpers for tolerant parsing of model objects. Each looks up the
// first present key, case-insensitively.

// StringField returns the first non-empty string under any of keys.
func StringField(obj map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := lookup(obj, k); ok {
			switch t := v.(type) {
			case string:
				if s := strings.TrimSpace(t); s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}

// NumberField returns the first numeric value under any of keys. Numeric
// strings such as "0.8" or "80%" are accepted.
func NumberField(obj map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := lookup(obj, k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t, true
		case json.Number:
			if f, err := t.Float64(); err == nil {
				return f, true
			}
		case string:
			s := strings.TrimSpace(t)
			pct := strings.HasSuffix(s, "%")
			s = strings.TrimSuffix(s, "%")
			var f float64
			if _, err := fmt.Sscanf(s, "%g", &f); err == nil {
				if pct {
					f /= 100
				}
				return f, true
			}
		}
	}
	return 0, false
}

// StringsField returns a string list under any of keys; a single string is
// treated as a one-element list.
func StringsField(obj map[string]any, keys ...string) []string {
	for _, k := range keys {
		v, ok := lookup(obj, k)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case []any:
			out := make([]string, 0, len(t))
			for _, item := range t {
				switch it := item.(type) {
				case string:
					if s := strings.TrimSpace(it); s != "" {
						out = append(out, s)
					}
				case map[string]any:
					if s, ok := StringField(it, "text", "claim", "statement"); ok {
						out = append(out, s)
					}
				}
			}
			return out
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return []string{s}
			}
		}
	}
	return nil
}

func lookup(obj map[string]any, key string) (any, bool) {
	if v, ok := obj[key]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
