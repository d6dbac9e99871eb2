package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Fields wraps a structured tool argument with lenient typed accessors.
// LLMs write numbers as strings and booleans as words, so each accessor
// accepts the common spellings.
type Fields map[string]any

// Has reports whether key is present, even with a null value.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// String returns the value of key as text. Numbers and booleans are
// formatted; objects and arrays are encoded as JSON.
func (f Fields) String(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(data), true
	}
}

// StringOr returns the text value of key, or def when absent or blank.
func (f Fields) StringOr(key, def string) string {
	if s, ok := f.String(key); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return def
}

// Int returns key as an integer. Whole floats and numeric strings convert.
func (f Fields) Int(key string) (int64, bool) {
	switch t := f[key].(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Bool returns key as a boolean. Accepts true/false, yes/no, taken/skipped and 1/0.
func (f Fields) Bool(key string) (bool, bool) {
	switch t := f[key].(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "taken":
			return true, true
		case "false", "no", "n", "0", "skipped", "missed":
			return false, true
		}
	}
	return false, false
}

// Action returns the lowercased "action" field.
func (f Fields) Action() string {
	s, _ := f.String("action")
	return strings.ToLower(strings.TrimSpace(s))
}

// DecodeFields parses an LLM reply as a JSON object. Markdown code fences
// around the object are tolerated.
func DecodeFields(text string) (Fields, error) {
	trimmed := stripCodeFence(strings.TrimSpace(text))
	var out map[string]any
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return Fields(out), nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
