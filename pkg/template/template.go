// Package template resolves {{dotted.path}} placeholders inside action
// configuration against a run's context. It is a pure substitution over a
// restricted path grammar; no expression evaluation of any kind.
package template

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Lookup resolves a dotted path against nested maps and slices. Numeric
// segments index into slices. The second return is false when any segment
// is missing.
func Lookup(data map[string]any, path string) (any, bool) {
	var current any = data

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// Resolve substitutes every {{dotted.path}} placeholder in input with the
// value resolved from data. Unresolved placeholders render as the empty
// string; resolution never fails.
func Resolve(data map[string]any, input string) string {
	return placeholder.ReplaceAllStringFunc(input, func(match string) string {
		path := strings.TrimSpace(strings.Trim(match, "{}"))

		value, ok := Lookup(data, path)
		if !ok || value == nil {
			return ""
		}

		return Stringify(value)
	})
}

// ResolveConfig returns a copy of config with every string value, including
// strings nested inside maps and slices, template-resolved against data.
func ResolveConfig(data, config map[string]any) map[string]any {
	resolved := make(map[string]any, len(config))
	for key, value := range config {
		resolved[key] = resolveValue(data, value)
	}

	return resolved
}

func resolveValue(data map[string]any, value any) any {
	switch v := value.(type) {
	case string:
		return Resolve(data, v)
	case map[string]any:
		return ResolveConfig(data, v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveValue(data, item)
		}

		return out
	default:
		return value
	}
}

// Stringify renders a resolved value for interpolation. Scalars keep their
// natural textual form; composite values render as JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}

		return string(encoded)
	}
}
