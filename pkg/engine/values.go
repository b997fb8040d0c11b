package engine

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TypeOf returns a short, user-facing name of the value's type.
func TypeOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int, int64, float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case *Set:
		return "set"
	case map[string]interface{}:
		return "object"
	case Callable:
		return "function"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// AsMapping returns v as a mapping if it is one.
func AsMapping(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckSerializable returns an error if v cannot be encoded as JSON.
func CheckSerializable(v interface{}) error {
	if path, ok := findCallable(v, nil); ok {
		if len(path) == 0 {
			return fmt.Errorf("value is a function")
		}
		return fmt.Errorf("value contains a function at %v", path)
	}
	if _, err := json.Marshal(v); err != nil {
		return err
	}
	return nil
}

func findCallable(v interface{}, path []string) ([]string, bool) {
	switch val := v.(type) {
	case Callable:
		return path, true
	case []interface{}:
		for i, item := range val {
			if p, ok := findCallable(item, append(path, fmt.Sprintf("[%d]", i))); ok {
				return p, true
			}
		}
	case *Set:
		for _, item := range val.items {
			if p, ok := findCallable(item, append(path, "[set]")); ok {
				return p, true
			}
		}
	case map[string]interface{}:
		for _, k := range SortedKeys(val) {
			if p, ok := findCallable(val[k], append(path, k)); ok {
				return p, true
			}
		}
	}
	return nil, false
}
