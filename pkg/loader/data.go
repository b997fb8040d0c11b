package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/plusconf/plusconf/pkg/engine"
)

// SetKey marks a set literal in data formats: {"$set": [...]}.
const SetKey = "$set"

func parseYAML(src []byte) (interface{}, error) {
	var doc interface{}
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseJSON(src []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(src)))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return doc, nil
}

// normalize converts decoded documents into the value model of engine.Exports.
func normalize(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, bool, string, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer too large")
		}
		return int64(val), nil
	case float32:
		return float64(val), nil
	case time.Time:
		return val.Format(time.RFC3339), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	case []interface{}:
		list := make([]interface{}, len(val))
		for i, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			list[i] = n
		}
		return list, nil
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key must be a string, got %v", k)
			}
			m[key] = item
		}
		return normalize(m)
	case map[string]interface{}:
		if items, ok := val[SetKey]; ok && len(val) == 1 {
			list, ok := items.([]interface{})
			if !ok {
				return nil, fmt.Errorf("%s must be a list, got %s", SetKey, engine.TypeOf(items))
			}
			normalized, err := normalize(list)
			if err != nil {
				return nil, err
			}
			return engine.NewSet(normalized.([]interface{})...), nil
		}
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = n
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}
