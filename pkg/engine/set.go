package engine

import (
	"encoding/json"
	"fmt"
)

// Set is an insertion-ordered set of JSON-serializable values.
// Elements are compared by their canonical JSON encoding.
type Set struct {
	items []interface{}
	index map[string]struct{}
}

// NewSet creates a set holding the given values in order.
func NewSet(values ...interface{}) *Set {
	s := &Set{index: make(map[string]struct{}, len(values))}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v and reports whether it was not already present.
func (s *Set) Add(v interface{}) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	key := setKey(v)
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// Has reports whether v is in the set.
func (s *Set) Has(v interface{}) bool {
	_, ok := s.index[setKey(v)]
	return ok
}

// Len returns the number of elements.
func (s *Set) Len() int {
	return len(s.items)
}

// Values returns the elements in insertion order.
func (s *Set) Values() []interface{} {
	out := make([]interface{}, len(s.items))
	copy(out, s.items)
	return out
}

// Union adds every element of other to s.
func (s *Set) Union(other *Set) {
	for _, v := range other.items {
		s.Add(v)
	}
}

// MarshalJSON encodes the set as a JSON array.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// MarshalYAML encodes the set as a YAML sequence.
func (s *Set) MarshalYAML() (interface{}, error) {
	return s.Values(), nil
}

func setKey(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}
