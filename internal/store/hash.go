package store

import (
	"math"
	"sort"
	"strconv"
)

// Hash maps field names to byte-string values.
type Hash struct {
	fields map[string][]byte
}

// HashFieldValue is a field-value pair in a hash.
type HashFieldValue struct {
	Field string
	Value []byte
}

// NewHash creates a new empty Hash.
func NewHash() *Hash {
	return &Hash{
		fields: make(map[string][]byte),
	}
}

// Set sets field to value. Returns true if the field is new.
func (h *Hash) Set(field string, value []byte) bool {
	_, existed := h.fields[field]
	h.fields[field] = cloneBytes(value)
	return !existed
}

// SetNX sets field only if it does not exist yet.
func (h *Hash) SetNX(field string, value []byte) bool {
	if _, exists := h.fields[field]; exists {
		return false
	}
	h.fields[field] = cloneBytes(value)
	return true
}

// Get returns the value of a field.
func (h *Hash) Get(field string) ([]byte, bool) {
	val, exists := h.fields[field]
	return val, exists
}

// Del removes fields. Returns the number of fields removed.
func (h *Hash) Del(fields ...string) int {
	removed := 0
	for _, f := range fields {
		if _, exists := h.fields[f]; exists {
			delete(h.fields, f)
			removed++
		}
	}
	return removed
}

func (h *Hash) Exists(field string) bool {
	_, exists := h.fields[field]
	return exists
}

func (h *Hash) Len() int {
	return len(h.fields)
}

// GetAll returns all pairs ordered by field name.
func (h *Hash) GetAll() []HashFieldValue {
	result := make([]HashFieldValue, 0, len(h.fields))
	for _, field := range h.Keys() {
		result = append(result, HashFieldValue{Field: field, Value: h.fields[field]})
	}
	return result
}

// Keys returns the field names in sorted order.
func (h *Hash) Keys() []string {
	keys := make([]string, 0, len(h.fields))
	for field := range h.fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	return keys
}

// Vals returns the values ordered by their field names.
func (h *Hash) Vals() [][]byte {
	vals := make([][]byte, 0, len(h.fields))
	for _, field := range h.Keys() {
		vals = append(vals, h.fields[field])
	}
	return vals
}

// IncrBy adds delta to the integer stored in field, treating a missing
// field as 0.
func (h *Hash) IncrBy(field string, delta int64) (int64, error) {
	var current int64
	if val, exists := h.fields[field]; exists {
		parsed, err := ParseInt(val)
		if err != nil {
			return 0, err
		}
		current = parsed
	}

	newVal, err := AddInt(current, delta)
	if err != nil {
		return 0, err
	}
	h.fields[field] = FormatInt(newVal)
	return newVal, nil
}

// IncrByFloat adds delta to the float stored in field. A result that is
// not finite is rejected and the field is left unchanged.
func (h *Hash) IncrByFloat(field string, delta float64) (float64, error) {
	var current float64
	if val, exists := h.fields[field]; exists {
		parsed, err := ParseFloat(val)
		if err != nil {
			return 0, err
		}
		current = parsed
	}

	newVal := current + delta
	if math.IsNaN(newVal) || math.IsInf(newVal, 0) {
		return 0, ErrNotFloat
	}
	h.fields[field] = []byte(strconv.FormatFloat(newVal, 'f', -1, 64))
	return newVal, nil
}
