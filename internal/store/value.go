// Package store holds the value types a key can carry. None of them are
// safe for concurrent use; the engine serialises access.
package store

import (
	"errors"
	"math"
	"strconv"
)

var (
	ErrNotInteger = errors.New("store: value is not an integer")
	ErrNotFloat   = errors.New("store: value is not a valid float")
	ErrOverflow   = errors.New("store: increment or decrement would overflow")
)

// Kind identifies the type of a Value.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindList
	KindHash
	KindSet
	KindZSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindHash:
		return "hash"
	case KindSet:
		return "set"
	case KindZSet:
		return "zset"
	}
	return "none"
}

// Value is the closed set of things a key maps to: String, *List, *Hash,
// *Set and *SortedSet.
type Value interface {
	Kind() Kind
	value()
}

// String is a binary-safe byte string.
type String []byte

func (String) Kind() Kind { return KindString }
func (String) value()     {}

func (*List) Kind() Kind { return KindList }
func (*List) value()     {}

func (*Hash) Kind() Kind { return KindHash }
func (*Hash) value()     {}

func (*Set) Kind() Kind { return KindSet }
func (*Set) value()     {}

func (*SortedSet) Kind() Kind { return KindZSet }
func (*SortedSet) value()     {}

// ParseInt parses a strict base-10 int64 (no spaces, no '+', no leading
// zeros beyond "0").
func ParseInt(b []byte) (int64, error) {
	if len(b) == 0 || len(b) > 20 {
		return 0, ErrNotInteger
	}
	if len(b) > 1 && b[0] == '0' || len(b) > 2 && b[0] == '-' && b[1] == '0' {
		return 0, ErrNotInteger
	}
	if b[0] == '+' {
		return 0, ErrNotInteger
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}

func FormatInt(n int64) []byte {
	return strconv.AppendInt(nil, n, 10)
}

// ParseFloat parses a float, accepting "inf", "+inf" and "-inf". NaN is
// rejected.
func ParseFloat(b []byte) (float64, error) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(f) {
		return 0, ErrNotFloat
	}
	return f, nil
}

// AddInt returns a+b or ErrOverflow.
func AddInt(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOverflow
	}
	return sum, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
