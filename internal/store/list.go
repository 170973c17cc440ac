package store

import "bytes"

// List is an ordered sequence of byte strings backed by a slice.
// Push and pop at the tail are O(1); everything else is O(N).
type List struct {
	items [][]byte
}

// NewList creates a new empty List.
func NewList() *List {
	return &List{
		items: make([][]byte, 0),
	}
}

// LPush prepends values one at a time, so LPush(a, b, c) leaves c at the
// head. Returns the new length of the list.
func (l *List) LPush(values ...[]byte) int {
	newItems := make([][]byte, len(values)+len(l.items))
	for i, v := range values {
		newItems[len(values)-1-i] = cloneBytes(v)
	}
	copy(newItems[len(values):], l.items)
	l.items = newItems
	return len(l.items)
}

// RPush appends values. Returns the new length of the list.
func (l *List) RPush(values ...[]byte) int {
	for _, v := range values {
		l.items = append(l.items, cloneBytes(v))
	}
	return len(l.items)
}

// LPop removes and returns the first element.
func (l *List) LPop() ([]byte, bool) {
	if len(l.items) == 0 {
		return nil, false
	}
	val := l.items[0]
	l.items[0] = nil
	l.items = l.items[1:]
	return val, true
}

// RPop removes and returns the last element.
func (l *List) RPop() ([]byte, bool) {
	if len(l.items) == 0 {
		return nil, false
	}
	val := l.items[len(l.items)-1]
	l.items[len(l.items)-1] = nil
	l.items = l.items[:len(l.items)-1]
	return val, true
}

// Len returns the number of elements in the list.
func (l *List) Len() int {
	return len(l.items)
}

// Index returns the element at index. Negative indices count from the
// end (-1 is the last element).
func (l *List) Index(index int) ([]byte, bool) {
	idx := l.resolveIndex(index)
	if idx < 0 || idx >= len(l.items) {
		return nil, false
	}
	return l.items[idx], true
}

// Set replaces the element at index. It reports false when index is out
// of range.
func (l *List) Set(index int, value []byte) bool {
	idx := l.resolveIndex(index)
	if idx < 0 || idx >= len(l.items) {
		return false
	}
	l.items[idx] = cloneBytes(value)
	return true
}

// Range returns elements from start to stop inclusive. Out-of-range
// bounds are clamped.
func (l *List) Range(start, stop int) [][]byte {
	s, e, ok := l.clamp(start, stop)
	if !ok {
		return [][]byte{}
	}
	result := make([][]byte, e-s+1)
	copy(result, l.items[s:e+1])
	return result
}

// Insert puts value before or after the first element equal to pivot.
// Returns the new length, or -1 if pivot was not found.
func (l *List) Insert(before bool, pivot, value []byte) int {
	for i, item := range l.items {
		if bytes.Equal(item, pivot) {
			pos := i
			if !before {
				pos = i + 1
			}
			l.items = append(l.items, nil)
			copy(l.items[pos+1:], l.items[pos:])
			l.items[pos] = cloneBytes(value)
			return len(l.items)
		}
	}
	return -1
}

// Rem removes occurrences of value:
//   - count > 0: the first count, head to tail
//   - count < 0: the last |count|, tail to head
//   - count == 0: all of them
//
// Returns the number of removed elements.
func (l *List) Rem(count int, value []byte) int {
	limit := count
	if limit < 0 {
		limit = -limit
	}

	keep := make([]bool, len(l.items))
	removed := 0
	visit := func(i int) {
		if bytes.Equal(l.items[i], value) && (limit == 0 || removed < limit) {
			removed++
			return
		}
		keep[i] = true
	}
	if count >= 0 {
		for i := range l.items {
			visit(i)
		}
	} else {
		for i := len(l.items) - 1; i >= 0; i-- {
			visit(i)
		}
	}
	if removed == 0 {
		return 0
	}

	newItems := make([][]byte, 0, len(l.items)-removed)
	for i, item := range l.items {
		if keep[i] {
			newItems = append(newItems, item)
		}
	}
	l.items = newItems
	return removed
}

// Trim keeps only the elements between start and stop inclusive.
func (l *List) Trim(start, stop int) {
	s, e, ok := l.clamp(start, stop)
	if !ok {
		l.items = l.items[:0]
		return
	}
	l.items = l.items[s : e+1]
}

// clamp resolves negative indices and clips them to the list bounds.
func (l *List) clamp(start, stop int) (int, int, bool) {
	length := len(l.items)
	s := l.resolveIndex(start)
	e := l.resolveIndex(stop)
	if s < 0 {
		s = 0
	}
	if e >= length {
		e = length - 1
	}
	if s > e || s >= length {
		return 0, 0, false
	}
	return s, e, true
}

func (l *List) resolveIndex(index int) int {
	if index < 0 {
		return len(l.items) + index
	}
	return index
}
