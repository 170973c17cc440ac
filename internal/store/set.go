package store

import (
	"math/rand/v2"
	"sort"
)

// Set is an unordered collection of unique members.
type Set struct {
	members map[string]struct{}
}

// NewSet creates a new empty Set.
func NewSet() *Set {
	return &Set{
		members: make(map[string]struct{}),
	}
}

// Add adds members. Returns how many were not already present.
func (s *Set) Add(members ...string) int {
	added := 0
	for _, m := range members {
		if _, exists := s.members[m]; !exists {
			s.members[m] = struct{}{}
			added++
		}
	}
	return added
}

// Rem removes members. Returns how many were present.
func (s *Set) Rem(members ...string) int {
	removed := 0
	for _, m := range members {
		if _, exists := s.members[m]; exists {
			delete(s.members, m)
			removed++
		}
	}
	return removed
}

func (s *Set) IsMember(member string) bool {
	_, exists := s.members[member]
	return exists
}

func (s *Set) Card() int {
	return len(s.members)
}

// Members returns all members in sorted order.
func (s *Set) Members() []string {
	result := make([]string, 0, len(s.members))
	for m := range s.members {
		result = append(result, m)
	}
	sort.Strings(result)
	return result
}

// RandMember returns random members without removing them.
//   - count > 0: up to count distinct members
//   - count < 0: exactly |count| members, possibly repeated
func (s *Set) RandMember(count int) []string {
	if len(s.members) == 0 || count == 0 {
		return []string{}
	}

	members := s.Members()
	if count > 0 {
		if count > len(members) {
			count = len(members)
		}
		rand.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		return members[:count]
	}

	result := make([]string, -count)
	for i := range result {
		result[i] = members[rand.IntN(len(members))]
	}
	return result
}

// Pop removes and returns up to count random members.
func (s *Set) Pop(count int) []string {
	if len(s.members) == 0 || count <= 0 {
		return []string{}
	}

	popped := s.RandMember(count)
	for _, m := range popped {
		delete(s.members, m)
	}
	return popped
}

// Inter returns the members of s present in every other set, sorted. A
// nil set counts as empty.
func (s *Set) Inter(others ...*Set) []string {
	result := make([]string, 0)
	for _, member := range s.Members() {
		inAll := true
		for _, other := range others {
			if other == nil || !other.IsMember(member) {
				inAll = false
				break
			}
		}
		if inAll {
			result = append(result, member)
		}
	}
	return result
}

// Union returns the members of s and every other set, sorted.
func (s *Set) Union(others ...*Set) []string {
	union := NewSet()
	for m := range s.members {
		union.members[m] = struct{}{}
	}
	for _, other := range others {
		if other == nil {
			continue
		}
		for m := range other.members {
			union.members[m] = struct{}{}
		}
	}
	return union.Members()
}

// Diff returns the members of s absent from every other set, sorted.
func (s *Set) Diff(others ...*Set) []string {
	result := make([]string, 0)
	for _, member := range s.Members() {
		inOther := false
		for _, other := range others {
			if other != nil && other.IsMember(member) {
				inOther = true
				break
			}
		}
		if !inOther {
			result = append(result, member)
		}
	}
	return result
}
