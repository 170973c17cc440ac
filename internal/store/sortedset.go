package store

import (
	"math"
	"sort"
)

// ScoredMember is a member with its score in a sorted set.
type ScoredMember struct {
	Member string
	Score  float64
}

// ScoreBound is one end of a score interval.
type ScoreBound struct {
	Value     float64
	Exclusive bool
}

// Inclusive returns a closed bound at v.
func Inclusive(v float64) ScoreBound { return ScoreBound{Value: v} }

// NegInf and PosInf cover every score.
var (
	NegInf = ScoreBound{Value: math.Inf(-1)}
	PosInf = ScoreBound{Value: math.Inf(1)}
)

func inRange(score float64, min, max ScoreBound) bool {
	if score < min.Value || (min.Exclusive && score == min.Value) {
		return false
	}
	if score > max.Value || (max.Exclusive && score == max.Value) {
		return false
	}
	return true
}

// SortedSet orders unique members by score, then by member name.
// Ordered queries sort on demand.
type SortedSet struct {
	members map[string]float64
}

// NewSortedSet creates a new sorted set.
func NewSortedSet() *SortedSet {
	return &SortedSet{
		members: make(map[string]float64),
	}
}

// Add adds or updates members. Returns the number of new members.
func (z *SortedSet) Add(members ...ScoredMember) int {
	added := 0
	for _, m := range members {
		if _, exists := z.members[m.Member]; !exists {
			added++
		}
		z.members[m.Member] = m.Score
	}
	return added
}

// Score returns the score of a member.
func (z *SortedSet) Score(member string) (float64, bool) {
	score, exists := z.members[member]
	return score, exists
}

// IncrBy adds increment to the score of member, creating it at 0. It
// fails with ErrNotFloat when the result would be NaN (inf + -inf).
func (z *SortedSet) IncrBy(member string, increment float64) (float64, error) {
	score := z.members[member] + increment
	if math.IsNaN(score) {
		return 0, ErrNotFloat
	}
	z.members[member] = score
	return score, nil
}

// Remove removes members. Returns the number removed.
func (z *SortedSet) Remove(members ...string) int {
	removed := 0
	for _, m := range members {
		if _, exists := z.members[m]; exists {
			delete(z.members, m)
			removed++
		}
	}
	return removed
}

func (z *SortedSet) Card() int {
	return len(z.members)
}

// Rank returns the 0-based position of member in ascending order.
func (z *SortedSet) Rank(member string) (int, bool) {
	score, exists := z.members[member]
	if !exists {
		return -1, false
	}

	rank := 0
	for m, s := range z.members {
		if s < score || (s == score && m < member) {
			rank++
		}
	}
	return rank, true
}

// RevRank returns the 0-based position of member in descending order.
func (z *SortedSet) RevRank(member string) (int, bool) {
	rank, ok := z.Rank(member)
	if !ok {
		return -1, false
	}
	return len(z.members) - 1 - rank, true
}

// Count returns the number of members whose score lies in [min, max],
// honouring exclusive bounds.
func (z *SortedSet) Count(min, max ScoreBound) int {
	count := 0
	for _, score := range z.members {
		if inRange(score, min, max) {
			count++
		}
	}
	return count
}

// sorted returns all members ordered by score, then member.
func (z *SortedSet) sorted() []ScoredMember {
	result := make([]ScoredMember, 0, len(z.members))
	for member, score := range z.members {
		result = append(result, ScoredMember{Member: member, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score < result[j].Score
		}
		return result[i].Member < result[j].Member
	})
	return result
}

func reverse(members []ScoredMember) {
	for i, j := 0, len(members)-1; i < j; i, j = i+1, j-1 {
		members[i], members[j] = members[j], members[i]
	}
}

// rankWindow resolves negative ranks and clamps them to [0, n).
func rankWindow(start, stop, n int) (int, int, bool) {
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

// Range returns members by rank, inclusive, in ascending order.
func (z *SortedSet) Range(start, stop int) []ScoredMember {
	all := z.sorted()
	s, e, ok := rankWindow(start, stop, len(all))
	if !ok {
		return []ScoredMember{}
	}
	return all[s : e+1]
}

// RevRange returns members by rank, inclusive, in descending order.
func (z *SortedSet) RevRange(start, stop int) []ScoredMember {
	all := z.sorted()
	reverse(all)
	s, e, ok := rankWindow(start, stop, len(all))
	if !ok {
		return []ScoredMember{}
	}
	return all[s : e+1]
}

// RangeByScore returns members with scores in [min, max] in ascending
// order, skipping offset matches and returning at most count (count < 0
// means no limit).
func (z *SortedSet) RangeByScore(min, max ScoreBound, offset, count int) []ScoredMember {
	return window(z.sorted(), min, max, offset, count)
}

// RevRangeByScore is RangeByScore in descending order.
func (z *SortedSet) RevRangeByScore(min, max ScoreBound, offset, count int) []ScoredMember {
	all := z.sorted()
	reverse(all)
	return window(all, min, max, offset, count)
}

func window(ordered []ScoredMember, min, max ScoreBound, offset, count int) []ScoredMember {
	result := make([]ScoredMember, 0)
	skipped := 0
	for _, m := range ordered {
		if !inRange(m.Score, min, max) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if count >= 0 && len(result) >= count {
			break
		}
		result = append(result, m)
	}
	return result
}

// RemoveRangeByRank removes members by rank range, inclusive.
func (z *SortedSet) RemoveRangeByRank(start, stop int) int {
	removed := 0
	for _, m := range z.Range(start, stop) {
		delete(z.members, m.Member)
		removed++
	}
	return removed
}

// RemoveRangeByScore removes members with scores in [min, max].
func (z *SortedSet) RemoveRangeByScore(min, max ScoreBound) int {
	removed := 0
	for member, score := range z.members {
		if inRange(score, min, max) {
			delete(z.members, member)
			removed++
		}
	}
	return removed
}

// PopMin removes and returns up to count members with the lowest scores.
func (z *SortedSet) PopMin(count int) []ScoredMember {
	return z.pop(z.sorted(), count)
}

// PopMax removes and returns up to count members with the highest scores.
func (z *SortedSet) PopMax(count int) []ScoredMember {
	all := z.sorted()
	reverse(all)
	return z.pop(all, count)
}

func (z *SortedSet) pop(ordered []ScoredMember, count int) []ScoredMember {
	if count > len(ordered) {
		count = len(ordered)
	}
	if count <= 0 {
		return []ScoredMember{}
	}
	result := ordered[:count]
	for _, m := range result {
		delete(z.members, m.Member)
	}
	return result
}
