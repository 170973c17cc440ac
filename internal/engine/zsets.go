package engine

import (
	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/store"
)

func init() {
	registerCommand("zadd", execZAdd, -4)
	registerCommand("zincrby", execZIncrBy, 4)
	registerCommand("zrem", execZRem, -3)
	registerCommand("zscore", execZScore, 3)
	registerCommand("zcard", execZCard, 2)
	registerCommand("zrank", execZRank, 3)
	registerCommand("zrevrank", execZRevRank, 3)
	registerCommand("zrange", execZRange, -4)
	registerCommand("zrevrange", execZRevRange, -4)
	registerCommand("zrangebyscore", execZRangeByScore, -4)
	registerCommand("zrevrangebyscore", execZRevRangeByScore, -4)
	registerCommand("zcount", execZCount, 4)
	registerCommand("zpopmin", execZPopMin, -2)
	registerCommand("zpopmax", execZPopMax, -2)
	registerCommand("zremrangebyrank", execZRemRangeByRank, 4)
	registerCommand("zremrangebyscore", execZRemRangeByScore, 4)
}

// execZAdd implements zadd key [NX|XX] [CH] score member [score member ...].
// Every score is parsed before anything is written.
func execZAdd(e *Engine, args [][]byte) (protocol.Reply, error) {
	var nx, xx, ch bool
	i := 1
flags:
	for ; i < len(args); i++ {
		switch {
		case equalFold(args[i], "nx"):
			nx = true
		case equalFold(args[i], "xx"):
			xx = true
		case equalFold(args[i], "ch"):
			ch = true
		default:
			break flags
		}
	}
	pairs := args[i:]
	if len(pairs) == 0 || len(pairs)%2 != 0 || (nx && xx) {
		return nil, ErrSyntax
	}

	members := make([]store.ScoredMember, 0, len(pairs)/2)
	for j := 0; j < len(pairs); j += 2 {
		score, err := parseFloat(pairs[j])
		if err != nil {
			return nil, err
		}
		members = append(members, store.ScoredMember{Member: string(pairs[j+1]), Score: score})
	}

	key := string(args[0])
	z, err := getOrCreate(e, key, store.NewSortedSet)
	if err != nil {
		return nil, err
	}
	defer e.dropIfEmpty(key)

	// Members are applied in order so a repeated member counts once as
	// added and then as an update.
	var added, changed int64
	for _, m := range members {
		old, exists := z.Score(m.Member)
		switch {
		case nx && exists, xx && !exists:
			continue
		case !exists:
			added++
			changed++
		case old != m.Score:
			changed++
		}
		z.Add(m)
	}
	if ch {
		return protocol.Integer(changed), nil
	}
	return protocol.Integer(added), nil
}

func execZIncrBy(e *Engine, args [][]byte) (protocol.Reply, error) {
	delta, err := parseFloat(args[1])
	if err != nil {
		return nil, err
	}
	key := string(args[0])
	z, err := getOrCreate(e, key, store.NewSortedSet)
	if err != nil {
		return nil, err
	}
	defer e.dropIfEmpty(key)
	score, err := z.IncrBy(string(args[2]), delta)
	if err != nil {
		return nil, ErrNotFinite
	}
	return protocol.Float(score), nil
}

func execZRem(e *Engine, args [][]byte) (protocol.Reply, error) {
	key := string(args[0])
	z, ok, err := lookupAs[*store.SortedSet](e, key)
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	removed := z.Remove(keyStrings(args[1:])...)
	e.dropIfEmpty(key)
	return protocol.Integer(int64(removed)), nil
}

func execZScore(e *Engine, args [][]byte) (protocol.Reply, error) {
	z, ok, err := lookupAs[*store.SortedSet](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.NullBulk(), nil
	}
	score, ok := z.Score(string(args[1]))
	if !ok {
		return protocol.NullBulk(), nil
	}
	return protocol.Float(score), nil
}

func execZCard(e *Engine, args [][]byte) (protocol.Reply, error) {
	z, ok, err := lookupAs[*store.SortedSet](e, string(args[0]))
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	return protocol.Integer(int64(z.Card())), nil
}

func rank(e *Engine, args [][]byte, rev bool) (protocol.Reply, error) {
	z, ok, err := lookupAs[*store.SortedSet](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.NullBulk(), nil
	}
	var r int
	if rev {
		r, ok = z.RevRank(string(args[1]))
	} else {
		r, ok = z.Rank(string(args[1]))
	}
	if !ok {
		return protocol.NullBulk(), nil
	}
	return protocol.Integer(int64(r)), nil
}

func execZRank(e *Engine, args [][]byte) (protocol.Reply, error) {
	return rank(e, args, false)
}

func execZRevRank(e *Engine, args [][]byte) (protocol.Reply, error) {
	return rank(e, args, true)
}

func scoredReply(members []store.ScoredMember, withScores bool) protocol.Reply {
	n := len(members)
	if withScores {
		n *= 2
	}
	items := make([]protocol.Reply, 0, n)
	for _, m := range members {
		items = append(items, protocol.BulkString(m.Member))
		if withScores {
			items = append(items, protocol.Float(m.Score))
		}
	}
	return protocol.MultiBulk(items...)
}

func rangeByRank(e *Engine, args [][]byte, rev bool) (protocol.Reply, error) {
	start, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	stop, err := parseIndex(args[2])
	if err != nil {
		return nil, err
	}
	var withScores bool
	switch {
	case len(args) == 3:
	case len(args) == 4 && equalFold(args[3], "withscores"):
		withScores = true
	default:
		return nil, ErrSyntax
	}

	z, ok, err := lookupAs[*store.SortedSet](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.MultiBulk(), nil
	}
	if rev {
		return scoredReply(z.RevRange(start, stop), withScores), nil
	}
	return scoredReply(z.Range(start, stop), withScores), nil
}

func execZRange(e *Engine, args [][]byte) (protocol.Reply, error) {
	return rangeByRank(e, args, false)
}

func execZRevRange(e *Engine, args [][]byte) (protocol.Reply, error) {
	return rangeByRank(e, args, true)
}

// parseScoreBound accepts a float, "-inf"/"+inf", optionally prefixed
// with '(' for an exclusive bound.
func parseScoreBound(b []byte) (store.ScoreBound, error) {
	var bound store.ScoreBound
	if len(b) > 0 && b[0] == '(' {
		bound.Exclusive = true
		b = b[1:]
	}
	v, err := store.ParseFloat(b)
	if err != nil {
		return bound, ErrMinMaxNotFloat
	}
	bound.Value = v
	return bound, nil
}

func scoreInterval(lo, hi []byte) (store.ScoreBound, store.ScoreBound, error) {
	min, err := parseScoreBound(lo)
	if err != nil {
		return min, min, err
	}
	max, err := parseScoreBound(hi)
	return min, max, err
}

// rangeByScore implements [rev]rangebyscore key a b [WITHSCORES]
// [LIMIT offset count]. For the reverse form a is the max.
func rangeByScore(e *Engine, args [][]byte, rev bool) (protocol.Reply, error) {
	lo, hi := args[1], args[2]
	if rev {
		lo, hi = hi, lo
	}
	min, max, err := scoreInterval(lo, hi)
	if err != nil {
		return nil, err
	}

	var withScores bool
	offset, count := 0, -1
	for i := 3; i < len(args); i++ {
		switch {
		case equalFold(args[i], "withscores"):
			withScores = true
		case equalFold(args[i], "limit") && i+2 < len(args):
			if offset, err = parseIndex(args[i+1]); err != nil {
				return nil, err
			}
			if count, err = parseIndex(args[i+2]); err != nil {
				return nil, err
			}
			i += 2
		default:
			return nil, ErrSyntax
		}
	}
	if offset < 0 {
		return protocol.MultiBulk(), nil
	}

	z, ok, err := lookupAs[*store.SortedSet](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.MultiBulk(), nil
	}
	if rev {
		return scoredReply(z.RevRangeByScore(min, max, offset, count), withScores), nil
	}
	return scoredReply(z.RangeByScore(min, max, offset, count), withScores), nil
}

func execZRangeByScore(e *Engine, args [][]byte) (protocol.Reply, error) {
	return rangeByScore(e, args, false)
}

func execZRevRangeByScore(e *Engine, args [][]byte) (protocol.Reply, error) {
	return rangeByScore(e, args, true)
}

func execZCount(e *Engine, args [][]byte) (protocol.Reply, error) {
	min, max, err := scoreInterval(args[1], args[2])
	if err != nil {
		return nil, err
	}
	z, ok, err := lookupAs[*store.SortedSet](e, string(args[0]))
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	return protocol.Integer(int64(z.Count(min, max))), nil
}

func popScored(e *Engine, args [][]byte, max bool, verb string) (protocol.Reply, error) {
	count := 1
	switch len(args) {
	case 1:
	case 2:
		n, err := parseIndex(args[1])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, ErrNotPositive
		}
		count = n
	default:
		return nil, &ArgumentError{Verb: verb}
	}

	key := string(args[0])
	z, ok, err := lookupAs[*store.SortedSet](e, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.MultiBulk(), nil
	}
	defer e.dropIfEmpty(key)
	if max {
		return scoredReply(z.PopMax(count), true), nil
	}
	return scoredReply(z.PopMin(count), true), nil
}

func execZPopMin(e *Engine, args [][]byte) (protocol.Reply, error) {
	return popScored(e, args, false, "zpopmin")
}

func execZPopMax(e *Engine, args [][]byte) (protocol.Reply, error) {
	return popScored(e, args, true, "zpopmax")
}

func execZRemRangeByRank(e *Engine, args [][]byte) (protocol.Reply, error) {
	start, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	stop, err := parseIndex(args[2])
	if err != nil {
		return nil, err
	}
	key := string(args[0])
	z, ok, err := lookupAs[*store.SortedSet](e, key)
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	removed := z.RemoveRangeByRank(start, stop)
	e.dropIfEmpty(key)
	return protocol.Integer(int64(removed)), nil
}

func execZRemRangeByScore(e *Engine, args [][]byte) (protocol.Reply, error) {
	min, max, err := scoreInterval(args[1], args[2])
	if err != nil {
		return nil, err
	}
	key := string(args[0])
	z, ok, err := lookupAs[*store.SortedSet](e, key)
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	removed := z.RemoveRangeByScore(min, max)
	e.dropIfEmpty(key)
	return protocol.Integer(int64(removed)), nil
}
