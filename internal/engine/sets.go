package engine

import (
	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/store"
)

func init() {
	registerCommand("sadd", execSAdd, -3)
	registerCommand("srem", execSRem, -3)
	registerCommand("sismember", execSIsMember, 3)
	registerCommand("smismember", execSMIsMember, -3)
	registerCommand("scard", execSCard, 2)
	registerCommand("smembers", execSMembers, 2)
	registerCommand("spop", execSPop, -2)
	registerCommand("srandmember", execSRandMember, -2)
	registerCommand("smove", execSMove, 4)
	registerCommand("sinter", execSInter, -2)
	registerCommand("sunion", execSUnion, -2)
	registerCommand("sdiff", execSDiff, -2)
}

func execSAdd(e *Engine, args [][]byte) (protocol.Reply, error) {
	s, err := getOrCreate(e, string(args[0]), store.NewSet)
	if err != nil {
		return nil, err
	}
	return protocol.Integer(int64(s.Add(keyStrings(args[1:])...))), nil
}

func execSRem(e *Engine, args [][]byte) (protocol.Reply, error) {
	key := string(args[0])
	s, ok, err := lookupAs[*store.Set](e, key)
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	removed := s.Rem(keyStrings(args[1:])...)
	e.dropIfEmpty(key)
	return protocol.Integer(int64(removed)), nil
}

func execSIsMember(e *Engine, args [][]byte) (protocol.Reply, error) {
	s, ok, err := lookupAs[*store.Set](e, string(args[0]))
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	return boolReply(s.IsMember(string(args[1]))), nil
}

func execSMIsMember(e *Engine, args [][]byte) (protocol.Reply, error) {
	s, ok, err := lookupAs[*store.Set](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	items := make([]protocol.Reply, len(args)-1)
	for i, m := range args[1:] {
		items[i] = boolReply(ok && s.IsMember(string(m)))
	}
	return protocol.MultiBulk(items...), nil
}

func execSCard(e *Engine, args [][]byte) (protocol.Reply, error) {
	s, ok, err := lookupAs[*store.Set](e, string(args[0]))
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	return protocol.Integer(int64(s.Card())), nil
}

func execSMembers(e *Engine, args [][]byte) (protocol.Reply, error) {
	s, ok, err := lookupAs[*store.Set](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.MultiBulk(), nil
	}
	return protocol.StringArray(s.Members()), nil
}

// optionalCount parses the trailing count of spop and srandmember.
func optionalCount(args [][]byte, verb string) (int64, bool, error) {
	switch len(args) {
	case 1:
		return 0, false, nil
	case 2:
		n, err := parseInt(args[1])
		return n, true, err
	}
	return 0, false, &ArgumentError{Verb: verb}
}

func execSPop(e *Engine, args [][]byte) (protocol.Reply, error) {
	count, hasCount, err := optionalCount(args, "spop")
	if err != nil {
		return nil, err
	}
	if hasCount && count < 0 {
		return nil, ErrNotPositive
	}
	key := string(args[0])
	s, ok, err := lookupAs[*store.Set](e, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		if hasCount {
			return protocol.MultiBulk(), nil
		}
		return protocol.NullBulk(), nil
	}
	defer e.dropIfEmpty(key)

	if !hasCount {
		return protocol.BulkString(s.Pop(1)[0]), nil
	}
	return protocol.StringArray(s.Pop(int(min(count, int64(s.Card()))))), nil
}

func execSRandMember(e *Engine, args [][]byte) (protocol.Reply, error) {
	count, hasCount, err := optionalCount(args, "srandmember")
	if err != nil {
		return nil, err
	}
	s, ok, err := lookupAs[*store.Set](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !hasCount {
		if !ok {
			return protocol.NullBulk(), nil
		}
		return protocol.BulkString(s.RandMember(1)[0]), nil
	}
	if !ok {
		return protocol.MultiBulk(), nil
	}
	if count > maxRandCount || count < -maxRandCount {
		return nil, ErrNotInteger
	}
	return protocol.StringArray(s.RandMember(int(count))), nil
}

const maxRandCount = 1 << 24

func execSMove(e *Engine, args [][]byte) (protocol.Reply, error) {
	srcKey, dstKey := string(args[0]), string(args[1])
	src, ok, err := lookupAs[*store.Set](e, srcKey)
	if err != nil {
		return nil, err
	}
	if _, _, err := lookupAs[*store.Set](e, dstKey); err != nil {
		return nil, err
	}
	member := string(args[2])
	if !ok || !src.IsMember(member) {
		return protocol.Integer(0), nil
	}
	src.Rem(member)
	e.dropIfEmpty(srcKey)
	dst, err := getOrCreate(e, dstKey, store.NewSet)
	if err != nil {
		return nil, err
	}
	dst.Add(member)
	return protocol.Integer(1), nil
}

// sets resolves every key as a set. Missing keys come back nil, which
// the set algebra treats as empty.
func sets(e *Engine, keys [][]byte) ([]*store.Set, error) {
	out := make([]*store.Set, len(keys))
	for i, key := range keys {
		s, _, err := lookupAs[*store.Set](e, string(key))
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func setAlgebra(e *Engine, args [][]byte, op func(first *store.Set, rest []*store.Set) []string) (protocol.Reply, error) {
	all, err := sets(e, args)
	if err != nil {
		return nil, err
	}
	first := all[0]
	if first == nil {
		first = store.NewSet()
	}
	return protocol.StringArray(op(first, all[1:])), nil
}

func execSInter(e *Engine, args [][]byte) (protocol.Reply, error) {
	return setAlgebra(e, args, func(first *store.Set, rest []*store.Set) []string {
		return first.Inter(rest...)
	})
}

func execSUnion(e *Engine, args [][]byte) (protocol.Reply, error) {
	return setAlgebra(e, args, func(first *store.Set, rest []*store.Set) []string {
		return first.Union(rest...)
	})
}

func execSDiff(e *Engine, args [][]byte) (protocol.Reply, error) {
	return setAlgebra(e, args, func(first *store.Set, rest []*store.Set) []string {
		return first.Diff(rest...)
	})
}
