package engine

import (
	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/store"
)

func init() {
	registerCommand("lpush", execLPush, -3)
	registerCommand("rpush", execRPush, -3)
	registerCommand("lpushx", execLPushX, -3)
	registerCommand("rpushx", execRPushX, -3)
	registerCommand("lpop", execLPop, -2)
	registerCommand("rpop", execRPop, -2)
	registerCommand("llen", execLLen, 2)
	registerCommand("lindex", execLIndex, 3)
	registerCommand("lset", execLSet, 4)
	registerCommand("lrange", execLRange, 4)
	registerCommand("lrem", execLRem, 4)
	registerCommand("ltrim", execLTrim, 4)
	registerCommand("linsert", execLInsert, 5)
}

func push(e *Engine, args [][]byte, left, onlyExisting bool) (protocol.Reply, error) {
	key := string(args[0])
	if onlyExisting {
		l, ok, err := lookupAs[*store.List](e, key)
		if err != nil || !ok {
			return protocol.Integer(0), err
		}
		return pushInto(l, args[1:], left), nil
	}
	l, err := getOrCreate(e, key, store.NewList)
	if err != nil {
		return nil, err
	}
	return pushInto(l, args[1:], left), nil
}

func pushInto(l *store.List, values [][]byte, left bool) protocol.Reply {
	if left {
		return protocol.Integer(int64(l.LPush(values...)))
	}
	return protocol.Integer(int64(l.RPush(values...)))
}

func execLPush(e *Engine, args [][]byte) (protocol.Reply, error) {
	return push(e, args, true, false)
}

func execRPush(e *Engine, args [][]byte) (protocol.Reply, error) {
	return push(e, args, false, false)
}

func execLPushX(e *Engine, args [][]byte) (protocol.Reply, error) {
	return push(e, args, true, true)
}

func execRPushX(e *Engine, args [][]byte) (protocol.Reply, error) {
	return push(e, args, false, true)
}

// pop removes one element, or up to count elements when a count is given.
func pop(e *Engine, args [][]byte, left bool, verb string) (protocol.Reply, error) {
	if len(args) > 2 {
		return nil, &ArgumentError{Verb: verb}
	}
	count := int64(-1)
	if len(args) == 2 {
		n, err := parseInt(args[1])
		if err != nil || n < 0 {
			return nil, ErrNotPositive
		}
		count = n
	}

	key := string(args[0])
	l, ok, err := lookupAs[*store.List](e, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.NullBulk(), nil
	}
	defer e.dropIfEmpty(key)

	take := l.RPop
	if left {
		take = l.LPop
	}
	if count < 0 {
		v, _ := take()
		return protocol.Bulk(v), nil
	}
	popped := make([][]byte, 0, min(count, int64(l.Len())))
	for int64(len(popped)) < count {
		v, ok := take()
		if !ok {
			break
		}
		popped = append(popped, v)
	}
	return protocol.BulkArray(popped), nil
}

func execLPop(e *Engine, args [][]byte) (protocol.Reply, error) {
	return pop(e, args, true, "lpop")
}

func execRPop(e *Engine, args [][]byte) (protocol.Reply, error) {
	return pop(e, args, false, "rpop")
}

func execLLen(e *Engine, args [][]byte) (protocol.Reply, error) {
	l, ok, err := lookupAs[*store.List](e, string(args[0]))
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	return protocol.Integer(int64(l.Len())), nil
}

func execLIndex(e *Engine, args [][]byte) (protocol.Reply, error) {
	index, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	l, ok, err := lookupAs[*store.List](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.NullBulk(), nil
	}
	v, ok := l.Index(index)
	if !ok {
		return protocol.NullBulk(), nil
	}
	return protocol.Bulk(v), nil
}

func execLSet(e *Engine, args [][]byte) (protocol.Reply, error) {
	index, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	l, ok, err := lookupAs[*store.List](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSuchKey
	}
	if !l.Set(index, args[2]) {
		return nil, ErrIndexOutOfRange
	}
	return protocol.OK(), nil
}

func execLRange(e *Engine, args [][]byte) (protocol.Reply, error) {
	start, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	stop, err := parseIndex(args[2])
	if err != nil {
		return nil, err
	}
	l, ok, err := lookupAs[*store.List](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.MultiBulk(), nil
	}
	return protocol.BulkArray(l.Range(start, stop)), nil
}

func execLRem(e *Engine, args [][]byte) (protocol.Reply, error) {
	count, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	key := string(args[0])
	l, ok, err := lookupAs[*store.List](e, key)
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	removed := l.Rem(count, args[2])
	e.dropIfEmpty(key)
	return protocol.Integer(int64(removed)), nil
}

func execLTrim(e *Engine, args [][]byte) (protocol.Reply, error) {
	start, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	stop, err := parseIndex(args[2])
	if err != nil {
		return nil, err
	}
	key := string(args[0])
	l, ok, err := lookupAs[*store.List](e, key)
	if err != nil {
		return nil, err
	}
	if ok {
		l.Trim(start, stop)
		e.dropIfEmpty(key)
	}
	return protocol.OK(), nil
}

func execLInsert(e *Engine, args [][]byte) (protocol.Reply, error) {
	var before bool
	switch {
	case equalFold(args[1], "before"):
		before = true
	case equalFold(args[1], "after"):
	default:
		return nil, ErrSyntax
	}
	l, ok, err := lookupAs[*store.List](e, string(args[0]))
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	return protocol.Integer(int64(l.Insert(before, args[2], args[3]))), nil
}
