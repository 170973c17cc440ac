package engine

import (
	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/store"
)

func init() {
	registerCommand("hset", execHSet, -4)
	registerCommand("hmset", execHMSet, -4)
	registerCommand("hsetnx", execHSetNX, 4)
	registerCommand("hget", execHGet, 3)
	registerCommand("hmget", execHMGet, -3)
	registerCommand("hdel", execHDel, -3)
	registerCommand("hexists", execHExists, 3)
	registerCommand("hlen", execHLen, 2)
	registerCommand("hstrlen", execHStrLen, 3)
	registerCommand("hgetall", execHGetAll, 2)
	registerCommand("hkeys", execHKeys, 2)
	registerCommand("hvals", execHVals, 2)
	registerCommand("hincrby", execHIncrBy, 4)
	registerCommand("hincrbyfloat", execHIncrByFloat, 4)
}

func hashSet(e *Engine, args [][]byte, verb string) (int64, error) {
	if len(args)%2 != 1 {
		return 0, &ArgumentError{Verb: verb}
	}
	h, err := getOrCreate(e, string(args[0]), store.NewHash)
	if err != nil {
		return 0, err
	}
	var added int64
	for i := 1; i < len(args); i += 2 {
		if h.Set(string(args[i]), args[i+1]) {
			added++
		}
	}
	return added, nil
}

func execHSet(e *Engine, args [][]byte) (protocol.Reply, error) {
	added, err := hashSet(e, args, "hset")
	if err != nil {
		return nil, err
	}
	return protocol.Integer(added), nil
}

func execHMSet(e *Engine, args [][]byte) (protocol.Reply, error) {
	if _, err := hashSet(e, args, "hmset"); err != nil {
		return nil, err
	}
	return protocol.OK(), nil
}

func execHSetNX(e *Engine, args [][]byte) (protocol.Reply, error) {
	h, err := getOrCreate(e, string(args[0]), store.NewHash)
	if err != nil {
		return nil, err
	}
	return boolReply(h.SetNX(string(args[1]), args[2])), nil
}

func execHGet(e *Engine, args [][]byte) (protocol.Reply, error) {
	h, ok, err := lookupAs[*store.Hash](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.NullBulk(), nil
	}
	v, ok := h.Get(string(args[1]))
	if !ok {
		return protocol.NullBulk(), nil
	}
	return protocol.Bulk(v), nil
}

func execHMGet(e *Engine, args [][]byte) (protocol.Reply, error) {
	h, ok, err := lookupAs[*store.Hash](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	values := make([][]byte, len(args)-1)
	if ok {
		for i, field := range args[1:] {
			values[i], _ = h.Get(string(field))
		}
	}
	return protocol.BulkArray(values), nil
}

func execHDel(e *Engine, args [][]byte) (protocol.Reply, error) {
	key := string(args[0])
	h, ok, err := lookupAs[*store.Hash](e, key)
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	removed := h.Del(keyStrings(args[1:])...)
	e.dropIfEmpty(key)
	return protocol.Integer(int64(removed)), nil
}

func execHExists(e *Engine, args [][]byte) (protocol.Reply, error) {
	h, ok, err := lookupAs[*store.Hash](e, string(args[0]))
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	return boolReply(h.Exists(string(args[1]))), nil
}

func execHLen(e *Engine, args [][]byte) (protocol.Reply, error) {
	h, ok, err := lookupAs[*store.Hash](e, string(args[0]))
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	return protocol.Integer(int64(h.Len())), nil
}

func execHStrLen(e *Engine, args [][]byte) (protocol.Reply, error) {
	h, ok, err := lookupAs[*store.Hash](e, string(args[0]))
	if err != nil || !ok {
		return protocol.Integer(0), err
	}
	v, _ := h.Get(string(args[1]))
	return protocol.Integer(int64(len(v))), nil
}

func execHGetAll(e *Engine, args [][]byte) (protocol.Reply, error) {
	h, ok, err := lookupAs[*store.Hash](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.MultiBulk(), nil
	}
	pairs := h.GetAll()
	items := make([]protocol.Reply, 0, 2*len(pairs))
	for _, p := range pairs {
		items = append(items, protocol.BulkString(p.Field), protocol.Bulk(p.Value))
	}
	return protocol.MultiBulk(items...), nil
}

func execHKeys(e *Engine, args [][]byte) (protocol.Reply, error) {
	h, ok, err := lookupAs[*store.Hash](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.MultiBulk(), nil
	}
	return protocol.StringArray(h.Keys()), nil
}

func execHVals(e *Engine, args [][]byte) (protocol.Reply, error) {
	h, ok, err := lookupAs[*store.Hash](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.MultiBulk(), nil
	}
	return protocol.BulkArray(h.Vals()), nil
}

func execHIncrBy(e *Engine, args [][]byte) (protocol.Reply, error) {
	delta, err := parseInt(args[2])
	if err != nil {
		return nil, err
	}
	key := string(args[0])
	h, err := getOrCreate(e, key, store.NewHash)
	if err != nil {
		return nil, err
	}
	defer e.dropIfEmpty(key)
	n, err := h.IncrBy(string(args[1]), delta)
	if err != nil {
		return nil, err
	}
	return protocol.Integer(n), nil
}

func execHIncrByFloat(e *Engine, args [][]byte) (protocol.Reply, error) {
	delta, err := parseFloat(args[2])
	if err != nil {
		return nil, err
	}
	key := string(args[0])
	h, err := getOrCreate(e, key, store.NewHash)
	if err != nil {
		return nil, err
	}
	defer e.dropIfEmpty(key)
	f, err := h.IncrByFloat(string(args[1]), delta)
	if err != nil {
		return nil, err
	}
	return protocol.Float(f), nil
}
