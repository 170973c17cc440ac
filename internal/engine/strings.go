package engine

import (
	"math"
	"time"

	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/store"
)

func init() {
	registerCommand("get", execGet, 2)
	registerCommand("set", execSet, -3)
	registerCommand("setnx", execSetNX, 3)
	registerCommand("setex", execSetEX, 4)
	registerCommand("psetex", execPSetEX, 4)
	registerCommand("getset", execGetSet, 3)
	registerCommand("getdel", execGetDel, 2)
	registerCommand("getrange", execGetRange, 4)
	registerCommand("mget", execMGet, -2)
	registerCommand("mset", execMSet, -3)
	registerCommand("msetnx", execMSetNX, -3)
	registerCommand("append", execAppend, 3)
	registerCommand("strlen", execStrLen, 2)
	registerCommand("incr", execIncr, 2)
	registerCommand("incrby", execIncrBy, 3)
	registerCommand("decr", execDecr, 2)
	registerCommand("decrby", execDecrBy, 3)
	registerCommand("incrbyfloat", execIncrByFloat, 3)
}

func execGet(e *Engine, args [][]byte) (protocol.Reply, error) {
	s, ok, err := lookupAs[store.String](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.NullBulk(), nil
	}
	return protocol.Bulk(s), nil
}

type setOptions struct {
	ttl     time.Duration
	nx, xx  bool
	keepTTL bool
}

// parseSetOptions accepts either a bare TTL in seconds or any
// combination of EX, PX, NX, XX and KEEPTTL.
func parseSetOptions(rest [][]byte) (setOptions, error) {
	var opts setOptions
	if len(rest) == 1 {
		if n, err := store.ParseInt(rest[0]); err == nil {
			if n <= 0 {
				return opts, &ExpireError{Verb: "set"}
			}
			d, err := durationFrom(n, time.Second, "set")
			opts.ttl = d
			return opts, err
		}
	}

	for i := 0; i < len(rest); i++ {
		switch {
		case equalFold(rest[i], "nx"):
			opts.nx = true
		case equalFold(rest[i], "xx"):
			opts.xx = true
		case equalFold(rest[i], "keepttl"):
			opts.keepTTL = true
		case equalFold(rest[i], "ex"), equalFold(rest[i], "px"):
			if i+1 >= len(rest) || opts.ttl != 0 {
				return opts, ErrSyntax
			}
			unit := time.Second
			if equalFold(rest[i], "px") {
				unit = time.Millisecond
			}
			n, err := parseInt(rest[i+1])
			if err != nil {
				return opts, err
			}
			if n <= 0 {
				return opts, &ExpireError{Verb: "set"}
			}
			if opts.ttl, err = durationFrom(n, unit, "set"); err != nil {
				return opts, err
			}
			i++
		default:
			return opts, ErrSyntax
		}
	}
	if (opts.nx && opts.xx) || (opts.keepTTL && opts.ttl != 0) {
		return opts, ErrSyntax
	}
	return opts, nil
}

// execSet replaces whatever the key held, of any kind.
func execSet(e *Engine, args [][]byte) (protocol.Reply, error) {
	opts, err := parseSetOptions(args[2:])
	if err != nil {
		return nil, err
	}

	key := string(args[0])
	_, exists := e.lookup(key)
	if (opts.nx && exists) || (opts.xx && !exists) {
		return protocol.NullBulk(), nil
	}

	deadline, hadDeadline := e.expires[key]
	e.replace(key, store.String(args[1]))
	switch {
	case opts.ttl > 0:
		e.expires[key] = e.now().Add(opts.ttl)
	case opts.keepTTL && hadDeadline:
		e.expires[key] = deadline
	}
	return protocol.OK(), nil
}

func execSetNX(e *Engine, args [][]byte) (protocol.Reply, error) {
	key := string(args[0])
	if _, exists := e.lookup(key); exists {
		return protocol.Integer(0), nil
	}
	e.replace(key, store.String(args[1]))
	return protocol.Integer(1), nil
}

func setWithTTL(e *Engine, args [][]byte, unit time.Duration, verb string) (protocol.Reply, error) {
	n, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, &ExpireError{Verb: verb}
	}
	d, err := durationFrom(n, unit, verb)
	if err != nil {
		return nil, err
	}
	key := string(args[0])
	e.replace(key, store.String(args[2]))
	e.expires[key] = e.now().Add(d)
	return protocol.OK(), nil
}

func execSetEX(e *Engine, args [][]byte) (protocol.Reply, error) {
	return setWithTTL(e, args, time.Second, "setex")
}

func execPSetEX(e *Engine, args [][]byte) (protocol.Reply, error) {
	return setWithTTL(e, args, time.Millisecond, "psetex")
}

func execGetSet(e *Engine, args [][]byte) (protocol.Reply, error) {
	key := string(args[0])
	old, ok, err := lookupAs[store.String](e, key)
	if err != nil {
		return nil, err
	}
	e.replace(key, store.String(args[1]))
	if !ok {
		return protocol.NullBulk(), nil
	}
	return protocol.Bulk(old), nil
}

func execGetDel(e *Engine, args [][]byte) (protocol.Reply, error) {
	key := string(args[0])
	s, ok, err := lookupAs[store.String](e, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return protocol.NullBulk(), nil
	}
	e.remove(key)
	return protocol.Bulk(s), nil
}

func execGetRange(e *Engine, args [][]byte) (protocol.Reply, error) {
	start, err := parseIndex(args[1])
	if err != nil {
		return nil, err
	}
	end, err := parseIndex(args[2])
	if err != nil {
		return nil, err
	}
	s, _, err := lookupAs[store.String](e, string(args[0]))
	if err != nil {
		return nil, err
	}

	n := len(s)
	if start < 0 {
		start = max(n+start, 0)
	}
	if end < 0 {
		end = n + end
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end {
		return protocol.Bulk(nil), nil
	}
	return protocol.Bulk(s[start : end+1]), nil
}

// execMGet returns nil for missing keys and for keys of other kinds.
func execMGet(e *Engine, args [][]byte) (protocol.Reply, error) {
	values := make([][]byte, len(args))
	for i, key := range args {
		if s, ok, err := lookupAs[store.String](e, string(key)); err == nil && ok {
			values[i] = s
		}
	}
	return protocol.BulkArray(values), nil
}

func execMSet(e *Engine, args [][]byte) (protocol.Reply, error) {
	if len(args)%2 != 0 {
		return nil, &ArgumentError{Verb: "mset"}
	}
	for i := 0; i < len(args); i += 2 {
		e.replace(string(args[i]), store.String(args[i+1]))
	}
	return protocol.OK(), nil
}

func execMSetNX(e *Engine, args [][]byte) (protocol.Reply, error) {
	if len(args)%2 != 0 {
		return nil, &ArgumentError{Verb: "msetnx"}
	}
	for i := 0; i < len(args); i += 2 {
		if _, exists := e.lookup(string(args[i])); exists {
			return protocol.Integer(0), nil
		}
	}
	for i := 0; i < len(args); i += 2 {
		e.replace(string(args[i]), store.String(args[i+1]))
	}
	return protocol.Integer(1), nil
}

func execAppend(e *Engine, args [][]byte) (protocol.Reply, error) {
	key := string(args[0])
	s, ok, err := lookupAs[store.String](e, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.replace(key, store.String(args[1]))
		return protocol.Integer(int64(len(args[1]))), nil
	}
	joined := make(store.String, 0, len(s)+len(args[1]))
	joined = append(append(joined, s...), args[1]...)
	e.keys[key] = joined
	return protocol.Integer(int64(len(joined))), nil
}

func execStrLen(e *Engine, args [][]byte) (protocol.Reply, error) {
	s, _, err := lookupAs[store.String](e, string(args[0]))
	if err != nil {
		return nil, err
	}
	return protocol.Integer(int64(len(s))), nil
}

// incrBy adds delta to the integer at key. The key keeps its deadline.
func incrBy(e *Engine, key string, delta int64) (protocol.Reply, error) {
	s, ok, err := lookupAs[store.String](e, key)
	if err != nil {
		return nil, err
	}
	var current int64
	if ok {
		if current, err = parseInt(s); err != nil {
			return nil, err
		}
	}
	next, err := store.AddInt(current, delta)
	if err != nil {
		return nil, err
	}
	e.keys[key] = store.String(store.FormatInt(next))
	return protocol.Integer(next), nil
}

func execIncr(e *Engine, args [][]byte) (protocol.Reply, error) {
	return incrBy(e, string(args[0]), 1)
}

func execDecr(e *Engine, args [][]byte) (protocol.Reply, error) {
	return incrBy(e, string(args[0]), -1)
}

func execIncrBy(e *Engine, args [][]byte) (protocol.Reply, error) {
	delta, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	return incrBy(e, string(args[0]), delta)
}

func execDecrBy(e *Engine, args [][]byte) (protocol.Reply, error) {
	delta, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	if delta == math.MinInt64 {
		return nil, ErrOverflow
	}
	return incrBy(e, string(args[0]), -delta)
}

func execIncrByFloat(e *Engine, args [][]byte) (protocol.Reply, error) {
	delta, err := parseFloat(args[1])
	if err != nil {
		return nil, err
	}
	key := string(args[0])
	s, ok, err := lookupAs[store.String](e, key)
	if err != nil {
		return nil, err
	}
	var current float64
	if ok {
		if current, err = parseFloat(s); err != nil {
			return nil, err
		}
	}
	next := current + delta
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return nil, ErrNotFinite
	}
	formatted := protocol.FormatFloat(next)
	e.keys[key] = store.String(formatted)
	return protocol.BulkString(formatted), nil
}
