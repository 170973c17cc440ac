package engine

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/store"
)

func init() {
	registerCommand("del", execDel, -2)
	registerCommand("exists", execExists, -2)
	registerCommand("expire", execExpire, 3)
	registerCommand("pexpire", execPExpire, 3)
	registerCommand("expireat", execExpireAt, 3)
	registerCommand("pexpireat", execPExpireAt, 3)
	registerCommand("ttl", execTTL, 2)
	registerCommand("pttl", execPTTL, 2)
	registerCommand("persist", execPersist, 2)
	registerCommand("type", execType, 2)
	registerCommand("keys", execKeys, 2)
	registerCommand("scan", execScan, -2)
	registerCommand("rename", execRename, 3)
	registerCommand("renamenx", execRenameNX, 3)
	registerCommand("dbsize", execDBSize, 1)
	registerCommand("flushdb", execFlushDB, 1)
}

func execDel(e *Engine, args [][]byte) (protocol.Reply, error) {
	var deleted int64
	for _, key := range args {
		if e.remove(string(key)) {
			deleted++
		}
	}
	return protocol.Integer(deleted), nil
}

// execExists counts every argument that names a live key, so a key
// listed twice counts twice.
func execExists(e *Engine, args [][]byte) (protocol.Reply, error) {
	var count int64
	for _, key := range args {
		if _, ok := e.lookup(string(key)); ok {
			count++
		}
	}
	return protocol.Integer(count), nil
}

// setDeadline applies an absolute deadline to a live key. A deadline
// that is already due deletes the key.
func (e *Engine) setDeadline(key string, deadline time.Time) protocol.Reply {
	if _, ok := e.lookup(key); !ok {
		return protocol.Integer(0)
	}
	if !deadline.After(e.now()) {
		delete(e.keys, key)
		delete(e.expires, key)
		return protocol.Integer(1)
	}
	e.expires[key] = deadline
	return protocol.Integer(1)
}

// durationFrom converts n units into a Duration, rejecting overflow.
func durationFrom(n int64, unit time.Duration, verb string) (time.Duration, error) {
	if n > math.MaxInt64/int64(unit) || n < math.MinInt64/int64(unit) {
		return 0, &ExpireError{Verb: verb}
	}
	return time.Duration(n) * unit, nil
}

func relativeExpire(e *Engine, args [][]byte, unit time.Duration, verb string) (protocol.Reply, error) {
	n, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	d, err := durationFrom(n, unit, verb)
	if err != nil {
		return nil, err
	}
	return e.setDeadline(string(args[0]), e.now().Add(d)), nil
}

func absoluteExpire(e *Engine, args [][]byte, unit time.Duration, verb string) (protocol.Reply, error) {
	n, err := parseInt(args[1])
	if err != nil {
		return nil, err
	}
	d, err := durationFrom(n, unit, verb)
	if err != nil {
		return nil, err
	}
	return e.setDeadline(string(args[0]), time.Unix(0, 0).Add(d)), nil
}

func execExpire(e *Engine, args [][]byte) (protocol.Reply, error) {
	return relativeExpire(e, args, time.Second, "expire")
}

func execPExpire(e *Engine, args [][]byte) (protocol.Reply, error) {
	return relativeExpire(e, args, time.Millisecond, "pexpire")
}

func execExpireAt(e *Engine, args [][]byte) (protocol.Reply, error) {
	return absoluteExpire(e, args, time.Second, "expireat")
}

func execPExpireAt(e *Engine, args [][]byte) (protocol.Reply, error) {
	return absoluteExpire(e, args, time.Millisecond, "pexpireat")
}

// remaining returns the time to live of key: -2 when missing, -1 when
// it has no deadline.
func (e *Engine) remaining(key string) (time.Duration, int64) {
	if _, ok := e.lookup(key); !ok {
		return 0, -2
	}
	deadline, ok := e.expires[key]
	if !ok {
		return 0, -1
	}
	return deadline.Sub(e.now()), 0
}

func execTTL(e *Engine, args [][]byte) (protocol.Reply, error) {
	d, code := e.remaining(string(args[0]))
	if code != 0 {
		return protocol.Integer(code), nil
	}
	return protocol.Integer(int64((d + 500*time.Millisecond) / time.Second)), nil
}

func execPTTL(e *Engine, args [][]byte) (protocol.Reply, error) {
	d, code := e.remaining(string(args[0]))
	if code != 0 {
		return protocol.Integer(code), nil
	}
	return protocol.Integer(d.Milliseconds()), nil
}

func execPersist(e *Engine, args [][]byte) (protocol.Reply, error) {
	key := string(args[0])
	if _, ok := e.lookup(key); !ok {
		return protocol.Integer(0), nil
	}
	if _, ok := e.expires[key]; !ok {
		return protocol.Integer(0), nil
	}
	delete(e.expires, key)
	return protocol.Integer(1), nil
}

func execType(e *Engine, args [][]byte) (protocol.Reply, error) {
	v, ok := e.lookup(string(args[0]))
	if !ok {
		return protocol.Status("none"), nil
	}
	return protocol.Status(v.Kind().String()), nil
}

// liveKeys returns the sorted names of unexpired keys matching the glob
// pattern. An empty pattern matches every key.
func (e *Engine) liveKeys(pattern string) []string {
	keys := make([]string, 0, len(e.keys))
	for key := range e.keys {
		if pattern != "" && !matchGlob(pattern, key) {
			continue
		}
		if _, ok := e.lookup(key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func execKeys(e *Engine, args [][]byte) (protocol.Reply, error) {
	return protocol.StringArray(e.liveKeys(string(args[0]))), nil
}

// execScan pages through the sorted key list. The cursor is an offset
// into that list, so keys added between calls may be missed or repeated.
func execScan(e *Engine, args [][]byte) (protocol.Reply, error) {
	cursor, err := parseInt(args[0])
	if err != nil || cursor < 0 {
		return nil, ErrNotInteger
	}
	pattern := "*"
	count := int64(10)
	for i := 1; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return nil, ErrSyntax
		}
		switch {
		case equalFold(args[i], "match"):
			pattern = string(args[i+1])
		case equalFold(args[i], "count"):
			count, err = parseInt(args[i+1])
			if err != nil {
				return nil, err
			}
			if count < 1 {
				return nil, ErrSyntax
			}
		default:
			return nil, ErrSyntax
		}
	}

	keys := e.liveKeys(pattern)
	total := int64(len(keys))
	start := min(cursor, total)
	end, next := total, int64(0)
	if count < total-start {
		end = start + count
		next = end
	}
	return protocol.MultiBulk(
		protocol.BulkString(strconv.FormatInt(next, 10)),
		protocol.StringArray(keys[start:end]),
	), nil
}

func rename(e *Engine, args [][]byte, nx bool) (protocol.Reply, error) {
	src, dst := string(args[0]), string(args[1])
	v, ok := e.lookup(src)
	if !ok {
		return nil, ErrNoSuchKey
	}
	if nx {
		if _, exists := e.lookup(dst); exists {
			return protocol.Integer(0), nil
		}
	}
	if src == dst {
		if nx {
			return protocol.Integer(0), nil
		}
		return protocol.OK(), nil
	}

	deadline, hasDeadline := e.expires[src]
	delete(e.keys, src)
	delete(e.expires, src)
	e.replace(dst, v)
	if hasDeadline {
		e.expires[dst] = deadline
	}
	if nx {
		return protocol.Integer(1), nil
	}
	return protocol.OK(), nil
}

func execRename(e *Engine, args [][]byte) (protocol.Reply, error) {
	return rename(e, args, false)
}

func execRenameNX(e *Engine, args [][]byte) (protocol.Reply, error) {
	return rename(e, args, true)
}

func execDBSize(e *Engine, args [][]byte) (protocol.Reply, error) {
	return protocol.Integer(int64(len(e.liveKeys("")))), nil
}

func execFlushDB(e *Engine, args [][]byte) (protocol.Reply, error) {
	e.keys = make(map[string]store.Value)
	e.expires = make(map[string]time.Time)
	return protocol.OK(), nil
}
