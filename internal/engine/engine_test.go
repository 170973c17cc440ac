package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberkv/emberkv/internal/protocol"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New("0", opts...), clock
}

func bulk(s string) protocol.Reply { return protocol.BulkString(s) }

func strs(items ...string) protocol.Reply { return protocol.StringArray(items) }

func TestEngine_SetAndGet(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, protocol.OK(), e.Do("set", "key1", "value1"))
	assert.Equal(t, bulk("value1"), e.Do("get", "key1"))
	assert.Equal(t, protocol.NullBulk(), e.Do("get", "missing"))
}

func TestEngine_BinarySafeValues(t *testing.T) {
	e, _ := newTestEngine(t)
	value := "a\r\nb\x00c"

	e.Do("set", "k\x00", value)
	assert.Equal(t, bulk(value), e.Do("get", "k\x00"))
}

func TestEngine_Arity(t *testing.T) {
	e, _ := newTestEngine(t)

	cases := [][]string{
		{"get"},
		{"get", "a", "b"},
		{"set", "k"},
		{"ping", "a", "b"},
		{"hset", "h", "f"},
		{"hset", "h", "f", "v", "g"},
		{"mset", "a", "1", "b"},
		{"lpop", "l", "1", "2"},
	}
	for _, tc := range cases {
		want := protocol.Error(fmt.Sprintf("ERR wrong number of arguments for '%s' command", tc[0]))
		assert.Equal(t, want, e.Do(tc[0], tc[1:]...), "%v", tc)
	}
	assert.Equal(t, 0, e.GetStats().Keys)
}

func TestEngine_UnknownCommand(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Equal(t, protocol.Error("unknown command: nosuch"), e.Do("nosuch"))
}

func TestEngine_LookupIsCaseInsensitive(t *testing.T) {
	op, ok := Lookup("GeT")
	require.True(t, ok)
	assert.Equal(t, "get", op.Name())
	assert.Equal(t, 2, op.Arity())

	_, ok = Lookup("nosuch")
	assert.False(t, ok)
}

func TestEngine_Commands(t *testing.T) {
	names := Commands()
	assert.IsIncreasing(t, names)
	for _, verb := range []string{"get", "set", "del", "expire", "ttl", "lpush", "hset", "sadd", "zadd", "quit"} {
		assert.Contains(t, names, verb)
	}
	assert.NotContains(t, names, "select")
	assert.NotContains(t, names, "auth")
}

func TestEngine_Connection(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, protocol.Status("PONG"), e.Do("ping"))
	assert.Equal(t, bulk("hi"), e.Do("ping", "hi"))
	assert.Equal(t, bulk("hello"), e.Do("echo", "hello"))
	assert.Equal(t, protocol.NoReply, e.Do("quit"))
	assert.Equal(t, protocol.Integer(int64(len(Commands()))), e.Do("command", "count"))

	info, ok := e.Do("info").(protocol.BulkReply)
	require.True(t, ok)
	assert.Contains(t, string(info.Data), "# Keyspace")
}

// seeds creates one key of every kind under "k".
var seeds = map[string][]string{
	"string": {"set", "k", "v"},
	"list":   {"rpush", "k", "a", "b"},
	"hash":   {"hset", "k", "f", "v"},
	"set":    {"sadd", "k", "m1", "m2"},
	"zset":   {"zadd", "k", "1", "m"},
}

// dumps reads a key of each kind back in full.
var dumps = map[string][]string{
	"string": {"get", "k"},
	"list":   {"lrange", "k", "0", "-1"},
	"hash":   {"hgetall", "k"},
	"set":    {"smembers", "k"},
	"zset":   {"zrange", "k", "0", "-1", "withscores"},
}

// probes are commands that expect a particular kind.
var probes = map[string][][]string{
	"string": {{"get", "k"}, {"append", "k", "x"}, {"incr", "k"}, {"incrbyfloat", "k", "1"}, {"strlen", "k"}, {"getset", "k", "x"}, {"getdel", "k"}},
	"list":   {{"lpush", "k", "x"}, {"rpush", "k", "x"}, {"lpop", "k"}, {"llen", "k"}, {"lrange", "k", "0", "-1"}, {"lset", "k", "0", "x"}, {"lrem", "k", "0", "a"}},
	"hash":   {{"hset", "k", "f2", "v"}, {"hget", "k", "f"}, {"hgetall", "k"}, {"hdel", "k", "f"}, {"hincrby", "k", "n", "1"}, {"hlen", "k"}},
	"set":    {{"sadd", "k", "x"}, {"srem", "k", "m1"}, {"smembers", "k"}, {"scard", "k"}, {"spop", "k"}, {"sinter", "k"}},
	"zset":   {{"zadd", "k", "2", "x"}, {"zrem", "k", "m"}, {"zscore", "k", "m"}, {"zrange", "k", "0", "-1"}, {"zincrby", "k", "1", "m"}, {"zcard", "k"}},
}

func TestEngine_WrongTypeLeavesValueUnchanged(t *testing.T) {
	wrongType := protocol.Error(ErrWrongType.Error())

	for kind, seed := range seeds {
		for probeKind, cmds := range probes {
			if probeKind == kind {
				continue
			}
			for _, cmd := range cmds {
				t.Run(kind+"/"+cmd[0], func(t *testing.T) {
					e, _ := newTestEngine(t)
					e.Do(seed[0], seed[1:]...)
					before := e.Do(dumps[kind][0], dumps[kind][1:]...)

					assert.Equal(t, wrongType, e.Do(cmd[0], cmd[1:]...))
					assert.Equal(t, protocol.Status(kind), e.Do("type", "k"))
					assert.Equal(t, before, e.Do(dumps[kind][0], dumps[kind][1:]...))
				})
			}
		}
	}
}

func TestEngine_SetReplacesAnyKind(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Do("rpush", "k", "a")
	assert.Equal(t, protocol.OK(), e.Do("set", "k", "v"))
	assert.Equal(t, protocol.Status("string"), e.Do("type", "k"))
}

func TestEngine_Expire(t *testing.T) {
	var expired []string
	e, clock := newTestEngine(t, WithExpireHook(func(ns, key string) {
		expired = append(expired, ns+"/"+key)
	}))

	e.Do("set", "k", "v")
	assert.Equal(t, protocol.Integer(1), e.Do("expire", "k", "10"))
	assert.Equal(t, protocol.Integer(10), e.Do("ttl", "k"))
	assert.Equal(t, protocol.Integer(10000), e.Do("pttl", "k"))

	clock.Advance(9600 * time.Millisecond)
	assert.Equal(t, protocol.Integer(0), e.Do("ttl", "k"))
	assert.Equal(t, protocol.Integer(400), e.Do("pttl", "k"))

	clock.Advance(400 * time.Millisecond)
	assert.Equal(t, protocol.NullBulk(), e.Do("get", "k"))
	assert.Equal(t, protocol.Integer(-2), e.Do("ttl", "k"))
	assert.Equal(t, protocol.Integer(0), e.Do("exists", "k"))
	assert.Equal(t, []string{"0/k"}, expired)
	assert.Equal(t, int64(1), e.GetStats().ExpiredKeys)
	assert.Equal(t, 0, e.GetStats().Expires)
}

func TestEngine_ExpireZeroDeletes(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Do("set", "k", "v")
	assert.Equal(t, protocol.Integer(1), e.Do("expire", "k", "0"))
	assert.Equal(t, protocol.NullBulk(), e.Do("get", "k"))
	assert.Equal(t, protocol.Integer(0), e.Do("expire", "missing", "10"))
	assert.Equal(t, protocol.Error(ErrNotInteger.Error()), e.Do("expire", "k", "soon"))
}

func TestEngine_KeyWithoutTTLSurvives(t *testing.T) {
	e, clock := newTestEngine(t)

	e.Do("set", "k", "v")
	assert.Equal(t, protocol.Integer(-1), e.Do("ttl", "k"))
	clock.Advance(24 * time.Hour)
	assert.Equal(t, bulk("v"), e.Do("get", "k"))
}

func TestEngine_ExpireAtAndPersist(t *testing.T) {
	e, clock := newTestEngine(t)

	e.Do("set", "k", "v")
	at := clock.now.Add(time.Minute).Unix()
	assert.Equal(t, protocol.Integer(1), e.Do("expireat", "k", fmt.Sprint(at)))
	assert.Equal(t, protocol.Integer(60), e.Do("ttl", "k"))

	assert.Equal(t, protocol.Integer(1), e.Do("persist", "k"))
	assert.Equal(t, protocol.Integer(0), e.Do("persist", "k"))
	assert.Equal(t, protocol.Integer(-1), e.Do("ttl", "k"))

	assert.Equal(t, protocol.Integer(1), e.Do("pexpireat", "k", fmt.Sprint(clock.now.UnixMilli()-1)))
	assert.Equal(t, protocol.Integer(0), e.Do("exists", "k"))
}

func TestEngine_ExpiredContainerIsRecreated(t *testing.T) {
	e, clock := newTestEngine(t)

	e.Do("rpush", "l", "a")
	e.Do("pexpire", "l", "100")
	clock.Advance(time.Second)

	assert.Equal(t, protocol.Integer(1), e.Do("rpush", "l", "b"))
	assert.Equal(t, protocol.Integer(-1), e.Do("ttl", "l"))
}

func TestEngine_SetOptions(t *testing.T) {
	e, clock := newTestEngine(t)

	assert.Equal(t, protocol.NullBulk(), e.Do("set", "k", "v", "XX"))
	assert.Equal(t, protocol.OK(), e.Do("set", "k", "v", "NX"))
	assert.Equal(t, protocol.NullBulk(), e.Do("set", "k", "w", "nx"))
	assert.Equal(t, bulk("v"), e.Do("get", "k"))

	assert.Equal(t, protocol.OK(), e.Do("set", "k", "v", "EX", "10"))
	assert.Equal(t, protocol.Integer(10), e.Do("ttl", "k"))
	assert.Equal(t, protocol.OK(), e.Do("set", "k", "v", "5"))
	assert.Equal(t, protocol.Integer(5), e.Do("ttl", "k"))
	assert.Equal(t, protocol.OK(), e.Do("set", "k", "v", "PX", "1500"))
	assert.Equal(t, protocol.Integer(1500), e.Do("pttl", "k"))
	assert.Equal(t, protocol.OK(), e.Do("set", "k", "w", "KEEPTTL"))
	assert.Equal(t, protocol.Integer(1500), e.Do("pttl", "k"))

	// A plain set clears the deadline.
	assert.Equal(t, protocol.OK(), e.Do("set", "k", "v"))
	assert.Equal(t, protocol.Integer(-1), e.Do("ttl", "k"))

	assert.Equal(t, protocol.Error("ERR invalid expire time in 'set' command"), e.Do("set", "k", "v", "EX", "0"))
	assert.Equal(t, protocol.Error("ERR invalid expire time in 'set' command"), e.Do("set", "k", "v", "-3"))
	assert.Equal(t, protocol.Error(ErrSyntax.Error()), e.Do("set", "k", "v", "EX"))
	assert.Equal(t, protocol.Error(ErrSyntax.Error()), e.Do("set", "k", "v", "bogus"))
	assert.Equal(t, protocol.Error(ErrSyntax.Error()), e.Do("set", "k", "v", "NX", "XX"))

	e.Do("set", "t", "v", "1")
	clock.Advance(time.Second)
	assert.Equal(t, protocol.NullBulk(), e.Do("get", "t"))
}

func TestEngine_StringCommands(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, protocol.Integer(1), e.Do("setnx", "a", "1"))
	assert.Equal(t, protocol.Integer(0), e.Do("setnx", "a", "2"))
	assert.Equal(t, bulk("1"), e.Do("getset", "a", "3"))
	assert.Equal(t, protocol.NullBulk(), e.Do("getset", "new", "x"))

	assert.Equal(t, protocol.OK(), e.Do("mset", "x", "1", "y", "2"))
	assert.Equal(t, protocol.BulkArray([][]byte{[]byte("1"), nil, []byte("2")}), e.Do("mget", "x", "nope", "y"))
	assert.Equal(t, protocol.Integer(0), e.Do("msetnx", "x", "9", "z", "9"))
	assert.Equal(t, protocol.NullBulk(), e.Do("get", "z"))

	assert.Equal(t, protocol.Integer(5), e.Do("append", "s", "hello"))
	assert.Equal(t, protocol.Integer(11), e.Do("append", "s", " world"))
	assert.Equal(t, protocol.Integer(11), e.Do("strlen", "s"))
	assert.Equal(t, protocol.Integer(0), e.Do("strlen", "nope"))
	assert.Equal(t, bulk("world"), e.Do("getrange", "s", "-5", "-1"))
	assert.Equal(t, bulk("hello"), e.Do("getrange", "s", "0", "4"))
	assert.Equal(t, protocol.Bulk(nil), e.Do("getrange", "s", "20", "30"))

	assert.Equal(t, bulk("hello world"), e.Do("getdel", "s"))
	assert.Equal(t, protocol.Integer(0), e.Do("exists", "s"))

	assert.Equal(t, protocol.OK(), e.Do("setex", "t", "100", "v"))
	assert.Equal(t, protocol.Integer(100), e.Do("ttl", "t"))
	assert.Equal(t, protocol.Error("ERR invalid expire time in 'setex' command"), e.Do("setex", "t", "0", "v"))
}

func TestEngine_Counters(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, protocol.Integer(1), e.Do("incr", "n"))
	assert.Equal(t, protocol.Integer(11), e.Do("incrby", "n", "10"))
	assert.Equal(t, protocol.Integer(10), e.Do("decr", "n"))
	assert.Equal(t, protocol.Integer(5), e.Do("decrby", "n", "5"))
	assert.Equal(t, bulk("5"), e.Do("get", "n"))

	notInt := protocol.Error(ErrNotInteger.Error())
	e.Do("set", "s", "abc")
	assert.Equal(t, notInt, e.Do("incr", "s"))
	assert.Equal(t, notInt, e.Do("incrby", "n", "1.5"))
	assert.Equal(t, bulk("abc"), e.Do("get", "s"))

	e.Do("set", "max", "9223372036854775807")
	assert.Equal(t, protocol.Error(ErrOverflow.Error()), e.Do("incr", "max"))
	assert.Equal(t, protocol.Error(ErrOverflow.Error()), e.Do("decrby", "n", "-9223372036854775808"))

	assert.Equal(t, bulk("10.5"), e.Do("incrbyfloat", "f", "10.5"))
	assert.Equal(t, bulk("10"), e.Do("incrbyfloat", "f", "-0.5"))
	assert.Equal(t, protocol.Error(ErrNotFloat.Error()), e.Do("incrbyfloat", "s", "1"))
	assert.Equal(t, protocol.Error(ErrNotFinite.Error()), e.Do("incrbyfloat", "f", "inf"))
}

func TestEngine_IncrKeepsTTL(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Do("setex", "n", "100", "1")
	e.Do("incr", "n")
	assert.Equal(t, protocol.Integer(100), e.Do("ttl", "n"))
}

func TestEngine_ConcurrentIncr(t *testing.T) {
	e := New("0")
	const workers, perWorker = 50, 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				e.Do("incr", "counter")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, bulk(fmt.Sprint(workers*perWorker)), e.Do("get", "counter"))
}

func TestEngine_DelExists(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Do("mset", "a", "1", "b", "2")
	assert.Equal(t, protocol.Integer(3), e.Do("exists", "a", "b", "a", "c"))
	assert.Equal(t, protocol.Integer(2), e.Do("del", "a", "b", "c"))
	assert.Equal(t, protocol.Integer(0), e.Do("dbsize"))
}

func TestEngine_Keys(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Do("mset", "a1", "x", "a2", "x", "b1", "x", "h?llo", "x", "a/b", "x")
	assert.Equal(t, strs("a/b", "a1", "a2", "b1", "h?llo"), e.Do("keys", "*"))
	assert.Equal(t, strs("a/b", "a1", "a2"), e.Do("keys", "a*"))
	assert.Equal(t, strs("a1", "b1"), e.Do("keys", "?1"))
	assert.Equal(t, strs("a1", "b1"), e.Do("keys", "[ab]1"))
	assert.Equal(t, strs("b1"), e.Do("keys", "[^a]1"))
	assert.Equal(t, strs("a1", "a2"), e.Do("keys", "a[0-9]"))
	assert.Equal(t, strs("h?llo"), e.Do("keys", `h\?llo`))
	assert.Equal(t, strs(), e.Do("keys", "zz*"))
}

func TestEngine_Scan(t *testing.T) {
	e, _ := newTestEngine(t)
	for i := 0; i < 15; i++ {
		e.Do("set", fmt.Sprintf("key:%02d", i), "v")
	}

	page, ok := e.Do("scan", "0").(protocol.MultiBulkReply)
	require.True(t, ok)
	assert.Equal(t, bulk("10"), page.Items[0])
	assert.Len(t, page.Items[1].(protocol.MultiBulkReply).Items, 10)

	page = e.Do("scan", "10").(protocol.MultiBulkReply)
	assert.Equal(t, bulk("0"), page.Items[0])
	assert.Len(t, page.Items[1].(protocol.MultiBulkReply).Items, 5)

	page = e.Do("scan", "0", "MATCH", "key:1*", "COUNT", "100").(protocol.MultiBulkReply)
	assert.Len(t, page.Items[1].(protocol.MultiBulkReply).Items, 5)
}

func TestEngine_ScanHugeCount(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Do("mset", "a", "1", "b", "2")

	assert.Equal(t, protocol.MultiBulk(bulk("0"), strs("b")), e.Do("scan", "1", "count", "9223372036854775807"))
	assert.Equal(t, protocol.MultiBulk(bulk("0"), strs()), e.Do("scan", "9223372036854775807", "count", "9223372036854775807"))
	assert.Equal(t, protocol.MultiBulk(bulk("1"), strs("a")), e.Do("scan", "0", "count", "1"))
}

func TestEngine_KeysBinaryPattern(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Do("mset", "\xffkey", "x", "\xfe", "x", "plain", "x")

	assert.Equal(t, strs("\xffkey"), e.Do("keys", "\xff*"))
	assert.Equal(t, strs("\xfe"), e.Do("keys", "?"))
	assert.Equal(t, protocol.MultiBulk(bulk("0"), strs("\xfe", "\xffkey")), e.Do("scan", "0", "match", "[\xfe-\xff]*"))
}

func TestEngine_Rename(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, protocol.Error(ErrNoSuchKey.Error()), e.Do("rename", "a", "b"))

	e.Do("setex", "a", "50", "v")
	assert.Equal(t, protocol.OK(), e.Do("rename", "a", "b"))
	assert.Equal(t, bulk("v"), e.Do("get", "b"))
	assert.Equal(t, protocol.Integer(50), e.Do("ttl", "b"))
	assert.Equal(t, protocol.Integer(0), e.Do("exists", "a"))

	e.Do("set", "c", "other")
	assert.Equal(t, protocol.Integer(0), e.Do("renamenx", "b", "c"))
	assert.Equal(t, protocol.Integer(1), e.Do("renamenx", "b", "d"))
}

func TestEngine_FlushDB(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Do("mset", "a", "1", "b", "2")
	e.Do("expire", "a", "100")
	assert.Equal(t, protocol.OK(), e.Do("flushdb"))
	assert.Equal(t, protocol.Integer(0), e.Do("dbsize"))
	assert.Equal(t, 0, e.GetStats().Expires)
}

func TestEngine_Type(t *testing.T) {
	e, _ := newTestEngine(t)
	for kind, seed := range seeds {
		e.Do("del", "k")
		e.Do(seed[0], seed[1:]...)
		assert.Equal(t, protocol.Status(kind), e.Do("type", "k"))
	}
	assert.Equal(t, protocol.Status("none"), e.Do("type", "missing"))
}

func TestEngine_PanicReleasesLock(t *testing.T) {
	e, _ := newTestEngine(t)
	boom := &Operation{name: "boom", arity: 1, exec: func(*Engine, [][]byte) (protocol.Reply, error) {
		panic("boom")
	}}

	assert.Panics(t, func() { e.Exec(boom, nil) })
	assert.Equal(t, protocol.OK(), e.Do("set", "k", "v"))
}
