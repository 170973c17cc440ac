// Package engine implements one namespace of the keyspace: a map of keys
// to typed values, per-key deadlines, and the table of operations that
// run against them. Each operation holds the engine lock for its whole
// duration, so commands on one namespace are linearizable.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/store"
)

// Stats holds engine statistics.
type Stats struct {
	TotalCommands int64
	ExpiredKeys   int64
	Keys          int
	Expires       int
	StartTime     time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now. Tests use it to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithExpireHook registers fn to run whenever a key is found expired and
// removed. fn runs with the engine lock held and must not call back into
// the engine.
func WithExpireHook(fn func(namespace, key string)) Option {
	return func(e *Engine) { e.onExpire = fn }
}

// Engine is a single namespace. It is safe for concurrent use.
type Engine struct {
	name string

	mu      sync.Mutex
	keys    map[string]store.Value
	expires map[string]time.Time

	now      func() time.Time
	onExpire func(namespace, key string)

	startTime     time.Time
	totalCommands atomic.Int64
	expiredKeys   atomic.Int64
}

// New creates an empty namespace.
func New(name string, opts ...Option) *Engine {
	e := &Engine{
		name:    name,
		keys:    make(map[string]store.Value),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.startTime = e.now()
	return e
}

// Name returns the namespace name.
func (e *Engine) Name() string { return e.name }

// Exec runs op with args (the command without its verb). Expected
// failures come back as Error replies. A panic inside op propagates to
// the caller with the lock released.
func (e *Engine) Exec(op *Operation, args [][]byte) protocol.Reply {
	if !op.acceptsArgs(len(args)) {
		return errorReply(&ArgumentError{Verb: op.name})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalCommands.Add(1)
	reply, err := op.exec(e, args)
	if err != nil {
		return errorReply(err)
	}
	return reply
}

// Do looks up verb and executes it. It is a convenience for embedding
// and tests.
func (e *Engine) Do(verb string, args ...string) protocol.Reply {
	op, ok := Lookup(verb)
	if !ok {
		return UnknownCommand(verb)
	}
	return e.Exec(op, protocol.NewCommand(args...))
}

// GetStats returns engine statistics.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		TotalCommands: e.totalCommands.Load(),
		ExpiredKeys:   e.expiredKeys.Load(),
		Keys:          len(e.keys),
		Expires:       len(e.expires),
		StartTime:     e.startTime,
	}
}

// The helpers below assume e.mu is held.

// lookup returns the live value of key, removing it first if its
// deadline has passed.
func (e *Engine) lookup(key string) (store.Value, bool) {
	v, ok := e.keys[key]
	if !ok {
		return nil, false
	}
	if deadline, ok := e.expires[key]; ok && !e.now().Before(deadline) {
		e.expireKey(key)
		return nil, false
	}
	return v, true
}

func (e *Engine) expireKey(key string) {
	delete(e.keys, key)
	delete(e.expires, key)
	e.expiredKeys.Add(1)
	if e.onExpire != nil {
		e.onExpire(e.name, key)
	}
}

// replace stores v under key, discarding any previous value and deadline.
func (e *Engine) replace(key string, v store.Value) {
	e.keys[key] = v
	delete(e.expires, key)
}

// remove deletes a live key. It reports whether anything was removed.
func (e *Engine) remove(key string) bool {
	if _, ok := e.lookup(key); !ok {
		return false
	}
	delete(e.keys, key)
	delete(e.expires, key)
	return true
}

// dropIfEmpty deletes key if it holds a container with no elements.
func (e *Engine) dropIfEmpty(key string) {
	var n int
	switch c := e.keys[key].(type) {
	case *store.List:
		n = c.Len()
	case *store.Hash:
		n = c.Len()
	case *store.Set:
		n = c.Card()
	case *store.SortedSet:
		n = c.Card()
	default:
		return
	}
	if n == 0 {
		delete(e.keys, key)
		delete(e.expires, key)
	}
}

// lookupAs returns the live value of key as a T. A missing key yields
// ok == false; a key of another kind yields ErrWrongType.
func lookupAs[T store.Value](e *Engine, key string) (value T, ok bool, err error) {
	v, found := e.lookup(key)
	if !found {
		return value, false, nil
	}
	value, ok = v.(T)
	if !ok {
		return value, false, ErrWrongType
	}
	return value, true, nil
}

// getOrCreate returns the container at key, creating it when missing.
// Callers must dropIfEmpty after mutating in case nothing was added.
func getOrCreate[T store.Value](e *Engine, key string, create func() T) (T, error) {
	value, ok, err := lookupAs[T](e, key)
	if err != nil || ok {
		return value, err
	}
	value = create()
	e.keys[key] = value
	return value, nil
}
