// Package database maps namespace names to their storage engines.
package database

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/emberkv/emberkv/internal/engine"
)

// DefaultNamespace is bound to every new connection.
const DefaultNamespace = "0"

// Registry creates namespaces on first use and never evicts them.
type Registry struct {
	engines    *xsync.MapOf[string, *engine.Engine]
	engineOpts []engine.Option
	onCreate   func(name string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithEngineOptions is applied to every engine the registry creates.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(r *Registry) {
		r.engineOpts = append(r.engineOpts, opts...)
	}
}

// OnCreate registers fn to run once per newly created namespace.
func OnCreate(fn func(name string)) Option {
	return func(r *Registry) {
		r.onCreate = fn
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{engines: xsync.NewMapOf[string, *engine.Engine]()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the engine for name, creating it atomically if needed.
// Concurrent callers with the same name always get the same engine.
func (r *Registry) Resolve(name string) *engine.Engine {
	e, loaded := r.engines.LoadOrCompute(name, func() *engine.Engine {
		return engine.New(name, r.engineOpts...)
	})
	if !loaded && r.onCreate != nil {
		r.onCreate(name)
	}
	return e
}

// Len reports the number of namespaces created so far.
func (r *Registry) Len() int {
	return r.engines.Size()
}

// Names returns the namespace names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.engines.Size())
	r.engines.Range(func(name string, _ *engine.Engine) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
