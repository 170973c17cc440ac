package engine

import (
	"math"
	"sort"
	"strings"

	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/store"
)

// execFunc runs with the engine lock held. args excludes the verb.
type execFunc func(e *Engine, args [][]byte) (protocol.Reply, error)

// Operation is one entry of the command table.
type Operation struct {
	name  string
	exec  execFunc
	arity int // counts the verb: n > 0 exactly n words, n < 0 at least -n
}

// Name returns the lowercased verb.
func (op *Operation) Name() string { return op.name }

// Arity returns the word count rule, verb included: exact when
// positive, a minimum of -n when negative.
func (op *Operation) Arity() int { return op.arity }

func (op *Operation) acceptsArgs(n int) bool {
	argc := n + 1
	if op.arity > 0 {
		return argc == op.arity
	}
	return argc >= -op.arity
}

var cmdTable = make(map[string]*Operation)

// registerCommand is only called from init functions; the table is
// read-only afterwards.
func registerCommand(name string, exec execFunc, arity int) {
	name = strings.ToLower(name)
	cmdTable[name] = &Operation{
		name:  name,
		exec:  exec,
		arity: arity,
	}
}

// Lookup finds the operation for verb, case-insensitively.
func Lookup(verb string) (*Operation, bool) {
	op, ok := cmdTable[strings.ToLower(verb)]
	return op, ok
}

// Commands returns every registered verb in sorted order.
func Commands() []string {
	names := make([]string, 0, len(cmdTable))
	for name := range cmdTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// argument helpers

func parseInt(b []byte) (int64, error) {
	n, err := store.ParseInt(b)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}

func parseIndex(b []byte) (int, error) {
	n, err := parseInt(b)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	} else if n < math.MinInt32 {
		n = math.MinInt32
	}
	return int(n), nil
}

func parseFloat(b []byte) (float64, error) {
	f, err := store.ParseFloat(b)
	if err != nil {
		return 0, ErrNotFloat
	}
	return f, nil
}

func keyStrings(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}

func equalFold(b []byte, s string) bool {
	return strings.EqualFold(string(b), s)
}

func boolReply(b bool) protocol.Reply {
	if b {
		return protocol.Integer(1)
	}
	return protocol.Integer(0)
}
