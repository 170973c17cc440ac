package protocol

import (
	"strconv"
	"strings"
)

// Reply is one response frame. The set of implementations is closed:
// StatusReply, ErrorReply, IntegerReply, BulkReply, MultiBulkReply and
// the NoReply sentinel.
type Reply interface {
	reply()
}

// StatusReply is a single-line success reply (+text).
type StatusReply struct {
	Text string
}

// ErrorReply is a single-line error reply (-text). Text carries its own
// prefix, e.g. "ERR ..." or "WRONGTYPE ...".
type ErrorReply struct {
	Text string
}

// IntegerReply is a signed 64-bit integer reply.
type IntegerReply struct {
	Value int64
}

// BulkReply is a binary-safe string reply. Null distinguishes the nil
// bulk ($-1) from an empty one.
type BulkReply struct {
	Data []byte
	Null bool
}

// MultiBulkReply is an ordered, possibly nested, sequence of replies.
type MultiBulkReply struct {
	Items []Reply
}

type noReply struct{}

// NoReply tells the session to close the connection without writing.
var NoReply Reply = noReply{}

func (StatusReply) reply()    {}
func (ErrorReply) reply()     {}
func (IntegerReply) reply()   {}
func (BulkReply) reply()      {}
func (MultiBulkReply) reply() {}
func (noReply) reply()        {}

func (r ErrorReply) Error() string { return r.Text }

var okReply = StatusReply{Text: "OK"}

// OK returns the +OK status reply.
func OK() Reply { return okReply }

// Status returns a +text reply.
func Status(text string) Reply { return StatusReply{Text: text} }

// Error returns a -text reply.
func Error(text string) Reply { return ErrorReply{Text: text} }

// Integer returns a :n reply.
func Integer(n int64) Reply { return IntegerReply{Value: n} }

// Bulk wraps b without copying.
func Bulk(b []byte) Reply {
	if b == nil {
		b = []byte{}
	}
	return BulkReply{Data: b}
}

// BulkString copies s into a bulk reply.
func BulkString(s string) Reply { return BulkReply{Data: []byte(s)} }

// NullBulk returns the nil bulk reply ($-1).
func NullBulk() Reply { return BulkReply{Null: true} }

// Float formats f the way scores and incrbyfloat results are shown.
func Float(f float64) Reply {
	return BulkString(FormatFloat(f))
}

// FormatFloat renders f in the shortest form that round-trips, with
// infinities spelled "inf" and "-inf".
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	switch s {
	case "+Inf":
		return "inf"
	case "-Inf":
		return "-inf"
	}
	return s
}

// MultiBulk wraps items. No items gives an empty array, not a nil one.
func MultiBulk(items ...Reply) Reply {
	if items == nil {
		items = []Reply{}
	}
	return MultiBulkReply{Items: items}
}

// BulkArray builds a multibulk of bulks. A nil element becomes a nil bulk.
func BulkArray(items [][]byte) Reply {
	out := make([]Reply, len(items))
	for i, item := range items {
		if item == nil {
			out[i] = NullBulk()
		} else {
			out[i] = BulkReply{Data: item}
		}
	}
	return MultiBulkReply{Items: out}
}

// StringArray builds a multibulk of bulk strings.
func StringArray(items []string) Reply {
	out := make([]Reply, len(items))
	for i, item := range items {
		out[i] = BulkString(item)
	}
	return MultiBulkReply{Items: out}
}

// String renders r for humans (used by the cli).
func String(r Reply) string {
	var sb strings.Builder
	format(&sb, r, "")
	return sb.String()
}

func format(sb *strings.Builder, r Reply, indent string) {
	switch v := r.(type) {
	case StatusReply:
		sb.WriteString(v.Text)
	case ErrorReply:
		sb.WriteString("(error) ")
		sb.WriteString(v.Text)
	case IntegerReply:
		sb.WriteString("(integer) ")
		sb.WriteString(strconv.FormatInt(v.Value, 10))
	case BulkReply:
		if v.Null {
			sb.WriteString("(nil)")
			return
		}
		sb.WriteString(strconv.Quote(string(v.Data)))
	case MultiBulkReply:
		if len(v.Items) == 0 {
			sb.WriteString("(empty array)")
			return
		}
		for i, item := range v.Items {
			if i > 0 {
				sb.WriteString("\n")
				sb.WriteString(indent)
			}
			prefix := strconv.Itoa(i+1) + ") "
			sb.WriteString(prefix)
			format(sb, item, indent+strings.Repeat(" ", len(prefix)))
		}
	case noReply:
	}
}
