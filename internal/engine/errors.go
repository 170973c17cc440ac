package engine

import (
	"errors"
	"fmt"

	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/store"
)

// Expected command failures. Their text is what the client sees.
var (
	ErrWrongType       = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrNotInteger      = errors.New("ERR value is not an integer or out of range")
	ErrNotFloat        = errors.New("ERR value is not a valid float")
	ErrOverflow        = errors.New("ERR increment or decrement would overflow")
	ErrSyntax          = errors.New("ERR syntax error")
	ErrNoSuchKey       = errors.New("ERR no such key")
	ErrIndexOutOfRange = errors.New("ERR index out of range")
	ErrNotPositive     = errors.New("ERR value is out of range, must be positive")
	ErrMinMaxNotFloat  = errors.New("ERR min or max is not a float")
	ErrNotFinite       = errors.New("ERR increment would produce NaN or Infinity")
)

// ArgumentError reports a wrong argument count.
type ArgumentError struct {
	Verb string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("ERR wrong number of arguments for '%s' command", e.Verb)
}

// ExpireError reports a TTL that is not positive or overflows.
type ExpireError struct {
	Verb string
}

func (e *ExpireError) Error() string {
	return fmt.Sprintf("ERR invalid expire time in '%s' command", e.Verb)
}

// UnknownCommand is the reply for a verb with no table entry.
func UnknownCommand(verb string) protocol.Reply {
	return protocol.Error("unknown command: " + verb)
}

func errorReply(err error) protocol.Reply {
	switch {
	case errors.Is(err, store.ErrNotInteger):
		err = ErrNotInteger
	case errors.Is(err, store.ErrNotFloat):
		err = ErrNotFloat
	case errors.Is(err, store.ErrOverflow):
		err = ErrOverflow
	}
	return protocol.Error(err.Error())
}
