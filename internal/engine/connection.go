package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/emberkv/emberkv/internal/protocol"
	"github.com/emberkv/emberkv/internal/version"
)

func init() {
	registerCommand("ping", execPing, -1)
	registerCommand("echo", execEcho, 2)
	registerCommand("quit", execQuit, 1)
	registerCommand("command", execCommand, -1)
	registerCommand("info", execInfo, -1)
	registerCommand("time", execTime, 1)
}

func execPing(e *Engine, args [][]byte) (protocol.Reply, error) {
	switch len(args) {
	case 0:
		return protocol.Status("PONG"), nil
	case 1:
		return protocol.Bulk(args[0]), nil
	}
	return nil, &ArgumentError{Verb: "ping"}
}

func execEcho(e *Engine, args [][]byte) (protocol.Reply, error) {
	return protocol.Bulk(args[0]), nil
}

// execQuit asks the session to close the connection without a reply.
func execQuit(e *Engine, args [][]byte) (protocol.Reply, error) {
	return protocol.NoReply, nil
}

func execCommand(e *Engine, args [][]byte) (protocol.Reply, error) {
	if len(args) == 1 && equalFold(args[0], "count") {
		return protocol.Integer(int64(len(cmdTable))), nil
	}
	return protocol.StringArray(Commands()), nil
}

func execInfo(e *Engine, args [][]byte) (protocol.Reply, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Server\r\nemberkv_version:%s\r\nuptime_in_seconds:%d\r\n\r\n",
		version.Version, int64(e.now().Sub(e.startTime).Seconds()))
	fmt.Fprintf(&sb, "# Stats\r\ntotal_commands_processed:%d\r\nexpired_keys:%d\r\n\r\n",
		e.totalCommands.Load(), e.expiredKeys.Load())
	fmt.Fprintf(&sb, "# Keyspace\r\n%s:keys=%d,expires=%d\r\n", e.name, len(e.keys), len(e.expires))
	return protocol.BulkString(sb.String()), nil
}

func execTime(e *Engine, args [][]byte) (protocol.Reply, error) {
	now := e.now()
	return protocol.StringArray([]string{
		fmt.Sprint(now.Unix()),
		fmt.Sprint(now.Nanosecond() / int(time.Microsecond)),
	}), nil
}
