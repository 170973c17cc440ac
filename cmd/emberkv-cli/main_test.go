package main

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberkv/emberkv/internal/protocol"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"get key", []string{"get", "key"}},
		{"  set  k\tv ", []string{"set", "k", "v"}},
		{`set k "hello world"`, []string{"set", "k", "hello world"}},
		{`set k "a\r\nb"`, []string{"set", "k", "a\r\nb"}},
		{`set k "say \"hi\""`, []string{"set", "k", `say "hi"`}},
		{`set k 'it\s raw'`, []string{"set", "k", `it\s raw`}},
		{`set k ""`, []string{"set", "k", ""}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	for _, bad := range []string{`get "open`, `get 'open`, `get "\q"`} {
		_, err := splitArgs(bad)
		assert.Error(t, err, bad)
	}
}

// fakeServer answers every command on conn with the verb as a status.
func fakeServer(t *testing.T, conn net.Conn) {
	t.Helper()
	go func() {
		defer conn.Close()
		r := protocol.NewReader(conn)
		w := protocol.NewWriter(conn)
		for {
			cmd, err := r.ReadCommand()
			if err != nil {
				return
			}
			if cmd.Verb() == "quit" {
				return
			}
			_ = w.WriteReply(protocol.Status(strings.ToUpper(cmd.Verb())))
			_ = w.Flush()
		}
	}()
}

func TestREPL(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	fakeServer(t, serverConn)
	c := &client{conn: clientConn, r: protocol.NewReader(clientConn), w: protocol.NewWriter(clientConn)}
	defer clientConn.Close()

	var out bytes.Buffer
	in := strings.NewReader("ping\n\nget \"unterminated\nquit\n")
	require.NoError(t, repl(c, in, &out, "test"))

	got := out.String()
	assert.Contains(t, got, "test> PING\n")
	assert.Contains(t, got, "(error) unbalanced quotes\n")
	assert.Contains(t, got, "connection closed\n")
}
