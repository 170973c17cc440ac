// emberkv-cli - interactive client for EmberKV
//
// Usage:
//
//	emberkv-cli [flags] [command [arg...]]
//
// With a command it runs once and exits; otherwise it reads commands
// from stdin, one per line. Arguments may be quoted with "..." (Go
// escapes) or '...' (literal).
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/emberkv/emberkv/internal/protocol"
)

type client struct {
	conn net.Conn
	r    *protocol.Reader
	w    *protocol.Writer
}

func dial(addr string, timeout time.Duration) (*client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return &client{conn: conn, r: protocol.NewReader(conn), w: protocol.NewWriter(conn)}, nil
}

func (c *client) do(cmd protocol.Command) (protocol.Reply, error) {
	if err := c.w.WriteCommand(cmd); err != nil {
		return nil, err
	}
	if err := c.w.Flush(); err != nil {
		return nil, err
	}
	return c.r.ReadReply()
}

func main() {
	var (
		addr      string
		password  string
		namespace string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:          "emberkv-cli [command [arg...]]",
		Short:        "Send commands to an EmberKV server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(addr, timeout)
			if err != nil {
				return fmt.Errorf("connect %s: %w", addr, err)
			}
			defer c.conn.Close()

			if password != "" {
				if err := c.expectOK(protocol.NewCommand("AUTH", password)); err != nil {
					return err
				}
			}
			if namespace != "" {
				if err := c.expectOK(protocol.NewCommand("SELECT", namespace)); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				reply, err := c.do(protocol.NewCommand(args...))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, protocol.String(reply))
				return nil
			}
			return repl(c, cmd.InOrStdin(), out, addr)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&addr, "addr", "h", "127.0.0.1:6379", "server address")
	flags.StringVarP(&password, "password", "a", "", "password sent with AUTH on connect")
	flags.StringVarP(&namespace, "namespace", "n", "", "namespace selected on connect")
	flags.DurationVar(&timeout, "timeout", 5*time.Second, "connect timeout")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (c *client) expectOK(cmd protocol.Command) error {
	reply, err := c.do(cmd)
	if err != nil {
		return err
	}
	if e, ok := reply.(protocol.ErrorReply); ok {
		return fmt.Errorf("%s: %s", strings.ToLower(string(cmd[0])), e.Text)
	}
	return nil
}

func repl(c *client, in io.Reader, out io.Writer, prompt string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprintf(out, "%s> ", prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		args, err := splitArgs(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "(error) %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		reply, err := c.do(protocol.NewCommand(args...))
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "connection closed")
				return nil
			}
			return err
		}
		fmt.Fprintln(out, protocol.String(reply))
	}
}

// splitArgs tokenizes one input line. Double-quoted tokens use Go string
// escapes, single-quoted tokens are taken literally.
func splitArgs(line string) ([]string, error) {
	var args []string
	i := 0
	for {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			return args, nil
		}
		switch line[i] {
		case '"':
			end := i + 1
			for end < len(line) && line[end] != '"' {
				if line[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(line) {
				return nil, errors.New("unbalanced quotes")
			}
			arg, err := strconv.Unquote(line[i : end+1])
			if err != nil {
				return nil, fmt.Errorf("invalid quoted argument: %w", err)
			}
			args = append(args, arg)
			i = end + 1
		case '\'':
			end := strings.IndexByte(line[i+1:], '\'')
			if end < 0 {
				return nil, errors.New("unbalanced quotes")
			}
			args = append(args, line[i+1:i+1+end])
			i += end + 2
		default:
			end := i
			for end < len(line) && line[end] != ' ' && line[end] != '\t' {
				end++
			}
			args = append(args, line[i:end])
			i = end
		}
	}
}
