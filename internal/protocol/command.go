package protocol

import "bytes"

// Command is one request: a verb followed by its arguments. A Command
// produced by Reader.ReadCommand is never empty.
type Command [][]byte

// NewCommand builds a Command from string parts.
func NewCommand(parts ...string) Command {
	cmd := make(Command, len(parts))
	for i, p := range parts {
		cmd[i] = []byte(p)
	}
	return cmd
}

// Verb returns the lowercased command name.
func (c Command) Verb() string {
	if len(c) == 0 {
		return ""
	}
	return string(bytes.ToLower(c[0]))
}

// Args returns everything after the verb.
func (c Command) Args() [][]byte {
	if len(c) == 0 {
		return nil
	}
	return c[1:]
}
