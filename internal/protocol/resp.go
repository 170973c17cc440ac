// Package protocol implements the RESP wire format: request framing
// (inline and multibulk) and reply encoding.
package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrProtocol indicates a malformed frame. The connection that produced
// it cannot be resynchronised and must be closed.
var ErrProtocol = errors.New("protocol: invalid frame")

const (
	maxBulkLength      = 512 * 1024 * 1024 // 512 MiB
	maxMultiBulkLength = 1_000_000
	maxInlineLength    = 64 * 1024
	defaultBufSize     = 64 * 1024 // 64 KiB read/write buffers

	// Headers are untrusted until the payload arrives, so allocations
	// sized from them are capped and grown as data is read.
	maxPreallocItems = 1024
	maxPreallocBytes = 1024 * 1024
)

var (
	crlfBytes = []byte("\r\n")
	nullBytes = []byte("$-1\r\n")
	okBytes   = []byte("+OK\r\n")
)

// lineBreaks keeps status and error text on a single line.
var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

var errTruncated = fmt.Errorf("%w: %w", ErrProtocol, io.ErrUnexpectedEOF)

// Reader decodes frames from a byte stream.
type Reader struct {
	rd *bufio.Reader
}

// NewReader creates a new Reader. The buffer size also caps the length
// of an inline command line.
func NewReader(r io.Reader) *Reader {
	return &Reader{rd: bufio.NewReaderSize(r, defaultBufSize)}
}

// Buffered returns the number of bytes that can be read without a
// syscall. The server uses it to batch pipelined replies into one flush.
func (r *Reader) Buffered() int {
	return r.rd.Buffered()
}

// ReadCommand reads one request. It returns io.EOF when the stream ends
// cleanly between frames and an error wrapping ErrProtocol when the
// frame is malformed or truncated.
func (r *Reader) ReadCommand() (Command, error) {
	first, err := r.rd.Peek(1)
	if err != nil {
		return nil, err
	}
	if first[0] == '*' {
		return r.readMultiBulk()
	}
	return r.readInline()
}

// readLine returns the next line without its terminator. The returned
// slice is only valid until the next read. Inline lines may end in a
// bare LF; everything else requires CRLF.
func (r *Reader) readLine(strict bool) ([]byte, error) {
	line, err := r.rd.ReadSlice('\n')
	if err != nil {
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrProtocol, maxInlineLength)
		case errors.Is(err, io.EOF):
			return nil, errTruncated
		}
		return nil, err
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1], nil
	}
	if strict {
		return nil, fmt.Errorf("%w: line not terminated by CRLF", ErrProtocol)
	}
	return line, nil
}

func (r *Reader) readInline() (Command, error) {
	line, err := r.readLine(false)
	if err != nil {
		return nil, err
	}
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty inline command", ErrProtocol)
	}
	cmd := make(Command, len(fields))
	for i, f := range fields {
		cmd[i] = bytes.Clone(f)
	}
	return cmd, nil
}

func (r *Reader) readMultiBulk() (Command, error) {
	n, err := r.readHeader('*')
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: multibulk length must be positive, got %d", ErrProtocol, n)
	}
	if n > maxMultiBulkLength {
		return nil, fmt.Errorf("%w: multibulk length %d too large", ErrProtocol, n)
	}

	cmd := make(Command, 0, min(n, maxPreallocItems))
	for range n {
		size, err := r.readHeader('$')
		if err != nil {
			return nil, err
		}
		if size < 0 {
			return nil, fmt.Errorf("%w: negative bulk length", ErrProtocol)
		}
		arg, err := r.readPayload(size)
		if err != nil {
			return nil, err
		}
		cmd = append(cmd, arg)
	}
	return cmd, nil
}

// readHeader reads a "<prefix><int>\r\n" line.
func (r *Reader) readHeader(prefix byte) (int64, error) {
	line, err := r.readLine(true)
	if err != nil {
		return 0, err
	}
	if len(line) == 0 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected '%c'", ErrProtocol, prefix)
	}
	n, err := strconv.ParseInt(string(line[1:]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, line[1:])
	}
	return n, nil
}

func (r *Reader) readPayload(size int64) ([]byte, error) {
	if size > maxBulkLength {
		return nil, fmt.Errorf("%w: bulk length %d too large", ErrProtocol, size)
	}
	var data []byte
	if size+2 <= maxPreallocBytes {
		data = make([]byte, size+2)
		if _, err := io.ReadFull(r.rd, data); err != nil {
			return nil, truncated(err)
		}
	} else {
		buf := bytes.NewBuffer(make([]byte, 0, maxPreallocBytes))
		if _, err := io.CopyN(buf, r.rd, size+2); err != nil {
			return nil, truncated(err)
		}
		data = buf.Bytes()
	}
	if data[size] != '\r' || data[size+1] != '\n' {
		return nil, fmt.Errorf("%w: bulk payload not terminated by CRLF", ErrProtocol)
	}
	return data[:size:size], nil
}

// ReadReply decodes one reply frame. It is the client half of the codec.
func (r *Reader) ReadReply() (Reply, error) {
	if _, err := r.rd.Peek(1); err != nil {
		return nil, err
	}
	line, err := r.readLine(true)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty reply line", ErrProtocol)
	}

	switch line[0] {
	case '+':
		return StatusReply{Text: string(line[1:])}, nil
	case '-':
		return ErrorReply{Text: string(line[1:])}, nil
	case ':':
		n, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line[1:])
		}
		return IntegerReply{Value: n}, nil
	case '$':
		size, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid bulk length %q", ErrProtocol, line[1:])
		}
		if size < 0 {
			return NullBulk(), nil
		}
		data, err := r.readPayload(size)
		if err != nil {
			return nil, err
		}
		return BulkReply{Data: data}, nil
	case '*':
		n, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid multibulk length %q", ErrProtocol, line[1:])
		}
		if n < 0 {
			return NullBulk(), nil
		}
		if n > maxMultiBulkLength {
			return nil, fmt.Errorf("%w: multibulk length %d too large", ErrProtocol, n)
		}
		items := make([]Reply, 0, min(n, maxPreallocItems))
		for range n {
			item, err := r.ReadReply()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, errTruncated
				}
				return nil, err
			}
			items = append(items, item)
		}
		return MultiBulkReply{Items: items}, nil
	default:
		return nil, fmt.Errorf("%w: unknown reply type %q", ErrProtocol, line[0])
	}
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errTruncated
	}
	return err
}

// Writer encodes frames. Writes are buffered; call Flush to send them.
type Writer struct {
	wr      *bufio.Writer
	scratch []byte
}

// NewWriter creates a new Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		wr:      bufio.NewWriterSize(w, defaultBufSize),
		scratch: make([]byte, 0, 20), // max int64 is 19 digits + sign
	}
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error { return w.wr.Flush() }

// writeTypedInt writes a type byte, the decimal n and CRLF.
func (w *Writer) writeTypedInt(prefix byte, n int64) error {
	if err := w.wr.WriteByte(prefix); err != nil {
		return err
	}
	w.scratch = strconv.AppendInt(w.scratch[:0], n, 10)
	if _, err := w.wr.Write(w.scratch); err != nil {
		return err
	}
	_, err := w.wr.Write(crlfBytes)
	return err
}

func (w *Writer) writeLine(prefix byte, s string) error {
	if strings.ContainsAny(s, "\r\n") {
		s = lineBreaks.Replace(s)
	}
	if err := w.wr.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := w.wr.WriteString(s); err != nil {
		return err
	}
	_, err := w.wr.Write(crlfBytes)
	return err
}

func (w *Writer) writeBulk(b []byte) error {
	if err := w.writeTypedInt('$', int64(len(b))); err != nil {
		return err
	}
	if _, err := w.wr.Write(b); err != nil {
		return err
	}
	_, err := w.wr.Write(crlfBytes)
	return err
}

// WriteReply encodes r into the buffer. NoReply writes nothing.
func (w *Writer) WriteReply(r Reply) error {
	switch v := r.(type) {
	case StatusReply:
		if v.Text == "OK" {
			_, err := w.wr.Write(okBytes)
			return err
		}
		return w.writeLine('+', v.Text)
	case ErrorReply:
		return w.writeLine('-', v.Text)
	case IntegerReply:
		return w.writeTypedInt(':', v.Value)
	case BulkReply:
		if v.Null {
			_, err := w.wr.Write(nullBytes)
			return err
		}
		return w.writeBulk(v.Data)
	case MultiBulkReply:
		if err := w.writeTypedInt('*', int64(len(v.Items))); err != nil {
			return err
		}
		for _, item := range v.Items {
			if err := w.WriteReply(item); err != nil {
				return err
			}
		}
		return nil
	case noReply:
		return nil
	default:
		return fmt.Errorf("protocol: unsupported reply %T", r)
	}
}

// WriteCommand encodes cmd in multibulk form. It is the client half of
// the codec.
func (w *Writer) WriteCommand(cmd Command) error {
	if err := w.writeTypedInt('*', int64(len(cmd))); err != nil {
		return err
	}
	for _, arg := range cmd {
		if err := w.writeBulk(arg); err != nil {
			return err
		}
	}
	return nil
}
