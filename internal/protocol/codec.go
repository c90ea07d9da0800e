// Package protocol implements ProtocolCodec: length-prefixed, typed-
// field framing over abstract byte streams (spec §4.2, §6). It has no
// opinion on transport — callers hand it an io.Reader and an
// io.Writer, which in production are the two halves of a net.Conn and
// in tests are in-memory pipes.
package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	helloTag = "Synergy"

	// kMaxHelloLength bounds the greeting frame; kMaxMessageLength
	// bounds every frame after the handshake (spec §4.2).
	kMaxHelloLength    = 1024
	kMaxMessageLength  = 4 * 1024 * 1024
	lengthPrefixBytes  = 4
	commandCodeBytes   = 4
)

// Codec reads and writes framed messages over one direction each of a
// byte stream pair. It is half-duplex per direction: concurrent reads
// and writes on the same Codec from different goroutines are safe only
// because ReadFrame and WriteFrame touch disjoint buffers, but each
// direction itself is single-writer/single-reader — callers must not
// call WriteFrame concurrently with itself (see clientproxy.Proxy,
// which serializes writes with its own mutex).
type Codec struct {
	r *bufio.Reader
	w *bufio.Writer
}

// NewCodec wraps the input and output halves of a connection.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{r: bufio.NewReader(r), w: bufio.NewWriter(w)}
}

// Flush pushes any buffered writes to the underlying stream. Callers
// must flush at the end of each logical command emission (spec §4.2)
// — WriteFrame, WriteHello and WriteHelloReply all do this before
// returning, so callers of those never need Flush.
func (c *Codec) Flush() error {
	return c.w.Flush()
}

// WriteHello sends the server's opening greeting: "Synergy" + major +
// minor, framed like any other message but checked against
// kMaxHelloLength on the read side.
func (c *Codec) WriteHello(major, minor uint16) error {
	body := make([]byte, 0, len(helloTag)+4)
	body = append(body, helloTag...)
	body = binary.BigEndian.AppendUint16(body, major)
	body = binary.BigEndian.AppendUint16(body, minor)
	return c.writeRaw(body)
}

// WriteHelloReply sends the client's handshake reply: "Synergy" +
// major + minor + name.
func (c *Codec) WriteHelloReply(major, minor uint16, name string) error {
	body := make([]byte, 0, len(helloTag)+4+4+len(name))
	body = append(body, helloTag...)
	body = binary.BigEndian.AppendUint16(body, major)
	body = binary.BigEndian.AppendUint16(body, minor)
	body = binary.BigEndian.AppendUint32(body, uint32(len(name)))
	body = append(body, name...)
	return c.writeRaw(body)
}

// ReadHello reads the server's opening greeting.
func (c *Codec) ReadHello() (major, minor uint16, err error) {
	body, err := c.readRaw(kMaxHelloLength)
	if err != nil {
		return 0, 0, err
	}
	r := NewFrameReader(body)
	tag, err := r.Raw(len(helloTag))
	if err != nil || string(tag) != helloTag {
		return 0, 0, newProtocolError("hello: missing Synergy tag", err)
	}
	major, err = r.Uint16()
	if err != nil {
		return 0, 0, newProtocolError("hello: truncated major version", err)
	}
	minor, err = r.Uint16()
	if err != nil {
		return 0, 0, newProtocolError("hello: truncated minor version", err)
	}
	return major, minor, nil
}

// ReadHelloReply reads the client's handshake reply.
func (c *Codec) ReadHelloReply() (major, minor uint16, name string, err error) {
	body, err := c.readRaw(kMaxHelloLength)
	if err != nil {
		return 0, 0, "", err
	}
	r := NewFrameReader(body)
	tag, err := r.Raw(len(helloTag))
	if err != nil || string(tag) != helloTag {
		return 0, 0, "", newProtocolError("hello reply: missing Synergy tag", err)
	}
	major, err = r.Uint16()
	if err != nil {
		return 0, 0, "", newProtocolError("hello reply: truncated major version", err)
	}
	minor, err = r.Uint16()
	if err != nil {
		return 0, 0, "", newProtocolError("hello reply: truncated minor version", err)
	}
	name, err = r.String()
	if err != nil {
		return 0, 0, "", newProtocolError("hello reply: truncated name", err)
	}
	return major, minor, name, nil
}

// WriteFrame sends a 4-byte command code followed by an already
// encoded field body, then flushes (spec: "Writes are ... explicitly
// flushed at logical boundaries").
func (c *Codec) WriteFrame(code string, body []byte) error {
	if len(code) != commandCodeBytes {
		return newProtocolError(fmt.Sprintf("command code %q must be exactly 4 bytes", code), nil)
	}
	full := make([]byte, 0, commandCodeBytes+len(body))
	full = append(full, code...)
	full = append(full, body...)
	return c.writeRaw(full)
}

// ReadFrame reads one message after the handshake: a command code and
// its raw field bytes, bounded by kMaxMessageLength.
func (c *Codec) ReadFrame() (code string, body []byte, err error) {
	full, err := c.readRaw(kMaxMessageLength)
	if err != nil {
		return "", nil, err
	}
	if len(full) < commandCodeBytes {
		return "", nil, newProtocolError("frame shorter than command code", nil)
	}
	return string(full[:commandCodeBytes]), full[commandCodeBytes:], nil
}

func (c *Codec) writeRaw(body []byte) error {
	header := make([]byte, lengthPrefixBytes)
	binary.BigEndian.PutUint32(header, uint32(len(body)))
	if _, err := c.w.Write(header); err != nil {
		return newProtocolError("write frame header", err)
	}
	if _, err := c.w.Write(body); err != nil {
		return newProtocolError("write frame body", err)
	}
	return c.w.Flush()
}

func (c *Codec) readRaw(maxLen int) ([]byte, error) {
	header := make([]byte, lengthPrefixBytes)
	if _, err := io.ReadFull(c.r, header); err != nil {
		return nil, newProtocolError("read frame header", err)
	}
	length := binary.BigEndian.Uint32(header)
	if int(length) > maxLen {
		return nil, newProtocolError(fmt.Sprintf("frame length %d exceeds ceiling %d", length, maxLen), nil)
	}
	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(c.r, body); err != nil {
			return nil, newProtocolError("read frame body", err)
		}
	}
	return body, nil
}
