// Package frontend is the reference on_ascii handler: it turns the pending
// bytes wire.Dispatcher hands to the ASCII sub-parser into meta.Request
// values, and wires the resulting requests through to a destination and
// back out as replies via proxyreq. It plays the role spec §6 assigns to
// the external ASCII collaborator, using the meta codec to do it.
package frontend

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/mcrelay/mcrelay/meta"
	"github.com/mcrelay/mcrelay/wire"
)

// AsciiBridge implements the ASCII half of wire.Callbacks. It owns no
// buffering of its own: every OnAscii call re-parses meta.Request values
// out of whatever pending bytes wire.Buffer currently holds, and consumes
// from buf exactly the bytes that turned into complete requests, leaving a
// trailing partial request for the next read to complete.
type AsciiBridge struct {
	buf     *wire.Buffer
	handle  func(*meta.Request)
	onError func(err error)
}

// NewAsciiBridge builds a bridge over buf. handle runs once per
// successfully parsed request, in wire order. onError runs at most once
// per OnAscii call, when the pending bytes can never become a valid
// request regardless of what arrives next; treat it like
// wire.Callbacks.ParseError and close the connection.
func NewAsciiBridge(buf *wire.Buffer, handle func(*meta.Request), onError func(error)) *AsciiBridge {
	return &AsciiBridge{buf: buf, handle: handle, onError: onError}
}

// OnAscii implements wire.Callbacks.
func (a *AsciiBridge) OnAscii(pending []byte) {
	if len(pending) == 0 {
		return
	}

	// Sizing the bufio.Reader to len(pending) guarantees it fills its
	// internal buffer from the underlying bytes.Reader in a single Read,
	// so Buffered() afterward reports exactly how much of pending is
	// still unconsumed logically, not just unconsumed by the OS.
	r := bufio.NewReaderSize(bytes.NewReader(pending), len(pending))

	consumed := 0
	for {
		req, err := meta.ReadRequest(r)
		if err != nil {
			if !isIncompleteRequest(err) && a.onError != nil {
				a.onError(err)
			}
			break
		}
		consumed = len(pending) - r.Buffered()
		a.handle(req)
		if r.Buffered() == 0 {
			break
		}
	}

	if consumed > 0 {
		a.buf.ConsumeFront(consumed)
	}
}

// isIncompleteRequest reports whether err means "not enough bytes yet"
// rather than "these bytes are not a valid request." meta.ReadRequest
// wraps a short data-block read in a *meta.ParseError, but ParseError's
// Unwrap makes errors.Is see through to the underlying io.EOF /
// io.ErrUnexpectedEOF either way.
func isIncompleteRequest(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Callbacks adapts an AsciiBridge into a full wire.Callbacks for a
// connection that only ever expects the ASCII protocol: a binary frame
// arriving on such a connection is itself a protocol violation.
type Callbacks struct {
	*AsciiBridge
	onFatal func(wire.ErrorCode, string)
}

// NewCallbacks builds an ASCII-only wire.Callbacks. onFatal is invoked for
// both a rejected binary frame and any ParseError the dispatcher reports;
// AsciiBridge's own onError is separate, since it fires from inside
// OnAscii rather than from the dispatcher.
func NewCallbacks(bridge *AsciiBridge, onFatal func(wire.ErrorCode, string)) *Callbacks {
	return &Callbacks{AsciiBridge: bridge, onFatal: onFatal}
}

func (c *Callbacks) OnUmbrellaMessage(fd wire.FrameDescriptor, frame []byte) bool {
	return false
}

func (c *Callbacks) OnCaretMessage(fd wire.FrameDescriptor, frame []byte) bool {
	return false
}

func (c *Callbacks) ParseError(code wire.ErrorCode, message string) {
	if c.onFatal != nil {
		c.onFatal(code, message)
	}
}
