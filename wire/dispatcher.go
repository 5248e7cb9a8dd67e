package wire

// ErrorCode classifies why the dispatcher is reporting a parse error to
// its owner, per §7's error kinds.
type ErrorCode int

const (
	// ErrCodeUnknownProtocol means the first byte matched none of the
	// three known protocols. Fatal for the connection; no message
	// callback ever fires.
	ErrCodeUnknownProtocol ErrorCode = iota
	// ErrCodeMalformedHeader means a binary header parser rejected the
	// bytes present. Fatal for the connection; there is no
	// resynchronization strategy for a framing-less binary protocol.
	ErrCodeMalformedHeader
	// ErrCodeCallbackRefused means an OnUmbrellaMessage/OnCaretMessage
	// callback returned false, a fatal protocol violation discovered
	// downstream of this parser.
	ErrCodeCallbackRefused
)

// Callbacks is the dispatcher's downstream collaborator surface (§6). The
// slice passed to OnUmbrellaMessage/OnCaretMessage/OnAscii is only valid
// until the callback returns; ConsumeFront is deferred until after.
type Callbacks interface {
	// OnUmbrellaMessage delivers one complete Umbrella frame. Returning
	// false is a fatal protocol violation: the dispatcher aborts.
	OnUmbrellaMessage(fd FrameDescriptor, frame []byte) bool
	// OnCaretMessage delivers one complete Caret frame. Returning false is
	// a fatal protocol violation: the dispatcher aborts.
	OnCaretMessage(fd FrameDescriptor, frame []byte) bool
	// OnAscii hands the entire pending region to the ASCII sub-parser,
	// which is external to this core and owns its own line-based framing
	// and consumption.
	OnAscii(pending []byte)
	// ParseError reports a fatal condition; the connection owner is
	// expected to close the connection afterward.
	ParseError(code ErrorCode, message string)
}

// Dispatcher drives a Buffer through the frame state machine of §4.4:
// SCAN_HEADER, WAIT_MORE, HAVE_HEADER, GROW_IF_NEEDED, DELIVER, and ABORT.
// It owns protocol detection for the connection (irrevocable once set)
// and never buffers or interprets ASCII bodies itself.
//
// A Dispatcher belongs to one connection and its owning proxy thread; it
// is not safe for concurrent use.
type Dispatcher struct {
	buf *Buffer
	cb  Callbacks

	firstByteSeen bool
	protocol      Protocol
	aborted       bool
}

// NewDispatcher builds a Dispatcher over buf, delivering frames to cb.
func NewDispatcher(buf *Buffer, cb Callbacks) *Dispatcher {
	return &Dispatcher{buf: buf, cb: cb}
}

// Protocol returns the protocol detected from the connection's first
// byte, or Unknown if no byte has arrived yet.
func (d *Dispatcher) Protocol() Protocol {
	return d.protocol
}

// Aborted reports whether this dispatcher has already reported a fatal
// error; once true, ReadDataAvailable always returns false.
func (d *Dispatcher) Aborted() bool {
	return d.aborted
}

// Reset clears both the dispatcher's protocol-detection state and its
// buffer's pending region, for reuse on a fresh connection. It does not
// clear Aborted; a dispatcher that has reported a fatal error is not
// meant to be reused.
func (d *Dispatcher) Reset() {
	d.firstByteSeen = false
	d.protocol = Unknown
	d.buf.Reset()
}

// ReadDataAvailable runs the state machine over whatever bytes are
// currently pending in the buffer, delivering zero or more complete
// frames to the appropriate callback in wire-arrival order. Call it once
// after every CommitWrite. Returns false if the connection must be
// closed: an unknown protocol, a malformed header, or a callback refusal.
// Once it returns false it always returns false; callers must not keep
// feeding a dispatcher past its first abort.
func (d *Dispatcher) ReadDataAvailable() bool {
	if d.aborted {
		return false
	}

	if !d.firstByteSeen {
		pending := d.buf.Pending()
		if len(pending) == 0 {
			return true
		}
		d.protocol = Detect(pending[0])
		d.firstByteSeen = true
		if d.protocol == Unknown {
			// No callback fires here: an unrecognized first byte isn't a
			// parse failure to report, just a connection this dispatcher
			// can't make sense of. Only a malformed header on an already
			// -detected protocol is reported via ParseError.
			d.abort()
			return false
		}
	}

	if d.protocol == Ascii {
		return d.deliverAscii()
	}
	return d.deliverBinary()
}

func (d *Dispatcher) deliverAscii() bool {
	pending := d.buf.Pending()
	if len(pending) == 0 {
		return true
	}
	d.cb.OnAscii(pending)
	return true
}

func (d *Dispatcher) deliverBinary() bool {
	parseHeader := ParseUmbrellaHeader
	if d.protocol == Caret {
		parseHeader = ParseCaretHeader
	}

	for {
		pending := d.buf.Pending()
		if len(pending) == 0 {
			return true // WAIT_MORE
		}

		fd, status := parseHeader(pending)
		switch status {
		case StatusNotEnoughData:
			return true // WAIT_MORE
		case StatusMalformed:
			d.cb.ParseError(ErrCodeMalformedHeader, "Error parsing "+d.protocol.String()+" header")
			d.abort()
			return false
		}

		frameSize := fd.Size()
		if len(pending) < frameSize {
			// GROW_IF_NEEDED: EnsureCapacity is a no-op if the buffer
			// already has room; either way we still need more bytes.
			d.buf.EnsureCapacity(frameSize)
			return true // WAIT_MORE
		}

		frame := pending[:frameSize]
		var ok bool
		if d.protocol == Umbrella {
			ok = d.cb.OnUmbrellaMessage(fd, frame)
		} else {
			ok = d.cb.OnCaretMessage(fd, frame)
		}
		if !ok {
			d.cb.ParseError(ErrCodeCallbackRefused, "callback refused "+d.protocol.String()+" frame")
			d.abort()
			return false
		}

		d.buf.ConsumeFront(frameSize)
		d.buf.RecordMessageParsed()
		d.buf.MaybeShrink()
	}
}

func (d *Dispatcher) abort() {
	d.aborted = true
	d.buf.Reset()
}
