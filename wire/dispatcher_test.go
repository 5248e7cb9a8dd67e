package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingCallbacks struct {
	umbrella  []FrameDescriptor
	caret     []FrameDescriptor
	ascii     [][]byte
	errCode   ErrorCode
	errMsg    string
	sawError  bool
	refuseNth int // if > 0, the refuseNth-th binary message is refused
	seen      int
}

func (r *recordingCallbacks) OnUmbrellaMessage(fd FrameDescriptor, frame []byte) bool {
	r.seen++
	if r.refuseNth > 0 && r.seen == r.refuseNth {
		return false
	}
	cp := append([]byte(nil), frame...)
	r.umbrella = append(r.umbrella, fd)
	_ = cp
	return true
}

func (r *recordingCallbacks) OnCaretMessage(fd FrameDescriptor, frame []byte) bool {
	r.seen++
	if r.refuseNth > 0 && r.seen == r.refuseNth {
		return false
	}
	r.caret = append(r.caret, fd)
	return true
}

func (r *recordingCallbacks) OnAscii(pending []byte) {
	cp := append([]byte(nil), pending...)
	r.ascii = append(r.ascii, cp)
}

func (r *recordingCallbacks) ParseError(code ErrorCode, message string) {
	r.sawError = true
	r.errCode = code
	r.errMsg = message
}

func writeInto(b *Buffer, data []byte) {
	region := b.AcquireWriteRegion()
	for len(region) < len(data) {
		b.EnsureCapacity(b.Len() + len(data))
		region = b.AcquireWriteRegion()
	}
	n := copy(region, data)
	b.CommitWrite(n)
}

// A fragmented Umbrella header arrives in three separate reads (1, then a
// few more header bytes, then the rest of the header plus the full body).
func TestDispatcher_FragmentedHeader(t *testing.T) {
	fd := FrameDescriptor{HeaderSize: UmbrellaHeaderSize, BodySize: 8, TypeID: 1, RequestID: 99}
	header := EncodeUmbrellaHeader(fd)
	body := []byte("12345678")
	full := append(append([]byte{}, header...), body...)

	buf := NewBuffer(Options{MinBufferSize: 64})
	cb := &recordingCallbacks{}
	d := NewDispatcher(buf, cb)

	// Step 1: just the magic byte.
	writeInto(buf, full[:1])
	require.True(t, d.ReadDataAvailable())
	require.Empty(t, cb.umbrella)
	require.Equal(t, Umbrella, d.Protocol())

	// Step 2: a few more header bytes, still incomplete.
	writeInto(buf, full[1:12])
	require.True(t, d.ReadDataAvailable())
	require.Empty(t, cb.umbrella)

	// Step 3: rest of header plus full body.
	writeInto(buf, full[12:])
	require.True(t, d.ReadDataAvailable())
	require.Len(t, cb.umbrella, 1)
	require.Equal(t, fd, cb.umbrella[0])
	require.Equal(t, 0, buf.Len())
}

// Two complete Caret frames arriving in a single read are both delivered,
// in order, from one ReadDataAvailable call.
func TestDispatcher_TwoFramesInOneRead(t *testing.T) {
	fd1 := FrameDescriptor{HeaderSize: CaretHeaderSize, BodySize: 16, RequestID: 1}
	fd2 := FrameDescriptor{HeaderSize: CaretHeaderSize, BodySize: 32, RequestID: 2}

	frame1 := append(EncodeCaretHeader(fd1), make([]byte, 16)...)
	frame2 := append(EncodeCaretHeader(fd2), make([]byte, 32)...)
	require.Equal(t, 40, len(frame1))
	require.Equal(t, 56, len(frame2))

	buf := NewBuffer(Options{MinBufferSize: 128})
	cb := &recordingCallbacks{}
	d := NewDispatcher(buf, cb)

	writeInto(buf, append(append([]byte{}, frame1...), frame2...))
	require.True(t, d.ReadDataAvailable())
	require.Len(t, cb.caret, 2)
	require.Equal(t, fd1.RequestID, cb.caret[0].RequestID)
	require.Equal(t, fd2.RequestID, cb.caret[1].RequestID)
	require.Equal(t, 0, buf.Len())
}

// An unrecognized first byte aborts the dispatcher without ever calling
// ParseError: it isn't a parse failure on a known protocol, just a
// connection this dispatcher can't make sense of.
func TestDispatcher_UnknownProtocolAbortsSilently(t *testing.T) {
	buf := NewBuffer(Options{MinBufferSize: 32})
	cb := &recordingCallbacks{}
	d := NewDispatcher(buf, cb)

	writeInto(buf, []byte{0x01, 0x02, 0x03})
	require.False(t, d.ReadDataAvailable())
	require.False(t, cb.sawError)
	require.True(t, d.Aborted())

	// Once aborted, always aborted.
	require.False(t, d.ReadDataAvailable())
}

func TestDispatcher_MalformedHeaderAborts(t *testing.T) {
	buf := NewBuffer(Options{MinBufferSize: 32})
	cb := &recordingCallbacks{}
	d := NewDispatcher(buf, cb)

	header := EncodeUmbrellaHeader(FrameDescriptor{HeaderSize: UmbrellaHeaderSize, BodySize: 4})
	header[4], header[5], header[6], header[7] = 0, 0, 0, 1 // header_size < min
	writeInto(buf, header)

	require.False(t, d.ReadDataAvailable())
	require.True(t, cb.sawError)
	require.Equal(t, ErrCodeMalformedHeader, cb.errCode)
	require.True(t, d.Aborted())
}

func TestDispatcher_CallbackRefusalAborts(t *testing.T) {
	fd := FrameDescriptor{HeaderSize: UmbrellaHeaderSize, BodySize: 0}
	buf := NewBuffer(Options{MinBufferSize: 32})
	cb := &recordingCallbacks{refuseNth: 1}
	d := NewDispatcher(buf, cb)

	writeInto(buf, EncodeUmbrellaHeader(fd))
	require.False(t, d.ReadDataAvailable())
	require.True(t, cb.sawError)
	require.Equal(t, ErrCodeCallbackRefused, cb.errCode)
	require.True(t, d.Aborted())
}

func TestDispatcher_AsciiDeliversWholePendingRegion(t *testing.T) {
	buf := NewBuffer(Options{MinBufferSize: 32})
	cb := &recordingCallbacks{}
	d := NewDispatcher(buf, cb)

	writeInto(buf, []byte("get foo\r\n"))
	require.True(t, d.ReadDataAvailable())
	require.Equal(t, Ascii, d.Protocol())
	require.Len(t, cb.ascii, 1)
	require.Equal(t, "get foo\r\n", string(cb.ascii[0]))
	// ASCII framing/consumption is owned by the external line parser, not
	// the dispatcher: the pending region is untouched here.
	require.Equal(t, 9, buf.Len())
}

func TestDispatcher_ProtocolIrrevocableOnceDetected(t *testing.T) {
	buf := NewBuffer(Options{MinBufferSize: 32})
	cb := &recordingCallbacks{}
	d := NewDispatcher(buf, cb)

	writeInto(buf, []byte("g"))
	require.True(t, d.ReadDataAvailable())
	require.Equal(t, Ascii, d.Protocol())

	// Even though the next byte looks like binary magic, protocol stays Ascii.
	writeInto(buf, []byte{UmbrellaMagicByte})
	require.True(t, d.ReadDataAvailable())
	require.Equal(t, Ascii, d.Protocol())
}

func TestDispatcher_Reset(t *testing.T) {
	buf := NewBuffer(Options{MinBufferSize: 32})
	cb := &recordingCallbacks{}
	d := NewDispatcher(buf, cb)

	writeInto(buf, []byte("g"))
	d.ReadDataAvailable()
	require.Equal(t, Ascii, d.Protocol())

	d.Reset()
	require.Equal(t, Unknown, d.Protocol())
	require.Equal(t, 0, buf.Len())
	require.False(t, d.Aborted())
}

func TestDispatcher_WaitsForMoreDataWithoutError(t *testing.T) {
	buf := NewBuffer(Options{MinBufferSize: 32})
	cb := &recordingCallbacks{}
	d := NewDispatcher(buf, cb)

	require.True(t, d.ReadDataAvailable())
	require.False(t, cb.sawError)
	require.Equal(t, Unknown, d.Protocol())
}
