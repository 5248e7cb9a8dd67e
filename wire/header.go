package wire

// FrameDescriptor is produced by header parsing. See §3's Frame descriptor
// invariants: HeaderSize must be at least the protocol's minimum, and
// HeaderSize+BodySize must not exceed MaxFrameSize.
type FrameDescriptor struct {
	HeaderSize uint32
	BodySize   uint32
	TypeID     uint32
	RequestID  uint64
	ReplyFlag  bool
}

// Size returns HeaderSize+BodySize, the total number of bytes this frame
// occupies on the wire.
func (fd FrameDescriptor) Size() int {
	return int(fd.HeaderSize) + int(fd.BodySize)
}

// ParseStatus is the result of a header parse attempt.
type ParseStatus int

const (
	// StatusOK means FrameDescriptor is valid and complete.
	StatusOK ParseStatus = iota
	// StatusNotEnoughData means more bytes are needed before the header
	// can be fully decoded.
	StatusNotEnoughData
	// StatusMalformed means the bytes present are not a valid header for
	// this protocol; the connection must be aborted (§4.4).
	StatusMalformed
)

// MaxFrameSize bounds HeaderSize+BodySize for both binary protocols. It
// exists to reject corrupt length fields before they drive an enormous
// allocation.
const MaxFrameSize = 128 * 1024 * 1024

// HeaderParser decodes a fixed-layout binary header. Implementations must
// be pure: no mutation of data, no allocation, per §4.3.
type HeaderParser func(data []byte) (FrameDescriptor, ParseStatus)
