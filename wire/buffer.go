package wire

import (
	"github.com/mcrelay/mcrelay/internal/securebuf"
)

// Buffer is a growable, partially-filled byte region owned by a single
// connection. It partitions its backing array into three logical regions:
// a consumed prefix (bytes already delivered, waiting to be discarded), a
// pending middle (bytes received but not yet parsed into a complete
// frame), and a writable tail (spare capacity).
//
// Buffer is not safe for concurrent use; it is owned by the connection's
// proxy thread for its entire lifetime.
type Buffer struct {
	data []byte

	readPos  int // start of pending region (consumed prefix ends here)
	writePos int // end of pending region (writable tail starts here)

	targetSize    int // steady-state capacity; raised by oversized frames
	maxBufferSize int

	messagesSinceAdjust uint64
	adjustInterval      uint64

	secure       *securebuf.Allocator // nil unless UseSecureAllocator
	fromSecure   bool                 // true if data currently backed by the secure allocator
	secureRegion *securebuf.Region
}

// Options configures a new Buffer. Zero values fall back to sane defaults.
type Options struct {
	MinBufferSize     int
	MaxBufferSize     int
	AdjustInterval    uint64
	UseSecureAllocator bool
}

const (
	defaultMinBufferSize  = 256
	defaultMaxBufferSize  = 4096
	defaultAdjustInterval = 10000
)

// NewBuffer creates a Buffer with target_size = opts.MinBufferSize, per
// §3's read-buffer lifecycle (created at connection open).
func NewBuffer(opts Options) *Buffer {
	target := opts.MinBufferSize
	if target <= 0 {
		target = defaultMinBufferSize
	}
	max := opts.MaxBufferSize
	if max <= 0 {
		max = defaultMaxBufferSize
	}
	interval := opts.AdjustInterval
	if interval == 0 {
		interval = defaultAdjustInterval
	}
	b := &Buffer{
		data:           make([]byte, target),
		targetSize:     target,
		maxBufferSize:  max,
		adjustInterval: interval,
	}
	if opts.UseSecureAllocator {
		b.secure = securebuf.PerThreadAllocator()
	}
	return b
}

// Pending returns the unparsed bytes received so far. The slice is only
// valid until the next call to AcquireWriteRegion, CommitWrite,
// ConsumeFront, or Reset.
func (b *Buffer) Pending() []byte {
	return b.data[b.readPos:b.writePos]
}

// Len returns the number of pending (unparsed) bytes.
func (b *Buffer) Len() int {
	return b.writePos - b.readPos
}

// Cap returns the current backing capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// TargetSize returns the steady-state capacity target.
func (b *Buffer) TargetSize() int {
	return b.targetSize
}

// MessagesSinceAdjust returns the monotonic counter used by the shrink
// policy in §4.1.
func (b *Buffer) MessagesSinceAdjust() uint64 {
	return b.messagesSinceAdjust
}

// AcquireWriteRegion returns a contiguous writable region at the tail,
// performing exactly one of the three adjustments described in §4.1, in
// priority order. The returned slice is valid until the next mutating
// call on Buffer.
func (b *Buffer) AcquireWriteRegion() []byte {
	switch {
	case b.writePos == b.readPos && len(b.data) > 0:
		// (a) pending is empty: reuse the whole buffer from position 0.
		b.readPos = 0
		b.writePos = 0
	case b.readPos > 0:
		// (b) reclaim headroom by shifting pending to the front.
		n := copy(b.data, b.data[b.readPos:b.writePos])
		b.writePos = n
		b.readPos = 0
	default:
		// (c) no headroom to reclaim: grow.
		b.growBy(b.targetSize)
	}
	return b.data[b.writePos:]
}

// CommitWrite extends the pending region by n bytes. The caller asserts
// n <= len(region) from its last AcquireWriteRegion call.
func (b *Buffer) CommitWrite(n int) {
	if n < 0 || b.writePos+n > len(b.data) {
		panic("wire: CommitWrite exceeds acquired region")
	}
	b.writePos += n
}

// ConsumeFront shrinks the pending region from the front by n bytes. It
// never moves memory, only advances the read cursor.
func (b *Buffer) ConsumeFront(n int) {
	if n < 0 || b.readPos+n > b.writePos {
		panic("wire: ConsumeFront exceeds pending region")
	}
	b.readPos += n
}

// Reset discards all pending data without destroying the buffer. Mirrors
// McParser::reset() in the original source: used when a connection is
// drained for reuse, or on certain upstream error-recovery paths.
func (b *Buffer) Reset() {
	b.readPos = 0
	b.writePos = 0
}

// EnsureCapacity grows the buffer, if needed, so that its pending region
// plus tail capacity is at least total bytes, and raises TargetSize to at
// least total. It is the growth decision from §4.4: "If pending +
// tail_capacity < frame_size, grow by reserving at least
// frame_size - pending additional bytes."
func (b *Buffer) EnsureCapacity(total int) {
	if total > b.targetSize {
		b.targetSize = total
	}
	have := len(b.data) - b.readPos
	if have >= total {
		return
	}
	need := total - b.Len()
	b.growBy(need)
}

// growBy reallocates the backing array so that there is room for at
// least extra additional tail bytes beyond the current pending region,
// compacting the pending region to the front in the process.
func (b *Buffer) growBy(extra int) {
	pending := b.Len()
	newCap := pending + extra
	if newCap < b.targetSize {
		newCap = b.targetSize
	}
	nd := make([]byte, newCap)
	copy(nd, b.data[b.readPos:b.writePos])
	b.data = nd
	b.writePos = pending
	b.readPos = 0
	b.releaseSecureRegion()
}

// releaseSecureRegion frees the mmap'd region backing b.data, if any,
// before b.data is reassigned to a heap-allocated slice. Called by every
// path that replaces b.data outside of TransferToSecure itself.
func (b *Buffer) releaseSecureRegion() {
	if b.secureRegion != nil {
		b.secureRegion.Free()
		b.secureRegion = nil
	}
	b.fromSecure = false
}

// TransferToSecure copies the pending region into a freshly allocated,
// non-core-dumpable region sized to exactly total bytes, per §4.1's
// optional secure allocator path. It is a no-op if no secure allocator
// was configured; callers should check UsesSecureAllocator first if they
// want to distinguish "not configured" from "allocation failed".
//
// On allocator failure it returns false and leaves the buffer unchanged;
// the failure is not logged. Dispatcher does not call this method: frames
// grow through EnsureCapacity.
func (b *Buffer) TransferToSecure(total int) bool {
	if b.secure == nil {
		return false
	}
	region, err := b.secure.Allocate(total)
	if err != nil {
		return false
	}
	n := copy(region.Bytes, b.data[b.readPos:b.writePos])
	region.Bytes = region.Bytes[:n]
	b.releaseSecureRegion()
	b.data = region.Bytes[:total]
	b.writePos = n
	b.readPos = 0
	b.fromSecure = true
	b.secureRegion = region
	if total > b.targetSize {
		b.targetSize = total
	}
	return true
}

// UsesSecureAllocator reports whether this Buffer was configured with a
// secure allocator.
func (b *Buffer) UsesSecureAllocator() bool {
	return b.secure != nil
}

// RecordMessageParsed increments the shrink-policy counter. Called by the
// dispatcher once per fully-delivered frame.
func (b *Buffer) RecordMessageParsed() {
	b.messagesSinceAdjust++
}

// MaybeShrink implements §4.1's shrinking policy: after every dispatch
// cycle, if messagesSinceAdjust >= adjustInterval AND capacity >
// maxBufferSize AND the pending region is empty, the buffer is replaced
// with a fresh allocation of size min(targetSize, maxBufferSize) and the
// counter is reset. Returns true if a shrink occurred.
func (b *Buffer) MaybeShrink() bool {
	if b.messagesSinceAdjust < b.adjustInterval {
		return false
	}
	if len(b.data) <= b.maxBufferSize {
		return false
	}
	if b.Len() != 0 {
		return false
	}
	b.messagesSinceAdjust = 0
	size := b.targetSize
	if size > b.maxBufferSize {
		size = b.maxBufferSize
	}
	b.targetSize = size
	b.data = make([]byte, size)
	b.readPos = 0
	b.writePos = 0
	b.releaseSecureRegion()
	return true
}
