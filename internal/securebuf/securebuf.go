// Package securebuf provides an allocator for buffers that must not appear
// in core dumps. It is the Go-idiomatic equivalent of the
// JemallocNodumpAllocator referenced in the original McParser.cpp: rather
// than a custom non-dumpable heap, it mmaps anonymous pages and marks them
// MADV_DONTDUMP.
//
// Go has no thread-local storage, so unlike the original's
// folly::ThreadLocal<JemallocNodumpAllocator>, PerThreadAllocator returns a
// single process-wide allocator safe for concurrent use. Callers that want
// one allocator per proxy worker should construct their own and hold it on
// the worker struct instead of relying on a package-level singleton.
package securebuf

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is a single allocation returned by Allocator.Allocate. Bytes is
// valid until Free is called.
type Region struct {
	Bytes []byte
}

// Free releases the region's backing pages. Callers must not use Bytes
// afterward.
func (r *Region) Free() error {
	if r.Bytes == nil {
		return nil
	}
	// munmap requires the original mapping length, not a possibly
	// re-sliced one, so recover it from the slice's capacity.
	full := r.Bytes[:cap(r.Bytes)]
	err := unix.Munmap(full)
	r.Bytes = nil
	return err
}

// Allocator hands out non-core-dumpable regions. The zero value is ready
// to use.
type Allocator struct{}

var shared = &Allocator{}

// PerThreadAllocator returns the process-wide allocator instance. See the
// package doc comment for why this isn't actually per-thread in Go.
func PerThreadAllocator() *Allocator {
	return shared
}

// Allocate reserves size bytes of anonymous, non-core-dumpable memory.
func (a *Allocator) Allocate(size int) (*Region, error) {
	if size <= 0 {
		size = 1
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("securebuf: mmap failed: %w", err)
	}
	if err := unix.Madvise(b, unix.MADV_DONTDUMP); err != nil {
		// Not fatal: the memory is usable, it just won't be excluded
		// from core dumps. Caller still gets a working buffer.
		_ = err
	}
	return &Region{Bytes: b}, nil
}
