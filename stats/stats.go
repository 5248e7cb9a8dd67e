// Package stats holds the counter/gauge snapshots produced by the backend
// pool and connection layers, plus a Prometheus sink that exports them.
//
// The types here are pure data plus atomic bookkeeping: they carry no
// knowledge of pools, connections, or the meta protocol, so backend and
// proxyreq can both depend on them without a cycle.
package stats

import (
	"sync/atomic"
	"time"
)

// PoolStats contains statistics about a connection pool.
// All fields are safe for concurrent access.
//
// Struct is optimized to fit within a single cache line (64 bytes).
// Fields are ordered largest to smallest for optimal memory layout.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalConns, IdleConns, ActiveConns
//   - Counters: AcquireCount, AcquireWaitCount, CreatedConns, DestroyedConns, AcquireErrors
//   - Histogram: AcquireWaitDuration (use AcquireWaitCount and AcquireWaitTimeNs to calculate)
type PoolStats struct {
	// Lifetime counters (uint64 - 8 bytes each)
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Failed acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	// Current state gauges (int32 - 4 bytes each)
	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
	_           int32 // Padding to align to 64 bytes
}

// PoolCollector accumulates PoolStats concurrently. It is exported (unlike
// the teacher's package-private collector) because backend's two pool
// implementations, pool_channel.go and pool_puddle.go, live in a separate
// package from stats and both need to feed the same counters.
type PoolCollector struct {
	stats PoolStats
}

func NewPoolCollector() *PoolCollector {
	return &PoolCollector{}
}

func (c *PoolCollector) RecordAcquire() {
	atomic.AddUint64(&c.stats.AcquireCount, 1)
}

func (c *PoolCollector) RecordAcquireWait(duration time.Duration) {
	atomic.AddUint64(&c.stats.AcquireWaitCount, 1)
	atomic.AddUint64(&c.stats.AcquireWaitTimeNs, uint64(duration.Nanoseconds()))
}

func (c *PoolCollector) RecordCreate() {
	atomic.AddUint64(&c.stats.CreatedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, 1)
}

func (c *PoolCollector) RecordDestroy() {
	atomic.AddUint64(&c.stats.DestroyedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, -1)
}

func (c *PoolCollector) RecordAcquireError() {
	atomic.AddUint64(&c.stats.AcquireErrors, 1)
}

func (c *PoolCollector) RecordAcquireFromIdle() {
	atomic.AddInt32(&c.stats.IdleConns, -1)
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *PoolCollector) RecordActivate() {
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *PoolCollector) RecordRelease() {
	atomic.AddInt32(&c.stats.IdleConns, 1)
	atomic.AddInt32(&c.stats.ActiveConns, -1)
}

func (c *PoolCollector) Snapshot() PoolStats {
	return PoolStats{
		TotalConns:        atomic.LoadInt32(&c.stats.TotalConns),
		IdleConns:         atomic.LoadInt32(&c.stats.IdleConns),
		ActiveConns:       atomic.LoadInt32(&c.stats.ActiveConns),
		AcquireCount:      atomic.LoadUint64(&c.stats.AcquireCount),
		AcquireWaitCount:  atomic.LoadUint64(&c.stats.AcquireWaitCount),
		CreatedConns:      atomic.LoadUint64(&c.stats.CreatedConns),
		DestroyedConns:    atomic.LoadUint64(&c.stats.DestroyedConns),
		AcquireErrors:     atomic.LoadUint64(&c.stats.AcquireErrors),
		AcquireWaitTimeNs: atomic.LoadUint64(&c.stats.AcquireWaitTimeNs),
	}
}

// ClientStats contains statistics about client operations against a single
// access point, broken down by meta protocol command.
// All fields are safe for concurrent access.
type ClientStats struct {
	Gets       uint64
	Sets       uint64
	Deletes    uint64
	Increments uint64
	GetHits    uint64
	Errors     uint64
	_          [2]uint64 // Padding to align to 64 bytes
}

// ClientCollector accumulates ClientStats concurrently.
type ClientCollector struct {
	stats ClientStats
}

func NewClientCollector() *ClientCollector {
	return &ClientCollector{}
}

func (c *ClientCollector) RecordGet(found bool) {
	atomic.AddUint64(&c.stats.Gets, 1)
	if found {
		atomic.AddUint64(&c.stats.GetHits, 1)
	}
}

func (c *ClientCollector) RecordSet() {
	atomic.AddUint64(&c.stats.Sets, 1)
}

func (c *ClientCollector) RecordDelete() {
	atomic.AddUint64(&c.stats.Deletes, 1)
}

func (c *ClientCollector) RecordIncrement() {
	atomic.AddUint64(&c.stats.Increments, 1)
}

func (c *ClientCollector) RecordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *ClientCollector) Snapshot() ClientStats {
	return ClientStats{
		Gets:       atomic.LoadUint64(&c.stats.Gets),
		Sets:       atomic.LoadUint64(&c.stats.Sets),
		Deletes:    atomic.LoadUint64(&c.stats.Deletes),
		Increments: atomic.LoadUint64(&c.stats.Increments),
		GetHits:    atomic.LoadUint64(&c.stats.GetHits),
		Errors:     atomic.LoadUint64(&c.stats.Errors),
	}
}

// RequestStats tracks the outcome of the client-visible replies produced by
// a request context (§4.5 send_reply / on_reply_received). It is the
// counterpart, at the proxyreq layer, of PoolStats at the connection layer:
// PoolStats describes connection lifecycle, RequestStats describes what
// happened to the logical requests routed over those connections.
type RequestStats struct {
	Replies        uint64
	Errors         uint64
	TimeoutErrors  uint64
	TotalLatencyNs uint64
}

// RequestCollector accumulates RequestStats concurrently.
type RequestCollector struct {
	stats RequestStats
}

func NewRequestCollector() *RequestCollector {
	return &RequestCollector{}
}

// RecordReply records one client-visible reply and the latency from the
// request context's construction to send_reply.
func (c *RequestCollector) RecordReply(latency time.Duration, isError, isTimeout bool) {
	atomic.AddUint64(&c.stats.Replies, 1)
	atomic.AddUint64(&c.stats.TotalLatencyNs, uint64(latency.Nanoseconds()))
	if isError {
		atomic.AddUint64(&c.stats.Errors, 1)
	}
	if isTimeout {
		atomic.AddUint64(&c.stats.TimeoutErrors, 1)
	}
}

func (c *RequestCollector) Snapshot() RequestStats {
	return RequestStats{
		Replies:        atomic.LoadUint64(&c.stats.Replies),
		Errors:         atomic.LoadUint64(&c.stats.Errors),
		TimeoutErrors:  atomic.LoadUint64(&c.stats.TimeoutErrors),
		TotalLatencyNs: atomic.LoadUint64(&c.stats.TotalLatencyNs),
	}
}
