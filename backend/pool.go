// Package backend is a reference implementation of the routing package's
// AccessPoint interface, plus the connection pooling, server selection,
// and circuit breaking needed to exercise it without a real memcached
// server. It is a collaborator the request context core calls through,
// not part of the core itself (§1).
package backend

import (
	"context"
	"time"

	"github.com/mcrelay/mcrelay/stats"
)

// Resource is a pooled Connection checked out for the duration of a
// single request or batch. Exactly one of Release, ReleaseUnused, or
// Destroy must be called before the resource is dropped.
type Resource interface {
	// Value returns the pooled connection.
	Value() *Connection

	// Release returns the connection to the pool as freshly used.
	Release()

	// ReleaseUnused returns the connection to the pool without updating
	// its last-used time, for health checks that didn't really use it.
	ReleaseUnused()

	// Destroy closes the connection and removes it from the pool,
	// for connections found to be broken.
	Destroy()

	CreationTime() time.Time
	IdleDuration() time.Duration
}

// Pool manages a set of pooled Connections to a single backend address.
// Two implementations are provided: PuddlePool (backed by
// github.com/jackc/puddle/v2) and ChannelPool (a smaller, allocation-light
// alternative built on a buffered Go channel).
type Pool interface {
	Acquire(ctx context.Context) (Resource, error)
	AcquireAllIdle() []Resource
	Close()
	Stats() stats.PoolStats
}
