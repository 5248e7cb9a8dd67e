// Package routing declares the interfaces a request context calls through
// to reach its route tree, its destinations, and its configuration. The
// route-tree traversal and fan-out algorithm are external collaborators:
// this package only fixes the shapes a context needs to hold a reference,
// install a config snapshot, and record traversal for the recording
// variant. A concrete implementation lives in backend/ for tests and
// examples; a real router supplies its own.
package routing

// Priority orders how a proxy worker schedules a request relative to
// others sharing the same connection.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityImportant
	PriorityBestEffort
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityImportant:
		return "important"
	case PriorityBestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

// AccessPoint identifies a backend cache server: an address plus whatever
// pooling, selection, and circuit-breaking machinery routes requests to
// it. backend.AccessPointPool is the reference implementation.
type AccessPoint interface {
	Address() string
}

// ShardSplitter fans a single logical request out across shard replicas.
// Shards reports every replica name a splitter would visit; traversal
// (recording or real) must visit all of them.
type ShardSplitter interface {
	Shards() []string
}

// ProxyRoute is the entry point into the route tree that a processing
// context routes a request through once handed off to its proxy thread.
// Its actual traversal algorithm is out of scope here; only identity is
// needed by the context surface.
type ProxyRoute interface {
	Name() string
}

// Proxy identifies the owning proxy worker a request context is bound to
// for its lifetime. Requests are constructed off-thread and migrated to
// their proxy's thread exactly once, at the process() hand-off.
type Proxy interface {
	ID() string
}

// ClientHandle identifies the client connection that issued a request,
// used to derive a context's sender identity for logging and per-sender
// routing decisions.
type ClientHandle interface {
	SenderID() uint64
}

// Config is a routing configuration snapshot. A context installs one
// exactly once, at the process() hand-off, and holds it alive for as long
// as any sub-request derived from it might still run. There is no
// hot-reload or file format here: loading and reloading configuration are
// out of scope, and Config exists only so the hand-off has a concrete
// shared type to install.
type Config struct {
	Route   ProxyRoute
	Pools   map[string][]AccessPoint
	Version string
}
