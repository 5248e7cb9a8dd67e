package backend

import (
	"context"
	"net"

	"github.com/mcrelay/mcrelay/meta"
	"github.com/mcrelay/mcrelay/routing"
	"github.com/mcrelay/mcrelay/stats"
	"github.com/sony/gobreaker/v2"
)

// Config wires an AccessPointPool's dependencies: how to dial, which Pool
// implementation to use (PuddlePool or ChannelPool), and how to build its
// circuit breaker. It exists so tests can swap in a mock dialer or a
// zero-request breaker without AccessPointPool itself knowing about either.
type Config struct {
	Dialer  *net.Dialer
	MaxSize int32

	NewPool func(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (Pool, error)

	// NewCircuitBreaker builds a breaker for the given address. If nil,
	// AccessPointPool runs with no circuit breaker.
	NewCircuitBreaker func(addr string) *gobreaker.CircuitBreaker[*meta.Response]
}

// NewAccessPointPool dials addr lazily (on first Acquire) through the pool
// implementation named by config.NewPool, and wraps every request in
// config's circuit breaker, if any.
func NewAccessPointPool(addr string, config Config) (*AccessPointPool, error) {
	constructor := func(ctx context.Context) (*Connection, error) {
		netConn, err := config.Dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return NewConnection(netConn), nil
	}

	pool, err := config.NewPool(constructor, config.MaxSize)
	if err != nil {
		return nil, err
	}

	ap := &AccessPointPool{
		addr:   addr,
		pool:   pool,
		client: stats.NewClientCollector(),
	}
	if config.NewCircuitBreaker != nil {
		ap.circuitBreaker = config.NewCircuitBreaker(addr)
	}
	return ap, nil
}

// AccessPointPool is a routing.AccessPoint backed by a real connection
// pool and a per-address circuit breaker. It's the reference
// routing.AccessPoint implementation.
type AccessPointPool struct {
	addr           string
	pool           Pool
	circuitBreaker *gobreaker.CircuitBreaker[*meta.Response]
	client         *stats.ClientCollector
}

var _ routing.AccessPoint = (*AccessPointPool)(nil)

// Address returns the dialed address, satisfying routing.AccessPoint.
func (ap *AccessPointPool) Address() string {
	return ap.addr
}

// AccessPointStats bundles the pool and circuit breaker state for one
// access point.
type AccessPointStats struct {
	Addr                 string
	PoolStats            stats.PoolStats
	ClientStats          stats.ClientStats
	CircuitBreakerState  gobreaker.State
	CircuitBreakerCounts gobreaker.Counts
}

func (ap *AccessPointPool) Stats() AccessPointStats {
	s := AccessPointStats{
		Addr:        ap.addr,
		PoolStats:   ap.pool.Stats(),
		ClientStats: ap.client.Snapshot(),
	}
	if ap.circuitBreaker != nil {
		s.CircuitBreakerState = ap.circuitBreaker.State()
		s.CircuitBreakerCounts = ap.circuitBreaker.Counts()
	}
	return s
}

// Execute performs a single request-response cycle: acquire a connection,
// send req, read its response, and release or destroy the connection
// based on whether the error requires closing it. The request runs
// through the access point's circuit breaker, if configured.
func (ap *AccessPointPool) Execute(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	var resp *meta.Response
	var err error
	if ap.circuitBreaker == nil {
		resp, err = ap.execRequestDirect(ctx, req)
	} else {
		resp, err = ap.circuitBreaker.Execute(func() (*meta.Response, error) {
			return ap.execRequestDirect(ctx, req)
		})
	}
	ap.recordClientStats(req, resp, err)
	return resp, err
}

func (ap *AccessPointPool) execRequestDirect(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	resource, err := ap.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	conn := resource.Value()

	resp, err := conn.Send(req)
	if err != nil {
		if meta.ShouldCloseConnection(err) {
			resource.Destroy()
		} else {
			resource.Release()
		}
		return nil, err
	}

	resource.Release()
	return resp, nil
}

// ExecuteBatch executes multiple requests in a pipeline using the NoOp
// marker strategy: send all requests followed by a NoOp command, then read
// responses until the NoOp response comes back. This relies on the
// server's FIFO ordering guarantee rather than round-tripping per request.
//
// Returns responses in the same order as requests. Individual request
// errors are captured in Response.Error (protocol errors); I/O or
// connection failures are returned as a Go error.
//
// The circuit breaker is checked but doesn't wrap batch execution, since
// it's typed for a single Response rather than a batch: an open circuit
// fails the call immediately instead of attempting the batch.
func (ap *AccessPointPool) ExecuteBatch(ctx context.Context, reqs []*meta.Request) ([]*meta.Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	if ap.circuitBreaker != nil && ap.circuitBreaker.State() == gobreaker.StateOpen {
		return nil, gobreaker.ErrOpenState
	}

	responses, err := ap.execBatchDirect(ctx, reqs)
	for i, req := range reqs {
		var resp *meta.Response
		if i < len(responses) {
			resp = responses[i]
		}
		ap.recordClientStats(req, resp, err)
	}
	return responses, err
}

func (ap *AccessPointPool) execBatchDirect(ctx context.Context, reqs []*meta.Request) ([]*meta.Response, error) {
	resource, err := ap.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	conn := resource.Value()

	for _, req := range reqs {
		if err := meta.WriteRequest(conn.Writer, req); err != nil {
			resource.Destroy()
			return nil, err
		}
	}

	noopReq := meta.NewRequest(meta.CmdNoOp, "", nil)
	if err := meta.WriteRequest(conn.Writer, noopReq); err != nil {
		resource.Destroy()
		return nil, err
	}

	if err := conn.Writer.Flush(); err != nil {
		resource.Destroy()
		return nil, err
	}

	responses, err := meta.ReadResponseBatch(conn.Reader, 0, true)
	if err != nil {
		if meta.ShouldCloseConnection(err) {
			resource.Destroy()
		} else {
			resource.Release()
		}
		return nil, err
	}

	if len(responses) > 0 && responses[len(responses)-1].Status == meta.StatusMN {
		responses = responses[:len(responses)-1]
	}

	resource.Release()
	return responses, nil
}

func (ap *AccessPointPool) recordClientStats(req *meta.Request, resp *meta.Response, err error) {
	if err != nil {
		ap.client.RecordError()
		return
	}
	if resp != nil && resp.HasError() {
		ap.client.RecordError()
		return
	}
	switch req.Command {
	case meta.CmdGet:
		found := resp != nil && !resp.IsMiss()
		ap.client.RecordGet(found)
	case meta.CmdSet:
		ap.client.RecordSet()
	case meta.CmdDelete:
		ap.client.RecordDelete()
	case meta.CmdArithmetic:
		ap.client.RecordIncrement()
	}
}
