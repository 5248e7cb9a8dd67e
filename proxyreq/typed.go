package proxyreq

import "github.com/mcrelay/mcrelay/routing"

// PendingContextTyped is the exclusive-ownership phase of a per-request-
// type context. NewTyped is the only public constructor; the base
// PendingContext it wraps is an internal implementation detail, matching
// the C++ source's rule that ProxyRequestContextTyped's typed constructor
// is the only public path and the base constructor is an internal
// contract.
type PendingContextTyped[Req any, Reply any] struct {
	pending *PendingContext
	req     *Req
}

// NewTyped builds a request context for a specific request/reply kind.
// req must stay valid until SendReply is called or the context's last
// reference drops, whichever comes first.
func NewTyped[Req any, Reply any](proxy routing.Proxy, req *Req, priority routing.Priority) *PendingContextTyped[Req, Reply] {
	return &PendingContextTyped[Req, Reply]{
		pending: New(proxy, priority),
		req:     req,
	}
}

// SetRequester attaches the client connection that issued the request.
func (p *PendingContextTyped[Req, Reply]) SetRequester(h routing.ClientHandle) *PendingContextTyped[Req, Reply] {
	p.pending.SetRequester(h)
	return p
}

// SetUserIPAddress records the originating client IP for logging.
func (p *PendingContextTyped[Req, Reply]) SetUserIPAddress(addr string) *PendingContextTyped[Req, Reply] {
	p.pending.SetUserIPAddress(addr)
	return p
}

// SetFailoverDisabled marks the request as ineligible for failover before
// it starts processing.
func (p *PendingContextTyped[Req, Reply]) SetFailoverDisabled(disabled bool) *PendingContextTyped[Req, Reply] {
	p.pending.SetFailoverDisabled(disabled)
	return p
}

// SetLoggers installs the primary and additional reply loggers.
func (p *PendingContextTyped[Req, Reply]) SetLoggers(primary, additional ReplyLogger) *PendingContextTyped[Req, Reply] {
	p.pending.SetLoggers(primary, additional)
	return p
}

// RequestID returns the process-unique id assigned at construction.
func (p *PendingContextTyped[Req, Reply]) RequestID() uint64 {
	return p.pending.RequestID()
}

// Process hands the context to its proxy thread: it installs config,
// converts to shared ownership, and wires sendReplyImpl and newErrorReply
// so that SendReply and the last-reference synthetic error path both know
// how to produce a Reply. newErrorReply is used exactly once, only if the
// context's last reference drops without SendReply ever having been
// called, so that every request still reaches exactly one client-visible
// reply.
func (p *PendingContextTyped[Req, Reply]) Process(config *routing.Config, sendReplyImpl func(Reply), newErrorReply func(message string) Reply) *ContextTyped[Req, Reply] {
	ctx := &ContextTyped[Req, Reply]{
		Context:       p.pending.Process(config),
		req:           p.req,
		sendReplyImpl: sendReplyImpl,
	}
	ctx.Context.onUnrepliedFinish = func() {
		ctx.forceReply(newErrorReply("request context destroyed without a reply"))
	}
	return ctx
}

// ContextTyped extends Context with a typed request payload and reply
// encoder. It's the concrete type route-tree code actually holds and
// calls SendReply on; the base Context exists to share the lifecycle
// skeleton across every request kind.
type ContextTyped[Req any, Reply any] struct {
	*Context

	// req points to the live request until SendReply succeeds, at which
	// point it's cleared: subsequent access is a programming error, not a
	// user error, matching the C++ source's contract for req_.
	req           *Req
	sendReplyImpl func(Reply)
}

// Request returns the request payload this context was constructed with.
// Returns nil after SendReply has completed.
func (c *ContextTyped[Req, Reply]) Request() *Req {
	return c.req
}

// StartProcessing launches route-tree traversal by calling route with
// this context. It must be called exactly once, from the owning proxy
// thread, after Process; calling it twice, or on a recording context,
// returns an error instead of starting traversal again.
func (c *ContextTyped[Req, Reply]) StartProcessing(route func(ctx *ContextTyped[Req, Reply])) error {
	if err := c.Context.beginProcessing(); err != nil {
		return err
	}
	route(c)
	return nil
}

// SendReply is the terminal operation for the client-visible reply. It
// requires that this context hasn't already replied and is currently
// processing; on success it clears Request() and hands reply to the
// encoder installed at Process.
func (c *ContextTyped[Req, Reply]) SendReply(reply Reply) error {
	if err := c.Context.beginReply(); err != nil {
		return err
	}
	c.req = nil
	c.sendReplyImpl(reply)
	return nil
}

// forceReply is used only by the onUnrepliedFinish hook installed at
// Process, to flush a synthetic error reply when the last reference drops
// without a real SendReply. It bypasses beginReply's error return because
// there's no caller left to observe one.
func (c *ContextTyped[Req, Reply]) forceReply(reply Reply) {
	c.Context.mu.Lock()
	c.Context.replied = true
	c.Context.mu.Unlock()
	c.req = nil
	c.sendReplyImpl(reply)
}
