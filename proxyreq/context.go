// Package proxyreq implements the per-request routing context: the object
// that tracks one logical request from arrival, through any number of
// fan-out sub-requests to backends, until every reply is received and
// stats are recorded. It owns request lifetime, carries the routing
// configuration snapshot a request was planned against, and supports a
// recording mode used for traversal introspection where no real I/O
// occurs.
package proxyreq

import (
	"sync"
	"sync/atomic"

	"github.com/mcrelay/mcrelay/routing"
)

var requestIDSeq atomic.Uint64

func nextRequestID() uint64 {
	return requestIDSeq.Add(1)
}

// ClientCallback is invoked when route-tree traversal would visit a
// destination, letting a recording context observe it without any real
// I/O taking place.
type ClientCallback func(poolName string, index int, ap routing.AccessPoint)

// ShardSplitCallback is invoked when route-tree traversal visits a shard
// splitter, with the splitter itself as the argument.
type ShardSplitCallback func(splitter routing.ShardSplitter)

// PendingContext is a request context under exclusive ownership, before
// it has been handed off to its proxy thread. No sub-request can hold a
// reference to it yet, and it carries neither a config snapshot nor a
// logger invocation history. Process converts it into a Context under
// shared ownership; PendingContext must not be used afterward.
type PendingContext struct {
	requestID uint64
	proxy     routing.Proxy
	priority  routing.Priority

	failoverDisabled bool
	requester        routing.ClientHandle
	userIP           string
	logger           ReplyLogger
	additionalLogger ReplyLogger
}

// New starts building a request context under exclusive ownership, off
// the owning proxy thread. Neither a configuration snapshot nor shared
// ownership exists yet; call Process once the context reaches its proxy
// thread and is ready to route.
func New(proxy routing.Proxy, priority routing.Priority) *PendingContext {
	return &PendingContext{
		requestID: nextRequestID(),
		proxy:     proxy,
		priority:  priority,
	}
}

// SetRequester attaches the client connection that issued the request,
// used to derive SenderID.
func (p *PendingContext) SetRequester(h routing.ClientHandle) *PendingContext {
	p.requester = h
	return p
}

// SetUserIPAddress records the originating client IP for logging.
func (p *PendingContext) SetUserIPAddress(addr string) *PendingContext {
	p.userIP = addr
	return p
}

// SetFailoverDisabled marks the request as ineligible for failover before
// it starts processing.
func (p *PendingContext) SetFailoverDisabled(disabled bool) *PendingContext {
	p.failoverDisabled = disabled
	return p
}

// SetLoggers installs the primary and additional reply loggers. Both must
// be installed here, at construction: OnReplyReceived assumes they're
// already set and does not check again.
func (p *PendingContext) SetLoggers(primary, additional ReplyLogger) *PendingContext {
	p.logger = primary
	p.additionalLogger = additional
	return p
}

// RequestID returns the process-unique id assigned at construction, ahead
// of Process.
func (p *PendingContext) RequestID() uint64 {
	return p.requestID
}

// Process moves the context to the owning proxy thread's ownership: it
// attaches config, keeping the routing configuration alive for as long as
// any sub-request derived from it might run, and converts ownership from
// exclusive to shared. From this point every sub-request the route tree
// creates holds a reference via AddRef, and the context's completion hook
// fires only when the last one calls Release.
//
// The returned Context starts with a refcount of one, representing the
// caller's own reference; the caller must eventually Release it (typically
// right after StartProcessing/SendReply complete) or the completion hook
// never fires.
func (p *PendingContext) Process(config *routing.Config) *Context {
	ctx := &Context{
		requestID:        p.requestID,
		proxy:            p.proxy,
		priority:         p.priority,
		failoverDisabled: p.failoverDisabled,
		requester:        p.requester,
		userIP:           p.userIP,
		logger:           p.logger,
		additionalLogger: p.additionalLogger,
		config:           config,
	}
	ctx.refcount.Store(1)
	return ctx
}

// Context represents one in-flight logical request under shared ownership.
// It is safe to AddRef/Release from any goroutine (the last drop may land
// on whichever goroutine finishes last), but replied/processing state is
// only ever touched from the owning proxy thread until a suspension point,
// per the single-threaded-per-connection scheduling model this was
// designed against.
type Context struct {
	requestID uint64
	proxy     routing.Proxy
	priority  routing.Priority

	mu               sync.Mutex
	failoverDisabled bool
	replied          bool
	processing       bool

	recording bool
	config    *routing.Config
	requester routing.ClientHandle
	userIP    string

	logger           ReplyLogger
	additionalLogger ReplyLogger
	onComplete       CompletionHook

	senderIDForTest uint64

	clientCB     ClientCallback
	shardSplitCB ShardSplitCallback
	baton        *Baton

	// onUnrepliedFinish is set by a ContextTyped wrapper so that, if the
	// last reference drops without SendReply ever being called, a
	// synthetic error reply still goes out. The base Context has no reply
	// type of its own to synthesize one from.
	onUnrepliedFinish func()

	refcount atomic.Int32
}

// CreateRecording builds a context that performs no real I/O. When
// route-tree traversal would visit a destination it calls clientCB
// instead of sending anything; when it visits a shard splitter it calls
// shardSplitCB. Either may be nil.
func CreateRecording(proxy routing.Proxy, clientCB ClientCallback, shardSplitCB ShardSplitCallback) *Context {
	ctx := &Context{
		requestID:    nextRequestID(),
		proxy:        proxy,
		priority:     routing.PriorityCritical,
		recording:    true,
		clientCB:     clientCB,
		shardSplitCB: shardSplitCB,
	}
	ctx.refcount.Store(1)
	return ctx
}

// CreateRecordingNotify is CreateRecording plus a baton that's signalled
// exactly once, when this context's last reference drops (i.e. every
// enqueued traversal has finished).
func CreateRecordingNotify(proxy routing.Proxy, baton *Baton, clientCB ClientCallback, shardSplitCB ShardSplitCallback) *Context {
	ctx := CreateRecording(proxy, clientCB, shardSplitCB)
	ctx.baton = baton
	return ctx
}

// Recording reports whether this context observes traversal instead of
// performing it.
func (c *Context) Recording() bool {
	return c.recording
}

// Proxy returns the owning proxy this context is bound to.
func (c *Context) Proxy() routing.Proxy {
	return c.proxy
}

// Priority returns the scheduling priority this context was constructed
// with.
func (c *Context) Priority() routing.Priority {
	return c.priority
}

// RequestID returns the process-unique id assigned at construction.
func (c *Context) RequestID() uint64 {
	return c.requestID
}

// ProxyRoute returns the route tree installed at Process. It's an error to
// call on a recording context, which never installs one.
func (c *Context) ProxyRoute() (routing.ProxyRoute, error) {
	if c.recording || c.config == nil {
		return nil, ErrRecordingContext
	}
	return c.config.Route, nil
}

// ProxyConfig returns the configuration snapshot installed at Process.
// It's an error to call on a recording context, which never installs one.
func (c *Context) ProxyConfig() (*routing.Config, error) {
	if c.recording || c.config == nil {
		return nil, ErrRecordingContext
	}
	return c.config, nil
}

// FailoverDisabled reports whether this request should skip failover
// routes. This, and its setter, replace the C++ source's
// LegacyPrivateAccessor::failoverDisabled: that accessor is an
// encapsulation leak retained there for migration, and is not ported here
// (see the design notes) in favor of an ordinary documented method.
func (c *Context) FailoverDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failoverDisabled
}

// SetFailoverDisabled updates the failover eligibility of this request.
func (c *Context) SetFailoverDisabled(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failoverDisabled = disabled
}

// UserIPAddress returns the originating client IP, if one was recorded.
func (c *Context) UserIPAddress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userIP
}

// SetUserIPAddress updates the originating client IP.
func (c *Context) SetUserIPAddress(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userIP = addr
}

// SenderID identifies the client connection that issued this request: the
// requester's own id if one was attached at construction, or the value
// set by SetSenderIDForTest otherwise.
func (c *Context) SenderID() uint64 {
	if c.requester != nil {
		return c.requester.SenderID()
	}
	return c.senderIDForTest
}

// SetSenderIDForTest overrides the sender id reported by SenderID when no
// requester was attached, so tests can exercise sender-keyed logging and
// routing without a real client connection.
func (c *Context) SetSenderIDForTest(id uint64) {
	c.senderIDForTest = id
}

// SetOnComplete installs the function that runs once, after this
// context's last reference drops. This replaces the C++ source's
// LegacyPrivateAccessor::reqComplete with an ordinary setter; see the
// design notes for why the accessor itself isn't ported.
func (c *Context) SetOnComplete(hook CompletionHook) {
	c.onComplete = hook
}

// RecordDestination forwards to the client callback installed at
// CreateRecording, if this is a recording context and one was given. It's
// a no-op on a routing context: real destinations send real I/O instead of
// calling back here.
func (c *Context) RecordDestination(poolName string, index int, ap routing.AccessPoint) {
	if c.recording && c.clientCB != nil {
		c.clientCB(poolName, index, ap)
	}
}

// RecordShardSplitter forwards to the shard-split callback installed at
// CreateRecording, if this is a recording context and one was given.
func (c *Context) RecordShardSplitter(splitter routing.ShardSplitter) {
	if c.recording && c.shardSplitCB != nil {
		c.shardSplitCB(splitter)
	}
}

// OnReplyReceived is called for every reply from a backend, whether or not
// it becomes the client-visible reply. On a recording context this
// returns immediately: no logger fires, and no real I/O ever happened. On
// a routing context it calls the primary logger and then the additional
// logger installed at construction, in that order.
func (c *Context) OnReplyReceived(pool string, ap routing.AccessPoint, routingPrefix, requestSummary, replySummary string, startTimeUs, endTimeUs int64) {
	if c.recording {
		return
	}
	event := ReplyLogEvent{
		Pool:           pool,
		AccessPoint:    ap,
		RoutingPrefix:  routingPrefix,
		RequestSummary: requestSummary,
		ReplySummary:   replySummary,
		StartTimeUs:    startTimeUs,
		EndTimeUs:      endTimeUs,
	}
	if c.logger != nil {
		c.logger.LogReply(event)
	}
	if c.additionalLogger != nil {
		c.additionalLogger.LogReply(event)
	}
}

// beginProcessing enforces StartProcessing's once-only precondition and is
// shared by the typed wrapper.
func (c *Context) beginProcessing() error {
	if c.recording {
		return ErrRecordingContext
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return ErrAlreadyProcessing
	}
	c.processing = true
	return nil
}

// beginReply enforces SendReply's preconditions (replied == false,
// processing == true) and marks replied true on success. Calling
// SendReply twice, or before StartProcessing, is a programming error;
// this returns a sentinel error rather than panicking so misuse is
// observable without needing to recover from a crash, per the open
// question the design notes leave to the implementer.
func (c *Context) beginReply() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replied {
		return ErrAlreadyReplied
	}
	if !c.processing {
		return ErrNotProcessing
	}
	c.replied = true
	return nil
}

// Replied reports whether SendReply has already completed successfully.
func (c *Context) Replied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replied
}

// AddRef adds one shared reference to this context, taken out by a
// sub-request the route tree creates. There are no back-pointers from the
// context to its children: completion is detected purely by the reference
// count dropping to zero, never by enumerating outstanding sub-requests.
func (c *Context) AddRef() {
	c.refcount.Add(1)
}

// Release drops one shared reference. When the last one drops, a
// non-recording context that never replied gets a synthetic error reply
// flushed through its typed wrapper, then the completion hook fires (if
// installed), and then a create_recording_notify baton (if any) is
// signalled. The final
// drop may happen on any goroutine; finish must not assume it runs on the
// owning proxy thread.
func (c *Context) Release() {
	if c.refcount.Add(-1) != 0 {
		return
	}
	c.finish()
}

func (c *Context) finish() {
	if !c.recording && c.onUnrepliedFinish != nil {
		c.mu.Lock()
		replied := c.replied
		c.mu.Unlock()
		if !replied {
			c.onUnrepliedFinish()
		}
	}
	if c.onComplete != nil {
		c.mu.Lock()
		replied := c.replied
		c.mu.Unlock()
		c.onComplete(CompletionEvent{
			RequestID: c.requestID,
			SenderID:  c.SenderID(),
			Replied:   replied,
		})
	}
	if c.baton != nil {
		c.baton.Signal()
	}
}
