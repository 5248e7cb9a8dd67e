package proxyreq

import "github.com/mcrelay/mcrelay/routing"

// ReplyLogEvent carries what a reply logger needs to record one backend
// reply. It corresponds to RequestLoggerContext, flattened to strings so
// the context surface doesn't need to be generic over request/reply types
// the way onReplyReceived's C++ template parameter is: summarizing the
// request and reply before logging keeps the logger interface uniform
// across every request kind a typed context might carry.
type ReplyLogEvent struct {
	Pool           string
	AccessPoint    routing.AccessPoint
	RoutingPrefix  string
	RequestSummary string
	ReplySummary   string
	StartTimeUs    int64
	EndTimeUs      int64
}

// ReplyLogger records one backend reply. A context calls its primary
// logger and then its additional logger, in that order, for every reply
// it receives while not in recording mode.
type ReplyLogger interface {
	LogReply(event ReplyLogEvent)
}

// CompletionEvent carries what a completion hook needs once a context's
// last reference drops.
type CompletionEvent struct {
	RequestID uint64
	SenderID  uint64
	Pool      string
	Replied   bool
}

// CompletionHook runs once, after a context's last reference drops. It is
// guaranteed to run after any client-visible reply has been enqueued
// (the same invocation, in synchronous paths), so stats aggregators that
// need to see the reply before observing completion always can.
type CompletionHook func(CompletionEvent)
