package proxyreq

import "errors"

// These are the sentinel misuse errors described in the design: calling
// send_reply twice, or starting to process a context that isn't ready for
// it, is a programming error. It's surfaced as an error return rather than
// a panic so callers (and tests) can observe the misuse without needing to
// recover, while still refusing to silently do the wrong thing.
var (
	ErrAlreadyReplied    = errors.New("proxyreq: SendReply called on a context that already replied")
	ErrNotProcessing     = errors.New("proxyreq: SendReply called before StartProcessing")
	ErrAlreadyProcessing = errors.New("proxyreq: StartProcessing called more than once")
	ErrRecordingContext  = errors.New("proxyreq: operation not valid on a recording context")
)
