package wire

import "errors"

// ErrAllocationFailed reports a failed buffer allocation, fatal for the
// owning connection. Buffer's methods return no errors, so nothing in this
// package returns it.
var ErrAllocationFailed = errors.New("wire: buffer allocation failed")

// ErrUnknownProtocol reports a first byte that matches no known protocol.
// Detect reports that case as Unknown rather than as an error, and the
// Dispatcher aborts without returning it.
var ErrUnknownProtocol = errors.New("wire: unknown protocol")
