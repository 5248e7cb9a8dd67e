package meta

import (
	"errors"
	"fmt"
)

// ErrorWithConnectionState is implemented by every error type in this file
// except InvalidKeyError; it tells the caller whether the connection's parse state can be trusted
// enough to keep using the connection.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ClientError mirrors a CLIENT_ERROR reply. The server rejected malformed
// input (oversized key, bad flag syntax, size mismatch); its own read
// position may now be out of sync with ours, so the connection is unsafe
// to reuse.
type ClientError struct{ Message string }

func (e *ClientError) Error() string             { return "CLIENT_ERROR: " + e.Message }
func (e *ClientError) ShouldCloseConnection() bool { return true }

// ServerError mirrors a SERVER_ERROR reply (out of memory, internal fault).
// Protocol framing is intact, so the connection can be reused.
type ServerError struct{ Message string }

func (e *ServerError) Error() string             { return "SERVER_ERROR: " + e.Message }
func (e *ServerError) ShouldCloseConnection() bool { return false }

// GenericError mirrors a bare ERROR reply, typically an unrecognized
// command. Treated like ClientError since framing after it is unreliable.
type GenericError struct{ Message string }

func (e *GenericError) Error() string             { return e.Message }
func (e *GenericError) ShouldCloseConnection() bool { return true }

// InvalidKeyError is raised locally, before anything reaches the wire, when
// a key fails ValidateKey. The connection itself is untouched.
type InvalidKeyError struct{ Message string }

func (e *InvalidKeyError) Error() string { return e.Message }

// ParseError is raised locally when a reply doesn't match the grammar this
// package expects: a malformed status line, a size field that isn't a
// number, a short data block. Either the server misbehaved or a byte got
// dropped somewhere upstream; either way, the read position can't be
// trusted afterward.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "parse error: " + e.Message
}

func (e *ParseError) Unwrap() error             { return e.Err }
func (e *ParseError) ShouldCloseConnection() bool { return true }

// ConnectionError wraps an I/O failure (read/write/dial) so callers can
// tell network trouble apart from a protocol-level error.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error             { return e.Err }
func (e *ConnectionError) ShouldCloseConnection() bool { return true }

// ShouldCloseConnection reports whether err leaves the connection's parse
// state trustworthy enough to reuse. Unrecognized error types are treated
// as unsafe, on the theory that a new error type is more likely a bug than
// a benign one this function forgot about.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}
	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}
	return true
}
