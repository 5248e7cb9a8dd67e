package backend

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/mcrelay/mcrelay/meta"
)

var ErrConnectionClosed = errors.New("backend: connection closed")

// Connection wraps a single TCP connection to a backend memcache server,
// speaking the meta protocol. It is not safe for concurrent use: it is
// checked out of a Pool for the duration of one request or pipelined
// batch and returned before another caller can use it.
type Connection struct {
	addr   string
	conn   net.Conn
	Reader *bufio.Reader
	Writer *bufio.Writer

	mu       sync.Mutex
	lastUsed time.Time
	closed   bool
}

// NewConnection wraps an already-dialed net.Conn. Dialing is the caller's
// responsibility (see AccessPointPool's pool constructor) so the caller
// controls the dial timeout and TLS configuration.
func NewConnection(netConn net.Conn) *Connection {
	return &Connection{
		addr:     netConn.RemoteAddr().String(),
		conn:     netConn,
		Reader:   bufio.NewReader(netConn),
		Writer:   bufio.NewWriter(netConn),
		lastUsed: time.Now(),
	}
}

// Send writes a single request and reads its response. Callers pipelining
// several requests should use meta.WriteRequest / meta.ReadResponseBatch
// against Reader/Writer directly instead, as ExecuteBatch does.
func (c *Connection) Send(req *meta.Request) (*meta.Response, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrConnectionClosed
	}

	if err := meta.WriteRequest(c.Writer, req); err != nil {
		return nil, err
	}
	if err := c.Writer.Flush(); err != nil {
		return nil, err
	}
	resp, err := meta.ReadResponse(c.Reader)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lastUsed = time.Now()
	c.mu.Unlock()
	return resp, nil
}

// Addr returns the remote address this connection was dialed to.
func (c *Connection) Addr() string {
	return c.addr
}

// LastUsed returns when the connection last completed a Send.
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Close closes the underlying net.Conn. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
