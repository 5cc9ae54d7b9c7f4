package gridws

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrConnClosed is returned by Conn.Send once the connection has begun
// closing.
var ErrConnClosed = errors.New("connection closed")

// State is a connection's readiness state.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Sender is the write side of a client transport. Send must apply its own
// bounded deadline; a hung peer surfaces as a send error, never as a stall.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Conn is one live client session. Its identity is opaque and used only for
// registry membership; the relay observes Conns exclusively through the
// registry's enumeration.
type Conn struct {
	id     string
	sender Sender
	state  atomic.Int32

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a transport in a Conn in the connecting state.
func NewConn(id string, sender Sender) *Conn {
	return &Conn{id: id, sender: sender}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// Send writes one frame to the client. Returns an error once the connection
// is closing or closed.
func (c *Conn) Send(data []byte) error {
	if s := c.State(); s == StateClosing || s == StateClosed {
		return ErrConnClosed
	}
	return c.sender.Send(data)
}

// Close tears down the transport. Idempotent; repeated calls return the
// first close's result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		c.closeErr = c.sender.Close()
		c.setState(StateClosed)
	})
	return c.closeErr
}
