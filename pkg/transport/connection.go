package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/logstream-protocol/logstream-go/pkg/capture"
	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	// StateIdle is the initial state before Open.
	StateIdle State = iota

	// StateConnecting indicates the transport is being established.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateClosed is terminal, reachable from every state.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Connection errors.
var (
	ErrNotConnected = errors.New("not connected")
	ErrAlreadyOpen  = errors.New("connection already opened")
	ErrTransport    = errors.New("transport error")
)

// Handler receives a Connection's events. One Connection, one handler,
// injected at construction.
//
// Callbacks are invoked from the connection's receive goroutine (and, for
// the terminal close, possibly from the goroutine calling Cancel); they
// must not block for long and must not call back into the Connection
// synchronously in ways that could deadlock on Send.
type Handler interface {
	// OnStateChange is called on every lifecycle transition. The
	// transition to StateClosed is the terminal event and is delivered
	// exactly once.
	OnStateChange(old, new State)

	// OnPacket is called for every decoded inbound packet, in the exact
	// order the frames were received on the wire.
	OnPacket(pkt wire.Packet)

	// OnError is called for parse failures, protocol-level decode
	// failures and transport errors. Errors never close the connection
	// by themselves except malformed framing and transport failures.
	OnError(err error)
}

// Config configures a Connection.
type Config struct {
	// ConnID identifies the connection in capture records and errors.
	// A UUID is generated when empty.
	ConnID string

	// Recorder records protocol activity (optional).
	Recorder capture.Recorder
}

// Connection owns one Transport and one reassembly buffer, and walks
// Idle -> Connecting -> Connected -> Closed. It is exclusively owned by
// the code path that created it (client) or by the session manager
// (server); no sharing across owners.
type Connection struct {
	tr      Transport
	handler Handler
	rec     capture.Recorder
	connID  string

	state     atomic.Int32
	closeOnce sync.Once

	// cancelMu guards cancel, which Open writes while a concurrent
	// Cancel may already be terminating.
	cancelMu sync.Mutex
	cancel   context.CancelFunc

	writeMu sync.Mutex
}

// NewConnection creates a connection in StateIdle.
func NewConnection(tr Transport, config Config, handler Handler) *Connection {
	if config.ConnID == "" {
		config.ConnID = uuid.New().String()
	}
	c := &Connection{
		tr:      tr,
		handler: handler,
		rec:     config.Recorder,
		connID:  config.ConnID,
	}
	c.state.Store(int32(StateIdle))
	return c
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// ConnID returns the connection identifier.
func (c *Connection) ConnID() string {
	return c.connID
}

// Open starts the transport and the receive loop. On transport failure
// the connection moves to StateClosed and the error is returned.
func (c *Connection) Open(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return ErrAlreadyOpen
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancelMu.Lock()
	c.cancel = cancel
	c.cancelMu.Unlock()
	c.notifyStateChange(StateIdle, StateConnecting)

	if err := c.tr.Start(ctx); err != nil {
		c.terminate(nil)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	// A concurrent Cancel may have terminated while the transport was
	// starting; the terminal state must not be overwritten.
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		cancel()
		return ErrNotConnected
	}
	c.notifyStateChange(StateConnecting, StateConnected)

	go c.readLoop()
	return nil
}

// Send serializes a packet and writes it to the transport.
//
// An encoding failure (wire.ErrEncodingFailed, wire.ErrBodyTooLarge)
// is returned to the caller and leaves the connection untouched: one bad
// payload must not kill the channel. A transport write failure is likewise
// returned without force-closing; the transport's own lifecycle decides
// liveness.
func (c *Connection) Send(pkt wire.Packet) error {
	data, err := wire.EncodePacket(pkt)
	if err != nil {
		return err
	}
	return c.SendFrame(data)
}

// SendFrame writes pre-encoded frame bytes. Used by broadcast, which
// encodes once and fans the same bytes out to every peer. Safe for
// concurrent use; writes are serialized per connection.
func (c *Connection) SendFrame(data []byte) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.tr.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	c.recordFrame(capture.DirectionOut, data)
	return nil
}

// Cancel immediately closes the transport and moves to StateClosed.
// Idempotent, and safe to call from any goroutine; a pending transport
// read completes with an error, ending the receive loop promptly.
func (c *Connection) Cancel() {
	c.terminate(nil)
}

// terminate performs the single terminal transition. err, when non-nil,
// is reported before the close notification.
func (c *Connection) terminate(err error) {
	c.closeOnce.Do(func() {
		prev := State(c.state.Swap(int32(StateClosed)))

		if err != nil && c.handler != nil {
			c.handler.OnError(err)
			c.recordError(err)
		}

		c.tr.Close()
		c.cancelMu.Lock()
		cancel := c.cancel
		c.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}

		if prev != StateClosed {
			c.notifyStateChange(prev, StateClosed)
		}
	})
}

// readLoop reads chunks from the transport and feeds the reassembler.
// Runs until the transport completes, fails, or delivers malformed
// framing.
func (c *Connection) readLoop() {
	reasm := NewReassembler(func(f wire.Frame) {
		c.recordInboundFrame(f)

		pkt, err := wire.DecodePacket(f)
		if err != nil {
			// Structurally valid frame with an undecodable body: report
			// and keep the connection; the next frame may be fine.
			if c.handler != nil {
				c.handler.OnError(fmt.Errorf("packet decode (%s): %w", f.Code, err))
			}
			return
		}
		if c.handler != nil {
			c.handler.OnPacket(pkt)
		}
	})

	for {
		chunk, err := c.tr.ReadChunk()
		if err != nil {
			if c.State() == StateClosed {
				return // cancel-induced, terminal event already delivered
			}
			if errors.Is(err, io.EOF) {
				// Peer closed its write side: completed.
				c.terminate(nil)
				return
			}
			c.terminate(fmt.Errorf("%w: %v", ErrTransport, err))
			return
		}

		if err := reasm.Push(chunk); err != nil {
			// Resynchronization after malformed framing is undefined, so
			// the connection closes. Stricter than surfacing alone, and
			// deliberate.
			c.terminate(fmt.Errorf("parse failure on connection %s: %w", c.connID, err))
			return
		}
	}
}

func (c *Connection) notifyStateChange(old, new State) {
	if c.handler != nil {
		c.handler.OnStateChange(old, new)
	}
	if c.rec != nil {
		c.rec.Record(capture.Record{
			Time:   time.Now(),
			ConnID: c.connID,
			Kind:   capture.KindState,
			State: &capture.StateRecord{
				Old: old.String(),
				New: new.String(),
			},
		})
	}
}

func (c *Connection) recordInboundFrame(f wire.Frame) {
	if c.rec == nil {
		return
	}
	c.rec.Record(capture.NewFrameRecord(c.connID, capture.DirectionIn, uint8(f.Code), f.Body))
}

func (c *Connection) recordFrame(dir capture.Direction, data []byte) {
	if c.rec == nil || len(data) < wire.HeaderSize {
		return
	}
	c.rec.Record(capture.NewFrameRecord(c.connID, dir, data[0], data[wire.HeaderSize:]))
}

func (c *Connection) recordError(err error) {
	if c.rec == nil {
		return
	}
	c.rec.Record(capture.Record{
		Time:   time.Now(),
		ConnID: c.connID,
		Kind:   capture.KindError,
		Error:  &capture.ErrorRecord{Message: err.Error()},
	})
}
