package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logstream-protocol/logstream-go/pkg/capture"
	"github.com/logstream-protocol/logstream-go/pkg/log"
	"github.com/logstream-protocol/logstream-go/pkg/transport"
	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// State represents the client lifecycle state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the client has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Client errors.
var (
	ErrClientClosed   = errors.New("client closed")
	ErrAlreadyStarted = errors.New("client already started")
)

// Defaults.
const (
	// DefaultQueueSize is the event buffer capacity while disconnected
	// or paused.
	DefaultQueueSize = 1024

	// DefaultPingInterval is how often liveness pings are sent.
	DefaultPingInterval = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	// Address is the viewer address: "host:port" for TCP, or a ws:// /
	// wss:// URL for websocket. Ignored when Dial is set.
	Address string

	// Descriptor supplies the hello identity. A host descriptor is used
	// when nil.
	Descriptor DeviceDescriptor

	// QueueSize bounds the event buffer (default DefaultQueueSize).
	// When full, the oldest events are dropped.
	QueueSize int

	// PingInterval is the liveness ping period (default
	// DefaultPingInterval).
	PingInterval time.Duration

	// DisableReconnect turns off automatic reconnection: the client
	// stays disconnected after a connection loss.
	DisableReconnect bool

	// Backoff customizes reconnection backoff.
	Backoff BackoffConfig

	// Recorder records protocol activity on every connection (optional).
	Recorder capture.Recorder

	// OnStateChange is called on every client state transition
	// (optional).
	OnStateChange func(old, new State)

	// OnReconnecting is called before each reconnection wait (optional).
	OnReconnecting func(attempt int, delay time.Duration)

	// OnError is called for connection and send failures (optional).
	OnError func(err error)

	// Dial returns the transport for one connection attempt. Defaults
	// to a TCP transport for Address.
	Dial func() transport.Transport
}

// queuedEvent is one buffered event plus its frame code selector.
type queuedEvent struct {
	event   log.Event
	network bool
}

// Client streams log events to a viewer. It implements log.Logger.
type Client struct {
	config     Config
	descriptor DeviceDescriptor
	backoff    *Backoff

	mu          sync.Mutex
	state       State
	conn        *transport.Connection
	established bool
	paused      bool
	queue       []queuedEvent
	dropped     uint64

	seq     atomic.Uint64
	started atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wake   chan struct{}
}

// New creates a client. Call Start to begin connecting.
func New(config Config) *Client {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}
	if config.Descriptor == nil {
		config.Descriptor = NewHostDescriptor("logstream-go", "")
	}
	if config.Dial == nil {
		addr := config.Address
		if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
			config.Dial = func() transport.Transport {
				return transport.NewWSTransport(addr)
			}
		} else {
			config.Dial = func() transport.Transport {
				return transport.NewTCPTransport(addr)
			}
		}
	}

	return &Client{
		config:     config,
		descriptor: config.Descriptor,
		backoff:    NewBackoff(config.Backoff),
		state:      StateDisconnected,
		wake:       make(chan struct{}, 1),
	}
}

// Start begins connecting and streaming. The context bounds the
// client's whole lifetime.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go c.run()
	go c.sendLoop()
	return nil
}

// Close stops the client and closes any active connection. Buffered
// events that were never sent are discarded.
func (c *Client) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = StateClosed
	conn := c.conn
	c.mu.Unlock()

	c.notifyState(old, StateClosed)
	if c.cancel != nil {
		c.cancel()
	}
	if conn != nil {
		conn.Cancel()
	}
	c.wg.Wait()
}

// Log implements log.Logger: the event is stamped and queued, never
// blocking the caller. Sequence numbers are assigned in Log order.
func (c *Client) Log(event log.Event) {
	c.enqueue(event, false)
}

// LogNetwork queues a network-traffic event, sent with the network
// message frame code so viewers can segregate network logs.
func (c *Client) LogNetwork(event log.Event) {
	c.enqueue(event, true)
}

func (c *Client) enqueue(event log.Event, network bool) {
	if event.Seq == 0 {
		event.Seq = c.seq.Add(1)
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	if len(c.queue) >= c.config.QueueSize {
		// Overflow drops the oldest events, keeping the most recent.
		drop := len(c.queue) - c.config.QueueSize + 1
		c.queue = c.queue[drop:]
		c.dropped += uint64(drop)
	}
	c.queue = append(c.queue, queuedEvent{event: event, network: network})
	c.mu.Unlock()

	c.signal()
}

// State returns the current client state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of buffered events.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Dropped returns the number of events discarded on queue overflow.
func (c *Client) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Paused reports whether the viewer has paused this client.
func (c *Client) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// run owns the connect/reconnect cycle.
func (c *Client) run() {
	defer c.wg.Done()

	for {
		if c.ctx.Err() != nil {
			return
		}

		closed, err := c.connect()
		if err == nil {
			c.backoff.Reset()
			select {
			case <-closed:
			case <-c.ctx.Done():
				return
			}
		}

		if c.State() == StateClosed {
			return
		}
		if c.config.DisableReconnect {
			c.setState(StateDisconnected)
			return
		}

		c.setState(StateReconnecting)
		delay := c.backoff.Next()
		if c.config.OnReconnecting != nil {
			c.config.OnReconnecting(c.backoff.Attempts(), delay)
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connect performs one attempt: dial, open, hello. The returned channel
// closes when the connection ends.
func (c *Client) connect() (<-chan struct{}, error) {
	c.setState(StateConnecting)

	h := &connHandler{client: c, closed: make(chan struct{})}
	conn := transport.NewConnection(c.config.Dial(), transport.Config{Recorder: c.config.Recorder}, h)
	h.conn = conn

	if err := conn.Open(c.ctx); err != nil {
		c.reportError(err)
		return nil, err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		conn.Cancel()
		return nil, ErrClientClosed
	}
	old := c.state
	c.state = StateConnected
	c.conn = conn
	c.established = false
	c.paused = false
	c.mu.Unlock()
	c.notifyState(old, StateConnected)

	// Hello is always the first frame on the wire.
	if err := conn.Send(wire.HelloPacket{Identity: c.descriptor.Describe()}); err != nil {
		c.reportError(fmt.Errorf("hello: %w", err))
		conn.Cancel()
		return nil, err
	}

	c.wg.Add(1)
	go c.pinger(conn, h.closed)

	return h.closed, nil
}

// connectionClosed clears per-connection state.
func (c *Client) connectionClosed(conn *transport.Connection) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.established = false
		c.paused = false
	}
	c.mu.Unlock()
}

// handlePacket routes viewer-to-client control packets.
func (c *Client) handlePacket(pkt wire.Packet) {
	switch pkt.Code() {
	case wire.CodeServerHello:
		c.mu.Lock()
		c.established = true
		c.mu.Unlock()
		c.signal()

	case wire.CodePause:
		c.mu.Lock()
		c.paused = true
		c.mu.Unlock()

	case wire.CodeResume:
		c.mu.Lock()
		c.paused = false
		c.mu.Unlock()
		c.signal()

	default:
		// Viewers have no business sending anything else; drop it.
	}
}

// sendLoop drains the queue whenever the connection can accept events.
func (c *Client) sendLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}
		c.drain()
	}
}

// drain sends queued events in order until the queue empties or
// streaming is gated (not established, paused, or disconnected).
func (c *Client) drain() {
	for {
		c.mu.Lock()
		if c.state == StateClosed || c.conn == nil || !c.established || c.paused || len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		qe := c.queue[0]
		c.queue = c.queue[1:]
		conn := c.conn
		c.mu.Unlock()

		if err := conn.Send(wire.EventPacket{Network: qe.network, Payload: qe.event}); err != nil {
			c.reportError(fmt.Errorf("send event: %w", err))
			// Put it back; it goes out after reconnection.
			c.mu.Lock()
			c.queue = append([]queuedEvent{qe}, c.queue...)
			c.mu.Unlock()
			return
		}
	}
}

// pinger sends periodic liveness pings for one connection.
func (c *Client) pinger(conn *transport.Connection, closed <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			ready := c.established && c.conn == conn
			c.mu.Unlock()
			if !ready {
				continue
			}
			if err := conn.Send(wire.PingPacket{}); err != nil {
				c.reportError(fmt.Errorf("ping: %w", err))
			}
		}
	}
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
		// Already pending
	}
}

func (c *Client) setState(new State) {
	c.mu.Lock()
	if c.state == StateClosed || c.state == new {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = new
	c.mu.Unlock()
	c.notifyState(old, new)
}

func (c *Client) notifyState(old, new State) {
	if c.config.OnStateChange != nil {
		c.config.OnStateChange(old, new)
	}
}

func (c *Client) reportError(err error) {
	if c.config.OnError != nil {
		c.config.OnError(err)
	}
}

// connHandler adapts one connection's events onto the client.
type connHandler struct {
	client *Client
	conn   *transport.Connection
	closed chan struct{}
	once   sync.Once
}

func (h *connHandler) OnStateChange(old, new transport.State) {
	if new == transport.StateClosed {
		h.once.Do(func() {
			h.client.connectionClosed(h.conn)
			close(h.closed)
		})
	}
}

func (h *connHandler) OnPacket(pkt wire.Packet) {
	h.client.handlePacket(pkt)
}

func (h *connHandler) OnError(err error) {
	h.client.reportError(err)
}

// Compile-time interface satisfaction checks.
var (
	_ log.Logger        = (*Client)(nil)
	_ transport.Handler = (*connHandler)(nil)
)
