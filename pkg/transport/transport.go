package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultReadBufferSize is the read buffer size for stream transports.
const DefaultReadBufferSize = 4096

// DefaultDialTimeout is the default timeout for establishing a transport.
const DefaultDialTimeout = 30 * time.Second

// ErrTransportClosed indicates an operation on a closed transport.
var ErrTransportClosed = errors.New("transport closed")

// Transport is a byte-chunk pipe underneath a Connection. It may be
// backed by a stream socket or a message-oriented socket; either way each
// ReadChunk delivers one opaque chunk and framing is re-derived by the
// Reassembler.
//
// ReadChunk is called from a single goroutine. Write calls are serialized
// by the Connection. Close must unblock a pending ReadChunk and is safe
// to call from any goroutine, repeatedly.
type Transport interface {
	// Start establishes the transport. It is a no-op for transports
	// created from an already-accepted socket.
	Start(ctx context.Context) error

	// ReadChunk blocks until the next chunk of bytes arrives. The
	// returned slice is only valid until the next ReadChunk call.
	// io.EOF reports that the peer closed its write side.
	ReadChunk() ([]byte, error)

	// Write sends data to the peer.
	Write(data []byte) error

	// Close tears the transport down.
	Close() error
}

// TCPTransport is a Transport over a TCP stream socket.
type TCPTransport struct {
	address     string
	dialTimeout time.Duration

	mu      sync.Mutex
	conn    net.Conn
	readBuf []byte

	closeOnce sync.Once
}

// NewTCPTransport creates a transport that dials address on Start.
func NewTCPTransport(address string) *TCPTransport {
	return &TCPTransport{
		address:     address,
		dialTimeout: DefaultDialTimeout,
		readBuf:     make([]byte, DefaultReadBufferSize),
	}
}

// NewAcceptedTransport wraps an already-accepted socket. Start is a no-op.
func NewAcceptedTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{
		conn:    conn,
		readBuf: make([]byte, DefaultReadBufferSize),
	}
}

// SetDialTimeout overrides the dial timeout applied when the context
// carries no deadline.
func (t *TCPTransport) SetDialTimeout(d time.Duration) {
	t.dialTimeout = d
}

// Start dials the configured address.
func (t *TCPTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.dialTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	t.conn = conn
	return nil
}

// ReadChunk reads whatever bytes are available on the socket.
func (t *TCPTransport) ReadChunk() ([]byte, error) {
	conn := t.current()
	if conn == nil {
		return nil, ErrTransportClosed
	}

	n, err := conn.Read(t.readBuf)
	if err != nil {
		return nil, err
	}
	return t.readBuf[:n], nil
}

// Write sends data on the socket.
func (t *TCPTransport) Write(data []byte) error {
	conn := t.current()
	if conn == nil {
		return ErrTransportClosed
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Close closes the socket, unblocking a pending ReadChunk. Idempotent.
func (t *TCPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if conn := t.current(); conn != nil {
			err = conn.Close()
		}
	})
	return err
}

// RemoteAddr returns the remote address, or nil before Start.
func (t *TCPTransport) RemoteAddr() net.Addr {
	if conn := t.current(); conn != nil {
		return conn.RemoteAddr()
	}
	return nil
}

func (t *TCPTransport) current() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// Compile-time interface satisfaction checks.
var (
	_ Transport = (*TCPTransport)(nil)
	_ Transport = (*WSTransport)(nil)
)
