package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// WSTransport is a Transport over a websocket, the message-oriented peer
// variant: each inbound message is delivered as one chunk. Framing is
// still re-derived by the Reassembler, so a sender may pack several
// frames into one message or split a frame across messages.
type WSTransport struct {
	url    string
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
}

// NewWSTransport creates a transport that dials url (ws:// or wss://) on
// Start.
func NewWSTransport(url string) *WSTransport {
	return &WSTransport{
		url:    url,
		dialer: websocket.DefaultDialer,
	}
}

// NewAcceptedWSTransport wraps an already-upgraded websocket. Start is a
// no-op.
func NewAcceptedWSTransport(conn *websocket.Conn) *WSTransport {
	return &WSTransport{conn: conn}
}

// Start dials the configured URL.
func (t *WSTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	conn, resp, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	t.conn = conn
	return nil
}

// ReadChunk reads the next binary message.
func (t *WSTransport) ReadChunk() ([]byte, error) {
	conn := t.current()
	if conn == nil {
		return nil, ErrTransportClosed
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// Write sends data as one binary message.
func (t *WSTransport) Write(data []byte) error {
	conn := t.current()
	if conn == nil {
		return ErrTransportClosed
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close closes the websocket, unblocking a pending ReadChunk. Idempotent.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if conn := t.current(); conn != nil {
			err = conn.Close()
		}
	})
	return err
}

func (t *WSTransport) current() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}
