package client

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logstream-protocol/logstream-go/pkg/log"
	"github.com/logstream-protocol/logstream-go/pkg/transport"
	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// fakeViewer is a minimal viewer endpoint: it accepts connections,
// answers hellos and collects inbound packets.
type fakeViewer struct {
	listener net.Listener

	// replyHello controls whether hellos are acknowledged.
	replyHello bool

	hellos chan wire.HelloPacket
	events chan wire.EventPacket
	pings  chan struct{}
	conns  chan *transport.Connection

	mu     sync.Mutex
	closed bool
}

func startFakeViewer(t *testing.T) *fakeViewer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	v := &fakeViewer{
		listener:   listener,
		replyHello: true,
		hellos:     make(chan wire.HelloPacket, 16),
		events:     make(chan wire.EventPacket, 128),
		pings:      make(chan struct{}, 16),
		conns:      make(chan *transport.Connection, 16),
	}
	go v.acceptLoop(t)
	t.Cleanup(v.stop)
	return v
}

func (v *fakeViewer) addr() string {
	return v.listener.Addr().String()
}

func (v *fakeViewer) stop() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()
	v.listener.Close()
}

func (v *fakeViewer) acceptLoop(t *testing.T) {
	for {
		netConn, err := v.listener.Accept()
		if err != nil {
			return
		}
		h := &viewerHandler{viewer: v}
		conn := transport.NewConnection(transport.NewAcceptedTransport(netConn), transport.Config{}, h)
		h.conn = conn
		if err := conn.Open(context.Background()); err != nil {
			continue
		}
		v.conns <- conn
	}
}

type viewerHandler struct {
	viewer *fakeViewer
	conn   *transport.Connection
}

func (h *viewerHandler) OnStateChange(old, new transport.State) {}
func (h *viewerHandler) OnError(err error)                      {}

func (h *viewerHandler) OnPacket(pkt wire.Packet) {
	switch pkt := pkt.(type) {
	case wire.HelloPacket:
		h.viewer.hellos <- pkt
		if h.viewer.replyHello {
			h.conn.Send(wire.EmptyPacket{PacketCode: wire.CodeServerHello})
		}
	case wire.EventPacket:
		h.viewer.events <- pkt
	case wire.PingPacket:
		h.viewer.pings <- struct{}{}
	}
}

func startClient(t *testing.T, config Config) *Client {
	t.Helper()
	c := New(config)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func recvEvent(t *testing.T, v *fakeViewer) log.Event {
	t.Helper()
	select {
	case pkt := <-v.events:
		var evt log.Event
		require.NoError(t, json.Unmarshal(pkt.Raw, &evt))
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return log.Event{}
	}
}

func TestClientStreamsBufferedAndLiveEvents(t *testing.T) {
	v := startFakeViewer(t)

	c := New(Config{
		Address:    v.addr(),
		Descriptor: NewHostDescriptor("test-app", "1.0"),
		Backoff:    BackoffConfig{Initial: 10 * time.Millisecond, Jitter: -1},
	})
	t.Cleanup(c.Close)

	// Events logged before the connection exists are buffered.
	c.Log(log.Event{Message: "early-1"})
	c.Log(log.Event{Message: "early-2"})

	require.NoError(t, c.Start(context.Background()))

	// Hello always precedes the stream.
	select {
	case hello := <-v.hellos:
		assert.Equal(t, "test-app", hello.Identity.ClientName)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for hello")
	}

	first := recvEvent(t, v)
	assert.Equal(t, "early-1", first.Message)
	assert.Equal(t, uint64(1), first.Seq)
	second := recvEvent(t, v)
	assert.Equal(t, "early-2", second.Message)
	assert.Equal(t, uint64(2), second.Seq)

	// Live events follow.
	c.Log(log.Event{Message: "live"})
	assert.Equal(t, "live", recvEvent(t, v).Message)
}

func TestClientNetworkEventsUseNetworkCode(t *testing.T) {
	v := startFakeViewer(t)
	c := startClient(t, Config{Address: v.addr()})

	c.LogNetwork(log.Event{Message: "GET /health"})

	select {
	case pkt := <-v.events:
		assert.Equal(t, wire.CodeLogNetworkMessage, pkt.Code())
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for network event")
	}
}

func TestClientPauseResume(t *testing.T) {
	v := startFakeViewer(t)
	c := startClient(t, Config{Address: v.addr()})

	// Force the handshake to finish before pausing.
	c.Log(log.Event{Message: "pre"})
	recvEvent(t, v)

	var conn *transport.Connection
	select {
	case conn = <-v.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server conn")
	}

	require.NoError(t, conn.Send(wire.PauseResumePacket{}))
	require.Eventually(t, c.Paused, 2*time.Second, 10*time.Millisecond)

	c.Log(log.Event{Message: "held-1"})
	c.Log(log.Event{Message: "held-2"})

	select {
	case pkt := <-v.events:
		t.Fatalf("event delivered while paused: %s", pkt.Raw)
	case <-time.After(150 * time.Millisecond):
	}
	assert.Equal(t, 2, c.Pending())

	require.NoError(t, conn.Send(wire.PauseResumePacket{Resume: true}))
	assert.Equal(t, "held-1", recvEvent(t, v).Message)
	assert.Equal(t, "held-2", recvEvent(t, v).Message)
}

func TestClientQueueOverflowDropsOldest(t *testing.T) {
	// No viewer: everything stays queued.
	c := New(Config{
		Address:   "127.0.0.1:1",
		QueueSize: 4,
	})
	t.Cleanup(c.Close)

	for i := 0; i < 6; i++ {
		c.Log(log.Event{Message: "m"})
	}

	assert.Equal(t, 4, c.Pending())
	assert.Equal(t, uint64(2), c.Dropped())

	// The survivors are the newest four.
	c.mu.Lock()
	front := c.queue[0].event.Seq
	c.mu.Unlock()
	assert.Equal(t, uint64(3), front)
}

func TestClientReconnects(t *testing.T) {
	v := startFakeViewer(t)
	c := startClient(t, Config{
		Address: v.addr(),
		Backoff: BackoffConfig{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond},
	})

	<-v.hellos
	var conn *transport.Connection
	select {
	case conn = <-v.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server conn")
	}

	// Kill the connection from the viewer side; the client must come
	// back with a fresh hello.
	conn.Cancel()

	select {
	case <-v.hellos:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for reconnect hello")
	}

	// Streaming works on the new connection.
	c.Log(log.Event{Message: "after reconnect"})
	assert.Equal(t, "after reconnect", recvEvent(t, v).Message)
}

func TestClientNoReconnectWhenDisabled(t *testing.T) {
	v := startFakeViewer(t)
	c := startClient(t, Config{
		Address:          v.addr(),
		DisableReconnect: true,
		Backoff:          BackoffConfig{Initial: 10 * time.Millisecond},
	})

	<-v.hellos
	conn := <-v.conns
	conn.Cancel()

	require.Eventually(t, func() bool { return c.State() == StateDisconnected },
		2*time.Second, 10*time.Millisecond)

	select {
	case <-v.hellos:
		t.Fatal("unexpected reconnect")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClientSendsPings(t *testing.T) {
	v := startFakeViewer(t)
	startClient(t, Config{
		Address:      v.addr(),
		PingInterval: 30 * time.Millisecond,
	})

	<-v.hellos
	select {
	case <-v.pings:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for ping")
	}
}

func TestClientStartTwice(t *testing.T) {
	v := startFakeViewer(t)
	c := startClient(t, Config{Address: v.addr()})
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
}

func TestClientCloseIdempotent(t *testing.T) {
	v := startFakeViewer(t)
	c := startClient(t, Config{Address: v.addr()})

	c.Close()
	c.Close()
	assert.Equal(t, StateClosed, c.State())
}
