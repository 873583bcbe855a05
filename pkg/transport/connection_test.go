package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logstream-protocol/logstream-go/pkg/capture"
	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// testHandler collects connection events for assertions.
type testHandler struct {
	mu          sync.Mutex
	transitions []string
	closedCount int

	packets chan wire.Packet
	errs    chan error
	closed  chan struct{}
}

func newTestHandler() *testHandler {
	return &testHandler{
		packets: make(chan wire.Packet, 16),
		errs:    make(chan error, 16),
		closed:  make(chan struct{}),
	}
}

func (h *testHandler) OnStateChange(old, new State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transitions = append(h.transitions, old.String()+"->"+new.String())
	if new == StateClosed {
		h.closedCount++
		if h.closedCount == 1 {
			close(h.closed)
		}
	}
}

func (h *testHandler) OnPacket(pkt wire.Packet) { h.packets <- pkt }
func (h *testHandler) OnError(err error)       { h.errs <- err }

func (h *testHandler) closedTransitions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closedCount
}

func waitClosed(t *testing.T, h *testHandler) {
	t.Helper()
	select {
	case <-h.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for terminal close")
	}
}

// pipeConnection returns an opened connection and the raw remote end.
func pipeConnection(t *testing.T, h *testHandler) (*Connection, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	conn := NewConnection(NewAcceptedTransport(local), Config{}, h)
	require.NoError(t, conn.Open(context.Background()))
	t.Cleanup(func() {
		conn.Cancel()
		remote.Close()
	})
	return conn, remote
}

func TestConnectionReceivePackets(t *testing.T) {
	h := newTestHandler()
	_, remote := pipeConnection(t, h)

	hello, err := wire.EncodePacket(wire.HelloPacket{Identity: wire.HelloIdentity{
		ClientID:   "c1",
		ClientName: "app",
	}})
	require.NoError(t, err)
	event, err := wire.EncodePacket(wire.EventPacket{Raw: []byte(`{"msg":"hi"}`)})
	require.NoError(t, err)

	// Write both frames as one coalesced stream, split mid-frame.
	stream := append(append([]byte{}, hello...), event...)
	go func() {
		remote.Write(stream[:7])
		remote.Write(stream[7:])
	}()

	pkt := <-h.packets
	got, ok := pkt.(wire.HelloPacket)
	require.True(t, ok, "expected HelloPacket, got %T", pkt)
	assert.Equal(t, "c1", got.Identity.ClientID)

	pkt = <-h.packets
	evt, ok := pkt.(wire.EventPacket)
	require.True(t, ok, "expected EventPacket, got %T", pkt)
	assert.JSONEq(t, `{"msg":"hi"}`, string(evt.Raw))
}

func TestConnectionSend(t *testing.T) {
	h := newTestHandler()
	conn, remote := pipeConnection(t, h)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 1024)
		n, _ := remote.Read(buf)
		done <- buf[:n]
	}()

	require.NoError(t, conn.Send(wire.EventPacket{Raw: []byte(`{"msg":"out"}`)}))

	data := <-done
	frame, _, err := wire.DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, wire.CodeLogMessage, frame.Code)
	assert.JSONEq(t, `{"msg":"out"}`, string(frame.Body))
}

func TestConnectionEncodeFailureDoesNotClose(t *testing.T) {
	h := newTestHandler()
	conn, remote := pipeConnection(t, h)

	err := conn.Send(wire.EventPacket{Payload: make(chan int)})
	require.ErrorIs(t, err, wire.ErrEncodingFailed)
	assert.Equal(t, StateConnected, conn.State())

	// The channel still works after the bad payload.
	go func() {
		buf := make([]byte, 64)
		remote.Read(buf)
	}()
	assert.NoError(t, conn.Send(wire.PingPacket{}))
}

func TestConnectionCancelUnblocksAndTerminalOnce(t *testing.T) {
	h := newTestHandler()
	conn, _ := pipeConnection(t, h)

	// Cancel from a goroutine other than the receive loop, repeatedly.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.Cancel()
		}()
	}
	wg.Wait()
	waitClosed(t, h)

	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, 1, h.closedTransitions())
	assert.ErrorIs(t, conn.Send(wire.PingPacket{}), ErrNotConnected)
}

func TestConnectionPeerCloseCompletes(t *testing.T) {
	h := newTestHandler()
	conn, remote := pipeConnection(t, h)

	remote.Close()
	waitClosed(t, h)

	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, 1, h.closedTransitions())
}

func TestConnectionMalformedFrameCloses(t *testing.T) {
	h := newTestHandler()
	conn, remote := pipeConnection(t, h)

	go remote.Write([]byte{0xFF, 0x00, 0x00, 0x00, 0x00})

	select {
	case err := <-h.errs:
		assert.ErrorIs(t, err, wire.ErrMalformedFrame)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for parse failure")
	}

	waitClosed(t, h)
	assert.Equal(t, StateClosed, conn.State())
}

func TestConnectionUndecodableBodyStaysOpen(t *testing.T) {
	h := newTestHandler()
	conn, remote := pipeConnection(t, h)

	// Structurally valid frame, undecodable hello body.
	bad, err := wire.EncodeFrame(wire.CodeClientHello, []byte(`{"clientId":`))
	require.NoError(t, err)
	ping, err := wire.EncodePacket(wire.PingPacket{})
	require.NoError(t, err)

	go remote.Write(append(append([]byte{}, bad...), ping...))

	select {
	case err := <-h.errs:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for decode error")
	}

	// The next frame is still delivered.
	select {
	case pkt := <-h.packets:
		assert.IsType(t, wire.PingPacket{}, pkt)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for follow-up packet")
	}
	assert.Equal(t, StateConnected, conn.State())
}

func TestConnectionOpenTwice(t *testing.T) {
	h := newTestHandler()
	conn, _ := pipeConnection(t, h)
	assert.ErrorIs(t, conn.Open(context.Background()), ErrAlreadyOpen)
}

func TestConnectionSendBeforeOpen(t *testing.T) {
	local, _ := net.Pipe()
	conn := NewConnection(NewAcceptedTransport(local), Config{}, newTestHandler())
	assert.ErrorIs(t, conn.Send(wire.PingPacket{}), ErrNotConnected)
}

func TestConnectionOpenTransportFailure(t *testing.T) {
	h := newTestHandler()
	// Nothing listens here; dial must fail and the state must land in
	// Closed with the error returned.
	tr := NewTCPTransport("127.0.0.1:1")
	tr.SetDialTimeout(500 * time.Millisecond)
	conn := NewConnection(tr, Config{}, h)

	err := conn.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, StateClosed, conn.State())
}

func TestConnectionOversizedHeaderCloses(t *testing.T) {
	h := newTestHandler()
	conn, remote := pipeConnection(t, h)

	// One header claiming a 4 GiB body; the receiver must refuse it
	// outright instead of buffering toward the claimed length.
	go remote.Write([]byte{byte(wire.CodePing), 0xFF, 0xFF, 0xFF, 0xFF})

	select {
	case err := <-h.errs:
		assert.ErrorIs(t, err, wire.ErrBodyTooLarge)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for parse failure")
	}

	waitClosed(t, h)
	assert.Equal(t, StateClosed, conn.State())
}

// Cancel racing Open must leave the connection Closed with the terminal
// notification delivered exactly once, never resurrected to Connected.
func TestConnectionOpenCancelConcurrent(t *testing.T) {
	for i := 0; i < 50; i++ {
		local, remote := net.Pipe()
		h := newTestHandler()
		conn := NewConnection(NewAcceptedTransport(local), Config{}, h)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := conn.Open(context.Background())
			if err != nil {
				require.True(t,
					errors.Is(err, ErrNotConnected) || errors.Is(err, ErrAlreadyOpen),
					"unexpected Open error: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			conn.Cancel()
		}()
		wg.Wait()

		// Whatever the interleaving, a final Cancel must settle it.
		conn.Cancel()
		waitClosed(t, h)
		assert.Equal(t, StateClosed, conn.State())
		assert.Equal(t, 1, h.closedTransitions())
		remote.Close()
	}
}

// memRecorder collects capture records in memory.
type memRecorder struct {
	mu      sync.Mutex
	records []capture.Record
}

func (m *memRecorder) Record(rec capture.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

func (m *memRecorder) byKind(k capture.Kind) []capture.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []capture.Record
	for _, r := range m.records {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

func TestConnectionRecordsProtocolActivity(t *testing.T) {
	rec := &memRecorder{}
	h := newTestHandler()

	local, remote := net.Pipe()
	conn := NewConnection(NewAcceptedTransport(local), Config{ConnID: "test-conn", Recorder: rec}, h)
	require.NoError(t, conn.Open(context.Background()))
	defer remote.Close()

	go func() {
		buf := make([]byte, 64)
		remote.Read(buf)
	}()
	require.NoError(t, conn.Send(wire.EventPacket{Raw: []byte(`{"msg":"rec"}`)}))

	ping, _ := wire.EncodePacket(wire.PingPacket{})
	go remote.Write(ping)
	<-h.packets

	conn.Cancel()
	waitClosed(t, h)

	frames := rec.byKind(capture.KindFrame)
	require.Len(t, frames, 2)
	assert.Equal(t, capture.DirectionOut, frames[0].Direction)
	assert.Equal(t, uint8(wire.CodeLogMessage), frames[0].Frame.Code)
	assert.Equal(t, capture.DirectionIn, frames[1].Direction)
	assert.Equal(t, uint8(wire.CodePing), frames[1].Frame.Code)

	states := rec.byKind(capture.KindState)
	require.NotEmpty(t, states)
	assert.Equal(t, "CLOSED", states[len(states)-1].State.New)
	for _, s := range states {
		assert.Equal(t, "test-conn", s.ConnID)
	}
}

func TestConnectionDeliveryOrder(t *testing.T) {
	h := newTestHandler()
	_, remote := pipeConnection(t, h)

	var stream []byte
	const n = 50
	for i := 0; i < n; i++ {
		data, err := wire.EncodePacket(wire.EventPacket{Payload: map[string]int{"seq": i}})
		require.NoError(t, err)
		stream = append(stream, data...)
	}

	// Dribble the stream in uneven chunks.
	go func() {
		for off := 0; off < len(stream); {
			end := off + 13
			if end > len(stream) {
				end = len(stream)
			}
			remote.Write(stream[off:end])
			off = end
		}
	}()

	for i := 0; i < n; i++ {
		select {
		case pkt := <-h.packets:
			var body struct {
				Seq int `json:"seq"`
			}
			evt := pkt.(wire.EventPacket)
			require.NoError(t, json.Unmarshal(evt.Raw, &body))
			require.Equal(t, i, body.Seq, "frames reordered")
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for packet %d", i)
		}
	}
}
