package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/logstream-protocol/logstream-go/pkg/capture"
	"github.com/logstream-protocol/logstream-go/pkg/transport"
	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// DefaultPort is the default listen port for a logstream server.
const DefaultPort = 7788

// Session errors.
var (
	// ErrProtocolViolation indicates a structurally valid frame whose
	// code is semantically unexpected for the peer's current state.
	// Reported, never fatal; the offending frame is dropped.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrPeerNotFound indicates an operation on an unknown peer ID.
	ErrPeerNotFound = errors.New("peer not found")

	// ErrServerRunning indicates Start on an already-running server.
	ErrServerRunning = errors.New("server already running")
)

// Config configures a logstream server.
type Config struct {
	// Address to listen on (default ":7788").
	Address string

	// Recorder records protocol activity on every accepted connection
	// (optional).
	Recorder capture.Recorder

	// OnPeerConnected is called once a peer completes its hello
	// handshake.
	OnPeerConnected func(p *Peer)

	// OnPeerDisconnected is called once when an established peer's
	// connection closes.
	OnPeerDisconnected func(p *Peer)

	// OnEvent is called for every log event packet from an established
	// peer.
	OnEvent func(p *Peer, evt wire.EventPacket)

	// OnError is called for per-peer failures and protocol violations.
	// p is nil for errors not tied to a peer (accept failures).
	OnError func(p *Peer, err error)
}

// Server accepts concurrent logstream connections and manages the
// peer registry.
type Server struct {
	config   Config
	listener net.Listener

	// Registry. peers holds only established peers; pending holds
	// accepted connections whose handshake has not completed. All
	// mutations happen under mu; sends to peers happen outside it on a
	// snapshot.
	mu      sync.Mutex
	peers   map[string]*Peer
	pending map[string]*Peer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a server.
func NewServer(config Config) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	return &Server{
		config:  config,
		peers:   make(map[string]*Peer),
		pending: make(map[string]*Peer),
	}
}

// Start begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return ErrServerRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops accepting and closes every connection, established or not.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	conns := make([]*transport.Connection, 0, len(s.peers)+len(s.pending))
	for _, p := range s.peers {
		conns = append(conns, p.conn)
	}
	for _, p := range s.pending {
		conns = append(conns, p.conn)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Cancel()
	}

	s.wg.Wait()
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// Port returns the bound TCP port, or 0 before Start.
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// PeerCount returns the number of established peers.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Peers returns a snapshot of the established peers.
func (s *Server) Peers() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Peer returns the established peer with the given ID.
func (s *Server) Peer(id string) (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	return p, ok
}

// Broadcast encodes the packet once and sends the identical bytes to
// every established peer. A failure to one peer is reported through
// OnError and does not prevent delivery to the others. The returned
// error covers encoding only.
func (s *Server) Broadcast(pkt wire.Packet) error {
	data, err := wire.EncodePacket(pkt)
	if err != nil {
		return err
	}

	for _, p := range s.Peers() {
		if err := p.conn.SendFrame(data); err != nil {
			s.reportError(p, fmt.Errorf("broadcast to peer %s: %w", p.ID(), err))
		}
	}
	return nil
}

// PausePeer asks one peer to stop streaming events.
func (s *Server) PausePeer(id string) error {
	return s.sendFlowControl(id, wire.PauseResumePacket{})
}

// ResumePeer asks one peer to resume streaming events.
func (s *Server) ResumePeer(id string) error {
	return s.sendFlowControl(id, wire.PauseResumePacket{Resume: true})
}

func (s *Server) sendFlowControl(id string, pkt wire.PauseResumePacket) error {
	p, ok := s.Peer(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPeerNotFound, id)
	}
	return p.Send(pkt)
}

// acceptRetryDelay is the pause after a failed Accept, so a persistent
// listener error cannot spin the loop hot.
const acceptRetryDelay = 100 * time.Millisecond

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.reportError(nil, fmt.Errorf("accept error: %w", err))
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}
		s.handleConnection(conn)
	}
}

// handleConnection wires an accepted socket into a pending peer and
// starts its receive loop.
func (s *Server) handleConnection(netConn net.Conn) {
	p := &Peer{
		id:         uuid.New().String(),
		remoteAddr: netConn.RemoteAddr(),
	}
	p.conn = transport.NewConnection(
		transport.NewAcceptedTransport(netConn),
		transport.Config{ConnID: p.id, Recorder: s.config.Recorder},
		&peerHandler{server: s, peer: p},
	)

	s.mu.Lock()
	s.pending[p.id] = p
	s.mu.Unlock()

	if err := p.conn.Open(s.ctx); err != nil {
		s.removePeer(p)
		s.reportError(nil, fmt.Errorf("open accepted connection: %w", err))
	}
}

// dispatch routes one inbound packet by code.
func (s *Server) dispatch(p *Peer, pkt wire.Packet) {
	switch pkt := pkt.(type) {
	case wire.HelloPacket:
		s.handleHello(p, pkt)

	case wire.EventPacket:
		if !p.Established() {
			s.reportError(p, fmt.Errorf("%w: %s before hello", ErrProtocolViolation, pkt.Code()))
			return
		}
		p.touch()
		if s.config.OnEvent != nil {
			s.config.OnEvent(p, pkt)
		}

	case wire.PingPacket:
		p.touch()

	default:
		// Pause/resume and server hello only flow server-to-client.
		s.reportError(p, fmt.Errorf("%w: unexpected %s from peer", ErrProtocolViolation, pkt.Code()))
	}
}

// handleHello completes the handshake: registers the peer, replies with
// a server hello and announces the connection.
func (s *Server) handleHello(p *Peer, hello wire.HelloPacket) {
	if !p.establish(hello.Identity) {
		s.reportError(p, fmt.Errorf("%w: duplicate hello", ErrProtocolViolation))
		return
	}

	s.mu.Lock()
	delete(s.pending, p.id)
	s.peers[p.id] = p
	s.mu.Unlock()

	if err := p.Send(wire.EmptyPacket{PacketCode: wire.CodeServerHello}); err != nil {
		s.reportError(p, fmt.Errorf("server hello: %w", err))
	}

	if s.config.OnPeerConnected != nil {
		s.config.OnPeerConnected(p)
	}
}

// removePeer prunes registry state for a closed connection. Safe to call
// for peers that never completed the handshake, and idempotent.
func (s *Server) removePeer(p *Peer) {
	established, first := p.markRemoved()

	s.mu.Lock()
	delete(s.pending, p.id)
	delete(s.peers, p.id)
	s.mu.Unlock()

	if first && established && s.config.OnPeerDisconnected != nil {
		s.config.OnPeerDisconnected(p)
	}
}

func (s *Server) reportError(p *Peer, err error) {
	if s.config.OnError != nil {
		s.config.OnError(p, err)
	}
}

// peerHandler adapts one connection's events onto the server.
type peerHandler struct {
	server *Server
	peer   *Peer
}

func (h *peerHandler) OnStateChange(old, new transport.State) {
	if new == transport.StateClosed {
		// Pruned synchronously so broadcasts never see a dead peer.
		h.server.removePeer(h.peer)
	}
}

func (h *peerHandler) OnPacket(pkt wire.Packet) {
	h.server.dispatch(h.peer, pkt)
}

func (h *peerHandler) OnError(err error) {
	h.server.reportError(h.peer, fmt.Errorf("peer %s: %w", h.peer.ID(), err))
}

// Compile-time interface satisfaction check.
var _ transport.Handler = (*peerHandler)(nil)
