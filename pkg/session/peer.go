package session

import (
	"net"
	"sync"
	"time"

	"github.com/logstream-protocol/logstream-go/pkg/transport"
	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// Peer is one remote endpoint known to the server. It is created when an
// accepted connection completes the hello handshake and destroyed when
// its connection closes. The server exclusively owns the peer registry.
type Peer struct {
	id         string
	remoteAddr net.Addr
	conn       *transport.Connection

	mu          sync.Mutex
	identity    wire.HelloIdentity
	established bool
	removed     bool
	lastSeen    time.Time
}

// ID returns the stable peer identifier (UUID, shared with the
// connection ID).
func (p *Peer) ID() string {
	return p.id
}

// RemoteAddr returns the peer's network address.
func (p *Peer) RemoteAddr() net.Addr {
	return p.remoteAddr
}

// Identity returns the device/app identity from the peer's hello.
// Zero value before the handshake completes.
func (p *Peer) Identity() wire.HelloIdentity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity
}

// Established reports whether the hello handshake has completed.
func (p *Peer) Established() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.established
}

// LastSeen returns the time of the peer's last inbound packet.
func (p *Peer) LastSeen() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// Send sends a packet to this peer.
func (p *Peer) Send(pkt wire.Packet) error {
	return p.conn.Send(pkt)
}

// touch updates liveness bookkeeping.
func (p *Peer) touch() {
	p.mu.Lock()
	p.lastSeen = time.Now()
	p.mu.Unlock()
}

// establish stores the identity and marks the handshake complete.
// Returns false when the peer was already established (duplicate hello).
func (p *Peer) establish(id wire.HelloIdentity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.established {
		return false
	}
	p.identity = id
	p.established = true
	p.lastSeen = time.Now()
	return true
}

// markRemoved flags the peer as pruned. Returns whether the peer had
// been established, and whether this call was the first removal.
func (p *Peer) markRemoved() (established, first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.removed {
		return p.established, false
	}
	p.removed = true
	return p.established, true
}
