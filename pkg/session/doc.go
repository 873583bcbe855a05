// Package session implements the server side of the logstream protocol:
// accepting concurrent connections, tracking peers, routing inbound
// packets and broadcasting to every established peer.
//
// A remote endpoint becomes a Peer when its connection delivers a client
// hello; the server replies with a server hello and announces the peer
// through the OnPeerConnected callback. The peer registry only ever
// contains peers whose connection is live: registry state is pruned
// synchronously with connection-closed notifications, so nothing is
// delivered to dead peers.
//
// Event packets arriving before the hello are protocol violations:
// reported, dropped, never fatal.
package session
