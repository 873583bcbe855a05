// Package client implements the emitting side of the logstream
// protocol: a viewer client that owns one connection at a time,
// performs the hello-first handshake, streams log events and honors
// the viewer's pause/resume flow control.
//
// The client implements log.Logger. Events logged while disconnected
// or paused are buffered in a bounded queue; when the queue is full the
// oldest events are dropped so the emitting application never blocks.
// Reconnection with exponential backoff and jitter lives entirely in
// this package; the protocol layers below never retry.
package client
