// Package transport turns raw byte streams into logstream frames and
// manages the lifecycle of a single connection.
//
// Layers, bottom up:
//
//   - Transport: a pluggable byte-chunk pipe (TCP stream or
//     message-oriented websocket). Each read delivers one opaque chunk;
//     frame boundaries are never assumed to align with chunk boundaries.
//   - Reassembler: accumulates chunks and emits complete frames in wire
//     order, retaining partial trailing data across reads.
//   - Connection: owns one Transport, drives the Reassembler from a
//     receive goroutine, serializes writes, and walks the lifecycle
//     Idle -> Connecting -> Connected -> Closed. Events are delivered to
//     a Handler injected at construction; the terminal close notification
//     is delivered exactly once.
//
// The protocol layer never retries: reconnection belongs to the owner of
// the Connection (see package client).
package transport
