// Package wire implements the logstream wire format: length-prefixed
// binary frames carrying JSON-encoded control packets.
//
// Every message on the wire is a frame:
//
//	[1 byte packet code][4 bytes body length, big-endian][length bytes JSON body]
//
// The packet code identifies one of the seven control packet variants
// (client hello, server hello, pause, resume, log message, network log
// message, ping). There is no protocol version field and no checksum;
// both ends agree on code semantics at build time.
//
// The codec is pure computation: it performs no I/O and holds no state.
// Stream reassembly lives in package transport.
package wire
