package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Framing constants.
const (
	// HeaderSize is the fixed frame header size: 1 code byte plus a
	// 4-byte big-endian body length.
	HeaderSize = 5

	// MaxBodySize is the largest body the length field can describe.
	MaxBodySize = 1<<32 - 1

	// DefaultMaxBodySize is the largest body accepted by default (1 MB).
	// A header claiming more is rejected before any body bytes are
	// buffered, bounding the memory one peer can commit the receiver to.
	DefaultMaxBodySize = 1 << 20
)

// Framing errors.
var (
	// ErrNeedMoreData is a reassembly control signal, not a failure: the
	// buffer does not yet hold a complete frame.
	ErrNeedMoreData = errors.New("need more data")

	// ErrMalformedFrame indicates an unrecognized packet code.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrBodyTooLarge indicates a body over the size limit, on either
	// side of the wire.
	ErrBodyTooLarge = errors.New("frame body too large")
)

// Frame is one length-prefixed unit on the wire.
type Frame struct {
	Code PacketCode
	Body []byte
}

// EncodeFrame encodes a frame to wire bytes.
// Fails with ErrBodyTooLarge when the body exceeds DefaultMaxBodySize;
// a receiver with the default limit would refuse the frame anyway.
func EncodeFrame(code PacketCode, body []byte) ([]byte, error) {
	if len(body) > DefaultMaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))
	}

	buf := make([]byte, HeaderSize+len(body))
	buf[0] = byte(code)
	binary.BigEndian.PutUint32(buf[1:HeaderSize], uint32(len(body)))
	copy(buf[HeaderSize:], body)
	return buf, nil
}

// DecodeFrame decodes one frame from the front of buf, enforcing
// DefaultMaxBodySize.
func DecodeFrame(buf []byte) (Frame, int, error) {
	return DecodeFrameWithMaxSize(buf, DefaultMaxBodySize)
}

// DecodeFrameWithMaxSize decodes one frame from the front of buf.
//
// It returns the frame and the exact number of bytes consumed
// (HeaderSize + body length), so the caller can trim that many bytes
// regardless of trailing data. ErrNeedMoreData means buf does not yet
// hold a complete frame; ErrMalformedFrame means the code byte is not an
// assigned packet code (the caller decides whether to drop or disconnect).
//
// A header claiming a body larger than maxBody fails with ErrBodyTooLarge
// as soon as the header is readable, before any body bytes arrive, so a
// hostile length field cannot make the caller buffer toward it.
//
// The returned body aliases buf; callers that retain frames across reads
// must copy.
func DecodeFrameWithMaxSize(buf []byte, maxBody int) (Frame, int, error) {
	if len(buf) < HeaderSize {
		return Frame{}, 0, ErrNeedMoreData
	}

	code := PacketCode(buf[0])
	if !code.Valid() {
		return Frame{}, 0, fmt.Errorf("%w: code 0x%02X", ErrMalformedFrame, buf[0])
	}

	length := binary.BigEndian.Uint32(buf[1:HeaderSize])
	if uint64(length) > uint64(maxBody) {
		return Frame{}, 0, fmt.Errorf("%w: %d bytes (limit %d)", ErrBodyTooLarge, length, maxBody)
	}

	total := HeaderSize + int(length)
	if len(buf) < total {
		return Frame{}, 0, ErrNeedMoreData
	}

	return Frame{Code: code, Body: buf[HeaderSize:total]}, total, nil
}

// FrameSize returns the total wire size of a frame with the given body length.
func FrameSize(bodyLen int) int {
	return HeaderSize + bodyLen
}
