package transport

import (
	"errors"

	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// Reassembler converts a sequence of arbitrarily-chunked byte deliveries
// into a sequence of complete frames, preserving order and never dropping
// or duplicating bytes.
//
// Emitted frames are valid only for the duration of the emit callback;
// consumers that retain a frame past the callback must copy its body
// (wire.DecodePacket already copies).
//
// Reassembler is not safe for concurrent use; a Connection drives it from
// a single receive goroutine.
type Reassembler struct {
	emit    func(wire.Frame)
	buf     []byte
	maxBody int
}

// NewReassembler creates a reassembler that delivers complete frames to
// emit, enforcing wire.DefaultMaxBodySize.
func NewReassembler(emit func(wire.Frame)) *Reassembler {
	return NewReassemblerWithMaxSize(emit, wire.DefaultMaxBodySize)
}

// NewReassemblerWithMaxSize creates a reassembler with a custom body
// size limit. A header claiming more than maxBody fails the Push that
// completes the header, before any body bytes accumulate.
func NewReassemblerWithMaxSize(emit func(wire.Frame), maxBody int) *Reassembler {
	return &Reassembler{emit: emit, maxBody: maxBody}
}

// Push processes one chunk, emitting every frame it completes.
//
// An empty chunk is a no-op. A chunk holding several complete frames plus
// a partial tail emits all complete frames and retains only the tail.
// After any successful Push the internal buffer holds exactly the bytes
// of a frame not yet fully received.
//
// A wire.ErrMalformedFrame or wire.ErrBodyTooLarge result stops
// processing at the offending frame; already-complete frames from the
// same chunk have been emitted. Whether the stream can be resynchronized
// after that is undefined, so the default policy (Connection) closes. A
// caller with its own framing knowledge may call Reset and continue at a
// known frame boundary.
func (r *Reassembler) Push(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	// Fast path: with nothing buffered, decode straight from the chunk
	// and only copy the unconsumed tail.
	if len(r.buf) == 0 {
		for {
			frame, consumed, err := wire.DecodeFrameWithMaxSize(chunk, r.maxBody)
			if err != nil {
				if errors.Is(err, wire.ErrNeedMoreData) {
					r.buf = append(r.buf, chunk...)
					return nil
				}
				r.buf = append(r.buf, chunk...)
				return err
			}
			r.emit(frame)
			chunk = chunk[consumed:]
			if len(chunk) == 0 {
				return nil
			}
		}
	}

	r.buf = append(r.buf, chunk...)
	for {
		frame, consumed, err := wire.DecodeFrameWithMaxSize(r.buf, r.maxBody)
		if err != nil {
			if errors.Is(err, wire.ErrNeedMoreData) {
				return nil
			}
			return err
		}
		r.emit(frame)

		// Trim exactly the consumed bytes, reusing the backing array.
		n := copy(r.buf, r.buf[consumed:])
		r.buf = r.buf[:n]
		if n == 0 {
			return nil
		}
	}
}

// Buffered returns the number of bytes held for a frame not yet complete.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

// Reset discards all buffered bytes. Used to resynchronize at a known
// frame boundary after a malformed frame.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}
