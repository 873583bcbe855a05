package capture

import (
	"time"

	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// MaxRecordBodySize is the largest frame body stored in a record.
// Larger bodies are truncated to bound capture file growth.
const MaxRecordBodySize = 4096

// Direction indicates message flow relative to the local endpoint.
type Direction uint8

const (
	// DirectionIn is an inbound frame.
	DirectionIn Direction = 0
	// DirectionOut is an outbound frame.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies a record.
type Kind uint8

const (
	// KindFrame is a frame sent or received.
	KindFrame Kind = 0
	// KindState is a connection state transition.
	KindState Kind = 1
	// KindError is an error surfaced by the connection.
	KindError Kind = 2
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "FRAME"
	case KindState:
		return "STATE"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Record is one captured protocol event.
type Record struct {
	// Time when the event occurred.
	Time time.Time `cbor:"1,keyasint"`

	// ConnID identifies the connection (UUID).
	ConnID string `cbor:"2,keyasint"`

	// Direction of flow, for frame records.
	Direction Direction `cbor:"3,keyasint,omitempty"`

	// Kind of record.
	Kind Kind `cbor:"4,keyasint"`

	// RemoteAddr is the peer address when known.
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// Exactly one of these is set, matching Kind.
	Frame *FrameRecord `cbor:"6,keyasint,omitempty"`
	State *StateRecord `cbor:"7,keyasint,omitempty"`
	Error *ErrorRecord `cbor:"8,keyasint,omitempty"`
}

// FrameRecord captures one wire frame.
type FrameRecord struct {
	// Code is the packet code byte.
	Code uint8 `cbor:"1,keyasint"`

	// Size is the full frame size on the wire, header included.
	Size int `cbor:"2,keyasint"`

	// Data is the frame body, possibly truncated.
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates Data was cut at MaxRecordBodySize.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// StateRecord captures a connection lifecycle transition.
type StateRecord struct {
	Old    string `cbor:"1,keyasint,omitempty"`
	New    string `cbor:"2,keyasint"`
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorRecord captures an error surfaced by the connection.
type ErrorRecord struct {
	Message string `cbor:"1,keyasint"`
	Context string `cbor:"2,keyasint,omitempty"`
}

// NewFrameRecord builds a frame record, truncating oversized bodies.
// The body is copied; the caller's buffer may be reused immediately.
func NewFrameRecord(connID string, dir Direction, code uint8, body []byte) Record {
	data := body
	truncated := false
	if len(data) > MaxRecordBodySize {
		data = data[:MaxRecordBodySize]
		truncated = true
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	return Record{
		Time:      time.Now(),
		ConnID:    connID,
		Direction: dir,
		Kind:      KindFrame,
		Frame: &FrameRecord{
			Code:      code,
			Size:      wire.FrameSize(len(body)),
			Data:      stored,
			Truncated: truncated,
		},
	}
}
