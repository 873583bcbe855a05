package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEncodingFailed indicates a packet payload could not be serialized.
// It is surfaced to the sender; the connection is unaffected.
var ErrEncodingFailed = errors.New("payload encoding failed")

// Packet is a typed, JSON-bodied control message layered on a frame.
// The set of variants is closed: HelloPacket, EventPacket, PingPacket,
// PauseResumePacket and EmptyPacket.
type Packet interface {
	// Code returns the fixed packet code for this variant.
	Code() PacketCode

	// EncodeBody returns the JSON frame body.
	EncodeBody() ([]byte, error)
}

// HelloIdentity is the device/app identity carried by a client hello.
// It is captured once at construction and static for the process lifetime.
type HelloIdentity struct {
	ClientID      string `json:"clientId"`
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion,omitempty"`
	OSName        string `json:"osName,omitempty"`
	OSVersion     string `json:"osVersion,omitempty"`
	DeviceName    string `json:"deviceName,omitempty"`
	DeviceModel   string `json:"deviceModel,omitempty"`
}

// HelloPacket is the client handshake. It is sent exactly once per
// connection, before any event packets; receiving it marks the peer as
// fully established on the server side.
type HelloPacket struct {
	Identity HelloIdentity
}

// Code returns CodeClientHello.
func (HelloPacket) Code() PacketCode { return CodeClientHello }

// EncodeBody returns the JSON-encoded identity.
func (p HelloPacket) EncodeBody() ([]byte, error) {
	body, err := json.Marshal(p.Identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return body, nil
}

// DecodeHello decodes a client hello body.
func DecodeHello(body []byte) (HelloPacket, error) {
	var id HelloIdentity
	if err := json.Unmarshal(body, &id); err != nil {
		return HelloPacket{}, fmt.Errorf("decode hello: %w", err)
	}
	return HelloPacket{Identity: id}, nil
}

// EventPacket carries one serialized log event. The event value is
// opaque to the protocol: it is serialized verbatim into the frame body
// and never inspected.
type EventPacket struct {
	// Network selects CodeLogNetworkMessage instead of CodeLogMessage.
	Network bool

	// Raw is the pre-serialized event body. When nil, Payload is
	// marshaled at encode time.
	Raw json.RawMessage

	// Payload is the event value to serialize when Raw is nil.
	Payload any
}

// Code returns CodeLogMessage or CodeLogNetworkMessage.
func (p EventPacket) Code() PacketCode {
	if p.Network {
		return CodeLogNetworkMessage
	}
	return CodeLogMessage
}

// EncodeBody returns the serialized event.
func (p EventPacket) EncodeBody() ([]byte, error) {
	if p.Raw != nil {
		return p.Raw, nil
	}
	body, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailed, err)
	}
	return body, nil
}

// PingPacket is a liveness probe with an empty body.
type PingPacket struct{}

// Code returns CodePing.
func (PingPacket) Code() PacketCode { return CodePing }

// EncodeBody returns an empty body.
func (PingPacket) EncodeBody() ([]byte, error) { return nil, nil }

// PauseResumePacket is the server's flow-control signal.
type PauseResumePacket struct {
	// Resume selects CodeResume instead of CodePause.
	Resume bool
}

// Code returns CodePause or CodeResume.
func (p PauseResumePacket) Code() PacketCode {
	if p.Resume {
		return CodeResume
	}
	return CodePause
}

// EncodeBody returns an empty body.
func (PauseResumePacket) EncodeBody() ([]byte, error) { return nil, nil }

// EmptyPacket is a bodiless packet with an explicit code. The server
// hello is an EmptyPacket with CodeServerHello.
type EmptyPacket struct {
	PacketCode PacketCode
}

// Code returns the packet's code.
func (p EmptyPacket) Code() PacketCode { return p.PacketCode }

// EncodeBody returns an empty body.
func (EmptyPacket) EncodeBody() ([]byte, error) { return nil, nil }

// EncodePacket serializes a packet body and wraps it in a frame.
// A body encoding failure is reported as ErrEncodingFailed; an oversized
// body as ErrBodyTooLarge. Neither affects the connection.
func EncodePacket(p Packet) ([]byte, error) {
	body, err := p.EncodeBody()
	if err != nil {
		return nil, err
	}
	return EncodeFrame(p.Code(), body)
}

// DecodePacket decodes a frame into its typed packet variant.
// The returned packet does not alias the frame body.
func DecodePacket(f Frame) (Packet, error) {
	switch f.Code {
	case CodeClientHello:
		hello, err := DecodeHello(f.Body)
		if err != nil {
			return nil, err
		}
		return hello, nil

	case CodeServerHello:
		return EmptyPacket{PacketCode: CodeServerHello}, nil

	case CodePause:
		return PauseResumePacket{}, nil

	case CodeResume:
		return PauseResumePacket{Resume: true}, nil

	case CodeLogMessage, CodeLogNetworkMessage:
		raw := make(json.RawMessage, len(f.Body))
		copy(raw, f.Body)
		return EventPacket{Network: f.Code == CodeLogNetworkMessage, Raw: raw}, nil

	case CodePing:
		return PingPacket{}, nil

	default:
		return nil, fmt.Errorf("%w: code 0x%02X", ErrMalformedFrame, uint8(f.Code))
	}
}
