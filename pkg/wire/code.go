package wire

// PacketCode identifies the control packet variant carried by a frame.
type PacketCode uint8

const (
	// CodeClientHello is sent by a client once per connection, before any
	// other packet, carrying device/app identity.
	CodeClientHello PacketCode = 0

	// CodeServerHello is the server's handshake acknowledgment.
	CodeServerHello PacketCode = 1

	// CodePause asks the client to stop streaming log events.
	CodePause PacketCode = 2

	// CodeResume asks the client to resume streaming log events.
	CodeResume PacketCode = 3

	// CodeLogMessage carries one serialized log event.
	CodeLogMessage PacketCode = 4

	// CodeLogNetworkMessage carries one serialized network log event.
	CodeLogNetworkMessage PacketCode = 5

	// CodePing is a liveness probe. It is not acknowledged.
	CodePing PacketCode = 6
)

// maxCode is the highest assigned packet code.
const maxCode = CodePing

// Valid reports whether the code is an assigned packet code.
func (c PacketCode) Valid() bool {
	return c <= maxCode
}

// String returns the packet code name.
func (c PacketCode) String() string {
	switch c {
	case CodeClientHello:
		return "CLIENT_HELLO"
	case CodeServerHello:
		return "SERVER_HELLO"
	case CodePause:
		return "PAUSE"
	case CodeResume:
		return "RESUME"
	case CodeLogMessage:
		return "LOG_MESSAGE"
	case CodeLogNetworkMessage:
		return "LOG_NETWORK_MESSAGE"
	case CodePing:
		return "PING"
	default:
		return "UNKNOWN"
	}
}
