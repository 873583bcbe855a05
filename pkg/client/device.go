package client

import (
	"os"
	"runtime"

	"github.com/google/uuid"

	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// DeviceDescriptor supplies the identity sent in the client hello.
// Implementations for specific platforms can report richer device
// metadata; the core never branches on platform.
type DeviceDescriptor interface {
	// Describe returns the identity to advertise. Called once per
	// connection attempt.
	Describe() wire.HelloIdentity
}

// DeviceDescriptorFunc adapts a function to the DeviceDescriptor
// interface.
type DeviceDescriptorFunc func() wire.HelloIdentity

// Describe calls f.
func (f DeviceDescriptorFunc) Describe() wire.HelloIdentity {
	return f()
}

// HostDescriptor describes the local host process: hostname as device
// name, GOOS/GOARCH as platform, and a client ID that is stable for the
// descriptor's lifetime.
type HostDescriptor struct {
	clientID      string
	clientName    string
	clientVersion string
}

// NewHostDescriptor creates a host descriptor for the named
// application.
func NewHostDescriptor(clientName, clientVersion string) *HostDescriptor {
	return &HostDescriptor{
		clientID:      uuid.New().String(),
		clientName:    clientName,
		clientVersion: clientVersion,
	}
}

// Describe returns the host identity.
func (d *HostDescriptor) Describe() wire.HelloIdentity {
	hostname, _ := os.Hostname()
	return wire.HelloIdentity{
		ClientID:      d.clientID,
		ClientName:    d.clientName,
		ClientVersion: d.clientVersion,
		OSName:        runtime.GOOS,
		DeviceName:    hostname,
		DeviceModel:   runtime.GOARCH,
	}
}

// Compile-time interface satisfaction checks.
var (
	_ DeviceDescriptor = (*HostDescriptor)(nil)
	_ DeviceDescriptor = (DeviceDescriptorFunc)(nil)
)
