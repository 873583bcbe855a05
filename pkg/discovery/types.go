package discovery

import (
	"errors"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceType is the mDNS service type advertised by viewers.
	ServiceType = "_logstream._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// ProtocolVersion is the logstream protocol version carried in TXT
	// records.
	ProtocolVersion = 1
)

// TXT record key constants.
const (
	TXTKeyVersion  = "v"    // Protocol version
	TXTKeyName     = "name" // Viewer display name
	TXTKeyViewerID = "id"   // Stable viewer identifier (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the DNS record TTL for advertisements.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
)

// ViewerInfo contains information for advertising a viewer.
type ViewerInfo struct {
	// InstanceName is the mDNS instance name. The viewer name is used
	// when empty.
	InstanceName string

	// Name is the viewer display name (TXT "name").
	Name string

	// ViewerID is an optional stable identifier (TXT "id").
	ViewerID string

	// Version is the protocol version. ProtocolVersion is used when
	// zero.
	Version uint8

	// Port is the viewer's listen port.
	Port uint16

	// Host is the hostname to advertise. Empty uses the OS hostname.
	Host string
}

// ViewerService represents a viewer found via mDNS.
type ViewerService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the hostname (e.g., "studio.local").
	Host string

	// Port is the viewer's listen port.
	Port uint16

	// Addresses contains resolved IP addresses.
	Addresses []string

	// Name is the viewer display name (from TXT "name").
	Name string

	// ViewerID is the optional stable identifier (from TXT "id").
	ViewerID string

	// Version is the protocol version (from TXT "v").
	Version uint8
}
