// Package discovery implements mDNS advertising and browsing for
// logstream viewers. A viewer advertises one `_logstream._tcp` service
// on the local domain; clients browse for viewers and connect without
// configured addresses.
//
// TXT records carry the protocol version and viewer identity, so a
// browser can filter incompatible or unwanted viewers before dialing.
package discovery
