// Package log defines the application-facing log event model for
// logstream.
//
// This package defines the Logger interface and the Event type that
// applications emit and viewers render. Events serialize to JSON, the
// body format of logstream event frames; the transport layers treat
// that JSON as opaque.
//
// # Basic Usage
//
// Applications emit events through a Logger implementation:
//
//	// Stream to a viewer over the network
//	logger, _ := client.New(client.Config{Address: "studio.local:7788"})
//
//	// For development: mirror events to console via slog
//	logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    logger,
//	)
package log
