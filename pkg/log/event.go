package log

import "time"

// Event is one log entry as applications emit it and viewers render it.
// JSON encoding matches the logstream event frame body.
type Event struct {
	// Seq is the client-assigned sequence number, monotonic per
	// connection.
	Seq uint64 `json:"seq,omitempty"`

	// Time is when the event was produced (nanosecond precision).
	Time time.Time `json:"time"`

	// Level is the severity.
	Level Level `json:"level"`

	// Tag groups related events (subsystem, component).
	Tag string `json:"tag,omitempty"`

	// Message is the log text.
	Message string `json:"msg"`

	// Source location, when known.
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Function string `json:"function,omitempty"`

	// ThreadID identifies the emitting goroutine or thread.
	ThreadID string `json:"threadId,omitempty"`

	// Fields carries structured context.
	Fields map[string]any `json:"fields,omitempty"`
}

// Level is the event severity. Lower values are more severe.
type Level uint8

const (
	// LevelError indicates a failure.
	LevelError Level = 0

	// LevelWarning indicates a recoverable anomaly.
	LevelWarning Level = 1

	// LevelInfo indicates normal operation.
	LevelInfo Level = 2

	// LevelDebug indicates diagnostic detail.
	LevelDebug Level = 3

	// LevelVerbose indicates high-volume tracing.
	LevelVerbose Level = 4
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARNING"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelVerbose:
		return "VERBOSE"
	default:
		return "UNKNOWN"
	}
}
