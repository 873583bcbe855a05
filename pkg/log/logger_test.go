package log

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// recordingLogger collects events for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(Event{Message: "discarded"}) // must not panic
}

func TestMultiLoggerFanOut(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}

	multi := NewMultiLogger(a, b)
	multi.Log(Event{Message: "one"})
	multi.Log(Event{Message: "two"})

	if a.count() != 2 || b.count() != 2 {
		t.Errorf("fan-out counts = %d, %d; want 2, 2", a.count(), b.count())
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	adapter.Log(Event{
		Level:   LevelWarning,
		Tag:     "net",
		Message: "link flap",
		Fields:  map[string]any{"iface": "eth0"},
	})

	out := buf.String()
	for _, want := range []string{"level=WARN", "link flap", "tag=net", "iface=eth0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}
