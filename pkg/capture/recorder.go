package capture

import (
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Recorder receives capture records. Implementations must be safe for
// concurrent use; recording must be cheap and must never disrupt the
// connection that produced the record.
type Recorder interface {
	Record(rec Record)
}

// NoopRecorder discards all records. Usable as a zero value.
type NoopRecorder struct{}

// Record discards the record.
func (NoopRecorder) Record(Record) {}

// FileRecorder writes records to a capture file in CBOR format.
// It is safe for concurrent use from multiple goroutines.
type FileRecorder struct {
	w       io.WriteCloser
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileRecorder creates a recorder appending to the file at path,
// creating it with mode 0644 when absent.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{
		w:       f,
		encoder: NewEncoder(f),
	}, nil
}

// NewRotatingRecorder creates a recorder whose capture file rotates at
// maxSizeMB megabytes, keeping maxBackups rotated files.
func NewRotatingRecorder(path string, maxSizeMB, maxBackups int) *FileRecorder {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	return &FileRecorder{
		w:       w,
		encoder: NewEncoder(w),
	}
}

// Record writes one record. Encoding errors are ignored; capture must
// not disrupt the application.
func (r *FileRecorder) Record(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	_ = r.encoder.Encode(rec)
}

// Close closes the capture file. Safe to call multiple times; records
// arriving after Close are silently dropped.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.w.Close()
}

// Compile-time interface satisfaction checks.
var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*FileRecorder)(nil)
)
