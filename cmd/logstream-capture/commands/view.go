// Package commands implements the logstream-capture CLI commands.
package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/logstream-protocol/logstream-go/pkg/capture"
	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// ViewFilter specifies criteria for filtering records in the view command.
type ViewFilter struct {
	Kind      *capture.Kind
	Direction *capture.Direction
	ConnID    string
}

// matches reports whether the record passes the filter.
func (f ViewFilter) matches(rec capture.Record) bool {
	if f.Kind != nil && rec.Kind != *f.Kind {
		return false
	}
	if f.Direction != nil && rec.Direction != *f.Direction {
		return false
	}
	if f.ConnID != "" && !strings.HasPrefix(rec.ConnID, f.ConnID) {
		return false
	}
	return true
}

// formatRecord writes a human-readable representation of the record to w.
func formatRecord(w io.Writer, rec capture.Record) {
	// Header line: timestamp [conn:id] DIRECTION KIND
	ts := rec.Time.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(rec.ConnID)

	switch rec.Kind {
	case capture.KindFrame:
		fmt.Fprintf(w, "%s [conn:%s] %-3s %s\n", ts, connID, rec.Direction.String(), rec.Kind.String())
	default:
		fmt.Fprintf(w, "%s [conn:%s] %s\n", ts, connID, rec.Kind.String())
	}

	switch {
	case rec.Frame != nil:
		formatFrameDetails(w, rec.Frame)
	case rec.State != nil:
		formatStateDetails(w, rec.State)
	case rec.Error != nil:
		formatErrorDetails(w, rec.Error)
	}

	fmt.Fprintln(w) // Blank line between records
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatFrameDetails writes frame-specific details.
func formatFrameDetails(w io.Writer, frame *capture.FrameRecord) {
	fmt.Fprintf(w, "  Packet: %s\n", wire.PacketCode(frame.Code).String())
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		// Frame bodies are JSON; show them as text when printable,
		// hex otherwise.
		if isPrintable(frame.Data) {
			fmt.Fprintf(w, "  Body: %s", frame.Data)
		} else {
			fmt.Fprintf(w, "  Body: %s", hex.EncodeToString(frame.Data))
		}
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatStateDetails writes state transition details.
func formatStateDetails(w io.Writer, st *capture.StateRecord) {
	if st.Old != "" {
		fmt.Fprintf(w, "  %s -> %s\n", st.Old, st.New)
	} else {
		fmt.Fprintf(w, "  -> %s\n", st.New)
	}
	if st.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", st.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, e *capture.ErrorRecord) {
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

func isPrintable(data []byte) bool {
	for _, b := range data {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}

// ParseKindFlag parses a kind string from a command-line flag (case-insensitive).
func ParseKindFlag(s string) (capture.Kind, error) {
	switch strings.ToLower(s) {
	case "frame":
		return capture.KindFrame, nil
	case "state":
		return capture.KindState, nil
	case "error":
		return capture.KindError, nil
	default:
		return 0, fmt.Errorf("invalid kind: %s (must be frame, state, or error)", s)
	}
}

// ParseDirectionFlag parses a direction string from a command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (capture.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return capture.DirectionIn, nil
	case "out":
		return capture.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := capture.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}

		if !filter.matches(rec) {
			continue
		}

		formatRecord(output, rec)
	}

	return nil
}
