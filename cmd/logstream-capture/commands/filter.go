package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/logstream-protocol/logstream-go/pkg/capture"
)

// FilterOptions specifies criteria for the filter command.
type FilterOptions struct {
	Output    string
	ConnID    string
	Kind      string
	Direction string
	TimeStart string
	TimeEnd   string
}

// RunFilter reads the capture file, drops records failing the criteria
// and writes the remainder to a new capture file.
func RunFilter(path string, opts FilterOptions) error {
	var filter ViewFilter
	filter.ConnID = opts.ConnID

	if opts.Kind != "" {
		k, err := ParseKindFlag(opts.Kind)
		if err != nil {
			return err
		}
		filter.Kind = &k
	}
	if opts.Direction != "" {
		d, err := ParseDirectionFlag(opts.Direction)
		if err != nil {
			return err
		}
		filter.Direction = &d
	}

	var start, end time.Time
	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return fmt.Errorf("invalid time-start: %w", err)
		}
		start = t
	}
	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return fmt.Errorf("invalid time-end: %w", err)
		}
		end = t
	}

	reader, err := capture.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	out, err := capture.NewFileRecorder(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	kept, total := 0, 0
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		total++

		if !filter.matches(rec) {
			continue
		}
		if !start.IsZero() && rec.Time.Before(start) {
			continue
		}
		if !end.IsZero() && rec.Time.After(end) {
			continue
		}

		out.Record(rec)
		kept++
	}

	fmt.Printf("Kept %d of %d records -> %s\n", kept, total, opts.Output)
	return nil
}
