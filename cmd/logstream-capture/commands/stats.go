package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/logstream-protocol/logstream-go/pkg/capture"
	"github.com/logstream-protocol/logstream-go/pkg/wire"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalRecords       int
	RecordsByKind      map[capture.Kind]int
	RecordsByDirection map[capture.Direction]int
	FramesByPacket     map[wire.PacketCode]int
	Connections        map[string]*ConnectionStats
	Errors             int
	FrameBytes         int
	TimeRange          struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Records   int
	Frames    int
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := capture.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		RecordsByKind:      make(map[capture.Kind]int),
		RecordsByDirection: make(map[capture.Direction]int),
		FramesByPacket:     make(map[wire.PacketCode]int),
		Connections:        make(map[string]*ConnectionStats),
	}

	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}

		stats.TotalRecords++
		stats.RecordsByKind[rec.Kind]++

		if stats.TimeRange.Start.IsZero() || rec.Time.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = rec.Time
		}
		if rec.Time.After(stats.TimeRange.End) {
			stats.TimeRange.End = rec.Time
		}

		conn, ok := stats.Connections[rec.ConnID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: rec.Time,
				LastSeen:  rec.Time,
			}
			stats.Connections[rec.ConnID] = conn
		}
		conn.Records++
		if rec.Time.After(conn.LastSeen) {
			conn.LastSeen = rec.Time
		}

		if rec.Frame != nil {
			stats.RecordsByDirection[rec.Direction]++
			stats.FramesByPacket[wire.PacketCode(rec.Frame.Code)]++
			stats.FrameBytes += rec.Frame.Size
			conn.Frames++
		}
		if rec.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Logstream Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalRecords > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Records: %d\n", stats.TotalRecords)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Records by Kind:")
	for _, kind := range []capture.Kind{capture.KindFrame, capture.KindState, capture.KindError} {
		if count := stats.RecordsByKind[kind]; count > 0 {
			fmt.Fprintf(w, "  %-8s %d\n", kind.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if stats.RecordsByKind[capture.KindFrame] > 0 {
		fmt.Fprintln(w, "Frames by Direction:")
		for _, dir := range []capture.Direction{capture.DirectionIn, capture.DirectionOut} {
			if count := stats.RecordsByDirection[dir]; count > 0 {
				fmt.Fprintf(w, "  %-8s %d\n", dir.String()+":", count)
			}
		}
		fmt.Fprintln(w)

		fmt.Fprintln(w, "Frames by Packet:")
		codes := make([]wire.PacketCode, 0, len(stats.FramesByPacket))
		for code := range stats.FramesByPacket {
			codes = append(codes, code)
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
		for _, code := range codes {
			fmt.Fprintf(w, "  %-20s %d\n", code.String()+":", stats.FramesByPacket[code])
		}
		fmt.Fprintln(w)

		fmt.Fprintf(w, "Frame Bytes: %d\n", stats.FrameBytes)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			shortID := c.id
			if len(shortID) > 8 {
				shortID = shortID[:8]
			}
			fmt.Fprintf(w, "  [%s] %d records (%d frames), duration %s\n",
				shortID, c.stats.Records, c.stats.Frames, duration)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
