package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logstream-protocol/logstream-go/pkg/capture"
)

// writeTestCapture creates a capture file with a small mixed session.
func writeTestCapture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "session.lscap")
	rec, err := capture.NewFileRecorder(path)
	require.NoError(t, err)

	rec.Record(capture.Record{
		Time:   time.Now(),
		ConnID: "aaaaaaaa-conn",
		Kind:   capture.KindState,
		State:  &capture.StateRecord{Old: "IDLE", New: "CONNECTING"},
	})
	rec.Record(capture.NewFrameRecord("aaaaaaaa-conn", capture.DirectionOut, 0, []byte(`{"clientId":"x"}`)))
	rec.Record(capture.NewFrameRecord("aaaaaaaa-conn", capture.DirectionIn, 1, nil))
	rec.Record(capture.NewFrameRecord("aaaaaaaa-conn", capture.DirectionOut, 4, []byte(`{"msg":"hello"}`)))
	rec.Record(capture.NewFrameRecord("bbbbbbbb-conn", capture.DirectionOut, 6, nil))
	rec.Record(capture.Record{
		Time:   time.Now(),
		ConnID: "bbbbbbbb-conn",
		Kind:   capture.KindError,
		Error:  &capture.ErrorRecord{Message: "transport error"},
	})

	require.NoError(t, rec.Close())
	return path
}

func TestRunView(t *testing.T) {
	path := writeTestCapture(t)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, ViewFilter{}, &buf))

	out := buf.String()
	assert.Contains(t, out, "CLIENT_HELLO")
	assert.Contains(t, out, "LOG_MESSAGE")
	assert.Contains(t, out, `{"msg":"hello"}`)
	assert.Contains(t, out, "IDLE -> CONNECTING")
	assert.Contains(t, out, "transport error")
}

func TestRunViewKindFilter(t *testing.T) {
	path := writeTestCapture(t)

	kind := capture.KindError
	var buf bytes.Buffer
	require.NoError(t, RunView(path, ViewFilter{Kind: &kind}, &buf))

	out := buf.String()
	assert.Contains(t, out, "transport error")
	assert.NotContains(t, out, "CLIENT_HELLO")
}

func TestRunViewConnFilter(t *testing.T) {
	path := writeTestCapture(t)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, ViewFilter{ConnID: "bbbbbbbb"}, &buf))

	out := buf.String()
	assert.Contains(t, out, "PING")
	assert.NotContains(t, out, "LOG_MESSAGE")
}

func TestRunExportJSONL(t *testing.T) {
	path := writeTestCapture(t)
	out := filepath.Join(t.TempDir(), "out.jsonl")

	require.NoError(t, RunExport(path, "jsonl", out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 6)
	assert.Contains(t, lines[1], "aaaaaaaa-conn")
}

func TestRunExportCSV(t *testing.T) {
	path := writeTestCapture(t)
	out := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, RunExport(path, "csv", out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	data := string(raw)
	lines := strings.Split(strings.TrimSpace(data), "\n")
	require.Len(t, lines, 7) // header + 6 records
	assert.Equal(t, "timestamp,connection_id,direction,kind,packet,size,detail", lines[0])
	assert.Contains(t, data, "CLIENT_HELLO")
}

func TestRunExportUnknownFormat(t *testing.T) {
	path := writeTestCapture(t)
	assert.Error(t, RunExport(path, "xml", ""))
}

func TestRunFilter(t *testing.T) {
	path := writeTestCapture(t)
	out := filepath.Join(t.TempDir(), "filtered.lscap")

	require.NoError(t, RunFilter(path, FilterOptions{
		Output: out,
		ConnID: "aaaaaaaa",
		Kind:   "frame",
	}))

	reader, err := capture.NewReader(out)
	require.NoError(t, err)
	defer reader.Close()

	records, err := reader.All()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, capture.KindFrame, rec.Kind)
		assert.Equal(t, "aaaaaaaa-conn", rec.ConnID)
	}
}

func TestRunStats(t *testing.T) {
	path := writeTestCapture(t)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))

	out := buf.String()
	assert.Contains(t, out, "Total Records: 6")
	assert.Contains(t, out, "FRAME:")
	assert.Contains(t, out, "Connections: 2")
	assert.Contains(t, out, "Errors: 1")
	assert.Contains(t, out, "CLIENT_HELLO:")
}

func TestParseFlags(t *testing.T) {
	k, err := ParseKindFlag("Frame")
	require.NoError(t, err)
	assert.Equal(t, capture.KindFrame, k)
	_, err = ParseKindFlag("bogus")
	assert.Error(t, err)

	d, err := ParseDirectionFlag("OUT")
	require.NoError(t, err)
	assert.Equal(t, capture.DirectionOut, d)
	_, err = ParseDirectionFlag("sideways")
	assert.Error(t, err)
}
