package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
)

func TestOpenReaderRoundTripsMergedSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.plaso")

	s, err := NewSessionStore(path, [16]byte{7}, CodecZstd)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}

	eventData := []eventmodel.EventData{
		{Sequence: 1, DataType: "fs:stat", ParserName: "filestat", Attributes: map[string]interface{}{"path": "/a"}},
	}
	events := []eventmodel.Event{
		{
			Sequence:             1,
			Timestamp:            eventmodel.DateTimeValue{Granularity: eventmodel.GranularitySeconds, Raw: 1000},
			TimestampDescription: eventmodel.TimestampLastModification,
			EventDataRef:         eventmodel.Ref{Type: eventmodel.ContainerEventData, Sequence: 1},
		},
	}
	warnings := []eventmodel.Warning{
		{Sequence: 1, PathSpec: "OS|location=/a", ParserName: "filestat", Message: "boom", Code: "open_failed"},
	}

	if err := s.MergeTask("/a", "streamhash", eventData, events, warnings); err != nil {
		t.Fatalf("MergeTask: %v", err)
	}
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}

	if got := len(r.Events()); got != 1 {
		t.Fatalf("expected 1 event, got %d", got)
	}
	if got := len(r.EventData()); got != 1 {
		t.Fatalf("expected 1 event-data, got %d", got)
	}
	if got := len(r.Warnings()); got != 1 {
		t.Fatalf("expected 1 warning, got %d", got)
	}

	data, ok := r.EventDataBySequence(1)
	if !ok || data.DataType != "fs:stat" {
		t.Fatalf("expected to resolve event-data by sequence, got %+v ok=%v", data, ok)
	}

	matched := r.FilterEvents(EventFilter{DataType: "fs:stat"})
	if len(matched) != 1 {
		t.Fatalf("expected 1 matched event by data type, got %d", len(matched))
	}
	none := r.FilterEvents(EventFilter{DataType: "windows:registry"})
	if len(none) != 0 {
		t.Fatalf("expected 0 matched events for unrelated data type, got %d", len(none))
	}
}

func TestOpenReaderHandlesHeaderOnlyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.plaso")
	s, err := NewSessionStore(path, [16]byte{1}, CodecRaw)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	s.Close()

	if _, err := OpenReader(path); err != nil {
		t.Fatalf("expected header-only file to read back cleanly, got %v", err)
	}
}

func TestOpenReaderRejectsTruncatedHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.plaso")
	if err := os.WriteFile(path, []byte{0, 1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenReader(path); err == nil {
		t.Fatalf("expected error opening a file shorter than the header")
	}
}
