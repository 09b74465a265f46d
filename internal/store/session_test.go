package store

import (
	"path/filepath"
	"testing"

	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
)

func TestMergeTaskRewritesSequencesAndOrders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.store")
	s, err := NewSessionStore(path, [16]byte{9}, CodecRaw)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	defer s.Close()

	eventData := []eventmodel.EventData{{Sequence: 1, DataType: "syslog:line", ParserName: "syslog"}}
	events := []eventmodel.Event{{Sequence: 1, EventDataRef: eventmodel.Ref{Type: eventmodel.ContainerEventData, Sequence: 1}}}

	if err := s.MergeTask("/var/log/syslog", "hash-a", eventData, events, nil); err != nil {
		t.Fatalf("MergeTask: %v", err)
	}

	counters := s.Counters()
	if counters.EventsProduced != 1 {
		t.Fatalf("expected 1 event produced, got %d", counters.EventsProduced)
	}
	if counters.EventsByDataType["syslog:line"] != 1 {
		t.Fatalf("expected 1 syslog:line event, got %d", counters.EventsByDataType["syslog:line"])
	}
}

func TestMergeTaskDropsVSSDuplicateSiblingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.store")
	s, err := NewSessionStore(path, [16]byte{9}, CodecRaw)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	defer s.Close()

	eventData := []eventmodel.EventData{{Sequence: 1, DataType: "windows:registry:key_value", ParserName: "winreg"}}
	events := []eventmodel.Event{{Sequence: 1, EventDataRef: eventmodel.Ref{Type: eventmodel.ContainerEventData, Sequence: 1}}}

	// Same path-inside-filesystem, same stream hash, same parser: as if
	// the identical hive was recovered from two VSS snapshots.
	if err := s.MergeTask("/Windows/System32/config/SYSTEM", "hash-b", eventData, events, nil); err != nil {
		t.Fatalf("first MergeTask: %v", err)
	}
	if err := s.MergeTask("/Windows/System32/config/SYSTEM", "hash-b", eventData, events, nil); err != nil {
		t.Fatalf("second MergeTask: %v", err)
	}

	counters := s.Counters()
	if counters.EventsProduced != 1 {
		t.Fatalf("expected 1 event produced after dedup, got %d", counters.EventsProduced)
	}
	if counters.VSSDedupDropped != 1 {
		t.Fatalf("expected 1 vss_dedup_dropped, got %d", counters.VSSDedupDropped)
	}
}

func TestMergeTaskDropsEventWhenOwningEventDataDeduped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.store")
	s, err := NewSessionStore(path, [16]byte{9}, CodecRaw)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	defer s.Close()

	eventData := []eventmodel.EventData{{Sequence: 5, DataType: "windows:registry:key_value", ParserName: "winreg"}}
	events := []eventmodel.Event{{Sequence: 5, EventDataRef: eventmodel.Ref{Type: eventmodel.ContainerEventData, Sequence: 5}}}

	if err := s.MergeTask("/Windows/System32/config/SYSTEM", "hash-c", eventData, events, nil); err != nil {
		t.Fatalf("first MergeTask: %v", err)
	}
	if err := s.MergeTask("/Windows/System32/config/SYSTEM", "hash-c", eventData, events, nil); err != nil {
		t.Fatalf("second MergeTask: %v", err)
	}

	if got := s.Counters().EventsProduced; got != 1 {
		t.Fatalf("expected the sibling event to be dropped along with its event-data, got %d events", got)
	}
}
