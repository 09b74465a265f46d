package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

func TestTaskStoreAccumulatesAndSyncs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.store")
	ts, err := NewTaskStore(path, CodecZstd)
	if err != nil {
		t.Fatalf("NewTaskStore: %v", err)
	}
	defer ts.Close()

	ts.WriteEventData(eventmodel.EventData{Sequence: 1, DataType: "windows:lnk:link", ParserName: "lnk"})
	ts.WriteEvent(eventmodel.Event{Sequence: 1, EventDataRef: eventmodel.Ref{Type: eventmodel.ContainerEventData, Sequence: 1}})
	ts.WriteWarning(eventmodel.Warning{Sequence: 1, ParserName: "lnk", Message: "truncated header"})

	child := pathspec.New(pathspec.TypeOS, map[string]string{"location": "/x"}, nil)
	ts.EmitChildPathSpec(child)

	eventData, events, warnings := ts.Contents()
	if len(eventData) != 1 || len(events) != 1 || len(warnings) != 1 {
		t.Fatalf("unexpected content counts: %d %d %d", len(eventData), len(events), len(warnings))
	}
	if len(ts.Children()) != 1 {
		t.Fatalf("expected 1 child path-spec, got %d", len(ts.Children()))
	}
	if err := ts.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestTaskStoreDiscardRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.store")
	ts, err := NewTaskStore(path, CodecRaw)
	if err != nil {
		t.Fatalf("NewTaskStore: %v", err)
	}
	ts.WriteWarning(eventmodel.Warning{Sequence: 1, Message: "abandoned"})
	if err := ts.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected task store file to be removed, stat err=%v", err)
	}
}
