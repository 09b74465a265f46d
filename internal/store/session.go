package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/log2timeline/plaso-sub000/pkg/errors"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
)

// SessionStore is the single session-wide append-only store every
// completed task merges into, under a serialized merge lock (spec.md
// §4.9). *Grounded on* pkg/persistence/batch_persistence.go's
// batched-append-with-flush shape.
type SessionStore struct {
	mu   sync.Mutex
	file *os.File

	sessionID [16]byte
	codec     Codec

	nextEventDataSeq int64
	nextEventSeq     int64
	nextWarningSeq   int64

	dedup *VSSDedupSet
	// dedupSeen tracks (path-inside-filesystem, stream-hash, parser) for
	// the exact key spec.md §4.9 specifies; MergeTask drops duplicates
	// by this key alone and does not consult dedup.
	dedupSeen map[string]bool

	counters eventmodel.Counters
}

// NewSessionStore creates (or truncates) the session store file and
// writes its header.
func NewSessionStore(path string, sessionID [16]byte, codec Codec) (*SessionStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.StoreWriteError("open_session_store", err)
	}
	if _, err := f.Write(EncodeHeader(Header{FormatVersion: FormatVersion, SessionID: sessionID})); err != nil {
		return nil, errors.StoreWriteError("write_header", err)
	}
	return &SessionStore{
		file:      f,
		sessionID: sessionID,
		codec:     codec,
		dedup:     NewVSSDedupSet(),
		dedupSeen: make(map[string]bool),
		counters:  eventmodel.Counters{EventsByDataType: make(map[string]int64)},
	}, nil
}

// MergeTask merges one completed task's contents into the session
// store under the merge lock, rewriting sequence numbers so
// cross-container Refs stay consistent (spec.md §4.9). pathInFS is the
// path-inside-filesystem key VSS dedup groups siblings by; streamHash
// is the sha256 of the task's event-data-stream content.
func (s *SessionStore) MergeTask(pathInFS, streamHash string, eventData []eventmodel.EventData, events []eventmodel.Event, warnings []eventmodel.Warning) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Rewrite old EventData sequence -> new session-scoped sequence, so
	// Event.EventDataRef stays correct after merge (spec.md §4.9:
	// "references inside the task store are rewritten accordingly").
	seqRewrite := make(map[int64]int64, len(eventData))

	for _, d := range eventData {
		dedupKey := fmt.Sprintf("%s|%s|%s", pathInFS, streamHash, d.ParserName)
		if s.dedupSeen[dedupKey] {
			s.counters.VSSDedupDropped++
			continue
		}
		s.dedupSeen[dedupKey] = true

		s.nextEventDataSeq++
		newSeq := s.nextEventDataSeq
		seqRewrite[d.Sequence] = newSeq
		d.Sequence = newSeq

		if err := s.appendRecord(TypeEventData, d); err != nil {
			return err
		}
		s.counters.EventsByDataType[d.DataType]++
	}

	for _, e := range events {
		newDataSeq, ok := seqRewrite[e.EventDataRef.Sequence]
		if !ok {
			// the owning event-data was dropped by dedup; drop the event too
			continue
		}
		e.EventDataRef.Sequence = newDataSeq
		s.nextEventSeq++
		e.Sequence = s.nextEventSeq
		if err := s.appendRecord(TypeEvent, e); err != nil {
			return err
		}
		s.counters.EventsProduced++
	}

	for _, w := range warnings {
		s.nextWarningSeq++
		w.Sequence = s.nextWarningSeq
		if err := s.appendRecord(TypeWarning, w); err != nil {
			return err
		}
		s.counters.WarningsProduced++
	}

	return nil
}

func (s *SessionStore) appendRecord(typeID TypeID, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.StoreWriteError("marshal_record", err)
	}
	record, err := EncodeRecord(typeID, s.codec, payload)
	if err != nil {
		return errors.StoreWriteError("encode_record", err)
	}
	if _, err := s.file.Write(record); err != nil {
		return errors.StoreWriteError("write_record", err)
	}
	return nil
}

// Counters returns a copy of the running session counters.
func (s *SessionStore) Counters() eventmodel.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counters
	c.EventsByDataType = make(map[string]int64, len(s.counters.EventsByDataType))
	for k, v := range s.counters.EventsByDataType {
		c.EventsByDataType[k] = v
	}
	return c
}

// Sync fsyncs the session store.
func (s *SessionStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		return errors.StoreWriteError("fsync_session_store", err)
	}
	return nil
}

// Close closes the underlying file.
func (s *SessionStore) Close() error {
	return s.file.Close()
}
