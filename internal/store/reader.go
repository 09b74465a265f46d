package store

import (
	"fmt"
	"os"

	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"

	"encoding/json"
)

// Reader provides the readback contract spec.md §4.9 names for a
// finalized session store: a streaming scan of all events in session
// order, filter push-down on (timestamp range, data_type,
// parser_name), and random access to a container by (type, sequence).
// *Grounded on* internal/store's own record framing (format.go); the
// writer side never needed a symmetric reader until the CLI's `info`/
// `merge` commands required reading a store back.
type Reader struct {
	header Header

	eventDataStreams []eventmodel.EventDataStream
	eventData        []eventmodel.EventData
	events           []eventmodel.Event
	warnings         []eventmodel.Warning

	eventDataBySeq map[int64]int // sequence -> index into eventData
	eventBySeq     map[int64]int
}

// OpenReader reads path fully into memory and decodes every record.
// Session stores are expected to be merge-session-sized, not
// multi-gigabyte; a future streaming variant could decode
// incrementally, but nothing in this engine currently needs it.
func OpenReader(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("store: %s is too short to contain a header", path)
	}

	header, err := DecodeHeader(data[:HeaderSize])
	if err != nil {
		return nil, fmt.Errorf("store: %s: %w", path, err)
	}
	if header.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("store: %s: unsupported format version %d", path, header.FormatVersion)
	}

	r := &Reader{
		header:         header,
		eventDataBySeq: make(map[int64]int),
		eventBySeq:     make(map[int64]int),
	}

	offset := HeaderSize
	for offset < len(data) {
		typeID, payload, consumed, err := DecodeRecord(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("store: %s: decode record at offset %d: %w", path, offset, err)
		}
		if err := r.decodeInto(typeID, payload); err != nil {
			return nil, fmt.Errorf("store: %s: unmarshal record at offset %d: %w", path, offset, err)
		}
		offset += consumed
	}
	return r, nil
}

func (r *Reader) decodeInto(typeID TypeID, payload []byte) error {
	switch typeID {
	case TypeEventDataStream:
		var s eventmodel.EventDataStream
		if err := json.Unmarshal(payload, &s); err != nil {
			return err
		}
		r.eventDataStreams = append(r.eventDataStreams, s)
	case TypeEventData:
		var d eventmodel.EventData
		if err := json.Unmarshal(payload, &d); err != nil {
			return err
		}
		r.eventDataBySeq[d.Sequence] = len(r.eventData)
		r.eventData = append(r.eventData, d)
	case TypeEvent:
		var e eventmodel.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		r.eventBySeq[e.Sequence] = len(r.events)
		r.events = append(r.events, e)
	case TypeWarning:
		var w eventmodel.Warning
		if err := json.Unmarshal(payload, &w); err != nil {
			return err
		}
		r.warnings = append(r.warnings, w)
	default:
		return fmt.Errorf("unknown container type id %d", typeID)
	}
	return nil
}

// Header returns the decoded file header.
func (r *Reader) Header() Header { return r.header }

// Events returns every event in session (append) order.
func (r *Reader) Events() []eventmodel.Event {
	return append([]eventmodel.Event(nil), r.events...)
}

// EventData returns every event-data container in session order.
func (r *Reader) EventData() []eventmodel.EventData {
	return append([]eventmodel.EventData(nil), r.eventData...)
}

// Warnings returns every warning in session order.
func (r *Reader) Warnings() []eventmodel.Warning {
	return append([]eventmodel.Warning(nil), r.warnings...)
}

// EventDataBySequence is the random-access lookup spec.md §4.9 names
// for "a container by (type, sequence)", narrowed to the EventData
// container type.
func (r *Reader) EventDataBySequence(seq int64) (eventmodel.EventData, bool) {
	idx, ok := r.eventDataBySeq[seq]
	if !ok {
		return eventmodel.EventData{}, false
	}
	return r.eventData[idx], true
}

// EventBySequence is the Event-container counterpart to
// EventDataBySequence.
func (r *Reader) EventBySequence(seq int64) (eventmodel.Event, bool) {
	idx, ok := r.eventBySeq[seq]
	if !ok {
		return eventmodel.Event{}, false
	}
	return r.events[idx], true
}

// EventFilter narrows a streaming scan by timestamp range, data type,
// and parser name (spec.md §4.9's "filter push-down"). A zero value
// field is treated as unconstrained.
type EventFilter struct {
	MinMicroseconds int64
	MaxMicroseconds int64
	DataType        string
	ParserName      string
}

// FilterEvents scans every event in session order, resolving each
// one's owning EventData container and applying filter's constraints;
// matching events are returned in the order encountered.
func (r *Reader) FilterEvents(filter EventFilter) []eventmodel.Event {
	var matched []eventmodel.Event
	for _, e := range r.events {
		if filter.MinMicroseconds != 0 || filter.MaxMicroseconds != 0 {
			us, ok := e.Timestamp.NormalizedMicroseconds()
			if !ok {
				continue
			}
			if filter.MinMicroseconds != 0 && us < filter.MinMicroseconds {
				continue
			}
			if filter.MaxMicroseconds != 0 && us > filter.MaxMicroseconds {
				continue
			}
		}
		if filter.DataType != "" || filter.ParserName != "" {
			data, ok := r.EventDataBySequence(e.EventDataRef.Sequence)
			if !ok {
				continue
			}
			if filter.DataType != "" && data.DataType != filter.DataType {
				continue
			}
			if filter.ParserName != "" && data.ParserName != filter.ParserName {
				continue
			}
		}
		matched = append(matched, e)
	}
	return matched
}
