package parsers

import (
	"sync"

	"github.com/log2timeline/plaso-sub000/internal/knowledgebase"
	"github.com/log2timeline/plaso-sub000/internal/vfs"
	"github.com/log2timeline/plaso-sub000/pkg/errors"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

// Sink is where a mediator flushes produced containers — normally the
// task-local store writer (internal/store), abstracted here so this
// package does not import internal/store directly.
type Sink interface {
	WriteEventData(eventmodel.EventData)
	WriteEvent(eventmodel.Event)
	WriteWarning(eventmodel.Warning)
	EmitChildPathSpec(*pathspec.Spec)
}

// sequencer hands out monotonically increasing per-type sequence
// numbers within one task, the same role eventmodel.Ref.Sequence plays
// across the whole session store after merge.
type sequencer struct {
	mu     sync.Mutex
	nextED int64
	nextEV int64
}

func (s *sequencer) nextEventData() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextED++
	return s.nextED
}

func (s *sequencer) nextEvent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEV++
	return s.nextEV
}

// taskMediator is the Mediator bound to one (event-data-stream,
// path-spec) pair for a single parser call (spec.md §4.7 step 4).
type taskMediator struct {
	stream     *vfs.FileEntry
	spec       *pathspec.Spec
	kb         *knowledgebase.Base
	sink       Sink
	seq        *sequencer
	parserName string
}

func newMediator(stream *vfs.FileEntry, spec *pathspec.Spec, kb *knowledgebase.Base, sink Sink, seq *sequencer, parserName string) *taskMediator {
	return &taskMediator{stream: stream, spec: spec, kb: kb, sink: sink, seq: seq, parserName: parserName}
}

func (m *taskMediator) Stream() *vfs.FileEntry              { return m.stream }
func (m *taskMediator) PathSpec() *pathspec.Spec             { return m.spec }
func (m *taskMediator) KnowledgeBase() *knowledgebase.Base   { return m.kb }

func (m *taskMediator) ProduceEventData(dataType, parserName string, attributes map[string]interface{}) eventmodel.Ref {
	seq := m.seq.nextEventData()
	ed := eventmodel.EventData{
		Sequence:   seq,
		DataType:   dataType,
		ParserName: parserName,
		Attributes: attributes,
	}
	m.sink.WriteEventData(ed)
	return ed.Ref()
}

func (m *taskMediator) ProduceEvent(ts eventmodel.DateTimeValue, description string, dataRef eventmodel.Ref) eventmodel.Ref {
	seq := m.seq.nextEvent()
	ev := eventmodel.Event{
		Sequence:             seq,
		Timestamp:            ts,
		TimestampDescription: description,
		EventDataRef:         dataRef,
	}
	m.sink.WriteEvent(ev)
	return ev.Ref()
}

func (m *taskMediator) ProduceWarning(message, code string) {
	m.sink.WriteWarning(eventmodel.Warning{
		PathSpec:   m.spec.String(),
		ParserName: m.parserName,
		Message:    message,
		Code:       code,
	})
}

func (m *taskMediator) EmitChildPathSpec(child *pathspec.Spec) {
	m.sink.EmitChildPathSpec(child)
}

// Outcome reports what happened attempting one candidate.
type Outcome int

const (
	OutcomeUnableToParse Outcome = iota
	OutcomeSuccess
	OutcomeWarning
)

// AttemptResult records one parser attempt for observability/tests.
type AttemptResult struct {
	ParserName string
	Outcome    Outcome
	Err        error
}

// Dispatch implements spec.md §4.4's dispatch rules: try ranked
// candidates in order, stop at the first success, skip silently on
// UnableToParse, record anything else as a warning and continue. If
// rankedParsers is empty and the filter allows it, the fallback
// parser is invoked instead.
func Dispatch(registry *Registry, filter *Filter, rankedParsers []string, fallbackName string, stream *vfs.FileEntry, spec *pathspec.Spec, kb *knowledgebase.Base, sink Sink) []AttemptResult {
	var results []AttemptResult
	seq := &sequencer{}

	candidates := rankedParsers
	if len(candidates) == 0 && fallbackName != "" && filter.Allows(fallbackName) {
		candidates = []string{fallbackName}
	}

	for _, name := range candidates {
		if !filter.Allows(name) {
			continue
		}
		p, ok := registry.Lookup(name)
		if !ok {
			continue
		}

		m := newMediator(stream, spec, kb, sink, seq, name)
		err := p.Parse(m)
		if err == nil {
			results = append(results, AttemptResult{ParserName: name, Outcome: OutcomeSuccess})
			return results
		}

		ee, _ := errors.As(err)
		if ee != nil && ee.Kind == errors.KindUnableToParse {
			results = append(results, AttemptResult{ParserName: name, Outcome: OutcomeUnableToParse, Err: err})
			continue
		}

		sink.WriteWarning(eventmodel.Warning{
			PathSpec:   spec.String(),
			ParserName: name,
			Message:    err.Error(),
			Code:       string(kindOf(ee)),
		})
		results = append(results, AttemptResult{ParserName: name, Outcome: OutcomeWarning, Err: err})
	}
	return results
}

func kindOf(ee *errors.EngineError) errors.Kind {
	if ee == nil {
		return errors.KindParseError
	}
	return ee.Kind
}
