// Package builtin holds the minimal parser set needed to exercise
// spec.md §8's end-to-end scenarios: a fallback file-stat parser, a
// Windows shortcut (LNK) parser, a syslog text-line parser, and a
// Windows Registry container-parser stub.
package builtin

import (
	"github.com/log2timeline/plaso-sub000/internal/parsers"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
)

// FileStatParser emits one event per populated filesystem timestamp
// on the current entry. It has no format specification — it is the
// dispatch fallback invoked when signature scanning yields nothing
// (spec.md §4.4 "a fallback file-stat parser emits file-entry
// timestamps").
type FileStatParser struct{}

func (FileStatParser) Name() string                   { return "filestat" }
func (FileStatParser) Shape() parsers.Shape           { return parsers.ShapeFile }
func (FileStatParser) SupportedDataTypes() []string   { return []string{"fs:stat"} }

func (FileStatParser) Parse(m parsers.Mediator) error {
	stream := m.Stream()
	stat := stream.Stat

	attrs := map[string]interface{}{
		"size": stat.Size,
		"kind": string(stat.Kind),
	}
	dataRef := m.ProduceEventData("fs:stat", "filestat", attrs)

	emit := func(ts eventmodel.DateTimeValue, description string) {
		if ts.NotSet {
			return
		}
		m.ProduceEvent(ts, description, dataRef)
	}

	emit(stat.Times.Modified, eventmodel.TimestampLastModification)
	emit(stat.Times.Accessed, eventmodel.TimestampLastAccess)
	emit(stat.Times.Changed, eventmodel.TimestampChange)
	emit(stat.Times.Birth, eventmodel.TimestampCreation)

	return nil
}
