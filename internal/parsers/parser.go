// Package parsers implements the parser registry and mediator
// (spec.md §4.4): a global name-keyed table of parsers, each of one
// of three shapes, dispatched per work item in the signature
// scanner's ranked order.
package parsers

import (
	"github.com/log2timeline/plaso-sub000/internal/knowledgebase"
	"github.com/log2timeline/plaso-sub000/internal/vfs"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

// Shape is the closed set of parser kinds (spec.md §4.4).
type Shape string

const (
	ShapeFile      Shape = "file"
	ShapeContainer Shape = "container"
	ShapeTextLine  Shape = "text_line"
)

// Mediator is what a parser uses to emit containers and read its
// bound stream (spec.md §4.4 step 4, GLOSSARY "Mediator"). One
// Mediator instance is bound to exactly one (event-data-stream,
// path-spec) pair for the duration of a single parser call.
type Mediator interface {
	// Stream reads from the file entry this parser was dispatched
	// against.
	Stream() *vfs.FileEntry
	// PathSpec is the path-spec chain identifying the current item.
	PathSpec() *pathspec.Spec
	// KnowledgeBase is the frozen, read-only preprocessing facts.
	KnowledgeBase() *knowledgebase.Base
	// ProduceEventData pushes an event-data container, returning its
	// assigned Ref for use in one or more ProduceEvent calls.
	ProduceEventData(dataType, parserName string, attributes map[string]interface{}) eventmodel.Ref
	// ProduceEvent pushes an event container tied to a prior
	// ProduceEventData Ref.
	ProduceEvent(ts eventmodel.DateTimeValue, description string, dataRef eventmodel.Ref) eventmodel.Ref
	// ProduceWarning records a non-fatal parser-level problem.
	ProduceWarning(message, code string)
	// EmitChildPathSpec surfaces an embedded file system or archive
	// discovered mid-parse (spec.md §4.7 step 6) back to the
	// collector queue as a new work item.
	EmitChildPathSpec(child *pathspec.Spec)
}

// Parser is the contract every registered parser implements,
// polymorphic over {scan, parse, enumerate_plugins} per spec.md's
// REDESIGN FLAGS section: a single capability-based interface rather
// than a class hierarchy per shape.
type Parser interface {
	// Name is the globally unique registration key.
	Name() string
	// Shape reports which of the three parser kinds this is.
	Shape() Shape
	// SupportedDataTypes lists the event-data data_type strings this
	// parser may emit.
	SupportedDataTypes() []string
	// Parse consumes the stream bound to m and pushes containers
	// through it. Returning an *errors.EngineError built with
	// errors.UnableToParse signals "not my format" — the mediator
	// dispatch loop treats that as non-fatal and tries the next
	// ranked candidate. Any other error is recorded as a warning and
	// dispatch continues to the next parser.
	Parse(m Mediator) error
}

// ContainerParser is the additional surface a container-shaped parser
// (SQLite, ESEDB, OLECF, plist, Windows Registry, bencode, compound
// zip) exposes for plugin selection (spec.md §4.4: "Container parsers
// run their plugin selection internally; plugin selection MUST be
// deterministic given the container contents").
type ContainerParser interface {
	Parser
	// SelectPlugins returns the plugin names that match the
	// container's actual contents, in a deterministic order.
	SelectPlugins(m Mediator) ([]string, error)
}
