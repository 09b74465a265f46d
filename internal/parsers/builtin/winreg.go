package builtin

import (
	"encoding/binary"

	"github.com/log2timeline/plaso-sub000/internal/parsers"
	"github.com/log2timeline/plaso-sub000/pkg/errors"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
)

// WinRegMagic is the "regf" file-signature magic at the start of a
// Windows Registry hive.
var WinRegMagic = []byte("regf")

// WinRegParser is a minimal container parser for Windows Registry
// hives, standing in for the real key/value tree traversal a full
// build of this parser performs. It is enough to exercise spec.md §8
// S2 (VSS dedup across identical hive copies): one key_value container
// per hive, keyed by the hive's own last-written timestamp, so
// identical copies produce identical containers and dedup by content
// hash works exactly as it would for the real parser's output.
type WinRegParser struct{}

func (WinRegParser) Name() string                 { return "winreg" }
func (WinRegParser) Shape() parsers.Shape         { return parsers.ShapeContainer }
func (WinRegParser) SupportedDataTypes() []string { return []string{"winreg:key_value"} }

// SelectPlugins chooses sub-parsers by required-key-set match against
// the hive's root cells — deterministic given the container's
// contents (spec.md §4.4). This stub hive has no plugin surface, so
// it always selects none; a full build enumerates plugins such as
// "winreg/userassist" or "winreg/run_keys" here.
func (WinRegParser) SelectPlugins(m parsers.Mediator) ([]string, error) {
	return nil, nil
}

func (p WinRegParser) Parse(m parsers.Mediator) error {
	header, err := m.Stream().ReadAt(0, 8192)
	if err != nil {
		return errors.IOError("winreg", "read_header", err)
	}
	if len(header) < 4 || string(header[:4]) != string(WinRegMagic) {
		return errors.UnableToParse("winreg", "winreg")
	}

	if _, err := p.SelectPlugins(m); err != nil {
		return errors.Corrupt("winreg", "select_plugins", err)
	}

	// Bytes 12:20 of a regf header hold the hive's own last-written
	// FILETIME; it is used here as the hive-level "last written"
	// timestamp.
	var lastWritten eventmodel.DateTimeValue
	if len(header) >= 20 {
		ticks := int64(binary.LittleEndian.Uint64(header[12:20]))
		if ticks != 0 {
			lastWritten = eventmodel.FromFILETIME(ticks)
		} else {
			lastWritten = eventmodel.NotSetValue()
		}
	} else {
		lastWritten = eventmodel.NotSetValue()
	}

	dataRef := m.ProduceEventData("winreg:key_value", "winreg", map[string]interface{}{
		"key_path": "\\",
	})
	if !lastWritten.NotSet {
		m.ProduceEvent(lastWritten, eventmodel.TimestampLastModification, dataRef)
	}
	return nil
}
