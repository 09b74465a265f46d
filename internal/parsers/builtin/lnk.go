package builtin

import (
	"encoding/binary"

	"github.com/log2timeline/plaso-sub000/internal/parsers"
	"github.com/log2timeline/plaso-sub000/pkg/errors"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/signature"
)

// LNKMagic is the 20-byte Shell Link header magic spec.md §8 scenario
// S1 dispatches on: a 4-byte header size followed by the fixed
// CLSID of a shell link.
var LNKMagic = []byte{0x4C, 0x00, 0x00, 0x00, 0x01, 0x14, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}

// LNKSignatureRules is registered against the signature scanner by
// RegisterAll, alongside the parser itself and under the same "lnk"
// parser name, so the two stay bound to the same parser name.
var LNKSignatureRules = []signature.Rule{
	{Pattern: LNKMagic, Offset: 0, Kind: signature.OffsetAbsolute},
}

// LNKParser parses the minimal Windows Shell Link header: target
// modification/access/creation timestamps and file size, the
// attributes spec.md §8 S1 exercises.
type LNKParser struct{}

func (LNKParser) Name() string                 { return "lnk" }
func (LNKParser) Shape() parsers.Shape         { return parsers.ShapeFile }
func (LNKParser) SupportedDataTypes() []string { return []string{"windows:lnk:link"} }

// header offsets within the fixed 76-byte ShellLinkHeader structure.
const (
	lnkHeaderSize       = 76
	lnkOffsetCreation    = 28
	lnkOffsetAccess      = 36
	lnkOffsetWrite       = 44
	lnkOffsetTargetSize  = 52
)

func (LNKParser) Parse(m parsers.Mediator) error {
	data, err := m.Stream().ReadAt(0, lnkHeaderSize)
	if err != nil {
		return errors.IOError("lnk", "read_header", err)
	}
	if len(data) < lnkHeaderSize {
		return errors.UnableToParse("lnk", "lnk")
	}
	if !matchesMagic(data) {
		return errors.UnableToParse("lnk", "lnk")
	}

	targetSize := binary.LittleEndian.Uint32(data[lnkOffsetTargetSize:])
	attrs := map[string]interface{}{
		"target_size": targetSize,
	}
	dataRef := m.ProduceEventData("windows:lnk:link", "lnk", attrs)

	creation := filetimeAt(data, lnkOffsetCreation)
	access := filetimeAt(data, lnkOffsetAccess)
	write := filetimeAt(data, lnkOffsetWrite)

	m.ProduceEvent(creation, eventmodel.TimestampCreation, dataRef)
	m.ProduceEvent(access, eventmodel.TimestampLastAccess, dataRef)
	m.ProduceEvent(write, eventmodel.TimestampLastModification, dataRef)

	return nil
}

func matchesMagic(data []byte) bool {
	if len(data) < len(LNKMagic) {
		return false
	}
	for i, b := range LNKMagic {
		if data[i] != b {
			return false
		}
	}
	return true
}

func filetimeAt(data []byte, offset int) eventmodel.DateTimeValue {
	raw := int64(binary.LittleEndian.Uint64(data[offset:]))
	if raw == 0 {
		return eventmodel.NotSetValue()
	}
	return eventmodel.FromFILETIME(raw)
}
