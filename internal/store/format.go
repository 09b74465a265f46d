// Package store implements the task-local and session storage writer
// (spec.md §4.9, C9): an append-only, length-prefixed record file per
// task, merged in FIFO completion order into one session store, with
// VSS content-hash de-duplication along the way.
package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Magic identifies a plaso-sub000 storage file (spec.md §6, SPEC_FULL
// §D: "magic PLSO").
var Magic = [4]byte{'P', 'L', 'S', 'O'}

// FormatVersion is the on-disk format revision.
const FormatVersion uint32 = 1

// Codec selects the record payload compressor. Stored per-record in
// the record's flags byte so a reader never needs global state to
// decode one record (SPEC_FULL §D).
type Codec uint8

const (
	CodecRaw Codec = iota
	CodecZstd
	CodecSnappy
	CodecLZ4
)

// flagCodecMask isolates the codec bits (bit 0-1) within a record's
// flags byte.
const flagCodecMask = 0x03

// TypeID identifies which eventmodel container a record holds,
// mirroring eventmodel.ContainerType but as a compact on-disk tag.
type TypeID uint8

const (
	TypeEventDataStream TypeID = iota
	TypeEventData
	TypeEvent
	TypeEventTag
	TypeWarning
)

// Header is the fixed file preamble (spec.md §6).
type Header struct {
	FormatVersion         uint32
	SessionID             [16]byte
	ContainerIndexOffset  uint64
}

// EncodeHeader renders h as the file's leading bytes. The caller
// writes this first, then records, then seeks back (or tracks the
// offset separately) to patch ContainerIndexOffset once the index is
// known.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, 4+4+16+8)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.FormatVersion)
	copy(buf[8:24], h.SessionID[:])
	binary.LittleEndian.PutUint64(buf[24:32], h.ContainerIndexOffset)
	return buf
}

// DecodeHeader parses a file's leading bytes into a Header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < 32 {
		return Header{}, fmt.Errorf("store: header too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[0:4], Magic[:]) {
		return Header{}, fmt.Errorf("store: bad magic %q", data[0:4])
	}
	var h Header
	h.FormatVersion = binary.LittleEndian.Uint32(data[4:8])
	copy(h.SessionID[:], data[8:24])
	h.ContainerIndexOffset = binary.LittleEndian.Uint64(data[24:32])
	return h, nil
}

// HeaderSize is the fixed preamble length in bytes.
const HeaderSize = 32

// EncodeRecord frames one record as `u32 length | u8 type_id | u8 flags
// | payload`, compressing payload with codec first (spec.md §6).
func EncodeRecord(typeID TypeID, codec Codec, payload []byte) ([]byte, error) {
	compressed, err := compress(codec, payload)
	if err != nil {
		return nil, err
	}
	length := uint32(1 + 1 + len(compressed))
	buf := make([]byte, 4+length)
	binary.LittleEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(typeID)
	buf[5] = byte(codec) & flagCodecMask
	copy(buf[6:], compressed)
	return buf, nil
}

// DecodeRecord reads one framed record starting at data[0], returning
// the decoded container-type, its decompressed payload, and the total
// number of bytes consumed (including the 4-byte length prefix).
func DecodeRecord(data []byte) (TypeID, []byte, int, error) {
	if len(data) < 4 {
		return 0, nil, 0, fmt.Errorf("store: truncated record length prefix")
	}
	length := binary.LittleEndian.Uint32(data[0:4])
	total := 4 + int(length)
	if len(data) < total {
		return 0, nil, 0, fmt.Errorf("store: truncated record body (want %d, have %d)", total, len(data))
	}
	if length < 2 {
		return 0, nil, 0, fmt.Errorf("store: record too short to hold type/flags")
	}
	typeID := TypeID(data[4])
	flags := data[5]
	payload := data[6:total]

	decoded, err := decompress(Codec(flags&flagCodecMask), payload)
	if err != nil {
		return 0, nil, 0, err
	}
	return typeID, decoded, total, nil
}

func compress(codec Codec, payload []byte) ([]byte, error) {
	switch codec {
	case CodecRaw:
		return payload, nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(payload, nil), nil
	case CodecSnappy:
		return snappy.Encode(nil, payload), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("store: unknown codec %d", codec)
	}
}

func decompress(codec Codec, payload []byte) ([]byte, error) {
	switch codec {
	case CodecRaw:
		return payload, nil
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(payload, nil)
	case CodecSnappy:
		return snappy.Decode(nil, payload)
	case CodecLZ4:
		r := lz4.NewReader(bytes.NewReader(payload))
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("store: unknown codec %d", codec)
	}
}
