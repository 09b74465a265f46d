package store

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{FormatVersion: FormatVersion, SessionID: [16]byte{1, 2, 3}, ContainerIndexOffset: 4096}
	encoded := EncodeHeader(h)
	if len(encoded) != HeaderSize {
		t.Fatalf("expected header size %d, got %d", HeaderSize, len(encoded))
	}
	decoded, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if decoded != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", decoded, h)
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	buf := EncodeHeader(Header{FormatVersion: 1})
	buf[0] = 'X'
	if _, err := DecodeHeader(buf); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestRecordRoundTripEachCodec(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility, the quick brown fox jumps over the lazy dog")
	for _, codec := range []Codec{CodecRaw, CodecZstd, CodecSnappy, CodecLZ4} {
		record, err := EncodeRecord(TypeEvent, codec, payload)
		if err != nil {
			t.Fatalf("codec %d: EncodeRecord: %v", codec, err)
		}
		typeID, decoded, n, err := DecodeRecord(record)
		if err != nil {
			t.Fatalf("codec %d: DecodeRecord: %v", codec, err)
		}
		if typeID != TypeEvent {
			t.Fatalf("codec %d: type mismatch: %v", codec, typeID)
		}
		if n != len(record) {
			t.Fatalf("codec %d: consumed %d, want %d", codec, n, len(record))
		}
		if !bytes.Equal(decoded, payload) {
			t.Fatalf("codec %d: payload mismatch", codec)
		}
	}
}

func TestDecodeRecordTruncated(t *testing.T) {
	record, err := EncodeRecord(TypeWarning, CodecRaw, []byte("hi"))
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	if _, _, _, err := DecodeRecord(record[:len(record)-1]); err == nil {
		t.Fatal("expected truncation error")
	}
}
