package signature

import "testing"

func TestScanRanksByOffsetThenSpecificityThenRegistration(t *testing.T) {
	s := New(0, 0)
	s.Register(Rule{ParserName: "b", Pattern: []byte{0xCA, 0xFE}, Offset: 4, Kind: OffsetAbsolute})
	s.Register(Rule{ParserName: "a", Pattern: []byte{0xDE, 0xAD}, Offset: 0, Kind: OffsetAbsolute})
	s.Register(Rule{ParserName: "c", Pattern: []byte{0xDE, 0xAD, 0xBE, 0xEF}, Offset: 0, Kind: OffsetAbsolute})

	prefix := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xCA, 0xFE}
	matches := s.Scan(prefix, nil, int64(len(prefix)))
	names := RankedParserNames(matches)

	// offset 0 matches ("c" then "a" by specificity, c's pattern is
	// longer) must both precede offset 4's "b".
	if len(names) != 3 {
		t.Fatalf("expected 3 ranked parsers, got %v", names)
	}
	if names[0] != "c" || names[1] != "a" || names[2] != "b" {
		t.Fatalf("unexpected rank order: %v", names)
	}
}

func TestScanLNKMagic(t *testing.T) {
	s := New(0, 0)
	s.Register(Rule{
		ParserName: "lnk",
		Pattern:    []byte{0x4C, 0x00, 0x00, 0x00, 0x01, 0x14, 0x02, 0x00},
		Offset:     0,
		Kind:       OffsetAbsolute,
	})
	stream := []byte{0x4C, 0x00, 0x00, 0x00, 0x01, 0x14, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}
	matches := s.Scan(stream, nil, int64(len(stream)))
	if len(matches) != 1 || matches[0].ParserName != "lnk" {
		t.Fatalf("expected single lnk match, got %v", matches)
	}
}

func TestRegistrationOrderBreaksTies(t *testing.T) {
	s := New(0, 0)
	s.Register(Rule{ParserName: "first", Pattern: []byte{0x01}, Offset: 0, Kind: OffsetAbsolute})
	s.Register(Rule{ParserName: "second", Pattern: []byte{0x01}, Offset: 0, Kind: OffsetAbsolute})
	names := RankedParserNames(s.Scan([]byte{0x01}, nil, 1))
	if names[0] != "first" {
		t.Fatalf("expected registration order to break ties, got %v", names)
	}
}
