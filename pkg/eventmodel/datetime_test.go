package eventmodel

import "testing"

func TestNotSetIsNotZeroTimestamp(t *testing.T) {
	zero := FromUnixMicroseconds(0)
	absent := NotSetValue()
	if absent.NotSet == zero.NotSet {
		t.Fatalf("absent and zero-valued timestamps must be distinguishable")
	}
	if _, ok := absent.NormalizedMicroseconds(); ok {
		t.Fatalf("absent value must not normalize")
	}
	if us, ok := zero.NormalizedMicroseconds(); !ok || us != 0 {
		t.Fatalf("zero-valued timestamp should normalize to 0, got %d,%v", us, ok)
	}
}

func TestFILETIMEConversion(t *testing.T) {
	// 116444736000000000 ticks == 1970-01-01T00:00:00Z
	d := FromFILETIME(116444736000000000)
	us, ok := d.NormalizedMicroseconds()
	if !ok || us != 0 {
		t.Fatalf("expected epoch, got %d ok=%v", us, ok)
	}
}

func TestLessOrdersAbsentBeforeSetBeforeInfinite(t *testing.T) {
	absent := NotSetValue()
	set := FromUnixMicroseconds(100)
	infinite := InfiniteValue()

	if !absent.Less(set) {
		t.Fatalf("absent should sort before set")
	}
	if !set.Less(infinite) {
		t.Fatalf("set should sort before infinite")
	}
	if infinite.Less(set) {
		t.Fatalf("infinite should not sort before set")
	}
}
