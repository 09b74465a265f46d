package pathspec

import "testing"

func TestComparableStableAcrossAttributeOrder(t *testing.T) {
	a := New(TypeTSK, map[string]string{"inode": "5", "location": "/x"}, nil)
	b := New(TypeTSK, map[string]string{"location": "/x", "inode": "5"}, nil)
	if a.Comparable() != b.Comparable() {
		t.Fatalf("expected equal comparables, got %q vs %q", a.Comparable(), b.Comparable())
	}
	if !a.Equal(b) {
		t.Fatalf("expected Equal to be true")
	}
}

func TestEqualDistinguishesChains(t *testing.T) {
	root := New(TypeOS, map[string]string{"location": "/"}, nil)
	a := New(TypeGZIP, nil, root)
	b := New(TypeGZIP, nil, nil)
	if a.Equal(b) {
		t.Fatalf("expected different parents to produce different comparables")
	}
}

func TestDepthMatchesNestedArchiveChain(t *testing.T) {
	// spec.md S6: OS -> GZIP -> TAR -> GZIP, innermost "messages" stream.
	os_ := New(TypeOS, map[string]string{"location": "/a.tar.gz"}, nil)
	gz1 := New(TypeGZIP, nil, os_)
	tar := New(TypeTAR, map[string]string{"location": "/log.gz"}, gz1)
	gz2 := New(TypeGZIP, nil, tar)
	if got := gz2.Depth(); got != 4 {
		t.Fatalf("expected depth 4, got %d", got)
	}
}

func TestValidateRootRejectsNonRootType(t *testing.T) {
	nonRoot := New(TypeGZIP, nil, nil)
	if err := nonRoot.ValidateRoot(); err == nil {
		t.Fatalf("expected error for GZIP root")
	}
	valid := New(TypeOS, map[string]string{"location": "/"}, nil)
	if err := valid.ValidateRoot(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
