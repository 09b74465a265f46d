package knowledgebase

import "testing"

func TestFreezeRejectsFurtherMutation(t *testing.T) {
	b := New()
	if err := b.SetHostname("WORKSTATION-1"); err != nil {
		t.Fatalf("unexpected error before freeze: %v", err)
	}
	b.Freeze()
	if err := b.SetHostname("other"); err == nil {
		t.Fatalf("expected mutation after freeze to fail")
	}
	if b.Facts().Hostname != "WORKSTATION-1" {
		t.Fatalf("hostname should retain pre-freeze value")
	}
}

func TestSerializeRequiresFrozenBase(t *testing.T) {
	b := New()
	if _, err := b.Serialize(); err == nil {
		t.Fatalf("expected serialize to fail before freeze")
	}
	b.Freeze()
	data, err := b.Serialize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	restored, err := Deserialize(data)
	if err != nil {
		t.Fatalf("unexpected deserialize error: %v", err)
	}
	if restored.Facts().Hostname != b.Facts().Hostname {
		t.Fatalf("round-trip mismatch")
	}
}

func TestMessageCatalogLookup(t *testing.T) {
	b := New()
	_ = b.AddMessageCatalog("Microsoft-Windows-Security-Auditing", MessageCatalog{4624: "An account was successfully logged on."})
	b.Freeze()
	format, ok := b.MessageFormat("Microsoft-Windows-Security-Auditing", 4624)
	if !ok || format == "" {
		t.Fatalf("expected catalog lookup to succeed")
	}
	if _, ok := b.MessageFormat("unknown", 1); ok {
		t.Fatalf("expected lookup for unknown provider to fail")
	}
}
