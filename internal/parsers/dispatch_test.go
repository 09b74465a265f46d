package parsers_test

import (
	"testing"

	"github.com/log2timeline/plaso-sub000/internal/parsers"
	"github.com/log2timeline/plaso-sub000/internal/parsers/builtin"
	"github.com/log2timeline/plaso-sub000/internal/vfs"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
	"github.com/log2timeline/plaso-sub000/pkg/signature"
)

type fakeSink struct {
	eventData []eventmodel.EventData
	events    []eventmodel.Event
	warnings  []eventmodel.Warning
	children  []*pathspec.Spec
}

func (s *fakeSink) WriteEventData(d eventmodel.EventData) { s.eventData = append(s.eventData, d) }
func (s *fakeSink) WriteEvent(e eventmodel.Event)          { s.events = append(s.events, e) }
func (s *fakeSink) WriteWarning(w eventmodel.Warning)      { s.warnings = append(s.warnings, w) }
func (s *fakeSink) EmitChildPathSpec(c *pathspec.Spec)     { s.children = append(s.children, c) }

func openFake(t *testing.T, handle string, data []byte) (*vfs.Adapter, *vfs.FileEntry, *pathspec.Spec) {
	t.Helper()
	fake := vfs.NewFakeResolver()
	fake.Put(handle, data)
	a := vfs.NewAdapter()
	vfs.RegisterDefaults(a, fake)
	spec := pathspec.New(pathspec.TypeFake, map[string]string{"handle": handle}, nil)
	entry, err := a.Open(spec)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return a, entry, spec
}

func TestDispatchRanksLNKFirstAndProducesOneEvent(t *testing.T) {
	registry := parsers.NewRegistry()
	scanner := signature.New(0, 0)
	if err := builtin.RegisterAll(registry, scanner); err != nil {
		t.Fatalf("register: %v", err)
	}

	body := make([]byte, 76)
	copy(body, builtin.LNKMagic)
	_, entry, spec := openFake(t, "lnk", body)

	prefix, _ := entry.ReadAt(0, scanner.PrefixBytes())
	matches := scanner.Scan(prefix, nil, int64(len(body)))
	ranked := signature.RankedParserNames(matches)
	if len(ranked) == 0 || ranked[0] != "lnk" {
		t.Fatalf("expected lnk ranked first, got %v", ranked)
	}

	sink := &fakeSink{}
	filter, err := parsers.ParseFilter("", builtin.Presets(), registry.Names())
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	results := parsers.Dispatch(registry, filter, ranked, builtin.FallbackParserName, entry, spec, nil, sink)
	if len(results) != 1 || results[0].Outcome != parsers.OutcomeSuccess {
		t.Fatalf("expected single success outcome, got %+v", results)
	}
	if len(sink.eventData) != 1 || sink.eventData[0].DataType != "windows:lnk:link" {
		t.Fatalf("expected one windows:lnk:link event-data, got %+v", sink.eventData)
	}
}

func TestDispatchFallsBackToFileStatWhenUnranked(t *testing.T) {
	registry := parsers.NewRegistry()
	scanner := signature.New(0, 0)
	if err := builtin.RegisterAll(registry, scanner); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, entry, spec := openFake(t, "plain", []byte("no signature here"))

	sink := &fakeSink{}
	filter, _ := parsers.ParseFilter("", builtin.Presets(), registry.Names())
	results := parsers.Dispatch(registry, filter, nil, builtin.FallbackParserName, entry, spec, nil, sink)
	if len(results) != 1 || results[0].ParserName != "filestat" {
		t.Fatalf("expected filestat fallback, got %+v", results)
	}
}

func TestParserFilterExcludesWinreg(t *testing.T) {
	registry := parsers.NewRegistry()
	scanner := signature.New(0, 0)
	builtin.RegisterAll(registry, scanner)

	filter, err := parsers.ParseFilter("win7,!winreg", builtin.Presets(), registry.Names())
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if filter.Allows("winreg") {
		t.Fatalf("expected winreg excluded")
	}
	if !filter.Allows("lnk") {
		t.Fatalf("expected lnk allowed")
	}
}
