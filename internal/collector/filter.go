package collector

import (
	"fmt"
	"regexp"
)

// Filter is the collection filter spec.md §4.6 names: a path regex
// list plus named forensic-artifact definitions, evaluated as
// include-rules first, then exclude-rules (an include match that is
// also excluded is dropped). *Grounded on*
// internal/parsers.Filter's allow/deny shape, reworked from parser
// names to path regexes since the collector filters source paths, not
// parser identities.
type Filter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// ArtifactPresets are named forensic-artifact path sets (spec.md
// §4.6 "forensic-artifact definitions"), expressed as include regexes.
var ArtifactPresets = map[string][]string{
	"windows_event_logs": {`\\Windows\\System32\\winevt\\Logs\\.*\.evtx$`},
	"windows_registry":   {`\\Windows\\System32\\config\\(SYSTEM|SOFTWARE|SAM|SECURITY)$`, `\\NTUSER\.DAT$`},
	"browser_history":    {`\\History$`, `/History$`, `/places\.sqlite$`},
	"unix_logs":          {`^/var/log/.*`},
}

// NewFilter compiles include/exclude path regex lists into a Filter.
// A name found in ArtifactPresets may be used in place of a raw regex
// in includePatterns.
func NewFilter(includePatterns, excludePatterns []string) (*Filter, error) {
	f := &Filter{}
	for _, p := range includePatterns {
		patterns, ok := ArtifactPresets[p]
		if !ok {
			patterns = []string{p}
		}
		for _, raw := range patterns {
			re, err := regexp.Compile(raw)
			if err != nil {
				return nil, fmt.Errorf("collector: bad include pattern %q: %w", raw, err)
			}
			f.include = append(f.include, re)
		}
	}
	for _, p := range excludePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("collector: bad exclude pattern %q: %w", p, err)
		}
		f.exclude = append(f.exclude, re)
	}
	return f, nil
}

// Allows reports whether path survives the filter: include-rules are
// evaluated first (an empty include list allows everything), then
// exclude-rules (any match drops the path).
func (f *Filter) Allows(path string) bool {
	if len(f.include) > 0 {
		matched := false
		for _, re := range f.include {
			if re.MatchString(path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, re := range f.exclude {
		if re.MatchString(path) {
			return false
		}
	}
	return true
}
