// Package signature implements the byte-pattern scanner (spec.md §4.5)
// that ranks parser candidates for a stream before the parser registry
// dispatches work to them.
package signature

import (
	"bytes"
	"sort"
)

// OffsetKind says how a Rule's Offset is interpreted.
type OffsetKind int

const (
	// OffsetAbsolute anchors Offset to the start of the stream.
	OffsetAbsolute OffsetKind = iota
	// OffsetFromEnd anchors Offset to the end of the stream (negative
	// distance from EOF).
	OffsetFromEnd
	// OffsetWithinPrefix matches anywhere within the first PrefixBytes
	// bytes read, not at one fixed position.
	OffsetWithinPrefix
)

// Rule is one registered signature: a byte pattern, its anchor, and
// the parser name it votes for (spec.md §4.5).
type Rule struct {
	ParserName string
	Pattern    []byte
	Offset     int64
	Kind       OffsetKind

	registrationSeq int
}

// Match is one scanner hit: a candidate parser name and where its
// pattern matched.
type Match struct {
	ParserName string
	Offset     int64
	Length     int
}

const (
	DefaultPrefixBytes = 16 * 1024
	DefaultSuffixBytes = 4 * 1024
)

// Scanner holds the registered rule set and the prefix/suffix window
// it reads before scanning (spec.md §4.5).
type Scanner struct {
	rules       []Rule
	prefixBytes int
	suffixBytes int
	nextSeq     int
}

// New creates a Scanner with the given prefix/suffix window sizes; a
// zero value for either falls back to the spec.md default.
func New(prefixBytes, suffixBytes int) *Scanner {
	if prefixBytes <= 0 {
		prefixBytes = DefaultPrefixBytes
	}
	if suffixBytes <= 0 {
		suffixBytes = DefaultSuffixBytes
	}
	return &Scanner{prefixBytes: prefixBytes, suffixBytes: suffixBytes}
}

// Register adds a signature rule. Registration order is the final
// tie-breaker (spec.md §9 "Signature-match tie-breaking ... we
// prescribe registration order for determinism").
func (s *Scanner) Register(rule Rule) {
	rule.registrationSeq = s.nextSeq
	s.nextSeq++
	s.rules = append(s.rules, rule)
}

// PrefixBytes and SuffixBytes report the configured scan window, so
// callers (the extraction worker) know how much of the stream to read
// before calling Scan.
func (s *Scanner) PrefixBytes() int { return s.prefixBytes }
func (s *Scanner) SuffixBytes() int { return s.suffixBytes }

// Scan matches the registered rules against prefix (the first
// PrefixBytes of the stream) and suffix (the last SuffixBytes), given
// the stream's total length for OffsetFromEnd resolution. Results are
// ordered by (offset ascending, specificity descending), ties broken
// by registration order (spec.md §4.5, §8 invariant 5).
func (s *Scanner) Scan(prefix, suffix []byte, streamLength int64) []Match {
	type scored struct {
		m       Match
		specificity int
		seq     int
	}
	var hits []scored

	for _, r := range s.rules {
		switch r.Kind {
		case OffsetAbsolute:
			if r.Offset < 0 {
				continue
			}
			if matchAt(prefix, int(r.Offset), r.Pattern) {
				hits = append(hits, scored{Match{r.ParserName, r.Offset, len(r.Pattern)}, len(r.Pattern), r.registrationSeq})
			}
		case OffsetFromEnd:
			// r.Offset is a negative distance from EOF, e.g. -4 means
			// "4 bytes before the end".
			absOffset := streamLength + r.Offset
			localOffset := int(absOffset) - int(streamLength-int64(len(suffix)))
			if matchAt(suffix, localOffset, r.Pattern) {
				hits = append(hits, scored{Match{r.ParserName, absOffset, len(r.Pattern)}, len(r.Pattern), r.registrationSeq})
			}
		case OffsetWithinPrefix:
			if idx := bytes.Index(prefix, r.Pattern); idx >= 0 {
				hits = append(hits, scored{Match{r.ParserName, int64(idx), len(r.Pattern)}, len(r.Pattern), r.registrationSeq})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].m.Offset != hits[j].m.Offset {
			return hits[i].m.Offset < hits[j].m.Offset
		}
		if hits[i].specificity != hits[j].specificity {
			return hits[i].specificity > hits[j].specificity
		}
		return hits[i].seq < hits[j].seq
	})

	out := make([]Match, len(hits))
	for i, h := range hits {
		out[i] = h.m
	}
	return out
}

// RankedParserNames collapses Scan's Match list into a deduplicated,
// order-preserving parser name list — the form the parser registry
// dispatches against (spec.md §4.4).
func RankedParserNames(matches []Match) []string {
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m.ParserName] {
			continue
		}
		seen[m.ParserName] = true
		out = append(out, m.ParserName)
	}
	return out
}

func matchAt(buf []byte, offset int, pattern []byte) bool {
	if offset < 0 || offset+len(pattern) > len(buf) {
		return false
	}
	return bytes.Equal(buf[offset:offset+len(pattern)], pattern)
}
