package parsers

import (
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/log2timeline/plaso-sub000/pkg/errors"
	"github.com/log2timeline/plaso-sub000/pkg/signature"
)

// Registry is the global name-keyed parser table (spec.md §4.4:
// "Registration yields a global table keyed by unique parser name").
// Grounded on the teacher's StatsCollector pattern of a small struct
// wrapping a mutex-guarded map, reused here for registration instead
// of stats.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser under its declared Name. Registering the
// same name twice is a configuration error.
func (r *Registry) Register(p Parser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[p.Name()]; exists {
		return errors.ConfigError("register", fmt.Sprintf("duplicate parser name %q", p.Name()))
	}
	r.parsers[p.Name()] = p
	return nil
}

// Lookup returns the registered parser for name, if any.
func (r *Registry) Lookup(name string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[name]
	return p, ok
}

// Names returns every registered parser name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RegisterSignatures feeds every registered parser's format-
// specification byte patterns into a signature.Scanner, so the
// scanner and the registry stay in lock-step without requiring a
// second, separately-maintained table (spec.md §4.5).
func (r *Registry) RegisterSignatures(s *signature.Scanner, specs map[string][]signature.Rule) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, rules := range specs {
		if _, ok := r.parsers[name]; !ok {
			continue
		}
		for _, rule := range rules {
			rule.ParserName = name
			s.Register(rule)
		}
	}
}

// Presets maps a named parser-filter preset (e.g. "win7", "macos",
// "linux") to the set of parser names it enables. Populated by the
// application wiring layer from the registry's actual contents.
type Presets map[string][]string

// Filter resolves a user-supplied include/exclude expression over
// parser names into a decision function (spec.md §4.4 "Parser
// filter"). Expression syntax: comma-separated tokens, each either a
// bare preset/parser name (include) or "!name" (exclude). Resolution
// order: expand presets, union includes, subtract excludes.
type Filter struct {
	allow map[string]bool
	deny  map[string]bool
	// emptyAllowsAll is true when no include tokens were given, so
	// every registered parser is a candidate except explicit excludes.
	emptyAllowsAll bool
}

// ParseFilter builds a Filter from a comma-separated expression and
// the full set of registered parser names (for preset/glob expansion).
func ParseFilter(expr string, presets Presets, allNames []string) (*Filter, error) {
	f := &Filter{allow: make(map[string]bool), deny: make(map[string]bool)}
	if expr == "" {
		f.emptyAllowsAll = true
		return f, nil
	}

	tokens := splitTokens(expr)
	var includeTokens []string
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if tok[0] == '!' {
			expandInto(f.deny, tok[1:], presets, allNames)
			continue
		}
		includeTokens = append(includeTokens, tok)
	}
	if len(includeTokens) == 0 {
		f.emptyAllowsAll = true
	}
	for _, tok := range includeTokens {
		expandInto(f.allow, tok, presets, allNames)
	}
	return f, nil
}

// Allows reports whether a given parser name survives this filter.
func (f *Filter) Allows(name string) bool {
	if f.deny[name] {
		return false
	}
	if f.emptyAllowsAll {
		return true
	}
	if f.allow[name] {
		return true
	}
	for pattern := range f.allow {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func expandInto(set map[string]bool, token string, presets Presets, allNames []string) {
	if names, ok := presets[token]; ok {
		for _, n := range names {
			set[n] = true
		}
		return
	}
	set[token] = true
	for _, n := range allNames {
		if ok, _ := path.Match(token, n); ok {
			set[n] = true
		}
	}
}

func splitTokens(expr string) []string {
	var out []string
	start := 0
	for i := 0; i < len(expr); i++ {
		if expr[i] == ',' {
			out = append(out, trimSpace(expr[start:i]))
			start = i + 1
		}
	}
	out = append(out, trimSpace(expr[start:]))
	return out
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
