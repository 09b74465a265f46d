// Package knowledgebase holds the process-wide, read-mostly facts
// collected in a preprocessing pass before extraction begins (spec.md
// §4.3): hostname, timezone, users, environment variables, code page.
//
// Preprocessing happens once in the foreman. After Freeze the base is
// serialized and handed to each worker process read-only — no mutable
// reference ever crosses a process boundary (spec.md §5, §9 "Global
// knowledge base: treat as explicit config frozen after preprocessing").
package knowledgebase

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
)

// Base is the knowledge base. Before Freeze it is mutable and owned by
// the preprocessing pass; after Freeze every method that would mutate
// it returns an error.
type Base struct {
	mu       sync.RWMutex
	frozen   bool
	facts    eventmodel.PreprocessingFacts
	catalogs map[string]MessageCatalog // EventLog message-string catalogs, keyed by provider name
}

// MessageCatalog maps a numeric event/message ID to its format string,
// as extracted from a Windows EventLog message resource.
type MessageCatalog map[uint32]string

// New creates an empty, unfrozen knowledge base.
func New() *Base {
	return &Base{
		facts:    eventmodel.PreprocessingFacts{EnvVariables: make(map[string]string)},
		catalogs: make(map[string]MessageCatalog),
	}
}

// SetOSFamily, SetHostname, SetTimeZone, SetCodePage populate the
// scalar facts during preprocessing.
func (b *Base) SetOSFamily(v string) error { return b.set(func() { b.facts.OSFamily = v }) }
func (b *Base) SetHostname(v string) error { return b.set(func() { b.facts.Hostname = v }) }
func (b *Base) SetTimeZone(v string) error { return b.set(func() { b.facts.TimeZone = v }) }
func (b *Base) SetCodePage(v string) error { return b.set(func() { b.facts.CodePage = v }) }

// AddUser records one discovered user account.
func (b *Base) AddUser(user eventmodel.UserFact) error {
	return b.set(func() { b.facts.Users = append(b.facts.Users, user) })
}

// SetEnvVariable records one Windows environment variable.
func (b *Base) SetEnvVariable(key, value string) error {
	return b.set(func() { b.facts.EnvVariables[key] = value })
}

// AddMessageCatalog registers a provider's EventLog message catalog.
func (b *Base) AddMessageCatalog(provider string, catalog MessageCatalog) error {
	return b.set(func() { b.catalogs[provider] = catalog })
}

func (b *Base) set(mutate func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return fmt.Errorf("knowledgebase: cannot mutate after Freeze")
	}
	mutate()
	return nil
}

// Freeze stops further mutation. Subsequent Set* calls return an
// error. Idempotent.
func (b *Base) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
}

// Facts returns a copy of the scalar preprocessing facts, safe to
// attach to an eventmodel.Session.
func (b *Base) Facts() eventmodel.PreprocessingFacts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	facts := b.facts
	facts.Users = append([]eventmodel.UserFact(nil), b.facts.Users...)
	facts.EnvVariables = make(map[string]string, len(b.facts.EnvVariables))
	for k, v := range b.facts.EnvVariables {
		facts.EnvVariables[k] = v
	}
	return facts
}

// MessageFormat looks up a message-catalog entry by provider and ID,
// used by parsers that render EventLog records.
func (b *Base) MessageFormat(provider string, id uint32) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cat, ok := b.catalogs[provider]
	if !ok {
		return "", false
	}
	format, ok := cat[id]
	return format, ok
}

// serialForm is what crosses the process boundary to a worker.
type serialForm struct {
	Facts    eventmodel.PreprocessingFacts `json:"facts"`
	Catalogs map[string]MessageCatalog     `json:"catalogs"`
}

// Serialize encodes the frozen base for handoff to a worker process.
// Returns an error if the base has not been frozen — workers must
// never observe a knowledge base that might still change.
func (b *Base) Serialize() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.frozen {
		return nil, fmt.Errorf("knowledgebase: refusing to serialize an unfrozen base")
	}
	return json.Marshal(serialForm{Facts: b.facts, Catalogs: b.catalogs})
}

// Deserialize reconstructs a frozen, read-only Base from Serialize's
// output, as a worker process does at startup.
func Deserialize(data []byte) (*Base, error) {
	var sf serialForm
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("knowledgebase: deserialize: %w", err)
	}
	b := &Base{facts: sf.Facts, catalogs: sf.Catalogs, frozen: true}
	if b.catalogs == nil {
		b.catalogs = make(map[string]MessageCatalog)
	}
	return b, nil
}
