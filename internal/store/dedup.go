package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DedupKey identifies content for VSS de-duplication: a fast xxhash
// candidate key, confirmed against the authoritative sha256 before a
// drop is counted (spec.md §4.9, SPEC_FULL.md §C). Grounded on
// pkg/deduplication.DeduplicationManager's cache-then-confirm shape,
// narrowed from a TTL/LRU cache to a session-scoped content-hash set
// since VSS dedup needs no expiry within one session.
type DedupKey struct {
	fast uint64
	sha  string
}

// NewDedupKey hashes content with both xxhash (fast candidate lookup)
// and sha256 (authoritative confirmation).
func NewDedupKey(content []byte) DedupKey {
	sum := sha256.Sum256(content)
	return DedupKey{fast: xxhash.Sum64(content), sha: hex.EncodeToString(sum[:])}
}

// VSSDedupSet tracks every event-data-stream content hash already
// merged into the session store, so identical copies across VSS
// snapshots (or the live filesystem) are counted once (spec.md §4.9,
// scenario S2).
type VSSDedupSet struct {
	mu      sync.Mutex
	fast    map[uint64][]string // xxhash -> candidate sha256 list (handles xxhash collisions)
	seen    map[string]bool     // confirmed sha256 set
	dropped int64
}

// NewVSSDedupSet creates an empty dedup set.
func NewVSSDedupSet() *VSSDedupSet {
	return &VSSDedupSet{fast: make(map[uint64][]string), seen: make(map[string]bool)}
}

// CheckAndAdd reports whether content has already been merged. If not,
// it is recorded as seen and false is returned (proceed with merge).
// If it has, the internal dropped counter increments and true is
// returned (skip this copy).
func (s *VSSDedupSet) CheckAndAdd(content []byte) bool {
	key := NewDedupKey(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, candidate := range s.fast[key.fast] {
		if candidate == key.sha {
			s.dropped++
			return true
		}
	}
	s.fast[key.fast] = append(s.fast[key.fast], key.sha)
	s.seen[key.sha] = true
	return false
}

// Dropped reports the vss_dedup_dropped counter (spec.md §8 S2).
func (s *VSSDedupSet) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
