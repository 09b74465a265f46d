package worker

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/log2timeline/plaso-sub000/internal/knowledgebase"
	"github.com/log2timeline/plaso-sub000/internal/parsers"
	"github.com/log2timeline/plaso-sub000/internal/store"
	"github.com/log2timeline/plaso-sub000/internal/vfs"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
	"github.com/log2timeline/plaso-sub000/pkg/signature"
)

// Config tunes one Worker's behavior.
type Config struct {
	ComputeHashes      bool
	MemoryCeilingBytes uint64
	FallbackParser     string
	Breakers           BreakerConfig
}

func (c *Config) applyDefaults() {
	if c.MemoryCeilingBytes == 0 {
		c.MemoryCeilingBytes = 2 << 30 // 2 GiB, spec.md §4.7 default
	}
	if c.FallbackParser == "" {
		c.FallbackParser = "filestat"
	}
}

// Worker runs the per-item state machine against one (task, path-spec)
// work item at a time. *Grounded on* pkg/workerpool/worker_pool.go's
// Worker/executeTask shape, narrowed from a generic task-executor to
// the fixed open/hash/scan/parse pipeline spec.md §4.7 names.
type Worker struct {
	ID       int
	adapter  *vfs.Adapter
	scanner  *signature.Scanner
	registry *parsers.Registry
	filter   *parsers.Filter
	kb       *knowledgebase.Base
	config   Config
	breakers *ParserBreakers
	logger   *logrus.Logger
}

// New creates a Worker bound to the shared, read-only collaborators
// every worker in a pool uses: the VFS adapter, signature scanner,
// parser registry/filter, and frozen knowledge base.
func New(id int, adapter *vfs.Adapter, scanner *signature.Scanner, registry *parsers.Registry, filter *parsers.Filter, kb *knowledgebase.Base, config Config, logger *logrus.Logger) *Worker {
	config.applyDefaults()
	if logger == nil {
		logger = logrus.New()
	}
	return &Worker{
		ID:       id,
		adapter:  adapter,
		scanner:  scanner,
		registry: registry,
		filter:   filter,
		kb:       kb,
		config:   config,
		breakers: NewParserBreakers(config.Breakers),
		logger:   logger,
	}
}

// Result reports the outcome of processing one item.
type Result struct {
	FinalState State
	Attempts   []parsers.AttemptResult
	Children   []*pathspec.Spec
}

// Process runs the full state machine for one item against sink,
// implementing spec.md §4.7 steps 1-6. On failure to open the entry
// it emits a warning and reports StateDone with zero events, matching
// "mark task COMPLETED with zero events" (the caller still transitions
// the eventmodel.Task to COMPLETED; Process itself never touches task
// manager state).
func (w *Worker) Process(spec *pathspec.Spec, sink *store.TaskStore) Result {
	w.logger.WithField("path_spec", spec.Comparable()).Debug("worker: RECEIVED")

	entry, err := w.adapter.Open(spec)
	if err != nil {
		sink.WriteWarning(eventmodel.Warning{
			PathSpec: spec.String(),
			Message:  err.Error(),
			Code:     "open_failed",
		})
		return Result{FinalState: StateDone}
	}

	if w.adapter.StatOf(entry).Kind == vfs.KindDirectory {
		// directories only ever produce a filestat-style event, handled
		// by the fallback parser below with no signature scan needed.
		return w.runParsers(spec, entry, sink, nil)
	}

	w.logger.WithField("path_spec", spec.Comparable()).Debug("worker: HASHING")
	if w.config.ComputeHashes {
		w.hashStream(spec, entry, sink)
	}

	if w.memoryExceeded() {
		sink.WriteWarning(eventmodel.Warning{
			PathSpec: spec.String(),
			Message:  fmt.Sprintf("memory ceiling %d bytes exceeded before scanning", w.config.MemoryCeilingBytes),
			Code:     "memory_ceiling",
		})
		return Result{FinalState: StateWarning}
	}

	w.logger.WithField("path_spec", spec.Comparable()).Debug("worker: SCANNING")
	ranked := w.scan(entry)

	return w.runParsers(spec, entry, sink, ranked)
}

func (w *Worker) hashStream(spec *pathspec.Spec, entry *vfs.FileEntry, sink *store.TaskStore) {
	size := w.adapter.StatOf(entry).Size
	data, err := entry.ReadAt(0, int(size))
	if err != nil {
		sink.WriteWarning(eventmodel.Warning{PathSpec: spec.String(), Message: err.Error(), Code: "hash_read_failed"})
		return
	}
	md5Sum := md5.Sum(data)
	sha1Sum := sha1.Sum(data)
	sha256Sum := sha256.Sum256(data)
	sink.WriteEventDataStream(eventmodel.EventDataStream{
		PathSpec:      spec.String(),
		FileEntryType: string(w.adapter.StatOf(entry).Kind),
		MD5:           hex.EncodeToString(md5Sum[:]),
		SHA1:          hex.EncodeToString(sha1Sum[:]),
		SHA256:        hex.EncodeToString(sha256Sum[:]),
	})
}

func (w *Worker) scan(entry *vfs.FileEntry) []string {
	size := w.adapter.StatOf(entry).Size
	prefixLen := w.scanner.PrefixBytes()
	if int64(prefixLen) > size {
		prefixLen = int(size)
	}
	prefix, err := entry.ReadAt(0, prefixLen)
	if err != nil {
		prefix = nil
	}

	suffixLen := w.scanner.SuffixBytes()
	if int64(suffixLen) > size {
		suffixLen = int(size)
	}
	suffixOffset := size - int64(suffixLen)
	if suffixOffset < 0 {
		suffixOffset = 0
	}
	suffix, err := entry.ReadAt(suffixOffset, suffixLen)
	if err != nil {
		suffix = nil
	}

	matches := w.scanner.Scan(prefix, suffix, size)
	return signature.RankedParserNames(matches)
}

// runParsers dispatches to the ranked candidates (minus any parser
// whose circuit breaker is currently open), updates each dispatched
// parser's breaker from the outcome, and collects any child
// path-specs the parsers surfaced (spec.md §4.7 step 6).
func (w *Worker) runParsers(spec *pathspec.Spec, entry *vfs.FileEntry, sink *store.TaskStore, ranked []string) Result {
	eligible := make([]string, 0, len(ranked))
	for _, name := range ranked {
		if w.breakers.Allows(name) {
			eligible = append(eligible, name)
		}
	}

	results := parsers.Dispatch(w.registry, w.filter, eligible, w.config.FallbackParser, entry, spec, w.kb, sink)

	finalState := StateDone
	for _, r := range results {
		switch r.Outcome {
		case parsers.OutcomeSuccess:
			w.breakers.RecordSuccess(r.ParserName)
		case parsers.OutcomeWarning:
			w.breakers.RecordFailure(r.ParserName)
			finalState = StateWarning
		case parsers.OutcomeUnableToParse:
			// not a parser failure; the parser correctly declined this item
		}
	}

	return Result{FinalState: finalState, Attempts: results, Children: sink.Children()}
}

// memoryExceeded reports whether this worker process's current RSS is
// at or above the configured ceiling (spec.md §4.7: "A per-worker
// memory ceiling MAY abort parsing of the current item with a
// warning; the worker process then continues").
func (w *Worker) memoryExceeded() bool {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return false
	}
	info, err := p.MemoryInfo()
	if err != nil || info == nil {
		return false
	}
	return info.RSS >= w.config.MemoryCeilingBytes
}

// HeartbeatLoop calls beat on every tick until stop is closed. The
// foreman (internal/app) runs this alongside a long Process call so
// the task manager's abandonment sweep sees liveness during slow
// parses.
func HeartbeatLoop(interval time.Duration, beat func(), stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			beat()
		case <-stop:
			return
		}
	}
}
