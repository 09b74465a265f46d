// Package app wires the extraction engine's components into one
// runnable session: collector, worker pool, task manager, and session
// store, plus the metrics and status surfaces spec.md §4.10 and §6
// name. *Grounded on* the teacher's internal/app.App lifecycle shape
// (New/Run/graceful-shutdown over signal.Notify, one http.Server for
// side-channel endpoints), narrowed from a long-running log-capture
// daemon to a one-shot extraction session that exits once every
// source has been collected, parsed, and merged.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/log2timeline/plaso-sub000/internal/collector"
	"github.com/log2timeline/plaso-sub000/internal/knowledgebase"
	"github.com/log2timeline/plaso-sub000/internal/metrics"
	"github.com/log2timeline/plaso-sub000/internal/parsers"
	"github.com/log2timeline/plaso-sub000/internal/parsers/builtin"
	"github.com/log2timeline/plaso-sub000/internal/status"
	"github.com/log2timeline/plaso-sub000/internal/store"
	"github.com/log2timeline/plaso-sub000/internal/taskmanager"
	"github.com/log2timeline/plaso-sub000/internal/vfs"
	"github.com/log2timeline/plaso-sub000/internal/worker"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
	"github.com/log2timeline/plaso-sub000/pkg/signature"
)

// Config configures one extraction Session.
type Config struct {
	WorkDir     string
	StorePath   string
	StoreCodec  store.Codec
	WorkerCount int

	IncludePatterns []string
	ExcludePatterns []string
	ParserFilter    string
	EnableVSS       bool

	CollectorWatermarks collector.Config
	TaskManager         taskmanager.Config
	WorkerConfig        worker.Config

	MetricsAddr string
}

func (c *Config) applyDefaults() {
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.StorePath == "" {
		c.StorePath = filepath.Join(c.WorkDir, "session.plaso")
	}
	if c.StoreCodec == "" {
		c.StoreCodec = store.CodecZstd
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
}

// Session runs one extraction end to end: walk the sources, dispatch
// each admitted item through a worker pool, and merge completed tasks
// into the session store as they finish.
type Session struct {
	config    Config
	logger    *logrus.Logger
	sessionID uuid.UUID

	adapter   *vfs.Adapter
	tasks     *taskmanager.Manager
	collector *collector.Collector
	registry  *parsers.Registry
	filter    *parsers.Filter
	scanner   *signature.Scanner
	kb        *knowledgebase.Base

	statusTracker *status.Tracker
	sessionRec    *eventmodel.Session

	sessionStore *store.SessionStore
	metricsSrv   *metrics.Server

	mu         sync.Mutex
	taskStores map[string]*store.TaskStore // taskID -> pending-merge store, held open
}

// New builds a Session ready to Run against one or more source roots.
// Construction wires the same collaborators internal/worker's tests
// build by hand: a registry with the builtin parser set registered,
// an include/exclude parser filter, and a frozen (empty) knowledge
// base, since this engine does not yet implement a preprocessing pass
// that would populate it from the source itself.
func New(config Config, source, commandLine string, logger *logrus.Logger) (*Session, error) {
	config.applyDefaults()
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(config.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("app: create work dir: %w", err)
	}

	adapter := vfs.NewAdapter()
	vfs.RegisterDefaults(adapter, nil)

	scanner := signature.New(0, 0)
	registry := parsers.NewRegistry()
	if err := builtin.RegisterAll(registry, scanner); err != nil {
		return nil, fmt.Errorf("app: register builtin parsers: %w", err)
	}
	filter, err := parsers.ParseFilter(config.ParserFilter, builtin.Presets(), registry.Names())
	if err != nil {
		return nil, fmt.Errorf("app: parse filter: %w", err)
	}

	kb := knowledgebase.New()
	kb.Freeze()

	tasks := taskmanager.New(config.TaskManager, logger)

	collectorFilter, err := collector.NewFilter(config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		tasks.Close()
		return nil, fmt.Errorf("app: build collector filter: %w", err)
	}

	sessionID := eventmodel.NewSessionID()
	config.CollectorWatermarks.EnableVSS = config.EnableVSS
	coll := collector.New(adapter, tasks, sessionID, collectorFilter, config.CollectorWatermarks, logger)

	sessionStore, err := store.NewSessionStore(config.StorePath, sessionID, config.StoreCodec)
	if err != nil {
		tasks.Close()
		return nil, fmt.Errorf("app: create session store: %w", err)
	}

	tracker := status.New(sessionID, tasks.Counts)

	var metricsSrv *metrics.Server
	if config.MetricsAddr != "" {
		metricsSrv = metrics.NewServer(config.MetricsAddr, logger)
	}

	return &Session{
		config:        config,
		logger:        logger,
		sessionID:     sessionID,
		adapter:       adapter,
		tasks:         tasks,
		collector:     coll,
		registry:      registry,
		filter:        filter,
		scanner:       scanner,
		kb:            kb,
		statusTracker: tracker,
		sessionRec:    eventmodel.NewSession(source, commandLine, config.ParserFilter),
		sessionStore:  sessionStore,
		metricsSrv:    metricsSrv,
		taskStores:    make(map[string]*store.TaskStore),
	}, nil
}

// Status returns this session's status tracker.
func (s *Session) Status() *status.Tracker { return s.statusTracker }

// Record returns the session-scope container (spec.md §3.8), useful
// for the CLI's info command once Run has completed.
func (s *Session) Record() *eventmodel.Session { return s.sessionRec }

// Run walks roots, drives the worker pool and merge loop to
// completion, and returns the final session-wide counters. It blocks
// until every collected task has reached COMPLETED/ABANDONED and been
// merged, or ctx is canceled.
func (s *Session) Run(ctx context.Context, roots []*pathspec.Spec) (eventmodel.Counters, error) {
	if s.metricsSrv != nil {
		s.metricsSrv.Start()
		defer s.metricsSrv.Stop(context.Background())
	}
	defer s.tasks.Close()
	defer s.sessionStore.Close()

	var walkWG sync.WaitGroup
	walkErrs := make(chan error, len(roots))
	for _, root := range roots {
		walkWG.Add(1)
		go func(root *pathspec.Spec) {
			defer walkWG.Done()
			if err := s.collector.Walk(root, nil); err != nil {
				walkErrs <- err
			}
		}(root)
	}

	walkDone := make(chan struct{})
	go func() {
		walkWG.Wait()
		close(walkDone)
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < s.config.WorkerCount; i++ {
		workerWG.Add(1)
		go func(id int) {
			defer workerWG.Done()
			s.runWorkerLoop(ctx, id, walkDone)
		}(i)
	}

	workersDone := make(chan struct{})
	go func() {
		workerWG.Wait()
		close(workersDone)
	}()

	mergeDone := make(chan struct{})
	go func() {
		s.runMergeLoop(ctx, workersDone)
		close(mergeDone)
	}()

	select {
	case <-ctx.Done():
		<-mergeDone
		return s.sessionStore.Counters(), ctx.Err()
	case <-mergeDone:
	}

	select {
	case err := <-walkErrs:
		return s.sessionStore.Counters(), err
	default:
	}

	s.sessionRec.Complete()
	return s.sessionStore.Counters(), nil
}

// runWorkerLoop pops queued tasks until the walk has finished and no
// work remains, processing each through a dedicated internal/worker.
// Worker against a fresh per-task store (spec.md §4.7, §4.9). It
// records where each finished task's store lives so runMergeLoop can
// fold it into the session store; it never merges directly itself,
// since eventmodel.Task only reaches the to-merge set through
// taskmanager.Manager.Complete and that set is the single source of
// truth for "what still needs merging".
func (s *Session) runWorkerLoop(ctx context.Context, id int, walkDone <-chan struct{}) {
	w := worker.New(id, s.adapter, s.scanner, s.registry, s.filter, s.kb, s.config.WorkerConfig, s.logger)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task := s.tasks.PopQueued()
		if task == nil {
			walkFinished := false
			select {
			case <-walkDone:
				walkFinished = true
			default:
			}
			queued, processing, _, _ := s.tasks.Counts()
			if walkFinished && queued == 0 && processing == 0 {
				return
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}
		s.statusTracker.RecordSourceStarted()

		spec, ok := s.collector.Lookup(task.TaskID.String())
		if !ok {
			s.logger.WithField("task_id", task.TaskID).Error("worker: no path-spec recorded for task")
			_ = s.tasks.Complete(task.TaskID.String())
			continue
		}

		taskStorePath := filepath.Join(s.config.WorkDir, task.TaskID.String()+".plaso-task")
		taskStore, err := store.NewTaskStore(taskStorePath, s.config.StoreCodec)
		if err != nil {
			s.logger.WithError(err).Error("worker: failed to open task store")
			_ = s.tasks.Complete(task.TaskID.String())
			continue
		}

		w.Process(spec, taskStore)
		if err := taskStore.Sync(); err != nil {
			s.logger.WithError(err).Warn("worker: task store sync failed")
		}

		s.mu.Lock()
		s.taskStores[task.TaskID.String()] = taskStore
		s.mu.Unlock()

		if err := s.tasks.Complete(task.TaskID.String()); err != nil {
			s.logger.WithError(err).Error("worker: failed to mark task complete")
		}
	}
}

// runMergeLoop is the session's single merge authority: it pops the
// oldest to-merge task (preserving the FIFO order spec.md §4.8
// requires), folds its store into the session store, and repeats
// until the walk and every worker have finished and no task remains
// to merge.
func (s *Session) runMergeLoop(ctx context.Context, workersDone <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task := s.tasks.NextToMerge()
		if task == nil {
			select {
			case <-workersDone:
				_, _, toMerge, _ := s.tasks.Counts()
				if toMerge == 0 {
					return
				}
			default:
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}

		taskID := task.TaskID.String()
		s.mu.Lock()
		taskStore, ok := s.taskStores[taskID]
		delete(s.taskStores, taskID)
		s.mu.Unlock()
		if !ok {
			continue
		}

		spec, ok := s.collector.Lookup(taskID)
		if !ok {
			s.logger.WithField("task_id", taskID).Error("merge: no path-spec recorded for task")
			continue
		}

		s.mergeOne(taskID, spec, taskStore)
	}
}

// mergeOne reads back one completed task's store and folds it into
// the session store, discarding the per-task file once merged
// (spec.md §4.9's per-task-store-is-disposable-after-merge contract).
func (s *Session) mergeOne(taskID string, spec *pathspec.Spec, taskStore *store.TaskStore) {
	mergeStart := time.Now()

	eventData, events, warnings := taskStore.Contents()
	streamHash := ""
	if streams := taskStore.EventDataStreams(); len(streams) > 0 {
		streamHash = streams[0].SHA256
	}

	if err := s.sessionStore.MergeTask(spec.Comparable(), streamHash, eventData, events, warnings); err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).Error("merge failed")
		return
	}

	for _, d := range eventData {
		metrics.EventsProducedTotal.WithLabelValues(d.DataType).Inc()
	}
	for _, warn := range warnings {
		metrics.WarningsTotal.WithLabelValues(warn.ParserName).Inc()
	}
	metrics.RecordMergeLag(time.Since(mergeStart))
	s.statusTracker.RecordEvents(int64(len(events)))
	s.statusTracker.RecordWarnings(int64(len(warnings)))
	s.statusTracker.RecordMerge()

	if err := taskStore.Discard(); err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).Warn("failed to discard merged task store")
	}

	queued, processing, toMerge, abandoned := s.tasks.Counts()
	metrics.RecordTaskCounts(queued, processing, toMerge, abandoned)
}
