// Package collector implements the source walk (spec.md §4.6, C6):
// starting from a user-specified root path-spec, it descends volumes,
// file systems, VSS snapshot subtrees, and archive/compressed streams
// via internal/vfs, applies a collection filter, and emits one work
// item per regular file entry into the task manager — paced by the
// task manager's queued+to_merge backpressure watermark.
package collector

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/log2timeline/plaso-sub000/internal/metrics"
	"github.com/log2timeline/plaso-sub000/internal/taskmanager"
	"github.com/log2timeline/plaso-sub000/internal/vfs"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

// backpressurePollInterval is how often waitForBackpressure rechecks
// the task manager's queue depth while paused.
const backpressurePollInterval = 50 * time.Millisecond

func backpressureWait() { time.Sleep(backpressurePollInterval) }

// Config holds the collector's tunables. *Grounded on*
// pkg/ratelimit.Config's explicit high/low threshold fields, narrowed
// from an adaptive-RPS algorithm to the plain watermark gate spec.md
// §4.8 specifies.
type Config struct {
	EnableVSS             bool `yaml:"enable_vss"`
	EmitDirectoryEvents   bool `yaml:"emit_directory_events"`
	HighWatermark         int  `yaml:"high_watermark"`
	LowWatermark          int  `yaml:"low_watermark"`
}

func (c *Config) applyDefaults() {
	if c.HighWatermark == 0 {
		c.HighWatermark = 1000
	}
	if c.LowWatermark == 0 {
		c.LowWatermark = c.HighWatermark / 2
	}
}

// WorkItem pairs the admitted task with the resolved path-spec a
// worker needs to actually open the entry; eventmodel.Task only
// carries the path-spec's comparable string form, so the collector
// keeps the live *pathspec.Spec in a side table for worker lookup.
type WorkItem struct {
	Task      *eventmodel.Task
	PathSpec  *pathspec.Spec
	Directory bool
}

// Collector walks path-spec trees via the VFS adapter, emitting
// WorkItems into the task manager.
type Collector struct {
	adapter *vfs.Adapter
	tasks   *taskmanager.Manager
	filter  *Filter
	logger  *logrus.Logger
	config  Config

	sessionID uuid.UUID

	mu       sync.Mutex
	bySpec   map[string]*pathspec.Spec // task-id -> resolved path-spec
	paused   bool
	skipped  int64
	emitted  int64
}

// New creates a Collector. filter may be nil to collect everything.
func New(adapter *vfs.Adapter, tasks *taskmanager.Manager, sessionID uuid.UUID, filter *Filter, config Config, logger *logrus.Logger) *Collector {
	config.applyDefaults()
	if logger == nil {
		logger = logrus.New()
	}
	return &Collector{
		adapter:   adapter,
		tasks:     tasks,
		filter:    filter,
		logger:    logger,
		config:    config,
		sessionID: sessionID,
		bySpec:    make(map[string]*pathspec.Spec),
	}
}

// Lookup resolves a task ID back to the path-spec a worker should
// open (the side channel eventmodel.Task's string PathSpec can't
// carry on its own).
func (c *Collector) Lookup(taskID string) (*pathspec.Spec, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.bySpec[taskID]
	return s, ok
}

// Stats reports running collector counters.
func (c *Collector) Stats() (emitted, skipped int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emitted, c.skipped
}

// Walk descends root and every descendant, emitting one work item per
// regular file entry (spec.md §4.6). insideContainer is carried
// through recursive calls so the collection filter, which matches
// only source-level paths, is skipped once the walk has descended
// into an archive or VSS subtree (unless the node explicitly opts in
// via the "filtered" attribute).
func (c *Collector) Walk(root *pathspec.Spec, parentTask *uuid.UUID) error {
	return c.walk(root, parentTask, false)
}

func (c *Collector) walk(spec *pathspec.Spec, parentTask *uuid.UUID, insideContainer bool) error {
	if spec.Type() == pathspec.TypeVSHADOW && !c.config.EnableVSS {
		return nil
	}

	entry, err := c.adapter.Open(spec)
	if err != nil {
		c.logger.WithError(err).WithField("path_spec", spec.Comparable()).Warn("collector: failed to open path-spec")
		return nil
	}

	filterApplies := !insideContainer || spec.Attributes()["filtered"] == "true"
	nextInsideContainer := insideContainer || isContainerType(spec.Type())

	switch c.adapter.StatOf(entry).Kind {
	case vfs.KindDirectory:
		if c.config.EmitDirectoryEvents {
			if c.admitted(spec, filterApplies) {
				c.emit(spec, parentTask, true)
			}
		}
		children, err := c.adapter.IterChildren(entry)
		if err != nil {
			c.logger.WithError(err).WithField("path_spec", spec.Comparable()).Warn("collector: failed to list children")
			return nil
		}
		for _, child := range children {
			if err := c.walk(child.PathSpec, parentTask, nextInsideContainer); err != nil {
				return err
			}
		}
		return nil
	default:
		if !c.admitted(spec, filterApplies) {
			c.mu.Lock()
			c.skipped++
			c.mu.Unlock()
			return nil
		}
		c.waitForBackpressure()
		return c.emit(spec, parentTask, false)
	}
}

func (c *Collector) admitted(spec *pathspec.Spec, filterApplies bool) bool {
	if !filterApplies || c.filter == nil {
		return true
	}
	return c.filter.Allows(spec.Comparable())
}

func (c *Collector) emit(spec *pathspec.Spec, parentTask *uuid.UUID, directory bool) error {
	task := eventmodel.NewTask(c.sessionID, spec.Comparable(), parentTask)
	if err := c.tasks.Enqueue(task, spec.Comparable()); err != nil {
		return fmt.Errorf("collector: enqueue %s: %w", spec.Comparable(), err)
	}
	c.mu.Lock()
	c.bySpec[task.TaskID.String()] = spec
	c.emitted++
	c.mu.Unlock()
	return nil
}

// waitForBackpressure blocks emission while |queued|+|to_merge| is at
// or above the high watermark, resuming once it drops to the low
// watermark (spec.md §4.8).
func (c *Collector) waitForBackpressure() {
	for {
		queued, _, toMerge, _ := c.tasks.Counts()
		depth := queued + toMerge
		c.mu.Lock()
		if depth >= c.config.HighWatermark {
			c.paused = true
		} else if depth <= c.config.LowWatermark {
			c.paused = false
		}
		paused := c.paused
		c.mu.Unlock()
		if paused {
			metrics.BackpressureLevel.Set(1)
		} else {
			metrics.BackpressureLevel.Set(0)
		}
		if !paused {
			return
		}
		backpressureWait()
	}
}

func isContainerType(t pathspec.Type) bool {
	switch t {
	case pathspec.TypeCompressedStream, pathspec.TypeGZIP, pathspec.TypeBZIP2, pathspec.TypeXZ,
		pathspec.TypeTAR, pathspec.TypeZIP, pathspec.TypeEncodedStream, pathspec.TypeVSHADOW:
		return true
	default:
		return false
	}
}
