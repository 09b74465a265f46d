// Package taskmanager tracks every work item's lifecycle across the
// four disjoint sets spec.md §4.8 (C8) names — queued, processing,
// to-merge, abandoned — and enforces the at-most-one-concurrent-parse
// invariant by admitting only one task per (path-spec, ranked-parser-
// list) tuple.
package taskmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/log2timeline/plaso-sub000/pkg/errors"
	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
)

// Config holds the task manager's tunables. *Grounded on*
// pkg/task_manager.Config, extended with the abandonment-threshold
// inputs spec.md §4.7/§9 requires.
type Config struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	MinHeartbeatTimeout time.Duration `yaml:"min_heartbeat_timeout"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MinHeartbeatTimeout == 0 {
		c.MinHeartbeatTimeout = 5 * time.Minute
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 1 * time.Minute
	}
}

// ComputeAbandonmentThreshold implements the SPEC_FULL.md §D formula:
// heartbeat_timeout = max(5 * last_observed_item_latency, minimum).
func ComputeAbandonmentThreshold(lastObservedLatency, minimum time.Duration) time.Duration {
	threshold := 5 * lastObservedLatency
	if threshold < minimum {
		return minimum
	}
	return threshold
}

// entry tracks one task's bookkeeping state alongside the
// eventmodel.Task value it wraps.
type entry struct {
	task            *eventmodel.Task
	dispatchKey     string // (path-spec comparable, ranked-parser-list) admission key
	lastHeartbeat   time.Time
	startedAt       time.Time
	lastLatency     time.Duration
}

// Manager tracks tasks across eventmodel.TaskStatus's four live sets.
// *Grounded on* pkg/task_manager.taskManager's mutex-guarded map plus
// cleanup-loop shape, reworked from "one goroutine per task" to
// "one entry per dispatched path-spec" bookkeeping, since actual
// parsing happens in worker processes this manager only tracks.
type Manager struct {
	config Config
	logger *logrus.Logger

	mu         sync.RWMutex
	admitted   map[string]bool // dispatch keys currently queued or processing
	queued     map[string]*entry
	processing map[string]*entry
	toMerge    []*entry // FIFO merge order (spec.md §4.8)
	abandoned  map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Manager and starts its background abandonment sweep.
func New(config Config, logger *logrus.Logger) *Manager {
	config.applyDefaults()
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:     config,
		logger:     logger,
		admitted:   make(map[string]bool),
		queued:     make(map[string]*entry),
		processing: make(map[string]*entry),
		abandoned:  make(map[string]*entry),
		ctx:        ctx,
		cancel:     cancel,
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sweepLoop()
	}()
	return m
}

// Enqueue admits a new task keyed by (path-spec comparable, ranked-
// parser-list), refusing a duplicate admission for the same key while
// it is queued or processing (spec.md §4.4 "At-most-one dispatch").
func (m *Manager) Enqueue(t *eventmodel.Task, dispatchKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.admitted[dispatchKey] {
		return errors.New(errors.KindConfigError, "taskmanager", "enqueue",
			fmt.Sprintf("dispatch key %q already admitted", dispatchKey))
	}
	if !eventmodel.CanTransition(t.Status, eventmodel.TaskQueued) {
		return fmt.Errorf("taskmanager: task %s cannot transition to QUEUED from %s", t.TaskID, t.Status)
	}
	t.Status = eventmodel.TaskQueued
	m.admitted[dispatchKey] = true
	m.queued[t.TaskID.String()] = &entry{task: t, dispatchKey: dispatchKey}
	return nil
}

// PopQueued atomically moves an arbitrary queued task to processing
// and returns it, or nil if none are queued. Unlike NextToMerge this
// has no ordering guarantee: spec.md §4.8 only requires merge order to
// be FIFO, not extraction order. Combining the pop with the QUEUED ->
// PROCESSING transition avoids a race where two workers could both
// observe and claim the same queued entry.
func (m *Manager) PopQueued() *eventmodel.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.queued {
		if !eventmodel.CanTransition(e.task.Status, eventmodel.TaskProcessing) {
			continue
		}
		e.task.Status = eventmodel.TaskProcessing
		now := time.Now()
		e.startedAt = now
		e.lastHeartbeat = now
		delete(m.queued, id)
		m.processing[id] = e
		return e.task
	}
	return nil
}

// StartProcessing moves a task from queued to processing when a
// worker picks it up.
func (m *Manager) StartProcessing(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.queued[taskID]
	if !ok {
		return fmt.Errorf("taskmanager: task %s is not queued", taskID)
	}
	if !eventmodel.CanTransition(e.task.Status, eventmodel.TaskProcessing) {
		return fmt.Errorf("taskmanager: task %s cannot transition to PROCESSING from %s", taskID, e.task.Status)
	}
	e.task.Status = eventmodel.TaskProcessing
	now := time.Now()
	e.startedAt = now
	e.lastHeartbeat = now
	delete(m.queued, taskID)
	m.processing[taskID] = e
	return nil
}

// Heartbeat records liveness for a processing task.
func (m *Manager) Heartbeat(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.processing[taskID]
	if !ok {
		return fmt.Errorf("taskmanager: task %s is not processing", taskID)
	}
	e.lastHeartbeat = time.Now()
	return nil
}

// Complete moves a processing task to the to-merge set, appended to
// preserve FIFO merge order (spec.md §4.8).
func (m *Manager) Complete(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.processing[taskID]
	if !ok {
		return fmt.Errorf("taskmanager: task %s is not processing", taskID)
	}
	if !eventmodel.CanTransition(e.task.Status, eventmodel.TaskCompleted) {
		return fmt.Errorf("taskmanager: task %s cannot transition to COMPLETED from %s", taskID, e.task.Status)
	}
	e.task.Status = eventmodel.TaskCompleted
	e.lastLatency = time.Since(e.startedAt)
	delete(m.processing, taskID)
	delete(m.admitted, e.dispatchKey)
	m.toMerge = append(m.toMerge, e)
	return nil
}

// NextToMerge pops the oldest to-merge task, or nil if none are
// pending (spec.md §4.8 FIFO order).
func (m *Manager) NextToMerge() *eventmodel.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toMerge) == 0 {
		return nil
	}
	e := m.toMerge[0]
	m.toMerge = m.toMerge[1:]
	e.task.Status = eventmodel.TaskMerged
	now := time.Now()
	e.task.MergedAt = &now
	return e.task
}

// Abandon marks a processing task ABANDONED (missed heartbeat beyond
// the abandonment threshold, or an explicit eventmodel.Warning of kind
// WorkerLost) and frees its dispatch key so it can be rescheduled.
func (m *Manager) Abandon(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.processing[taskID]
	if !ok {
		return fmt.Errorf("taskmanager: task %s is not processing", taskID)
	}
	e.task.Status = eventmodel.TaskAbandoned
	now := time.Now()
	e.task.AbandonedAt = &now
	delete(m.processing, taskID)
	delete(m.admitted, e.dispatchKey)
	m.abandoned[taskID] = e
	m.logger.WithField("task_id", taskID).Warn("task abandoned: heartbeat missed beyond threshold")
	return nil
}

// Reschedule re-admits an abandoned task's dispatch key, as the
// foreman does after spawning a replacement worker.
func (m *Manager) Reschedule(taskID string) (*eventmodel.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.abandoned[taskID]
	if !ok {
		return nil, fmt.Errorf("taskmanager: task %s is not abandoned", taskID)
	}
	delete(m.abandoned, taskID)
	newTask := e.task.Reschedule()
	newTask.Status = eventmodel.TaskQueued
	m.admitted[e.dispatchKey] = true
	m.queued[newTask.TaskID.String()] = &entry{task: newTask, dispatchKey: e.dispatchKey}
	return newTask, nil
}

// sweepLoop periodically abandons processing tasks whose heartbeat
// has exceeded this task manager's abandonment threshold.
func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweepAbandoned()
		}
	}
}

func (m *Manager) sweepAbandoned() {
	m.mu.Lock()
	now := time.Now()
	var toAbandon []string
	for id, e := range m.processing {
		threshold := ComputeAbandonmentThreshold(e.lastLatency, m.config.MinHeartbeatTimeout)
		if now.Sub(e.lastHeartbeat) > threshold {
			toAbandon = append(toAbandon, id)
		}
	}
	m.mu.Unlock()

	for _, id := range toAbandon {
		if err := m.Abandon(id); err != nil {
			m.logger.WithError(err).WithField("task_id", id).Error("failed to abandon stale task")
		}
	}
}

// Counts reports the live size of each of the four sets, for status
// reporting (internal/status).
func (m *Manager) Counts() (queued, processing, toMerge, abandoned int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queued), len(m.processing), len(m.toMerge), len(m.abandoned)
}

// Close stops the background sweep loop.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
