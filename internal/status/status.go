// Package status implements the periodic processing-status snapshot
// spec.md §4.10 (C10) names: per-worker and per-session views for the
// foreground to poll. The package serves no HTTP endpoint itself.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkerSnapshot is one worker's live status (spec.md §4.10).
type WorkerSnapshot struct {
	PID            int       `json:"pid"`
	Status         string    `json:"status"`
	LastPathSpec   string    `json:"last_path_spec"`
	EventsProduced int64     `json:"events_produced"`
	BytesRead      int64     `json:"bytes_read"`
	LastHeartbeat  time.Time `json:"last_heartbeat"`
}

// SessionSnapshot is the session-wide status view (spec.md §4.10).
type SessionSnapshot struct {
	SessionID        uuid.UUID     `json:"session_id"`
	SourcesTotal     int64         `json:"sources_total"`
	SourcesRemaining int64         `json:"sources_remaining"`
	EventsProduced   int64         `json:"events_produced"`
	Warnings         int64         `json:"warnings"`
	MergesCompleted  int64         `json:"merges_completed"`
	TasksQueued      int           `json:"tasks_queued"`
	TasksProcessing  int           `json:"tasks_processing"`
	TasksToMerge     int           `json:"tasks_to_merge"`
	TasksAbandoned   int           `json:"tasks_abandoned"`
	StartTime        time.Time     `json:"start_time"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Tracker aggregates worker snapshots and session counters into the
// views callers poll. *Grounded on*
// internal/dispatcher/stats_collector.go's small-wrapper-over-shared-
// state pattern: callers push updates as events happen, readers pull a
// consistent snapshot under one lock.
type Tracker struct {
	mu        sync.RWMutex
	sessionID uuid.UUID
	startTime time.Time

	sourcesTotal     int64
	sourcesRemaining int64
	eventsProduced   int64
	warnings         int64
	mergesCompleted  int64

	workers map[int]*WorkerSnapshot

	taskCounter func() (queued, processing, toMerge, abandoned int)
}

// New creates a Tracker for sessionID. taskCounter supplies the live
// task-manager set sizes on demand (internal/taskmanager.Manager.Counts).
func New(sessionID uuid.UUID, taskCounter func() (int, int, int, int)) *Tracker {
	return &Tracker{
		sessionID:   sessionID,
		startTime:   time.Now(),
		workers:     make(map[int]*WorkerSnapshot),
		taskCounter: taskCounter,
	}
}

// SetSourcesTotal records how many work items the collector expects to
// emit in total, once known. Sources already started stay subtracted
// from the remaining count.
func (t *Tracker) SetSourcesTotal(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sourcesRemaining += n - t.sourcesTotal
	t.sourcesTotal = n
}

// RecordSourceStarted decrements the remaining-sources counter.
func (t *Tracker) RecordSourceStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sourcesRemaining--
}

// RecordEvents adds n freshly produced events to the running total.
func (t *Tracker) RecordEvents(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventsProduced += n
}

// RecordWarnings adds n freshly produced warnings to the running total.
func (t *Tracker) RecordWarnings(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings += n
}

// RecordMerge increments the merges-completed counter.
func (t *Tracker) RecordMerge() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mergesCompleted++
}

// UpdateWorker replaces the snapshot for worker pid.
func (t *Tracker) UpdateWorker(snap WorkerSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workers[snap.PID] = &snap
}

// RemoveWorker drops a worker's snapshot, e.g. after it exits.
func (t *Tracker) RemoveWorker(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.workers, pid)
}

// Session returns the current session-wide snapshot.
func (t *Tracker) Session() SessionSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	queued, processing, toMerge, abandoned := 0, 0, 0, 0
	if t.taskCounter != nil {
		queued, processing, toMerge, abandoned = t.taskCounter()
	}
	return SessionSnapshot{
		SessionID:        t.sessionID,
		SourcesTotal:     t.sourcesTotal,
		SourcesRemaining: t.sourcesRemaining,
		EventsProduced:   t.eventsProduced,
		Warnings:         t.warnings,
		MergesCompleted:  t.mergesCompleted,
		TasksQueued:      queued,
		TasksProcessing:  processing,
		TasksToMerge:     toMerge,
		TasksAbandoned:   abandoned,
		StartTime:        t.startTime,
		Elapsed:          time.Since(t.startTime),
	}
}

// Workers returns a stable-order snapshot of every tracked worker.
func (t *Tracker) Workers() []WorkerSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]WorkerSnapshot, 0, len(t.workers))
	for _, w := range t.workers {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}
