package eventmodel

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the task status machine (spec.md §3.7):
// CREATED -> QUEUED -> PROCESSING -> (COMPLETED | ABANDONED) -> (MERGED, from COMPLETED).
type TaskStatus string

const (
	TaskCreated    TaskStatus = "CREATED"
	TaskQueued     TaskStatus = "QUEUED"
	TaskProcessing TaskStatus = "PROCESSING"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskAbandoned  TaskStatus = "ABANDONED"
	TaskMerged     TaskStatus = "MERGED"
)

// validTransitions enumerates the legal status machine edges.
var validTransitions = map[TaskStatus][]TaskStatus{
	TaskCreated:    {TaskQueued},
	TaskQueued:     {TaskProcessing},
	TaskProcessing: {TaskCompleted, TaskAbandoned},
	TaskCompleted:  {TaskMerged},
	TaskAbandoned:  {},
	TaskMerged:     {},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Task is a unit of extraction work (spec.md §3.7).
type Task struct {
	TaskID       uuid.UUID  `json:"task_id"`
	SessionID    uuid.UUID  `json:"session_id"`
	PathSpec     string     `json:"path_spec"` // comparable form
	ParentTaskID *uuid.UUID `json:"parent_task_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	AbandonedAt  *time.Time `json:"abandoned_at,omitempty"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	Status       TaskStatus `json:"status"`
}

// NewTask creates a CREATED task for pathSpec under sessionID.
func NewTask(sessionID uuid.UUID, pathSpec string, parent *uuid.UUID) *Task {
	return &Task{
		TaskID:       NewTaskID(),
		SessionID:    sessionID,
		PathSpec:     pathSpec,
		ParentTaskID: parent,
		CreatedAt:    time.Now(),
		Status:       TaskCreated,
	}
}

// Reschedule creates a fresh task referencing the same path-spec, used
// when an ABANDONED task is retried (spec.md §3.7).
func (t *Task) Reschedule() *Task {
	return NewTask(t.SessionID, t.PathSpec, t.ParentTaskID)
}
