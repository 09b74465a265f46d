package taskmanager

import (
	"testing"
	"time"

	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
)

func newTestManager() *Manager {
	return New(Config{CleanupInterval: time.Hour}, nil)
}

func TestEnqueueRefusesDuplicateDispatchKey(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	sessionID := eventmodel.NewSessionID()
	task1 := eventmodel.NewTask(sessionID, "OS|location=/a", nil)
	task2 := eventmodel.NewTask(sessionID, "OS|location=/a", nil)

	if err := m.Enqueue(task1, "key-a"); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := m.Enqueue(task2, "key-a"); err == nil {
		t.Fatalf("expected duplicate dispatch key to be refused")
	}
}

func TestLifecycleMovesThroughFourSets(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	sessionID := eventmodel.NewSessionID()
	task := eventmodel.NewTask(sessionID, "OS|location=/a", nil)
	if err := m.Enqueue(task, "key-a"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := m.StartProcessing(task.TaskID.String()); err != nil {
		t.Fatalf("start processing: %v", err)
	}
	if err := m.Heartbeat(task.TaskID.String()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := m.Complete(task.TaskID.String()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	merged := m.NextToMerge()
	if merged == nil || merged.TaskID != task.TaskID {
		t.Fatalf("expected task to be next to merge")
	}
	if merged.Status != eventmodel.TaskMerged {
		t.Fatalf("expected MERGED status, got %s", merged.Status)
	}

	queued, processing, toMerge, abandoned := m.Counts()
	if queued != 0 || processing != 0 || toMerge != 0 || abandoned != 0 {
		t.Fatalf("expected all sets empty after merge, got %d %d %d %d", queued, processing, toMerge, abandoned)
	}

	if err := m.Enqueue(eventmodel.NewTask(sessionID, "OS|location=/a", nil), "key-a"); err != nil {
		t.Fatalf("expected dispatch key to be free again after merge: %v", err)
	}
}

func TestAbandonFreesDispatchKeyForReschedule(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	sessionID := eventmodel.NewSessionID()
	task := eventmodel.NewTask(sessionID, "OS|location=/a", nil)
	m.Enqueue(task, "key-a")
	m.StartProcessing(task.TaskID.String())

	if err := m.Abandon(task.TaskID.String()); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	rescheduled, err := m.Reschedule(task.TaskID.String())
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if rescheduled.TaskID == task.TaskID {
		t.Fatalf("expected a fresh task ID on reschedule")
	}
	if rescheduled.Status != eventmodel.TaskQueued {
		t.Fatalf("expected rescheduled task to be QUEUED, got %s", rescheduled.Status)
	}
}

func TestPopQueuedMovesTaskToProcessing(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	if got := m.PopQueued(); got != nil {
		t.Fatalf("expected nil from an empty manager, got %+v", got)
	}

	sessionID := eventmodel.NewSessionID()
	task := eventmodel.NewTask(sessionID, "OS|location=/a", nil)
	if err := m.Enqueue(task, "key-a"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	popped := m.PopQueued()
	if popped == nil || popped.TaskID != task.TaskID {
		t.Fatalf("expected to pop task %s, got %+v", task.TaskID, popped)
	}
	if popped.Status != eventmodel.TaskProcessing {
		t.Fatalf("expected PROCESSING after pop, got %s", popped.Status)
	}
	queued, processing, _, _ := m.Counts()
	if queued != 0 || processing != 1 {
		t.Fatalf("expected 0 queued/1 processing, got %d/%d", queued, processing)
	}
	if got := m.PopQueued(); got != nil {
		t.Fatalf("expected nil after draining the only queued task, got %+v", got)
	}
}

func TestComputeAbandonmentThreshold(t *testing.T) {
	if got := ComputeAbandonmentThreshold(2*time.Minute, 5*time.Minute); got != 10*time.Minute {
		t.Fatalf("expected 5x latency to win, got %s", got)
	}
	if got := ComputeAbandonmentThreshold(10*time.Second, 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("expected minimum floor to win, got %s", got)
	}
}
