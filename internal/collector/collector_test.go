package collector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/log2timeline/plaso-sub000/internal/taskmanager"
	"github.com/log2timeline/plaso-sub000/internal/vfs"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

func newTestAdapter() *vfs.Adapter {
	a := vfs.NewAdapter()
	a.Register(pathspec.TypeOS, vfs.OSResolver{})
	return a
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestWalkEmitsOneTaskPerRegularFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "c.txt"), []byte("c"), 0o644); err != nil {
		t.Fatal(err)
	}

	tasks := taskmanager.New(taskmanager.Config{}, silentLogger())
	defer tasks.Close()

	c := New(newTestAdapter(), tasks, uuid.New(), nil, Config{}, silentLogger())
	root := pathspec.New(pathspec.TypeOS, map[string]string{"location": dir}, nil)
	if err := c.Walk(root, nil); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	emitted, skipped := c.Stats()
	if emitted != 3 {
		t.Fatalf("expected 3 emitted files, got %d (skipped=%d)", emitted, skipped)
	}
	queued, _, _, _ := tasks.Counts()
	if queued != 3 {
		t.Fatalf("expected 3 queued tasks, got %d", queued)
	}
}

func TestWalkAppliesIncludeExcludeFilter(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "keep.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	filter, err := NewFilter([]string{`\.log$`}, nil)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	tasks := taskmanager.New(taskmanager.Config{}, silentLogger())
	defer tasks.Close()

	c := New(newTestAdapter(), tasks, uuid.New(), filter, Config{}, silentLogger())
	root := pathspec.New(pathspec.TypeOS, map[string]string{"location": dir}, nil)
	if err := c.Walk(root, nil); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	emitted, skipped := c.Stats()
	if emitted != 1 {
		t.Fatalf("expected 1 emitted file, got %d", emitted)
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped file, got %d", skipped)
	}
}

func TestLookupResolvesTaskBackToPathSpec(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "only.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tasks := taskmanager.New(taskmanager.Config{}, silentLogger())
	defer tasks.Close()

	c := New(newTestAdapter(), tasks, uuid.New(), nil, Config{}, silentLogger())
	root := pathspec.New(pathspec.TypeOS, map[string]string{"location": dir}, nil)
	if err := c.Walk(root, nil); err != nil {
		t.Fatalf("Walk: %v", err)
	}

	c.mu.Lock()
	snapshot := make(map[string]*pathspec.Spec, len(c.bySpec))
	for k, v := range c.bySpec {
		snapshot[k] = v
	}
	c.mu.Unlock()

	if len(snapshot) != 1 {
		t.Fatalf("expected 1 resolvable task, got %d", len(snapshot))
	}
	for taskID, spec := range snapshot {
		got, ok := c.Lookup(taskID)
		if !ok {
			t.Fatalf("Lookup(%s) not found", taskID)
		}
		if got.Comparable() != spec.Comparable() {
			t.Fatalf("Lookup returned wrong spec: %s vs %s", got.Comparable(), spec.Comparable())
		}
	}
}
