package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestSessionRunExtractsAndMergesEveryFile(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"a.log", "b.log", "c.log"} {
		if err := os.WriteFile(filepath.Join(src, name), []byte("hello "+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	work := t.TempDir()
	sess, err := New(Config{
		WorkDir:     work,
		WorkerCount: 2,
	}, src, "plaso extract "+src, silentLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	root := pathspec.New(pathspec.TypeOS, map[string]string{"location": src}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counters, err := sess.Run(ctx, []*pathspec.Spec{root})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if counters.EventsProduced == 0 {
		t.Fatalf("expected at least one event, got 0")
	}
	if merged := sess.Status().Session().MergesCompleted; merged != 3 {
		t.Fatalf("expected 3 merged tasks, got %d", merged)
	}
}

func TestSessionRunOnEmptyDirectoryProducesNoTasks(t *testing.T) {
	src := t.TempDir()
	work := t.TempDir()
	sess, err := New(Config{WorkDir: work, WorkerCount: 1}, src, "plaso extract "+src, silentLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	root := pathspec.New(pathspec.TypeOS, map[string]string{"location": src}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counters, err := sess.Run(ctx, []*pathspec.Spec{root})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if counters.EventsProduced != 0 {
		t.Fatalf("expected 0 events, got %d", counters.EventsProduced)
	}
	if merged := sess.Status().Session().MergesCompleted; merged != 0 {
		t.Fatalf("expected 0 merged tasks, got %d", merged)
	}
}
