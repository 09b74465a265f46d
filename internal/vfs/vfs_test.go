package vfs

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

func TestOSResolverReadsFileAndLists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	a := NewAdapter()
	RegisterDefaults(a, nil)

	dirSpec := pathspec.New(pathspec.TypeOS, map[string]string{"location": dir}, nil)
	entry, err := a.Open(dirSpec)
	if err != nil {
		t.Fatalf("open dir: %v", err)
	}
	children, err := a.IterChildren(entry)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(children))
	}
	data, err := children[0].ReadAt(0, 100)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
}

func TestOSResolverNotFound(t *testing.T) {
	a := NewAdapter()
	RegisterDefaults(a, nil)
	spec := pathspec.New(pathspec.TypeOS, map[string]string{"location": "/nonexistent/path/xyz"}, nil)
	if _, err := a.Open(spec); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGzipResolverDecompressesChainedStream(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte("decoded content"))
	gw.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	a := NewAdapter()
	RegisterDefaults(a, nil)

	root := pathspec.New(pathspec.TypeOS, map[string]string{"location": path}, nil)
	gzSpec := pathspec.New(pathspec.TypeGZIP, nil, root)

	entry, err := a.Open(gzSpec)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := entry.ReadAt(0, 100)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "decoded content" {
		t.Fatalf("got %q", data)
	}
}

func TestZipResolverListsAndReadsMember(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("inner.txt")
	w.Write([]byte("zipped"))
	zw.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	a := NewAdapter()
	RegisterDefaults(a, nil)

	root := pathspec.New(pathspec.TypeOS, map[string]string{"location": path}, nil)
	zipRoot := pathspec.New(pathspec.TypeZIP, nil, root)

	entry, err := a.Open(zipRoot)
	if err != nil {
		t.Fatalf("open zip root: %v", err)
	}
	children, err := a.IterChildren(entry)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected 1 member, got %d", len(children))
	}

	memberSpec := pathspec.New(pathspec.TypeZIP, map[string]string{"location": "inner.txt"}, root)
	memberEntry, err := a.Open(memberSpec)
	if err != nil {
		t.Fatalf("open member: %v", err)
	}
	data, err := memberEntry.ReadAt(0, 100)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "zipped" {
		t.Fatalf("got %q", data)
	}
}

func TestDataRangeResolverSlicesParent(t *testing.T) {
	fake := NewFakeResolver()
	fake.Put("blob", []byte("0123456789"))

	a := NewAdapter()
	RegisterDefaults(a, fake)

	root := pathspec.New(pathspec.TypeFake, map[string]string{"handle": "blob"}, nil)
	rangeSpec := pathspec.New(pathspec.TypeDataRange, map[string]string{
		"range_offset": "3",
		"range_size":   "4",
	}, root)

	entry, err := a.Open(rangeSpec)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := entry.ReadAt(0, 100)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "3456" {
		t.Fatalf("got %q", data)
	}
}

func TestBackendRequiredTypesReturnSentinel(t *testing.T) {
	a := NewAdapter()
	RegisterDefaults(a, nil)
	spec := pathspec.New(pathspec.TypeEWF, map[string]string{}, nil)
	_, err := a.Open(spec)
	if err == nil {
		t.Fatalf("expected error")
	}
}
