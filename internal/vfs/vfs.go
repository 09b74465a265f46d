// Package vfs implements the abstract virtual-file-system contract
// (spec.md §4.1): resolving a path-spec tree into a readable stream or
// directory, transparently re-exposing nested archives/compressed
// streams as child path-specs so downstream components never need to
// distinguish "on disk" from "inside an archive".
//
// Only the contract and a handful of illustrative resolvers (plain OS
// files, gzip/bzip2, tar/zip) are implemented here. The storage-image,
// partition-table, and native file-system layers (TSK, NTFS, APFS,
// EXT, FAT, HFS, VSHADOW, LVM, GPT, MBR, QCOW, VHDI, VMDK, EWF) are an
// external collaborator per spec.md §1 — Adapter dispatches to a
// Resolver registered for each pkg/pathspec.Type, and a production
// deployment plugs in a real forensic VFS library for those types.
package vfs

import (
	"fmt"
	"io"

	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

// FileEntryKind distinguishes files from directories.
type FileEntryKind string

const (
	KindFile      FileEntryKind = "file"
	KindDirectory FileEntryKind = "directory"
)

// Times holds the standard filesystem timestamps; any may be the zero
// eventmodel.DateTimeValue{NotSet: true} when the source lacks it.
type Times struct {
	Modified eventmodel.DateTimeValue
	Accessed eventmodel.DateTimeValue
	Changed  eventmodel.DateTimeValue
	Birth    eventmodel.DateTimeValue
	Created  eventmodel.DateTimeValue
}

// Stat is the metadata the adapter returns for a resolved file entry
// (spec.md §4.1).
type Stat struct {
	Kind  FileEntryKind
	Size  int64
	Times Times
	Inode string
}

// FileEntry is a resolved node: enough state to read its stream, list
// children (if a directory), or stat it, without re-resolving the
// whole path-spec chain each time.
type FileEntry struct {
	PathSpec *pathspec.Spec
	Stat     Stat

	reader   func(offset int64, size int) ([]byte, error)
	children func() ([]*pathspec.Spec, error)
}

// ReadAt reads up to size bytes starting at offset from this entry's
// stream (spec.md §4.1 read_stream).
func (f *FileEntry) ReadAt(offset int64, size int) ([]byte, error) {
	if f.reader == nil {
		return nil, fmt.Errorf("vfs: %s is not readable", f.PathSpec.Type())
	}
	return f.reader(offset, size)
}

// Children lists the entry's child path-specs (spec.md §4.1
// iter_children); returns an error if this entry is not a directory
// or container.
func (f *FileEntry) Children() ([]*pathspec.Spec, error) {
	if f.children == nil {
		return nil, fmt.Errorf("vfs: %s has no children", f.PathSpec.Type())
	}
	return f.children()
}

// Resolver knows how to turn one path-spec node, given its already-
// resolved parent entry (nil at the root), into a FileEntry. One
// Resolver is registered per pathspec.Type.
type Resolver interface {
	Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error)
}

// Sentinel errors matching spec.md §4.1's required failure modes.
var (
	ErrNotFound         = fmt.Errorf("vfs: not found")
	ErrAccessDenied     = fmt.Errorf("vfs: access denied")
	ErrUnsupportedFormat = fmt.Errorf("vfs: unsupported format")
	ErrCorrupt          = fmt.Errorf("vfs: corrupt")
	// ErrBackendRequired marks a path-spec type whose real resolver is
	// an external collaborator not implemented in this tree (spec.md
	// §1): storage-image/volume/native-filesystem layers.
	ErrBackendRequired = fmt.Errorf("vfs: requires an external forensic VFS backend")
)

// Adapter resolves path-spec chains into FileEntry values by dispatching
// each node to its registered Resolver (spec.md §4.1).
type Adapter struct {
	resolvers map[pathspec.Type]Resolver
}

// NewAdapter creates an Adapter with no resolvers registered; callers
// register the types they support (see RegisterDefaults).
func NewAdapter() *Adapter {
	return &Adapter{resolvers: make(map[pathspec.Type]Resolver)}
}

// Register binds a Resolver to a path-spec type.
func (a *Adapter) Register(t pathspec.Type, r Resolver) {
	a.resolvers[t] = r
}

// Open resolves every nesting level of spec, in root-to-leaf order, and
// returns the leaf FileEntry (spec.md §4.1 open).
func (a *Adapter) Open(spec *pathspec.Spec) (*FileEntry, error) {
	chain := spec.Chain()
	var parent *FileEntry
	for _, node := range chain {
		resolver, ok := a.resolvers[node.Type()]
		if !ok {
			return nil, fmt.Errorf("vfs: open %s: %w", node.Type(), ErrUnsupportedFormat)
		}
		entry, err := resolver.Resolve(node, parent)
		if err != nil {
			return nil, fmt.Errorf("vfs: open %s: %w", node.Type(), err)
		}
		parent = entry
	}
	if parent == nil {
		return nil, ErrNotFound
	}
	return parent, nil
}

// ReadStream reads a byte range from an already-opened entry (spec.md
// §4.1 read_stream).
func (a *Adapter) ReadStream(entry *FileEntry, offset int64, size int) ([]byte, error) {
	return entry.ReadAt(offset, size)
}

// IterChildren resolves and returns every child of entry, composing
// transparently through any nested archive/compressed layer (spec.md
// §4.1 iter_children, the compositional rule in §4.1).
func (a *Adapter) IterChildren(entry *FileEntry) ([]*FileEntry, error) {
	childSpecs, err := entry.Children()
	if err != nil {
		return nil, err
	}
	out := make([]*FileEntry, 0, len(childSpecs))
	for _, cs := range childSpecs {
		resolver, ok := a.resolvers[cs.Type()]
		if !ok {
			return nil, fmt.Errorf("vfs: child %s: %w", cs.Type(), ErrUnsupportedFormat)
		}
		child, err := resolver.Resolve(cs, entry)
		if err != nil {
			return nil, fmt.Errorf("vfs: child %s: %w", cs.Type(), err)
		}
		out = append(out, child)
	}
	return out, nil
}

// StatOf returns the resolved entry's metadata (spec.md §4.1 stat).
func (a *Adapter) StatOf(entry *FileEntry) Stat { return entry.Stat }

// readAllFrom is a small helper resolvers use to turn an io.Reader
// into the offset/size random-access contract FileEntry.ReadAt needs,
// by buffering fully — acceptable for the illustrative resolvers here,
// since real large-stream backends (TSK/EWF/...) supply their own
// seekable readers instead of this helper.
func readAllFrom(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

func sliceRange(data []byte, offset int64, size int) ([]byte, error) {
	if offset < 0 || offset > int64(len(data)) {
		return nil, fmt.Errorf("vfs: offset %d out of range (len=%d)", offset, len(data))
	}
	end := offset + int64(size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}

func notSetTimes() Times {
	ns := eventmodel.NotSetValue()
	return Times{Modified: ns, Accessed: ns, Changed: ns, Birth: ns, Created: ns}
}
