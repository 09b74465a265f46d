package vfs

import (
	"fmt"
	"strconv"

	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

// DataRangeResolver exposes a byte sub-range of the parent stream as
// its own readable node — used for carved or embedded data whose
// extent is known but that is not itself a distinct container (spec.md
// §4.1, DATA_RANGE type).
type DataRangeResolver struct{}

func (DataRangeResolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	if parent == nil {
		return nil, fmt.Errorf("vfs: DATA_RANGE node requires a parent stream")
	}
	rangeOffset, err := attrInt64(node, "range_offset")
	if err != nil {
		return nil, err
	}
	rangeSize, err := attrInt64(node, "range_size")
	if err != nil {
		return nil, err
	}
	return &FileEntry{
		PathSpec: node,
		Stat:     Stat{Kind: KindFile, Size: rangeSize, Times: notSetTimes()},
		reader: func(offset int64, size int) ([]byte, error) {
			if offset < 0 || offset > rangeSize {
				return nil, fmt.Errorf("vfs: data range offset %d out of bounds (size=%d)", offset, rangeSize)
			}
			want := int64(size)
			if offset+want > rangeSize {
				want = rangeSize - offset
			}
			return parent.ReadAt(rangeOffset+offset, int(want))
		},
	}, nil
}

func attrInt64(node *pathspec.Spec, key string) (int64, error) {
	raw, ok := node.Attribute(key)
	if !ok {
		return 0, fmt.Errorf("vfs: DATA_RANGE node missing %s attribute", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("vfs: DATA_RANGE %s attribute %q: %w", key, raw, err)
	}
	return v, nil
}

// FakeResolver backs pathspec.TypeFake, an in-memory fixed-bytes root
// node used by tests to exercise the adapter and downstream parsers
// without touching the real filesystem. Content is registered by
// "handle" attribute before Open is called.
type FakeResolver struct {
	content map[string][]byte
}

// NewFakeResolver creates a FakeResolver with no registered content.
func NewFakeResolver() *FakeResolver {
	return &FakeResolver{content: make(map[string][]byte)}
}

// Put registers the bytes a FAKE node with the given handle resolves to.
func (f *FakeResolver) Put(handle string, data []byte) {
	f.content[handle] = data
}

func (f *FakeResolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	handle, ok := node.Attribute("handle")
	if !ok {
		return nil, fmt.Errorf("vfs: FAKE node missing handle attribute")
	}
	data, ok := f.content[handle]
	if !ok {
		return nil, ErrNotFound
	}
	return bufferEntry(node, data), nil
}
