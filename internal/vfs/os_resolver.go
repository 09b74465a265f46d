package vfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/log2timeline/plaso-sub000/pkg/eventmodel"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

// OSResolver resolves pathspec.TypeOS nodes against the local
// filesystem — the entry point for "a directory tree" or "a single
// file" sources (spec.md §6).
type OSResolver struct{}

func (OSResolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	location, ok := node.Attribute("location")
	if !ok {
		return nil, fmt.Errorf("vfs: OS node missing location attribute")
	}

	info, err := os.Lstat(location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		if os.IsPermission(err) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}

	kind := KindFile
	if info.IsDir() {
		kind = KindDirectory
	}

	entry := &FileEntry{
		PathSpec: node,
		Stat: Stat{
			Kind:  kind,
			Size:  info.Size(),
			Times: timesFromOS(info, location),
		},
	}

	if kind == KindDirectory {
		entry.children = func() ([]*pathspec.Spec, error) {
			dirEntries, err := os.ReadDir(location)
			if err != nil {
				return nil, err
			}
			out := make([]*pathspec.Spec, 0, len(dirEntries))
			for _, de := range dirEntries {
				out = append(out, pathspec.New(pathspec.TypeOS, map[string]string{
					"location": filepath.Join(location, de.Name()),
				}, nil))
			}
			return out, nil
		}
	} else {
		entry.reader = func(offset int64, size int) ([]byte, error) {
			if remaining := info.Size() - offset; remaining >= 0 && int64(size) > remaining {
				size = int(remaining)
			}
			f, err := os.Open(location)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			buf := make([]byte, size)
			n, err := f.ReadAt(buf, offset)
			if err != nil && n == 0 {
				return nil, err
			}
			return buf[:n], nil
		}
	}

	return entry, nil
}

func timesFromOS(info os.FileInfo, location string) Times {
	t := notSetTimes()
	t.Modified = eventmodel.FromUnixMicroseconds(info.ModTime().UnixMicro())
	// os.FileInfo exposes only mtime portably; access/change/birth come
	// from platform-specific Sys() data that a production build reads
	// via syscall.Stat_t — left NotSet here to keep this resolver
	// portable across the pack's build targets.
	_ = location
	return t
}
