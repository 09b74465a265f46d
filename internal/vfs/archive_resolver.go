package vfs

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

// GzipResolver decodes a GZIP-wrapped stream and exposes the
// decompressed bytes as this node's single child-less stream (spec.md
// §4.1 compositional rule: archives/compressed streams are
// transparently re-exposed as a child path-spec).
type GzipResolver struct{}

func (GzipResolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	raw, err := fullParentStream(parent)
	if err != nil {
		return nil, err
	}
	gr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer gr.Close()
	decoded, err := readAllFrom(gr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return bufferEntry(node, decoded), nil
}

// Bzip2Resolver decodes a BZIP2-wrapped stream.
type Bzip2Resolver struct{}

func (Bzip2Resolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	raw, err := fullParentStream(parent)
	if err != nil {
		return nil, err
	}
	decoded, err := readAllFrom(bzip2.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return bufferEntry(node, decoded), nil
}

// CompressedStreamResolver decodes the generic COMPRESSED_STREAM node,
// whose "codec" attribute selects zstd — the klauspost/compress codec
// the session store also uses for its own record payloads (§C of
// SPEC_FULL.md), covering formats the stdlib compress package omits.
type CompressedStreamResolver struct{}

func (CompressedStreamResolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	raw, err := fullParentStream(parent)
	if err != nil {
		return nil, err
	}
	codec, _ := node.Attribute("codec")
	switch codec {
	case "zstd", "":
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		defer dec.Close()
		decoded, err := readAllFrom(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return bufferEntry(node, decoded), nil
	default:
		return nil, fmt.Errorf("vfs: compressed stream codec %q: %w", codec, ErrUnsupportedFormat)
	}
}

// EncodedStreamResolver reverses a text-safe transport encoding (e.g.
// base64, seen wrapping mail attachments and some registry blobs)
// before the decoded bytes reach a parser.
type EncodedStreamResolver struct{}

func (EncodedStreamResolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	raw, err := fullParentStream(parent)
	if err != nil {
		return nil, err
	}
	encoding, _ := node.Attribute("encoding")
	switch encoding {
	case "base64", "":
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(raw)))
		n, err := base64.StdEncoding.Decode(decoded, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return bufferEntry(node, decoded[:n]), nil
	default:
		return nil, fmt.Errorf("vfs: encoded stream encoding %q: %w", encoding, ErrUnsupportedFormat)
	}
}

// TarResolver exposes a TAR container's members as child OS-like
// path-specs, each carrying a "location" attribute naming the member
// within the archive.
type TarResolver struct{}

func (TarResolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	raw, err := fullParentStream(parent)
	if err != nil {
		return nil, err
	}
	entry := &FileEntry{PathSpec: node, Stat: Stat{Kind: KindDirectory, Times: notSetTimes()}}
	entry.children = func() ([]*pathspec.Spec, error) {
		tr := tar.NewReader(bytes.NewReader(raw))
		var children []*pathspec.Spec
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			if hdr.Typeflag != tar.TypeReg {
				continue
			}
			children = append(children, pathspec.New(pathspec.TypeTAR, map[string]string{
				"location": hdr.Name,
			}, nil))
		}
		return children, nil
	}
	entry.reader = tarMemberReader(raw, node)
	return entry, nil
}

func tarMemberReader(raw []byte, node *pathspec.Spec) func(int64, int) ([]byte, error) {
	location, hasLocation := node.Attribute("location")
	return func(offset int64, size int) ([]byte, error) {
		if !hasLocation {
			// The directory node reads as the raw archive, so members
			// resolved beneath it (Adapter.IterChildren) can locate
			// themselves.
			return sliceRange(raw, offset, size)
		}
		tr := tar.NewReader(bytes.NewReader(raw))
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return nil, ErrNotFound
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			if hdr.Name != location {
				continue
			}
			data, err := readAllFrom(tr)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			return sliceRange(data, offset, size)
		}
	}
}

// ZipResolver exposes a ZIP container's members as children, mirroring
// TarResolver.
type ZipResolver struct{}

func (ZipResolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	raw, err := fullParentStream(parent)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	location, hasLocation := node.Attribute("location")
	if !hasLocation {
		entry := &FileEntry{PathSpec: node, Stat: Stat{Kind: KindDirectory, Times: notSetTimes()}}
		// The directory node reads as the raw archive, so members resolved
		// beneath it (Adapter.IterChildren) can locate themselves.
		entry.reader = func(offset int64, size int) ([]byte, error) {
			return sliceRange(raw, offset, size)
		}
		entry.children = func() ([]*pathspec.Spec, error) {
			children := make([]*pathspec.Spec, 0, len(zr.File))
			for _, f := range zr.File {
				if f.FileInfo().IsDir() {
					continue
				}
				children = append(children, pathspec.New(pathspec.TypeZIP, map[string]string{
					"location":   f.Name,
					"compressed": strconv.FormatUint(uint64(f.CompressedSize64), 10),
				}, nil))
			}
			return children, nil
		}
		return entry, nil
	}

	for _, f := range zr.File {
		if f.Name != location {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		defer rc.Close()
		data, err := readAllFrom(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return bufferEntry(node, data), nil
	}
	return nil, ErrNotFound
}

func fullParentStream(parent *FileEntry) ([]byte, error) {
	if parent == nil {
		return nil, fmt.Errorf("vfs: archive/compressed node requires a parent stream")
	}
	return parent.ReadAt(0, maxInt)
}

const maxInt = int(^uint(0) >> 1)

func bufferEntry(node *pathspec.Spec, data []byte) *FileEntry {
	return &FileEntry{
		PathSpec: node,
		Stat:     Stat{Kind: KindFile, Size: int64(len(data)), Times: notSetTimes()},
		reader: func(offset int64, size int) ([]byte, error) {
			return sliceRange(data, offset, size)
		},
	}
}
