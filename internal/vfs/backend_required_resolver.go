package vfs

import (
	"fmt"

	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

// BackendRequiredResolver stands in for the storage-image, partition-
// table, volume-shadow, and native-file-system path-spec types whose
// real implementation is an external forensic VFS library (spec.md
// §1 Non-goals: "Implementing TSK/libewf/libvshadow-equivalent byte
// parsing — this is an external collaborator behind the VFS
// interface"). Registering it for those types lets Adapter.Open report
// a clear, typed error instead of "unsupported format" when no real
// backend is wired in.
type BackendRequiredResolver struct{}

func (BackendRequiredResolver) Resolve(node *pathspec.Spec, parent *FileEntry) (*FileEntry, error) {
	return nil, fmt.Errorf("vfs: %s: %w", node.Type(), ErrBackendRequired)
}

// RegisterBackendRequiredTypes binds BackendRequiredResolver to every
// path-spec type this tree does not itself resolve.
func RegisterBackendRequiredTypes(a *Adapter) {
	stub := BackendRequiredResolver{}
	for _, t := range []pathspec.Type{
		pathspec.TypeTSK,
		pathspec.TypeNTFS,
		pathspec.TypeAPFS,
		pathspec.TypeEXT,
		pathspec.TypeFAT,
		pathspec.TypeHFS,
		pathspec.TypeVSHADOW,
		pathspec.TypeLVM,
		pathspec.TypeGPT,
		pathspec.TypeMBR,
		pathspec.TypeQCOW,
		pathspec.TypeVHDI,
		pathspec.TypeVMDK,
		pathspec.TypeEWF,
		pathspec.TypeRAW,
		pathspec.TypeXZ,
	} {
		a.Register(t, stub)
	}
}

// RegisterDefaults wires every resolver implemented in this package
// into a fresh Adapter, covering the full pathspec.Type space: OS
// files/directories, compression/archive composition, and the
// in-memory FAKE type, plus BackendRequiredResolver for the storage-
// image/native-filesystem types this tree does not implement.
func RegisterDefaults(a *Adapter, fake *FakeResolver) {
	a.Register(pathspec.TypeOS, OSResolver{})
	a.Register(pathspec.TypeGZIP, GzipResolver{})
	a.Register(pathspec.TypeBZIP2, Bzip2Resolver{})
	a.Register(pathspec.TypeCompressedStream, CompressedStreamResolver{})
	a.Register(pathspec.TypeEncodedStream, EncodedStreamResolver{})
	a.Register(pathspec.TypeTAR, TarResolver{})
	a.Register(pathspec.TypeZIP, ZipResolver{})
	a.Register(pathspec.TypeDataRange, DataRangeResolver{})
	if fake != nil {
		a.Register(pathspec.TypeFake, fake)
	}
	RegisterBackendRequiredTypes(a)
}
