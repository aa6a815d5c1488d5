// Package vf implements the FluxFS virtual-file container format: the
// binary encoding of a descriptor whose content is composed from inline
// byte blobs and byte ranges lifted from external host files, plus the
// random-access read engine that serves arbitrary (offset, size) requests
// against it.
package vf

import "os"

// Kind distinguishes the two fragment flavors a VF's content can be made
// of.
type Kind uint8

const (
	// KindInline fragments carry their bytes directly in the descriptor.
	KindInline Kind = 0
	// KindExternal fragments reference a byte range of a host file named
	// in the VF's external path table.
	KindExternal Kind = 1
)

// Entry is one fragment of a VF's ordered content stream.
type Entry struct {
	Kind   Kind
	Length uint64

	// Data holds the fragment's own bytes. Only valid when Kind ==
	// KindInline; len(Data) == Length.
	Data []byte

	// PathIndex indexes into the owning VF's external path table. Offset
	// is the byte offset into that file at which this fragment begins.
	// Both are only valid when Kind == KindExternal.
	PathIndex uint8
	Offset    uint64
}

// VF is a loaded or under-construction virtual file: its location in the
// synthetic namespace, its external path table (with one open read handle
// per referenced host file, populated on Load), and its ordered fragment
// list.
type VF struct {
	vpath string

	// paths and files are parallel slices: paths[i] names the host file
	// and files[i] is the open read handle for it, nil until the VF has
	// been loaded for reading (or for a VF under construction that has
	// not yet been saved and reloaded).
	paths []string
	files []*os.File

	entries []Entry
	size    uint64
}

// VPath returns the VF's location within the synthetic namespace.
func (v *VF) VPath() string { return v.vpath }

// Size returns the VF's total logical byte count: the sum of its
// fragments' lengths.
func (v *VF) Size() uint64 { return v.size }

// Entries returns the VF's ordered fragment list. The returned slice must
// not be mutated by the caller.
func (v *VF) Entries() []Entry { return v.entries }

// NumPaths returns the number of entries in the external path table.
func (v *VF) NumPaths() int { return len(v.paths) }

// Path returns the host file path named by external path table entry i.
func (v *VF) Path(i int) string { return v.paths[i] }

// Close releases every resource the VF owns: its open backing file
// handles. Inline fragment buffers, the path table and the VF itself are
// ordinary Go-managed memory, reclaimed by the garbage collector once the
// VF is no longer referenced; the only resource requiring explicit
// release is the kernel file descriptor behind each *os.File.
func (v *VF) Close() error {
	var firstErr error
	for _, f := range v.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	v.files = nil
	return firstErr
}
