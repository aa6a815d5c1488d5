// Package namespace builds the synthetic, read-only directory tree served
// by the FUSE filesystem surface, from the flat list of .vf files found
// by package scan.
package namespace

import (
	"log"
	"strings"
)

// Stub is a leaf entry: a virtual file's location in the tree, its
// logical size, and the on-disk .vf path it is loaded from on demand.
type Stub struct {
	Name   string
	Size   uint64
	VFPath string
}

// Dir is one directory in the synthetic tree. Subdirectories and file
// stubs are each kept as both a map (fast lookup) and a stable-order
// slice (deterministic directory listings), mirroring how a FUSE readdir
// call must return entries in a consistent order across repeated calls.
type Dir struct {
	Name   string
	Parent *Dir

	subdirs     map[string]*Dir
	subdirOrder []string

	files     map[string]*Stub
	fileOrder []string
}

// NewRoot returns an empty, unnamed root directory.
func NewRoot() *Dir {
	return &Dir{
		subdirs: make(map[string]*Dir),
		files:   make(map[string]*Stub),
	}
}

// Subdirs returns the directory's immediate subdirectories in stable
// insertion order.
func (d *Dir) Subdirs() []*Dir {
	out := make([]*Dir, len(d.subdirOrder))
	for i, name := range d.subdirOrder {
		out[i] = d.subdirs[name]
	}
	return out
}

// Files returns the directory's immediate file stubs in stable insertion
// order.
func (d *Dir) Files() []*Stub {
	out := make([]*Stub, len(d.fileOrder))
	for i, name := range d.fileOrder {
		out[i] = d.files[name]
	}
	return out
}

// Lookup returns the subdirectory or file stub named name, if any.
func (d *Dir) Lookup(name string) (subdir *Dir, stub *Stub, ok bool) {
	if sd, found := d.subdirs[name]; found {
		return sd, nil, true
	}
	if s, found := d.files[name]; found {
		return nil, s, true
	}
	return nil, nil, false
}

// getOrCreateDir returns the immediate child directory named name,
// creating it (and recording it in d's stable order) if it does not
// already exist. If name is already taken by a file stub, the first
// writer wins: the existing file is kept, a warning is logged, and
// getOrCreateDir returns nil to tell the caller the insertion requiring
// this directory must be dropped.
func (d *Dir) getOrCreateDir(name string) *Dir {
	if sd, ok := d.subdirs[name]; ok {
		return sd
	}
	if _, ok := d.files[name]; ok {
		log.Printf("namespace: %q collides with an existing file; keeping the file", name)
		return nil
	}
	sd := &Dir{
		Name:    name,
		Parent:  d,
		subdirs: make(map[string]*Dir),
		files:   make(map[string]*Stub),
	}
	d.subdirs[name] = sd
	d.subdirOrder = append(d.subdirOrder, name)
	return sd
}

// insertFile inserts stub as an immediate child named name. The first
// writer wins: if name is already taken (by a directory or another file),
// the insertion is refused and a warning logged, and ok is false.
func (d *Dir) insertFile(name string, stub *Stub) (ok bool) {
	if _, exists := d.subdirs[name]; exists {
		log.Printf("namespace: %q collides with an existing directory; keeping the directory", name)
		return false
	}
	if _, exists := d.files[name]; exists {
		log.Printf("namespace: %q collides with an existing file; keeping the first one scanned", name)
		return false
	}
	d.files[name] = stub
	d.fileOrder = append(d.fileOrder, name)
	return true
}

// Insert places a virtual file at vpath (slash-separated, relative to
// root) into the tree rooted at root, creating any missing intermediate
// directories. vfPath is the on-disk location of the .vf file, size its
// logical byte count (from vf.GetVFSize). On a name collision the first
// writer wins — the existing file or directory is kept and this
// insertion is dropped, after logging a warning.
func Insert(root *Dir, vpath string, size uint64, vfPath string) {
	vpath = strings.Trim(vpath, "/")
	if vpath == "" {
		log.Printf("namespace: refusing to insert a virtual file at the root itself (vpath %q)", vpath)
		return
	}
	components := strings.Split(vpath, "/")
	dir := root
	for _, component := range components[:len(components)-1] {
		dir = dir.getOrCreateDir(component)
		if dir == nil {
			log.Printf("namespace: dropping %q: a path component collides with an existing file", vpath)
			return
		}
	}
	leaf := components[len(components)-1]
	dir.insertFile(leaf, &Stub{Name: leaf, Size: size, VFPath: vfPath})
}
