// Package fluxfsfs implements the FUSE filesystem surface that serves a
// synthetic, read-only namespace built by package namespace: directory
// listings and attributes come from the in-memory tree, while file reads
// are served by lazily loading the referenced .vf container.
package fluxfsfs

import (
	"context"
	"log"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sync/singleflight"

	"github.com/b-sullender/fluxfs/internal/namespace"
	"github.com/b-sullender/fluxfs/internal/vf"
)

// never is used for FUSE attribute/entry cache expiration timestamps.
// The namespace never mutates after it is built, so the kernel can cache
// every value indefinitely.
var never = time.Now().Add(365 * 24 * time.Hour)

// node is either a *namespace.Dir or a *namespace.Stub, allocated exactly
// one inode number each, assigned sequentially at Build time.
type node struct {
	dir  *namespace.Dir
	stub *namespace.Stub
}

// FS implements fuseutil.FileSystem over a namespace tree built ahead of
// time by package namespace. It has no mutable state of its own beyond
// the lazy VF load cache: inode numbers, directory contents and
// attributes are all fixed once Build returns.
type FS struct {
	fuseutil.NotImplementedFileSystem

	root *namespace.Dir

	mu      sync.Mutex
	inodes  map[fuseops.InodeID]*node
	byDir   map[*namespace.Dir]fuseops.InodeID
	byStub  map[*namespace.Stub]fuseops.InodeID

	loadGroup singleflight.Group
	loadMu    sync.Mutex
	loaded    map[string]*vf.VF // keyed by Stub.VFPath
}

// Build allocates inode numbers for every directory and file stub in
// root's tree (root itself becomes fuseops.RootInodeID) and returns a
// ready-to-mount FS.
func Build(root *namespace.Dir) *FS {
	fs := &FS{
		root:   root,
		inodes: make(map[fuseops.InodeID]*node),
		byDir:  make(map[*namespace.Dir]fuseops.InodeID),
		byStub: make(map[*namespace.Stub]fuseops.InodeID),
		loaded: make(map[string]*vf.VF),
	}

	var next fuseops.InodeID = fuseops.RootInodeID
	var walk func(d *namespace.Dir)
	walk = func(d *namespace.Dir) {
		inode := next
		next++
		fs.inodes[inode] = &node{dir: d}
		fs.byDir[d] = inode

		for _, stub := range d.Files() {
			stub := stub
			fileInode := next
			next++
			fs.inodes[fileInode] = &node{stub: stub}
			fs.byStub[stub] = fileInode
		}
		for _, sub := range d.Subdirs() {
			walk(sub)
		}
	}
	walk(root)

	return fs
}

func dirAttributes() fuseops.InodeAttributes {
	now := time.Now()
	return fuseops.InodeAttributes{
		Nlink: 2,
		Mode:  os.ModeDir | 0755,
		Uid:   uint32(os.Getuid()),
		Gid:   uint32(os.Getgid()),
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

func fileAttributes(size uint64) fuseops.InodeAttributes {
	now := time.Now()
	return fuseops.InodeAttributes{
		Size:  size,
		Nlink: 1,
		Mode:  0644,
		Uid:   uint32(os.Getuid()),
		Gid:   uint32(os.Getgid()),
		Atime: now,
		Mtime: now,
		Ctime: now,
	}
}

func (fs *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.Blocks = 1
	op.BlocksFree = 0
	op.BlocksAvailable = 0
	op.IoSize = 65536
	return nil
}

func (fs *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	parent, ok := fs.inodes[op.Parent]
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}
	if parent.dir == nil {
		return syscall.ENOTDIR
	}

	sub, stub, found := parent.dir.Lookup(op.Name)
	if !found {
		return fuse.ENOENT
	}

	op.Entry.AttributesExpiration = never
	op.Entry.EntryExpiration = never

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if sub != nil {
		op.Entry.Child = fs.byDir[sub]
		op.Entry.Attributes = dirAttributes()
		return nil
	}
	op.Entry.Child = fs.byStub[stub]
	op.Entry.Attributes = fileAttributes(stub.Size)
	return nil
}

func (fs *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	n, ok := fs.inodes[op.Inode]
	fs.mu.Unlock()
	if !ok {
		return fuse.ENOENT
	}

	op.AttributesExpiration = never
	if n.dir != nil {
		op.Attributes = dirAttributes()
		return nil
	}
	op.Attributes = fileAttributes(n.stub.Size)
	return nil
}

func (fs *FS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	// Instruct the kernel to not send OpenDir requests at all; paired
	// with MountConfig.EnableNoOpendirSupport.
	return fuse.ENOSYS
}

func (fs *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	n, ok := fs.inodes[op.Inode]
	fs.mu.Unlock()
	if !ok || n.dir == nil {
		return fuse.EIO
	}

	var entries []fuseutil.Dirent
	fs.mu.Lock()
	for _, sub := range n.dir.Subdirs() {
		entries = append(entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(len(entries) + 1),
			Inode:  fs.byDir[sub],
			Name:   sub.Name,
			Type:   fuseutil.DT_Directory,
		})
	}
	for _, stub := range n.dir.Files() {
		entries = append(entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(len(entries) + 1),
			Inode:  fs.byStub[stub],
			Name:   stub.Name,
			Type:   fuseutil.DT_File,
		})
	}
	fs.mu.Unlock()

	if op.Offset > fuseops.DirOffset(len(entries)) {
		return fuse.EIO
	}
	for _, e := range entries[op.Offset:] {
		wrote := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if wrote == 0 {
			break
		}
		op.BytesRead += wrote
	}
	return nil
}

func (fs *FS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	// Instruct the kernel to not send OpenFile requests at all; paired
	// with MountConfig.EnableNoOpenSupport.
	return fuse.ENOSYS
}

// loadVF returns the loaded VF backing stub, loading it (single-flighted
// across concurrent first reads of the same file) on first use and
// caching it for the life of the mount.
func (fs *FS) loadVF(stub *namespace.Stub) (*vf.VF, error) {
	fs.loadMu.Lock()
	if v, ok := fs.loaded[stub.VFPath]; ok {
		fs.loadMu.Unlock()
		return v, nil
	}
	fs.loadMu.Unlock()

	result, err, _ := fs.loadGroup.Do(stub.VFPath, func() (interface{}, error) {
		v, err := vf.Load(stub.VFPath)
		if err != nil {
			return nil, err
		}
		fs.loadMu.Lock()
		fs.loaded[stub.VFPath] = v
		fs.loadMu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*vf.VF), nil
}

func (fs *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	n, ok := fs.inodes[op.Inode]
	fs.mu.Unlock()
	if !ok {
		return fuse.EIO
	}
	if n.stub == nil {
		return syscall.EISDIR
	}

	v, err := fs.loadVF(n.stub)
	if err != nil {
		log.Printf("fluxfsfs: loading %q: %v", n.stub.VFPath, err)
		return fuse.EIO
	}

	read, err := v.ReadAt(op.Dst, uint64(op.Offset))
	if err != nil {
		// Any failure from ReadAt is already an I/O failure against the
		// backing file (ErrIO); short reads past the logical end of the
		// VF return (n, nil), never an error.
		log.Printf("fluxfsfs: reading %q: %v", n.stub.VFPath, err)
		return fuse.EIO
	}
	op.BytesRead = read
	return nil
}

func (fs *FS) Destroy() {
	fs.loadMu.Lock()
	defer fs.loadMu.Unlock()
	for path, v := range fs.loaded {
		if err := v.Close(); err != nil {
			log.Printf("fluxfsfs: closing %q: %v", path, err)
		}
	}
	fs.loaded = nil
}
