// Command fluxfs mounts a read-only FUSE filesystem whose namespace is
// composed from .vf virtual-file containers discovered under the scan
// roots named in scan.conf.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/b-sullender/fluxfs/internal/fluxfsfs"
	"github.com/b-sullender/fluxfs/internal/namespace"
	"github.com/b-sullender/fluxfs/internal/oninterrupt"
	"github.com/b-sullender/fluxfs/internal/scan"
	"github.com/b-sullender/fluxfs/internal/vf"
)

const help = `fluxfs [-flags] <mountpoint>

Mount a read-only FluxFS file system, built from the .vf files found
under the scan roots named in scan.conf (read from the current working
directory, unless -scan-conf overrides the path).
`

// bumpRlimitNOFILE raises RLIMIT_NOFILE to the kernel maximum before the
// scan, since FluxFS holds one open file descriptor per external path
// referenced by every loaded VF.
func bumpRlimitNOFILE() error {
	var fileMax, nrOpen uint64
	{
		b, err := os.ReadFile("/proc/sys/fs/file-max")
		if err != nil {
			return err
		}
		fileMax, err = strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
		if err != nil {
			return err
		}
	}
	{
		b, err := os.ReadFile("/proc/sys/fs/nr_open")
		if err != nil {
			return err
		}
		nrOpen, err = strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
		if err != nil {
			return err
		}
	}
	max := fileMax
	if nrOpen < max {
		max = nrOpen
	}
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &unix.Rlimit{Cur: max, Max: max})
}

// buildNamespace scans every root in roots, reads each discovered .vf's
// header to learn its vpath, loads it in full to learn its size, and
// inserts it into a fresh tree.
// A .vf that fails to parse is logged and skipped; the scan continues.
func buildNamespace(roots []string) *namespace.Dir {
	root := namespace.NewRoot()
	paths, err := scan.Discover(roots)
	if err != nil {
		log.Printf("scan: %v", err)
		return root
	}
	for _, path := range paths {
		vpath, err := vf.GetVPath(path)
		if err != nil {
			log.Printf("fluxfs: skipping %q: %v", path, err)
			continue
		}
		size, err := vf.GetVFSize(path)
		if err != nil {
			log.Printf("fluxfs: skipping %q: %v", path, err)
			continue
		}
		namespace.Insert(root, vpath, size, path)
	}
	return root
}

func mount(args []string) (join func(context.Context) error, _ error) {
	fset := flag.NewFlagSet("fluxfs", flag.ExitOnError)
	scanConfPath := fset.String("scan-conf", "scan.conf", "path to the scan.conf file naming the directories to search for .vf files")
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, help)
		fset.PrintDefaults()
	}
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if fset.NArg() != 1 {
		return nil, xerrors.Errorf("syntax: fluxfs [-flags] <mountpoint>")
	}
	mountpoint := fset.Arg(0)

	roots, err := scan.ReadConfig(*scanConfPath)
	if err != nil {
		return nil, xerrors.Errorf("reading %s: %w", *scanConfPath, err)
	}

	if err := bumpRlimitNOFILE(); err != nil {
		log.Printf("warning: bumping RLIMIT_NOFILE failed: %v", err)
	}

	root := buildNamespace(roots)
	fs := fluxfsfs.Build(root)
	server := fuseutil.NewFileSystemServer(fs)

	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName:                 "fluxfs",
		ReadOnly:               true,
		EnableSymlinkCaching:   true,
		EnableNoOpenSupport:    true,
		EnableNoOpendirSupport: true,
	})
	if err != nil {
		return nil, xerrors.Errorf("fuse.Mount: %w", err)
	}

	oninterrupt.Register(func() {
		if err := fuse.Unmount(mountpoint); err != nil {
			log.Printf("fuse.Unmount: %v", err)
		}
	})

	return mfs.Join, nil
}

func main() {
	log.SetFlags(0)
	join, err := mount(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := join(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
