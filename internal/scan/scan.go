package scan

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Discover walks every root in roots concurrently, returning the path of
// every regular file named "*.vf" found under any of them. Symlinks are
// followed, both to regular files and to directories; a symlink cycle is
// broken by tracking each directory's resolved (real) path and never
// descending into one already visited in the current root's walk. A root
// that does not exist or cannot be read is logged and skipped rather than
// aborting the whole scan, and so is any subdirectory encountered mid-walk
// that becomes unreadable.
func Discover(roots []string) ([]string, error) {
	var (
		mu    sync.Mutex
		found []string
	)

	var eg errgroup.Group
	for _, root := range roots {
		root := root // copy
		eg.Go(func() error {
			w := &walker{visited: make(map[string]bool)}
			w.walk(root)
			mu.Lock()
			found = append(found, w.paths...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

type walker struct {
	paths   []string
	visited map[string]bool
}

// walk recursively descends into dir, following symlinks. Unreadable
// directories and broken symlinks are logged and skipped.
func (w *walker) walk(dir string) {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		log.Printf("scan: %q: %v", dir, err)
		return
	}
	if w.visited[real] {
		return
	}
	w.visited[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("scan: %q: %v", dir, err)
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path) // follows symlinks
		if err != nil {
			log.Printf("scan: %q: %v", path, err)
			continue
		}
		switch {
		case info.IsDir():
			w.walk(path)
		case info.Mode().IsRegular() && strings.HasSuffix(entry.Name(), ".vf"):
			w.paths = append(w.paths, path)
		}
	}
}
