package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/b-sullender/fluxfs/internal/vf"
)

func TestBuildNamespaceSkipsBadVFsAndKeepsGoodOnes(t *testing.T) {
	root := t.TempDir()

	good := vf.New("docs/readme.txt")
	good.AddData([]byte("hello"))
	if err := vf.Save(good, filepath.Join(root, "good.vf")); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(root, "bad.vf"), []byte("not a vf"), 0o644); err != nil {
		t.Fatal(err)
	}

	tree := buildNamespace([]string{root})

	dir, _, ok := tree.Lookup("docs")
	if !ok {
		t.Fatal("expected \"docs\" directory to be present despite the sibling bad.vf")
	}
	_, stub, ok := dir.Lookup("readme.txt")
	if !ok {
		t.Fatal("expected \"readme.txt\" stub")
	}
	if stub.Size != 5 {
		t.Fatalf("stub.Size = %d, want 5", stub.Size)
	}
}

func TestBuildNamespaceEmptyRoots(t *testing.T) {
	tree := buildNamespace(nil)
	if len(tree.Files()) != 0 || len(tree.Subdirs()) != 0 {
		t.Fatal("expected an empty tree for no scan roots")
	}
}
