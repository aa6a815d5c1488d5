package namespace_test

import (
	"testing"

	"github.com/b-sullender/fluxfs/internal/namespace"
)

func TestInsertCreatesIntermediateDirs(t *testing.T) {
	root := namespace.NewRoot()
	namespace.Insert(root, "files/nested/bytes.bin", 30, "/scan/a.vf")

	filesDir, _, ok := root.Lookup("files")
	if !ok {
		t.Fatal("expected a \"files\" subdirectory")
	}
	nestedDir, _, ok := filesDir.Lookup("nested")
	if !ok {
		t.Fatal("expected a \"nested\" subdirectory under \"files\"")
	}
	_, stub, ok := nestedDir.Lookup("bytes.bin")
	if !ok {
		t.Fatal("expected a \"bytes.bin\" stub under \"files/nested\"")
	}
	if stub.Size != 30 || stub.VFPath != "/scan/a.vf" {
		t.Fatalf("stub = %+v, want size 30, vfPath /scan/a.vf", stub)
	}
}

func TestInsertFirstWriterWinsOnDuplicateVPath(t *testing.T) {
	root := namespace.NewRoot()
	namespace.Insert(root, "a/b.vf", 10, "/scan/first.vf")
	namespace.Insert(root, "a/b.vf", 20, "/scan/second.vf")

	a, _, ok := root.Lookup("a")
	if !ok {
		t.Fatal("expected directory \"a\"")
	}
	_, stub, ok := a.Lookup("b.vf")
	if !ok {
		t.Fatal("expected stub \"b.vf\"")
	}
	if stub.VFPath != "/scan/first.vf" {
		t.Fatalf("stub.VFPath = %q, want the first-scanned vf path", stub.VFPath)
	}
}

func TestInsertFileWinsOverLaterDirectory(t *testing.T) {
	root := namespace.NewRoot()
	namespace.Insert(root, "a", 5, "/scan/a-as-file.vf") // "a" becomes a file stub
	namespace.Insert(root, "a/b.vf", 5, "/scan/a-b.vf")  // then "a" is needed as a dir

	sub, stub, ok := root.Lookup("a")
	if !ok {
		t.Fatal("expected \"a\" to exist")
	}
	if stub == nil {
		t.Fatal("expected \"a\" to remain the first-scanned file stub")
	}
	if stub.VFPath != "/scan/a-as-file.vf" {
		t.Fatalf("stub.VFPath = %q, want the first-scanned vf path", stub.VFPath)
	}
	if sub != nil {
		t.Fatal("expected \"a\" not to have become a directory")
	}
}

func TestFilesAndSubdirsStableOrder(t *testing.T) {
	root := namespace.NewRoot()
	namespace.Insert(root, "z.vf", 1, "/scan/z.vf")
	namespace.Insert(root, "a.vf", 1, "/scan/a.vf")
	namespace.Insert(root, "m.vf", 1, "/scan/m.vf")

	files := root.Files()
	if len(files) != 3 {
		t.Fatalf("Files() = %v, want 3 entries", files)
	}
	order := []string{files[0].Name, files[1].Name, files[2].Name}
	want := []string{"z.vf", "a.vf", "m.vf"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Files() order = %v, want insertion order %v", order, want)
		}
	}
}
