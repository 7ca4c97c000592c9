package treeengine

import (
	"testing"

	"github.com/arcfs/realm/internal/blobstore"
	"github.com/arcfs/realm/internal/contentkey"
	"github.com/arcfs/realm/internal/node"
	"github.com/arcfs/realm/internal/realmerr"
)

func newEngine(t *testing.T) (*Engine, contentkey.Key) {
	t.Helper()
	store := blobstore.NewMemory()
	e := New(store)
	empty, err := node.EmptyDict()
	if err != nil {
		t.Fatalf("EmptyDict: %v", err)
	}
	if err := store.Put(empty.Key, empty.Bytes); err != nil {
		t.Fatalf("put empty dict: %v", err)
	}
	return e, empty.Key
}

func putFile(t *testing.T, e *Engine, content, contentType string) contentkey.Key {
	t.Helper()
	enc, err := node.EncodeFile([]byte(content), contentType, int64(len(content)))
	if err != nil {
		t.Fatalf("EncodeFile: %v", err)
	}
	if err := e.Store.Put(enc.Key, enc.Bytes); err != nil {
		t.Fatalf("put file: %v", err)
	}
	return enc.Key
}

func TestResolveEmptyPathReturnsRoot(t *testing.T) {
	e, root := newEngine(t)
	got, found, err := e.Resolve(root, "")
	if err != nil || !found || got != root {
		t.Fatalf("Resolve(\"\") = %v, %v, %v; want %v, true, nil", got, found, err, root)
	}
}

func TestUploadListDownload(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")

	root, err := e.AddOrReplace(root, "a/b.txt", fileKey)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}

	dirKey, found, err := e.Resolve(root, "a")
	if err != nil || !found {
		t.Fatalf("resolve a: found=%v err=%v", found, err)
	}
	dir, err := e.loadDict(dirKey)
	if err != nil {
		t.Fatalf("load dir a: %v", err)
	}
	if len(dir.Names) != 1 || dir.Names[0] != "b.txt" {
		t.Fatalf("unexpected dir entries: %v", dir.Names)
	}

	leaf, found, err := e.Resolve(root, "a/b.txt")
	if err != nil || !found || leaf != fileKey {
		t.Fatalf("resolve a/b.txt: leaf=%v found=%v err=%v", leaf, found, err)
	}
}

func TestMkdirThenRemove(t *testing.T) {
	e, root := newEngine(t)

	root, err := e.Mkdir(root, "dir1")
	if err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	dirKey, found, err := e.Resolve(root, "dir1")
	if err != nil || !found {
		t.Fatalf("resolve dir1: %v %v", found, err)
	}
	dir, err := e.loadDict(dirKey)
	if err != nil || !dir.Empty() {
		t.Fatalf("expected empty dict: %v %v", dir, err)
	}

	root, err = e.Remove(root, "dir1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, found, err = e.Resolve(root, "dir1")
	if err != nil {
		t.Fatalf("Resolve after remove: %v", err)
	}
	if found {
		t.Fatal("dir1 should be gone")
	}
}

func TestMoveAcrossDirectories(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")

	root, err := e.AddOrReplace(root, "a/b.txt", fileKey)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}

	root, err = e.Move(root, "a/b.txt", "c/b.txt")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}

	aKey, found, err := e.Resolve(root, "a")
	if err != nil || !found {
		t.Fatalf("resolve a: %v %v", found, err)
	}
	aDir, err := e.loadDict(aKey)
	if err != nil || !aDir.Empty() {
		t.Fatalf("expected empty a: %v %v", aDir, err)
	}

	leaf, found, err := e.Resolve(root, "c/b.txt")
	if err != nil || !found || leaf != fileKey {
		t.Fatalf("resolve c/b.txt: %v %v %v", leaf, found, err)
	}
}

func TestCopyKeepsSource(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")
	root, err := e.AddOrReplace(root, "a.txt", fileKey)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	root, err = e.Copy(root, "a.txt", "b.txt")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	for _, p := range []string{"a.txt", "b.txt"} {
		leaf, found, err := e.Resolve(root, p)
		if err != nil || !found || leaf != fileKey {
			t.Fatalf("resolve %s: %v %v %v", p, leaf, found, err)
		}
	}
}

func TestReplaceSubtreeCreatesMissingEntry(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")

	// A terminal segment with no existing entry is inserted, not rejected:
	// branch completion must be able to splice at a mount path the parent
	// never created.
	root, err := e.ReplaceSubtree(root, []string{"missing"}, fileKey)
	if err != nil {
		t.Fatalf("ReplaceSubtree: %v", err)
	}
	leaf, found, err := e.Resolve(root, "missing")
	if err != nil || !found || leaf != fileKey {
		t.Fatalf("resolve missing: %v %v %v", leaf, found, err)
	}

	newFile := putFile(t, e, "bye", "text/plain")
	root, err = e.ReplaceSubtree(root, []string{"missing"}, newFile)
	if err != nil {
		t.Fatalf("ReplaceSubtree: %v", err)
	}
	leaf, found, err = e.Resolve(root, "missing")
	if err != nil || !found || leaf != newFile {
		t.Fatalf("resolve missing after replace: %v %v %v", leaf, found, err)
	}
}

func TestReplaceSubtreeCreatesMissingParentDirectories(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")

	root, err := e.ReplaceSubtree(root, []string{"a", "b", "c"}, fileKey)
	if err != nil {
		t.Fatalf("ReplaceSubtree: %v", err)
	}
	leaf, found, err := e.Resolve(root, "a/b/c")
	if err != nil || !found || leaf != fileKey {
		t.Fatalf("resolve a/b/c: %v %v %v", leaf, found, err)
	}
}

func TestAddOrReplaceCreatesMissingParent(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")

	root, err := e.AddOrReplace(root, "missing/a.txt", fileKey)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	leaf, found, err := e.Resolve(root, "missing/a.txt")
	if err != nil || !found || leaf != fileKey {
		t.Fatalf("resolve missing/a.txt: %v %v %v", leaf, found, err)
	}
	dirLeaf, found, err := e.Resolve(root, "missing")
	if err != nil || !found {
		t.Fatalf("resolve missing dir: %v %v %v", dirLeaf, found, err)
	}
}

func TestAddOrReplaceCreatesDeepMissingParents(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")

	root, err := e.AddOrReplace(root, "a/b/c.txt", fileKey)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	leaf, found, err := e.Resolve(root, "a/b/c.txt")
	if err != nil || !found || leaf != fileKey {
		t.Fatalf("resolve a/b/c.txt: %v %v %v", leaf, found, err)
	}
}

func TestAddOrReplaceFailsWhenParentIsFile(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")
	root, err := e.AddOrReplace(root, "a", fileKey)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	if _, err := e.AddOrReplace(root, "a/b.txt", fileKey); !realmerr.Is(err, realmerr.NotADirectory) {
		t.Fatalf("expected NotADirectory, got %v", err)
	}
}

func TestRemoveFailsOnMissingEntry(t *testing.T) {
	e, root := newEngine(t)
	if _, err := e.Remove(root, "nope"); !realmerr.Is(err, realmerr.EntryNotFound) {
		t.Fatalf("expected EntryNotFound, got %v", err)
	}
}

func TestInvalidPathOnEmptyMutation(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")
	if _, err := e.AddOrReplace(root, "", fileKey); !realmerr.Is(err, realmerr.InvalidPath) {
		t.Fatalf("expected InvalidPath, got %v", err)
	}
}

func TestNumericIndexAddressing(t *testing.T) {
	e, root := newEngine(t)
	fileA := putFile(t, e, "A", "text/plain")
	fileB := putFile(t, e, "B", "text/plain")

	root, err := e.AddOrReplace(root, "alpha", fileA)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	root, err = e.AddOrReplace(root, "beta", fileB)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}

	// alpha sorts before beta, so index 0 should resolve to alpha's key.
	leaf, found, err := e.Resolve(root, "0")
	if err != nil || !found || leaf != fileA {
		t.Fatalf("resolve \"0\": %v %v %v", leaf, found, err)
	}
}

func TestCopyOnWritePurity(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")

	beforeBody, err := e.Store.Get(root)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}

	newRoot, err := e.AddOrReplace(root, "a.txt", fileKey)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	if newRoot == root {
		t.Fatal("root should have changed")
	}

	afterBody, err := e.Store.Get(root)
	if err != nil {
		t.Fatalf("get old root after mutation: %v", err)
	}
	if string(beforeBody) != string(afterBody) {
		t.Fatal("old root's bytes were mutated in place")
	}
}

func TestRemoveThenAddInverse(t *testing.T) {
	e, root := newEngine(t)
	fileKey := putFile(t, e, "hi", "text/plain")

	added, err := e.AddOrReplace(root, "a.txt", fileKey)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	removed, err := e.Remove(added, "a.txt")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed != root {
		t.Fatalf("remove(add(R,p,k),p) should equal R: got %v want %v", removed, root)
	}
}

func TestAddOrReplaceOverwriteIsIdempotentAtRoot(t *testing.T) {
	e, root := newEngine(t)
	file1 := putFile(t, e, "one", "text/plain")
	file2 := putFile(t, e, "two", "text/plain")

	r1, err := e.AddOrReplace(root, "a.txt", file1)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	r2, err := e.AddOrReplace(r1, "a.txt", file2)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	direct, err := e.AddOrReplace(root, "a.txt", file2)
	if err != nil {
		t.Fatalf("AddOrReplace: %v", err)
	}
	if r2 != direct {
		t.Fatalf("add(add(R,p,k1),p,k2) should equal add(R,p,k2): got %v want %v", r2, direct)
	}
}
