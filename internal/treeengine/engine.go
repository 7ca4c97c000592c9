// Package treeengine implements path-addressed read and copy-on-write
// mutation over the directory DAG: resolve, insert/replace, remove, and
// subtree splice. Every mutation walks from the root to the edit site,
// encodes new directory nodes back up to the root, and returns the new
// root's content key; it never mutates an existing node, and only
// directories on the path are rewritten (files and successors pass through
// untouched).
package treeengine

import (
	"strconv"

	"github.com/arcfs/realm/internal/blobstore"
	"github.com/arcfs/realm/internal/contentkey"
	"github.com/arcfs/realm/internal/node"
	"github.com/arcfs/realm/internal/realmerr"
)

// Engine is the pure functional layer over a blob store and the node codec.
type Engine struct {
	Store blobstore.Store
}

// New builds an Engine over store.
func New(store blobstore.Store) *Engine {
	return &Engine{Store: store}
}

func (e *Engine) loadNode(key contentkey.Key) (node.Node, error) {
	body, err := e.Store.Get(key)
	if err != nil {
		if err == blobstore.ErrNotFound {
			return nil, realmerr.New(realmerr.NotFound, "node %s not found", key)
		}
		return nil, realmerr.Wrap(realmerr.Internal, err, "blob store get failed for %s", key)
	}
	n, err := node.Decode(body)
	if err != nil {
		return nil, realmerr.Wrap(realmerr.MalformedNode, err, "node %s decode failed", key)
	}
	return n, nil
}

func (e *Engine) loadDict(key contentkey.Key) (*node.Dict, error) {
	n, err := e.loadNode(key)
	if err != nil {
		return nil, err
	}
	d, ok := n.(*node.Dict)
	if !ok {
		return nil, realmerr.New(realmerr.NotADirectory, "%s is a %s, not a directory", key, n.Kind())
	}
	return d, nil
}

func (e *Engine) putNode(n node.Node) (contentkey.Key, error) {
	enc, err := node.Encode(n)
	if err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "encode node")
	}
	if err := e.Store.Put(enc.Key, enc.Bytes); err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "store node %s", enc.Key)
	}
	return enc.Key, nil
}

// findChild resolves a path segment against a directory: first by literal
// name, then, only when no name matches, as a non-negative integer index
// into the child list.
func findChild(d *node.Dict, segment string) (idx int, ok bool) {
	if i := d.Find(segment); i >= 0 {
		return i, true
	}
	if n, err := strconv.Atoi(segment); err == nil && n >= 0 && n < len(d.Children) {
		return n, true
	}
	return 0, false
}

// Resolve walks from root matching each path segment, returning the node
// key reached. The empty path returns root unchanged. A missing segment
// yields (zero, false, nil), never an error.
func (e *Engine) Resolve(root contentkey.Key, path string) (contentkey.Key, bool, error) {
	segments, err := normalize(path)
	if err != nil {
		return contentkey.Key{}, false, err
	}
	if len(segments) == 0 {
		return root, true, nil
	}

	cur := root
	for _, seg := range segments {
		n, err := e.loadNode(cur)
		if err != nil {
			return contentkey.Key{}, false, err
		}
		d, ok := n.(*node.Dict)
		if !ok {
			// A non-directory mid-path means the remaining segment cannot
			// exist; this is a miss, not a traversal error.
			return contentkey.Key{}, false, nil
		}
		idx, found := findChild(d, seg)
		if !found {
			return contentkey.Key{}, false, nil
		}
		cur = d.Children[idx]
	}
	return cur, true, nil
}

// walkEdit walks dirSegments down from root, requiring each step to resolve
// to an existing directory (missingKind on a miss, NotADirectory on a
// non-directory), then applies edit to the directory reached, and rewrites
// every directory on the path back up to root with the updated child key.
func (e *Engine) walkEdit(root contentkey.Key, dirSegments []string, missingKind realmerr.Kind, edit func(*node.Dict) (*node.Dict, error)) (contentkey.Key, error) {
	if len(dirSegments) == 0 {
		d, err := e.loadDict(root)
		if err != nil {
			return contentkey.Key{}, err
		}
		newD, err := edit(d)
		if err != nil {
			return contentkey.Key{}, err
		}
		return e.putNode(newD)
	}

	d, err := e.loadDict(root)
	if err != nil {
		return contentkey.Key{}, err
	}

	seg := dirSegments[0]
	idx, found := findChild(d, seg)
	if !found {
		return contentkey.Key{}, realmerr.New(missingKind, "path segment %q not found", seg)
	}

	newChildKey, err := e.walkEdit(d.Children[idx], dirSegments[1:], missingKind, edit)
	if err != nil {
		return contentkey.Key{}, err
	}

	newChildren := append([]contentkey.Key(nil), d.Children...)
	newChildren[idx] = newChildKey
	newD, err := node.NewDict(append([]string(nil), d.Names...), newChildren)
	if err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "rebuild directory")
	}
	return e.putNode(newD)
}

// walkEditCreate behaves like walkEdit, but a path segment that does not
// yet resolve to a child is not an error: an empty directory is created in
// its place and the walk continues into it. This is the mkdir-p half of
// every mutation whose contract is to create intermediate structure
// (AddOrReplace's parent chain, ReplaceSubtree's mount path).
func (e *Engine) walkEditCreate(root contentkey.Key, dirSegments []string, edit func(*node.Dict) (*node.Dict, error)) (contentkey.Key, error) {
	if len(dirSegments) == 0 {
		d, err := e.loadDict(root)
		if err != nil {
			return contentkey.Key{}, err
		}
		newD, err := edit(d)
		if err != nil {
			return contentkey.Key{}, err
		}
		return e.putNode(newD)
	}

	d, err := e.loadDict(root)
	if err != nil {
		return contentkey.Key{}, err
	}

	seg := dirSegments[0]
	idx, found := findChild(d, seg)

	var childRoot contentkey.Key
	if found {
		child, err := e.loadNode(d.Children[idx])
		if err != nil {
			return contentkey.Key{}, err
		}
		if _, ok := child.(*node.Dict); !ok {
			return contentkey.Key{}, realmerr.New(realmerr.NotADirectory, "path segment %q is not a directory", seg)
		}
		childRoot = d.Children[idx]
	} else {
		empty, err := node.EmptyDict()
		if err != nil {
			return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "build empty directory")
		}
		if err := e.Store.Put(empty.Key, empty.Bytes); err != nil {
			return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "store empty directory")
		}
		childRoot = empty.Key
	}

	newChildKey, err := e.walkEditCreate(childRoot, dirSegments[1:], edit)
	if err != nil {
		return contentkey.Key{}, err
	}

	names := append([]string(nil), d.Names...)
	children := append([]contentkey.Key(nil), d.Children...)
	if found {
		children[idx] = newChildKey
	} else {
		names = append(names, seg)
		children = append(children, newChildKey)
	}
	newD, err := node.NewDict(names, children)
	if err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "rebuild directory")
	}
	return e.putNode(newD)
}

// AddOrReplace creates any missing directory on the path to the final
// segment's parent (mkdir-p), then inserts the entry if the name is absent
// (preserving canonical ordering) or replaces its child key otherwise.
func (e *Engine) AddOrReplace(root contentkey.Key, path string, childKey contentkey.Key) (contentkey.Key, error) {
	segments, err := normalizeNonEmpty(path)
	if err != nil {
		return contentkey.Key{}, err
	}
	parentSegs, leaf := segments[:len(segments)-1], segments[len(segments)-1]

	return e.walkEditCreate(root, parentSegs, func(d *node.Dict) (*node.Dict, error) {
		names := append([]string(nil), d.Names...)
		children := append([]contentkey.Key(nil), d.Children...)
		if idx := indexOfName(names, leaf); idx >= 0 {
			children[idx] = childKey
		} else {
			names = append(names, leaf)
			children = append(children, childKey)
		}
		newD, err := node.NewDict(names, children)
		if err != nil {
			return nil, realmerr.Wrap(realmerr.Internal, err, "rebuild directory")
		}
		return newD, nil
	})
}

// Remove deletes the entry named by the final path segment. The parent may
// become an empty directory as a result; empty directories are valid.
func (e *Engine) Remove(root contentkey.Key, path string) (contentkey.Key, error) {
	segments, err := normalizeNonEmpty(path)
	if err != nil {
		return contentkey.Key{}, err
	}
	parentSegs, leaf := segments[:len(segments)-1], segments[len(segments)-1]

	return e.walkEdit(root, parentSegs, realmerr.EntryNotFound, func(d *node.Dict) (*node.Dict, error) {
		idx, found := findChild(d, leaf)
		if !found {
			return nil, realmerr.New(realmerr.EntryNotFound, "entry %q not found", leaf)
		}
		names := append(append([]string(nil), d.Names[:idx]...), d.Names[idx+1:]...)
		children := append(append([]contentkey.Key(nil), d.Children[:idx]...), d.Children[idx+1:]...)
		newD, err := node.NewDict(names, children)
		if err != nil {
			return nil, realmerr.Wrap(realmerr.Internal, err, "rebuild directory")
		}
		return newD, nil
	})
}

// ReplaceSubtree creates any missing directory on the path to the terminal
// segment's parent (mkdir-p), then inserts or replaces the entry at the
// terminal segment with newChildKey. It is used by branch completion to
// splice a branch's root into its parent at the branch's mount path, which
// may not yet exist there (a branch may be completed without its parent
// ever having created the mount point).
func (e *Engine) ReplaceSubtree(root contentkey.Key, segments []string, newChildKey contentkey.Key) (contentkey.Key, error) {
	if len(segments) == 0 {
		return contentkey.Key{}, realmerr.New(realmerr.InvalidPath, "path must not be empty")
	}
	parentSegs, leaf := segments[:len(segments)-1], segments[len(segments)-1]

	return e.walkEditCreate(root, parentSegs, func(d *node.Dict) (*node.Dict, error) {
		names := append([]string(nil), d.Names...)
		children := append([]contentkey.Key(nil), d.Children...)
		if idx := indexOfName(names, leaf); idx >= 0 {
			children[idx] = newChildKey
		} else {
			names = append(names, leaf)
			children = append(children, newChildKey)
		}
		newD, err := node.NewDict(names, children)
		if err != nil {
			return nil, realmerr.Wrap(realmerr.Internal, err, "rebuild directory")
		}
		return newD, nil
	})
}

// Mkdir inserts the canonical empty directory at path, equivalent to
// AddOrReplace with the empty dict's key.
func (e *Engine) Mkdir(root contentkey.Key, path string) (contentkey.Key, error) {
	empty, err := node.EmptyDict()
	if err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "build empty directory")
	}
	if err := e.Store.Put(empty.Key, empty.Bytes); err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "store empty directory")
	}
	return e.AddOrReplace(root, path, empty.Key)
}

// Move resolves from, removes it, and re-inserts the resolved key at to.
// Both endpoints must normalize and the source must exist.
func (e *Engine) Move(root contentkey.Key, from, to string) (contentkey.Key, error) {
	childKey, found, err := e.Resolve(root, from)
	if err != nil {
		return contentkey.Key{}, err
	}
	if !found {
		return contentkey.Key{}, realmerr.New(realmerr.EntryNotFound, "move source %q not found", from)
	}
	afterRemove, err := e.Remove(root, from)
	if err != nil {
		return contentkey.Key{}, err
	}
	return e.AddOrReplace(afterRemove, to, childKey)
}

// Copy resolves from and inserts its key at to, without removing the
// source.
func (e *Engine) Copy(root contentkey.Key, from, to string) (contentkey.Key, error) {
	childKey, found, err := e.Resolve(root, from)
	if err != nil {
		return contentkey.Key{}, err
	}
	if !found {
		return contentkey.Key{}, realmerr.New(realmerr.EntryNotFound, "copy source %q not found", from)
	}
	return e.AddOrReplace(root, to, childKey)
}

func indexOfName(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// NormalizeSegments exposes path normalization to callers (e.g. the realm
// service) that need the segment list without performing a mutation, such
// as resolving a branch's mount path before calling ReplaceSubtree.
func NormalizeSegments(path string) ([]string, error) {
	return normalize(path)
}
