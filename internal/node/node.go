// Package node defines the three node variants of the content-addressed
// graph (file, directory, successor) and their canonical byte encoding.
//
// The on-wire layout is deliberately small and hand-rolled rather than a
// general-purpose serialization format: a single format version is assumed
// (spec non-goal), so there is no schema evolution to plan for, and the
// shape is simple enough that uvarint-prefixed fields stay canonical without
// a library.
package node

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arcfs/realm/internal/contentkey"
)

// Kind tags which variant a Node is.
type Kind uint8

const (
	KindFile Kind = 1
	KindDict Kind = 2
	// KindSuccessor identifies a continuation pointer used by file chains.
	// The codec round-trips it; no mutation path in treeengine produces or
	// consumes one today (reserved for a future large-file extension).
	KindSuccessor Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDict:
		return "dict"
	case KindSuccessor:
		return "successor"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Node is the common interface implemented by File, Dict, and Successor.
type Node interface {
	Kind() Kind
}

// File is a leaf node: a content-type string, an explicit size, and an
// inline byte payload. Successor is set when the file's content continues
// into a successor chain (unused by the mutation operations defined here).
type File struct {
	ContentType string
	Size        int64
	Data        []byte
	Successor   contentkey.Key // contentkey.Zero when absent
}

func (*File) Kind() Kind { return KindFile }

// Dict is a directory node: parallel, equal-length, name-sorted sequences
// of child names and child content keys. Use NewDict to construct one so the
// name-uniqueness and ordering invariants are enforced in one place.
type Dict struct {
	Names    []string
	Children []contentkey.Key
}

func (*Dict) Kind() Kind { return KindDict }

// NewDict builds a canonical Dict from names and their corresponding child
// keys. It sorts entries by locale-insensitive lexicographic name order and
// rejects duplicate names, so two dicts built from the same set of
// (name, key) pairs in different orders are identical once built.
func NewDict(names []string, children []contentkey.Key) (*Dict, error) {
	if len(names) != len(children) {
		return nil, fmt.Errorf("node: dict names (%d) and children (%d) length mismatch", len(names), len(children))
	}

	type pair struct {
		name  string
		child contentkey.Key
	}
	pairs := make([]pair, len(names))
	for i, n := range names {
		pairs[i] = pair{n, children[i]}
	}
	sort.Slice(pairs, func(i, j int) bool {
		fi, fj := foldKey(pairs[i].name), foldKey(pairs[j].name)
		if fi != fj {
			return fi < fj
		}
		// Distinct names that fold equal (e.g. "A" and "a") still need a
		// total order so the encoding is canonical; break the tie on the
		// raw bytes.
		return pairs[i].name < pairs[j].name
	})

	d := &Dict{
		Names:    make([]string, len(pairs)),
		Children: make([]contentkey.Key, len(pairs)),
	}
	for i, p := range pairs {
		if i > 0 && d.Names[i-1] == p.name {
			return nil, fmt.Errorf("node: duplicate child name %q", p.name)
		}
		d.Names[i] = p.name
		d.Children[i] = p.child
	}
	return d, nil
}

// foldKey produces the locale-insensitive sort key used to order directory
// entries: simple case-folding is sufficient here because the codec only
// needs a stable total order, not true Unicode collation.
func foldKey(name string) string {
	return strings.ToLower(name)
}

// Find returns the index of name among the dict's children, or -1.
func (d *Dict) Find(name string) int {
	// Names are sorted by foldKey, not by raw bytes, so a linear scan is
	// used rather than sort.Search against the raw names.
	for i, n := range d.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Empty reports whether the dict has no entries.
func (d *Dict) Empty() bool {
	return len(d.Names) == 0
}

// Successor is a continuation pointer. Present in the codec for forward
// compatibility with chained large files; unused by the tree engine.
type Successor struct {
	Next contentkey.Key
}

func (*Successor) Kind() Kind { return KindSuccessor }
