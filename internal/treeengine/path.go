package treeengine

import (
	"strings"

	"github.com/arcfs/realm/internal/realmerr"
)

// normalize splits a path into segments: leading/trailing slashes are
// stripped, empty components collapse out (so "/a//b/" behaves like
// "a/b"), and "." / ".." components are rejected outright rather than
// resolved, since the DAG has no notion of a parent directory to walk up
// to. normalize(normalize(p)) always equals normalize(p) because the
// output already contains no separators, empty segments, or dot segments.
func normalize(p string) ([]string, error) {
	raw := strings.Split(p, "/")
	segments := make([]string, 0, len(raw))
	for _, seg := range raw {
		if seg == "" {
			continue
		}
		if seg == "." || seg == ".." {
			return nil, realmerr.New(realmerr.InvalidPath, "path segment %q is not allowed", seg)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// normalizeNonEmpty is normalize plus the "must not be empty" rule required
// of every mutating operation's target path.
func normalizeNonEmpty(p string) ([]string, error) {
	segments, err := normalize(p)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, realmerr.New(realmerr.InvalidPath, "path must not be empty")
	}
	return segments, nil
}
