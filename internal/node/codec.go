package node

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/arcfs/realm/internal/contentkey"
)

// MalformedNodeError is returned by Decode when bytes do not describe a
// well-formed node of any known kind.
type MalformedNodeError struct {
	Reason string
}

func (e *MalformedNodeError) Error() string {
	return fmt.Sprintf("node: malformed node: %s", e.Reason)
}

func malformed(format string, args ...any) error {
	return &MalformedNodeError{Reason: fmt.Sprintf(format, args...)}
}

// Encoded bundles a node's canonical bytes with its derived content key.
type Encoded struct {
	Bytes []byte
	Key   contentkey.Key
}

// Encode serializes n into its canonical byte form and derives its content
// key. Encoding is canonical: for any value V, Decode(Encode(V).Bytes) == V.
func Encode(n Node) (Encoded, error) {
	var buf bytes.Buffer

	switch v := n.(type) {
	case *File:
		buf.WriteByte(byte(KindFile))
		writeString(&buf, v.ContentType)
		writeUvarint(&buf, uint64(v.Size))
		if v.Successor.IsZero() {
			buf.WriteByte(0)
		} else {
			buf.WriteByte(1)
			buf.Write(v.Successor[:])
		}
		writeUvarint(&buf, uint64(len(v.Data)))
		buf.Write(v.Data)

	case *Dict:
		if len(v.Names) != len(v.Children) {
			return Encoded{}, fmt.Errorf("node: dict names (%d) and children (%d) length mismatch", len(v.Names), len(v.Children))
		}
		canon, err := NewDict(v.Names, v.Children)
		if err != nil {
			return Encoded{}, err
		}
		buf.WriteByte(byte(KindDict))
		writeUvarint(&buf, uint64(len(canon.Names)))
		for i, name := range canon.Names {
			writeString(&buf, name)
			buf.Write(canon.Children[i][:])
		}

	case *Successor:
		buf.WriteByte(byte(KindSuccessor))
		buf.Write(v.Next[:])

	default:
		return Encoded{}, fmt.Errorf("node: unknown node type %T", n)
	}

	body := buf.Bytes()
	return Encoded{Bytes: body, Key: contentkey.Of(body)}, nil
}

// KeyOf exposes content-key derivation for callers that already hold a
// node's encoded bytes (e.g. after a blob-store read).
func KeyOf(body []byte) contentkey.Key {
	return contentkey.Of(body)
}

// Decode parses canonical bytes into the node they describe. It fails with
// a *MalformedNodeError on any structural error.
func Decode(body []byte) (Node, error) {
	if len(body) == 0 {
		return nil, malformed("empty body")
	}
	r := bytes.NewReader(body)

	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, malformed("read kind: %v", err)
	}

	switch Kind(kindByte) {
	case KindFile:
		contentType, err := readString(r)
		if err != nil {
			return nil, malformed("read content type: %v", err)
		}
		size, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, malformed("read size: %v", err)
		}
		hasSuccessor, err := r.ReadByte()
		if err != nil {
			return nil, malformed("read successor flag: %v", err)
		}
		var successor contentkey.Key
		if hasSuccessor == 1 {
			if err := readFixed(r, successor[:]); err != nil {
				return nil, malformed("read successor key: %v", err)
			}
		} else if hasSuccessor != 0 {
			return nil, malformed("invalid successor flag %d", hasSuccessor)
		}
		dataLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, malformed("read data length: %v", err)
		}
		data := make([]byte, dataLen)
		if err := readFixed(r, data); err != nil {
			return nil, malformed("read data: %v", err)
		}
		if r.Len() != 0 {
			return nil, malformed("trailing bytes after file node")
		}
		return &File{ContentType: contentType, Size: int64(size), Data: data, Successor: successor}, nil

	case KindDict:
		count, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, malformed("read entry count: %v", err)
		}
		names := make([]string, count)
		children := make([]contentkey.Key, count)
		for i := uint64(0); i < count; i++ {
			name, err := readString(r)
			if err != nil {
				return nil, malformed("read entry %d name: %v", i, err)
			}
			var key contentkey.Key
			if err := readFixed(r, key[:]); err != nil {
				return nil, malformed("read entry %d key: %v", i, err)
			}
			names[i] = name
			children[i] = key
		}
		if r.Len() != 0 {
			return nil, malformed("trailing bytes after dict node")
		}
		if err := checkSorted(names); err != nil {
			return nil, malformed("%v", err)
		}
		return &Dict{Names: names, Children: children}, nil

	case KindSuccessor:
		var next contentkey.Key
		if err := readFixed(r, next[:]); err != nil {
			return nil, malformed("read successor next: %v", err)
		}
		if r.Len() != 0 {
			return nil, malformed("trailing bytes after successor node")
		}
		return &Successor{Next: next}, nil

	default:
		return nil, malformed("unknown kind byte %d", kindByte)
	}
}

func checkSorted(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		if _, dup := seen[n]; dup {
			return fmt.Errorf("duplicate entry name %q", n)
		}
		seen[n] = struct{}{}
		if i > 0 {
			// Same order as NewDict: folded name first, raw name on a tie.
			fp, fn := foldKey(names[i-1]), foldKey(n)
			if fp > fn || (fp == fn && names[i-1] > n) {
				return fmt.Errorf("entries not in canonical order: %q before %q", names[i-1], n)
			}
		}
	}
	return nil
}

// EncodeDict is a convenience wrapper over NewDict + Encode.
func EncodeDict(names []string, children []contentkey.Key) (Encoded, error) {
	d, err := NewDict(names, children)
	if err != nil {
		return Encoded{}, err
	}
	return Encode(d)
}

// EncodeFile is a convenience wrapper constructing and encoding a File node.
func EncodeFile(data []byte, contentType string, size int64) (Encoded, error) {
	return Encode(&File{ContentType: contentType, Size: size, Data: data})
}

// EmptyDict is the canonical empty directory, used by mkdir.
func EmptyDict() (Encoded, error) {
	return EncodeDict(nil, nil)
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if err := readFixed(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readFixed(r *bytes.Reader, dst []byte) error {
	n, err := r.Read(dst)
	if err != nil {
		if len(dst) == 0 {
			return nil
		}
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("short read: wanted %d, got %d", len(dst), n)
	}
	return nil
}
