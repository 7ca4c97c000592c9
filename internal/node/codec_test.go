package node

import (
	"reflect"
	"testing"

	"github.com/arcfs/realm/internal/contentkey"
)

func TestFileRoundTrip(t *testing.T) {
	f := &File{ContentType: "text/plain", Size: 2, Data: []byte("hi")}
	enc, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(enc.Bytes)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, f) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, f)
	}
	reenc, err := Encode(decoded)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if string(reenc.Bytes) != string(enc.Bytes) {
		t.Fatal("re-encoded bytes differ from original")
	}
}

func TestFileWithSuccessor(t *testing.T) {
	next := contentkey.Of([]byte("chunk2"))
	f := &File{ContentType: "application/octet-stream", Size: 10, Data: []byte("0123456789"), Successor: next}
	enc, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(enc.Bytes)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	df := decoded.(*File)
	if df.Successor != next {
		t.Fatalf("successor mismatch: got %v want %v", df.Successor, next)
	}
}

func TestDictRoundTripAndOrderIndependence(t *testing.T) {
	k1 := contentkey.Of([]byte("a"))
	k2 := contentkey.Of([]byte("b"))

	d1, err := NewDict([]string{"beta", "alpha"}, []contentkey.Key{k2, k1})
	if err != nil {
		t.Fatalf("NewDict: %v", err)
	}
	d2, err := NewDict([]string{"alpha", "beta"}, []contentkey.Key{k1, k2})
	if err != nil {
		t.Fatalf("NewDict: %v", err)
	}

	e1, err := Encode(d1)
	if err != nil {
		t.Fatalf("Encode d1: %v", err)
	}
	e2, err := Encode(d2)
	if err != nil {
		t.Fatalf("Encode d2: %v", err)
	}
	if string(e1.Bytes) != string(e2.Bytes) {
		t.Fatal("dicts with same entries built in different orders produced different bytes")
	}
	if e1.Key != e2.Key {
		t.Fatal("dicts with same entries built in different orders produced different keys")
	}
}

func TestDictFoldedNameCollisionIsDeterministic(t *testing.T) {
	k1 := contentkey.Of([]byte("a"))
	k2 := contentkey.Of([]byte("b"))

	// "A" and "a" fold to the same sort key but are distinct, valid entry
	// names; the tie must still resolve to one total order regardless of
	// construction order, or the encoding would not be canonical.
	d1, err := NewDict([]string{"A", "a"}, []contentkey.Key{k1, k2})
	if err != nil {
		t.Fatalf("NewDict: %v", err)
	}
	d2, err := NewDict([]string{"a", "A"}, []contentkey.Key{k2, k1})
	if err != nil {
		t.Fatalf("NewDict: %v", err)
	}

	e1, err := Encode(d1)
	if err != nil {
		t.Fatalf("Encode d1: %v", err)
	}
	e2, err := Encode(d2)
	if err != nil {
		t.Fatalf("Encode d2: %v", err)
	}
	if string(e1.Bytes) != string(e2.Bytes) {
		t.Fatal("folded-equal names in different construction order produced different bytes")
	}
	if e1.Key != e2.Key {
		t.Fatal("folded-equal names in different construction order produced different keys")
	}
	if d1.Names[0] != d2.Names[0] || d1.Names[1] != d2.Names[1] {
		t.Fatalf("inconsistent relative order: d1=%v d2=%v", d1.Names, d2.Names)
	}
}

func TestDictRejectsDuplicateNames(t *testing.T) {
	k := contentkey.Of([]byte("x"))
	if _, err := NewDict([]string{"a", "a"}, []contentkey.Key{k, k}); err == nil {
		t.Fatal("expected error for duplicate names")
	}
}

func TestDictLengthMismatch(t *testing.T) {
	k := contentkey.Of([]byte("x"))
	if _, err := NewDict([]string{"a", "b"}, []contentkey.Key{k}); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestEmptyDict(t *testing.T) {
	enc, err := EmptyDict()
	if err != nil {
		t.Fatalf("EmptyDict: %v", err)
	}
	decoded, err := Decode(enc.Bytes)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d := decoded.(*Dict)
	if !d.Empty() {
		t.Fatal("expected empty dict")
	}
}

func TestSuccessorRoundTrip(t *testing.T) {
	next := contentkey.Of([]byte("next"))
	s := &Successor{Next: next}
	enc, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(enc.Bytes)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.(*Successor).Next != next {
		t.Fatal("successor round trip mismatch")
	}
}

func TestKeyDeterminismAcrossEncodeAndKeyOf(t *testing.T) {
	f := &File{ContentType: "text/plain", Size: 1, Data: []byte("x")}
	enc, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if KeyOf(enc.Bytes) != enc.Key {
		t.Fatal("KeyOf(encoded bytes) should equal Encode's derived key")
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := [][]byte{
		{},
		{0xFF},
		{byte(KindFile)}, // truncated
	}
	for _, c := range cases {
		if _, err := Decode(c); err == nil {
			t.Fatalf("expected malformed error for %v", c)
		} else if _, ok := err.(*MalformedNodeError); !ok {
			t.Fatalf("expected *MalformedNodeError, got %T", err)
		}
	}
}

func TestDecodeRejectsUnsortedDict(t *testing.T) {
	k := contentkey.Of([]byte("x"))
	d := &Dict{Names: []string{"beta", "alpha"}, Children: []contentkey.Key{k, k}}
	var buf []byte
	buf = append(buf, byte(KindDict))
	// hand-encode without going through NewDict's sort to exercise Decode's validation
	encBytes, _ := Encode(d) // Encode canonicalizes via NewDict, so build raw bytes manually instead
	_ = encBytes
	raw := rawDictBytes(d.Names, d.Children)
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected decode to reject unsorted dict entries")
	}
	_ = buf
}

func rawDictBytes(names []string, children []contentkey.Key) []byte {
	enc, _ := EncodeDict(nil, nil)
	_ = enc
	var out []byte
	out = append(out, byte(KindDict))
	out = appendUvarintBytes(out, uint64(len(names)))
	for i, n := range names {
		out = appendUvarintBytes(out, uint64(len(n)))
		out = append(out, []byte(n)...)
		out = append(out, children[i][:]...)
	}
	return out
}

func appendUvarintBytes(dst []byte, v uint64) []byte {
	var tmp [10]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	n++
	return append(dst, tmp[:n]...)
}
