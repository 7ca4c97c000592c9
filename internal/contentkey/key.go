// Package contentkey implements the short content-addressed key derived from
// a node's encoded bytes.
//
// A key is the first 16 bytes of the BLAKE3-256 digest of a node body, with
// byte 0 overwritten by a size-class flag. The flag buys callers a cheap,
// branch-free hint about body size (empty / tiny / small / file-cap / large)
// without a blob-store round trip; it costs nothing for collision resistance
// because the remaining 15 digest bytes plus the flag's correlation with the
// real length still leave an overwhelming amount of entropy for distinct
// bodies of the same size class.
package contentkey

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Size is the length in bytes of a Key.
const Size = 16

// Key is the raw binary form of a content key, suitable for embedding in
// codec-internal references (directory entries, successor links).
type Key [Size]byte

// Zero is the all-zero key. It never legitimately addresses a node (no body
// hashes to it with overwhelming probability) and is used as a sentinel for
// "absent" fields such as an unset file successor link.
var Zero = Key{}

// IsZero reports whether k is the sentinel zero key.
func (k Key) IsZero() bool {
	return k == Zero
}

// sizeFlag buckets a body length into a small flag byte.
func sizeFlag(n int) byte {
	switch {
	case n == 0:
		return 0x00
	case n <= 1<<10: // 1 KiB
		return 0x01
	case n <= 1<<16: // 64 KiB
		return 0x02
	case n <= 4<<20: // 4 MiB, the default inline-file cap
		return 0x03
	default:
		return 0x04
	}
}

// Of derives the content key of body: the first Size bytes of
// BLAKE3-256(body), with byte 0 replaced by a size-class flag.
func Of(body []byte) Key {
	digest := blake3.Sum256(body)
	var k Key
	copy(k[:], digest[:Size])
	k[0] = sizeFlag(len(body))
	return k
}

// String returns the printable (lowercase hex) form of the key. Conversions
// between the raw and printable forms are total and mutually inverse: for
// any Key k, Parse(k.String()) == k, and for any lowercase string s accepted
// by Parse, Parse(s).String() == s. Parse also accepts uppercase hex, which
// String renders back in lowercase.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Parse decodes a printable key produced by String. It fails if s is not
// exactly Size bytes of hex.
func Parse(s string) (Key, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("contentkey: invalid hex: %w", err)
	}
	if len(raw) != Size {
		return Key{}, fmt.Errorf("contentkey: expected %d bytes, got %d", Size, len(raw))
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}
