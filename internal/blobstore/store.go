// Package blobstore provides byte-addressed get/put/del/has of opaque node
// bodies keyed by content key. Two backends are provided: an in-memory one
// for tests and development, and a filesystem one that lays out one file per
// key under a base directory.
package blobstore

import (
	"errors"

	"github.com/arcfs/realm/internal/contentkey"
)

// ErrNotFound is returned by Get when no body has been put under key.
var ErrNotFound = errors.New("blobstore: not found")

// Store is a plain content-addressed KV. Put is idempotent for equal bytes;
// concurrent puts of identical bytes are safe. There is no ordering
// guarantee across distinct keys.
type Store interface {
	Get(key contentkey.Key) ([]byte, error)
	Put(key contentkey.Key, body []byte) error
	Del(key contentkey.Key) error
	Has(key contentkey.Key) (bool, error)
}
