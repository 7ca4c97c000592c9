package delegate

import (
	"errors"

	"github.com/arcfs/realm/internal/contentkey"
)

// ErrNotFound is returned when a delegate id has no record.
var ErrNotFound = errors.New("delegate: not found")

// Store persists delegate capability records and their root pointers.
// Implementations guarantee: each realm has exactly one delegate with
// ParentID == "" and MountPath == ""; non-root delegate ids are unique
// globally; removing a delegate removes its root pointer.
type Store interface {
	InsertDelegate(d *Delegate) error
	GetDelegate(id string) (*Delegate, error)
	RemoveDelegate(id string) error
	ListDelegates(realmID string) ([]*Delegate, error)

	GetRoot(delegateID string) (Root, error)
	SetRoot(delegateID string, key contentkey.Key) error

	SetClosed(delegateID string) error

	// GetOrCreateRootDelegate lazily creates a realm's unique root
	// delegate on first access. Idempotent: repeated calls for the same
	// realm return the same delegate.
	GetOrCreateRootDelegate(realmID string) (*Delegate, error)
}
