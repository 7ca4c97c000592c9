// Package delegate persists capability records — the root delegate and
// branches of a realm — and their current root pointers.
package delegate

import (
	"time"

	"github.com/arcfs/realm/internal/contentkey"
)

// Lifetime distinguishes a branch's expiry model.
type Lifetime uint8

const (
	// LifetimeLimited carries an explicit Expiry; this is the branch case.
	LifetimeLimited Lifetime = 1
	// LifetimeUnlimited carries a RefreshFingerprint and a rolling,
	// short-lived AccessExpiry.
	LifetimeUnlimited Lifetime = 2
)

// Delegate is a capability record identifying a sub-root of a realm.
type Delegate struct {
	ID       string
	RealmID  string
	ParentID string // empty for the realm's root delegate
	MountPath string // path within the parent's tree this delegate owns; empty for root

	// TokenFingerprint is a one-way hash of the bearer token bytes that
	// authenticate as this delegate.
	TokenFingerprint string

	Lifetime Lifetime

	// Set when Lifetime == LifetimeLimited.
	Expiry time.Time

	// Set when Lifetime == LifetimeUnlimited. The source repo's two
	// diverging conventions for the unlimited case (store a refresh
	// fingerprint vs. a rolling access expiry) are resolved here: both
	// fields are kept, but only AccessExpiry gates authentication
	// (see DESIGN.md, "unlimited delegate expiry").
	RefreshFingerprint string
	AccessExpiry       time.Time

	Closed bool

	CreatedAt time.Time

	// Permissions gates a long-term delegate's capabilities when it is
	// authenticated in place of its owning user (see internal/realmauth).
	// Meaningless for the root delegate and for branches.
	Permissions []string

	// AccessMode gates a branch/worker delegate's write capability:
	// "readwrite" or "readonly". Branches default to "readwrite" since
	// their purpose is isolated mutation; see DESIGN.md.
	AccessMode string
}

const (
	PermissionFileRead     = "file_read"
	PermissionFileWrite    = "file_write"
	PermissionBranchManage = "branch_manage"
)

const (
	AccessModeReadWrite = "readwrite"
	AccessModeReadOnly  = "readonly"
)

func hasPermission(perms []string, want string) bool {
	for _, p := range perms {
		if p == want {
			return true
		}
	}
	return false
}

// HasPermission reports whether d carries the named permission.
func (d *Delegate) HasPermission(name string) bool {
	return hasPermission(d.Permissions, name)
}

// IsRoot reports whether d is a realm's root delegate.
func (d *Delegate) IsRoot() bool {
	return d.ParentID == ""
}

// Expired reports whether d's credential is no longer valid at instant now.
func (d *Delegate) Expired(now time.Time) bool {
	switch d.Lifetime {
	case LifetimeLimited:
		return !now.Before(d.Expiry)
	case LifetimeUnlimited:
		return !now.Before(d.AccessExpiry)
	default:
		return true
	}
}

// Root is the separately-keyed current root pointer for a delegate. It may
// be absent (Present == false), e.g. a brand-new branch with no root yet.
type Root struct {
	Key     contentkey.Key
	Present bool
}
