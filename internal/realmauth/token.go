// Package realmauth parses the single bearer credential a request carries
// into an authenticated Caller, and exposes the capability predicates
// operations gate on. It never terminates a TLS connection or decides
// transport codes; that is the wire layer's job (spec §6, out of scope
// here).
package realmauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arcfs/realm/internal/delegate"
	"lukechampine.com/blake3"
)

// Kind is the authenticated caller's variant.
type Kind int

const (
	_ Kind = iota
	KindUser
	KindDelegate
	KindWorker
)

// Caller is the authenticated identity plus the context needed to derive
// the effective realm id and evaluate capability predicates.
type Caller struct {
	Kind Kind

	// RealmID is the realm this caller's requests are scoped to.
	RealmID string

	// UserID is set for KindUser.
	UserID string

	// DelegateID is set for KindDelegate and KindWorker.
	DelegateID string

	// ClientID is set for KindDelegate when the credential's JSON payload
	// carried one.
	ClientID string

	// Permissions is set for KindDelegate.
	Permissions []string

	// AccessMode is set for KindWorker ("readwrite" or "readonly").
	AccessMode string
}

// MayRead reports whether the caller can read realm content.
func (c *Caller) MayRead() bool {
	switch c.Kind {
	case KindUser:
		return true
	case KindDelegate:
		return hasPermission(c.Permissions, delegate.PermissionFileRead)
	case KindWorker:
		return true
	default:
		return false
	}
}

// MayWrite reports whether the caller can mutate realm content.
func (c *Caller) MayWrite() bool {
	switch c.Kind {
	case KindUser:
		return true
	case KindDelegate:
		return hasPermission(c.Permissions, delegate.PermissionFileWrite)
	case KindWorker:
		return c.AccessMode == delegate.AccessModeReadWrite
	default:
		return false
	}
}

// MayManageBranches reports whether the caller can create, list, revoke, or
// complete branches.
func (c *Caller) MayManageBranches() bool {
	switch c.Kind {
	case KindUser:
		return true
	case KindDelegate:
		return hasPermission(c.Permissions, delegate.PermissionBranchManage)
	default:
		return false
	}
}

func hasPermission(perms []string, want string) bool {
	for _, p := range perms {
		if p == want {
			return true
		}
	}
	return false
}

// ErrUnauthorized is the error Authenticate returns for a rejected
// credential. It is this package's own type rather than a realmerr.Error,
// so this package does not depend on realmerr; no caller in this repository
// converts it to the realmerr.Unauthorized kind.
type ErrUnauthorized struct{ Reason string }

func (e *ErrUnauthorized) Error() string { return "realmauth: unauthorized: " + e.Reason }

// userCredential is the JSON payload carried by the middle, base64url-coded
// segment of a three-part dotted credential.
type userCredential struct {
	Sub      string `json:"sub"`
	ClientID string `json:"client_id,omitempty"`
}

// Fingerprint computes the one-way hash recorded against a delegate's
// TokenFingerprint field, so the raw bearer token is never itself
// persisted.
func Fingerprint(token string) string {
	sum := blake3.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// DelegateLookup resolves the delegates belonging to a realm, used to find
// a long-term delegate matching a user-shaped credential's fingerprint.
type DelegateLookup interface {
	ListDelegates(realmID string) ([]*delegate.Delegate, error)
	GetDelegate(id string) (*delegate.Delegate, error)
}

// Authenticate parses token into a Caller. now is the instant against which
// expiry is checked (callers pass time.Now(); tests pass a fixed instant).
func Authenticate(token string, now time.Time, lookup DelegateLookup) (*Caller, error) {
	if token == "" {
		return nil, &ErrUnauthorized{Reason: "missing credential"}
	}

	if strings.Contains(token, ".") {
		return authenticateUserShaped(token, now, lookup)
	}
	return authenticateBranchShaped(token, now, lookup)
}

func authenticateUserShaped(token string, now time.Time, lookup DelegateLookup) (*Caller, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, &ErrUnauthorized{Reason: "dotted credential must have exactly three parts"}
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		// Some issuers pad the middle segment; accept padded b64url too.
		payload, err = base64.URLEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, &ErrUnauthorized{Reason: fmt.Sprintf("undecodable credential payload: %v", err)}
		}
	}

	var cred userCredential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return nil, &ErrUnauthorized{Reason: fmt.Sprintf("malformed credential payload: %v", err)}
	}
	if cred.Sub == "" {
		return nil, &ErrUnauthorized{Reason: "credential payload missing sub"}
	}

	fingerprint := Fingerprint(token)

	// A long-term delegate impersonates its owning user's credential shape
	// when its fingerprint matches; it carries its own fine-grained
	// permissions instead of full user capability.
	if delegates, err := lookup.ListDelegates(cred.Sub); err == nil {
		for _, d := range delegates {
			if d.Lifetime != delegate.LifetimeUnlimited {
				continue
			}
			if d.TokenFingerprint != fingerprint {
				continue
			}
			if d.Expired(now) {
				return nil, &ErrUnauthorized{Reason: "delegate credential expired"}
			}
			return &Caller{
				Kind:        KindDelegate,
				RealmID:     d.RealmID,
				DelegateID:  d.ID,
				ClientID:    cred.ClientID,
				Permissions: d.Permissions,
			}, nil
		}
	}

	return &Caller{Kind: KindUser, RealmID: cred.Sub, UserID: cred.Sub}, nil
}

func authenticateBranchShaped(token string, now time.Time, lookup DelegateLookup) (*Caller, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			return nil, &ErrUnauthorized{Reason: fmt.Sprintf("undecodable branch credential: %v", err)}
		}
	}
	if len(raw) == 0 || !isASCII(raw) {
		return nil, &ErrUnauthorized{Reason: "branch credential must decode to a non-empty ASCII id"}
	}
	branchID := string(raw)

	d, err := lookup.GetDelegate(branchID)
	if err != nil {
		return nil, &ErrUnauthorized{Reason: "branch not found"}
	}
	if d.Expired(now) {
		return nil, &ErrUnauthorized{Reason: "branch expired"}
	}

	accessMode := d.AccessMode
	if accessMode == "" {
		accessMode = delegate.AccessModeReadWrite
	}

	return &Caller{
		Kind:       KindWorker,
		RealmID:    d.RealmID,
		DelegateID: d.ID,
		AccessMode: accessMode,
	}, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c > 0x7F {
			return false
		}
	}
	return true
}

// ResolveRealmBinding enforces that the realm id named in a request path
// equals the caller's effective realm, with the literal "me" accepted as an
// alias for the caller's own realm.
func ResolveRealmBinding(pathRealm string, c *Caller) bool {
	if pathRealm == "me" {
		return true
	}
	return pathRealm == c.RealmID
}
