// Package realm is the front-facing orchestrator: it resolves an
// authenticated caller to a realm and delegate, drives the tree engine to
// read and mutate that delegate's current root, commits the resulting root
// to the delegate store, and manages branch creation, completion, and
// revocation. It is the only package that wires the blob store, the node
// codec (via treeengine), the delegate store, and the auth layer together.
package realm

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arcfs/realm/internal/blobstore"
	"github.com/arcfs/realm/internal/contentkey"
	"github.com/arcfs/realm/internal/delegate"
	"github.com/arcfs/realm/internal/node"
	"github.com/arcfs/realm/internal/realmauth"
	"github.com/arcfs/realm/internal/realmerr"
	"github.com/arcfs/realm/internal/treeengine"
)

// Service orchestrates the core's five components behind a small set of
// caller-scoped operations.
type Service struct {
	Blobs     blobstore.Store
	Delegates delegate.Store
	Tree      *treeengine.Engine

	maxFileBytes int64
	maxBranchTTL time.Duration
	log          zerolog.Logger
}

// Options configures a Service beyond its two stores.
type Options struct {
	MaxFileBytes int64
	MaxBranchTTL time.Duration
	Log          zerolog.Logger
}

// New builds a Service over blobs and delegates.
func New(blobs blobstore.Store, delegates delegate.Store, opts Options) *Service {
	return &Service{
		Blobs:        blobs,
		Delegates:    delegates,
		Tree:         treeengine.New(blobs),
		maxFileBytes: opts.MaxFileBytes,
		maxBranchTTL: opts.MaxBranchTTL,
		log:          opts.Log,
	}
}

// effectiveDelegate resolves the delegate a caller's operations apply to:
// the realm's root delegate for a user or long-term delegate, the branch
// delegate itself for a worker.
func (s *Service) effectiveDelegate(caller *realmauth.Caller) (*delegate.Delegate, error) {
	switch caller.Kind {
	case realmauth.KindUser, realmauth.KindDelegate:
		d, err := s.Delegates.GetOrCreateRootDelegate(caller.RealmID)
		if err != nil {
			return nil, realmerr.Wrap(realmerr.Internal, err, "get or create root delegate for realm %s", caller.RealmID)
		}
		return d, nil
	case realmauth.KindWorker:
		d, err := s.Delegates.GetDelegate(caller.DelegateID)
		if err != nil {
			if err == delegate.ErrNotFound {
				return nil, realmerr.New(realmerr.NotFound, "branch %s not found", caller.DelegateID)
			}
			return nil, realmerr.Wrap(realmerr.Internal, err, "get delegate %s", caller.DelegateID)
		}
		if d.Closed {
			return nil, realmerr.New(realmerr.Forbidden, "branch %s is closed", caller.DelegateID)
		}
		return d, nil
	default:
		return nil, realmerr.New(realmerr.Unauthorized, "unrecognized caller kind")
	}
}

func (s *Service) currentRoot(d *delegate.Delegate) (contentkey.Key, bool, error) {
	r, err := s.Delegates.GetRoot(d.ID)
	if err != nil {
		return contentkey.Key{}, false, realmerr.Wrap(realmerr.Internal, err, "get root for delegate %s", d.ID)
	}
	return r.Key, r.Present, nil
}

// ensureRoot returns d's current root, lazily seeding the canonical empty
// directory if d has none yet. Both the realm's root delegate and a
// freshly created branch reach their first write this way.
func (s *Service) ensureRoot(d *delegate.Delegate) (contentkey.Key, error) {
	key, present, err := s.currentRoot(d)
	if err != nil {
		return contentkey.Key{}, err
	}
	if present {
		return key, nil
	}

	empty, err := node.EmptyDict()
	if err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "build empty root directory")
	}
	if err := s.Blobs.Put(empty.Key, empty.Bytes); err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "store empty root directory")
	}
	if err := s.Delegates.SetRoot(d.ID, empty.Key); err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "seed root for delegate %s", d.ID)
	}
	return empty.Key, nil
}

func (s *Service) commitRoot(d *delegate.Delegate, newRoot contentkey.Key) error {
	if err := s.Delegates.SetRoot(d.ID, newRoot); err != nil {
		return realmerr.Wrap(realmerr.Internal, err, "commit root for delegate %s", d.ID)
	}
	return nil
}

// Resolve walks path from caller's effective root. A delegate with no root
// yet resolves every path to a miss rather than an error.
func (s *Service) Resolve(caller *realmauth.Caller, path string) (contentkey.Key, bool, error) {
	if !caller.MayRead() {
		return contentkey.Key{}, false, realmerr.New(realmerr.Forbidden, "caller may not read")
	}
	d, err := s.effectiveDelegate(caller)
	if err != nil {
		return contentkey.Key{}, false, err
	}
	root, present, err := s.currentRoot(d)
	if err != nil {
		return contentkey.Key{}, false, err
	}
	if !present {
		return contentkey.Key{}, false, nil
	}
	return s.Tree.Resolve(root, path)
}

// Stat resolves path and loads the node found there, without interpreting
// its kind; callers distinguish file, directory, or successor.
func (s *Service) Stat(caller *realmauth.Caller, path string) (node.Node, error) {
	key, found, err := s.Resolve(caller, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, realmerr.New(realmerr.NotFound, "path %q not found", path)
	}
	body, err := s.Blobs.Get(key)
	if err != nil {
		if err == blobstore.ErrNotFound {
			return nil, realmerr.New(realmerr.NotFound, "node %s not found", key)
		}
		return nil, realmerr.Wrap(realmerr.Internal, err, "get node %s", key)
	}
	n, err := node.Decode(body)
	if err != nil {
		return nil, realmerr.Wrap(realmerr.MalformedNode, err, "decode node %s", key)
	}
	return n, nil
}

// GetFile resolves path and requires it to be a file.
func (s *Service) GetFile(caller *realmauth.Caller, path string) (*node.File, error) {
	n, err := s.Stat(caller, path)
	if err != nil {
		return nil, err
	}
	f, ok := n.(*node.File)
	if !ok {
		return nil, realmerr.New(realmerr.BadRequest, "%q is a %s, not a file", path, n.Kind())
	}
	return f, nil
}

// ListDirectory resolves path and requires it to be a directory, returning
// its child names in canonical order.
func (s *Service) ListDirectory(caller *realmauth.Caller, path string) ([]string, error) {
	n, err := s.Stat(caller, path)
	if err != nil {
		return nil, err
	}
	d, ok := n.(*node.Dict)
	if !ok {
		return nil, realmerr.New(realmerr.NotADirectory, "%q is a %s, not a directory", path, n.Kind())
	}
	return append([]string(nil), d.Names...), nil
}

// PutFile writes data at path, creating any missing intermediate
// directories along the way (mkdir-p), and returns the new root.
func (s *Service) PutFile(caller *realmauth.Caller, path string, data []byte, contentType string) (contentkey.Key, error) {
	if !caller.MayWrite() {
		return contentkey.Key{}, realmerr.New(realmerr.Forbidden, "caller may not write")
	}
	if s.maxFileBytes > 0 && int64(len(data)) > s.maxFileBytes {
		return contentkey.Key{}, realmerr.New(realmerr.BadRequest, "file of %d bytes exceeds limit of %d", len(data), s.maxFileBytes)
	}

	d, err := s.effectiveDelegate(caller)
	if err != nil {
		return contentkey.Key{}, err
	}
	root, err := s.ensureRoot(d)
	if err != nil {
		return contentkey.Key{}, err
	}

	enc, err := node.EncodeFile(data, contentType, int64(len(data)))
	if err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "encode file")
	}
	if err := s.Blobs.Put(enc.Key, enc.Bytes); err != nil {
		return contentkey.Key{}, realmerr.Wrap(realmerr.Internal, err, "store file body")
	}

	newRoot, err := s.Tree.AddOrReplace(root, path, enc.Key)
	if err != nil {
		return contentkey.Key{}, err
	}
	if err := s.commitRoot(d, newRoot); err != nil {
		return contentkey.Key{}, err
	}
	s.log.Debug().Str("realm", caller.RealmID).Str("path", path).Int("bytes", len(data)).Msg("put file")
	return newRoot, nil
}

// Mkdir creates an empty directory at path, returning the new root.
func (s *Service) Mkdir(caller *realmauth.Caller, path string) (contentkey.Key, error) {
	if !caller.MayWrite() {
		return contentkey.Key{}, realmerr.New(realmerr.Forbidden, "caller may not write")
	}
	d, err := s.effectiveDelegate(caller)
	if err != nil {
		return contentkey.Key{}, err
	}
	root, err := s.ensureRoot(d)
	if err != nil {
		return contentkey.Key{}, err
	}
	newRoot, err := s.Tree.Mkdir(root, path)
	if err != nil {
		return contentkey.Key{}, err
	}
	if err := s.commitRoot(d, newRoot); err != nil {
		return contentkey.Key{}, err
	}
	return newRoot, nil
}

// Remove deletes the entry at path, returning the count removed (always 1
// on success) and the new root is committed as a side effect.
func (s *Service) Remove(caller *realmauth.Caller, path string) (int, error) {
	if !caller.MayWrite() {
		return 0, realmerr.New(realmerr.Forbidden, "caller may not write")
	}
	d, err := s.effectiveDelegate(caller)
	if err != nil {
		return 0, err
	}
	root, present, err := s.currentRoot(d)
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, realmerr.New(realmerr.EntryNotFound, "path %q not found", path)
	}
	newRoot, err := s.Tree.Remove(root, path)
	if err != nil {
		return 0, err
	}
	if err := s.commitRoot(d, newRoot); err != nil {
		return 0, err
	}
	return 1, nil
}

// Move relocates the entry at from to to, creating any missing
// intermediate directories on the to side (mkdir-p).
func (s *Service) Move(caller *realmauth.Caller, from, to string) error {
	if !caller.MayWrite() {
		return realmerr.New(realmerr.Forbidden, "caller may not write")
	}
	d, err := s.effectiveDelegate(caller)
	if err != nil {
		return err
	}
	root, present, err := s.currentRoot(d)
	if err != nil {
		return err
	}
	if !present {
		return realmerr.New(realmerr.EntryNotFound, "move source %q not found", from)
	}
	newRoot, err := s.Tree.Move(root, from, to)
	if err != nil {
		return err
	}
	return s.commitRoot(d, newRoot)
}

// Copy duplicates the entry at from to to, leaving from in place and
// creating any missing intermediate directories on the to side (mkdir-p).
func (s *Service) Copy(caller *realmauth.Caller, from, to string) error {
	if !caller.MayWrite() {
		return realmerr.New(realmerr.Forbidden, "caller may not write")
	}
	d, err := s.effectiveDelegate(caller)
	if err != nil {
		return err
	}
	root, present, err := s.currentRoot(d)
	if err != nil {
		return err
	}
	if !present {
		return realmerr.New(realmerr.EntryNotFound, "copy source %q not found", from)
	}
	newRoot, err := s.Tree.Copy(root, from, to)
	if err != nil {
		return err
	}
	return s.commitRoot(d, newRoot)
}

// CreateBranchOptions parameterizes CreateBranch's two cases: a plain
// branch off the realm root (ParentBranchID empty) or a sub-branch of an
// existing branch.
type CreateBranchOptions struct {
	MountPath      string
	TTL            *time.Duration
	ParentBranchID string
}

// CreateBranch allocates a new branch delegate per spec §4.5's two cases
// and returns it along with its bearer access token.
func (s *Service) CreateBranch(caller *realmauth.Caller, opts CreateBranchOptions) (*delegate.Delegate, string, error) {
	if opts.ParentBranchID == "" {
		return s.createRootChildBranch(caller, opts)
	}
	return s.createSubBranch(caller, opts)
}

func (s *Service) createRootChildBranch(caller *realmauth.Caller, opts CreateBranchOptions) (*delegate.Delegate, string, error) {
	if !caller.MayManageBranches() {
		return nil, "", realmerr.New(realmerr.Forbidden, "caller may not manage branches")
	}
	root, err := s.Delegates.GetOrCreateRootDelegate(caller.RealmID)
	if err != nil {
		return nil, "", realmerr.Wrap(realmerr.Internal, err, "get or create root delegate")
	}
	if _, err := treeengine.NormalizeSegments(opts.MountPath); err != nil {
		return nil, "", err
	}

	d := &delegate.Delegate{
		ID:         uuid.NewString(),
		RealmID:    caller.RealmID,
		ParentID:   root.ID,
		MountPath:  opts.MountPath,
		AccessMode: delegate.AccessModeReadWrite,
		CreatedAt:  time.Now(),
	}
	s.applyLifetime(d, opts.TTL)

	if err := s.Delegates.InsertDelegate(d); err != nil {
		return nil, "", realmerr.Wrap(realmerr.Internal, err, "insert branch delegate")
	}
	s.log.Info().Str("realm", d.RealmID).Str("branch", d.ID).Str("mount_path", d.MountPath).Msg("branch created")
	return d, BranchToken(d.ID), nil
}

func (s *Service) createSubBranch(caller *realmauth.Caller, opts CreateBranchOptions) (*delegate.Delegate, string, error) {
	if caller.Kind != realmauth.KindWorker || caller.DelegateID != opts.ParentBranchID {
		return nil, "", realmerr.New(realmerr.Forbidden, "caller must be the worker of the parent branch")
	}
	parent, err := s.Delegates.GetDelegate(opts.ParentBranchID)
	if err != nil {
		if err == delegate.ErrNotFound {
			return nil, "", realmerr.New(realmerr.NotFound, "parent branch %s not found", opts.ParentBranchID)
		}
		return nil, "", realmerr.Wrap(realmerr.Internal, err, "get parent branch")
	}
	parentRoot, present, err := s.currentRoot(parent)
	if err != nil {
		return nil, "", err
	}
	if !present {
		return nil, "", realmerr.New(realmerr.NotFound, "parent branch %s has no root yet", parent.ID)
	}

	childKey, found, err := s.Tree.Resolve(parentRoot, opts.MountPath)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", realmerr.New(realmerr.BadRequest, "mount path %q did not resolve under parent branch", opts.MountPath)
	}

	d := &delegate.Delegate{
		ID:         uuid.NewString(),
		RealmID:    parent.RealmID,
		ParentID:   parent.ID,
		MountPath:  opts.MountPath,
		AccessMode: delegate.AccessModeReadWrite,
		CreatedAt:  time.Now(),
	}
	s.applyLifetime(d, opts.TTL)

	if err := s.Delegates.InsertDelegate(d); err != nil {
		return nil, "", realmerr.Wrap(realmerr.Internal, err, "insert sub-branch delegate")
	}
	if err := s.Delegates.SetRoot(d.ID, childKey); err != nil {
		return nil, "", realmerr.Wrap(realmerr.Internal, err, "seed sub-branch root")
	}
	s.log.Info().Str("realm", d.RealmID).Str("branch", d.ID).Str("parent", parent.ID).Msg("sub-branch created")
	return d, BranchToken(d.ID), nil
}

func (s *Service) applyLifetime(d *delegate.Delegate, ttl *time.Duration) {
	if ttl == nil {
		d.Lifetime = delegate.LifetimeUnlimited
		d.AccessExpiry = time.Now().Add(s.maxBranchTTL)
		return
	}
	capped := *ttl
	if s.maxBranchTTL > 0 && capped > s.maxBranchTTL {
		capped = s.maxBranchTTL
	}
	d.Lifetime = delegate.LifetimeLimited
	d.Expiry = time.Now().Add(capped)
}

// CompleteBranch splices branchID's current root into its parent's root at
// the branch's mount path, commits the parent's new root, and marks the
// branch closed. The caller must be the worker of the branch. The parent's
// root is lazily seeded if absent, and the mount path is created if the
// parent never had an entry there: nothing requires a branch's parent to
// have written anything before the branch completes.
func (s *Service) CompleteBranch(caller *realmauth.Caller, branchID string) error {
	if caller.Kind != realmauth.KindWorker || caller.DelegateID != branchID {
		return realmerr.New(realmerr.Forbidden, "caller must be the worker of the branch being completed")
	}
	branch, err := s.Delegates.GetDelegate(branchID)
	if err != nil {
		if err == delegate.ErrNotFound {
			return realmerr.New(realmerr.NotFound, "branch %s not found", branchID)
		}
		return realmerr.Wrap(realmerr.Internal, err, "get branch")
	}
	if branch.IsRoot() {
		return realmerr.New(realmerr.BadRequest, "root delegates cannot be completed")
	}
	if branch.Closed {
		return realmerr.New(realmerr.Conflict, "branch %s is already closed", branchID)
	}

	branchRoot, present, err := s.currentRoot(branch)
	if err != nil {
		return err
	}
	if !present {
		return realmerr.New(realmerr.NotFound, "branch %s has no root to complete", branchID)
	}

	parent, err := s.Delegates.GetDelegate(branch.ParentID)
	if err != nil {
		if err == delegate.ErrNotFound {
			return realmerr.New(realmerr.NotFound, "parent delegate %s not found", branch.ParentID)
		}
		return realmerr.Wrap(realmerr.Internal, err, "get parent delegate")
	}
	parentRoot, err := s.ensureRoot(parent)
	if err != nil {
		return err
	}

	segments, err := treeengine.NormalizeSegments(branch.MountPath)
	if err != nil {
		return err
	}
	newParentRoot, err := s.Tree.ReplaceSubtree(parentRoot, segments, branchRoot)
	if err != nil {
		return err
	}
	if err := s.commitRoot(parent, newParentRoot); err != nil {
		return err
	}
	if err := s.Delegates.SetClosed(branchID); err != nil {
		return realmerr.Wrap(realmerr.Internal, err, "close branch %s", branchID)
	}
	s.log.Info().Str("realm", branch.RealmID).Str("branch", branchID).Str("parent", parent.ID).Msg("branch completed")
	return nil
}

// RevokeBranch hard-removes a branch delegate; subsequent authentications
// with its token fail.
func (s *Service) RevokeBranch(caller *realmauth.Caller, branchID string) error {
	if !caller.MayManageBranches() {
		return realmerr.New(realmerr.Forbidden, "caller may not manage branches")
	}
	d, err := s.Delegates.GetDelegate(branchID)
	if err != nil {
		if err == delegate.ErrNotFound {
			return realmerr.New(realmerr.NotFound, "branch %s not found", branchID)
		}
		return realmerr.Wrap(realmerr.Internal, err, "get branch")
	}
	if d.RealmID != caller.RealmID {
		return realmerr.New(realmerr.Forbidden, "branch belongs to a different realm")
	}
	if err := s.Delegates.RemoveDelegate(branchID); err != nil {
		return realmerr.Wrap(realmerr.Internal, err, "remove branch %s", branchID)
	}
	s.log.Info().Str("realm", d.RealmID).Str("branch", branchID).Msg("branch revoked")
	return nil
}

// ListBranches returns every delegate (root and branches) in the caller's
// realm.
func (s *Service) ListBranches(caller *realmauth.Caller) ([]*delegate.Delegate, error) {
	if !caller.MayManageBranches() {
		return nil, realmerr.New(realmerr.Forbidden, "caller may not manage branches")
	}
	list, err := s.Delegates.ListDelegates(caller.RealmID)
	if err != nil {
		return nil, realmerr.Wrap(realmerr.Internal, err, "list delegates for realm %s", caller.RealmID)
	}
	return list, nil
}
