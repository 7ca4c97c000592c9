package delegate

import (
	"sync"

	"github.com/arcfs/realm/internal/contentkey"
)

// MemoryStore implements Store in memory, guarded by a single mutex. It is
// intended for tests and development, matching blobstore.Memory's role for
// the blob store side of the core.
type MemoryStore struct {
	mu         sync.Mutex
	delegates  map[string]*Delegate
	roots      map[string]contentkey.Key
	rootByRealm map[string]string // realmID -> delegate id of its root delegate
}

// NewMemoryStore creates a new in-memory delegate Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		delegates:   make(map[string]*Delegate),
		roots:       make(map[string]contentkey.Key),
		rootByRealm: make(map[string]string),
	}
}

func cloneDelegate(d *Delegate) *Delegate {
	cp := *d
	return &cp
}

func (m *MemoryStore) InsertDelegate(d *Delegate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.delegates[d.ID] = cloneDelegate(d)
	if d.IsRoot() {
		m.rootByRealm[d.RealmID] = d.ID
	}
	return nil
}

func (m *MemoryStore) GetDelegate(id string) (*Delegate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.delegates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDelegate(d), nil
}

func (m *MemoryStore) RemoveDelegate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.delegates[id]
	if ok && d.IsRoot() {
		delete(m.rootByRealm, d.RealmID)
	}
	delete(m.delegates, id)
	delete(m.roots, id)
	return nil
}

func (m *MemoryStore) ListDelegates(realmID string) ([]*Delegate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Delegate
	for _, d := range m.delegates {
		if d.RealmID == realmID {
			out = append(out, cloneDelegate(d))
		}
	}
	return out, nil
}

func (m *MemoryStore) GetRoot(delegateID string) (Root, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.roots[delegateID]
	if !ok {
		return Root{}, nil
	}
	return Root{Key: key, Present: true}, nil
}

func (m *MemoryStore) SetRoot(delegateID string, key contentkey.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots[delegateID] = key
	return nil
}

func (m *MemoryStore) SetClosed(delegateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.delegates[delegateID]
	if !ok {
		return ErrNotFound
	}
	d.Closed = true
	return nil
}

func (m *MemoryStore) GetOrCreateRootDelegate(realmID string) (*Delegate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.rootByRealm[realmID]; ok {
		return cloneDelegate(m.delegates[id]), nil
	}

	d := &Delegate{
		ID:       realmID + ":root",
		RealmID:  realmID,
		ParentID: "",
		MountPath: "",
		Lifetime: LifetimeUnlimited,
	}
	m.delegates[d.ID] = cloneDelegate(d)
	m.rootByRealm[realmID] = d.ID
	return cloneDelegate(d), nil
}
