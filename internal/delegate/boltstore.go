package delegate

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/arcfs/realm/internal/contentkey"
)

var (
	bucketDelegates = []byte("delegates")   // delegate id -> JSON Delegate
	bucketRoots     = []byte("roots")       // delegate id -> 16-byte content key
	bucketRealmRoot = []byte("realm_roots") // realm id -> root delegate id
)

// BoltStore implements Store on a bbolt database, persisting capability
// records across process restarts.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens (creating if necessary) a bbolt database at path and
// ensures its buckets exist.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o666, nil)
	if err != nil {
		return nil, fmt.Errorf("delegate: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketDelegates, bucketRoots, bucketRealmRoot} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("delegate: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying bbolt database.
func (b *BoltStore) Close() error { return b.db.Close() }

func (b *BoltStore) InsertDelegate(d *Delegate) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("delegate: marshal: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDelegates).Put([]byte(d.ID), data); err != nil {
			return err
		}
		if d.IsRoot() {
			return tx.Bucket(bucketRealmRoot).Put([]byte(d.RealmID), []byte(d.ID))
		}
		return nil
	})
}

func (b *BoltStore) GetDelegate(id string) (*Delegate, error) {
	var d Delegate
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDelegates).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (b *BoltStore) RemoveDelegate(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDelegates).Get([]byte(id))
		if data != nil {
			var d Delegate
			if err := json.Unmarshal(data, &d); err == nil && d.IsRoot() {
				if err := tx.Bucket(bucketRealmRoot).Delete([]byte(d.RealmID)); err != nil {
					return err
				}
			}
		}
		if err := tx.Bucket(bucketDelegates).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketRoots).Delete([]byte(id))
	})
}

func (b *BoltStore) ListDelegates(realmID string) ([]*Delegate, error) {
	var out []*Delegate
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDelegates).ForEach(func(_, v []byte) error {
			var d Delegate
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("delegate: unmarshal: %w", err)
			}
			if d.RealmID == realmID {
				out = append(out, &d)
			}
			return nil
		})
	})
	return out, err
}

func (b *BoltStore) GetRoot(delegateID string) (Root, error) {
	var root Root
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRoots).Get([]byte(delegateID))
		if data == nil {
			return nil
		}
		if len(data) != contentkey.Size {
			return fmt.Errorf("delegate: corrupt root pointer for %s", delegateID)
		}
		var key contentkey.Key
		copy(key[:], data)
		root = Root{Key: key, Present: true}
		return nil
	})
	return root, err
}

func (b *BoltStore) SetRoot(delegateID string, key contentkey.Key) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRoots).Put([]byte(delegateID), key[:])
	})
}

func (b *BoltStore) SetClosed(delegateID string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDelegates)
		data := bucket.Get([]byte(delegateID))
		if data == nil {
			return ErrNotFound
		}
		var d Delegate
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("delegate: unmarshal: %w", err)
		}
		d.Closed = true
		out, err := json.Marshal(&d)
		if err != nil {
			return fmt.Errorf("delegate: marshal: %w", err)
		}
		return bucket.Put([]byte(delegateID), out)
	})
}

func (b *BoltStore) GetOrCreateRootDelegate(realmID string) (*Delegate, error) {
	var result Delegate
	err := b.db.Update(func(tx *bbolt.Tx) error {
		rootBucket := tx.Bucket(bucketRealmRoot)
		delegates := tx.Bucket(bucketDelegates)

		if id := rootBucket.Get([]byte(realmID)); id != nil {
			data := delegates.Get(id)
			if data == nil {
				return fmt.Errorf("delegate: realm_roots points at missing delegate %s", id)
			}
			return json.Unmarshal(data, &result)
		}

		d := Delegate{
			ID:        realmID + ":root",
			RealmID:   realmID,
			ParentID:  "",
			MountPath: "",
			Lifetime:  LifetimeUnlimited,
		}
		data, err := json.Marshal(&d)
		if err != nil {
			return fmt.Errorf("delegate: marshal: %w", err)
		}
		if err := delegates.Put([]byte(d.ID), data); err != nil {
			return err
		}
		if err := rootBucket.Put([]byte(realmID), []byte(d.ID)); err != nil {
			return err
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
