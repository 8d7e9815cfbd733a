package session

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/recera/pulse/pkg/state"
)

var sessionsBucket = []byte("sessions")

// BoltStore persists state trees across restarts: each token maps to
// a JSON blob of its stored values, restored over a fresh default
// tree on read.
type BoltStore struct {
	db      *bolt.DB
	factory Factory
}

// OpenBolt opens (or creates) the database file and the sessions
// bucket.
func OpenBolt(path string, factory Factory) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("session: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("session: create bucket: %w", err)
	}
	return &BoltStore{db: db, factory: factory}, nil
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// Get builds a default tree and overlays the token's persisted
// values, if any.
func (b *BoltStore) Get(token string) (*state.Instance, error) {
	instance, err := b.factory()
	if err != nil {
		return nil, fmt.Errorf("session: construct tree for %q: %w", token, err)
	}
	var blob []byte
	err = b.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(sessionsBucket).Get([]byte(token)); data != nil {
			blob = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: read %q: %w", token, err)
	}
	if blob == nil {
		return instance, nil
	}
	var values map[string]map[string]any
	if err := json.Unmarshal(blob, &values); err != nil {
		return nil, fmt.Errorf("session: decode %q: %w", token, err)
	}
	instance.Restore(values)
	return instance, nil
}

// Set serializes the tree's stored values under the token.
func (b *BoltStore) Set(token string, s *state.Instance) error {
	blob, err := json.Marshal(s.Values())
	if err != nil {
		return fmt.Errorf("session: encode %q: %w", token, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(token), blob)
	})
}

// Delete removes the token's blob.
func (b *BoltStore) Delete(token string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(token))
	})
}
