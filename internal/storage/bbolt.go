package storage

import (
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Compile-time proof that BoltBackend satisfies the Backend interface.
var _ Backend = (*BoltBackend)(nil)

var bucketState = []byte("state")

// BoltBackend keeps every record as a JSON value under its name in a single
// bbolt bucket. It is safe for concurrent use.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) a bbolt database at path and initialises the
// state bucket.
func OpenBolt(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: init buckets: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

func (s *BoltBackend) Load(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}
	var data []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketState).Get([]byte(name)); raw != nil {
			data = append([]byte{}, raw...)
		}
		return nil
	})
	if data == nil {
		return ErrNotFound
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", name, err)
	}
	return nil
}

func (s *BoltBackend) Save(name string, v any) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", name, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put([]byte(name), data)
	})
}

func (s *BoltBackend) Size() (int64, error) {
	info, err := os.Stat(s.db.Path())
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Healthy runs an empty read-write transaction.
func (s *BoltBackend) Healthy() error {
	return s.db.Update(func(tx *bolt.Tx) error { return nil })
}

// Path returns the filesystem path of the database file.
func (s *BoltBackend) Path() string { return s.db.Path() }

// Close cleanly closes the underlying bbolt database.
func (s *BoltBackend) Close() error { return s.db.Close() }
