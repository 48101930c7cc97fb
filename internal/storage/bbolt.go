package storage

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/illarion/keylock/internal/store"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket = []byte("config") // Configuration values and the encrypted master entry
	KeysBucket   = []byte("keys")   // Public key -> (wrapped) private key
	MetaBucket   = []byte("meta")   // Store format version, timestamps, store id
)

// Meta keys
var (
	MetaVersion  = []byte("version")
	MetaCreated  = []byte("created")
	MetaModified = []byte("modified")
	MetaStoreID  = []byte("store_id")
)

const (
	// FormatVersion is written to the meta bucket on Initialize
	FormatVersion = "1"

	dbTimeout = time.Second
)

var (
	ErrNotInitialized = errors.New("storage not initialized")
)

// Storage provides BBolt-based storage for keylock
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a keylock database
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: dbTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Debugf("Opened store %s", path)

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure. It is safe to call on an
// already initialized database.
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, KeysBucket, MetaBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		meta := tx.Bucket(MetaBucket)
		if meta.Get(MetaVersion) != nil {
			return nil
		}
		if err := meta.Put(MetaVersion, []byte(FormatVersion)); err != nil {
			return err
		}

		now, _ := time.Now().MarshalBinary()
		if err := meta.Put(MetaCreated, now); err != nil {
			return err
		}
		return meta.Put(MetaModified, now)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(MetaBucket)
		if meta != nil && meta.Get(MetaVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// Config returns the configuration bucket as a store
func (s *Storage) Config() *Bucket {
	return &Bucket{s: s, name: ConfigBucket}
}

// Keys returns the key pair bucket as a store
func (s *Storage) Keys() *Bucket {
	return &Bucket{s: s, name: KeysBucket}
}

// touch updates the last modified timestamp inside tx
func touch(tx *bolt.Tx) error {
	meta := tx.Bucket(MetaBucket)
	if meta == nil {
		return nil
	}
	modified, _ := time.Now().MarshalBinary()
	return meta.Put(MetaModified, modified)
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	var modified time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(MetaBucket)
		if meta == nil {
			return ErrNotInitialized
		}
		data := meta.Get(MetaModified)
		if data == nil {
			return fmt.Errorf("modified time not found")
		}
		return modified.UnmarshalBinary(data)
	})
	return modified, err
}

// GetCreated retrieves the creation timestamp
func (s *Storage) GetCreated() (time.Time, error) {
	var created time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(MetaBucket)
		if meta == nil {
			return ErrNotInitialized
		}
		data := meta.Get(MetaCreated)
		if data == nil {
			return fmt.Errorf("created time not found")
		}
		return created.UnmarshalBinary(data)
	})
	return created, err
}

// StoreID retrieves the store ID from the meta bucket
func (s *Storage) StoreID() (string, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(MetaBucket)
		if meta == nil {
			return ErrNotInitialized
		}
		data := meta.Get(MetaStoreID)
		if data == nil {
			return fmt.Errorf("store_id not found")
		}
		id = string(data)
		return nil
	})
	return id, err
}

// GetOrCreateStoreID retrieves the existing store ID or generates a new one
func (s *Storage) GetOrCreateStoreID() (string, error) {
	id, err := s.StoreID()
	if err == nil {
		return id, nil
	}

	id = uuid.NewString()
	err = s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(MetaBucket)
		if meta == nil {
			return ErrNotInitialized
		}
		return meta.Put(MetaStoreID, []byte(id))
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// Compact creates a compacted copy of the database, removing unused space.
// This is useful after deleting keys or wiping the store.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	// Create new database
	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	// Copy all buckets
	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	// Reopen database
	s.db, err = bolt.Open(srcPath, 0600, &bolt.Options{Timeout: dbTimeout})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	log.Debugf("Compacted store %s", srcPath)

	return nil
}

// Bucket exposes one top-level bbolt bucket as a store.Store.
//
// Read methods cannot return errors through the Store contract; database
// failures are logged and reported as a missing value. A Bucket stays
// valid across Storage.Compact.
type Bucket struct {
	s    *Storage
	name []byte
}

var _ store.ConfigStore = (*Bucket)(nil)

// Name returns the bucket name
func (b *Bucket) Name() string {
	return string(b.name)
}

// Get returns the value stored under key
func (b *Bucket) Get(key string) (string, bool) {
	var (
		value string
		found bool
	)
	err := b.s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.name)
		if bucket == nil {
			return nil
		}
		// Copy out: the slice is only valid during the transaction
		if data := bucket.Get([]byte(key)); data != nil {
			value = string(data)
			found = true
		}
		return nil
	})
	if err != nil {
		log.Errorf("Failed to read %s/%s: %v", b.name, key, err)
		return "", false
	}
	return value, found
}

// Set stores value under key
func (b *Bucket) Set(key, value string) error {
	return b.s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(b.name)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", b.name, err)
		}
		if err := bucket.Put([]byte(key), []byte(value)); err != nil {
			return err
		}
		return touch(tx)
	})
}

// Contains reports whether key is stored
func (b *Bucket) Contains(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// Items returns all entries ordered by key
func (b *Bucket) Items() ([]store.Item, error) {
	var items []store.Item
	err := b.s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.name)
		if bucket == nil {
			return nil
		}
		// bbolt iterates in byte-sorted key order
		return bucket.ForEach(func(k, v []byte) error {
			items = append(items, store.Item{Key: string(k), Value: string(v)})
			return nil
		})
	})
	return items, err
}

// Len returns the number of entries
func (b *Bucket) Len() int {
	var n int
	err := b.s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.name)
		if bucket == nil {
			return nil
		}
		n = bucket.Stats().KeyN
		return nil
	})
	if err != nil {
		log.Errorf("Failed to count %s: %v", b.name, err)
		return 0
	}
	return n
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Bucket) Delete(key string) error {
	return b.s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.name)
		if bucket == nil {
			return nil
		}
		if err := bucket.Delete([]byte(key)); err != nil {
			return err
		}
		return touch(tx)
	})
}

// Wipe removes every entry of the bucket
func (b *Bucket) Wipe() error {
	return b.s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(b.name) != nil {
			if err := tx.DeleteBucket(b.name); err != nil {
				return fmt.Errorf("failed to delete bucket %s: %w", b.name, err)
			}
		}
		if _, err := tx.CreateBucket(b.name); err != nil {
			return fmt.Errorf("failed to recreate bucket %s: %w", b.name, err)
		}
		log.Infof("Wiped bucket %s", b.name)
		return touch(tx)
	})
}
