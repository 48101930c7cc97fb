package store

import (
	"sort"
	"sync"
)

// Item is a single key/value pair returned by Store.Items
type Item struct {
	Key   string
	Value string
}

// Store is a key/value container. Implementations provide the persistence;
// this package only declares the contract.
//
// Get never fails for a missing key: it reports ok == false. Delete of a
// missing key is a no-op. Items are returned ordered by key.
type Store interface {
	Get(key string) (value string, ok bool)
	Set(key, value string) error
	Contains(key string) bool
	Items() ([]Item, error)
	Len() int
	Delete(key string) error
	Wipe() error
}

// ConfigStore holds configuration values, including the encrypted master
// password entry. It has the same surface as Store.
type ConfigStore interface {
	Store
}

// CredentialStore holds public/private key pairs.
//
// Encrypted implementations keep each private key wrapped under the master
// key and unwrap it on read. Add on a locked encrypted store fails.
type CredentialStore interface {
	// PublicKeys returns the stored public keys ordered lexically
	PublicKeys() ([]string, error)
	// PrivateKeyForPublicKey returns the private key (WIF) for pub
	PrivateKeyForPublicKey(pub string) (string, error)
	// Add stores wif under pub; an empty pub is derived from wif
	Add(wif, pub string) error
	// Remove deletes the key pair stored under pub
	Remove(pub string) error

	IsEncrypted() bool
	Locked() bool
	Unlock(password string) error
	Lock()
}

// Defaults holds fallback values for keys a store does not contain.
// It is safe for concurrent use.
type Defaults struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewDefaults creates an empty default registry
func NewDefaults() *Defaults {
	return &Defaults{values: make(map[string]string)}
}

// ConfigDefaults are the process-wide defaults for configuration stores
var ConfigDefaults = NewDefaults()

// SetDefault registers value as the fallback for key
func (d *Defaults) SetDefault(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[key] = value
}

// Unset removes a registered default
func (d *Defaults) Unset(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.values, key)
}

// Default returns the registered default for key
func (d *Defaults) Default(key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

// Keys returns the keys that have a registered default, sorted
func (d *Defaults) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the value stored in s for key, falling back to the
// registered default. ok is false only when neither exists.
func (d *Defaults) Lookup(s Store, key string) (string, bool) {
	if v, ok := s.Get(key); ok {
		return v, true
	}
	if d == nil {
		return "", false
	}
	return d.Default(key)
}

// SortItems orders items by key in place
func SortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})
}
