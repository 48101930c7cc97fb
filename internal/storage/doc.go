// Package storage provides the persistence backends for keylock stores.
//
// The BBolt database uses three buckets:
//   - config: configuration values and the encrypted master password entry
//   - keys: public key to private key (wrapped under the master key)
//   - meta: format version, timestamps and the store id used for keyring lookups
//
// Buckets are exposed as store.Store values. YAMLStore and MemoryStore
// implement the same contract for file-based configuration and tests.
//
// BBolt provides ACID transactions, file locking, and corruption detection.
package storage
