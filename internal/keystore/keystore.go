package keystore

import (
	"errors"
	"fmt"

	"github.com/illarion/keylock/internal/masterkey"
	"github.com/illarion/keylock/internal/pubkey"
	"github.com/illarion/keylock/internal/store"
)

var (
	ErrKeyAlreadyInStore = errors.New("key already in store")
	ErrKeyNotFound       = errors.New("key not found")
	ErrInvalidWIF        = errors.New("invalid private key")
	ErrKeyMismatch       = errors.New("public key does not match private key")
)

// encoder turns a WIF into the value kept in the backing store and back
type encoder interface {
	encode(wif string) (string, error)
	decode(value string) (string, error)
}

// keyMap is the logic shared by both key stores: the backing store maps a
// public key to an encoded private key.
type keyMap struct {
	keys   store.Store
	prefix string
	enc    encoder
}

func (k *keyMap) PublicKeys() ([]string, error) {
	items, err := k.keys.Items()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	pubs := make([]string, 0, len(items))
	for _, item := range items {
		pubs = append(pubs, item.Key)
	}
	return pubs, nil
}

func (k *keyMap) PrivateKeyForPublicKey(pub string) (string, error) {
	value, ok := k.keys.Get(pub)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, pub)
	}
	return k.enc.decode(value)
}

func (k *keyMap) Add(wif, pub string) error {
	derived, err := pubkey.FromWIF(wif, k.prefix)
	if err != nil {
		return ErrInvalidWIF
	}
	if pub == "" {
		pub = derived
	} else if pub != derived {
		return ErrKeyMismatch
	}

	if k.keys.Contains(pub) {
		return fmt.Errorf("%w: %s", ErrKeyAlreadyInStore, pub)
	}

	value, err := k.enc.encode(wif)
	if err != nil {
		return err
	}
	if err := k.keys.Set(pub, value); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}
	log.Debugf("Added key %s", pub)
	return nil
}

func (k *keyMap) Remove(pub string) error {
	if !k.keys.Contains(pub) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, pub)
	}
	if err := k.keys.Delete(pub); err != nil {
		return fmt.Errorf("failed to remove key: %w", err)
	}
	log.Debugf("Removed key %s", pub)
	return nil
}

// Wipe removes every key pair
func (k *keyMap) Wipe() error {
	return k.keys.Wipe()
}

// PlainKeyStore keeps private keys unencrypted. Meant for tests and
// throwaway stores.
type PlainKeyStore struct {
	keyMap
}

var _ store.CredentialStore = (*PlainKeyStore)(nil)

type plainEncoder struct{}

func (plainEncoder) encode(wif string) (string, error)   { return wif, nil }
func (plainEncoder) decode(value string) (string, error) { return value, nil }

// NewPlain creates a PlainKeyStore over keys. Public keys are derived with
// prefix.
func NewPlain(keys store.Store, prefix string) *PlainKeyStore {
	return &PlainKeyStore{keyMap{keys: keys, prefix: prefix, enc: plainEncoder{}}}
}

func (*PlainKeyStore) IsEncrypted() bool     { return false }
func (*PlainKeyStore) Locked() bool          { return false }
func (*PlainKeyStore) Unlock(_ string) error { return nil }
func (*PlainKeyStore) Lock()                 {}

// EncryptedKeyStore keeps each private key wrapped under the master secret
// of a masterkey.Manager. Reads and writes need the manager unlocked.
type EncryptedKeyStore struct {
	keyMap
	manager *masterkey.Manager
}

var _ store.CredentialStore = (*EncryptedKeyStore)(nil)

// NewEncrypted creates an EncryptedKeyStore over keys
func NewEncrypted(keys store.Store, manager *masterkey.Manager, prefix string) *EncryptedKeyStore {
	ks := &EncryptedKeyStore{manager: manager}
	ks.keyMap = keyMap{keys: keys, prefix: prefix, enc: ks}
	return ks
}

func (ks *EncryptedKeyStore) encode(wif string) (string, error) {
	return ks.manager.Encrypt(wif)
}

func (ks *EncryptedKeyStore) decode(value string) (string, error) {
	return ks.manager.Decrypt(value)
}

// Add wraps wif under the master secret. A locked store refuses before
// touching the backing store.
func (ks *EncryptedKeyStore) Add(wif, pub string) error {
	if ks.manager.Locked() {
		return masterkey.ErrStoreLocked
	}
	return ks.keyMap.Add(wif, pub)
}

// PrivateKeyForPublicKey unwraps the key stored under pub
func (ks *EncryptedKeyStore) PrivateKeyForPublicKey(pub string) (string, error) {
	if ks.manager.Locked() {
		return "", masterkey.ErrStoreLocked
	}
	return ks.keyMap.PrivateKeyForPublicKey(pub)
}

func (ks *EncryptedKeyStore) IsEncrypted() bool { return true }

func (ks *EncryptedKeyStore) Locked() bool { return ks.manager.Locked() }

func (ks *EncryptedKeyStore) Unlock(password string) error {
	return ks.manager.Unlock(password)
}

func (ks *EncryptedKeyStore) Lock() { ks.manager.Lock() }

// Manager returns the master key manager behind the store
func (ks *EncryptedKeyStore) Manager() *masterkey.Manager {
	return ks.manager
}
