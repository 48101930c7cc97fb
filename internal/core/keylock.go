package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/illarion/keylock/internal/config"
	"github.com/illarion/keylock/internal/git"
	"github.com/illarion/keylock/internal/keyring"
	"github.com/illarion/keylock/internal/keystore"
	"github.com/illarion/keylock/internal/masterkey"
	"github.com/illarion/keylock/internal/pubkey"
	"github.com/illarion/keylock/internal/security"
	"github.com/illarion/keylock/internal/storage"
	"github.com/illarion/keylock/internal/store"
)

const (
	storeIDKey = "store_id"

	// yaml backend files
	configFile = "config.yaml"
	keysFile   = "keys.yaml"
	metaFile   = "meta.yaml"
)

var (
	ErrNotInitialized = errors.New("keylock not initialized")
	ErrAlreadyExists  = errors.New("keylock already initialized")
	ErrUnsupported    = errors.New("operation not supported by this backend")
	ErrProtectedKey   = errors.New("config key is managed by keylock")
)

func init() {
	// Transaction settings read by graphene clients sharing the config store
	store.ConfigDefaults.SetDefault("expiration", "30")
	store.ConfigDefaults.SetDefault("proposal_expiration", "86400")
}

// KeyLock ties a storage backend, the master key manager and the key store
// together.
type KeyLock struct {
	settings config.Settings

	db      *storage.Storage // bolt backend only
	dir     *security.Dir    // yaml backend only
	config  store.ConfigStore
	keys    store.Store
	meta    store.Store // yaml backend only
	storeID string

	manager *masterkey.Manager
	creds   store.CredentialStore
}

// Open opens (creating if needed) the store described by settings
func Open(settings config.Settings) (*KeyLock, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	k := &KeyLock{settings: settings}
	if err := k.openBackend(); err != nil {
		return nil, err
	}

	var sources passwordSources
	if settings.AutoUnlockEnv != "" {
		sources = append(sources, masterkey.EnvSource(settings.AutoUnlockEnv))
	}
	if settings.Keyring {
		sources = append(sources, keyring.Source{StoreID: k.storeID})
	}

	opts := []masterkey.Option{}
	if len(sources) > 0 {
		opts = append(opts, masterkey.WithAutoUnlock(sources))
	}
	manager, err := masterkey.New(k.config, opts...)
	if err != nil {
		k.Close()
		return nil, err
	}
	k.manager = manager

	if settings.PlaintextKeys {
		k.creds = keystore.NewPlain(k.keys, settings.Prefix)
	} else {
		k.creds = keystore.NewEncrypted(k.keys, manager, settings.Prefix)
	}

	log.Debugf("Opened %s store at %s", settings.Backend, settings.StorePath())
	return k, nil
}

func (k *KeyLock) openBackend() error {
	path := k.settings.StorePath()

	switch k.settings.Backend {
	case config.BackendBolt:
		if err := os.MkdirAll(filepath.Dir(path), security.DirPerm); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
		db, err := storage.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Initialize(); err != nil {
			db.Close()
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		id, err := db.GetOrCreateStoreID()
		if err != nil {
			db.Close()
			return err
		}
		k.db, k.config, k.keys, k.storeID = db, db.Config(), db.Keys(), id

	case config.BackendYAML:
		dir, err := security.OpenDir(path)
		if err != nil {
			return err
		}
		k.dir = dir

		var stores [3]*storage.YAMLStore
		for i, name := range []string{configFile, keysFile, metaFile} {
			s, err := storage.OpenYAMLIn(dir, name)
			if err != nil {
				dir.Close()
				return err
			}
			stores[i] = s
		}
		k.config, k.keys, k.meta = stores[0], stores[1], stores[2]

		id, ok := k.meta.Get(storeIDKey)
		if !ok {
			id = uuid.NewString()
			if err := k.meta.Set(storeIDKey, id); err != nil {
				return fmt.Errorf("failed to store id: %w", err)
			}
		}
		k.storeID = id

	case config.BackendMemory:
		k.config, k.keys = storage.NewMemoryStore(), storage.NewMemoryStore()
		k.storeID = uuid.NewString()
	}
	return nil
}

// Close releases the backend. Secrets are cleared first.
func (k *KeyLock) Close() error {
	if k.manager != nil {
		k.manager.Lock()
	}
	if k.dir != nil {
		return k.dir.Close()
	}
	if k.db != nil {
		return k.db.Close()
	}
	return nil
}

// Settings returns the settings the store was opened with
func (k *KeyLock) Settings() config.Settings {
	return k.settings
}

// StoreID returns the identifier used for keyring entries
func (k *KeyLock) StoreID() string {
	return k.storeID
}

// Initialized reports whether a master password has been set
func (k *KeyLock) Initialized() bool {
	return k.manager.HasMasterPassword()
}

// Create sets up the master password of an empty store and leaves it
// unlocked
func (k *KeyLock) Create(password string) error {
	if k.manager.HasMasterPassword() {
		return ErrAlreadyExists
	}
	if err := k.manager.Unlock(password); err != nil {
		return err
	}
	log.Infof("Created store %s", k.storeID)
	return nil
}

// Unlock verifies password and keeps the master secret in memory
func (k *KeyLock) Unlock(password string) error {
	if !k.manager.HasMasterPassword() {
		return ErrNotInitialized
	}
	return k.manager.Unlock(password)
}

// Lock clears the master secret
func (k *KeyLock) Lock() {
	k.manager.Lock()
}

// Unlocked reports whether keys can be read, trying the auto-unlock
// sources if needed
func (k *KeyLock) Unlocked() bool {
	return !k.creds.Locked()
}

// State reports the master key state without auto-unlocking
func (k *KeyLock) State() masterkey.State {
	return k.manager.State()
}

// ChangePassword re-encrypts the master secret under newPassword. Stored
// keys are not rewritten.
func (k *KeyLock) ChangePassword(currentPassword, newPassword string) error {
	if err := k.Unlock(currentPassword); err != nil {
		return err
	}
	return k.manager.ChangePassword(newPassword)
}

// AddKey stores wif and returns its public key
func (k *KeyLock) AddKey(wif, pub string) (string, error) {
	if pub == "" {
		derived, err := pubkey.FromWIF(wif, k.settings.Prefix)
		if err != nil {
			return "", keystore.ErrInvalidWIF
		}
		pub = derived
	}
	if err := k.creds.Add(wif, pub); err != nil {
		return "", err
	}
	return pub, nil
}

// PublicKeys lists stored public keys; works while locked
func (k *KeyLock) PublicKeys() ([]string, error) {
	return k.creds.PublicKeys()
}

// PrivateKey returns the WIF stored for pub
func (k *KeyLock) PrivateKey(pub string) (string, error) {
	if _, err := pubkey.Parse(pub, k.settings.Prefix); err != nil {
		return "", err
	}
	return k.creds.PrivateKeyForPublicKey(pub)
}

// RemoveKey deletes the key pair stored under pub
func (k *KeyLock) RemoveKey(pub string) error {
	return k.creds.Remove(pub)
}

// Config returns the configuration store
func (k *KeyLock) Config() store.ConfigStore {
	return k.config
}

// ConfigValue returns a config value, falling back to registered defaults
func (k *KeyLock) ConfigValue(key string) (string, bool) {
	return store.ConfigDefaults.Lookup(k.config, key)
}

// SetConfig stores a config value. The master password entry cannot be
// written this way.
func (k *KeyLock) SetConfig(key, value string) error {
	if key == masterkey.ConfigKey {
		return ErrProtectedKey
	}
	return k.config.Set(key, value)
}

// DeleteConfig removes a config value
func (k *KeyLock) DeleteConfig(key string) error {
	if key == masterkey.ConfigKey {
		return ErrProtectedKey
	}
	return k.config.Delete(key)
}

// Wipe deletes every key and config entry, including the master password
func (k *KeyLock) Wipe() error {
	k.manager.Lock()
	if err := k.keys.Wipe(); err != nil {
		return fmt.Errorf("failed to wipe keys: %w", err)
	}
	if err := k.config.Wipe(); err != nil {
		return fmt.Errorf("failed to wipe config: %w", err)
	}
	log.Infof("Wiped store %s", k.storeID)
	return nil
}

// Compact rewrites the bolt file to reclaim space
func (k *KeyLock) Compact() error {
	if k.db == nil {
		return ErrUnsupported
	}
	return k.db.Compact()
}

// StatusInfo summarizes a store without needing the password
type StatusInfo struct {
	Path         string
	Backend      string
	StoreID      string
	State        masterkey.State
	Encrypted    bool
	KeyCount     int
	ConfigCount  int
	Created      time.Time
	Modified     time.Time
	KeyringSaved bool
	GitStatus    *git.StoreFileStatus
}

// Status returns the current status (no password required)
func (k *KeyLock) Status(ctx context.Context) (*StatusInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	status := &StatusInfo{
		Path:        k.settings.StorePath(),
		Backend:     k.settings.Backend,
		StoreID:     k.storeID,
		State:       k.manager.State(),
		Encrypted:   k.creds.IsEncrypted(),
		KeyCount:    k.keys.Len(),
		ConfigCount: k.config.Len(),
	}
	if k.settings.Keyring {
		status.KeyringSaved = keyring.HasPassword(k.storeID)
	}

	if k.db != nil {
		// Not critical
		if created, err := k.db.GetCreated(); err == nil {
			status.Created = created
		}
		if modified, err := k.db.GetModified(); err == nil {
			status.Modified = modified
		}
	}
	if k.dir != nil {
		for _, name := range []string{configFile, keysFile} {
			if info, err := k.dir.Stat(name); err == nil && info.ModTime().After(status.Modified) {
				status.Modified = info.ModTime()
			}
		}
	}

	if status.Path != "" {
		gitStatus, err := git.CheckStoreFile(filepath.Dir(status.Path), status.Path)
		if err == nil && gitStatus.IsRepo {
			status.GitStatus = gitStatus
		}
	}

	return status, nil
}

// passwordSources tries each source in order
type passwordSources []masterkey.PasswordSource

func (s passwordSources) Password() (string, bool) {
	for _, src := range s {
		if password, ok := src.Password(); ok {
			return password, true
		}
	}
	return "", false
}
