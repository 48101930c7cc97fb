package masterkey

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/illarion/keylock/internal/bip38"
	"github.com/illarion/keylock/internal/crypto"
	"github.com/illarion/keylock/internal/store"
)

const (
	// ConfigKey is the config store key holding the encrypted master entry
	ConfigKey = "encrypted_master_password"

	// DefaultUnlockEnv is the environment variable read by EnvSource
	DefaultUnlockEnv = "UNLOCK"

	secretSize     = 32 // random bytes in a master secret
	checksumLength = 4  // hex characters kept from sha256
	entrySeparator = "$"
)

var (
	ErrWrongPassword      = errors.New("wrong master password")
	ErrStoreLocked        = errors.New("store is locked")
	ErrAlreadyInitialized = errors.New("store already has a master password")
	ErrMisconfiguredStore = errors.New("a config store is required")
	ErrPasswordRequired   = errors.New("password required")
)

// State describes whether a master secret exists and is resident
type State int

const (
	StateNoMaster State = iota
	StateLocked
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateNoMaster:
		return "no master password"
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Cipher encrypts a string under a password
type Cipher interface {
	Encrypt(plaintext, password string) (string, error)
	Decrypt(ciphertext, password string) (string, error)
}

// KeyWrapper encrypts a single private key (WIF) under a passphrase
type KeyWrapper interface {
	Wrap(wif, passphrase string) (string, error)
	Unwrap(encWIF, passphrase string) (string, error)
}

// PasswordSource supplies a password for automatic unlocking
type PasswordSource interface {
	Password() (string, bool)
}

// EnvSource reads the password from the named environment variable
type EnvSource string

// Password returns the variable's value if it is set and non-empty
func (e EnvSource) Password() (string, bool) {
	v := os.Getenv(string(e))
	return v, v != ""
}

// Option configures a Manager
type Option func(*Manager)

// WithCipher sets the cipher used for the master entry
func WithCipher(c Cipher) Option {
	return func(m *Manager) { m.cipher = c }
}

// WithKeyWrapper sets the primitive used by Encrypt and Decrypt
func WithKeyWrapper(w KeyWrapper) Option {
	return func(m *Manager) { m.wrapper = w }
}

// WithAutoUnlock makes Unlocked try src when no password is held
func WithAutoUnlock(src PasswordSource) Option {
	return func(m *Manager) { m.autoUnlock = src }
}

// WithRandom sets the source for new master secrets
func WithRandom(r io.Reader) Option {
	return func(m *Manager) { m.rand = r }
}

// WithConfigKey stores the master entry under key instead of ConfigKey
func WithConfigKey(key string) Option {
	return func(m *Manager) { m.configKey = key }
}

// Manager owns the master secret of a key store.
//
// Private keys are wrapped under a random master secret. The secret itself
// is kept in the config store encrypted under the user's password, prefixed
// with a short checksum used to verify the password. Changing the password
// only rewrites that one entry.
//
// A Manager is not safe for concurrent use.
type Manager struct {
	config     store.ConfigStore
	configKey  string
	cipher     Cipher
	wrapper    KeyWrapper
	autoUnlock PasswordSource
	rand       io.Reader

	password []byte
	master   []byte
}

// New creates a locked Manager bound to config
func New(config store.ConfigStore, opts ...Option) (*Manager, error) {
	if config == nil {
		return nil, ErrMisconfiguredStore
	}

	m := &Manager{
		config:    config,
		configKey: ConfigKey,
		cipher:    crypto.NewAESCipher(),
		wrapper:   bip38.Wrapper{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// DeriveChecksum returns the first four hex characters of sha256(s)
func DeriveChecksum(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:checksumLength]
}

// HasMasterPassword reports whether the config store holds a master entry
func (m *Manager) HasMasterPassword() bool {
	v, ok := m.config.Get(m.configKey)
	return ok && v != ""
}

// State reports the current state without attempting an automatic unlock
func (m *Manager) State() State {
	switch {
	case m.master != nil:
		return StateUnlocked
	case m.HasMasterPassword():
		return StateLocked
	default:
		return StateNoMaster
	}
}

// MasterKey returns the decrypted master secret while unlocked
func (m *Manager) MasterKey() (string, bool) {
	if m.master == nil {
		return "", false
	}
	return string(m.master), true
}

// Unlocked reports whether the master secret is resident. If no password is
// held and an auto-unlock source is configured, one unlock attempt is made
// with its password; a failed attempt just reports false.
func (m *Manager) Unlocked() bool {
	if m.master != nil {
		return true
	}
	if m.autoUnlock == nil || !m.HasMasterPassword() {
		return false
	}

	password, ok := m.autoUnlock.Password()
	if !ok {
		return false
	}
	log.Debugf("Trying auto-unlock source to unlock store")
	if err := m.Unlock(password); err != nil {
		log.Debugf("Auto-unlock failed: %v", err)
		return false
	}
	return m.master != nil
}

// Locked is the negation of Unlocked
func (m *Manager) Locked() bool {
	return !m.Unlocked()
}

// Lock clears the password and master secret from memory
func (m *Manager) Lock() {
	crypto.ClearBytes(m.password)
	crypto.ClearBytes(m.master)
	m.password = nil
	m.master = nil
}

// Unlock decrypts the master secret with password. On a store without a
// master entry a new secret is generated and stored encrypted under
// password.
func (m *Manager) Unlock(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if m.HasMasterPassword() {
		return m.decryptEncryptedMaster(password)
	}
	return m.newMaster(password)
}

// decryptEncryptedMaster verifies password against the stored entry. Every
// failure, whatever its cause, is reported as ErrWrongPassword.
func (m *Manager) decryptEncryptedMaster(password string) error {
	entry, _ := m.config.Get(m.configKey)

	parts := strings.Split(entry, entrySeparator)
	if len(parts) != 2 {
		return m.wrongPassword()
	}
	checksum, ciphertext := parts[0], parts[1]

	decrypted, err := m.cipher.Decrypt(ciphertext, password)
	if err != nil {
		return m.wrongPassword()
	}
	if !crypto.ConstantTimeCompare([]byte(checksum), []byte(DeriveChecksum(decrypted))) {
		return m.wrongPassword()
	}

	m.setSecrets([]byte(password), []byte(decrypted))
	log.Debugf("Store unlocked")
	return nil
}

func (m *Manager) wrongPassword() error {
	m.Lock()
	return ErrWrongPassword
}

// newMaster generates a random master secret, encrypts it under password
// and stores it. It refuses to overwrite an existing entry.
func (m *Manager) newMaster(password string) error {
	if m.HasMasterPassword() {
		return ErrAlreadyInitialized
	}

	raw, err := crypto.GenerateRandom(m.rand, secretSize)
	if err != nil {
		return err
	}
	master := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(master, raw)
	crypto.ClearBytes(raw)

	m.setSecrets([]byte(password), master)
	if err := m.saveEncryptedMaster(); err != nil {
		m.Lock()
		return err
	}
	log.Infof("Created new master password entry")
	return nil
}

func (m *Manager) setSecrets(password, master []byte) {
	m.Lock()
	m.password = password
	m.master = master
}

func (m *Manager) saveEncryptedMaster() error {
	entry, err := m.EncryptedMaster()
	if err != nil {
		return err
	}
	if err := m.config.Set(m.configKey, entry); err != nil {
		return fmt.Errorf("failed to store master password: %w", err)
	}
	return nil
}

// EncryptedMaster returns the master entry as it is written to the config
// store: checksum, "$", then the master secret encrypted under the current
// password.
func (m *Manager) EncryptedMaster() (string, error) {
	if !m.Unlocked() {
		return "", ErrStoreLocked
	}
	ciphertext, err := m.cipher.Encrypt(string(m.master), string(m.password))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt master password: %w", err)
	}
	return DeriveChecksum(string(m.master)) + entrySeparator + ciphertext, nil
}

// ChangePassword re-encrypts the master secret under newPassword. Keys
// wrapped under the master secret are untouched.
func (m *Manager) ChangePassword(newPassword string) error {
	if !m.Unlocked() {
		return ErrStoreLocked
	}
	if newPassword == "" {
		return ErrPasswordRequired
	}

	old := m.password
	m.password = []byte(newPassword)
	if err := m.saveEncryptedMaster(); err != nil {
		crypto.ClearBytes(m.password)
		m.password = old
		return err
	}
	crypto.ClearBytes(old)
	log.Infof("Master password changed")
	return nil
}

// Encrypt wraps a private key (WIF) under the master secret
func (m *Manager) Encrypt(wif string) (string, error) {
	if !m.Unlocked() {
		return "", ErrStoreLocked
	}
	return m.wrapper.Wrap(wif, string(m.master))
}

// Decrypt unwraps a private key produced by Encrypt
func (m *Manager) Decrypt(encWIF string) (string, error) {
	if !m.Unlocked() {
		return "", ErrStoreLocked
	}
	return m.wrapper.Unwrap(encWIF, string(m.master))
}
