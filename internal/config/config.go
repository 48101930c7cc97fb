package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"gopkg.in/yaml.v3"

	"github.com/illarion/keylock/internal/masterkey"
	"github.com/illarion/keylock/internal/pubkey"
)

const (
	appName = "keylock"

	// EnvConfigDir overrides the configuration directory
	EnvConfigDir = "KEYLOCK_CONFIG_DIR"
	// EnvStore overrides the store path from the settings file
	EnvStore = "KEYLOCK_STORE"

	settingsFilename = "settings.yaml"
	boltFilename     = "keylock.db"
	yamlDirname      = "store"

	defaultLogLevel = "warn"
)

// Storage backends
const (
	BackendBolt   = "bolt"
	BackendYAML   = "yaml"
	BackendMemory = "memory"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Settings is the content of settings.yaml
type Settings struct {
	// Store is the bolt file or, for the yaml backend, the directory
	// holding config.yaml and keys.yaml. Empty selects the default location.
	Store   string `yaml:"store,omitempty"`
	Backend string `yaml:"backend"`
	Prefix  string `yaml:"prefix"`

	LogLevel string `yaml:"log_level"`

	// AutoUnlockEnv names the environment variable tried for automatic
	// unlocking; empty disables it.
	AutoUnlockEnv string `yaml:"auto_unlock_env"`
	Keyring       bool   `yaml:"keyring"`

	// PlaintextKeys keeps private keys unencrypted. Testing only.
	PlaintextKeys bool `yaml:"plaintext_keys,omitempty"`
}

// ConfigDir returns the directory holding settings and the default store
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	if dir := btcutil.AppDataDir(appName, false); dir != "" && dir != "." {
		return dir
	}
	return "." + appName
}

// SettingsPath returns the default settings file location
func SettingsPath() string {
	return filepath.Join(ConfigDir(), settingsFilename)
}

// Default returns the settings used when no file exists
func Default() Settings {
	return Settings{
		Backend:       BackendBolt,
		Prefix:        pubkey.DefaultPrefix,
		LogLevel:      defaultLogLevel,
		AutoUnlockEnv: masterkey.DefaultUnlockEnv,
		Keyring:       true,
	}
}

// Load reads settings from path on top of the defaults. A missing file
// yields the defaults. KEYLOCK_STORE overrides the store path.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Settings{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if store := os.Getenv(EnvStore); store != "" {
		s.Store = store
	}
	if s.Prefix == "" {
		s.Prefix = pubkey.DefaultPrefix
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the backend name
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendBolt, BackendYAML, BackendMemory:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, s.Backend)
	}
}

// StorePath returns the configured store location or the backend default
func (s Settings) StorePath() string {
	if s.Store != "" {
		return s.Store
	}
	switch s.Backend {
	case BackendYAML:
		return filepath.Join(ConfigDir(), yamlDirname)
	case BackendMemory:
		return ""
	default:
		return filepath.Join(ConfigDir(), boltFilename)
	}
}

// Save writes s to path, creating the directory if needed
func (s Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
