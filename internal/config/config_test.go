package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	if got := ConfigDir(); got != dir {
		t.Errorf("ConfigDir() = %s, want %s", got, dir)
	}
	if got := SettingsPath(); got != filepath.Join(dir, "settings.yaml") {
		t.Errorf("SettingsPath() = %s", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(EnvStore, "")

	s, err := Load(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s != Default() {
		t.Errorf("Missing file should give defaults, got %+v", s)
	}
	if s.Backend != BackendBolt || s.Prefix != "GPH" || s.AutoUnlockEnv != "UNLOCK" {
		t.Errorf("Unexpected defaults %+v", s)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvStore, "")
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := "backend: yaml\nprefix: BTS\nkeyring: false\nstore: /tmp/ks\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Backend != BackendYAML || s.Prefix != "BTS" || s.Keyring || s.Store != "/tmp/ks" {
		t.Errorf("Unexpected settings %+v", s)
	}
	// Unset fields keep their defaults
	if s.AutoUnlockEnv != "UNLOCK" || s.LogLevel != "warn" {
		t.Errorf("Defaults lost: %+v", s)
	}
}

func TestLoadStoreEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("store: /from/file\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv(EnvStore, "/from/env")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.StorePath() != "/from/env" {
		t.Errorf("StorePath() = %s, want /from/env", s.StorePath())
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv(EnvStore, "")
	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknown, []byte("backend: sqlite\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(unknown); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("backend: [\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(broken); err == nil {
		t.Error("Expected parse error")
	}
}

func TestStorePathDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	s := Default()
	if got := s.StorePath(); got != filepath.Join(dir, "keylock.db") {
		t.Errorf("bolt StorePath() = %s", got)
	}
	s.Backend = BackendYAML
	if got := s.StorePath(); got != filepath.Join(dir, "store") {
		t.Errorf("yaml StorePath() = %s", got)
	}
	s.Backend = BackendMemory
	if got := s.StorePath(); got != "" {
		t.Errorf("memory StorePath() = %s", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvStore, "")
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	s := Default()
	s.Prefix = "TEST"
	s.Keyring = false
	if err := s.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Settings mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != s {
		t.Errorf("Round trip mismatch: %+v != %+v", loaded, s)
	}
}
