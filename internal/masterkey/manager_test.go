package masterkey

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/illarion/keylock/internal/crypto"
	"github.com/illarion/keylock/internal/storage"
)

// fakeWrapper avoids the scrypt cost of BIP38 in most tests
type fakeWrapper struct{}

func (fakeWrapper) Wrap(wif, passphrase string) (string, error) {
	return "wrapped:" + passphrase + ":" + wif, nil
}

func (fakeWrapper) Unwrap(encWIF, passphrase string) (string, error) {
	prefix := "wrapped:" + passphrase + ":"
	if !strings.HasPrefix(encWIF, prefix) {
		return "", errors.New("wrong passphrase")
	}
	return strings.TrimPrefix(encWIF, prefix), nil
}

type fakeSource struct {
	password string
	calls    int
}

func (s *fakeSource) Password() (string, bool) {
	s.calls++
	return s.password, s.password != ""
}

// failingStore rejects writes once fail is set
type failingStore struct {
	*storage.MemoryStore
	fail bool
}

func (f *failingStore) Set(key, value string) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(key, value)
}

var entryPattern = regexp.MustCompile(`^[0-9a-f]{4}\$[A-Za-z0-9+/]+=*$`)

func newTestManager(t *testing.T, config *storage.MemoryStore, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithKeyWrapper(fakeWrapper{})}, opts...)
	m, err := New(config, opts...)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return m
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrMisconfiguredStore) {
		t.Errorf("Expected ErrMisconfiguredStore, got %v", err)
	}
}

func TestDeriveChecksum(t *testing.T) {
	tests := map[string]string{
		"hello":                  "2cf2",
		"":                       "e3b0",
		strings.Repeat("0", 64):  "60e0",
		strings.Repeat("ab", 32): "271a",
	}
	for in, want := range tests {
		if got := DeriveChecksum(in); got != want {
			t.Errorf("DeriveChecksum(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestUnlockCreatesMaster(t *testing.T) {
	config := storage.NewMemoryStore()
	m := newTestManager(t, config)

	if m.State() != StateNoMaster {
		t.Fatalf("Fresh store state = %v", m.State())
	}
	if m.Unlocked() {
		t.Fatal("Fresh manager should be locked")
	}

	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if m.State() != StateUnlocked || !m.Unlocked() || m.Locked() {
		t.Error("Manager should be unlocked after creating the master")
	}

	entry, ok := config.Get(ConfigKey)
	if !ok {
		t.Fatal("Master entry not stored")
	}
	if !entryPattern.MatchString(entry) {
		t.Errorf("Entry %q does not match checksum$ciphertext", entry)
	}

	master, ok := m.MasterKey()
	if !ok {
		t.Fatal("MasterKey should be available")
	}
	if len(master) != 64 || strings.Trim(master, "0123456789abcdef") != "" {
		t.Errorf("Master %q is not 64 lowercase hex characters", master)
	}
	if !strings.HasPrefix(entry, DeriveChecksum(master)+"$") {
		t.Error("Entry checksum does not match the master")
	}
}

func TestUnlockRoundTrip(t *testing.T) {
	config := storage.NewMemoryStore()
	first := newTestManager(t, config)
	if err := first.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	want, _ := first.MasterKey()

	second := newTestManager(t, config)
	if second.State() != StateLocked {
		t.Fatalf("State with stored entry = %v, want locked", second.State())
	}
	if err := second.Unlock("pw"); err != nil {
		t.Fatalf("Unlock of existing entry failed: %v", err)
	}
	if got, _ := second.MasterKey(); got != want {
		t.Error("Second manager recovered a different master")
	}
}

func TestWrongPassword(t *testing.T) {
	config := storage.NewMemoryStore()
	if err := newTestManager(t, config).Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	entry, _ := config.Get(ConfigKey)

	m := newTestManager(t, config)
	if err := m.Unlock("wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("Expected ErrWrongPassword, got %v", err)
	}
	if m.Unlocked() {
		t.Error("Manager should stay locked")
	}
	if _, ok := m.MasterKey(); ok {
		t.Error("MasterKey should not be available")
	}
	if got, _ := config.Get(ConfigKey); got != entry {
		t.Error("Failed unlock must not modify the stored entry")
	}
}

func TestFailedUnlockClearsPreviousSecret(t *testing.T) {
	m := newTestManager(t, storage.NewMemoryStore())
	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if err := m.Unlock("wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("Expected ErrWrongPassword, got %v", err)
	}
	if m.Unlocked() {
		t.Error("Failed unlock should clear the previous secret")
	}
}

func TestEmptyPassword(t *testing.T) {
	config := storage.NewMemoryStore()
	m := newTestManager(t, config)

	if err := m.Unlock(""); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("Expected ErrPasswordRequired, got %v", err)
	}
	if config.Contains(ConfigKey) {
		t.Error("Empty password must not create a master entry")
	}

	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if err := m.ChangePassword(""); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("Expected ErrPasswordRequired, got %v", err)
	}
}

func TestMalformedEntry(t *testing.T) {
	m := newTestManager(t, storage.NewMemoryStore())
	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	valid, _ := m.EncryptedMaster()
	_, ciphertext, _ := strings.Cut(valid, "$")

	entries := map[string]string{
		"no separator":     "abcdef",
		"extra separator":  "abcd$ef$gh",
		"not base64":       "abcd$not base64!",
		"short ciphertext": "abcd$AAAA",
		"wrong checksum":   "zzzz$" + ciphertext,
	}

	for name, entry := range entries {
		t.Run(name, func(t *testing.T) {
			config := storage.NewMemoryStore()
			config.Set(ConfigKey, entry)

			m := newTestManager(t, config)
			if err := m.Unlock("pw"); !errors.Is(err, ErrWrongPassword) {
				t.Errorf("Expected ErrWrongPassword, got %v", err)
			}
			if m.Unlocked() {
				t.Error("Manager should stay locked")
			}
		})
	}
}

func TestChangePassword(t *testing.T) {
	config := storage.NewMemoryStore()
	m := newTestManager(t, config)
	if err := m.Unlock("old"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	master, _ := m.MasterKey()

	wrapped, err := m.Encrypt("5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if err := m.ChangePassword("new"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if got, _ := m.MasterKey(); got != master {
		t.Error("ChangePassword must keep the master secret")
	}

	other := newTestManager(t, config)
	if err := other.Unlock("old"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Old password should no longer unlock, got %v", err)
	}
	if err := other.Unlock("new"); err != nil {
		t.Fatalf("New password should unlock: %v", err)
	}

	// Keys wrapped before the change stay readable
	wif, err := other.Decrypt(wrapped)
	if err != nil {
		t.Fatalf("Decrypt after password change failed: %v", err)
	}
	if wif != "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ" {
		t.Errorf("Decrypt = %s", wif)
	}
}

func TestLockedOperations(t *testing.T) {
	config := storage.NewMemoryStore()
	m := newTestManager(t, config)

	check := func(state string) {
		t.Helper()
		if _, err := m.Encrypt("wif"); !errors.Is(err, ErrStoreLocked) {
			t.Errorf("%s: Encrypt expected ErrStoreLocked, got %v", state, err)
		}
		if _, err := m.Decrypt("enc"); !errors.Is(err, ErrStoreLocked) {
			t.Errorf("%s: Decrypt expected ErrStoreLocked, got %v", state, err)
		}
		if _, err := m.EncryptedMaster(); !errors.Is(err, ErrStoreLocked) {
			t.Errorf("%s: EncryptedMaster expected ErrStoreLocked, got %v", state, err)
		}
		if err := m.ChangePassword("x"); !errors.Is(err, ErrStoreLocked) {
			t.Errorf("%s: ChangePassword expected ErrStoreLocked, got %v", state, err)
		}
	}

	check("no master")

	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	m.Lock()
	if m.State() != StateLocked {
		t.Fatalf("State after Lock = %v", m.State())
	}
	check("locked")
}

func TestLockClearsSecrets(t *testing.T) {
	m := newTestManager(t, storage.NewMemoryStore())
	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	password, master := m.password, m.master

	m.Lock()
	if m.password != nil || m.master != nil {
		t.Error("Lock should drop references to the secrets")
	}
	if !bytes.Equal(password, make([]byte, len(password))) {
		t.Error("Password bytes not zeroed")
	}
	if !bytes.Equal(master, make([]byte, len(master))) {
		t.Error("Master bytes not zeroed")
	}
}

func TestNewMasterRefusesOverwrite(t *testing.T) {
	config := storage.NewMemoryStore()
	m := newTestManager(t, config)
	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	entry, _ := config.Get(ConfigKey)

	if err := m.newMaster("other"); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
	}
	if got, _ := config.Get(ConfigKey); got != entry {
		t.Error("Existing entry was overwritten")
	}
}

func TestEntryIsPortable(t *testing.T) {
	config := storage.NewMemoryStore()
	m := newTestManager(t, config)
	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	master, _ := m.MasterKey()

	entry, _ := config.Get(ConfigKey)
	checksum, ciphertext, _ := strings.Cut(entry, "$")

	plain, err := crypto.NewAESCipher().Decrypt(ciphertext, "pw")
	if err != nil {
		t.Fatalf("Entry not decryptable with the plain cipher: %v", err)
	}
	if plain != master {
		t.Error("Decrypted entry does not match the master")
	}
	if checksum != DeriveChecksum(plain) {
		t.Error("Checksum does not match")
	}
}

func TestWithRandom(t *testing.T) {
	m := newTestManager(t, storage.NewMemoryStore(),
		WithRandom(bytes.NewReader(bytes.Repeat([]byte{0x01}, secretSize))))

	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if master, _ := m.MasterKey(); master != strings.Repeat("01", secretSize) {
		t.Errorf("Unexpected master %s", master)
	}
}

func TestRandomFailure(t *testing.T) {
	config := storage.NewMemoryStore()
	m := newTestManager(t, config, WithRandom(bytes.NewReader(nil)))

	if err := m.Unlock("pw"); err == nil {
		t.Fatal("Expected error from exhausted random source")
	}
	if m.Unlocked() || config.Contains(ConfigKey) {
		t.Error("Failed creation should leave the store untouched and locked")
	}
}

func TestWithConfigKey(t *testing.T) {
	config := storage.NewMemoryStore()
	m := newTestManager(t, config, WithConfigKey("custom"))
	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if !config.Contains("custom") || config.Contains(ConfigKey) {
		t.Error("Entry should be stored under the custom key")
	}
}

func TestSaveFailure(t *testing.T) {
	config := &failingStore{MemoryStore: storage.NewMemoryStore(), fail: true}
	m, err := New(config, WithKeyWrapper(fakeWrapper{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := m.Unlock("pw"); err == nil {
		t.Fatal("Expected save error")
	}
	if m.Unlocked() {
		t.Error("Manager should be locked after a failed save")
	}

	config.fail = false
	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	config.fail = true
	if err := m.ChangePassword("new"); err == nil {
		t.Fatal("Expected save error")
	}
	if string(m.password) != "pw" {
		t.Error("Failed ChangePassword should keep the old password")
	}
}

func TestAutoUnlock(t *testing.T) {
	config := storage.NewMemoryStore()
	if err := newTestManager(t, config).Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	src := &fakeSource{password: "pw"}
	m := newTestManager(t, config, WithAutoUnlock(src))
	if !m.Unlocked() {
		t.Fatal("Auto-unlock with the right password should unlock")
	}
	if !m.Unlocked() || src.calls != 1 {
		t.Errorf("Source consulted %d times, want 1", src.calls)
	}

	wrong := &fakeSource{password: "nope"}
	m = newTestManager(t, config, WithAutoUnlock(wrong))
	if m.Unlocked() {
		t.Error("Auto-unlock with a wrong password should report locked")
	}
	if m.State() != StateLocked {
		t.Errorf("State = %v, want locked", m.State())
	}

	empty := &fakeSource{}
	m = newTestManager(t, config, WithAutoUnlock(empty))
	if m.Unlocked() {
		t.Error("Empty source should not unlock")
	}
}

func TestAutoUnlockNeverCreates(t *testing.T) {
	config := storage.NewMemoryStore()
	src := &fakeSource{password: "pw"}
	m := newTestManager(t, config, WithAutoUnlock(src))

	if m.Unlocked() {
		t.Error("Auto-unlock must not create a master")
	}
	if config.Contains(ConfigKey) || src.calls != 0 {
		t.Error("Source should not be consulted on a store without an entry")
	}
}

func TestEnvSource(t *testing.T) {
	config := storage.NewMemoryStore()
	if err := newTestManager(t, config).Unlock("from-env"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	t.Setenv(DefaultUnlockEnv, "")
	m := newTestManager(t, config, WithAutoUnlock(EnvSource(DefaultUnlockEnv)))
	if m.Unlocked() {
		t.Error("Empty variable should not unlock")
	}

	t.Setenv(DefaultUnlockEnv, "from-env")
	if !m.Unlocked() {
		t.Error("Variable with the right password should unlock")
	}
}

func TestBIP38Wrapping(t *testing.T) {
	const wif = "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ"

	m, err := New(storage.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := m.Unlock("pw"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	enc, err := m.Encrypt(wif)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if !strings.HasPrefix(enc, "6P") {
		t.Errorf("Expected a BIP38 key, got %s", enc)
	}

	got, err := m.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if got != wif {
		t.Errorf("Decrypt = %s, want %s", got, wif)
	}
}
