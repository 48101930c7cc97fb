package bip38

import (
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Published BIP38 test vectors (non-EC-multiply)
var vectors = []struct {
	name       string
	wif        string
	passphrase string
	encrypted  string
}{
	{
		name:       "uncompressed",
		wif:        "5KN7MzqK5wt2TP1fQCYyHBtDrXdJuXbUzm4A9rKAteGu3Qi5CVR",
		passphrase: "TestingOneTwoThree",
		encrypted:  "6PRVWUbkzzsbcVac2qwfssoUJAN1Xhrg6bNk8J7Nzm5H7kxEbn2Nh2ZoGg",
	},
	{
		name:       "uncompressed second",
		wif:        "5HtasZ6ofTHP6HCwTqTkLDuLQisYPah7aUnSKfC7h4hMUVw2gi5",
		passphrase: "Satoshi",
		encrypted:  "6PRNFFkZc2NZ6dJqFfhRoFNMR9Lnyj7dYGrzdgXXVMXcxoKTePPX1dWByq",
	},
}

func TestEncryptVectors(t *testing.T) {
	for _, v := range vectors {
		t.Run(v.name, func(t *testing.T) {
			got, err := Encrypt(v.wif, v.passphrase)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if got != v.encrypted {
				t.Errorf("Encrypt = %s, want %s", got, v.encrypted)
			}
		})
	}
}

func TestDecryptVectors(t *testing.T) {
	for _, v := range vectors {
		t.Run(v.name, func(t *testing.T) {
			got, err := Decrypt(v.encrypted, v.passphrase)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if got != v.wif {
				t.Errorf("Decrypt = %s, want %s", got, v.wif)
			}
		})
	}
}

func TestDecryptCompressedFlag(t *testing.T) {
	got, err := Decrypt("6PYNKZ1EAgYgmQfmNVamxyXVWHzK5s6DGhwP4J5o44cvXdoY7sRzhtpUeo", "TestingOneTwoThree")
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if want := "L44B5gGEpqEDRS9vVPz7QT35jcBG2r3CZwSwQ4fCewXAhAhqGVpP"; got != want {
		t.Errorf("Decrypt = %s, want %s", got, want)
	}
}

func TestEncryptCompressedWIFUsesUncompressedFlag(t *testing.T) {
	// Same private key as the first vector, compressed encoding
	got, err := Encrypt("L44B5gGEpqEDRS9vVPz7QT35jcBG2r3CZwSwQ4fCewXAhAhqGVpP", "TestingOneTwoThree")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if got != vectors[0].encrypted {
		t.Errorf("Encrypt = %s, want %s", got, vectors[0].encrypted)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	_, err := Decrypt(vectors[0].encrypted, "wrong")
	if !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Expected ErrWrongPassphrase, got %v", err)
	}
}

func TestEncryptInvalidWIF(t *testing.T) {
	for _, wif := range []string{"", "not a key", "5KN7MzqK5wt2TP1fQCYyHBtDrXdJuXbUzm4A9rKAteGu3Qi5CVS"} {
		if _, err := Encrypt(wif, "pw"); !errors.Is(err, ErrInvalidWIF) {
			t.Errorf("Encrypt(%q): expected ErrInvalidWIF, got %v", wif, err)
		}
	}
}

func encodeRaw(payload []byte) string {
	return base58.Encode(append(payload, doubleSHA256(payload)[:checksumSize]...))
}

func TestDecryptMalformed(t *testing.T) {
	valid := base58.Decode(vectors[0].encrypted)
	body := valid[:payloadSize]

	badPrefix := append([]byte{}, body...)
	badPrefix[1] = 0x43

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrInvalidEncoding},
		{"not base58", "0OIl", ErrInvalidEncoding},
		{"truncated", vectors[0].encrypted[:40], ErrInvalidEncoding},
		{"bad checksum", strings.TrimSuffix(vectors[0].encrypted, "g") + "h", ErrInvalidEncoding},
		{"bad prefix", encodeRaw(badPrefix), ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(tt.input, vectors[0].passphrase); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecryptUnsupportedFlag(t *testing.T) {
	valid := base58.Decode(vectors[0].encrypted)
	payload := append([]byte{}, valid[:payloadSize]...)
	payload[2] = 0x43 // EC-multiply keys are not supported

	if _, err := Decrypt(encodeRaw(payload), vectors[0].passphrase); !errors.Is(err, ErrUnsupportedFlag) {
		t.Errorf("Expected ErrUnsupportedFlag, got %v", err)
	}
}

func TestWrapper(t *testing.T) {
	var w Wrapper
	master := strings.Repeat("ab", 32)

	enc, err := w.Wrap("5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ", master)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	if !strings.HasPrefix(enc, "6P") {
		t.Errorf("Wrapped key should start with 6P, got %s", enc)
	}

	wif, err := w.Unwrap(enc, master)
	if err != nil {
		t.Fatalf("Unwrap failed: %v", err)
	}
	if wif != "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ" {
		t.Errorf("Unwrap = %s", wif)
	}
}
