package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	IVSize    = aes.BlockSize // CBC initialisation vector
	PadBlock  = 32            // padding block size of the stored format
	KeySize   = sha256.Size   // AES-256 key from sha256(password)
	minLength = IVSize + aes.BlockSize
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidPadding    = errors.New("invalid padding")
	ErrInvalidPlaintext  = errors.New("plaintext is not valid UTF-8")
)

// AESCipher encrypts short strings under a password.
//
// The output is base64(IV || AES-256-CBC(pad(plaintext))) where the key is
// sha256(password) and padding fills up to a multiple of 32 bytes, each pad
// byte holding the pad length. Stores written by other implementations of
// the same format can be read back unchanged.
type AESCipher struct {
	// Rand supplies IVs. Defaults to crypto/rand.
	Rand io.Reader
}

// NewAESCipher returns a cipher reading IVs from crypto/rand
func NewAESCipher() *AESCipher {
	return &AESCipher{Rand: rand.Reader}
}

func (c *AESCipher) random() io.Reader {
	if c == nil || c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}

// Encrypt encrypts plaintext with a key derived from password
func (c *AESCipher) Encrypt(plaintext, password string) (string, error) {
	key := deriveKey(password)
	defer ClearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pad([]byte(plaintext))
	defer ClearBytes(padded)

	out := make([]byte, IVSize+len(padded))
	iv := out[:IVSize]
	if _, err := io.ReadFull(c.random(), iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[IVSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed input yields an error; a wrong
// password usually shows up as ErrInvalidPadding or ErrInvalidPlaintext but
// may also decrypt to garbage, so callers must verify the result.
func (c *AESCipher) Decrypt(ciphertext, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(raw) < minLength || (len(raw)-IVSize)%aes.BlockSize != 0 {
		return "", ErrInvalidCiphertext
	}

	key := deriveKey(password)
	defer ClearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv, body := raw[:IVSize], raw[IVSize:]
	plain := make([]byte, len(body))
	defer ClearBytes(plain)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	unpadded, err := unpad(plain)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(unpadded) {
		return "", ErrInvalidPlaintext
	}
	return string(unpadded), nil
}

func deriveKey(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

func pad(b []byte) []byte {
	n := PadBlock - len(b)%PadBlock
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrInvalidPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > PadBlock || n > len(b) {
		return nil, ErrInvalidPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrInvalidPadding
		}
	}
	return b[:len(b)-n], nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
