package bip38

import (
	"bytes"
	"crypto/aes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/crypto/scrypt"

	"github.com/illarion/keylock/internal/crypto"
)

const (
	// scrypt parameters fixed by BIP38
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 8
	scryptKeyLen = 64

	flagUncompressed = 0xc0
	flagCompressed   = 0xe0

	saltSize     = 4
	checksumSize = 4
	payloadSize  = 39 // prefix(2) + flag + salt + two encrypted halves
)

var prefix = []byte{0x01, 0x42}

var (
	ErrInvalidWIF      = errors.New("invalid WIF private key")
	ErrInvalidEncoding = errors.New("invalid BIP38 encoding")
	ErrUnsupportedFlag = errors.New("unsupported BIP38 flag byte")
	ErrWrongPassphrase = errors.New("wrong passphrase")
)

// Encrypt wraps wif under passphrase using the non-EC-multiply scheme. The
// flag byte is always 0xc0, so the salt comes from the uncompressed P2PKH
// address whatever compression wif was encoded with.
func Encrypt(wif, passphrase string) (string, error) {
	w, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidWIF, err)
	}

	priv := w.PrivKey.Serialize()
	defer crypto.ClearBytes(priv)

	salt, err := addressHash(w.PrivKey, false)
	if err != nil {
		return "", err
	}

	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}
	defer crypto.ClearBytes(derived)
	half1, half2 := derived[:32], derived[32:]

	block, err := aes.NewCipher(half2)
	if err != nil {
		return "", err
	}

	encrypted := make([]byte, 32)
	var buf [aes.BlockSize]byte
	for off := 0; off < 32; off += aes.BlockSize {
		for i := range buf {
			buf[i] = priv[off+i] ^ half1[off+i]
		}
		block.Encrypt(encrypted[off:off+aes.BlockSize], buf[:])
	}
	crypto.ClearBytes(buf[:])

	payload := make([]byte, 0, payloadSize+checksumSize)
	payload = append(payload, prefix...)
	payload = append(payload, flagUncompressed)
	payload = append(payload, salt...)
	payload = append(payload, encrypted...)
	payload = append(payload, doubleSHA256(payload)[:checksumSize]...)

	return base58.Encode(payload), nil
}

// Decrypt unwraps an encrypted key produced by Encrypt or any BIP38
// non-EC-multiply implementation. The returned WIF is compressed only when
// the flag byte says so.
func Decrypt(encWIF, passphrase string) (string, error) {
	raw := base58.Decode(encWIF)
	if len(raw) != payloadSize+checksumSize {
		return "", ErrInvalidEncoding
	}

	payload, checksum := raw[:payloadSize], raw[payloadSize:]
	if !bytes.Equal(doubleSHA256(payload)[:checksumSize], checksum) {
		return "", ErrInvalidEncoding
	}
	if !bytes.Equal(payload[:2], prefix) {
		return "", ErrInvalidEncoding
	}

	var compressed bool
	switch payload[2] {
	case flagUncompressed:
	case flagCompressed:
		compressed = true
	default:
		return "", fmt.Errorf("%w: 0x%02x", ErrUnsupportedFlag, payload[2])
	}

	salt := payload[3 : 3+saltSize]
	encrypted := payload[3+saltSize:]

	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}
	defer crypto.ClearBytes(derived)
	half1, half2 := derived[:32], derived[32:]

	block, err := aes.NewCipher(half2)
	if err != nil {
		return "", err
	}

	priv := make([]byte, 32)
	defer crypto.ClearBytes(priv)
	for off := 0; off < 32; off += aes.BlockSize {
		block.Decrypt(priv[off:off+aes.BlockSize], encrypted[off:off+aes.BlockSize])
	}
	for i := range priv {
		priv[i] ^= half1[i]
	}

	privKey, _ := btcec.PrivKeyFromBytes(priv)
	check, err := addressHash(privKey, compressed)
	if err != nil {
		return "", err
	}
	if !bytes.Equal(check, salt) {
		return "", ErrWrongPassphrase
	}

	w, err := btcutil.NewWIF(privKey, &chaincfg.MainNetParams, compressed)
	if err != nil {
		return "", err
	}
	return w.String(), nil
}

// addressHash returns the first four bytes of the double sha256 of the
// key's mainnet P2PKH address
func addressHash(priv *btcec.PrivateKey, compressed bool) ([]byte, error) {
	var pub []byte
	if compressed {
		pub = priv.PubKey().SerializeCompressed()
	} else {
		pub = priv.PubKey().SerializeUncompressed()
	}

	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub), &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return doubleSHA256([]byte(addr.EncodeAddress()))[:saltSize], nil
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Wrapper adapts Encrypt and Decrypt to the key wrapping interface used by
// the master key manager.
type Wrapper struct{}

func (Wrapper) Wrap(wif, passphrase string) (string, error) {
	return Encrypt(wif, passphrase)
}

func (Wrapper) Unwrap(encWIF, passphrase string) (string, error) {
	return Decrypt(encWIF, passphrase)
}
