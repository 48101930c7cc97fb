// Package pubkey derives and parses graphene-style public key strings
// ("GPH6UUbAG...").
package pubkey

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/ripemd160"
)

// DefaultPrefix is the address prefix of graphene chains without their own
const DefaultPrefix = "GPH"

const checksumSize = 4

var (
	ErrInvalidWIF       = errors.New("invalid WIF private key")
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// FromWIF returns the public key of wif, encoded with prefix
func FromWIF(wif, prefix string) (string, error) {
	w, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidWIF, err)
	}
	return Encode(w.PrivKey.PubKey(), prefix), nil
}

// Encode formats key as prefix + base58(compressed key || checksum)
func Encode(key *btcec.PublicKey, prefix string) string {
	compressed := key.SerializeCompressed()
	return prefix + base58.Encode(append(compressed, checksum(compressed)...))
}

// Parse validates a public key string produced by Encode
func Parse(s, prefix string) (*btcec.PublicKey, error) {
	if !strings.HasPrefix(s, prefix) {
		return nil, fmt.Errorf("%w: expected prefix %q", ErrInvalidPublicKey, prefix)
	}

	raw := base58.Decode(strings.TrimPrefix(s, prefix))
	if len(raw) != btcec.PubKeyBytesLenCompressed+checksumSize {
		return nil, fmt.Errorf("%w: bad length", ErrInvalidPublicKey)
	}

	key, sum := raw[:btcec.PubKeyBytesLenCompressed], raw[btcec.PubKeyBytesLenCompressed:]
	if !bytes.Equal(checksum(key), sum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidPublicKey)
	}

	pub, err := btcec.ParsePubKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

func checksum(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)[:checksumSize]
}
