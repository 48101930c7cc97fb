// Package bip38 implements BIP38 passphrase-protected private keys, non-EC
// multiply variant only.
//
// Keys are encrypted with flag byte 0xc0 and produce the familiar "6P..."
// strings. Decryption also accepts the 0xe0 (compressed) flag.
package bip38
