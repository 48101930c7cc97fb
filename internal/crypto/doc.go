// Package crypto provides the password cipher used for the master key entry.
//
// Encryption uses AES-256-CBC with:
//   - 32-byte key computed as sha256(password)
//   - 16-byte random IV per encryption, prepended to the ciphertext
//   - padding to a multiple of 32 bytes, base64 output
//
// The format carries no MAC. Callers verify decrypted values themselves
// (the master key manager does so with its checksum).
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
package crypto
