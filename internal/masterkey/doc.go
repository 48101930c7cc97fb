// Package masterkey manages the master secret that protects stored private
// keys.
//
// The config store holds one entry, "encrypted_master_password":
//
//	<checksum>$<ciphertext>
//
// where ciphertext is the 64-character hex master secret encrypted under the
// user's password and checksum is the first four hex characters of
// sha256(master secret). Private keys are wrapped under the master secret
// with BIP38, so a password change rewrites only this entry.
//
// A Manager moves between three states:
//   - StateNoMaster: no entry yet; Unlock creates one
//   - StateLocked: entry present, secret not in memory
//   - StateUnlocked: secret resident; Encrypt, Decrypt and ChangePassword work
//
// A failed unlock never tells a garbled entry apart from a wrong password;
// both return ErrWrongPassword.
package masterkey
