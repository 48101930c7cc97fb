// Package core provides the keylock store operations.
//
// A KeyLock opens one storage backend (bolt file, YAML directory or memory)
// and exposes:
//   - Create/Unlock/Lock: master password lifecycle
//   - ChangePassword: re-encrypt the master secret only
//   - AddKey/PublicKeys/PrivateKey/RemoveKey: key pairs by public key
//   - Config values with process-wide defaults
//   - Status, Compact and Wipe
//
// Automatic unlocking tries the configured environment variable, then the
// OS keyring entry of the store.
package core
