// Package store declares the storage contracts shared by keylock backends.
//
// Three interfaces are defined:
//   - Store: generic key/value container (get, set, contains, items, len,
//     delete, wipe)
//   - ConfigStore: configuration values and the encrypted master entry
//   - CredentialStore: public key to private key pairs
//
// Missing keys are reported with an explicit ok flag. Fallback values live
// in a separate Defaults registry and are applied with Defaults.Lookup, so a
// missing setting is never mistaken for a stored one.
package store
