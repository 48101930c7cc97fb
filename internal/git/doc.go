// Package git checks whether the keylock store file sits in a git work tree.
//
// A store file should be ignored, not committed: it holds the encrypted
// master password entry and every wrapped private key.
package git
