// Package security confines store file access to the store directory.
package security
