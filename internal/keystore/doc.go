// Package keystore provides the credential stores: a map from graphene public
// key to private key, plain or wrapped under the master secret.
package keystore
