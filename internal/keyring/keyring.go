package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "keylock"

// ErrNotFound is returned when no password is stored for a store id
var ErrNotFound = keyring.ErrNotFound

// SavePassword stores a master password in the OS keyring
func SavePassword(storeID string, password string) error {
	return keyring.Set(serviceName, storeID, password)
}

// GetPassword retrieves a master password from the OS keyring
func GetPassword(storeID string) (string, error) {
	return keyring.Get(serviceName, storeID)
}

// DeletePassword removes a master password from the OS keyring
func DeletePassword(storeID string) error {
	return keyring.Delete(serviceName, storeID)
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(storeID string) bool {
	_, err := keyring.Get(serviceName, storeID)
	return err == nil
}

// Source supplies the keyring password of one store for automatic
// unlocking. Keyring errors are treated as "no password".
type Source struct {
	StoreID string
}

func (s Source) Password() (string, bool) {
	if s.StoreID == "" {
		return "", false
	}
	password, err := GetPassword(s.StoreID)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			log.Debugf("Keyring lookup for store %s failed: %v", s.StoreID, err)
		}
		return "", false
	}
	return password, password != ""
}
