// Package keyring caches journal passwords in the OS keyring.
//
// Entries are keyed by journal id and username, so one user can cache
// passwords for several journals, and two usernames on one journal never
// share an entry.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "jarida"

// ErrNotFound is returned when no password is cached
var ErrNotFound = keyring.ErrNotFound

func account(journalID, username string) string {
	return journalID + "/" + username
}

// SavePassword stores a password in the OS keyring
func SavePassword(journalID, username string, password []byte) error {
	return keyring.Set(serviceName, account(journalID, username), string(password))
}

// GetPassword retrieves a password from the OS keyring
func GetPassword(journalID, username string) ([]byte, error) {
	password, err := keyring.Get(serviceName, account(journalID, username))
	if err != nil {
		return nil, err
	}
	return []byte(password), nil
}

// DeletePassword removes a password from the OS keyring. Deleting a
// password that is not stored is not an error.
func DeletePassword(journalID, username string) error {
	err := keyring.Delete(serviceName, account(journalID, username))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(journalID, username string) bool {
	_, err := keyring.Get(serviceName, account(journalID, username))
	return err == nil
}
