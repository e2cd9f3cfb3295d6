// Package keyring stores per-vault passwords in the OS keyring on the
// CLI side. The vault manager itself never touches it: it receives
// passwords as plain in-memory strings regardless of where they came
// from.
package keyring

import (
	"github.com/zalando/go-keyring"
)

const serviceName = "vaultctl"

// SavePassword stores a vault's password in the OS keyring.
func SavePassword(vaultID, password string) error {
	return keyring.Set(serviceName, vaultID, password)
}

// GetPassword retrieves a vault's password from the OS keyring.
func GetPassword(vaultID string) (string, error) {
	return keyring.Get(serviceName, vaultID)
}

// DeletePassword removes a vault's password from the OS keyring.
func DeletePassword(vaultID string) error {
	return keyring.Delete(serviceName, vaultID)
}

// HasPassword reports whether a password is stored for the vault.
func HasPassword(vaultID string) bool {
	_, err := keyring.Get(serviceName, vaultID)
	return err == nil
}
