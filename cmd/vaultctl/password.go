package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/mediasafe/vaultctl/internal/keyring"
)

// passwordEnvVar lets scripts supply the vault password without a
// terminal. It is read from the environment, never from argv.
const passwordEnvVar = "VAULTCTL_PASSWORD"

// readPassword prompts on stderr and reads without echo.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// readNewPassword prompts twice and requires both entries to match.
func readNewPassword() (string, error) {
	pw, err := readPassword("Enter new password: ")
	if err != nil {
		return "", err
	}
	confirm, err := readPassword("Confirm new password: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errors.New("passwords do not match")
	}
	if pw == "" {
		return "", errors.New("password cannot be empty")
	}
	return pw, nil
}

// passwordFor resolves a vault's password: environment first, then the
// OS keyring when --keychain is set, then an interactive prompt.
func passwordFor(vaultID, prompt string) (string, error) {
	if pw := os.Getenv(passwordEnvVar); pw != "" {
		return pw, nil
	}
	if useKeychain && vaultID != "" {
		if pw, err := keyring.GetPassword(vaultID); err == nil {
			return pw, nil
		}
	}
	return readPassword(prompt)
}

// rememberPassword stores a password in the OS keyring when --keychain
// is set. Failures are logged, not fatal: the keyring is a convenience.
func rememberPassword(vaultID, password string) {
	if !useKeychain || vaultID == "" {
		return
	}
	if err := keyring.SavePassword(vaultID, password); err != nil {
		logger.Warn().Err(err).Str("vault_id", vaultID).Msg("could not store password in keyring")
	}
}
