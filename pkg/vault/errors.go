package vault

import (
	"errors"
	"strings"

	"github.com/mediasafe/vaultctl/pkg/hdiutil"
)

// Errors
var (
	ErrVaultAlreadyExists    = errors.New("vault: vault already exists at this path")
	ErrVaultNotFound         = errors.New("vault: vault not found")
	ErrIncorrectPassword     = errors.New("vault: incorrect password")
	ErrUnsupportedFilesystem = errors.New("vault: unsupported filesystem")
	ErrCreateFailed          = errors.New("vault: failed to create vault")
	ErrMountFailed           = errors.New("vault: failed to mount vault")
	ErrUnmountFailed         = errors.New("vault: failed to unmount vault")
	ErrManifestCorrupted     = errors.New("vault: manifest is corrupted")
	ErrVaultMounted          = errors.New("vault: vault is currently mounted")
)

// passwordRejectionMarkers are substrings of the tool's diagnostics that
// indicate the passphrase was rejected rather than some environmental
// failure. Matched case-insensitively.
var passwordRejectionMarkers = []string{
	"authentication error",
	"incorrect passphrase",
	"passphrase incorrect",
	"authentication failed",
}

func isPasswordRejection(diagnostic string) bool {
	d := strings.ToLower(diagnostic)
	for _, marker := range passwordRejectionMarkers {
		if strings.Contains(d, marker) {
			return true
		}
	}
	return false
}

// diagnostic extracts the tool's stderr text from an adapter error, or
// falls back to the error message itself.
func diagnostic(err error) string {
	var toolErr *hdiutil.Error
	if errors.As(err, &toolErr) && toolErr.Diagnostic != "" {
		return toolErr.Diagnostic
	}
	return err.Error()
}
