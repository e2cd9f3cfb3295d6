//go:build !darwin && !linux

package vault

import "errors"

var errUnsupportedPlatform = errors.New("vault: filesystem probes not supported on this platform")

func filesystemName(path string) (string, error) {
	return "", errUnsupportedPlatform
}

func availableBytes(path string) (uint64, error) {
	return 0, errUnsupportedPlatform
}
