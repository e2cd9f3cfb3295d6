package vault

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DriveType records whether a vault's container lives on the primary disk
// or on removable media. Derived once at creation time from the bundle
// path and never recomputed.
type DriveType string

const (
	DriveTypeLocal    DriveType = "local"
	DriveTypeExternal DriveType = "external"
)

// DefaultMountPrefix is the product tag prepended to every mount-point
// name so MediaSafe volumes are recognizable in /Volumes.
const DefaultMountPrefix = "MediaSafe-"

// DefaultRemovablePrefix is the path namespace under which bundle paths
// are considered to live on removable media.
const DefaultRemovablePrefix = "/Volumes/"

// VaultConfiguration describes one registered vault. ID and BundlePath
// are immutable once created; BundlePath uniquely identifies the vault
// on disk.
//
// Fields are declared in JSON-key order so the encoded manifest keeps
// stable, sorted keys.
type VaultConfiguration struct {
	BundlePath     string    `json:"bundlePath"`
	CreatedDate    time.Time `json:"createdDate"`
	DriveType      DriveType `json:"driveType"`
	ID             string    `json:"id"`
	IsEnabled      bool      `json:"isEnabled"`
	MountPointName string    `json:"mountPointName"`
	Name           string    `json:"name"`
	VolumeUUID     string    `json:"volumeUUID,omitempty"`
}

// MountPointName builds the hint the OS uses when mounting a vault:
// the product prefix plus the vault name with spaces and path separators
// replaced by hyphens. No other characters are altered. Names are
// NFC-normalized first so visually identical names map to the same hint.
func MountPointName(prefix, name string) string {
	n := norm.NFC.String(name)
	n = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '-'
		}
		return r
	}, n)
	return prefix + n
}

func driveTypeFor(bundlePath, removablePrefix string) DriveType {
	if removablePrefix != "" && strings.HasPrefix(bundlePath, removablePrefix) {
		return DriveTypeExternal
	}
	return DriveTypeLocal
}
