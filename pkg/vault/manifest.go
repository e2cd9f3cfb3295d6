package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File permissions for the manifest and its directory. Owner-only: the
// manifest maps names to encrypted container locations.
const (
	manifestFileMode = 0600
	manifestDirMode  = 0700
)

// Manifest is the persisted registry of all known vault configurations.
// It is the sole record this subsystem writes to disk; passwords are
// never part of it.
type Manifest struct {
	Vaults []VaultConfiguration `json:"vaults"`
}

// loadManifest reads the manifest at path. A missing file means "no
// vaults configured yet" and yields an empty manifest. A file that is
// present but unparsable is a distinct condition: it is surfaced as
// ErrManifestCorrupted instead of being silently discarded, since an
// empty fallback would orphan knowledge of existing encrypted containers.
func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("vault: read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestCorrupted, path, err)
	}
	return &m, nil
}

// save atomically rewrites the whole manifest: encode, write to a
// temporary file in the same directory, then rename over the target.
// Output is pretty-printed with stable key order for human inspection
// and version control.
func (m *Manifest) save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: encode manifest: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, manifestDirMode); err != nil {
		return fmt.Errorf("vault: create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return fmt.Errorf("vault: create temp manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("vault: write manifest: %w", err)
	}
	if err := tmp.Chmod(manifestFileMode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("vault: chmod manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vault: close manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("vault: replace manifest: %w", err)
	}
	return nil
}

// byID returns a pointer into the manifest's slice, or nil.
func (m *Manifest) byID(id string) *VaultConfiguration {
	for i := range m.Vaults {
		if m.Vaults[i].ID == id {
			return &m.Vaults[i]
		}
	}
	return nil
}

// byBundlePath returns a pointer into the manifest's slice, or nil.
func (m *Manifest) byBundlePath(bundlePath string) *VaultConfiguration {
	clean := filepath.Clean(bundlePath)
	for i := range m.Vaults {
		if filepath.Clean(m.Vaults[i].BundlePath) == clean {
			return &m.Vaults[i]
		}
	}
	return nil
}
