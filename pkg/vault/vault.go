// Package vault manages password-encrypted, growable storage containers
// that back the MediaSafe media library. The Manager owns the on-disk
// manifest of known vaults and an in-memory table of currently mounted
// vaults; all encryption is delegated to the platform's disk-image
// utility, invoked through the hdiutil adapter. Passwords pass through
// as in-memory strings and are never written to disk.
package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediasafe/vaultctl/pkg/audit"
	"github.com/mediasafe/vaultctl/pkg/hdiutil"
)

// MinVaultSizeMB is the floor for an auto-computed container size:
// 50 GiB expressed in megabytes. Containers are sparse, so a large
// maximum only bounds growth without pre-allocating space.
const MinVaultSizeMB int64 = 50 * 1024

// capacityShare is the fraction of the parent volume's available
// capacity used when no explicit size is given (90%).
const capacityShare = 0.9

// supportedFilesystems are the native journaled formats the disk-image
// utility can host an encrypted sparse container on. Everything else,
// notably the FAT family, is rejected before any destructive work.
var supportedFilesystems = map[string]bool{
	"apfs":  true,
	"hfs":   true,
	"ext4":  true,
	"xfs":   true,
	"btrfs": true,
}

// Tool is the adapter surface the Manager drives. *hdiutil.Client
// implements it; tests substitute fakes.
type Tool interface {
	Create(ctx context.Context, opts hdiutil.CreateOptions) error
	Attach(ctx context.Context, bundlePath, password string) ([]hdiutil.Entity, error)
	Detach(ctx context.Context, mountPath string, force bool) error
	ChangePassword(ctx context.Context, bundlePath, oldPassword, newPassword string) error
	Compact(ctx context.Context, bundlePath string) error
	Info(ctx context.Context) ([]hdiutil.Image, error)
	VolumeUUID(ctx context.Context, path string) (string, error)
}

// Manager is the serialized core of the subsystem. One mutex guards the
// manifest and the mounted-vault table and is held across subprocess
// calls, so two operations can never interleave their reads and writes
// of shared state and at most one tool invocation runs at a time. No
// timeout is imposed here; callers own cancellation via ctx.
type Manager struct {
	mu sync.Mutex

	tool         Tool
	manifestPath string
	manifest     *Manifest
	mounts       map[string]string // vault id -> OS-assigned mount path

	log   zerolog.Logger
	audit *audit.Logger

	mountPrefix     string
	removablePrefix string

	// Probes are injectable for tests; defaults are the platform
	// statfs implementations.
	filesystemName func(path string) (string, error)
	availableBytes func(path string) (uint64, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithAudit attaches an audit logger. Nil disables audit recording.
func WithAudit(a *audit.Logger) Option {
	return func(m *Manager) { m.audit = a }
}

// WithMountPrefix overrides the product tag used in mount-point names.
func WithMountPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.mountPrefix = prefix
		}
	}
}

// WithRemovablePrefix overrides the removable-volume namespace used to
// derive drive types.
func WithRemovablePrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.removablePrefix = prefix
		}
	}
}

// WithFilesystemProbe replaces the filesystem-type probe. Used by tests.
func WithFilesystemProbe(probe func(path string) (string, error)) Option {
	return func(m *Manager) { m.filesystemName = probe }
}

// WithCapacityProbe replaces the available-capacity probe. Used by tests.
func WithCapacityProbe(probe func(path string) (uint64, error)) Option {
	return func(m *Manager) { m.availableBytes = probe }
}

// New constructs a Manager and loads the manifest at manifestPath. A
// missing manifest yields an empty one; a present but unparsable file
// fails with ErrManifestCorrupted so existing vault registrations are
// never silently dropped.
func New(manifestPath string, tool Tool, opts ...Option) (*Manager, error) {
	manifest, err := loadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		tool:            tool,
		manifestPath:    manifestPath,
		manifest:        manifest,
		mounts:          make(map[string]string),
		log:             zerolog.Nop(),
		mountPrefix:     DefaultMountPrefix,
		removablePrefix: DefaultRemovablePrefix,
		filesystemName:  filesystemName,
		availableBytes:  availableBytes,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateVault creates a new encrypted container and returns its fully
// populated configuration. sizeMB <= 0 means "auto": 90% of the parent
// volume's available capacity, floored at MinVaultSizeMB. The returned
// configuration is NOT added to the manifest; registration is a separate
// AddVault call so creation stays independently testable and retryable.
func (m *Manager) CreateVault(ctx context.Context, name, bundlePath, password string, sizeMB int64) (*VaultConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(bundlePath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrVaultAlreadyExists, bundlePath)
	}

	// Filesystem support is checked before any destructive work.
	parent := filepath.Dir(bundlePath)
	fsName, err := m.filesystemName(parent)
	if err != nil {
		return nil, fmt.Errorf("vault: probe filesystem of %s: %w", parent, err)
	}
	if !supportedFilesystems[fsName] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilesystem, fsName)
	}

	if sizeMB <= 0 {
		sizeMB, err = m.defaultSizeMB(parent)
		if err != nil {
			return nil, err
		}
	}

	mountName := MountPointName(m.mountPrefix, name)
	err = m.tool.Create(ctx, hdiutil.CreateOptions{
		BundlePath: bundlePath,
		VolumeName: mountName,
		SizeMB:     sizeMB,
		Password:   password,
	})
	if err != nil {
		m.record(audit.OpVaultCreate, "", name, err)
		return nil, fmt.Errorf("%w: %s", ErrCreateFailed, diagnostic(err))
	}

	cfg := &VaultConfiguration{
		BundlePath:     bundlePath,
		CreatedDate:    time.Now().UTC(),
		DriveType:      driveTypeFor(bundlePath, m.removablePrefix),
		ID:             uuid.NewString(),
		IsEnabled:      true,
		MountPointName: mountName,
		Name:           name,
	}

	// Best effort: absence of a volume UUID is not an error.
	if volUUID, err := m.tool.VolumeUUID(ctx, parent); err == nil {
		cfg.VolumeUUID = volUUID
	} else {
		m.log.Debug().Err(err).Str("path", parent).Msg("could not read volume UUID")
	}

	m.record(audit.OpVaultCreate, cfg.ID, name, nil)
	return cfg, nil
}

// defaultSizeMB computes the auto size for a new container on the volume
// holding path.
func (m *Manager) defaultSizeMB(path string) (int64, error) {
	avail, err := m.availableBytes(path)
	if err != nil {
		return 0, fmt.Errorf("vault: probe capacity of %s: %w", path, err)
	}
	sizeMB := int64(float64(avail)*capacityShare) / (1024 * 1024)
	if sizeMB < MinVaultSizeMB {
		sizeMB = MinVaultSizeMB
	}
	return sizeMB, nil
}

// MountVault mounts the vault with the given id and returns the
// OS-assigned mount path. Mounting an already-mounted vault returns the
// recorded path without invoking the external tool.
func (m *Manager) MountVault(ctx context.Context, id, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mountLocked(ctx, id, password)
}

func (m *Manager) mountLocked(ctx context.Context, id, password string) (string, error) {
	cfg := m.manifest.byID(id)
	if cfg == nil {
		return "", fmt.Errorf("%w: %s", ErrVaultNotFound, id)
	}
	if _, err := os.Stat(cfg.BundlePath); err != nil {
		return "", fmt.Errorf("%w: bundle missing at %s", ErrVaultNotFound, cfg.BundlePath)
	}

	// Idempotent fast path.
	if path, ok := m.mounts[id]; ok {
		return path, nil
	}

	entities, err := m.tool.Attach(ctx, cfg.BundlePath, password)
	if err != nil {
		diag := diagnostic(err)
		m.record(audit.OpVaultMountFailed, id, cfg.Name, err)
		if isPasswordRejection(diag) {
			return "", fmt.Errorf("%w: %s", ErrIncorrectPassword, cfg.Name)
		}
		return "", fmt.Errorf("%w: %s", ErrMountFailed, diag)
	}

	mountPath := firstMountPoint(entities)
	if mountPath == "" {
		return "", fmt.Errorf("%w: attach output contains no mount point", ErrMountFailed)
	}

	m.mounts[id] = mountPath
	m.record(audit.OpVaultMount, id, cfg.Name, nil)
	return mountPath, nil
}

func firstMountPoint(entities []hdiutil.Entity) string {
	for _, e := range entities {
		if e.MountPoint != "" {
			return e.MountPoint
		}
	}
	return ""
}

// MountAllEnabled mounts every enabled vault in manifest order and
// returns the id-to-mount-path map of successes. An absent external
// bundle is silently skipped (the drive is simply not connected); an
// absent local bundle is a configuration error and fails the operation.
// A later failure does not roll back earlier mounts: the partial result
// is returned alongside the error.
func (m *Manager) MountAllEnabled(ctx context.Context, password string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mounted := make(map[string]string)
	for i := range m.manifest.Vaults {
		cfg := &m.manifest.Vaults[i]
		if !cfg.IsEnabled {
			continue
		}
		if _, err := os.Stat(cfg.BundlePath); err != nil {
			if cfg.DriveType == DriveTypeExternal {
				m.log.Debug().Str("vault", cfg.Name).Str("bundle", cfg.BundlePath).
					Msg("external vault not connected, skipping")
				continue
			}
			return mounted, fmt.Errorf("%w: bundle missing at %s", ErrVaultNotFound, cfg.BundlePath)
		}

		path, err := m.mountLocked(ctx, cfg.ID, password)
		if err != nil {
			return mounted, err
		}
		mounted[cfg.ID] = path
	}
	return mounted, nil
}

// FindMountPoint reports where the container at bundlePath is currently
// mounted, by scanning the tool's system-wide listing of attached
// images. It has no manifest dependency: callers use it after a process
// restart to rediscover vaults mounted by a previous instance (or out of
// band) before assuming a vault is unmounted.
func FindMountPoint(ctx context.Context, tool Tool, bundlePath string) (string, bool, error) {
	images, err := tool.Info(ctx)
	if err != nil {
		return "", false, err
	}
	clean := filepath.Clean(bundlePath)
	for _, img := range images {
		if filepath.Clean(img.ImagePath) != clean {
			continue
		}
		if mp := firstMountPoint(img.Entities); mp != "" {
			return mp, true, nil
		}
	}
	return "", false, nil
}

// ResyncMounts repopulates the mounted-vault table from the tool's
// system-wide listing. The table is empty after a restart even though
// vaults may still be mounted; one info call re-synchronizes every
// manifest entry at once.
func (m *Manager) ResyncMounts(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	images, err := m.tool.Info(ctx)
	if err != nil {
		return err
	}

	byPath := make(map[string]string, len(images))
	for _, img := range images {
		if mp := firstMountPoint(img.Entities); mp != "" {
			byPath[filepath.Clean(img.ImagePath)] = mp
		}
	}

	for i := range m.manifest.Vaults {
		cfg := &m.manifest.Vaults[i]
		if mp, ok := byPath[filepath.Clean(cfg.BundlePath)]; ok {
			m.mounts[cfg.ID] = mp
		}
	}
	return nil
}

// UnmountVault unmounts the vault with the given id. Vaults not tracked
// as mounted are a no-op. On failure the table entry is preserved so a
// retry remains possible.
func (m *Manager) UnmountVault(ctx context.Context, id string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unmountLocked(ctx, id, force)
}

func (m *Manager) unmountLocked(ctx context.Context, id string, force bool) error {
	mountPath, ok := m.mounts[id]
	if !ok {
		return nil
	}

	name := id
	if cfg := m.manifest.byID(id); cfg != nil {
		name = cfg.Name
	}

	if err := m.tool.Detach(ctx, mountPath, force); err != nil {
		m.record(audit.OpVaultUnmount, id, name, err)
		return fmt.Errorf("%w: %s", ErrUnmountFailed, diagnostic(err))
	}

	delete(m.mounts, id)
	m.record(audit.OpVaultUnmount, id, name, nil)
	return nil
}

// UnmountAllVaults is a best-effort sweep over every tracked mount.
// Failures are logged per vault and do not stop the sweep; the table is
// updated incrementally as each unmount succeeds.
func (m *Manager) UnmountAllVaults(ctx context.Context, force bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.mounts))
	for id := range m.mounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := m.unmountLocked(ctx, id, force); err != nil {
			m.log.Warn().Err(err).Str("vault_id", id).Msg("unmount failed")
		}
	}
}

// ChangePassword re-keys the container at bundlePath. Rotation operates
// on the container file itself and must not run against a mounted
// container, so vaults currently tracked as mounted are rejected with
// ErrVaultMounted.
func (m *Manager) ChangePassword(ctx context.Context, bundlePath, oldPassword, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changePasswordLocked(ctx, bundlePath, oldPassword, newPassword)
}

func (m *Manager) changePasswordLocked(ctx context.Context, bundlePath, oldPassword, newPassword string) error {
	clean := filepath.Clean(bundlePath)
	for id := range m.mounts {
		cfg := m.manifest.byID(id)
		if cfg != nil && filepath.Clean(cfg.BundlePath) == clean {
			return fmt.Errorf("%w: unmount %q before changing its password", ErrVaultMounted, cfg.Name)
		}
	}

	var id, name string
	if cfg := m.manifest.byBundlePath(bundlePath); cfg != nil {
		id, name = cfg.ID, cfg.Name
	}

	if err := m.tool.ChangePassword(ctx, bundlePath, oldPassword, newPassword); err != nil {
		m.record(audit.OpVaultRekey, id, name, err)
		return fmt.Errorf("%w: %s", ErrCreateFailed, diagnostic(err))
	}

	m.record(audit.OpVaultRekey, id, name, nil)
	return nil
}

// ChangeAllPasswords re-keys every manifest entry whose bundle currently
// exists on disk, sequentially. Vaults whose container is absent (for
// example a disconnected external drive) are skipped.
func (m *Manager) ChangeAllPasswords(ctx context.Context, oldPassword, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.manifest.Vaults {
		cfg := &m.manifest.Vaults[i]
		if _, err := os.Stat(cfg.BundlePath); err != nil {
			m.log.Debug().Str("vault", cfg.Name).Msg("bundle absent, skipping password change")
			continue
		}
		if err := m.changePasswordLocked(ctx, cfg.BundlePath, oldPassword, newPassword); err != nil {
			return err
		}
	}
	return nil
}

// CompactVault reclaims space left by deleted content inside the vault's
// sparse container. Compaction needs exclusive access to the backing
// file, so a currently mounted vault is skipped with a logged warning
// rather than an error.
func (m *Manager) CompactVault(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mounts[id]; ok {
		m.log.Warn().Str("vault_id", id).Msg("vault is mounted, skipping compaction")
		return nil
	}

	cfg := m.manifest.byID(id)
	if cfg == nil {
		return fmt.Errorf("%w: %s", ErrVaultNotFound, id)
	}

	if err := m.tool.Compact(ctx, cfg.BundlePath); err != nil {
		m.record(audit.OpVaultCompact, id, cfg.Name, err)
		return fmt.Errorf("vault: compact %q: %s", cfg.Name, diagnostic(err))
	}

	m.record(audit.OpVaultCompact, id, cfg.Name, nil)
	return nil
}

// AddVault registers a configuration in the manifest and persists it.
// Bundle paths are unique across the manifest.
func (m *Manager) AddVault(cfg VaultConfiguration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.manifest.byBundlePath(cfg.BundlePath) != nil {
		return fmt.Errorf("%w: %s", ErrVaultAlreadyExists, cfg.BundlePath)
	}

	m.manifest.Vaults = append(m.manifest.Vaults, cfg)
	if err := m.manifest.save(m.manifestPath); err != nil {
		m.manifest.Vaults = m.manifest.Vaults[:len(m.manifest.Vaults)-1]
		return err
	}
	m.record(audit.OpManifestAdd, cfg.ID, cfg.Name, nil)
	return nil
}

// RemoveVault deletes a configuration from the manifest and persists the
// change. The container file itself is untouched.
func (m *Manager) RemoveVault(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.manifest.byID(id)
	if cfg == nil {
		return fmt.Errorf("%w: %s", ErrVaultNotFound, id)
	}
	name := cfg.Name

	kept := m.manifest.Vaults[:0]
	for _, v := range m.manifest.Vaults {
		if v.ID != id {
			kept = append(kept, v)
		}
	}
	m.manifest.Vaults = kept

	if err := m.manifest.save(m.manifestPath); err != nil {
		return err
	}
	m.record(audit.OpManifestRemove, id, name, nil)
	return nil
}

// UpdateManifest applies mutate to the manifest under the lock and
// persists the result atomically.
func (m *Manager) UpdateManifest(mutate func(*Manifest)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mutate(m.manifest)
	return m.manifest.save(m.manifestPath)
}

// Vaults returns a copy of all registered configurations.
func (m *Manager) Vaults() []VaultConfiguration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]VaultConfiguration, len(m.manifest.Vaults))
	copy(out, m.manifest.Vaults)
	return out
}

// VaultByName returns the first configuration with the given name.
// Names are not guaranteed unique; ids are the stable handle.
func (m *Manager) VaultByName(name string) (VaultConfiguration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.manifest.Vaults {
		if v.Name == name {
			return v, true
		}
	}
	return VaultConfiguration{}, false
}

// VaultByID returns the configuration with the given id.
func (m *Manager) VaultByID(id string) (VaultConfiguration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg := m.manifest.byID(id); cfg != nil {
		return *cfg, true
	}
	return VaultConfiguration{}, false
}

// MountPath returns the tracked mount path for a vault id, if this
// process instance mounted it (or ResyncMounts rediscovered it).
func (m *Manager) MountPath(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, ok := m.mounts[id]
	return path, ok
}

// record writes one audit event when an audit logger is attached.
func (m *Manager) record(op, vaultID, vaultName string, opErr error) {
	if m.audit == nil {
		return
	}
	var err error
	if opErr != nil {
		err = m.audit.RecordError(op, vaultID, vaultName, opErr.Error())
	} else {
		err = m.audit.Record(op, vaultID, vaultName)
	}
	if err != nil {
		m.log.Warn().Err(err).Str("op", op).Msg("audit write failed")
	}
}
