//go:build linux

package vault

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// NTFS_SB_MAGIC from linux/magic.h; x/sys/unix does not export it.
const ntfsSBMagic = 0x5346544e

// Linux statfs reports a numeric magic instead of a type name; map the
// types we can meet in practice. Unknown magics fall through to a hex
// form, which the support check rejects by name.
var fsTypeNames = map[int64]string{
	unix.EXT4_SUPER_MAGIC:  "ext4",
	unix.XFS_SUPER_MAGIC:   "xfs",
	unix.BTRFS_SUPER_MAGIC: "btrfs",
	unix.MSDOS_SUPER_MAGIC: "msdos", // FAT12/16/32 share one magic
	unix.EXFAT_SUPER_MAGIC: "exfat",
	ntfsSBMagic:            "ntfs",
	unix.TMPFS_MAGIC:       "tmpfs",
}

func filesystemName(path string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "", fmt.Errorf("statfs %s: %w", path, err)
	}
	if name, ok := fsTypeNames[int64(st.Type)]; ok {
		return name, nil
	}
	return fmt.Sprintf("unknown(0x%x)", st.Type), nil
}

func availableBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}
