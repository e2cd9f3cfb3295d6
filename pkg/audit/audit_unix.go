//go:build !windows

package audit

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MinAuditDiskSpace is the minimum free space required before an audit
// write is attempted.
const MinAuditDiskSpace = 1024 * 1024 // 1 MB

// checkDiskSpace verifies there is room for the next audit write.
func (l *Logger) checkDiskSpace() error {
	var stat unix.Statfs_t
	if err := unix.Statfs(l.dir, &stat); err != nil {
		// Directory may not exist yet; check its parent and proceed on
		// failure rather than blocking the vault operation.
		if err := unix.Statfs(filepath.Dir(l.dir), &stat); err != nil {
			return nil
		}
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < MinAuditDiskSpace {
		return fmt.Errorf("audit: insufficient disk space: %d bytes available, need %d",
			available, MinAuditDiskSpace)
	}
	return nil
}
