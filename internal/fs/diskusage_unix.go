//go:build unix

package fs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// diskUsage reads used and available bytes for the filesystem holding dir.
func diskUsage(dir string) (uint64, uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	bsize := uint64(st.Bsize)
	used := (st.Blocks - st.Bfree) * bsize
	available := st.Bavail * bsize
	return used, available, nil
}
