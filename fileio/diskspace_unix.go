//go:build !windows

package fileio

import (
	"golang.org/x/sys/unix"

	"ftcp/protocol"
)

// CheckDiskSpace verifies the filesystem holding path has at least
// required bytes available to an unprivileged writer.
func CheckDiskSpace(path string, required uint64) error {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return protocol.WrapErr(protocol.ErrDiskFull, err)
	}
	available := st.Bavail * uint64(st.Bsize)
	if available < required {
		return protocol.Errf(protocol.ErrDiskFull,
			"need %d bytes, have %d", required, available)
	}
	return nil
}
