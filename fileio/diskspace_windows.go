//go:build windows

package fileio

import (
	"golang.org/x/sys/windows"

	"ftcp/protocol"
)

// CheckDiskSpace verifies the volume holding path has at least required
// bytes available to the calling user.
func CheckDiskSpace(path string, required uint64) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return protocol.WrapErr(protocol.ErrDiskFull, err)
	}
	var available, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &available, &total, &free); err != nil {
		return protocol.WrapErr(protocol.ErrDiskFull, err)
	}
	if available < required {
		return protocol.Errf(protocol.ErrDiskFull,
			"need %d bytes, have %d", required, available)
	}
	return nil
}
