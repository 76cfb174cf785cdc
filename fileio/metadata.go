package fileio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"ftcp/protocol"
)

// Metadata is the sender-side view of the file to transfer.
type Metadata struct {
	Filename  string // base name only
	FileSize  uint64
	FileMode  uint32
	Timestamp uint64 // mtime, seconds since Unix epoch
}

// Stat collects transfer metadata for path. Only regular files qualify.
func Stat(path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metadata{}, protocol.WrapErr(protocol.ErrFileNotFound, err)
		}
		if errors.Is(err, fs.ErrPermission) {
			return Metadata{}, protocol.WrapErr(protocol.ErrPermission, err)
		}
		return Metadata{}, protocol.WrapErr(protocol.ErrFileOpen, err)
	}
	if !info.Mode().IsRegular() {
		return Metadata{}, protocol.Errf(protocol.ErrInvalidArg, "not a regular file: %s", path)
	}
	return Metadata{
		Filename:  filepath.Base(path),
		FileSize:  uint64(info.Size()),
		FileMode:  uint32(info.Mode().Perm()),
		Timestamp: uint64(info.ModTime().Unix()),
	}, nil
}
