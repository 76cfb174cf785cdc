package fileio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"ftcp/protocol"
)

// TempWriter writes received chunks into a hidden temporary sibling of the
// final file and promotes it with an atomic rename once the transfer is
// complete. On any failure the temporary is unlinked, so the output
// directory never holds a partial file under its final name.
type TempWriter struct {
	file      *os.File
	tempPath  string
	finalPath string
}

// NewTempWriter creates ".<name>.tmp" in dir for writing.
func NewTempWriter(dir, name string) (*TempWriter, error) {
	tempPath := filepath.Join(dir, "."+name+".tmp")
	file, err := os.Create(tempPath)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, protocol.WrapErr(protocol.ErrPermission, err)
		}
		return nil, protocol.WrapErr(protocol.ErrFileOpen, err)
	}
	return &TempWriter{
		file:      file,
		tempPath:  tempPath,
		finalPath: filepath.Join(dir, name),
	}, nil
}

// WriteChunk writes data at the given absolute offset.
func (w *TempWriter) WriteChunk(data []byte, offset uint64) error {
	if _, err := w.file.WriteAt(data, int64(offset)); err != nil {
		if strings.Contains(err.Error(), "no space") {
			return protocol.WrapErr(protocol.ErrDiskFull, err)
		}
		return protocol.WrapErr(protocol.ErrFileWrite, err)
	}
	return nil
}

// Finalize closes the temporary and renames it to its final path. Rename
// is atomic within a filesystem on Unix; where the target blocks the
// rename it is removed first, a known non-atomic window.
func (w *TempWriter) Finalize() error {
	if err := w.file.Close(); err != nil {
		os.Remove(w.tempPath)
		return protocol.WrapErr(protocol.ErrFileWrite, err)
	}
	if runtime.GOOS == "windows" {
		if _, err := os.Stat(w.finalPath); err == nil {
			os.Remove(w.finalPath)
		}
	}
	if err := os.Rename(w.tempPath, w.finalPath); err != nil {
		os.Remove(w.tempPath)
		return protocol.WrapErr(protocol.ErrFileWrite, err)
	}
	return nil
}

// Discard closes and unlinks the temporary.
func (w *TempWriter) Discard() {
	w.file.Close()
	os.Remove(w.tempPath)
}

// FinalPath returns the destination the file lands at on success.
func (w *TempWriter) FinalPath() string {
	return w.finalPath
}
