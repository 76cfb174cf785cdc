package fileio

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"ftcp/protocol"
)

// ChunkReader reads file content at absolute offsets, so a retransmitted
// chunk rereads exactly the bytes of the first attempt.
type ChunkReader struct {
	file *os.File
}

// OpenChunkReader opens path for reading.
func OpenChunkReader(path string) (*ChunkReader, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, protocol.WrapErr(protocol.ErrFileNotFound, err)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, protocol.WrapErr(protocol.ErrPermission, err)
		}
		return nil, protocol.WrapErr(protocol.ErrFileOpen, err)
	}
	return &ChunkReader{file: file}, nil
}

// ReadChunk fills buf from the given offset and returns the byte count.
// A short read at EOF is not an error; the caller sizes buf to the chunk.
func (r *ChunkReader) ReadChunk(buf []byte, offset uint64) (int, error) {
	n, err := r.file.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return n, protocol.WrapErr(protocol.ErrFileRead, err)
	}
	return n, nil
}

// Close releases the file handle.
func (r *ChunkReader) Close() error {
	return r.file.Close()
}
