package protocol

import (
	"bytes"
	"encoding/binary"

	"ftcp/constants"
)

// Handshake is the 4-byte payload of MSG_HANDSHAKE_REQ and MSG_HANDSHAKE_ACK.
type Handshake struct {
	Version      uint8
	Capabilities uint8
	Reserved     uint16
}

// EncodeHandshake serializes h into its 4-byte wire form.
func EncodeHandshake(h Handshake) []byte {
	buf := make([]byte, constants.HANDSHAKE_SIZE)
	buf[0] = h.Version
	buf[1] = h.Capabilities
	binary.BigEndian.PutUint16(buf[2:4], h.Reserved)
	return buf
}

// DecodeHandshake parses a handshake payload.
func DecodeHandshake(buf []byte) (Handshake, error) {
	if len(buf) < constants.HANDSHAKE_SIZE {
		return Handshake{}, Errf(ErrInvalidMsg, "handshake payload %d bytes", len(buf))
	}
	return Handshake{
		Version:      buf[0],
		Capabilities: buf[1],
		Reserved:     binary.BigEndian.Uint16(buf[2:4]),
	}, nil
}

// FileInfo is the 1024-byte metadata payload of MSG_FILE_INFO.
// Wire layout, all integers big-endian:
//
//	0   ..1    FilenameLen  u16
//	2   ..257  Filename     256 bytes, UTF-8, NUL-padded
//	258 ..265  FileSize     u64
//	266 ..273  TotalChunks  u64
//	274 ..277  ChunkSize    u32
//	278        ChecksumType u8
//	279 ..310  FileChecksum 32 bytes, zero-padded
//	311 ..314  FileMode     u32
//	315 ..322  Timestamp    u64
//	323 ..     reserved, zero
type FileInfo struct {
	FilenameLen  uint16
	Filename     string
	FileSize     uint64
	TotalChunks  uint64
	ChunkSize    uint32
	ChecksumType uint8
	FileChecksum [constants.SHA256_SIZE]byte
	FileMode     uint32
	Timestamp    uint64
}

// EncodeFileInfo serializes f into its 1024-byte wire form. Filenames
// longer than 255 bytes are truncated so the NUL terminator survives.
func EncodeFileInfo(f FileInfo) []byte {
	buf := make([]byte, constants.FILE_INFO_SIZE)
	name := f.Filename
	if len(name) > constants.MAX_FILENAME_LEN-1 {
		name = name[:constants.MAX_FILENAME_LEN-1]
	}
	binary.BigEndian.PutUint16(buf[0:2], f.FilenameLen)
	copy(buf[2:2+constants.MAX_FILENAME_LEN], name)
	binary.BigEndian.PutUint64(buf[258:266], f.FileSize)
	binary.BigEndian.PutUint64(buf[266:274], f.TotalChunks)
	binary.BigEndian.PutUint32(buf[274:278], f.ChunkSize)
	buf[278] = f.ChecksumType
	copy(buf[279:311], f.FileChecksum[:])
	binary.BigEndian.PutUint32(buf[311:315], f.FileMode)
	binary.BigEndian.PutUint64(buf[315:323], f.Timestamp)
	return buf
}

// DecodeFileInfo parses a file info payload. The filename must contain a
// NUL terminator inside its 256-byte field.
func DecodeFileInfo(buf []byte) (FileInfo, error) {
	if len(buf) < constants.FILE_INFO_SIZE {
		return FileInfo{}, Errf(ErrInvalidMsg, "file info payload %d bytes", len(buf))
	}
	nameField := buf[2 : 2+constants.MAX_FILENAME_LEN]
	nul := bytes.IndexByte(nameField, 0)
	if nul < 0 {
		return FileInfo{}, Errf(ErrNameTooLong, "filename not NUL-terminated")
	}
	f := FileInfo{
		FilenameLen:  binary.BigEndian.Uint16(buf[0:2]),
		Filename:     string(nameField[:nul]),
		FileSize:     binary.BigEndian.Uint64(buf[258:266]),
		TotalChunks:  binary.BigEndian.Uint64(buf[266:274]),
		ChunkSize:    binary.BigEndian.Uint32(buf[274:278]),
		ChecksumType: buf[278],
		FileMode:     binary.BigEndian.Uint32(buf[311:315]),
		Timestamp:    binary.BigEndian.Uint64(buf[315:323]),
	}
	copy(f.FileChecksum[:], buf[279:311])
	return f, nil
}

// ChunkHeader is the 24-byte descriptor preceding the chunk bytes inside
// a MSG_CHUNK_DATA payload.
type ChunkHeader struct {
	ChunkID     uint64
	ChunkOffset uint64
	ChunkSize   uint32
	ChunkCrc32  uint32
}

// EncodeChunkHeader serializes c into its 24-byte wire form.
func EncodeChunkHeader(c ChunkHeader) []byte {
	buf := make([]byte, constants.CHUNK_HEADER_SIZE)
	binary.BigEndian.PutUint64(buf[0:8], c.ChunkID)
	binary.BigEndian.PutUint64(buf[8:16], c.ChunkOffset)
	binary.BigEndian.PutUint32(buf[16:20], c.ChunkSize)
	binary.BigEndian.PutUint32(buf[20:24], c.ChunkCrc32)
	return buf
}

// DecodeChunkHeader parses a chunk header.
func DecodeChunkHeader(buf []byte) (ChunkHeader, error) {
	if len(buf) < constants.CHUNK_HEADER_SIZE {
		return ChunkHeader{}, Errf(ErrInvalidMsg, "chunk header %d bytes", len(buf))
	}
	return ChunkHeader{
		ChunkID:     binary.BigEndian.Uint64(buf[0:8]),
		ChunkOffset: binary.BigEndian.Uint64(buf[8:16]),
		ChunkSize:   binary.BigEndian.Uint32(buf[16:20]),
		ChunkCrc32:  binary.BigEndian.Uint32(buf[20:24]),
	}, nil
}

// Chunk ack status values.
const (
	CHUNK_OK    = 0
	CHUNK_RETRY = 1
)

// ChunkAck is the 12-byte payload of MSG_CHUNK_ACK.
type ChunkAck struct {
	ChunkID uint64
	Status  uint8
}

// EncodeChunkAck serializes a into its 12-byte wire form.
func EncodeChunkAck(a ChunkAck) []byte {
	buf := make([]byte, constants.CHUNK_ACK_SIZE)
	binary.BigEndian.PutUint64(buf[0:8], a.ChunkID)
	buf[8] = a.Status
	return buf
}

// DecodeChunkAck parses a chunk ack payload.
func DecodeChunkAck(buf []byte) (ChunkAck, error) {
	if len(buf) < constants.CHUNK_ACK_SIZE {
		return ChunkAck{}, Errf(ErrInvalidMsg, "chunk ack payload %d bytes", len(buf))
	}
	return ChunkAck{
		ChunkID: binary.BigEndian.Uint64(buf[0:8]),
		Status:  buf[8],
	}, nil
}

// FileAck is the 4-byte payload of MSG_FILE_ACK.
type FileAck struct {
	Status    uint8 // 0 = ready, 1 = error
	ErrorCode uint8
}

// EncodeFileAck serializes a into its 4-byte wire form.
func EncodeFileAck(a FileAck) []byte {
	buf := make([]byte, constants.FILE_ACK_SIZE)
	buf[0] = a.Status
	buf[1] = a.ErrorCode
	return buf
}

// DecodeFileAck parses a file ack payload.
func DecodeFileAck(buf []byte) (FileAck, error) {
	if len(buf) < constants.FILE_ACK_SIZE {
		return FileAck{}, Errf(ErrInvalidMsg, "file ack payload %d bytes", len(buf))
	}
	return FileAck{Status: buf[0], ErrorCode: buf[1]}, nil
}

// ErrorMessage is the 256-byte payload of MSG_ERROR. The message text is
// NUL-terminated inside its 247-byte field.
type ErrorMessage struct {
	Code    ErrorCode
	ChunkID uint64
	Message string
}

// EncodeErrorMessage serializes e into its 256-byte wire form.
func EncodeErrorMessage(e ErrorMessage) []byte {
	buf := make([]byte, constants.ERROR_MSG_SIZE)
	buf[0] = uint8(e.Code)
	binary.BigEndian.PutUint64(buf[1:9], e.ChunkID)
	msg := e.Message
	if len(msg) > 246 {
		msg = msg[:246]
	}
	copy(buf[9:], msg)
	return buf
}

// DecodeErrorMessage parses an error payload.
func DecodeErrorMessage(buf []byte) (ErrorMessage, error) {
	if len(buf) < constants.ERROR_MSG_SIZE {
		return ErrorMessage{}, Errf(ErrInvalidMsg, "error payload %d bytes", len(buf))
	}
	text := buf[9:constants.ERROR_MSG_SIZE]
	if nul := bytes.IndexByte(text, 0); nul >= 0 {
		text = text[:nul]
	}
	return ErrorMessage{
		Code:    ErrorCode(buf[0]),
		ChunkID: binary.BigEndian.Uint64(buf[1:9]),
		Message: string(text),
	}, nil
}
