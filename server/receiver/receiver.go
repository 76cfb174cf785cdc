// Package receiver drives the server side of a transfer: handshake,
// metadata validation, then chunk writes into a temporary file that is
// atomically promoted once every expected chunk has arrived.
package receiver

import (
	"ftcp/constants"
	"ftcp/fileio"
	"ftcp/networking"
	"ftcp/protocol"

	"github.com/rs/zerolog"
)

// Receive accepts one file over an established stream into outputDir.
// A chunk CRC mismatch requests a retransmit and keeps the connection
// alive; every other failure aborts and unlinks the temporary file.
func Receive(stream *networking.Stream, outputDir string, log zerolog.Logger) error {
	if err := handshake(stream); err != nil {
		return err
	}
	log.Info().Msg("handshake ok")

	// Own outbound sequence numbering; the handshake ack took 1.
	seq := uint64(2)

	info, err := recvFileInfo(stream)
	if err != nil {
		return err
	}
	log.Info().Str("file", info.Filename).
		Uint64("size", info.FileSize).Uint64("chunks", info.TotalChunks).
		Msg("file info received")

	name, err := fileio.SanitizeFilename(info.Filename)
	if err != nil {
		log.Error().Err(err).Msg("rejecting filename")
		stream.SendError(protocol.CodeOf(err), 0, "invalid filename", seq)
		return err
	}

	if err := fileio.CheckDiskSpace(outputDir, info.FileSize); err != nil {
		log.Error().Err(err).Msg("rejecting transfer")
		stream.SendError(protocol.ErrDiskFull, 0, "insufficient disk space", seq)
		return err
	}

	writer, err := fileio.NewTempWriter(outputDir, name)
	if err != nil {
		log.Error().Err(err).Msg("cannot create temp file")
		stream.SendError(protocol.CodeOf(err), 0, "cannot create file", seq)
		return err
	}

	if err := stream.SendMessage(protocol.MSG_FILE_ACK, seq,
		protocol.EncodeFileAck(protocol.FileAck{Status: 0})); err != nil {
		writer.Discard()
		return err
	}
	seq++

	if err := receiveChunks(stream, &seq, info, writer, log); err != nil {
		writer.Discard()
		return err
	}

	if err := writer.Finalize(); err != nil {
		log.Error().Err(err).Msg("failed to finalize file")
		return err
	}
	log.Info().Str("path", writer.FinalPath()).Uint64("bytes", info.FileSize).Msg("file received")
	return nil
}

// handshake answers the client's version announcement. The ack reuses the
// request sequence plus one. A version we do not speak is reported back
// before closing so the peer can tell rejection from a dropped link.
func handshake(stream *networking.Stream) error {
	hdr, payload, err := stream.RecvMessage(constants.HANDSHAKE_SIZE)
	if err != nil {
		return err
	}
	if hdr.MsgType != protocol.MSG_HANDSHAKE_REQ {
		return protocol.Errf(protocol.ErrProtocol,
			"expected HANDSHAKE_REQ, got message type 0x%02X", hdr.MsgType)
	}
	req, err := protocol.DecodeHandshake(payload)
	if err != nil {
		return err
	}
	if req.Version != constants.PROTOCOL_VERSION {
		verr := protocol.Errf(protocol.ErrVersion, "client speaks version %d", req.Version)
		stream.SendError(protocol.ErrVersion, 0, "unsupported protocol version", hdr.SequenceNum+1)
		return verr
	}

	ack := protocol.Handshake{Version: constants.PROTOCOL_VERSION}
	return stream.SendMessage(protocol.MSG_HANDSHAKE_ACK, hdr.SequenceNum+1,
		protocol.EncodeHandshake(ack))
}

// recvFileInfo reads exactly one file info message.
func recvFileInfo(stream *networking.Stream) (protocol.FileInfo, error) {
	hdr, payload, err := stream.RecvMessage(constants.FILE_INFO_SIZE)
	if err != nil {
		return protocol.FileInfo{}, err
	}
	if hdr.MsgType != protocol.MSG_FILE_INFO {
		return protocol.FileInfo{}, protocol.Errf(protocol.ErrProtocol,
			"expected FILE_INFO, got message type 0x%02X", hdr.MsgType)
	}
	return protocol.DecodeFileInfo(payload)
}

// receiveChunks runs the write loop until every expected chunk has been
// stored. The chunk header's offset is authoritative for placement; its
// id is echoed in the ack and checked against the offset, but is not
// compared with the receiver's own chunk count, since the sender may be
// retrying.
func receiveChunks(stream *networking.Stream, seq *uint64, info protocol.FileInfo, writer *fileio.TempWriter, log zerolog.Logger) error {
	var received, receivedBytes uint64

	for received < info.TotalChunks {
		hdr, payload, err := stream.RecvMessage(constants.CHUNK_HEADER_SIZE + uint64(info.ChunkSize))
		if err != nil {
			return err
		}
		if hdr.MsgType != protocol.MSG_CHUNK_DATA {
			return protocol.Errf(protocol.ErrProtocol,
				"expected CHUNK_DATA, got message type 0x%02X", hdr.MsgType)
		}

		chunkHdr, err := protocol.DecodeChunkHeader(payload)
		if err != nil {
			return err
		}
		data := payload[constants.CHUNK_HEADER_SIZE:]
		if err := validateChunk(hdr, chunkHdr, info, uint64(len(data))); err != nil {
			stream.SendError(protocol.ErrProtocol, chunkHdr.ChunkID, "malformed chunk", *seq)
			*seq++
			return err
		}

		if crc := protocol.Crc32(data); crc != chunkHdr.ChunkCrc32 {
			log.Warn().Uint64("chunk", chunkHdr.ChunkID).
				Uint32("expected", chunkHdr.ChunkCrc32).Uint32("computed", crc).
				Msg("chunk checksum mismatch, requesting retransmit")
			ack := protocol.ChunkAck{ChunkID: chunkHdr.ChunkID, Status: protocol.CHUNK_RETRY}
			if err := stream.SendMessage(protocol.MSG_CHUNK_ACK, *seq, protocol.EncodeChunkAck(ack)); err != nil {
				return err
			}
			*seq++
			continue
		}

		if err := writer.WriteChunk(data, chunkHdr.ChunkOffset); err != nil {
			log.Error().Err(err).Uint64("chunk", chunkHdr.ChunkID).Msg("write failed")
			stream.SendError(protocol.CodeOf(err), chunkHdr.ChunkID, "write failed", *seq)
			*seq++
			return err
		}

		ack := protocol.ChunkAck{ChunkID: chunkHdr.ChunkID, Status: protocol.CHUNK_OK}
		if err := stream.SendMessage(protocol.MSG_CHUNK_ACK, *seq, protocol.EncodeChunkAck(ack)); err != nil {
			return err
		}
		*seq++
		received++
		receivedBytes += uint64(chunkHdr.ChunkSize)

		if received%(info.TotalChunks/10+1) == 0 {
			log.Info().
				Float64("percent", float64(received)/float64(info.TotalChunks)*100).
				Uint64("chunks", received).
				Msg("progress")
		}
	}

	log.Debug().Uint64("bytes", receivedBytes).Msg("all chunks received")
	return nil
}

// validateChunk enforces the chunk invariants before any byte is trusted:
// the payload matches its declared size, the chunk fits the negotiated
// geometry and the offset is the one its id implies.
func validateChunk(hdr protocol.Header, c protocol.ChunkHeader, info protocol.FileInfo, dataLen uint64) error {
	if uint64(c.ChunkSize) != dataLen {
		return protocol.Errf(protocol.ErrProtocol,
			"chunk %d declares %d bytes, payload carries %d", c.ChunkID, c.ChunkSize, dataLen)
	}
	if hdr.PayloadSize != constants.CHUNK_HEADER_SIZE+uint64(c.ChunkSize) {
		return protocol.Errf(protocol.ErrProtocol,
			"chunk %d payload size %d", c.ChunkID, hdr.PayloadSize)
	}
	if c.ChunkSize > info.ChunkSize {
		return protocol.Errf(protocol.ErrProtocol,
			"chunk %d size %d exceeds negotiated %d", c.ChunkID, c.ChunkSize, info.ChunkSize)
	}
	if c.ChunkOffset != c.ChunkID*uint64(info.ChunkSize) {
		return protocol.Errf(protocol.ErrProtocol,
			"chunk %d offset %d off grid", c.ChunkID, c.ChunkOffset)
	}
	if c.ChunkOffset+uint64(c.ChunkSize) > info.FileSize {
		return protocol.Errf(protocol.ErrProtocol,
			"chunk %d overruns file size %d", c.ChunkID, info.FileSize)
	}
	return nil
}
