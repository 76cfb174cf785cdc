// Package sender drives the client side of a transfer: handshake, file
// metadata exchange, then the lock-step chunk pipeline. One chunk is in
// flight at a time; the next is not read until the previous is acked.
package sender

import (
	"time"

	"ftcp/constants"
	"ftcp/fileio"
	"ftcp/networking"
	"ftcp/protocol"

	"github.com/rs/zerolog"
)

// Send transfers the file at path over an established stream. chunkSize
// is the fixed chunk length announced in the file info; the final chunk
// may be shorter.
func Send(stream *networking.Stream, path string, chunkSize uint32, log zerolog.Logger) error {
	meta, err := fileio.Stat(path)
	if err != nil {
		return err
	}
	log.Info().Str("file", meta.Filename).Uint64("size", meta.FileSize).Msg("file ready")

	reader, err := fileio.OpenChunkReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := handshake(stream); err != nil {
		return err
	}
	log.Info().Msg("handshake ok")

	info := protocol.FileInfo{
		FilenameLen:  uint16(len(meta.Filename)),
		Filename:     meta.Filename,
		FileSize:     meta.FileSize,
		TotalChunks:  totalChunks(meta.FileSize, chunkSize),
		ChunkSize:    chunkSize,
		ChecksumType: protocol.CHECKSUM_SHA256,
		FileMode:     meta.FileMode,
		Timestamp:    meta.Timestamp,
	}
	log.Info().Uint64("chunks", info.TotalChunks).Uint32("chunk_size", chunkSize).Msg("sending file info")

	// The handshake request went out at sequence 0; everything after the
	// file info increments by one per message, retransmits included.
	seq := uint64(2)
	if err := stream.SendMessage(protocol.MSG_FILE_INFO, seq, protocol.EncodeFileInfo(info)); err != nil {
		return err
	}
	seq++

	if err := awaitFileAck(stream); err != nil {
		return err
	}

	buf := make([]byte, chunkSize)
	begin := time.Now()
	var sentBytes uint64

	for chunkID := uint64(0); chunkID < info.TotalChunks; chunkID++ {
		offset := chunkID * uint64(chunkSize)
		want := uint64(chunkSize)
		if offset+want > info.FileSize {
			want = info.FileSize - offset
		}

		n, err := reader.ReadChunk(buf[:want], offset)
		if err != nil {
			return err
		}
		if uint64(n) != want {
			return protocol.Errf(protocol.ErrFileRead,
				"chunk %d short read: %d of %d bytes", chunkID, n, want)
		}

		seq, err = sendChunk(stream, chunkID, offset, buf[:want], seq, log)
		if err != nil {
			return err
		}
		sentBytes += want

		if progressDue(chunkID+1, info.TotalChunks) {
			elapsed := time.Since(begin)
			log.Info().
				Float64("percent", float64(chunkID+1)/float64(info.TotalChunks)*100).
				Uint64("chunks", chunkID+1).
				Float64("mbps", rateMBps(sentBytes, elapsed)).
				Msg("progress")
		}
	}

	elapsed := time.Since(begin)
	log.Info().Uint64("bytes", sentBytes).
		Dur("elapsed", elapsed).
		Float64("mbps", rateMBps(sentBytes, elapsed)).
		Msg("transfer complete")
	return nil
}

// handshake sends the version announcement at sequence 0 and requires a
// matching acknowledgement.
func handshake(stream *networking.Stream) error {
	req := protocol.Handshake{Version: constants.PROTOCOL_VERSION}
	if err := stream.SendMessage(protocol.MSG_HANDSHAKE_REQ, 0, protocol.EncodeHandshake(req)); err != nil {
		return err
	}

	hdr, payload, err := stream.RecvMessage(constants.ERROR_MSG_SIZE)
	if err != nil {
		return err
	}
	if hdr.MsgType == protocol.MSG_ERROR {
		em, err := protocol.DecodeErrorMessage(payload)
		if err != nil {
			return err
		}
		return protocol.Errf(em.Code, "server refused handshake: %s", em.Message)
	}
	if hdr.MsgType != protocol.MSG_HANDSHAKE_ACK {
		return protocol.Errf(protocol.ErrProtocol,
			"expected HANDSHAKE_ACK, got message type 0x%02X", hdr.MsgType)
	}
	ack, err := protocol.DecodeHandshake(payload)
	if err != nil {
		return err
	}
	if ack.Version != constants.PROTOCOL_VERSION {
		return protocol.Errf(protocol.ErrVersion,
			"server speaks version %d", ack.Version)
	}
	return nil
}

// awaitFileAck reads the single response to the file info: either the go
// ahead or a rejection carrying the peer's error code.
func awaitFileAck(stream *networking.Stream) error {
	hdr, payload, err := stream.RecvMessage(constants.ERROR_MSG_SIZE)
	if err != nil {
		return err
	}
	switch hdr.MsgType {
	case protocol.MSG_ERROR:
		em, err := protocol.DecodeErrorMessage(payload)
		if err != nil {
			return err
		}
		return protocol.Errf(em.Code, "server rejected file: %s", em.Message)
	case protocol.MSG_FILE_ACK:
		ack, err := protocol.DecodeFileAck(payload)
		if err != nil {
			return err
		}
		if ack.Status != 0 {
			return protocol.Errf(protocol.ErrorCode(ack.ErrorCode), "server not ready")
		}
		return nil
	default:
		return protocol.Errf(protocol.ErrProtocol,
			"expected FILE_ACK, got message type 0x%02X", hdr.MsgType)
	}
}

// sendChunk pushes one chunk and waits for its ack, retrying within the
// per-chunk budget. It returns the advanced sequence counter; every
// attempt consumes a fresh sequence number.
func sendChunk(stream *networking.Stream, chunkID, offset uint64, data []byte, seq uint64, log zerolog.Logger) (uint64, error) {
	chunkHdr := protocol.ChunkHeader{
		ChunkID:     chunkID,
		ChunkOffset: offset,
		ChunkSize:   uint32(len(data)),
		ChunkCrc32:  protocol.Crc32(data),
	}
	payload := append(protocol.EncodeChunkHeader(chunkHdr), data...)

	for retries := 0; ; {
		err := attemptChunk(stream, chunkID, payload, seq, log)
		seq++
		if err == nil {
			return seq, nil
		}
		if !retryable(err) {
			return seq, err
		}
		retries++
		if retries >= constants.MAX_RETRIES {
			log.Error().Uint64("chunk", chunkID).Int("retries", retries).Msg("retry budget exhausted")
			return seq, err
		}
		log.Warn().Err(err).Uint64("chunk", chunkID).
			Int("attempt", retries+1).Int("max", constants.MAX_RETRIES).
			Msg("retrying chunk")
	}
}

// attemptChunk is a single send and ack round trip.
func attemptChunk(stream *networking.Stream, chunkID uint64, payload []byte, seq uint64, log zerolog.Logger) error {
	if err := stream.SendMessage(protocol.MSG_CHUNK_DATA, seq, payload); err != nil {
		return err
	}

	hdr, ackPayload, err := stream.RecvMessage(constants.ERROR_MSG_SIZE)
	if err != nil {
		return err
	}
	switch hdr.MsgType {
	case protocol.MSG_CHUNK_ACK:
	case protocol.MSG_ERROR:
		em, err := protocol.DecodeErrorMessage(ackPayload)
		if err != nil {
			return err
		}
		return protocol.Errf(em.Code, "server aborted at chunk %d: %s", em.ChunkID, em.Message)
	default:
		return protocol.Errf(protocol.ErrProtocol,
			"expected CHUNK_ACK, got message type 0x%02X", hdr.MsgType)
	}

	ack, err := protocol.DecodeChunkAck(ackPayload)
	if err != nil {
		return err
	}
	if ack.ChunkID != chunkID {
		// The protocol is strictly lock-step, so a mismatched id is a bug
		// signal on one side but the ack still answers the current chunk.
		log.Warn().Uint64("acked", ack.ChunkID).Uint64("expected", chunkID).
			Msg("ack chunk id mismatch")
	}
	if ack.Status != protocol.CHUNK_OK {
		return protocol.Errf(protocol.ErrChecksum,
			"server requested retransmit of chunk %d", chunkID)
	}
	return nil
}

// retryable reports whether a failed attempt counts against the chunk
// retry budget instead of aborting the transfer. Retransmit requests and
// timeouts do; hard socket, protocol and peer-reported errors do not.
func retryable(err error) bool {
	return protocol.CodeOf(err) == protocol.ErrChecksum || networking.Transient(err)
}

func totalChunks(fileSize uint64, chunkSize uint32) uint64 {
	return (fileSize + uint64(chunkSize) - 1) / uint64(chunkSize)
}

func progressDue(sent, total uint64) bool {
	return sent%(total/20+1) == 0 || sent%100 == 0
}

func rateMBps(bytes uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds() / 1e6
}
