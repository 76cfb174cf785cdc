package sender

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"ftcp/constants"
	"ftcp/networking"
	"ftcp/protocol"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func streamPair(t *testing.T) (*networking.Stream, *networking.Stream) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	dialed, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	accepted, err := l.Accept()
	require.NoError(t, err)

	c, s := networking.NewStream(dialed), networking.NewStream(accepted)
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, s
}

func tempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

// answerHandshake plays the server half of the handshake and returns the
// received request header.
func answerHandshake(t *testing.T, server *networking.Stream) protocol.Header {
	t.Helper()
	hdr, payload, err := server.RecvMessage(constants.HANDSHAKE_SIZE)
	require.NoError(t, err)
	require.Equal(t, uint8(protocol.MSG_HANDSHAKE_REQ), hdr.MsgType)
	require.Equal(t, uint64(0), hdr.SequenceNum)

	req, err := protocol.DecodeHandshake(payload)
	require.NoError(t, err)
	require.Equal(t, uint8(constants.PROTOCOL_VERSION), req.Version)

	ack := protocol.Handshake{Version: constants.PROTOCOL_VERSION}
	require.NoError(t, server.SendMessage(protocol.MSG_HANDSHAKE_ACK, hdr.SequenceNum+1,
		protocol.EncodeHandshake(ack)))
	return hdr
}

func acceptFileInfo(t *testing.T, server *networking.Stream) protocol.FileInfo {
	t.Helper()
	hdr, payload, err := server.RecvMessage(constants.FILE_INFO_SIZE)
	require.NoError(t, err)
	require.Equal(t, uint8(protocol.MSG_FILE_INFO), hdr.MsgType)
	require.Equal(t, uint64(2), hdr.SequenceNum)

	info, err := protocol.DecodeFileInfo(payload)
	require.NoError(t, err)

	require.NoError(t, server.SendMessage(protocol.MSG_FILE_ACK, 2,
		protocol.EncodeFileAck(protocol.FileAck{Status: 0})))
	return info
}

func recvChunk(t *testing.T, server *networking.Stream, maxChunk uint32) (protocol.Header, protocol.ChunkHeader, []byte) {
	t.Helper()
	hdr, payload, err := server.RecvMessage(constants.CHUNK_HEADER_SIZE + uint64(maxChunk))
	require.NoError(t, err)
	require.Equal(t, uint8(protocol.MSG_CHUNK_DATA), hdr.MsgType)

	chunkHdr, err := protocol.DecodeChunkHeader(payload)
	require.NoError(t, err)
	return hdr, chunkHdr, payload[constants.CHUNK_HEADER_SIZE:]
}

func ackChunk(t *testing.T, server *networking.Stream, chunkID uint64, status uint8, seq uint64) {
	t.Helper()
	ack := protocol.ChunkAck{ChunkID: chunkID, Status: status}
	require.NoError(t, server.SendMessage(protocol.MSG_CHUNK_ACK, seq, protocol.EncodeChunkAck(ack)))
}

func TestSendHappyPath(t *testing.T) {
	content := []byte("0123456789") // 3 chunks of 4: 4+4+2
	path := tempFile(t, content)
	client, server := streamPair(t)

	done := make(chan error, 1)
	go func() {
		done <- Send(client, path, 4, zerolog.Nop())
	}()

	answerHandshake(t, server)
	info := acceptFileInfo(t, server)
	require.Equal(t, uint64(10), info.FileSize)
	require.Equal(t, uint64(3), info.TotalChunks)
	require.Equal(t, uint32(4), info.ChunkSize)
	require.Equal(t, "payload.bin", info.Filename)
	require.Equal(t, [constants.SHA256_SIZE]byte{}, info.FileChecksum, "file checksum stays zero")

	var got []byte
	seq := uint64(3)
	for id := uint64(0); id < 3; id++ {
		hdr, chunkHdr, data := recvChunk(t, server, 4)
		require.Equal(t, seq, hdr.SequenceNum)
		require.Equal(t, id, chunkHdr.ChunkID)
		require.Equal(t, id*4, chunkHdr.ChunkOffset)
		require.Equal(t, protocol.Crc32(data), chunkHdr.ChunkCrc32)
		require.Equal(t, hdr.PayloadSize, uint64(constants.CHUNK_HEADER_SIZE+len(data)))
		got = append(got, data...)
		ackChunk(t, server, id, protocol.CHUNK_OK, seq)
		seq++
	}
	require.Equal(t, content, got)
	require.NoError(t, <-done)
}

func TestSendRetriesOnRetransmitRequest(t *testing.T) {
	content := []byte("abcd")
	path := tempFile(t, content)
	client, server := streamPair(t)

	done := make(chan error, 1)
	go func() {
		done <- Send(client, path, 4, zerolog.Nop())
	}()

	answerHandshake(t, server)
	acceptFileInfo(t, server)

	first, chunkHdr, _ := recvChunk(t, server, 4)
	require.Equal(t, uint64(0), chunkHdr.ChunkID)
	ackChunk(t, server, 0, protocol.CHUNK_RETRY, 3)

	// The retransmit carries the same chunk id under a fresh sequence number.
	second, chunkHdr, data := recvChunk(t, server, 4)
	require.Equal(t, uint64(0), chunkHdr.ChunkID)
	require.Greater(t, second.SequenceNum, first.SequenceNum)
	require.Equal(t, content, data)
	ackChunk(t, server, 0, protocol.CHUNK_OK, 4)

	require.NoError(t, <-done)
}

func TestSendAbortsAfterRetryBudget(t *testing.T) {
	path := tempFile(t, []byte("abcd"))
	client, server := streamPair(t)

	done := make(chan error, 1)
	go func() {
		done <- Send(client, path, 4, zerolog.Nop())
	}()

	answerHandshake(t, server)
	acceptFileInfo(t, server)

	for i := 0; i < constants.MAX_RETRIES; i++ {
		_, _, _ = recvChunk(t, server, 4)
		ackChunk(t, server, 0, protocol.CHUNK_RETRY, uint64(3+i))
	}

	err := <-done
	require.Error(t, err)
	require.Equal(t, protocol.ErrChecksum, protocol.CodeOf(err))
}

func TestSendSurfacesFileInfoRejection(t *testing.T) {
	path := tempFile(t, []byte("abcd"))
	client, server := streamPair(t)

	done := make(chan error, 1)
	go func() {
		done <- Send(client, path, 4, zerolog.Nop())
	}()

	answerHandshake(t, server)

	_, _, err := server.RecvMessage(constants.FILE_INFO_SIZE)
	require.NoError(t, err)
	require.NoError(t, server.SendError(protocol.ErrDiskFull, 0, "insufficient disk space", 2))

	sendErr := <-done
	require.Error(t, sendErr)
	require.Equal(t, protocol.ErrDiskFull, protocol.CodeOf(sendErr))
}

func TestSendRejectsWrongHandshakeReply(t *testing.T) {
	path := tempFile(t, []byte("abcd"))
	client, server := streamPair(t)

	done := make(chan error, 1)
	go func() {
		done <- Send(client, path, 4, zerolog.Nop())
	}()

	hdr, _, err := server.RecvMessage(constants.HANDSHAKE_SIZE)
	require.NoError(t, err)

	// Ack claiming a version we do not speak.
	ack := protocol.Handshake{Version: 9}
	require.NoError(t, server.SendMessage(protocol.MSG_HANDSHAKE_ACK, hdr.SequenceNum+1,
		protocol.EncodeHandshake(ack)))

	sendErr := <-done
	require.Error(t, sendErr)
	require.Equal(t, protocol.ErrVersion, protocol.CodeOf(sendErr))
}

func TestSendRefusesDirectory(t *testing.T) {
	client, _ := streamPair(t)
	err := Send(client, t.TempDir(), 4, zerolog.Nop())
	require.Error(t, err)
	require.Equal(t, protocol.ErrInvalidArg, protocol.CodeOf(err))
}
