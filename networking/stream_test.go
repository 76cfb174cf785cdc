package networking

import (
	"net"
	"testing"

	"ftcp/constants"
	"ftcp/protocol"

	"github.com/stretchr/testify/require"
)

// streamPair connects two Streams over loopback TCP.
func streamPair(t *testing.T) (*Stream, *Stream) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	dialed, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	accepted, err := l.Accept()
	require.NoError(t, err)

	a, b := NewStream(dialed), NewStream(accepted)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestSendRecvMessage(t *testing.T) {
	client, server := streamPair(t)

	payload := protocol.EncodeHandshake(protocol.Handshake{Version: constants.PROTOCOL_VERSION})
	require.NoError(t, client.SendMessage(protocol.MSG_HANDSHAKE_REQ, 0, payload))

	hdr, got, err := server.RecvMessage(constants.HANDSHAKE_SIZE)
	require.NoError(t, err)
	require.Equal(t, uint8(protocol.MSG_HANDSHAKE_REQ), hdr.MsgType)
	require.Equal(t, uint64(0), hdr.SequenceNum)
	require.Equal(t, uint64(constants.HANDSHAKE_SIZE), hdr.PayloadSize)
	require.Equal(t, payload, got)
}

func TestRecvMessageEmptyPayload(t *testing.T) {
	client, server := streamPair(t)

	require.NoError(t, client.SendMessage(protocol.MSG_FILE_ACK, 3, nil))

	hdr, payload, err := server.RecvMessage(constants.FILE_ACK_SIZE)
	require.NoError(t, err)
	require.Equal(t, uint64(0), hdr.PayloadSize)
	require.Nil(t, payload)
}

func TestRecvMessageRejectsOversizedPayload(t *testing.T) {
	client, server := streamPair(t)

	big := make([]byte, 128)
	require.NoError(t, client.SendMessage(protocol.MSG_CHUNK_ACK, 5, big))

	_, _, err := server.RecvMessage(constants.CHUNK_ACK_SIZE)
	require.Error(t, err)
	require.Equal(t, protocol.ErrProtocol, protocol.CodeOf(err))
}

func TestRecvMessageRejectsGarbageHeader(t *testing.T) {
	client, server := streamPair(t)

	garbage := make([]byte, constants.HEADER_SIZE)
	for i := range garbage {
		garbage[i] = 0x55
	}
	require.NoError(t, client.SendAll(garbage))

	_, _, err := server.RecvMessage(constants.HANDSHAKE_SIZE)
	require.Error(t, err)
	require.Equal(t, protocol.ErrProtocol, protocol.CodeOf(err))
}

func TestRecvAllReportsPeerClose(t *testing.T) {
	client, server := streamPair(t)
	require.NoError(t, client.Close())

	buf := make([]byte, 8)
	err := server.RecvAll(buf)
	require.Error(t, err)
	require.Equal(t, protocol.ErrRecv, protocol.CodeOf(err))
}

func TestTransientClassification(t *testing.T) {
	require.True(t, Transient(protocol.Errf(protocol.ErrTimeout, "deadline")))
	require.False(t, Transient(protocol.Errf(protocol.ErrRecv, "closed")))
	require.False(t, Transient(protocol.Errf(protocol.ErrProtocol, "bad header")))
}
