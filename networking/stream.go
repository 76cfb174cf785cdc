package networking

import (
	"errors"
	"io"
	"net"
	"time"

	"ftcp/constants"
	"ftcp/protocol"
)

// Stream wraps a connected socket with length-preserving blocking reads
// and writes framed as FTCP messages. Every operation arms the socket
// deadline, so a stalled peer surfaces as ErrTimeout rather than hanging
// the transfer forever.
type Stream struct {
	conn    net.Conn
	timeout time.Duration
}

// NewStream wraps conn with the default 60 second operation deadline.
func NewStream(conn net.Conn) *Stream {
	return &Stream{conn: conn, timeout: constants.TIMEOUT_SECONDS * time.Second}
}

// Close closes the underlying socket.
func (s *Stream) Close() error {
	return s.conn.Close()
}

// RemoteAddr returns the peer address for logging.
func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// SendAll writes all of buf or fails. Timeouts map to ErrTimeout,
// everything else to ErrSend.
func (s *Stream) SendAll(buf []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	for len(buf) > 0 {
		n, err := s.conn.Write(buf)
		if err != nil {
			return protocol.WrapErr(classifySend(err), err)
		}
		buf = buf[n:]
	}
	return nil
}

// RecvAll reads exactly len(buf) bytes or fails. A closed peer surfaces
// as ErrRecv, timeouts as ErrTimeout.
func (s *Stream) RecvAll(buf []byte) error {
	s.conn.SetReadDeadline(time.Now().Add(s.timeout))
	if _, err := io.ReadFull(s.conn, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return protocol.Errf(protocol.ErrRecv, "connection closed by peer")
		}
		return protocol.WrapErr(classifyRecv(err), err)
	}
	return nil
}

// SendMessage frames payload under a fresh header carrying msgType and seq
// and writes the whole message.
func (s *Stream) SendMessage(msgType uint8, seq uint64, payload []byte) error {
	hdr := protocol.NewHeader(msgType, seq, uint64(len(payload)))
	out := append(protocol.EncodeHeader(hdr), payload...)
	return s.SendAll(out)
}

// RecvMessage reads one message off the stream: a validated header, then
// the payload iff its size is within maxPayload.
func (s *Stream) RecvMessage(maxPayload uint64) (protocol.Header, []byte, error) {
	buf := make([]byte, constants.HEADER_SIZE)
	if err := s.RecvAll(buf); err != nil {
		return protocol.Header{}, nil, err
	}
	hdr := protocol.DecodeHeader(buf)
	if err := protocol.ValidateHeader(hdr); err != nil {
		return hdr, nil, err
	}
	if hdr.PayloadSize == 0 {
		return hdr, nil, nil
	}
	if hdr.PayloadSize > maxPayload {
		return hdr, nil, protocol.Errf(protocol.ErrProtocol,
			"payload size %d exceeds maximum %d", hdr.PayloadSize, maxPayload)
	}
	payload := make([]byte, hdr.PayloadSize)
	if err := s.RecvAll(payload); err != nil {
		return hdr, nil, err
	}
	return hdr, payload, nil
}

// SendError frames and sends a MSG_ERROR payload.
func (s *Stream) SendError(code protocol.ErrorCode, chunkID uint64, msg string, seq uint64) error {
	payload := protocol.EncodeErrorMessage(protocol.ErrorMessage{
		Code:    code,
		ChunkID: chunkID,
		Message: msg,
	})
	return s.SendMessage(protocol.MSG_ERROR, seq, payload)
}

// Transient reports whether err is worth retrying within a chunk attempt.
// Timeouts are; hard socket and protocol errors are not.
func Transient(err error) bool {
	return protocol.CodeOf(err) == protocol.ErrTimeout
}

func classifySend(err error) protocol.ErrorCode {
	if isTimeout(err) {
		return protocol.ErrTimeout
	}
	return protocol.ErrSend
}

func classifyRecv(err error) protocol.ErrorCode {
	if isTimeout(err) {
		return protocol.ErrTimeout
	}
	return protocol.ErrRecv
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
