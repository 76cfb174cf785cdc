package protocol

import (
	"encoding/binary"

	"ftcp/constants"
)

// Header is the fixed 32-byte prefix of every wire message.
// All integer fields are big-endian on the wire:
//
//	0  ..3   Magic       u32  0x46544350 "FTCP"
//	4        Version     u8
//	5        MsgType     u8
//	6  ..7   Flags       u16  reserved, zero
//	8  ..15  SequenceNum u64
//	16 ..23  PayloadSize u64
//	24 ..27  Checksum    u32  CRC-32 of bytes 0..23 with this slot zeroed
//	28 ..31  Reserved    u32  zero
type Header struct {
	Magic       uint32
	Version     uint8
	MsgType     uint8
	Flags       uint16
	SequenceNum uint64
	PayloadSize uint64
	Checksum    uint32
	Reserved    uint32
}

// NewHeader builds a header for an outbound message. The checksum is
// filled in during encoding.
func NewHeader(msgType uint8, seq, payloadSize uint64) Header {
	return Header{
		Magic:       constants.MAGIC_NUMBER,
		Version:     constants.PROTOCOL_VERSION,
		MsgType:     msgType,
		SequenceNum: seq,
		PayloadSize: payloadSize,
	}
}

// EncodeHeader serializes h into its 32-byte wire form, computing the
// checksum over the first 24 bytes.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, constants.HEADER_SIZE)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.MsgType
	binary.BigEndian.PutUint16(buf[6:8], h.Flags)
	binary.BigEndian.PutUint64(buf[8:16], h.SequenceNum)
	binary.BigEndian.PutUint64(buf[16:24], h.PayloadSize)
	binary.BigEndian.PutUint32(buf[24:28], Crc32(buf[:24]))
	binary.BigEndian.PutUint32(buf[28:32], h.Reserved)
	return buf
}

// DecodeHeader parses a 32-byte buffer into a Header without validating it.
func DecodeHeader(buf []byte) Header {
	return Header{
		Magic:       binary.BigEndian.Uint32(buf[0:4]),
		Version:     buf[4],
		MsgType:     buf[5],
		Flags:       binary.BigEndian.Uint16(buf[6:8]),
		SequenceNum: binary.BigEndian.Uint64(buf[8:16]),
		PayloadSize: binary.BigEndian.Uint64(buf[16:24]),
		Checksum:    binary.BigEndian.Uint32(buf[24:28]),
		Reserved:    binary.BigEndian.Uint32(buf[28:32]),
	}
}

// ValidateHeader checks magic, version, message type and the stored
// checksum against the recomputed CRC of the zeroed-checksum form.
func ValidateHeader(h Header) error {
	if h.Magic != constants.MAGIC_NUMBER {
		return Errf(ErrProtocol, "bad magic 0x%08X", h.Magic)
	}
	if h.Version != constants.PROTOCOL_VERSION {
		return Errf(ErrVersion, "protocol version %d", h.Version)
	}
	if !knownMsgType(h.MsgType) {
		return Errf(ErrInvalidMsg, "message type 0x%02X", h.MsgType)
	}
	scratch := make([]byte, 24)
	binary.BigEndian.PutUint32(scratch[0:4], h.Magic)
	scratch[4] = h.Version
	scratch[5] = h.MsgType
	binary.BigEndian.PutUint16(scratch[6:8], h.Flags)
	binary.BigEndian.PutUint64(scratch[8:16], h.SequenceNum)
	binary.BigEndian.PutUint64(scratch[16:24], h.PayloadSize)
	if crc := Crc32(scratch); crc != h.Checksum {
		return Errf(ErrProtocol, "header checksum 0x%08X, computed 0x%08X", h.Checksum, crc)
	}
	return nil
}
