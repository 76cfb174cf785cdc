package protocol

import "hash/crc32"

// Crc32 computes the IEEE CRC-32 (the zlib/Ethernet polynomial) of data.
// Senders and receivers must agree byte for byte, so this is always the
// reflected 0xEDB88320 table with init and final XOR of 0xFFFFFFFF.
func Crc32(data []byte) uint32 {
	return crc32.Checksum(data, crc32.IEEETable)
}
