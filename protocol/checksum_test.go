package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrc32KnownVectors(t *testing.T) {
	require.Equal(t, uint32(0), Crc32([]byte{}))
	require.Equal(t, uint32(0xCBF43926), Crc32([]byte("123456789")))
	require.Equal(t, uint32(0x190A55AD), Crc32(make([]byte, 32)))
}

func TestCrc32SingleBitSensitivity(t *testing.T) {
	data := []byte("chunk payload under test")
	orig := Crc32(data)
	data[3] ^= 0x01
	require.NotEqual(t, orig, Crc32(data))
}
