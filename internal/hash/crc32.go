package hash

import (
	"encoding/base64"
	"encoding/binary"
	"hash"
	"hash/crc32"
)

var (
	ieeeTable       = crc32.MakeTable(crc32.IEEE)
	castagnoliTable = crc32.MakeTable(crc32.Castagnoli)
)

// CRC32 computes the CRC32-IEEE checksum of data.
func CRC32(data []byte) uint32 {
	return crc32.Checksum(data, ieeeTable)
}

// NewCRC32 returns a streaming CRC32-IEEE hash.
func NewCRC32() hash.Hash32 {
	return crc32.New(ieeeTable)
}

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// CRC32CBase64 returns CRC32C of data as base64 of its big-endian bytes.
func CRC32CBase64(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}
