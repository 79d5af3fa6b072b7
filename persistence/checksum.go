package persistence

import (
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"

	crc "github.com/hupe1980/dcstore/internal/hash"
)

// Two integrity checks protect a store file:
//
//   - CRC32 (IEEE) over the directory block, checked on every open.
//   - BLAKE3 over each uncompressed dataset payload, checked on every
//     dataset read (structural version 8 and later).

// CalculateChecksum calculates CRC32 checksum of data.
func CalculateChecksum(data []byte) uint32 {
	return crc.CRC32(data)
}

// ChecksumWriter wraps an io.Writer and computes a running CRC32 checksum.
type ChecksumWriter struct {
	w    io.Writer
	hash hash.Hash32
}

// NewChecksumWriter creates a new checksumming writer.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{
		w:    w,
		hash: crc.NewCRC32(),
	}
}

// Write implements io.Writer.
func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	if _, err := cw.hash.Write(p); err != nil {
		return 0, err
	}
	return cw.w.Write(p)
}

// Sum returns the current checksum value.
func (cw *ChecksumWriter) Sum() uint32 {
	return cw.hash.Sum32()
}

// Reset resets the checksum to initial state.
func (cw *ChecksumWriter) Reset() {
	cw.hash.Reset()
}

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// DigestMismatchError is returned when a dataset payload does not match its
// recorded BLAKE3 digest.
type DigestMismatchError struct {
	Dataset string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("dataset %q: digest mismatch", e.Dataset)
}

// Digest returns the BLAKE3-256 digest of payload.
func Digest(payload []byte) []byte {
	sum := blake3.Sum256(payload)
	return sum[:]
}
