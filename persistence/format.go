package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies store files (ASCII: "DCS1").
	MagicNumber = 0x31534344

	// StructuralVersion is the layout version written by this package.
	StructuralVersion = 8
	// MinStructuralVersion is the oldest layout that can be read.
	// Version 7 files carry no dataset digests.
	MinStructuralVersion = 7

	headerSize = 64
	footerSize = 32
)

var (
	ErrInvalidMagic = errors.New("invalid magic number")
	ErrTruncated    = errors.New("file is truncated")
)

// FileHeader is the 64-byte header at the start of every store file.
type FileHeader struct {
	Magic             uint32 // 0x31534344 ("DCS1")
	StructuralVersion uint32
	Flags             uint32
	DatasetCount      uint32
	CreatedUnixNano   int64
	Reserved          [40]byte
}

// Footer is the 32-byte trailer locating the directory.
type Footer struct {
	DirOffset      uint64
	DirLength      uint64
	DirChecksum    uint32 // CRC32 of the directory block
	DirCodec       uint8  // codec.Codec ID
	DirCompression uint8  // Compression of the directory block
	Padding        [2]byte
	Reserved       uint32
	Magic          uint32
}

func encodeFixed(v any, size int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(size)
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	if buf.Len() != size {
		return nil, fmt.Errorf("encoded %T is %d bytes, want %d", v, buf.Len(), size)
	}
	return buf.Bytes(), nil
}

func decodeFixed(data []byte, v any) error {
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, v)
}

// MarshalBinary encodes the header.
func (h *FileHeader) MarshalBinary() ([]byte, error) { return encodeFixed(h, headerSize) }

// UnmarshalBinary decodes and checks the magic number.
func (h *FileHeader) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return ErrTruncated
	}
	if err := decodeFixed(data[:headerSize], h); err != nil {
		return err
	}
	if h.Magic != MagicNumber {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	return nil
}

// MarshalBinary encodes the footer.
func (f *Footer) MarshalBinary() ([]byte, error) { return encodeFixed(f, footerSize) }

// UnmarshalBinary decodes and checks the magic number.
func (f *Footer) UnmarshalBinary(data []byte) error {
	if len(data) < footerSize {
		return ErrTruncated
	}
	if err := decodeFixed(data[:footerSize], f); err != nil {
		return err
	}
	if f.Magic != MagicNumber {
		return fmt.Errorf("%w: footer got 0x%08x", ErrInvalidMagic, f.Magic)
	}
	return nil
}
