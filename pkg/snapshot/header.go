// Package snapshot stores archive container tables in ZSTD compressed files.
//
// A snapshot is a fixed 24 byte header followed by a single zstd frame
// holding the output of arc.LoadedTables.MarshalBinary.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/DataDog/zstd"
)

// ErrInvalidHeader reports a header that cannot describe a snapshot this
// package wrote.
var ErrInvalidHeader = errors.New("invalid snapshot header")

// Magic bytes identifying a snapshot file.
var Magic = [4]byte{'A', 'R', 'C', 'S'}

// Version is the current snapshot format version.
const Version = 1

// HeaderSize is the encoded size of a Header.
const HeaderSize = 24

// MaxLength is the largest table payload a snapshot may declare.
const MaxLength = math.MaxInt32

// maxRatio bounds Length against CompressedLength: a zstd block decodes to
// at most 128 KiB and takes at least 4 bytes.
const maxRatio = 128 << 10 / 4

// Header describes the compressed table payload that follows it.
type Header struct {
	Magic            [4]byte
	Version          uint32
	Length           uint64 // encoded tables
	CompressedLength uint64 // zstd frame
}

func newHeader(length, compressedLength int) Header {
	return Header{
		Magic:            Magic,
		Version:          Version,
		Length:           uint64(length),
		CompressedLength: uint64(compressedLength),
	}
}

// Validate rejects headers with a foreign magic or version, and sizes that
// no zstd frame of the declared length could have.
func (h *Header) Validate() error {
	switch {
	case h.Magic != Magic:
		return fmt.Errorf("magic %q: %w", h.Magic[:], ErrInvalidHeader)
	case h.Version != Version:
		return fmt.Errorf("version %d: %w", h.Version, ErrInvalidHeader)
	case h.Length == 0 || h.CompressedLength == 0:
		return fmt.Errorf("empty payload (%d/%d bytes): %w", h.Length, h.CompressedLength, ErrInvalidHeader)
	case h.Length > MaxLength:
		return fmt.Errorf("length %d exceeds %d: %w", h.Length, MaxLength, ErrInvalidHeader)
	case h.CompressedLength > uint64(zstd.CompressBound(int(h.Length))):
		return fmt.Errorf("compressed length %d exceeds bound for %d bytes: %w",
			h.CompressedLength, h.Length, ErrInvalidHeader)
	case (h.Length+maxRatio-1)/maxRatio > h.CompressedLength:
		return fmt.Errorf("length %d cannot decode from %d bytes: %w",
			h.Length, h.CompressedLength, ErrInvalidHeader)
	}
	return nil
}

// MarshalBinary returns the little-endian encoding of h.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, HeaderSize)
	buf = append(buf, h.Magic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = binary.LittleEndian.AppendUint64(buf, h.Length)
	buf = binary.LittleEndian.AppendUint64(buf, h.CompressedLength)
	return buf, nil
}

// UnmarshalBinary decodes data into h and validates the result.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%d of %d header bytes: %w", len(data), HeaderSize, ErrInvalidHeader)
	}
	h.Magic = [4]byte(data[0:4])
	h.Version = binary.LittleEndian.Uint32(data[4:8])
	h.Length = binary.LittleEndian.Uint64(data[8:16])
	h.CompressedLength = binary.LittleEndian.Uint64(data[16:24])
	return h.Validate()
}
