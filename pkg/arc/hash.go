package arc

import (
	"fmt"
	"hash/crc32"
	"strings"
)

// Hash40 identifies a path: the CRC32 of the lowercase path in the low 32
// bits and its length in the next 8.
type Hash40 uint64

const hash40Mask = 1<<40 - 1

// HashPath returns the Hash40 of path.
func HashPath(path string) Hash40 {
	lower := strings.ToLower(path)
	return Hash40(uint64(crc32.ChecksumIEEE([]byte(lower))) | uint64(len(lower)&0xFF)<<32)
}

// String formats the hash as 10 hex digits.
func (h Hash40) String() string {
	return fmt.Sprintf("0x%010x", uint64(h))
}

// HashToIndex packs a Hash40 with a 24-bit table index.
type HashToIndex uint64

// NewHashToIndex packs hash and index.
func NewHashToIndex(hash Hash40, index uint32) HashToIndex {
	return HashToIndex(uint64(hash)&hash40Mask | uint64(index&0xFFFFFF)<<40)
}

// Hash returns the packed hash.
func (h HashToIndex) Hash() Hash40 {
	return Hash40(uint64(h) & hash40Mask)
}

// Index returns the packed index.
func (h HashToIndex) Index() uint32 {
	return uint32(uint64(h) >> 40)
}

// WithIndex returns h pointing at index.
func (h HashToIndex) WithIndex(index uint32) HashToIndex {
	return NewHashToIndex(h.Hash(), index)
}
