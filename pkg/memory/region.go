// Package memory provides read-only views of an executable code region.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/goopsie/arcRedirect/pkg/insn"
)

// ErrUnmapped is returned for reads outside of a region.
var ErrUnmapped = errors.New("address not mapped")

// Region is an immutable view of the code between the start of the text
// segment and the start of read-only data. Addresses are absolute.
type Region struct {
	text   uint64
	rodata uint64
	code   []byte
}

// FromBytes creates a region whose first byte lives at text. The scan ends at
// rodata, which must not lie past the end of code. Trailing bytes that do not
// form a whole instruction word are ignored by the scanner.
func FromBytes(text, rodata uint64, code []byte) (*Region, error) {
	if rodata < text {
		return nil, fmt.Errorf("rodata start %#x before text start %#x", rodata, text)
	}
	if rodata-text > uint64(len(code)) {
		return nil, fmt.Errorf("region %#x-%#x exceeds %d bytes of code", text, rodata, len(code))
	}
	return &Region{
		text:   text,
		rodata: rodata,
		code:   code[:rodata-text],
	}, nil
}

// New creates a region covering all of code starting at text.
func New(text uint64, code []byte) *Region {
	return &Region{
		text:   text,
		rodata: text + uint64(len(code)),
		code:   code,
	}
}

// Text returns the address of the first code byte.
func (r *Region) Text() uint64 {
	return r.text
}

// Rodata returns the address where read-only data starts, the end of the scan.
func (r *Region) Rodata() uint64 {
	return r.rodata
}

// Len returns the size of the region in bytes.
func (r *Region) Len() int {
	return len(r.code)
}

// Bytes returns the raw region content. Callers must not modify it.
func (r *Region) Bytes() []byte {
	return r.code
}

// Contains reports whether n bytes starting at addr lie inside the region.
func (r *Region) Contains(addr uint64, n int) bool {
	if addr < r.text || n < 0 {
		return false
	}
	off := addr - r.text
	return off <= uint64(len(r.code)) && uint64(n) <= uint64(len(r.code))-off
}

// Read returns n bytes at addr.
func (r *Region) Read(addr uint64, n int) ([]byte, error) {
	if !r.Contains(addr, n) {
		return nil, fmt.Errorf("read %d bytes at %#x: %w", n, addr, ErrUnmapped)
	}
	off := addr - r.text
	return r.code[off : off+uint64(n)], nil
}

// ReadWord returns the little-endian instruction word at addr.
func (r *Region) ReadWord(addr uint64) (uint32, error) {
	b, err := r.Read(addr, insn.WordSize)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Words yields every whole word of the region with its address.
func (r *Region) Words() iter.Seq2[uint64, uint32] {
	return func(yield func(uint64, uint32) bool) {
		end := len(r.code) - len(r.code)%insn.WordSize
		for off := 0; off < end; off += insn.WordSize {
			word := binary.LittleEndian.Uint32(r.code[off:])
			if !yield(r.text+uint64(off), word) {
				return
			}
		}
	}
}

// Instructions yields the address and class of every word of the region in
// address order. Each call starts a new scan from the text start.
func (r *Region) Instructions() iter.Seq2[uint64, insn.Class] {
	return func(yield func(uint64, insn.Class) bool) {
		for addr, word := range r.Words() {
			if !yield(addr, insn.Classify(word)) {
				return
			}
		}
	}
}

// Offset converts an absolute address into an offset from the text start.
func (r *Region) Offset(addr uint64) (uint64, error) {
	if !r.Contains(addr, 0) {
		return 0, fmt.Errorf("offset of %#x: %w", addr, ErrUnmapped)
	}
	return addr - r.text, nil
}
