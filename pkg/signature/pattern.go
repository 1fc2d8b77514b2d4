package signature

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Wildcard is the token for a byte that matches any value.
const Wildcard = "??"

// ByteSource provides the raw bytes of a code region.
type ByteSource interface {
	Text() uint64
	Bytes() []byte
}

// Pattern is a byte sequence in which bytes whose mask is false match anything.
type Pattern struct {
	Bytes []byte
	Mask  []bool
}

// Literal creates a pattern that matches b exactly.
func Literal(b []byte) Pattern {
	mask := make([]bool, len(b))
	for i := range mask {
		mask[i] = true
	}
	return Pattern{Bytes: b, Mask: mask}
}

// ParseHex parses a pattern such as "1f 20 03 d5 ?? 7b". Whitespace between
// bytes is optional.
func ParseHex(s string) (Pattern, error) {
	var p Pattern

	compact := strings.Join(strings.Fields(s), "")
	if len(compact)%2 != 0 {
		return Pattern{}, fmt.Errorf("odd number of hex digits in %q", s)
	}

	for i := 0; i < len(compact); i += 2 {
		tok := compact[i : i+2]
		if tok == Wildcard {
			p.Bytes = append(p.Bytes, 0)
			p.Mask = append(p.Mask, false)
			continue
		}
		b, err := hex.DecodeString(tok)
		if err != nil {
			return Pattern{}, fmt.Errorf("byte %d: %w", i/2, err)
		}
		p.Bytes = append(p.Bytes, b[0])
		p.Mask = append(p.Mask, true)
	}

	if len(p.Bytes) == 0 {
		return Pattern{}, ErrEmpty
	}
	return p, nil
}

// String renders the pattern in the form accepted by ParseHex.
func (p Pattern) String() string {
	parts := make([]string, len(p.Bytes))
	for i, b := range p.Bytes {
		if !p.Mask[i] {
			parts[i] = Wildcard
			continue
		}
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

func (p Pattern) literal() bool {
	for _, m := range p.Mask {
		if !m {
			return false
		}
	}
	return true
}

// Index returns the offset of the first occurrence of p in data, or -1.
func (p Pattern) Index(data []byte) int {
	if len(p.Bytes) == 0 {
		return -1
	}
	if p.literal() {
		return bytes.Index(data, p.Bytes)
	}

	// anchor on the first exact byte to skip most candidates
	anchor := 0
	for anchor < len(p.Mask) && !p.Mask[anchor] {
		anchor++
	}

	for start := 0; start+len(p.Bytes) <= len(data); start++ {
		if anchor < len(p.Mask) && data[start+anchor] != p.Bytes[anchor] {
			continue
		}
		if p.matchAt(data, start) {
			return start
		}
	}
	return -1
}

func (p Pattern) matchAt(data []byte, start int) bool {
	for i, b := range p.Bytes {
		if p.Mask[i] && data[start+i] != b {
			return false
		}
	}
	return true
}

// Find returns the lowest address in the region at which p occurs.
func (p Pattern) Find(r ByteSource) (uint64, error) {
	idx := p.Index(r.Bytes())
	if idx < 0 {
		return 0, ErrNotFound
	}
	return r.Text() + uint64(idx), nil
}

// FindBytes returns the lowest address in the region at which the literal
// sequence b occurs contiguously.
func FindBytes(r ByteSource, b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, ErrEmpty
	}
	return Literal(b).Find(r)
}
