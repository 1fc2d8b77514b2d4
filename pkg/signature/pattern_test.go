package signature

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"

	"github.com/goopsie/arcRedirect/pkg/memory"
)

func TestFindBytes(t *testing.T) {
	needle := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	t.Run("Single", func(t *testing.T) {
		code := make([]byte, 64)
		copy(code[20:], needle)
		addr, err := FindBytes(memory.New(0x1000, code), needle)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0x1014), addr)
	})

	t.Run("FirstOccurrence", func(t *testing.T) {
		code := make([]byte, 64)
		copy(code[40:], needle)
		copy(code[8:], needle)
		addr, err := FindBytes(memory.New(0x1000, code), needle)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0x1008), addr)
	})

	t.Run("Unaligned", func(t *testing.T) {
		code := make([]byte, 16)
		copy(code[3:], needle)
		addr, err := FindBytes(memory.New(0, code), needle)
		assert.NoError(t, err)
		assert.Equal(t, uint64(3), addr)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := FindBytes(memory.New(0, make([]byte, 32)), needle)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("StraddlesRegionEnd", func(t *testing.T) {
		code := make([]byte, 16)
		copy(code[14:], needle[:2])
		_, err := FindBytes(memory.New(0, code), needle)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestPattern(t *testing.T) {
	t.Run("ParseHex", func(t *testing.T) {
		p, err := ParseHex("1f 20 03 d5 ?? 7b")
		assert.NoError(t, err)
		assert.Len(t, p.Bytes, 6)
		assert.False(t, p.Mask[4])
		assert.Equal(t, "1f 20 03 d5 ?? 7b", p.String())
	})

	t.Run("ParseHexCompact", func(t *testing.T) {
		p, err := ParseHex("1f2003d5")
		assert.NoError(t, err)
		assert.Equal(t, "1f 20 03 d5", p.String())
	})

	t.Run("ParseHexErrors", func(t *testing.T) {
		_, err := ParseHex("1f2")
		assert.Error(t, err)
		_, err = ParseHex("zz")
		assert.Error(t, err)
		_, err = ParseHex("")
		assert.True(t, errors.Is(err, ErrEmpty))
	})

	t.Run("Wildcards", func(t *testing.T) {
		code := []byte{0x00, 0x11, 0xAA, 0x22, 0x11, 0xBB, 0x33}
		p, err := ParseHex("11 ?? 33")
		assert.NoError(t, err)
		addr, err := p.Find(memory.New(0x100, code))
		assert.NoError(t, err)
		assert.Equal(t, uint64(0x104), addr)
	})

	t.Run("LeadingWildcard", func(t *testing.T) {
		p, err := ParseHex("?? 22")
		assert.NoError(t, err)
		assert.Equal(t, 2, p.Index([]byte{0x22, 0x00, 0x01, 0x22}))
	})
}
