// Package nutexb reads the fixed-size footer that ends every nutexb texture.
//
// The footer is 176 bytes: the mip sizes, a " XNT" block with the texture
// name and dimensions, and a " XET" block with the format version. Texture
// substitution keeps the footer at the very end of the game's buffer, so
// only the footer needs to be understood.
package nutexb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// FooterSize is the size of a nutexb footer in bytes.
const FooterSize = 0xB0

// Extension is the file extension of nutexb textures.
const Extension = "nutexb"

var (
	magicTNX = [4]byte{' ', 'X', 'N', 'T'}
	magicTEX = [4]byte{' ', 'X', 'E', 'T'}
)

// ErrNoFooter is returned when the data cannot hold or does not end with a footer.
var ErrNoFooter = errors.New("no nutexb footer")

// Footer is the decoded texture footer.
type Footer struct {
	MipSizes   [16]uint32 // +0x00
	Name       string     // +0x44, 0x40 bytes NUL padded
	Width      uint32     // +0x84
	Height     uint32     // +0x88
	Depth      uint32     // +0x8C
	Format     uint8      // +0x90
	Unknown    uint8      // +0x91
	Unknown2   uint16     // +0x92
	Unknown3   uint32     // +0x94
	MipCount   uint32     // +0x98
	Alignment  uint32     // +0x9C
	LayerCount uint32     // +0xA0
	ImageSize  uint32     // +0xA4
	Major      uint16     // +0xAC
	Minor      uint16     // +0xAE
}

// ParseFooter decodes the footer at the end of data.
func ParseFooter(data []byte) (*Footer, error) {
	if len(data) < FooterSize {
		return nil, fmt.Errorf("%d bytes: %w", len(data), ErrNoFooter)
	}
	raw := data[len(data)-FooterSize:]

	if [4]byte(raw[0x40:0x44]) != magicTNX {
		return nil, fmt.Errorf("invalid magic %q: %w", raw[0x40:0x44], ErrNoFooter)
	}
	if [4]byte(raw[0xA8:0xAC]) != magicTEX {
		return nil, fmt.Errorf("invalid magic %q: %w", raw[0xA8:0xAC], ErrNoFooter)
	}

	f := &Footer{
		Name:       strings.TrimRight(string(raw[0x44:0x84]), "\x00"),
		Width:      binary.LittleEndian.Uint32(raw[0x84:0x88]),
		Height:     binary.LittleEndian.Uint32(raw[0x88:0x8C]),
		Depth:      binary.LittleEndian.Uint32(raw[0x8C:0x90]),
		Format:     raw[0x90],
		Unknown:    raw[0x91],
		Unknown2:   binary.LittleEndian.Uint16(raw[0x92:0x94]),
		Unknown3:   binary.LittleEndian.Uint32(raw[0x94:0x98]),
		MipCount:   binary.LittleEndian.Uint32(raw[0x98:0x9C]),
		Alignment:  binary.LittleEndian.Uint32(raw[0x9C:0xA0]),
		LayerCount: binary.LittleEndian.Uint32(raw[0xA0:0xA4]),
		ImageSize:  binary.LittleEndian.Uint32(raw[0xA4:0xA8]),
		Major:      binary.LittleEndian.Uint16(raw[0xAC:0xAE]),
		Minor:      binary.LittleEndian.Uint16(raw[0xAE:0xB0]),
	}
	for i := range f.MipSizes {
		f.MipSizes[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return f, nil
}

// ToBytes serializes the footer to FooterSize bytes.
func (f *Footer) ToBytes() []byte {
	raw := make([]byte, FooterSize)
	for i, size := range f.MipSizes {
		binary.LittleEndian.PutUint32(raw[i*4:], size)
	}
	copy(raw[0x40:0x44], magicTNX[:])
	copy(raw[0x44:0x84], f.Name)
	binary.LittleEndian.PutUint32(raw[0x84:0x88], f.Width)
	binary.LittleEndian.PutUint32(raw[0x88:0x8C], f.Height)
	binary.LittleEndian.PutUint32(raw[0x8C:0x90], f.Depth)
	raw[0x90] = f.Format
	raw[0x91] = f.Unknown
	binary.LittleEndian.PutUint16(raw[0x92:0x94], f.Unknown2)
	binary.LittleEndian.PutUint32(raw[0x94:0x98], f.Unknown3)
	binary.LittleEndian.PutUint32(raw[0x98:0x9C], f.MipCount)
	binary.LittleEndian.PutUint32(raw[0x9C:0xA0], f.Alignment)
	binary.LittleEndian.PutUint32(raw[0xA0:0xA4], f.LayerCount)
	binary.LittleEndian.PutUint32(raw[0xA4:0xA8], f.ImageSize)
	copy(raw[0xA8:0xAC], magicTEX[:])
	binary.LittleEndian.PutUint16(raw[0xAC:0xAE], f.Major)
	binary.LittleEndian.PutUint16(raw[0xAE:0xB0], f.Minor)
	return raw
}

// String returns a short description.
func (f *Footer) String() string {
	return fmt.Sprintf("%s %dx%dx%d format=%#02x mips=%d layers=%d size=%#x",
		f.Name, f.Width, f.Height, f.Depth, f.Format, f.MipCount, f.LayerCount, f.ImageSize)
}
