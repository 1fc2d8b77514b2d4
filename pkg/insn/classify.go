package insn

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

// WordSize is the size of an AArch64 instruction in bytes.
const WordSize = 4

// encoding matches a class when word&mask == value.
type encoding struct {
	mask  uint32
	value uint32
	class Class
}

// encodings is ordered from the most to the least specific mask.
var encodings = []encoding{
	{0xFFFFFFFF, 0xD503201F, Nop},
	{0xFFFFFC1F, 0xD61F0000, Br},
	{0xFFFFFC1F, 0xD63F0000, Blr},
	{0xFFFFFC1F, 0xD65F0000, Ret},
	{0xFFFF0000, 0x00000000, Udf},

	{0xFFE00C00, 0xB8600800, Ldr32Regoff},
	{0xFFE00C00, 0xF8600800, Ldr64Regoff},
	{0xFFE00C00, 0xF8400C00, Ldr64Pre},
	{0xFFE00C00, 0xF8400400, Ldr64Post},
	{0xFFE00C00, 0xF8000C00, Str64Pre},
	{0xFFE00C00, 0xF8000400, Str64Post},
	{0xFFE00C00, 0xF8400000, Ldur64},
	{0xFFE00C00, 0xF8000000, Stur64},
	{0xFFE00C00, 0x9A800000, Csel64},
	{0xFFE00C00, 0x9A800400, Csinc64},
	{0xFFE00C00, 0x1A800400, Csinc32},

	{0xFFE00000, 0x8B200000, AddExt64},

	{0xFF200000, 0x0B000000, AddShift32},
	{0xFF200000, 0x8B000000, AddShift64},
	{0xFF200000, 0xCB000000, SubShift64},
	{0xFF200000, 0x6B000000, SubsShift32},
	{0xFF200000, 0xEB000000, SubsShift64},
	{0xFF200000, 0x8A000000, AndShift64},
	{0xFF200000, 0xEA000000, AndsShift64},
	{0xFF200000, 0x2A000000, OrrShift32},
	{0xFF200000, 0xAA000000, OrrShift64},

	{0xFFC00000, 0x28800000, Stp32Post},
	{0xFFC00000, 0x29000000, Stp32Off},
	{0xFFC00000, 0x29800000, Stp32Pre},
	{0xFFC00000, 0x28C00000, Ldp32Post},
	{0xFFC00000, 0x29400000, Ldp32Off},
	{0xFFC00000, 0x29C00000, Ldp32Pre},
	{0xFFC00000, 0xA8800000, Stp64Post},
	{0xFFC00000, 0xA9000000, Stp64Off},
	{0xFFC00000, 0xA9800000, Stp64Pre},
	{0xFFC00000, 0xA8C00000, Ldp64Post},
	{0xFFC00000, 0xA9400000, Ldp64Off},
	{0xFFC00000, 0xA9C00000, Ldp64Pre},

	{0xFFC00000, 0xB9400000, Ldr32Pos},
	{0xFFC00000, 0xF9400000, Ldr64Pos},
	{0xFFC00000, 0xB9000000, Str32Pos},
	{0xFFC00000, 0xF9000000, Str64Pos},
	{0xFFC00000, 0x39400000, Ldrb32Pos},
	{0xFFC00000, 0x39000000, Strb32Pos},
	{0xFFC00000, 0x79400000, Ldrh32Pos},
	{0xFFC00000, 0x79000000, Strh32Pos},
	{0xFFC00000, 0xB9800000, Ldrsw64Pos},

	{0xFFC00000, 0x12000000, AndImm32},
	{0xFFC00000, 0x32000000, OrrImm32},
	{0xFFC00000, 0x13000000, Sbfm32},
	{0xFFC00000, 0x93400000, Sbfm64},
	{0xFFC00000, 0x53000000, Ubfm32},
	{0xFFC00000, 0xD3400000, Ubfm64},

	{0xFF800000, 0x11000000, AddImm32},
	{0xFF800000, 0x91000000, AddImm64},
	{0xFF800000, 0x31000000, AddsImm32},
	{0xFF800000, 0xB1000000, AddsImm64},
	{0xFF800000, 0x51000000, SubImm32},
	{0xFF800000, 0xD1000000, SubImm64},
	{0xFF800000, 0x71000000, SubsImm32},
	{0xFF800000, 0xF1000000, SubsImm64},
	{0xFF800000, 0x92000000, AndImm64},
	{0xFF800000, 0xB2000000, OrrImm64},
	{0xFF800000, 0xF2000000, AndsImm64},
	{0xFF800000, 0x52800000, Movz32},
	{0xFF800000, 0xD2800000, Movz64},
	{0xFF800000, 0x92800000, Movn64},
	{0xFF800000, 0xF2800000, Movk64},

	{0xFF000010, 0x54000000, BCond},
	{0xFF000000, 0x34000000, Cbz32},
	{0xFF000000, 0xB4000000, Cbz64},
	{0xFF000000, 0x35000000, Cbnz32},
	{0xFF000000, 0xB5000000, Cbnz64},
	{0x7F000000, 0x36000000, Tbz},
	{0x7F000000, 0x37000000, Tbnz},
	{0x9F000000, 0x10000000, Adr},
	{0x9F000000, 0x90000000, Adrp},
	{0xFC000000, 0x14000000, B},
	{0xFC000000, 0x94000000, BL},
}

// byTopByte holds, for every value of bits 31:24, the encodings that can match it.
var byTopByte [256][]encoding

func init() {
	for top := range byTopByte {
		hi := uint32(top) << 24
		for _, e := range encodings {
			if hi&e.mask&0xFF000000 == e.value&0xFF000000 {
				byTopByte[top] = append(byTopByte[top], e)
			}
		}
	}
}

// Classify returns the encoding class of a little-endian instruction word.
// Words outside the known set return Unclassified.
func Classify(word uint32) Class {
	for _, e := range byTopByte[word>>24] {
		if word&e.mask == e.value {
			return e.class
		}
	}
	return Unclassified
}

// Describe disassembles the word for diagnostics. Undecodable words are
// rendered as a raw data directive.
func Describe(word uint32) string {
	var buf [WordSize]byte
	binary.LittleEndian.PutUint32(buf[:], word)

	inst, err := arm64asm.Decode(buf[:])
	if err != nil {
		return fmt.Sprintf(".word %#08x", word)
	}
	return strings.TrimSpace(inst.String())
}

// Op returns the arm64asm opcode of the word and whether it decodes.
func Op(word uint32) (arm64asm.Op, bool) {
	var buf [WordSize]byte
	binary.LittleEndian.PutUint32(buf[:], word)

	inst, err := arm64asm.Decode(buf[:])
	if err != nil {
		return 0, false
	}
	return inst.Op, true
}
