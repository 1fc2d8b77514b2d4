package insn

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"golang.org/x/arch/arm64/arm64asm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		word  uint32
		class Class
		op    arm64asm.Op // zero when arm64asm prints an alias
	}{
		{"nop", 0xD503201F, Nop, arm64asm.NOP},
		{"ret", 0xD65F03C0, Ret, arm64asm.RET},
		{"br x16", 0xD61F0200, Br, arm64asm.BR},
		{"blr x8", 0xD63F0100, Blr, arm64asm.BLR},
		{"stp x29, x30, [sp, #-16]!", 0xA9BF7BFD, Stp64Pre, arm64asm.STP},
		{"stp x20, x19, [sp, #16]", 0xA9014FF4, Stp64Off, arm64asm.STP},
		{"ldp x29, x30, [sp], #16", 0xA8C17BFD, Ldp64Post, arm64asm.LDP},
		{"ldp x20, x19, [sp, #16]", 0xA9414FF4, Ldp64Off, arm64asm.LDP},
		{"ldr x0, [x0, #8]", 0xF9400400, Ldr64Pos, arm64asm.LDR},
		{"str x19, [sp, #-32]!", 0xF81E0FF3, Str64Pre, arm64asm.STR},
		{"ldrsw x8, [x0, #4]", 0xB9800408, Ldrsw64Pos, arm64asm.LDRSW},
		{"ldrb w8, [x0, #16]", 0x39404008, Ldrb32Pos, arm64asm.LDRB},
		{"adrp x0, 0", 0x90000000, Adrp, arm64asm.ADRP},
		{"bl", 0x94000010, BL, arm64asm.BL},
		{"b", 0x14000004, B, arm64asm.B},
		{"cbz x0", 0xB4000040, Cbz64, arm64asm.CBZ},
		{"cbnz w8", 0x35000048, Cbnz32, arm64asm.CBNZ},
		{"b.eq", 0x54000040, BCond, 0},
		{"mov x29, sp", 0x910003FD, AddImm64, 0},
		{"cmp w8, w9", 0x6B09011F, SubsShift32, 0},
		{"mov x0, x1", 0xAA0103E0, OrrShift64, 0},
		{"mov w0, #1", 0x52800020, Movz32, 0},
		{"udf #0", 0x00000000, Udf, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.word))

			if tt.op == 0 {
				return
			}
			op, ok := Op(tt.word)
			assert.True(t, ok)
			assert.Equal(t, tt.op, op)
		})
	}
}

func TestClassifyUnclassified(t *testing.T) {
	words := []uint32{
		0x4EA01C00, // mov v0.16b, v0.16b
		0x1E602000, // fcmp d0, d0
		0xD53BD040, // mrs x0, tpidr_el0
	}
	for _, word := range words {
		assert.Equal(t, Unclassified, Classify(word))
	}
}

func TestEncodingsIndexed(t *testing.T) {
	// every catalog entry must be reachable through the top byte index
	for _, e := range encodings {
		assert.Equal(t, e.class, Classify(e.value))
	}
}

func TestClassNames(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		for _, c := range Classes() {
			parsed, err := ParseClass(c.String())
			assert.NoError(t, err)
			assert.Equal(t, c, parsed)
		}
	})

	t.Run("IgnoresCase", func(t *testing.T) {
		c, err := ParseClass("stp64pre")
		assert.NoError(t, err)
		assert.Equal(t, Stp64Pre, c)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := ParseClass("LoadPair")
		assert.ErrorContains(t, err, "unknown instruction class")
	})

	t.Run("OutOfRange", func(t *testing.T) {
		assert.Equal(t, "Class(250)", Class(250).String())
	})
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "NOP", Describe(0xD503201F))
	assert.Contains(t, Describe(0xA9BF7BFD), "STP")
}
