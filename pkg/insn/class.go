// Package insn classifies raw AArch64 instruction words into coarse encoding classes.
//
// A class names the encoding group of an instruction (for example a 64-bit
// store pair with pre-index writeback) without its operands, which makes a
// sequence of classes stable across builds where registers, immediates and
// branch targets drift.
package insn

import (
	"fmt"
	"strings"
)

// Class is the encoding class of a single instruction word.
type Class uint8

// Instruction classes. Unclassified is the sentinel for every word that is
// not part of the closed set, including unallocated encodings and data.
const (
	Unclassified Class = iota

	Nop
	Udf

	// PC relative addressing
	Adr
	Adrp

	// add/subtract (immediate)
	AddImm32
	AddImm64
	AddsImm32
	AddsImm64
	SubImm32
	SubImm64
	SubsImm32
	SubsImm64

	// add/subtract (shifted and extended register)
	AddShift32
	AddShift64
	SubShift64
	SubsShift32
	SubsShift64
	AddExt64

	// logical (immediate)
	AndImm32
	AndImm64
	AndsImm64
	OrrImm32
	OrrImm64

	// logical (shifted register)
	AndShift64
	AndsShift64
	OrrShift32
	OrrShift64

	// move wide
	Movz32
	Movz64
	Movn64
	Movk64

	// bitfield
	Sbfm32
	Sbfm64
	Ubfm32
	Ubfm64

	// conditional select
	Csel64
	Csinc32
	Csinc64

	// branches
	B
	BL
	BCond
	Cbz32
	Cbz64
	Cbnz32
	Cbnz64
	Tbz
	Tbnz
	Br
	Blr
	Ret

	// load/store pair
	Stp32Post
	Stp32Off
	Stp32Pre
	Ldp32Post
	Ldp32Off
	Ldp32Pre
	Stp64Post
	Stp64Off
	Stp64Pre
	Ldp64Post
	Ldp64Off
	Ldp64Pre

	// load/store (unsigned offset)
	Ldr32Pos
	Ldr64Pos
	Str32Pos
	Str64Pos
	Ldrb32Pos
	Strb32Pos
	Ldrh32Pos
	Strh32Pos
	Ldrsw64Pos

	// load/store (immediate pre/post-index and unscaled)
	Ldr64Pre
	Ldr64Post
	Str64Pre
	Str64Post
	Ldur64
	Stur64

	// load (register offset)
	Ldr32Regoff
	Ldr64Regoff

	classCount
)

var classNames = [classCount]string{
	Unclassified: "Unclassified",
	Nop:          "Nop",
	Udf:          "Udf",
	Adr:          "Adr",
	Adrp:         "Adrp",
	AddImm32:     "AddImm32",
	AddImm64:     "AddImm64",
	AddsImm32:    "AddsImm32",
	AddsImm64:    "AddsImm64",
	SubImm32:     "SubImm32",
	SubImm64:     "SubImm64",
	SubsImm32:    "SubsImm32",
	SubsImm64:    "SubsImm64",
	AddShift32:   "AddShift32",
	AddShift64:   "AddShift64",
	SubShift64:   "SubShift64",
	SubsShift32:  "SubsShift32",
	SubsShift64:  "SubsShift64",
	AddExt64:     "AddExt64",
	AndImm32:     "AndImm32",
	AndImm64:     "AndImm64",
	AndsImm64:    "AndsImm64",
	OrrImm32:     "OrrImm32",
	OrrImm64:     "OrrImm64",
	AndShift64:   "AndShift64",
	AndsShift64:  "AndsShift64",
	OrrShift32:   "OrrShift32",
	OrrShift64:   "OrrShift64",
	Movz32:       "Movz32",
	Movz64:       "Movz64",
	Movn64:       "Movn64",
	Movk64:       "Movk64",
	Sbfm32:       "Sbfm32",
	Sbfm64:       "Sbfm64",
	Ubfm32:       "Ubfm32",
	Ubfm64:       "Ubfm64",
	Csel64:       "Csel64",
	Csinc32:      "Csinc32",
	Csinc64:      "Csinc64",
	B:            "B",
	BL:           "BL",
	BCond:        "BCond",
	Cbz32:        "Cbz32",
	Cbz64:        "Cbz64",
	Cbnz32:       "Cbnz32",
	Cbnz64:       "Cbnz64",
	Tbz:          "Tbz",
	Tbnz:         "Tbnz",
	Br:           "Br",
	Blr:          "Blr",
	Ret:          "Ret",
	Stp32Post:    "Stp32Post",
	Stp32Off:     "Stp32Off",
	Stp32Pre:     "Stp32Pre",
	Ldp32Post:    "Ldp32Post",
	Ldp32Off:     "Ldp32Off",
	Ldp32Pre:     "Ldp32Pre",
	Stp64Post:    "Stp64Post",
	Stp64Off:     "Stp64Off",
	Stp64Pre:     "Stp64Pre",
	Ldp64Post:    "Ldp64Post",
	Ldp64Off:     "Ldp64Off",
	Ldp64Pre:     "Ldp64Pre",
	Ldr32Pos:     "Ldr32Pos",
	Ldr64Pos:     "Ldr64Pos",
	Str32Pos:     "Str32Pos",
	Str64Pos:     "Str64Pos",
	Ldrb32Pos:    "Ldrb32Pos",
	Strb32Pos:    "Strb32Pos",
	Ldrh32Pos:    "Ldrh32Pos",
	Strh32Pos:    "Strh32Pos",
	Ldrsw64Pos:   "Ldrsw64Pos",
	Ldr64Pre:     "Ldr64Pre",
	Ldr64Post:    "Ldr64Post",
	Str64Pre:     "Str64Pre",
	Str64Post:    "Str64Post",
	Ldur64:       "Ldur64",
	Stur64:       "Stur64",
	Ldr32Regoff:  "Ldr32Regoff",
	Ldr64Regoff:  "Ldr64Regoff",
}

// String returns the class name.
func (c Class) String() string {
	if c >= classCount {
		return fmt.Sprintf("Class(%d)", int(c))
	}
	return classNames[c]
}

// ParseClass returns the class for the given name. The comparison ignores case.
func ParseClass(name string) (Class, error) {
	for c := Unclassified; c < classCount; c++ {
		if strings.EqualFold(classNames[c], name) {
			return c, nil
		}
	}
	return Unclassified, fmt.Errorf("unknown instruction class %q", name)
}

// Classes returns all known classes, including Unclassified.
func Classes() []Class {
	all := make([]Class, 0, classCount)
	for c := Unclassified; c < classCount; c++ {
		all = append(all, c)
	}
	return all
}
