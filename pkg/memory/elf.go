package memory

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
)

// ReadELF loads the code region of the ELF image at path.
func ReadELF(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	return ParseELF(f)
}

// ParseELF loads the code region of an ELF image. The region starts at the
// .text section and ends at the .rodata section, or at the end of the
// loadable segment holding .text when .rodata is missing or lies elsewhere.
func ParseELF(r io.ReaderAt) (*Region, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("parse elf: %w", err)
	}
	defer f.Close()

	if f.Machine != elf.EM_AARCH64 {
		return nil, fmt.Errorf("unsupported machine %s", f.Machine)
	}

	text := f.Section(".text")
	if text == nil {
		return nil, fmt.Errorf("missing .text section")
	}

	seg := segmentFor(f, text.Addr)
	if seg == nil {
		return nil, fmt.Errorf("no loadable segment holds .text at %#x", text.Addr)
	}

	end := seg.Vaddr + seg.Filesz
	if rodata := f.Section(".rodata"); rodata != nil && rodata.Addr > text.Addr && rodata.Addr < end {
		end = rodata.Addr
	}

	code := make([]byte, end-text.Addr)
	if _, err := seg.ReadAt(code, int64(text.Addr-seg.Vaddr)); err != nil {
		return nil, fmt.Errorf("read code: %w", err)
	}

	return New(text.Addr, code), nil
}

func segmentFor(f *elf.File, addr uint64) *elf.Prog {
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if addr >= p.Vaddr && addr < p.Vaddr+p.Filesz {
			return p
		}
	}
	return nil
}
