// sigscan - find functions in an AArch64 executable by code shape
//
// Searches the text segment for an instruction class signature or a byte
// pattern and prints the match with a disassembly listing around it.
//
// Usage:
//   sigscan -elf main.elf -sig "=> Stp64Pre Stp64Off AddImm64 BL"
//   sigscan -elf main.elf -pattern "e0 03 ?? aa"
//   sigscan -raw text.bin -base 0x7100000000 -sig "Ldp64Off => BCond"
//   sigscan -classes
//   sigscan -elf main.elf -at 0x35b3f40 -context 16

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/goopsie/arcRedirect/internal/config"
	"github.com/goopsie/arcRedirect/pkg/insn"
	"github.com/goopsie/arcRedirect/pkg/memory"
	"github.com/goopsie/arcRedirect/pkg/signature"
)

var (
	elfPath     string
	rawPath     string
	base        string
	sigText     string
	patternText string
	at          string
	context     int
	listClasses bool
)

func init() {
	flag.StringVar(&elfPath, "elf", "", "AArch64 ELF image to scan")
	flag.StringVar(&rawPath, "raw", "", "Raw dump of the text segment to scan")
	flag.StringVar(&base, "base", "0", "Load address of a raw dump, in hex")
	flag.StringVar(&sigText, "sig", "", "Instruction class signature, '=>' marks the reported position")
	flag.StringVar(&patternText, "pattern", "", "Hex byte pattern, '??' matches any byte")
	flag.StringVar(&at, "at", "", "List the code at this text relative offset instead of searching")
	flag.IntVar(&context, "context", 8, "Instructions to list before and after the match")
	flag.BoolVar(&listClasses, "classes", false, "List the instruction class names")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if listClasses {
		for _, c := range insn.Classes() {
			fmt.Println(c)
		}
		return nil
	}

	if err := validateFlags(); err != nil {
		flag.Usage()
		return err
	}

	region, err := openRegion()
	if err != nil {
		return err
	}
	fmt.Printf("Text %#x-%#x (%d instructions)\n", region.Text(), region.Rodata(), region.Len()/insn.WordSize)

	addr, err := search(region)
	if err != nil {
		return err
	}

	offset, err := region.Offset(addr)
	if err != nil {
		return err
	}
	fmt.Printf("Match at %#x (offset %#x)\n", addr, offset)
	return list(region, addr)
}

func validateFlags() error {
	if (elfPath == "") == (rawPath == "") {
		return fmt.Errorf("exactly one of -elf and -raw is required")
	}

	n := 0
	for _, s := range []string{sigText, patternText, at} {
		if s != "" {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("exactly one of -sig, -pattern and -at is required")
	}
	if context < 0 {
		return fmt.Errorf("context must not be negative")
	}
	return nil
}

func openRegion() (*memory.Region, error) {
	if elfPath != "" {
		return memory.ReadELF(elfPath)
	}

	text, err := config.ParseOffset(base)
	if err != nil {
		return nil, fmt.Errorf("base: %w", err)
	}
	code, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	return memory.New(text, code), nil
}

func search(region *memory.Region) (uint64, error) {
	switch {
	case sigText != "":
		sig, err := signature.ParseString(sigText)
		if err != nil {
			return 0, err
		}
		fmt.Printf("Signature %s\n", sig)
		return sig.Find(region)

	case patternText != "":
		p, err := signature.ParseHex(patternText)
		if err != nil {
			return 0, err
		}
		fmt.Printf("Pattern %s\n", p)
		return p.Find(region)

	default:
		offset, err := config.ParseOffset(at)
		if err != nil {
			return 0, err
		}
		return region.Text() + offset, nil
	}
}

func list(region *memory.Region, addr uint64) error {
	start := addr &^ (insn.WordSize - 1)
	before := uint64(context) * insn.WordSize
	if start-region.Text() < before {
		before = start - region.Text()
	}
	start -= before
	end := addr + uint64(context+1)*insn.WordSize

	for a := start; a < end; a += insn.WordSize {
		word, err := region.ReadWord(a)
		if err != nil {
			break
		}
		marker := " "
		if a == addr {
			marker = ">"
		}
		class := insn.Classify(word)
		fmt.Printf("%s %#x: %08x  %-12s %s\n", marker, a, word, class, strings.ToLower(insn.Describe(word)))
	}
	return nil
}
