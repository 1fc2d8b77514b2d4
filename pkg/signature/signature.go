// Package signature locates code in an executable region by the shape of its
// instructions or by literal byte patterns.
package signature

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/goopsie/arcRedirect/pkg/insn"
)

// MarkToken flags the class that follows it as the position to report.
const MarkToken = "=>"

var (
	// ErrNotFound is returned when the scan exhausts the region without a match.
	ErrNotFound = errors.New("signature not found")
	// ErrEmpty is returned when matching a signature without classes.
	ErrEmpty = errors.New("empty signature")
)

// Scanner provides the instruction stream of a code region.
type Scanner interface {
	Instructions() iter.Seq2[uint64, insn.Class]
}

// Signature is an ordered list of instruction classes. Marked positions name
// the word whose address is reported; without marks position 0 is reported.
type Signature struct {
	Classes []insn.Class
	Marks   []int
}

// New creates a signature of the given classes without marks.
func New(classes ...insn.Class) Signature {
	return Signature{Classes: classes}
}

// Marked returns a copy of s that reports the word at pos.
func (s Signature) Marked(pos int) Signature {
	marks := append(slices.Clone(s.Marks), pos)
	slices.Sort(marks)
	return Signature{Classes: s.Classes, Marks: slices.Compact(marks)}
}

// Parse builds a signature from class names. A "=>" token, or a "=>" prefix
// on a name, marks the class that follows it.
func Parse(fields []string) (Signature, error) {
	var sig Signature
	marked := false

	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if field == MarkToken {
			marked = true
			continue
		}
		if name, ok := strings.CutPrefix(field, MarkToken); ok {
			field = strings.TrimSpace(name)
			marked = true
		}

		class, err := insn.ParseClass(field)
		if err != nil {
			return Signature{}, fmt.Errorf("position %d: %w", len(sig.Classes), err)
		}
		if marked {
			sig.Marks = append(sig.Marks, len(sig.Classes))
			marked = false
		}
		sig.Classes = append(sig.Classes, class)
	}

	if marked {
		return Signature{}, fmt.Errorf("mark after the last class")
	}
	if len(sig.Classes) == 0 {
		return Signature{}, ErrEmpty
	}
	return sig, nil
}

// ParseString splits s on whitespace and commas and parses the fields.
func ParseString(s string) (Signature, error) {
	return Parse(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}))
}

// MustParse is like ParseString but panics on error. It is intended for
// built-in signature tables.
func MustParse(s string) Signature {
	sig, err := ParseString(s)
	if err != nil {
		panic(fmt.Sprintf("signature %q: %v", s, err))
	}
	return sig
}

// Len returns the number of classes.
func (s Signature) Len() int {
	return len(s.Classes)
}

// String renders the signature in the form accepted by ParseString.
func (s Signature) String() string {
	var sb strings.Builder
	for i, class := range s.Classes {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if slices.Contains(s.Marks, i) {
			sb.WriteString(MarkToken)
			sb.WriteByte(' ')
		}
		sb.WriteString(class.String())
	}
	return sb.String()
}

// reported returns a table of positions whose address is recorded.
func (s Signature) reported() []bool {
	marks := make([]bool, len(s.Classes))
	if len(s.Marks) == 0 {
		marks[0] = true
		return marks
	}
	for _, m := range s.Marks {
		if m >= 0 && m < len(marks) {
			marks[m] = true
		}
	}
	return marks
}

// Match runs the signature over an instruction stream. The state advances on
// every matching class and falls back to zero on a mismatch without testing
// the mismatching word against the first class again. The first complete
// window wins and the address recorded at the last marked position of that
// window is returned.
func (s Signature) Match(seq iter.Seq2[uint64, insn.Class]) (uint64, error) {
	if len(s.Classes) == 0 {
		return 0, ErrEmpty
	}

	marks := s.reported()
	var state int
	var hook uint64

	for addr, class := range seq {
		if class != s.Classes[state] {
			state = 0
			continue
		}
		if marks[state] {
			hook = addr
		}
		state++
		if state == len(s.Classes) {
			return hook, nil
		}
	}

	return 0, ErrNotFound
}

// Find scans the region for the signature.
func (s Signature) Find(r Scanner) (uint64, error) {
	return s.Match(r.Instructions())
}
