// Package hook describes how interception code is attached to the host
// process and provides an in-process dispatcher that plays the host's part
// for emulated hosts and tests.
//
// Two kinds of hooks exist. A replace hook takes over a function entry and
// may call through to the original. An inline hook runs at an arbitrary
// instruction boundary, sees the register file at that point and always
// falls through to the original instruction stream.
package hook

import (
	"errors"
	"fmt"
)

var (
	// ErrDoubleHook means a replace hook already exists at the address.
	ErrDoubleHook = errors.New("double hook")
	// ErrNoFunction means no original function is defined at the address.
	ErrNoFunction = errors.New("no function at address")
	// ErrBadAddress means a host memory address holds no valid data.
	ErrBadAddress = errors.New("bad host address")
)

// Kind is the kind of an installed hook.
type Kind uint8

// Hook kinds.
const (
	KindReplace Kind = iota
	KindInline
)

func (k Kind) String() string {
	switch k {
	case KindReplace:
		return "replace"
	case KindInline:
		return "inline"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Memory gives hooks access to pointer arguments in host memory.
type Memory interface {
	CString(addr uint64) (string, error)
	AllocCString(s string) (uint64, error)
}

// Call is an intercepted function call: the argument registers x0-x7 and
// the host memory they may point into.
type Call struct {
	X   [8]uint64
	Mem Memory
}

// Func is a host function.
type Func func(call Call) uint64

// ReplaceFunc is a replace hook. original calls through to the function
// that was replaced.
type ReplaceFunc func(call Call, original Func) uint64

// InlineCtx is the register file at an inline hook site.
type InlineCtx struct {
	X  [31]uint64
	SP uint64
}

// InlineFunc is an inline hook.
type InlineFunc func(ctx *InlineCtx)

// Installer attaches hooks to resolved addresses.
type Installer interface {
	Replace(name string, addr uint64, fn ReplaceFunc) error
	Inline(name string, addr uint64, fn InlineFunc) error
}

// Installed describes an installed hook.
type Installed struct {
	Name string
	Addr uint64
	Kind Kind
}
