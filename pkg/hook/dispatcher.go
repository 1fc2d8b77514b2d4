package hook

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/retroenv/retrogolib/log"
)

type replaceHook struct {
	name string
	fn   ReplaceFunc
}

type inlineHook struct {
	name string
	fn   InlineFunc
}

// Dispatcher is an in-process Installer. The host defines its functions
// with Define, then drives execution through Call and Step, which run the
// installed hooks in place of the host code.
type Dispatcher struct {
	logger *log.Logger
	mem    *Heap

	mu        sync.RWMutex
	functions map[uint64]Func
	replaced  map[uint64]replaceHook
	inline    map[uint64][]inlineHook
	installed []Installed
}

// NewDispatcher creates an empty dispatcher with its own host heap.
func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		mem:       NewHeap(),
		functions: make(map[uint64]Func),
		replaced:  make(map[uint64]replaceHook),
		inline:    make(map[uint64][]inlineHook),
	}
}

// Memory returns the host heap passed to every call.
func (d *Dispatcher) Memory() *Heap {
	return d.mem
}

// Define registers the host function at addr.
func (d *Dispatcher) Define(addr uint64, fn Func) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.functions[addr] = fn
}

// Replace implements Installer.
func (d *Dispatcher) Replace(name string, addr uint64, fn ReplaceFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.replaced[addr]; ok {
		return fmt.Errorf("%s at %#x already hooked by %s: %w", name, addr, prev.name, ErrDoubleHook)
	}
	d.replaced[addr] = replaceHook{name: name, fn: fn}
	d.installed = append(d.installed, Installed{Name: name, Addr: addr, Kind: KindReplace})

	d.logger.Debug("Installed hook", log.String("name", name), log.Hex("address", addr), log.Stringer("kind", KindReplace))
	return nil
}

// Inline implements Installer. Several inline hooks may share an address;
// they run in installation order.
func (d *Dispatcher) Inline(name string, addr uint64, fn InlineFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.inline[addr] = append(d.inline[addr], inlineHook{name: name, fn: fn})
	d.installed = append(d.installed, Installed{Name: name, Addr: addr, Kind: KindInline})

	d.logger.Debug("Installed hook", log.String("name", name), log.Hex("address", addr), log.Stringer("kind", KindInline))
	return nil
}

// Call invokes the function at addr with the given argument registers,
// through its replace hook if one is installed.
func (d *Dispatcher) Call(addr uint64, args ...uint64) (uint64, error) {
	d.mu.RLock()
	original, defined := d.functions[addr]
	h, hooked := d.replaced[addr]
	d.mu.RUnlock()

	if !defined {
		return 0, fmt.Errorf("call %#x: %w", addr, ErrNoFunction)
	}
	if len(args) > 8 {
		return 0, fmt.Errorf("call %#x: %d arguments exceed the argument registers", addr, len(args))
	}

	call := Call{Mem: d.mem}
	copy(call.X[:], args)
	if !hooked {
		return original(call), nil
	}
	return h.fn(call, original), nil
}

// Step runs the inline hooks at addr against ctx and returns how many ran.
func (d *Dispatcher) Step(addr uint64, ctx *InlineCtx) int {
	d.mu.RLock()
	hooks := d.inline[addr]
	d.mu.RUnlock()

	for _, h := range hooks {
		h.fn(ctx)
	}
	return len(hooks)
}

// Installed returns every installed hook ordered by address.
func (d *Dispatcher) Installed() []Installed {
	d.mu.RLock()
	defer d.mu.RUnlock()

	installed := slices.Clone(d.installed)
	slices.SortStableFunc(installed, func(a, b Installed) int {
		return cmp.Compare(a.Addr, b.Addr)
	})
	return installed
}
