package hook

import (
	"bytes"
	"fmt"
	"sync"
)

// heapBase is the first address handed out by a Heap.
const heapBase = 0x1000_0000

// Heap is a minimal host memory for emulated hosts. Allocations are never
// freed and never move.
type Heap struct {
	mu     sync.Mutex
	next   uint64
	blocks map[uint64][]byte
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{
		next:   heapBase,
		blocks: make(map[uint64][]byte),
	}
}

// Alloc copies data into a new block and returns its address.
func (h *Heap) Alloc(data []byte) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	addr := h.next
	h.blocks[addr] = bytes.Clone(data)
	// keep blocks 16 byte aligned and separated
	h.next += (uint64(len(data)) + 0x1F) &^ 0xF
	return addr
}

// Bytes returns the block starting at addr.
func (h *Heap) Bytes(addr uint64) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.blocks[addr]
	if !ok {
		return nil, fmt.Errorf("%#x: %w", addr, ErrBadAddress)
	}
	return b, nil
}

// AllocCString implements Memory.
func (h *Heap) AllocCString(s string) (uint64, error) {
	return h.Alloc(append([]byte(s), 0)), nil
}

// CString implements Memory.
func (h *Heap) CString(addr uint64) (string, error) {
	b, err := h.Bytes(addr)
	if err != nil {
		return "", err
	}
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		return "", fmt.Errorf("%#x: unterminated string: %w", addr, ErrBadAddress)
	}
	return string(b[:end]), nil
}
