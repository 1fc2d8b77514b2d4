//go:build linux

package memory

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// readChunk bounds a single process_vm_readv transfer.
const readChunk = 1 << 20

// OpenProcess snapshots the executable mapping of module in the process pid.
// The region ends where the executable mapping ends, which is where the
// read-only data of the module begins.
func OpenProcess(pid int, module string) (*Region, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("open maps: %w", err)
	}
	defer f.Close()

	mappings, err := ParseMaps(f)
	if err != nil {
		return nil, err
	}

	m, err := CodeMapping(mappings, module)
	if err != nil {
		return nil, err
	}

	code := make([]byte, m.End-m.Start)
	if err := readProcess(pid, m.Start, code); err != nil {
		return nil, err
	}

	return New(m.Start, code), nil
}

func readProcess(pid int, addr uint64, buf []byte) error {
	for off := 0; off < len(buf); {
		n := min(readChunk, len(buf)-off)

		local := []unix.Iovec{{Base: &buf[off]}}
		local[0].SetLen(n)
		remote := []unix.RemoteIovec{{Base: uintptr(addr) + uintptr(off), Len: n}}

		read, err := unix.ProcessVMReadv(pid, local, remote, 0)
		if err != nil {
			return fmt.Errorf("process_vm_readv at %#x: %w", addr+uint64(off), err)
		}
		if read == 0 {
			return fmt.Errorf("process_vm_readv at %#x: %w", addr+uint64(off), ErrUnmapped)
		}
		off += read
	}
	return nil
}
