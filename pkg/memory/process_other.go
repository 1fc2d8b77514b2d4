//go:build !linux

package memory

import (
	"errors"
	"fmt"
)

// OpenProcess is only supported on Linux.
func OpenProcess(pid int, module string) (*Region, error) {
	return nil, fmt.Errorf("process %d: %w", pid, errors.ErrUnsupported)
}
