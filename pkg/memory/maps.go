package memory

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// Mapping is one line of /proc/<pid>/maps.
type Mapping struct {
	Start  uint64
	End    uint64
	Perms  string
	Offset uint64
	Path   string
}

// Executable reports whether the mapping has execute permission.
func (m Mapping) Executable() bool {
	return len(m.Perms) >= 3 && m.Perms[2] == 'x'
}

// ParseMaps parses the content of a /proc/<pid>/maps file.
func ParseMaps(r io.Reader) ([]Mapping, error) {
	var mappings []Mapping

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		addrRange := strings.SplitN(fields[0], "-", 2)
		if len(addrRange) != 2 {
			return nil, fmt.Errorf("malformed address range %q", fields[0])
		}
		start, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parse start %q: %w", addrRange[0], err)
		}
		end, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parse end %q: %w", addrRange[1], err)
		}
		offset, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parse offset %q: %w", fields[2], err)
		}

		m := Mapping{
			Start:  start,
			End:    end,
			Perms:  fields[1],
			Offset: offset,
		}
		if len(fields) >= 6 {
			m.Path = strings.Join(fields[5:], " ")
		}
		mappings = append(mappings, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read maps: %w", err)
	}

	return mappings, nil
}

// CodeMapping finds the first executable mapping of module. An empty module
// matches the first executable mapping backed by a file.
func CodeMapping(mappings []Mapping, module string) (Mapping, error) {
	for _, m := range mappings {
		if !m.Executable() || m.Path == "" || strings.HasPrefix(m.Path, "[") {
			continue
		}
		if module == "" || filepath.Base(m.Path) == module {
			return m, nil
		}
	}
	if module == "" {
		return Mapping{}, fmt.Errorf("no executable file mapping: %w", ErrUnmapped)
	}
	return Mapping{}, fmt.Errorf("no executable mapping for %q: %w", module, ErrUnmapped)
}
