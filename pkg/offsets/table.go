// Package offsets resolves the text-relative addresses of the functions the
// interception pipeline attaches to.
package offsets

import (
	"fmt"
	"maps"
	"slices"
)

// Source records where an offset came from.
type Source uint8

const (
	Unset Source = iota
	Default
	Signature
	Pattern
	Override
)

func (s Source) String() string {
	switch s {
	case Unset:
		return "unset"
	case Default:
		return "default"
	case Signature:
		return "signature"
	case Pattern:
		return "pattern"
	case Override:
		return "override"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Entry is one resolved offset.
type Entry struct {
	Name   string
	Offset uint64
	Source Source
}

// Set reports whether the entry holds a usable offset.
func (e Entry) Set() bool {
	return e.Source != Unset
}

// Table is the immutable result of offset resolution.
type Table struct {
	entries map[string]Entry
}

// NewTable builds a table from entries. Later entries replace earlier ones
// with the same name.
func NewTable(entries ...Entry) *Table {
	t := &Table{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		t.entries[e.Name] = e
	}
	return t
}

// Defaults returns a table holding the catalog fallbacks.
func Defaults() *Table {
	var entries []Entry
	for _, target := range Catalog() {
		entries = append(entries, defaultEntry(target))
	}
	return NewTable(entries...)
}

func defaultEntry(target Target) Entry {
	e := Entry{Name: target.Name, Offset: target.Default}
	if target.Default != 0 {
		e.Source = Default
	}
	return e
}

// Lookup returns the entry for name.
func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok && e.Set()
}

// Offset returns the offset for name, or zero when it is not set.
func (t *Table) Offset(name string) uint64 {
	e, _ := t.Lookup(name)
	return e.Offset
}

// Entries returns all entries sorted by name.
func (t *Table) Entries() []Entry {
	names := slices.Sorted(maps.Keys(t.entries))
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, t.entries[name])
	}
	return entries
}
