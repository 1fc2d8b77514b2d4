package arc

import (
	"fmt"
	"sync/atomic"
)

// ResServiceState is the loader bookkeeping the announce hook reads.
type ResServiceState struct {
	ProcessingFileIdxStart atomic.Uint32
	ProcessingFileIdxCount atomic.Uint32
	ProcessingDirIdx       atomic.Uint32
}

// LoadedTables is the runtime side of the container: the archive, the
// per-path table and the load-state table parallel to FileInfoIndices.
type LoadedTables struct {
	Arc        *Arc
	Table1     *Table[Table1Entry]
	Table2     *Table[Table2Entry]
	Table1Len  atomic.Uint32
	Table2Len  atomic.Uint32
	ResService ResServiceState
}

// NewLoadedTables creates the runtime tables for a. A nil table1 or table2
// is created with one entry per FilePath or FileInfoIndices slot.
func NewLoadedTables(a *Arc, table1 []Table1Entry, table2 []Table2Entry) *LoadedTables {
	if table1 == nil {
		table1 = make([]Table1Entry, a.FilePaths.Len())
		for i, p := range a.FilePaths.Load() {
			table1[i] = Table1Entry{Table2Index: p.Path.Index()}
		}
	}
	if table2 == nil {
		table2 = make([]Table2Entry, a.FileInfoIndices.Len())
	}

	lt := &LoadedTables{
		Arc:    a,
		Table1: NewTable("Table1", table1),
		Table2: NewTable("Table2", table2),
	}
	lt.Table1Len.Store(uint32(len(table1)))
	lt.Table2Len.Store(uint32(len(table2)))
	return lt
}

// Slot returns the load-state slot at index, bounded by the published length.
func (lt *LoadedTables) Slot(index uint32) (Table2Entry, error) {
	if index >= lt.Table2Len.Load() {
		return Table2Entry{}, fmt.Errorf("Table2[%d] of %d: %w", index, lt.Table2Len.Load(), ErrOutOfBounds)
	}
	return lt.Table2.Get(index)
}

// Check verifies the container and that the runtime table lengths match
// their published lengths and the container.
func (lt *LoadedTables) Check() error {
	if err := lt.Arc.Check(); err != nil {
		return err
	}
	if n := lt.Table1.Len(); int(lt.Table1Len.Load()) != n {
		return fmt.Errorf("Table1: length %d, published %d", n, lt.Table1Len.Load())
	}
	if n := lt.Table2.Len(); int(lt.Table2Len.Load()) != n {
		return fmt.Errorf("Table2: length %d, published %d", n, lt.Table2Len.Load())
	}
	if lt.Table2.Len() != lt.Arc.FileInfoIndices.Len() {
		return fmt.Errorf("Table2 length %d, FileInfoIndices length %d", lt.Table2.Len(), lt.Arc.FileInfoIndices.Len())
	}
	return nil
}

// SetSlotData publishes a loaded buffer for a slot, the way the game's
// loader fills a load-state entry.
func (lt *LoadedTables) SetSlotData(index uint32, data []byte) error {
	items := lt.Table2.Clone()
	if uint64(index) >= uint64(len(items)) {
		return fmt.Errorf("Table2[%d] of %d: %w", index, len(items), ErrOutOfBounds)
	}
	items[index].Data = data
	items[index].State = StateLoaded
	items[index].IsUsed = data != nil
	lt.Table2.Swap(items)
	return nil
}
