// Package arc models the resident archive container: the linked path and
// file tables, their header counts and the runtime load-state tables.
package arc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrUnknownHash is returned when a path or directory hash is not in the container.
var ErrUnknownHash = errors.New("unknown hash")

// FileSystemHeader holds the element counts the game bounds-checks against.
type FileSystemHeader struct {
	FilePathCount         atomic.Uint32
	FileInfoIndexCount    atomic.Uint32
	FileInfoCount         atomic.Uint32
	FileInfoSubIndexCount atomic.Uint32 // FileInfoToData records
	SubFileCount          atomic.Uint32 // FileData records
	DirCount              atomic.Uint32
}

// Arc is the resident archive container.
type Arc struct {
	Header          FileSystemHeader
	FilePaths       *Table[FilePath]
	FileInfoIndices *Table[FileInfoIndex]
	FileInfos       *Table[FileInfo]
	FileInfoToDatas *Table[FileInfoToData]
	FileDatas       *Table[FileData]
	DirInfos        *Table[DirInfo]

	indexOnce sync.Once
	pathIndex map[Hash40]uint32
	dirIndex  map[Hash40]uint32
}

// Tables holds the raw content of every container table.
type Tables struct {
	FilePaths       []FilePath
	FileInfoIndices []FileInfoIndex
	FileInfos       []FileInfo
	FileInfoToDatas []FileInfoToData
	FileDatas       []FileData
	DirInfos        []DirInfo
}

// New creates a container over the given tables with header counts matching
// their lengths.
func New(t Tables) *Arc {
	a := &Arc{
		FilePaths:       NewTable("FilePaths", t.FilePaths),
		FileInfoIndices: NewTable("FileInfoIndices", t.FileInfoIndices),
		FileInfos:       NewTable("FileInfos", t.FileInfos),
		FileInfoToDatas: NewTable("FileInfoToDatas", t.FileInfoToDatas),
		FileDatas:       NewTable("FileDatas", t.FileDatas),
		DirInfos:        NewTable("DirInfos", t.DirInfos),
	}
	a.SyncHeader()
	return a
}

// SyncHeader sets every header count to the current table length.
func (a *Arc) SyncHeader() {
	a.Header.FilePathCount.Store(uint32(a.FilePaths.Len()))
	a.Header.FileInfoIndexCount.Store(uint32(a.FileInfoIndices.Len()))
	a.Header.FileInfoCount.Store(uint32(a.FileInfos.Len()))
	a.Header.FileInfoSubIndexCount.Store(uint32(a.FileInfoToDatas.Len()))
	a.Header.SubFileCount.Store(uint32(a.FileDatas.Len()))
	a.Header.DirCount.Store(uint32(a.DirInfos.Len()))
}

// Snapshot copies the current content of every table.
func (a *Arc) Snapshot() Tables {
	return Tables{
		FilePaths:       a.FilePaths.Clone(),
		FileInfoIndices: a.FileInfoIndices.Clone(),
		FileInfos:       a.FileInfos.Clone(),
		FileInfoToDatas: a.FileInfoToDatas.Clone(),
		FileDatas:       a.FileDatas.Clone(),
		DirInfos:        a.DirInfos.Clone(),
	}
}

// buildIndex maps path and directory hashes to table positions. FilePaths
// and DirInfos never change length, so the index stays valid.
func (a *Arc) buildIndex() {
	a.indexOnce.Do(func() {
		paths := a.FilePaths.Load()
		a.pathIndex = make(map[Hash40]uint32, len(paths))
		for i, p := range paths {
			if _, ok := a.pathIndex[p.Path.Hash()]; !ok {
				a.pathIndex[p.Path.Hash()] = uint32(i)
			}
		}

		dirs := a.DirInfos.Load()
		a.dirIndex = make(map[Hash40]uint32, len(dirs))
		for i, d := range dirs {
			if _, ok := a.dirIndex[d.Path.Hash()]; !ok {
				a.dirIndex[d.Path.Hash()] = uint32(i)
			}
		}
	})
}

// FilePathIndex returns the FilePaths position of hash.
func (a *Arc) FilePathIndex(hash Hash40) (uint32, error) {
	a.buildIndex()
	idx, ok := a.pathIndex[hash]
	if !ok {
		return 0, fmt.Errorf("file path %s: %w", hash, ErrUnknownHash)
	}
	return idx, nil
}

// DirInfo returns the directory with the given path hash.
func (a *Arc) DirInfo(hash Hash40) (DirInfo, error) {
	a.buildIndex()
	idx, ok := a.dirIndex[hash]
	if !ok {
		return DirInfo{}, fmt.Errorf("directory %s: %w", hash, ErrUnknownHash)
	}
	return a.DirInfos.Get(idx)
}

// FileInfoIndexOf returns the FileInfoIndices slot of a FilePaths position.
func (a *Arc) FileInfoIndexOf(pathIndex uint32) (uint32, error) {
	p, err := a.FilePaths.Get(pathIndex)
	if err != nil {
		return 0, err
	}
	return p.Path.Index(), nil
}

// FileInfoForSlot returns the FileInfo linked from a FileInfoIndices slot
// together with its FileInfos position.
func (a *Arc) FileInfoForSlot(slot uint32) (FileInfo, uint32, error) {
	fii, err := a.FileInfoIndices.Get(slot)
	if err != nil {
		return FileInfo{}, 0, err
	}
	info, err := a.FileInfos.Get(fii.FileInfoIndex)
	if err != nil {
		return FileInfo{}, 0, err
	}
	return info, fii.FileInfoIndex, nil
}

// FileInfoForPath returns the FileInfo of the path at pathIndex.
func (a *Arc) FileInfoForPath(pathIndex uint32) (FileInfo, uint32, error) {
	slot, err := a.FileInfoIndexOf(pathIndex)
	if err != nil {
		return FileInfo{}, 0, err
	}
	return a.FileInfoForSlot(slot)
}

// InfoToDataIndex returns the FileInfoToDatas position used by info in region.
func InfoToDataIndex(info FileInfo, region Region) uint32 {
	if info.Flags.Has(FlagRegional) {
		return info.InfoToDataIndex + uint32(region)
	}
	return info.InfoToDataIndex
}

// FileInfoToData returns the region record of info.
func (a *Arc) FileInfoToData(info FileInfo, region Region) (FileInfoToData, error) {
	return a.FileInfoToDatas.Get(InfoToDataIndex(info, region))
}

// FileData returns the data record of info in region.
func (a *Arc) FileData(info FileInfo, region Region) (FileData, error) {
	i2d, err := a.FileInfoToData(info, region)
	if err != nil {
		return FileData{}, err
	}
	return a.FileDatas.Get(i2d.FileDataIndex)
}

// FileInDirectory finds the FileInfo inside dir that belongs to the
// FileInfoIndices slot.
func (a *Arc) FileInDirectory(dir DirInfo, slot uint32) (uint32, error) {
	infos := a.FileInfos.Load()
	end := uint64(dir.FileInfoStart) + uint64(dir.FileInfoCount)
	if end > uint64(len(infos)) {
		return 0, fmt.Errorf("directory %s range %d+%d of %d: %w",
			dir.Path.Hash(), dir.FileInfoStart, dir.FileInfoCount, len(infos), ErrOutOfBounds)
	}
	for i := dir.FileInfoStart; uint64(i) < end; i++ {
		if infos[i].FileInfoIndiceIndex == slot {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no file info for slot %d in directory %s: %w", slot, dir.Path.Hash(), ErrUnknownHash)
}

// Check verifies that the header counts equal the table lengths and that
// every FileInfoIndices slot resolves to file data in every region.
func (a *Arc) Check() error {
	counts := []struct {
		name  string
		count uint32
		len   int
	}{
		{"FilePaths", a.Header.FilePathCount.Load(), a.FilePaths.Len()},
		{"FileInfoIndices", a.Header.FileInfoIndexCount.Load(), a.FileInfoIndices.Len()},
		{"FileInfos", a.Header.FileInfoCount.Load(), a.FileInfos.Len()},
		{"FileInfoToDatas", a.Header.FileInfoSubIndexCount.Load(), a.FileInfoToDatas.Len()},
		{"FileDatas", a.Header.SubFileCount.Load(), a.FileDatas.Len()},
		{"DirInfos", a.Header.DirCount.Load(), a.DirInfos.Len()},
	}
	for _, c := range counts {
		if int(c.count) != c.len {
			return fmt.Errorf("%s: header count %d, table length %d", c.name, c.count, c.len)
		}
	}

	for i, p := range a.FilePaths.Load() {
		if _, err := a.FileInfoIndices.Get(p.Path.Index()); err != nil {
			return fmt.Errorf("file path %d: %w", i, err)
		}
	}

	for slot := range a.FileInfoIndices.Len() {
		info, _, err := a.FileInfoForSlot(uint32(slot))
		if err != nil {
			return fmt.Errorf("slot %d: %w", slot, err)
		}
		for region := Region(0); uint32(region) < info.Span(); region++ {
			if _, err := a.FileData(info, region); err != nil {
				return fmt.Errorf("slot %d region %s: %w", slot, region, err)
			}
		}
	}
	return nil
}
