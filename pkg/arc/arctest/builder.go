// Package arctest builds small archive containers for tests.
package arctest

import (
	"path"
	"slices"

	"github.com/goopsie/arcRedirect/pkg/arc"
)

// Builder assembles container tables one path at a time.
type Builder struct {
	t arc.Tables
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) addPath(p string, slot uint32) uint32 {
	idx := uint32(len(b.t.FilePaths))
	b.t.FilePaths = append(b.t.FilePaths, arc.FilePath{
		Path:     arc.NewHashToIndex(arc.HashPath(p), slot),
		Ext:      arc.NewHashToIndex(arc.HashPath(path.Ext(p)), 0),
		Parent:   arc.NewHashToIndex(arc.HashPath(path.Dir(p)), 0),
		FileName: arc.NewHashToIndex(arc.HashPath(path.Base(p)), 0),
	})
	return idx
}

// File adds a path with its own FileInfoIndices slot, FileInfo and data
// records and returns its FilePaths position. A regional file gets one data
// record per region, each decompSize bytes large.
func (b *Builder) File(p string, decompSize uint32, regional bool) uint32 {
	slot := uint32(len(b.t.FileInfoIndices))
	pathIdx := b.addPath(p, slot)

	info := arc.FileInfo{
		FilePathIndex:       pathIdx,
		FileInfoIndiceIndex: slot,
		InfoToDataIndex:     uint32(len(b.t.FileInfoToDatas)),
	}
	if regional {
		info.Flags |= arc.FlagRegional
	}

	b.t.FileInfoIndices = append(b.t.FileInfoIndices, arc.FileInfoIndex{
		DirOffsetIndex: slot,
		FileInfoIndex:  uint32(len(b.t.FileInfos)),
	})
	b.t.FileInfos = append(b.t.FileInfos, info)

	for region := range info.Span() {
		b.t.FileInfoToDatas = append(b.t.FileInfoToDatas, arc.FileInfoToData{
			FolderOffsetIndex: slot,
			FileDataIndex:     uint32(len(b.t.FileDatas)),
		})
		b.t.FileDatas = append(b.t.FileDatas, arc.FileData{
			OffsetInFolder: uint32(len(b.t.FileDatas)) * 0x100,
			CompSize:       decompSize / 2,
			DecompSize:     decompSize,
			Flags:          region,
		})
	}
	return pathIdx
}

// Share adds a path that reuses the FileInfoIndices slot of the path at
// of and marks the shared FileInfo.
func (b *Builder) Share(p string, of uint32) uint32 {
	slot := b.t.FilePaths[of].Path.Index()
	info := b.t.FileInfoIndices[slot].FileInfoIndex
	b.t.FileInfos[info].Flags |= arc.FlagRedirect
	return b.addPath(p, slot)
}

// Dir adds a directory whose FileInfo range holds one entry per member
// path, each a copy of the member's FileInfo owned by the member path.
func (b *Builder) Dir(p string, members ...uint32) {
	start := uint32(len(b.t.FileInfos))
	for _, m := range members {
		slot := b.t.FilePaths[m].Path.Index()
		info := b.t.FileInfos[b.t.FileInfoIndices[slot].FileInfoIndex]
		info.FilePathIndex = m
		b.t.FileInfos = append(b.t.FileInfos, info)
	}
	b.t.DirInfos = append(b.t.DirInfos, arc.DirInfo{
		Path:          arc.NewHashToIndex(arc.HashPath(p), uint32(len(b.t.DirInfos))),
		Name:          arc.HashPath(path.Base(p)),
		Parent:        arc.HashPath(path.Dir(p)),
		FileInfoStart: start,
		FileInfoCount: uint32(len(members)),
	})
}

// Arc builds the container.
func (b *Builder) Arc() *arc.Arc {
	return arc.New(b.Tables())
}

// Loaded builds the container with runtime tables. Every load-state slot
// holds a buffer of its region-0 decompressed size.
func (b *Builder) Loaded() *arc.LoadedTables {
	a := b.Arc()
	table2 := make([]arc.Table2Entry, len(b.t.FileInfoIndices))
	for slot := range table2 {
		info, _, err := a.FileInfoForSlot(uint32(slot))
		if err != nil {
			continue
		}
		data, err := a.FileData(info, arc.RegionNone)
		if err != nil {
			continue
		}
		table2[slot] = arc.Table2Entry{
			Data:    make([]byte, data.DecompSize),
			IsUsed:  true,
			State:   arc.StateLoaded,
			Version: 0xFFFF,
		}
	}
	return arc.NewLoadedTables(a, nil, table2)
}

// Tables returns copies of the tables built so far.
func (b *Builder) Tables() arc.Tables {
	return arc.Tables{
		FilePaths:       slices.Clone(b.t.FilePaths),
		FileInfoIndices: slices.Clone(b.t.FileInfoIndices),
		FileInfos:       slices.Clone(b.t.FileInfos),
		FileInfoToDatas: slices.Clone(b.t.FileInfoToDatas),
		FileDatas:       slices.Clone(b.t.FileDatas),
		DirInfos:        slices.Clone(b.t.DirInfos),
	}
}
