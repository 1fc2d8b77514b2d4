package arc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// tableLengths precedes the tables in the binary form.
type tableLengths struct {
	FilePaths       uint32
	FileInfoIndices uint32
	FileInfos       uint32
	FileInfoToDatas uint32
	FileDatas       uint32
	DirInfos        uint32
	Table1          uint32
	Table2          uint32
}

// headerCounts stores the published counts, which may differ from the
// table lengths in a damaged container.
type headerCounts struct {
	FilePathCount         uint32
	FileInfoIndexCount    uint32
	FileInfoCount         uint32
	FileInfoSubIndexCount uint32
	SubFileCount          uint32
	DirCount              uint32
	Table1Len             uint32
	Table2Len             uint32
}

// table2Record is the fixed-size form of a Table2Entry. Buffers are not
// stored, only their size.
type table2Record struct {
	DataSize uint32
	RefCount uint32
	IsUsed   uint8
	State    FileState
	Flags    uint8
	_        uint8
	Version  uint16
	_        uint16
}

// MarshalBinary encodes the tables and counts.
func (lt *LoadedTables) MarshalBinary() ([]byte, error) {
	a := lt.Arc
	t := a.Snapshot()
	table1 := lt.Table1.Load()
	table2 := lt.Table2.Load()

	lengths := tableLengths{
		FilePaths:       uint32(len(t.FilePaths)),
		FileInfoIndices: uint32(len(t.FileInfoIndices)),
		FileInfos:       uint32(len(t.FileInfos)),
		FileInfoToDatas: uint32(len(t.FileInfoToDatas)),
		FileDatas:       uint32(len(t.FileDatas)),
		DirInfos:        uint32(len(t.DirInfos)),
		Table1:          uint32(len(table1)),
		Table2:          uint32(len(table2)),
	}
	counts := headerCounts{
		FilePathCount:         a.Header.FilePathCount.Load(),
		FileInfoIndexCount:    a.Header.FileInfoIndexCount.Load(),
		FileInfoCount:         a.Header.FileInfoCount.Load(),
		FileInfoSubIndexCount: a.Header.FileInfoSubIndexCount.Load(),
		SubFileCount:          a.Header.SubFileCount.Load(),
		DirCount:              a.Header.DirCount.Load(),
		Table1Len:             lt.Table1Len.Load(),
		Table2Len:             lt.Table2Len.Load(),
	}

	records := make([]table2Record, len(table2))
	for i, e := range table2 {
		records[i] = table2Record{
			DataSize: uint32(len(e.Data)),
			RefCount: e.RefCount,
			State:    e.State,
			Flags:    e.Flags,
			Version:  e.Version,
		}
		if e.IsUsed {
			records[i].IsUsed = 1
		}
	}

	buf := bytes.NewBuffer(nil)
	sections := []any{
		lengths,
		counts,
		t.FilePaths,
		t.FileInfoIndices,
		t.FileInfos,
		t.FileInfoToDatas,
		t.FileDatas,
		t.DirInfos,
		table1,
		records,
	}
	for _, section := range sections {
		if err := binary.Write(buf, binary.LittleEndian, section); err != nil {
			return nil, fmt.Errorf("write section: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes tables produced by MarshalBinary into lt,
// replacing its container.
func (lt *LoadedTables) UnmarshalBinary(data []byte) error {
	reader := bytes.NewReader(data)

	var lengths tableLengths
	if err := binary.Read(reader, binary.LittleEndian, &lengths); err != nil {
		return fmt.Errorf("read lengths: %w", err)
	}
	var counts headerCounts
	if err := binary.Read(reader, binary.LittleEndian, &counts); err != nil {
		return fmt.Errorf("read counts: %w", err)
	}

	// each record is at least 8 bytes, reject lengths the input cannot hold
	total := uint64(lengths.FilePaths) + uint64(lengths.FileInfoIndices) + uint64(lengths.FileInfos) +
		uint64(lengths.FileInfoToDatas) + uint64(lengths.FileDatas) + uint64(lengths.DirInfos) +
		uint64(lengths.Table1) + uint64(lengths.Table2)
	if total*8 > uint64(reader.Len()) {
		return fmt.Errorf("table lengths exceed %d bytes of input", reader.Len())
	}

	t := Tables{
		FilePaths:       makeTable[FilePath](lengths.FilePaths),
		FileInfoIndices: makeTable[FileInfoIndex](lengths.FileInfoIndices),
		FileInfos:       makeTable[FileInfo](lengths.FileInfos),
		FileInfoToDatas: makeTable[FileInfoToData](lengths.FileInfoToDatas),
		FileDatas:       makeTable[FileData](lengths.FileDatas),
		DirInfos:        makeTable[DirInfo](lengths.DirInfos),
	}
	table1 := makeTable[Table1Entry](lengths.Table1)
	records := makeTable[table2Record](lengths.Table2)

	sections := []struct {
		name string
		data any
	}{
		{"file paths", t.FilePaths},
		{"file info indices", t.FileInfoIndices},
		{"file infos", t.FileInfos},
		{"file info to datas", t.FileInfoToDatas},
		{"file datas", t.FileDatas},
		{"dir infos", t.DirInfos},
		{"table1", table1},
		{"table2", records},
	}
	for _, s := range sections {
		if err := binary.Read(reader, binary.LittleEndian, s.data); err != nil {
			return fmt.Errorf("read %s: %w", s.name, err)
		}
	}

	table2 := makeTable[Table2Entry](uint32(len(records)))
	for i, r := range records {
		table2[i] = Table2Entry{
			RefCount: r.RefCount,
			IsUsed:   r.IsUsed != 0,
			State:    r.State,
			Flags:    r.Flags,
			Version:  r.Version,
		}
	}

	a := New(t)
	a.Header.FilePathCount.Store(counts.FilePathCount)
	a.Header.FileInfoIndexCount.Store(counts.FileInfoIndexCount)
	a.Header.FileInfoCount.Store(counts.FileInfoCount)
	a.Header.FileInfoSubIndexCount.Store(counts.FileInfoSubIndexCount)
	a.Header.SubFileCount.Store(counts.SubFileCount)
	a.Header.DirCount.Store(counts.DirCount)

	lt.Arc = a
	lt.Table1 = NewTable("Table1", table1)
	lt.Table2 = NewTable("Table2", table2)
	lt.Table1Len.Store(counts.Table1Len)
	lt.Table2Len.Store(counts.Table2Len)
	return nil
}

// makeTable keeps an empty table nil, as it was before encoding.
func makeTable[T any](n uint32) []T {
	if n == 0 {
		return nil
	}
	return make([]T, n)
}
