package arc

import "fmt"

// FilePath is one logical path. Path.Index is the FileInfoIndices slot.
type FilePath struct {
	Path     HashToIndex
	Ext      HashToIndex
	Parent   HashToIndex
	FileName HashToIndex
}

// FileInfoIndex links a FileInfoIndices slot to a FileInfo.
type FileInfoIndex struct {
	DirOffsetIndex uint32
	FileInfoIndex  uint32
}

// FileInfoFlags are the flag bits of a FileInfo.
type FileInfoFlags uint32

const (
	// FlagRedirect marks shared files, and entries split off by the remapper.
	FlagRedirect FileInfoFlags = 0x10
	// FlagRegional marks a FileInfo with one data record per region.
	FlagRegional FileInfoFlags = 0x8000
	// FlagLocalized marks a FileInfo with per-language data.
	FlagLocalized FileInfoFlags = 0x10000
)

// Has reports whether all bits of f are set.
func (fl FileInfoFlags) Has(f FileInfoFlags) bool {
	return fl&f == f
}

// FileInfo describes one physical sub-file.
type FileInfo struct {
	FilePathIndex       uint32
	FileInfoIndiceIndex uint32 // also the load-state slot
	InfoToDataIndex     uint32
	Flags               FileInfoFlags
}

// Span returns the number of FileInfoToData records the FileInfo owns.
func (fi FileInfo) Span() uint32 {
	if fi.Flags.Has(FlagRegional) {
		return RegionCount
	}
	return 1
}

// FileInfoToData maps a FileInfo to the data record of one region.
type FileInfoToData struct {
	FolderOffsetIndex    uint32
	FileDataIndex        uint32
	FileInfoIndexAndFlag uint32
}

// FileData describes where a sub-file lives in the archive blob.
type FileData struct {
	OffsetInFolder uint32
	CompSize       uint32
	DecompSize     uint32
	Flags          uint32
}

// DirInfo groups the FileInfos of a directory.
type DirInfo struct {
	Path          HashToIndex
	Name          Hash40
	Parent        Hash40
	FileInfoStart uint32
	FileInfoCount uint32
	ChildStart    uint32
	ChildCount    uint32
	Flags         uint32
}

// Region selects the localized variant of a regional file.
type Region uint32

// RegionCount is the number of data records of a regional FileInfo.
const RegionCount = 15

const (
	RegionNone Region = iota
	RegionJapanese
	RegionUsEnglish
	RegionUsFrench
	RegionUsSpanish
	RegionEuEnglish
	RegionEuFrench
	RegionEuSpanish
	RegionEuGerman
	RegionEuDutch
	RegionEuItalian
	RegionEuRussian
	RegionKorean
	RegionChinaChinese
	RegionTaiwanChinese
)

var regionNames = [RegionCount]string{
	"none", "jp_ja", "us_en", "us_fr", "us_es", "eu_en", "eu_fr", "eu_es",
	"eu_de", "eu_nl", "eu_it", "eu_ru", "kr_ko", "zh_cn", "zh_tw",
}

func (r Region) String() string {
	if r >= RegionCount {
		return fmt.Sprintf("Region(%d)", uint32(r))
	}
	return regionNames[r]
}

// ParseRegion parses a region code such as "us_en".
func ParseRegion(s string) (Region, error) {
	for i, name := range regionNames {
		if name == s {
			return Region(i), nil
		}
	}
	return RegionNone, fmt.Errorf("unknown region %q", s)
}

// FileState is the load state of a load-state slot.
type FileState uint8

const (
	StateUnused FileState = iota
	StateUnloaded
	StateUnknown
	StateLoaded
)

// Table1Entry is the per-path runtime record.
type Table1Entry struct {
	Table2Index uint32
	InTable2    uint32
}

// Table2Entry is a load-state slot. Data is the buffer the loader filled for
// the slot; nil stands for a null pointer.
type Table2Entry struct {
	Data     []byte
	RefCount uint32
	IsUsed   bool
	State    FileState
	Flags    uint8
	Version  uint16
}
