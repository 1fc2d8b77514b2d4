// Package remap gives a shared archive path its own FileInfoIndices slot so
// its content can be substituted without touching the paths it shared with.
//
// All new tables are built in private storage first. The commit then
// publishes each table pointer and only afterwards raises the header counts,
// so a concurrent reader never sees a count larger than the table it loaded.
// Superseded storage is never reused: readers that loaded it keep a valid
// view for as long as they hold it.
package remap

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/pkg/arc"
)

// ErrNotShared reports that the target FileInfo did not carry the shared
// flag. Unshare proceeds regardless and only reports it in Result.
var ErrNotShared = errors.New("file is not flagged as shared")

// Remapper performs unshare operations on a live container.
type Remapper struct {
	logger *log.Logger
	tables *arc.LoadedTables
	mu     sync.Mutex // serializes build and commit
}

// New creates a remapper for tables.
func New(logger *log.Logger, tables *arc.LoadedTables) *Remapper {
	return &Remapper{
		logger: logger,
		tables: tables,
	}
}

type request struct {
	dir    arc.Hash40
	hasDir bool
}

// Option configures a single Unshare call.
type Option func(*request)

// WithDirectory selects the target FileInfo from the FileInfo range of the
// directory with the given hash instead of the one linked from the path's
// current slot.
func WithDirectory(dir arc.Hash40) Option {
	return func(r *request) {
		r.dir = dir
		r.hasDir = true
	}
}

// Result describes a committed unshare.
type Result struct {
	Path          arc.Hash40
	FilePathIndex uint32
	OldSlot       uint32 // previous FileInfoIndices slot, still used by siblings
	NewSlot       uint32 // appended FileInfoIndices and load-state slot
	NewFileInfo   uint32
	Shared        bool // whether the source FileInfo carried the shared flag
}

// plan holds every new table before it is published.
type plan struct {
	result          Result
	filePaths       []arc.FilePath
	fileInfoIndices []arc.FileInfoIndex
	fileInfos       []arc.FileInfo
	fileInfoToDatas []arc.FileInfoToData
	fileDatas       []arc.FileData
	table1          []arc.Table1Entry
	table2          []arc.Table2Entry
}

// UnsharePath is Unshare for a path string.
func (r *Remapper) UnsharePath(path string, opts ...Option) (Result, error) {
	return r.Unshare(arc.HashPath(path), opts...)
}

// Unshare grants the path with the given hash an independent
// FileInfoIndices slot. Nothing is modified when an error is returned.
func (r *Remapper) Unshare(path arc.Hash40, opts ...Option) (Result, error) {
	var req request
	for _, opt := range opts {
		opt(&req)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.build(path, req)
	if err != nil {
		r.logger.Error("Unshare aborted, container left untouched",
			log.Stringer("path", path),
			log.Err(err))
		return Result{}, err
	}

	r.commit(p)

	r.logger.Debug("Unshared file",
		log.Stringer("path", path),
		log.Int("old_slot", int(p.result.OldSlot)),
		log.Int("new_slot", int(p.result.NewSlot)),
		log.Int("file_info_indices", len(p.fileInfoIndices)),
		log.Int("file_infos", len(p.fileInfos)),
		log.Int("file_info_to_datas", len(p.fileInfoToDatas)),
		log.Int("file_datas", len(p.fileDatas)))
	if !p.result.Shared {
		r.logger.Warn("Unshared file", log.Stringer("path", path), log.Err(ErrNotShared))
	}
	return p.result, nil
}

func (r *Remapper) build(path arc.Hash40, req request) (*plan, error) {
	a := r.tables.Arc

	pathIdx, err := a.FilePathIndex(path)
	if err != nil {
		return nil, err
	}

	paths := a.FilePaths.Load()
	fileInfoIndices := a.FileInfoIndices.Load()
	fileInfos := a.FileInfos.Load()
	fileInfoToDatas := a.FileInfoToDatas.Load()
	fileDatas := a.FileDatas.Load()
	table1 := r.tables.Table1.Load()
	table2 := r.tables.Table2.Load()

	if uint64(pathIdx) >= uint64(len(paths)) {
		return nil, fmt.Errorf("file path %d of %d: %w", pathIdx, len(paths), arc.ErrOutOfBounds)
	}
	oldSlot := paths[pathIdx].Path.Index()
	if uint64(oldSlot) >= uint64(len(fileInfoIndices)) {
		return nil, fmt.Errorf("slot %d of %d: %w", oldSlot, len(fileInfoIndices), arc.ErrOutOfBounds)
	}

	infoIdx := fileInfoIndices[oldSlot].FileInfoIndex
	if req.hasDir {
		dir, err := a.DirInfo(req.dir)
		if err != nil {
			return nil, err
		}
		if infoIdx, err = a.FileInDirectory(dir, oldSlot); err != nil {
			return nil, err
		}
	}
	if uint64(infoIdx) >= uint64(len(fileInfos)) {
		return nil, fmt.Errorf("file info %d of %d: %w", infoIdx, len(fileInfos), arc.ErrOutOfBounds)
	}
	original := fileInfos[infoIdx]

	span := original.Span()
	if uint64(original.InfoToDataIndex)+uint64(span) > uint64(len(fileInfoToDatas)) {
		return nil, fmt.Errorf("file info to data %d+%d of %d: %w",
			original.InfoToDataIndex, span, len(fileInfoToDatas), arc.ErrOutOfBounds)
	}

	newSlot := uint32(len(fileInfoIndices))
	newInfo := uint32(len(fileInfos))
	newInfoToData := uint32(len(fileInfoToDatas))
	newData := uint32(len(fileDatas))

	p := &plan{
		result: Result{
			Path:          path,
			FilePathIndex: pathIdx,
			OldSlot:       oldSlot,
			NewSlot:       newSlot,
			NewFileInfo:   newInfo,
			Shared:        original.Flags.Has(arc.FlagRedirect),
		},
	}

	// FileInfoIndices: a copy of the old slot pointing at the new FileInfo.
	fii := fileInfoIndices[oldSlot]
	fii.FileInfoIndex = newInfo
	p.fileInfoIndices = arc.Grow(fileInfoIndices, fii)

	// FileInfos: a copy of the original owned by the path and the new slot.
	info := original
	info.FilePathIndex = pathIdx
	info.FileInfoIndiceIndex = newSlot
	info.InfoToDataIndex = newInfoToData
	info.Flags |= arc.FlagRedirect
	p.fileInfos = arc.Grow(fileInfos, info)

	// FileInfoToDatas and FileDatas: copies of every region record.
	var toDatas []arc.FileInfoToData
	var datas []arc.FileData
	for k := range span {
		i2d := fileInfoToDatas[original.InfoToDataIndex+k]
		if uint64(i2d.FileDataIndex) >= uint64(len(fileDatas)) {
			return nil, fmt.Errorf("file data %d of %d: %w", i2d.FileDataIndex, len(fileDatas), arc.ErrOutOfBounds)
		}
		datas = append(datas, fileDatas[i2d.FileDataIndex])
		i2d.FileDataIndex = newData + k
		toDatas = append(toDatas, i2d)
	}
	p.fileInfoToDatas = arc.Grow(fileInfoToDatas, toDatas...)
	p.fileDatas = arc.Grow(fileDatas, datas...)

	// Load state: slot 0's state as a placeholder, without its buffer.
	var placeholder arc.Table2Entry
	if len(table2) > 0 {
		placeholder = table2[0]
		placeholder.Data = nil
		placeholder.IsUsed = false
		placeholder.RefCount = 0
	}
	p.table2 = arc.Grow(table2, placeholder)

	// FilePaths and Table1: the path now points at the new slot.
	p.filePaths = slices.Clone(paths)
	p.filePaths[pathIdx].Path = p.filePaths[pathIdx].Path.WithIndex(newSlot)
	p.table1 = slices.Clone(table1)
	if uint64(pathIdx) < uint64(len(table1)) {
		p.table1[pathIdx].Table2Index = newSlot
	}

	return p, nil
}

// commit publishes the plan. Appended tables go first so the rewritten path
// never points past a published table; counts go last.
func (r *Remapper) commit(p *plan) {
	a := r.tables.Arc

	a.FileDatas.Swap(p.fileDatas)
	a.FileInfoToDatas.Swap(p.fileInfoToDatas)
	a.FileInfos.Swap(p.fileInfos)
	a.FileInfoIndices.Swap(p.fileInfoIndices)
	r.tables.Table2.Swap(p.table2)
	a.FilePaths.Swap(p.filePaths)
	r.tables.Table1.Swap(p.table1)

	a.Header.SubFileCount.Store(uint32(len(p.fileDatas)))
	a.Header.FileInfoSubIndexCount.Store(uint32(len(p.fileInfoToDatas)))
	a.Header.FileInfoCount.Store(uint32(len(p.fileInfos)))
	a.Header.FileInfoIndexCount.Store(uint32(len(p.fileInfoIndices)))
	r.tables.Table2Len.Store(uint32(len(p.table2)))
	r.tables.Table1Len.Store(uint32(len(p.table1)))
}

// Target names a path to unshare and optionally the directory whose
// FileInfo it should take.
type Target struct {
	Path      string `mapstructure:"path"`
	Directory string `mapstructure:"directory"`
}

// UnshareAll unshares every target. A failing target is skipped and the
// remaining ones are still processed; the failures are joined in the error.
func (r *Remapper) UnshareAll(targets []Target) ([]Result, error) {
	var results []Result
	var errs []error

	for _, target := range targets {
		var opts []Option
		if target.Directory != "" {
			opts = append(opts, WithDirectory(arc.HashPath(target.Directory)))
		}

		res, err := r.UnsharePath(target.Path, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("unshare %s: %w", target.Path, err))
			continue
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}
