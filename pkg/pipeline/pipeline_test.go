package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/pkg/arc"
	"github.com/goopsie/arcRedirect/pkg/arc/arctest"
	"github.com/goopsie/arcRedirect/pkg/hook"
	"github.com/goopsie/arcRedirect/pkg/modfiles"
	"github.com/goopsie/arcRedirect/pkg/offsets"
	"github.com/goopsie/arcRedirect/pkg/remap"
	"github.com/goopsie/arcRedirect/pkg/replace"
)

const (
	textBase   = 0x7100000000
	modelPath  = "fighter/marth/model/body/c00/model.numdlb"
	sharedPath = "fighter/marth/model/body/c01/model.numdlb"
	otherPath  = "fighter/marth/motion/body/c00/motion_list.bin"
)

var hookOffsets = map[string]uint64{
	offsets.Inflate:            0x100,
	offsets.Memcpy1:            0x200,
	offsets.Memcpy2:            0x300,
	offsets.Memcpy3:            0x400,
	offsets.InflateDirFile:     0x500,
	offsets.LoadingIncoming:    0x600,
	offsets.InitialLoading:     0x700,
	offsets.TitleScreenVersion: 0x800,
}

func offsetTable() *offsets.Table {
	var entries []offsets.Entry
	for name, offset := range hookOffsets {
		entries = append(entries, offsets.Entry{Name: name, Offset: offset, Source: offsets.Signature})
	}
	return offsets.NewTable(entries...)
}

func addr(name string) uint64 {
	return textBase + hookOffsets[name]
}

type fixture struct {
	tables     *arc.LoadedTables
	pipeline   *Pipeline
	dispatcher *hook.Dispatcher
	content    []byte
	titleText  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.NewTestLogger(t)

	b := arctest.NewBuilder()
	model := b.File(modelPath, 0x200, false)
	b.Share(sharedPath, model)
	b.File(otherPath, 0x100, false)
	tables := b.Loaded()

	content := bytes.Repeat([]byte{0x5A}, 0x80)
	dir := t.TempDir()
	p := filepath.Join(dir, filepath.FromSlash(sharedPath))
	assert.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	assert.NoError(t, os.WriteFile(p, content, 0o644))

	discover := func(tables *arc.LoadedTables) (replace.Provider, error) {
		mods, err := modfiles.Scan(logger, dir, tables)
		if err != nil {
			return nil, err
		}
		return mods, nil
	}

	f := &fixture{
		tables:     tables,
		dispatcher: hook.NewDispatcher(logger),
		content:    content,
	}
	f.pipeline = New(logger, Config{
		Version: "1.2.0",
		Remap:   []remap.Target{{Path: sharedPath}},
	}, tables, discover)

	f.dispatcher.Define(addr(offsets.InflateDirFile), func(hook.Call) uint64 {
		return 0x55
	})
	f.dispatcher.Define(addr(offsets.TitleScreenVersion), func(call hook.Call) uint64 {
		s, err := call.Mem.CString(call.X[1])
		assert.NoError(t, err)
		f.titleText = s
		return 0
	})

	assert.NoError(t, f.pipeline.Install(f.dispatcher, offsetTable(), textBase))
	return f
}

func (f *fixture) slotOf(t *testing.T, p string) uint32 {
	t.Helper()
	idx, err := f.tables.Arc.FilePathIndex(arc.HashPath(p))
	assert.NoError(t, err)
	return f.tables.Arc.FilePaths.Load()[idx].Path.Index()
}

// announce runs the inflate hook for the FileInfo of slot.
func (f *fixture) announce(t *testing.T, slot uint32) {
	t.Helper()
	fii, err := f.tables.Arc.FileInfoIndices.Get(slot)
	assert.NoError(t, err)

	f.tables.ResService.ProcessingFileIdxStart.Store(0)
	if fii.FileInfoIndex > 0 {
		f.tables.ResService.ProcessingFileIdxStart.Store(1)
	}
	ctx := &hook.InlineCtx{}
	ctx.X[27] = uint64(fii.FileInfoIndex - f.tables.ResService.ProcessingFileIdxStart.Load())
	assert.Equal(t, 1, f.dispatcher.Step(addr(offsets.Inflate), ctx))
}

func TestPipeline(t *testing.T) {
	f := newFixture(t)
	assert.Len(t, f.dispatcher.Installed(), len(hookOffsets))

	oldSlot := f.slotOf(t, sharedPath)
	slots := f.tables.Arc.FileInfoIndices.Len()
	f.dispatcher.Step(addr(offsets.InitialLoading), &hook.InlineCtx{})

	newSlot := f.slotOf(t, sharedPath)
	assert.True(t, newSlot != oldSlot)
	assert.Equal(t, slots+1, f.tables.Arc.FileInfoIndices.Len())
	assert.Equal(t, oldSlot, f.slotOf(t, modelPath))

	t.Run("InitialLoadingOnce", func(t *testing.T) {
		f.dispatcher.Step(addr(offsets.InitialLoading), &hook.InlineCtx{})
		assert.Equal(t, slots+1, f.tables.Arc.FileInfoIndices.Len())
	})

	t.Run("CommitWithoutBuffer", func(t *testing.T) {
		f.announce(t, newSlot)
		pending, ok := f.pipeline.Slot().Pending()
		assert.True(t, ok)
		assert.Equal(t, newSlot, pending)

		f.dispatcher.Step(addr(offsets.Memcpy1), &hook.InlineCtx{})
		entry, err := f.tables.Slot(newSlot)
		assert.NoError(t, err)
		assert.True(t, entry.Data == nil)
	})

	t.Run("Commit", func(t *testing.T) {
		for _, site := range []string{offsets.Memcpy1, offsets.Memcpy2, offsets.Memcpy3} {
			assert.NoError(t, f.tables.SetSlotData(newSlot, bytes.Repeat([]byte{0xEE}, 0x200)))
			f.announce(t, newSlot)
			f.dispatcher.Step(addr(site), &hook.InlineCtx{})

			entry, err := f.tables.Slot(newSlot)
			assert.NoError(t, err)
			assert.True(t, bytes.Equal(f.content, entry.Data[:0x80]))
			assert.True(t, bytes.Equal(make([]byte, 0x180), entry.Data[0x80:]))
		}

		// the siblings keep their content
		entry, err := f.tables.Slot(oldSlot)
		assert.NoError(t, err)
		assert.True(t, bytes.Equal(make([]byte, 0x200), entry.Data))
	})

	t.Run("UnknownFileSuppresses", func(t *testing.T) {
		f.announce(t, newSlot)
		f.announce(t, f.slotOf(t, otherPath))
		_, ok := f.pipeline.Slot().Pending()
		assert.False(t, ok)

		before := f.pipeline.Stats()
		f.dispatcher.Step(addr(offsets.Memcpy3), &hook.InlineCtx{})
		assert.Equal(t, before, f.pipeline.Stats())
	})

	t.Run("AnnounceOutOfRange", func(t *testing.T) {
		f.announce(t, newSlot)
		f.tables.ResService.ProcessingFileIdxStart.Store(1000)
		f.dispatcher.Step(addr(offsets.Inflate), &hook.InlineCtx{})
		_, ok := f.pipeline.Slot().Pending()
		assert.False(t, ok)
	})

	t.Run("LoadDirectory", func(t *testing.T) {
		assert.NoError(t, f.tables.SetSlotData(newSlot, bytes.Repeat([]byte{0xEE}, 0x200)))
		f.announce(t, newSlot)

		result, err := f.dispatcher.Call(addr(offsets.InflateDirFile), 0, 0, 0)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0x55), result)

		entry, err := f.tables.Slot(newSlot)
		assert.NoError(t, err)
		assert.True(t, bytes.Equal(f.content, entry.Data[:0x80]))
	})

	t.Run("LoadDirectorySkipsSlotZero", func(t *testing.T) {
		f.pipeline.Slot().Announce(0)
		before := f.pipeline.Stats()
		_, err := f.dispatcher.Call(addr(offsets.InflateDirFile))
		assert.NoError(t, err)
		assert.Equal(t, before, f.pipeline.Stats())

		// a plain commit does not skip it
		f.dispatcher.Step(addr(offsets.Memcpy1), &hook.InlineCtx{})
		assert.Equal(t, before.Failed+1, f.pipeline.Stats().Failed)
	})

	t.Run("Trace", func(t *testing.T) {
		ctx := &hook.InlineCtx{}
		ctx.X[25] = 1
		assert.Equal(t, 1, f.dispatcher.Step(addr(offsets.LoadingIncoming), ctx))
		ctx.X[25] = 999
		assert.Equal(t, 1, f.dispatcher.Step(addr(offsets.LoadingIncoming), ctx))
	})

	t.Run("TitleScreenVersion", func(t *testing.T) {
		ptr, err := f.dispatcher.Memory().AllocCString("Ver. 13.0.1")
		assert.NoError(t, err)
		_, err = f.dispatcher.Call(addr(offsets.TitleScreenVersion), 0, ptr)
		assert.NoError(t, err)
		assert.Equal(t, "Ver. 13.0.1\narcRedirect Ver. 1.2.0", f.titleText)

		ptr, err = f.dispatcher.Memory().AllocCString("Press any button")
		assert.NoError(t, err)
		_, err = f.dispatcher.Call(addr(offsets.TitleScreenVersion), 0, ptr)
		assert.NoError(t, err)
		assert.Equal(t, "Press any button", f.titleText)
	})
}

func TestHost(t *testing.T) {
	f := newFixture(t)
	host := NewHost(f.dispatcher, f.tables, offsetTable(), textBase, arc.RegionNone)

	assert.NoError(t, host.Boot())
	shared := f.slotOf(t, sharedPath)
	assert.True(t, shared != f.slotOf(t, modelPath))

	t.Run("Substitutes", func(t *testing.T) {
		for _, site := range CommitSites {
			data, err := host.Load(shared, site)
			assert.NoError(t, err)
			assert.Len(t, data, 0x200)
			assert.True(t, bytes.Equal(f.content, data[:0x80]))
			assert.True(t, bytes.Equal(make([]byte, 0x180), data[0x80:]))
		}
		assert.Equal(t, uint64(len(CommitSites)), f.pipeline.Stats().Replaced)
	})

	t.Run("BatchStart", func(t *testing.T) {
		// a batch that started past the FileInfo is rewound
		f.tables.ResService.ProcessingFileIdxStart.Store(1000)
		data, err := host.Load(shared, offsets.Memcpy2)
		assert.NoError(t, err)
		assert.True(t, bytes.Equal(f.content, data[:0x80]))
		assert.Equal(t, uint32(0), f.tables.ResService.ProcessingFileIdxStart.Load())
	})

	t.Run("NoSubstitute", func(t *testing.T) {
		suppressed := f.pipeline.Stats().Suppressed
		data, err := host.Load(f.slotOf(t, modelPath), offsets.Memcpy1)
		assert.NoError(t, err)
		assert.True(t, bytes.Equal(make([]byte, 0x200), data))
		assert.Equal(t, suppressed+1, f.pipeline.Stats().Suppressed)
	})

	t.Run("NotInstalled", func(t *testing.T) {
		bare := NewHost(hook.NewDispatcher(log.NewTestLogger(t)), f.tables, offsetTable(), textBase, arc.RegionNone)
		assert.True(t, errors.Is(bare.Boot(), ErrNotInstalled))

		_, err := host.Load(shared, offsets.InflateDirFile)
		assert.True(t, errors.Is(err, ErrNotInstalled))

		unset := NewHost(f.dispatcher, f.tables, offsets.NewTable(), textBase, arc.RegionNone)
		_, err = unset.Load(shared, offsets.Memcpy1)
		assert.True(t, errors.Is(err, ErrNotInstalled))
	})
}

func TestAnnounceBeforeDiscovery(t *testing.T) {
	f := newFixture(t)
	f.announce(t, f.slotOf(t, modelPath))
	_, ok := f.pipeline.Slot().Pending()
	assert.False(t, ok)
	assert.Equal(t, uint64(1), f.pipeline.Stats().Suppressed)
}

func TestDiscoveryFailure(t *testing.T) {
	b := arctest.NewBuilder()
	model := b.File(modelPath, 0x200, false)
	tables := b.Loaded()

	// initialization failures log at error level, which fails a test logger
	p := New(log.NewNop(), Config{
		Remap: []remap.Target{{Path: "missing/file.bin"}},
	}, tables, func(*arc.LoadedTables) (replace.Provider, error) {
		return nil, errors.New("mod directory missing")
	})
	p.Initialize()
	assert.True(t, p.substituter.Load() == nil)

	_, fileInfo, err := tables.Arc.FileInfoForPath(model)
	assert.NoError(t, err)
	p.Announce(fileInfo)
	_, ok := p.Slot().Pending()
	assert.False(t, ok)
	assert.Equal(t, uint64(1), p.Stats().Suppressed)
}

func TestInstall(t *testing.T) {
	t.Run("SkipsUnsetOffsets", func(t *testing.T) {
		logger := log.NewTestLogger(t)
		p := New(logger, Config{}, arctest.NewBuilder().Loaded(), nil)
		d := hook.NewDispatcher(logger)

		table := offsets.NewTable(
			offsets.Entry{Name: offsets.Inflate, Offset: 0x10, Source: offsets.Pattern},
			offsets.Entry{Name: offsets.Memcpy1},
		)
		assert.NoError(t, p.Install(d, table, textBase))

		installed := d.Installed()
		assert.Len(t, installed, 1)
		assert.Equal(t, uint64(textBase+0x10), installed[0].Addr)
	})

	t.Run("CollectsErrors", func(t *testing.T) {
		f := newFixture(t)
		err := f.pipeline.Install(f.dispatcher, offsetTable(), textBase)
		assert.True(t, errors.Is(err, hook.ErrDoubleHook))
		assert.ErrorContains(t, err, offsets.InflateDirFile)
		assert.ErrorContains(t, err, offsets.TitleScreenVersion)
	})
}

func TestVersionString(t *testing.T) {
	p := New(log.NewTestLogger(t), Config{Name: "mods", Version: "0.9"}, arctest.NewBuilder().Loaded(), nil)

	s, ok := p.VersionString("Ver. 9.0.1")
	assert.True(t, ok)
	assert.Equal(t, "Ver. 9.0.1\nmods Ver. 0.9", s)

	s, ok = p.VersionString("Settings")
	assert.False(t, ok)
	assert.Equal(t, "Settings", s)
}

func TestSlot(t *testing.T) {
	var s Slot
	_, ok := s.Pending()
	assert.False(t, ok)

	s.Announce(7)
	s.Announce(9)
	idx, ok := s.Pending()
	assert.True(t, ok)
	assert.Equal(t, uint32(9), idx)

	// reading does not consume
	idx, ok = s.Pending()
	assert.True(t, ok)
	assert.Equal(t, uint32(9), idx)

	s.Suppress()
	_, ok = s.Pending()
	assert.False(t, ok)
}
