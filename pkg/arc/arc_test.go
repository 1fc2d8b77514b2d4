package arc_test

import (
	"errors"
	"testing"

	"github.com/go-test/deep"
	"github.com/retroenv/retrogolib/assert"

	"github.com/goopsie/arcRedirect/pkg/arc"
	"github.com/goopsie/arcRedirect/pkg/arc/arctest"
)

func TestHash40(t *testing.T) {
	t.Run("HashPath", func(t *testing.T) {
		assert.Equal(t, arc.Hash40(0x03352441c2), arc.HashPath("abc"))
		assert.Equal(t, arc.HashPath("abc"), arc.HashPath("ABC"))
		assert.Equal(t, "0x03352441c2", arc.HashPath("abc").String())
	})

	t.Run("HashToIndex", func(t *testing.T) {
		h := arc.NewHashToIndex(arc.HashPath("abc"), 0x123456)
		assert.Equal(t, arc.HashPath("abc"), h.Hash())
		assert.Equal(t, uint32(0x123456), h.Index())

		moved := h.WithIndex(7)
		assert.Equal(t, h.Hash(), moved.Hash())
		assert.Equal(t, uint32(7), moved.Index())
	})

	t.Run("IndexTruncatedTo24Bits", func(t *testing.T) {
		h := arc.NewHashToIndex(0, 0x1FFFFFF)
		assert.Equal(t, uint32(0xFFFFFF), h.Index())
	})
}

func TestTable(t *testing.T) {
	table := arc.NewTable("Numbers", []int{1, 2, 3})

	v, err := table.Get(2)
	assert.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = table.Get(3)
	assert.True(t, errors.Is(err, arc.ErrOutOfBounds))
	assert.ErrorContains(t, err, "Numbers[3] of 3")

	grown := table.Grow(4)
	assert.Equal(t, 3, table.Len())
	assert.Len(t, grown, 4)

	reader := table.Load()
	old := table.Swap(grown)
	assert.Equal(t, 4, table.Len())
	if diff := deep.Equal(old, reader); diff != nil {
		t.Error(diff)
	}
	// storage held by an earlier reader is left intact
	if diff := deep.Equal(reader, []int{1, 2, 3}); diff != nil {
		t.Error(diff)
	}
}

func newFixture() (*arc.Arc, uint32, uint32) {
	b := arctest.NewBuilder()
	model := b.File("fighter/marth/model/body/c00/model.numshb", 0x400, false)
	b.File("fighter/marth/model/body/c00/def_marth_001_col.nutexb", 0x1000, true)
	shared := b.Share("fighter/marth/model/body/c01/model.numshb", model)
	b.Dir("fighter/marth/c00", model)
	return b.Arc(), model, shared
}

func TestArcLookup(t *testing.T) {
	a, model, shared := newFixture()
	assert.NoError(t, a.Check())

	t.Run("FilePathIndex", func(t *testing.T) {
		idx, err := a.FilePathIndex(arc.HashPath("fighter/marth/model/body/c01/model.numshb"))
		assert.NoError(t, err)
		assert.Equal(t, shared, idx)

		_, err = a.FilePathIndex(arc.HashPath("fighter/marth/missing"))
		assert.True(t, errors.Is(err, arc.ErrUnknownHash))
	})

	t.Run("SharedSlot", func(t *testing.T) {
		s1, err := a.FileInfoIndexOf(model)
		assert.NoError(t, err)
		s2, err := a.FileInfoIndexOf(shared)
		assert.NoError(t, err)
		assert.Equal(t, s1, s2)

		info, _, err := a.FileInfoForPath(shared)
		assert.NoError(t, err)
		assert.True(t, info.Flags.Has(arc.FlagRedirect))
	})

	t.Run("Regional", func(t *testing.T) {
		info, _, err := a.FileInfoForPath(1)
		assert.NoError(t, err)
		assert.Equal(t, uint32(arc.RegionCount), info.Span())

		us, err := a.FileData(info, arc.RegionUsEnglish)
		assert.NoError(t, err)
		fr, err := a.FileData(info, arc.RegionEuFrench)
		assert.NoError(t, err)
		assert.Equal(t, uint32(arc.RegionUsEnglish), us.Flags)
		assert.Equal(t, uint32(arc.RegionEuFrench), fr.Flags)
	})

	t.Run("FileInDirectory", func(t *testing.T) {
		dir, err := a.DirInfo(arc.HashPath("fighter/marth/c00"))
		assert.NoError(t, err)
		slot, err := a.FileInfoIndexOf(model)
		assert.NoError(t, err)

		idx, err := a.FileInDirectory(dir, slot)
		assert.NoError(t, err)
		assert.Equal(t, dir.FileInfoStart, idx)

		_, err = a.FileInDirectory(dir, slot+1)
		assert.True(t, errors.Is(err, arc.ErrUnknownHash))

		_, err = a.DirInfo(arc.HashPath("fighter/roy/c00"))
		assert.True(t, errors.Is(err, arc.ErrUnknownHash))
	})
}

func TestArcCheck(t *testing.T) {
	t.Run("CountMismatch", func(t *testing.T) {
		a, _, _ := newFixture()
		a.Header.FileInfoCount.Add(1)
		assert.ErrorContains(t, a.Check(), "FileInfos: header count")
	})

	t.Run("DanglingIndex", func(t *testing.T) {
		a, _, _ := newFixture()
		infos := a.FileInfos.Clone()
		infos[0].InfoToDataIndex = 999
		a.FileInfos.Swap(infos)
		assert.True(t, errors.Is(a.Check(), arc.ErrOutOfBounds))
	})
}

func TestRegion(t *testing.T) {
	r, err := arc.ParseRegion("eu_fr")
	assert.NoError(t, err)
	assert.Equal(t, arc.RegionEuFrench, r)
	assert.Equal(t, "eu_fr", r.String())

	_, err = arc.ParseRegion("xx")
	assert.Error(t, err)
}
