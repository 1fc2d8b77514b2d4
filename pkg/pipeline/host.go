package pipeline

import (
	"errors"
	"fmt"

	"github.com/goopsie/arcRedirect/pkg/arc"
	"github.com/goopsie/arcRedirect/pkg/hook"
	"github.com/goopsie/arcRedirect/pkg/offsets"
)

// ErrNotInstalled means no hook ran at the address a host step targets.
var ErrNotInstalled = errors.New("no hook installed")

// CommitSites are the copy call sites a file load may finish at.
var CommitSites = []string{offsets.Memcpy1, offsets.Memcpy2, offsets.Memcpy3}

// Host plays the loader threads against hooks installed in a Dispatcher.
// It fires each hook at its resolved address with the registers the loader
// would hold there, so the register decoding of the hooks runs as well.
type Host struct {
	dispatcher *hook.Dispatcher
	tables     *arc.LoadedTables
	table      *offsets.Table
	textBase   uint64
	region     arc.Region
}

// NewHost creates a host for hooks installed with table and textBase.
func NewHost(dispatcher *hook.Dispatcher, tables *arc.LoadedTables, table *offsets.Table,
	textBase uint64, region arc.Region) *Host {

	return &Host{
		dispatcher: dispatcher,
		tables:     tables,
		table:      table,
		textBase:   textBase,
		region:     region,
	}
}

// Boot reaches the end of the initial loading.
func (h *Host) Boot() error {
	return h.step(offsets.InitialLoading, &hook.InlineCtx{})
}

// Load loads the file of slot: a zeroed buffer of its declared size is
// attached to the slot, the inflate thread picks up its FileInfo and the
// copy at site fills the buffer. It returns the buffer after the copy.
func (h *Host) Load(slot uint32, site string) ([]byte, error) {
	info, fileInfo, err := h.tables.Arc.FileInfoForSlot(slot)
	if err != nil {
		return nil, err
	}
	data, err := h.tables.Arc.FileData(info, h.region)
	if err != nil {
		return nil, err
	}
	if err := h.tables.SetSlotData(slot, make([]byte, data.DecompSize)); err != nil {
		return nil, err
	}

	// x27 holds the FileInfo index relative to the start of the batch
	start := h.tables.ResService.ProcessingFileIdxStart.Load()
	if fileInfo < start {
		start = 0
		h.tables.ResService.ProcessingFileIdxStart.Store(start)
	}
	inflate := &hook.InlineCtx{}
	inflate.X[announceRegister] = uint64(fileInfo - start)
	if err := h.step(offsets.Inflate, inflate); err != nil {
		return nil, err
	}
	if err := h.step(site, &hook.InlineCtx{}); err != nil {
		return nil, err
	}

	entry, err := h.tables.Slot(slot)
	if err != nil {
		return nil, err
	}
	return entry.Data, nil
}

func (h *Host) step(name string, ctx *hook.InlineCtx) error {
	entry, ok := h.table.Lookup(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	if h.dispatcher.Step(h.textBase+entry.Offset, ctx) == 0 {
		return fmt.Errorf("%s at %#x: %w", name, h.textBase+entry.Offset, ErrNotInstalled)
	}
	return nil
}
