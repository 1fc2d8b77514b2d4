package pipeline

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/pkg/hook"
	"github.com/goopsie/arcRedirect/pkg/offsets"
)

// Registers read by the inline hooks.
const (
	announceRegister = 27 // FileInfo index relative to the processing start
	traceRegister    = 25 // FilePaths index
)

// Install attaches every pipeline hook whose offset is set in table. Offsets
// are relative to textBase. Hooks without an offset are skipped with a
// warning; installer failures are collected and returned together.
func (p *Pipeline) Install(installer hook.Installer, table *offsets.Table, textBase uint64) error {
	inline := []struct {
		name string
		fn   hook.InlineFunc
	}{
		{offsets.Inflate, p.announceHook},
		{offsets.Memcpy1, p.commitHook(offsets.Memcpy1)},
		{offsets.Memcpy2, p.commitHook(offsets.Memcpy2)},
		{offsets.Memcpy3, p.commitHook(offsets.Memcpy3)},
		{offsets.LoadingIncoming, p.traceHook},
		{offsets.InitialLoading, p.initialLoadingHook},
	}
	replace := []struct {
		name string
		fn   hook.ReplaceFunc
	}{
		{offsets.InflateDirFile, p.loadDirectoryHook},
		{offsets.TitleScreenVersion, p.versionHook},
	}

	var errs []error
	installed := 0

	for _, h := range inline {
		addr, ok := p.address(table, h.name, textBase)
		if !ok {
			continue
		}
		if err := installer.Inline(h.name, addr, h.fn); err != nil {
			errs = append(errs, fmt.Errorf("install %s: %w", h.name, err))
			continue
		}
		installed++
	}
	for _, h := range replace {
		addr, ok := p.address(table, h.name, textBase)
		if !ok {
			continue
		}
		if err := installer.Replace(h.name, addr, h.fn); err != nil {
			errs = append(errs, fmt.Errorf("install %s: %w", h.name, err))
			continue
		}
		installed++
	}

	p.logger.Info("Installed hooks", log.Int("count", installed), log.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func (p *Pipeline) address(table *offsets.Table, name string, textBase uint64) (uint64, bool) {
	entry, ok := table.Lookup(name)
	if !ok {
		p.logger.Warn("Offset not resolved, hook will not be installed", log.String("name", name))
		return 0, false
	}
	return textBase + entry.Offset, true
}

func (p *Pipeline) announceHook(ctx *hook.InlineCtx) {
	start := p.tables.ResService.ProcessingFileIdxStart.Load()
	p.Announce(start + uint32(ctx.X[announceRegister]))
}

func (p *Pipeline) commitHook(site string) hook.InlineFunc {
	return func(*hook.InlineCtx) {
		p.Commit(site)
	}
}

func (p *Pipeline) traceHook(ctx *hook.InlineCtx) {
	p.Trace(uint32(ctx.X[traceRegister]))
}

func (p *Pipeline) initialLoadingHook(*hook.InlineCtx) {
	p.Initialize()
}

// loadDirectoryHook lets the directory file inflate first and substitutes
// afterwards.
func (p *Pipeline) loadDirectoryHook(call hook.Call, original hook.Func) uint64 {
	result := original(call)
	p.CommitDirectory(offsets.InflateDirFile)
	return result
}

// versionHook passes the extended version text to the original in place of
// the game's own when the game draws its version string.
func (p *Pipeline) versionHook(call hook.Call, original hook.Func) uint64 {
	if call.Mem == nil {
		return original(call)
	}

	text, err := call.Mem.CString(call.X[1])
	if err != nil {
		p.logger.Debug("Unreadable title screen string", log.Err(err))
		return original(call)
	}

	extended, ok := p.VersionString(text)
	if !ok {
		return original(call)
	}
	addr, err := call.Mem.AllocCString(extended)
	if err != nil {
		p.logger.Warn("Allocating version string failed", log.Err(err))
		return original(call)
	}

	call.X[1] = addr
	return original(call)
}
