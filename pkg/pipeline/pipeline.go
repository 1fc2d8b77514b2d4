// Package pipeline intercepts the game's file loading and substitutes file
// content in two stages. An announce hook identifies the file the inflate
// thread is about to produce and records its load-state slot. Commit hooks
// at the copy and decompress call sites then overwrite the freshly loaded
// buffer of that slot with the substitute.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/pkg/arc"
	"github.com/goopsie/arcRedirect/pkg/remap"
	"github.com/goopsie/arcRedirect/pkg/replace"
)

// DefaultName is the plugin name shown on the title screen.
const DefaultName = "arcRedirect"

// Config configures a pipeline.
type Config struct {
	Name    string
	Version string
	Region  arc.Region
	Remap   []remap.Target
}

// Discoverer finds the substitutes once the container layout is final.
type Discoverer func(tables *arc.LoadedTables) (replace.Provider, error)

// Stats counts pipeline events.
type Stats struct {
	Announced  uint64
	Suppressed uint64
	Replaced   uint64
	Failed     uint64
}

// Pipeline holds the state shared by all hooks.
type Pipeline struct {
	logger   *log.Logger
	cfg      Config
	tables   *arc.LoadedTables
	remapper *remap.Remapper
	discover Discoverer

	slot        Slot
	substituter atomic.Pointer[replace.Substituter]
	initOnce    sync.Once

	announced  atomic.Uint64
	suppressed atomic.Uint64
	replaced   atomic.Uint64
	failed     atomic.Uint64
}

// New creates a pipeline over tables. discover runs once during initial
// loading, after the configured remaps.
func New(logger *log.Logger, cfg Config, tables *arc.LoadedTables, discover Discoverer) *Pipeline {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	return &Pipeline{
		logger:   logger,
		cfg:      cfg,
		tables:   tables,
		remapper: remap.New(logger, tables),
		discover: discover,
	}
}

// Slot returns the announce/commit rendezvous.
func (p *Pipeline) Slot() *Slot {
	return &p.slot
}

// Stats returns the current event counts.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Announced:  p.announced.Load(),
		Suppressed: p.suppressed.Load(),
		Replaced:   p.replaced.Load(),
		Failed:     p.failed.Load(),
	}
}

// Initialize runs the configured remaps and the substitute discovery. Only
// the first call has an effect.
func (p *Pipeline) Initialize() {
	p.initOnce.Do(p.initialize)
}

func (p *Pipeline) initialize() {
	results, err := p.remapper.UnshareAll(p.cfg.Remap)
	if err != nil {
		p.logger.Error("Remapping failed", log.Err(err))
	}
	p.logger.Info("Remapped shared files",
		log.Int("requested", len(p.cfg.Remap)),
		log.Int("unshared", len(results)))

	if p.discover == nil {
		return
	}
	provider, err := p.discover(p.tables)
	if err != nil {
		p.logger.Error("Discovering substitutes failed, substitution disabled", log.Err(err))
		return
	}
	p.substituter.Store(replace.New(p.logger, p.tables, provider, p.cfg.Region))
}

// Announce records the file the inflate thread is about to produce. fileInfo
// is the index of its FileInfo.
func (p *Pipeline) Announce(fileInfo uint32) {
	info, err := p.tables.Arc.FileInfos.Get(fileInfo)
	if err != nil {
		p.suppress()
		p.logger.Debug("FileInfo out of range", log.Int("file_info", int(fileInfo)), log.Err(err))
		return
	}

	slot := info.FileInfoIndiceIndex
	var hash arc.Hash40
	if path, err := p.tables.Arc.FilePaths.Get(info.FilePathIndex); err == nil {
		hash = path.Path.Hash()
	}

	sub := p.substituter.Load()
	if sub == nil {
		p.suppress()
		return
	}
	if _, ok := sub.Provider().Lookup(slot); !ok {
		p.suppress()
		p.logger.Debug("No substitute for incoming file",
			log.Stringer("hash", hash),
			log.Int("file_info", int(fileInfo)),
			log.Int("slot", int(slot)))
		return
	}

	p.slot.Announce(slot)
	p.announced.Add(1)
	p.logger.Debug("Queued incoming file",
		log.Stringer("hash", hash),
		log.Int("file_path", int(info.FilePathIndex)),
		log.Int("file_info", int(fileInfo)),
		log.Int("slot", int(slot)))
}

func (p *Pipeline) suppress() {
	p.slot.Suppress()
	p.suppressed.Add(1)
}

// Commit substitutes the pending file, if any. site names the call site for
// the log.
func (p *Pipeline) Commit(site string) {
	slot, ok := p.slot.Pending()
	if !ok {
		return
	}
	p.replace(site, slot)
}

// CommitDirectory is Commit for the directory inflate path, which never
// substitutes slot 0.
func (p *Pipeline) CommitDirectory(site string) {
	slot, ok := p.slot.Pending()
	if !ok || slot == 0 {
		return
	}
	p.replace(site, slot)
}

func (p *Pipeline) replace(site string, slot uint32) {
	sub := p.substituter.Load()
	if sub == nil {
		return
	}

	if err := sub.Replace(slot); err != nil {
		p.failed.Add(1)
		if errors.Is(err, replace.ErrNoReplacement) {
			p.logger.Debug("Pending file has no substitute", log.String("site", site), log.Err(err))
			return
		}
		p.logger.Warn("Substitution failed", log.String("site", site), log.Int("slot", int(slot)), log.Err(err))
		return
	}
	p.replaced.Add(1)
}

// Trace logs the FilePaths entry the loading thread is processing.
func (p *Pipeline) Trace(pathIndex uint32) {
	path, err := p.tables.Arc.FilePaths.Get(pathIndex)
	if err != nil {
		p.logger.Debug("Loading unknown path", log.Int("file_path", int(pathIndex)), log.Err(err))
		return
	}
	p.logger.Debug("Loading incoming file",
		log.Int("file_path", int(pathIndex)),
		log.Stringer("hash", path.Path.Hash()))
}

// VersionString returns the title screen version text with the plugin
// version appended, and whether original is a version text at all.
func (p *Pipeline) VersionString(original string) (string, bool) {
	if !strings.Contains(original, "Ver.") {
		return original, false
	}
	return fmt.Sprintf("%s\n%s Ver. %s", original, p.cfg.Name, p.cfg.Version), true
}
