// Package modfiles discovers substitute files in a mod directory and serves
// their content to the substitution step.
//
// A file's path relative to the mod directory is its archive path, so
// <dir>/fighter/marth/model/body/c00/model.numdlb replaces the archive file
// fighter/marth/model/body/c00/model.numdlb. A ".zst" suffix marks content
// stored ZSTD compressed.
package modfiles

import (
	"cmp"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/DataDog/zstd"
	gocache "github.com/patrickmn/go-cache"
	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/pkg/arc"
	"github.com/goopsie/arcRedirect/pkg/replace"
	"github.com/goopsie/arcRedirect/pkg/replace/nutexb"
)

// CompressedSuffix marks ZSTD compressed substitutes.
const CompressedSuffix = ".zst"

// DefaultCacheTTL is how long decoded content stays cached.
const DefaultCacheTTL = 30 * time.Second

type options struct {
	cacheTTL time.Duration
}

// Option configures Scan.
type Option func(*options)

// WithCacheTTL sets how long decoded content stays cached. A negative
// duration keeps content until the mods are rescanned.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.cacheTTL = ttl
	}
}

// entry is a discovered substitute.
type entry struct {
	file       replace.File
	source     string // path on disk
	compressed bool
}

// Mods is the set of substitutes found in a mod directory. It implements
// replace.Provider.
type Mods struct {
	logger *log.Logger
	dir    string
	cache  *gocache.Cache

	mu     sync.RWMutex
	bySlot map[uint32]entry
}

// Scan walks dir and registers every file whose relative path names a file
// in the container. Files unknown to the container are skipped.
func Scan(logger *log.Logger, dir string, tables *arc.LoadedTables, opts ...Option) (*Mods, error) {
	o := options{cacheTTL: DefaultCacheTTL}
	for _, opt := range opts {
		opt(&o)
	}

	cleanup := o.cacheTTL
	if cleanup <= 0 {
		cleanup = DefaultCacheTTL
	}
	m := &Mods{
		logger: logger,
		dir:    dir,
		cache:  gocache.New(o.cacheTTL, cleanup),
		bySlot: make(map[uint32]entry),
	}

	if err := m.Rescan(tables); err != nil {
		return nil, err
	}
	return m, nil
}

// Rescan rebuilds the slot mapping, which changes when paths are unshared.
func (m *Mods) Rescan(tables *arc.LoadedTables) error {
	found, err := m.walk(tables)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.bySlot = found
	m.mu.Unlock()
	m.cache.Flush()

	m.logger.Info("Discovered mod files", log.String("dir", m.dir), log.Int("count", len(found)))
	return nil
}

func (m *Mods) walk(tables *arc.LoadedTables) (map[uint32]entry, error) {
	found := make(map[uint32]entry)
	a := tables.Arc
	paths := a.FilePaths.Load()

	err := filepath.Walk(m.dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(m.dir, p)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		// Normalize separators
		relPath = strings.ToLower(filepath.ToSlash(relPath))
		compressed := strings.HasSuffix(relPath, CompressedSuffix)
		relPath = strings.TrimSuffix(relPath, CompressedSuffix)

		hash := arc.HashPath(relPath)
		pathIdx, err := a.FilePathIndex(hash)
		if err != nil {
			m.logger.Debug("Skipping file not in archive", log.String("path", relPath))
			return nil
		}
		if uint64(pathIdx) >= uint64(len(paths)) {
			return nil
		}

		size := info.Size()
		const maxUint32 = int64(^uint32(0))
		if size < 0 || size > maxUint32 {
			return fmt.Errorf("file too large: %s (size %d exceeds %d bytes)", p, size, maxUint32)
		}

		e := entry{
			file: replace.File{
				Slot:    paths[pathIdx].Path.Index(),
				Path:    relPath,
				Hash:    hash,
				Size:    uint32(size),
				Texture: strings.TrimPrefix(path.Ext(relPath), ".") == nutexb.Extension,
			},
			source:     p,
			compressed: compressed,
		}
		if prev, ok := found[e.file.Slot]; ok {
			m.logger.Warn("Duplicate mod file, replacing earlier one",
				log.String("path", relPath),
				log.String("previous", prev.source),
				log.String("source", p))
		}
		found[e.file.Slot] = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", m.dir, err)
	}
	return found, nil
}

// Lookup returns the substitute registered for slot.
func (m *Mods) Lookup(slot uint32) (replace.File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.bySlot[slot]
	return e.file, ok
}

// Content returns the decoded content of f.
func (m *Mods) Content(f replace.File) ([]byte, error) {
	if cached, ok := m.cache.Get(f.Path); ok {
		return cached.([]byte), nil
	}

	m.mu.RLock()
	e, ok := m.bySlot[f.Slot]
	m.mu.RUnlock()
	if !ok || e.file.Hash != f.Hash {
		return nil, fmt.Errorf("%s: %w", f.Path, replace.ErrNoReplacement)
	}

	data, err := os.ReadFile(e.source)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.source, err)
	}
	if e.compressed {
		if data, err = zstd.Decompress(nil, data); err != nil {
			return nil, fmt.Errorf("decompress %s: %w", e.source, err)
		}
	}

	m.cache.SetDefault(f.Path, data)
	return data, nil
}

// Files returns every registered substitute ordered by slot.
func (m *Mods) Files() []replace.File {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]replace.File, 0, len(m.bySlot))
	for _, e := range m.bySlot {
		files = append(files, e.file)
	}
	slices.SortFunc(files, func(a, b replace.File) int {
		return cmp.Compare(a.Slot, b.Slot)
	})
	return files
}

// Len returns the number of registered substitutes.
func (m *Mods) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySlot)
}
