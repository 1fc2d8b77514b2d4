// Package replace writes substitute file content into the game's load-state
// buffers.
package replace

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/pkg/arc"
	"github.com/goopsie/arcRedirect/pkg/replace/nutexb"
)

// ErrNoReplacement is returned when no substitute is registered for a slot.
var ErrNoReplacement = errors.New("no replacement registered")

// File is a substitute registered for a FileInfoIndices slot.
type File struct {
	Slot    uint32
	Path    string
	Hash    arc.Hash40
	Size    uint32 // stored size, compressed when the source is
	Texture bool   // content ends with a nutexb footer
}

// Provider resolves substitutes by slot and supplies their content.
type Provider interface {
	Lookup(slot uint32) (File, bool)
	Content(f File) ([]byte, error)
}

// Copy writes src into dst and zero fills the rest of dst. Content longer
// than dst is truncated. It returns the number of bytes copied from src.
func Copy(dst, src []byte) int {
	n := copy(dst, src)
	clear(dst[n:])
	return n
}

// CopyTexture writes a nutexb texture into dst so that its footer ends
// exactly at the end of dst. The texture body is copied to the start of dst
// and the gap up to the footer is zero filled. When either buffer is too
// small to hold a footer the content is copied like Copy.
func CopyTexture(dst, src []byte) int {
	if len(src) < nutexb.FooterSize || len(dst) < nutexb.FooterSize {
		return Copy(dst, src)
	}

	bodyEnd := len(dst) - nutexb.FooterSize
	srcBody := src[:len(src)-nutexb.FooterSize]
	n := Copy(dst[:bodyEnd], srcBody)
	n += copy(dst[bodyEnd:], src[len(src)-nutexb.FooterSize:])
	return n
}

// Substituter fills load-state buffers with substitute content.
type Substituter struct {
	logger   *log.Logger
	tables   *arc.LoadedTables
	provider Provider
	region   arc.Region
}

// New creates a substituter. region selects the data record used for the
// declared size of regional files.
func New(logger *log.Logger, tables *arc.LoadedTables, provider Provider, region arc.Region) *Substituter {
	return &Substituter{
		logger:   logger,
		tables:   tables,
		provider: provider,
		region:   region,
	}
}

// Provider returns the substitute provider.
func (s *Substituter) Provider() Provider {
	return s.provider
}

// Replace writes the substitute for slot into the slot's loaded buffer.
// A slot without a loaded buffer is left alone. Writes never go past the
// smaller of the declared decompressed size and the buffer length.
func (s *Substituter) Replace(slot uint32) error {
	f, ok := s.provider.Lookup(slot)
	if !ok {
		return fmt.Errorf("slot %d: %w", slot, ErrNoReplacement)
	}

	entry, err := s.tables.Slot(slot)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if entry.Data == nil {
		return nil
	}

	info, _, err := s.tables.Arc.FileInfoForSlot(slot)
	if err != nil {
		return fmt.Errorf("file info: %w", err)
	}
	data, err := s.tables.Arc.FileData(info, s.region)
	if err != nil {
		return fmt.Errorf("file data: %w", err)
	}

	content, err := s.provider.Content(f)
	if err != nil {
		return fmt.Errorf("content of %s: %w", f.Path, err)
	}

	bound := min(int(data.DecompSize), len(entry.Data))
	dst := entry.Data[:bound]

	var written int
	if f.Texture {
		written = CopyTexture(dst, content)
	} else {
		written = Copy(dst, content)
	}

	s.logger.Info("Replacing file",
		log.Int("slot", int(slot)),
		log.String("path", f.Path),
		log.Hex("declared_size", data.DecompSize),
		log.Int("content_size", len(content)),
		log.Int("written", written))
	if written < len(content) {
		s.logger.Warn("Substitute truncated to loaded buffer",
			log.String("path", f.Path),
			log.Int("dropped", len(content)-written))
	}
	return nil
}
