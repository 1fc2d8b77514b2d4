package offsets

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/pkg/signature"
)

// Region is the code region searched by the resolver.
type Region interface {
	signature.Scanner
	signature.ByteSource
	Offset(addr uint64) (uint64, error)
}

// Resolver locates the catalog targets in a code region.
type Resolver struct {
	logger     *log.Logger
	targets    []Target
	signatures map[string]signature.Signature
	patterns   map[string]signature.Pattern
	overrides  map[string]uint64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTargets replaces the built-in catalog.
func WithTargets(targets []Target) Option {
	return func(r *Resolver) {
		r.targets = targets
	}
}

// WithSignature replaces the signature used for name.
func WithSignature(name string, sig signature.Signature) Option {
	return func(r *Resolver) {
		r.signatures[name] = sig
	}
}

// WithPattern sets a byte pattern for name. Patterns are tried before signatures.
func WithPattern(name string, p signature.Pattern) Option {
	return func(r *Resolver) {
		r.patterns[name] = p
	}
}

// WithOverride fixes the offset for name, skipping any search.
func WithOverride(name string, offset uint64) Option {
	return func(r *Resolver) {
		r.overrides[name] = offset
	}
}

// NewResolver creates a resolver for the built-in catalog.
func NewResolver(logger *log.Logger, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		logger:     logger,
		targets:    Catalog(),
		signatures: make(map[string]signature.Signature),
		patterns:   make(map[string]signature.Pattern),
		overrides:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, target := range r.targets {
		if target.Signature != "" {
			if _, ok := r.signatures[target.Name]; !ok {
				sig, err := signature.ParseString(target.Signature)
				if err != nil {
					return nil, fmt.Errorf("signature for %s: %w", target.Name, err)
				}
				r.signatures[target.Name] = sig
			}
		}
		if target.Pattern != "" {
			if _, ok := r.patterns[target.Name]; !ok {
				p, err := signature.ParseHex(target.Pattern)
				if err != nil {
					return nil, fmt.Errorf("pattern for %s: %w", target.Name, err)
				}
				r.patterns[target.Name] = p
			}
		}
	}

	return r, nil
}

// Resolve searches the region for every target and returns the resulting
// table. A target that is not found keeps its fallback and logs a warning.
func (r *Resolver) Resolve(region Region) *Table {
	entries := make([]Entry, 0, len(r.targets))
	for _, target := range r.targets {
		entries = append(entries, r.resolve(region, target))
	}
	return NewTable(entries...)
}

func (r *Resolver) resolve(region Region, target Target) Entry {
	if offset, ok := r.overrides[target.Name]; ok {
		r.logger.Debug("Offset overridden",
			log.String("name", target.Name),
			log.Hex("offset", offset))
		return Entry{Name: target.Name, Offset: offset, Source: Override}
	}

	searched := false
	if p, ok := r.patterns[target.Name]; ok {
		searched = true
		if e, ok := r.found(region, target.Name, Pattern, func() (uint64, error) { return p.Find(region) }); ok {
			return e
		}
	}
	if sig, ok := r.signatures[target.Name]; ok {
		searched = true
		if e, ok := r.found(region, target.Name, Signature, func() (uint64, error) { return sig.Find(region) }); ok {
			return e
		}
	}

	fallback := defaultEntry(target)
	switch {
	case !searched && fallback.Set():
		// nothing to search for, the fallback is authoritative
	case !fallback.Set():
		r.logger.Warn("No offset found and no fallback known, hook will not be installed",
			log.String("name", target.Name))
	default:
		r.logger.Warn("No offset found, using the 9.0.1 offset. This most likely won't work",
			log.String("name", target.Name),
			log.Hex("offset", fallback.Offset))
	}
	return fallback
}

func (r *Resolver) found(region Region, name string, source Source, find func() (uint64, error)) (Entry, bool) {
	addr, err := find()
	if err != nil {
		if !errors.Is(err, signature.ErrNotFound) {
			r.logger.Error("Offset search failed", log.String("name", name), log.Err(err))
		}
		return Entry{}, false
	}

	offset, err := region.Offset(addr)
	if err != nil {
		r.logger.Error("Match outside of the text segment", log.String("name", name), log.Err(err))
		return Entry{}, false
	}

	r.logger.Debug("Offset found",
		log.String("name", name),
		log.Stringer("source", source),
		log.Hex("offset", offset))
	return Entry{Name: name, Offset: offset, Source: source}, true
}
