// Package main provides the arcRedirect startup driver: it resolves the hook
// offsets of a game executable and rehearses remaps and substitutions
// against snapshots of the archive container.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/internal/config"
	"github.com/goopsie/arcRedirect/pkg/arc"
	"github.com/goopsie/arcRedirect/pkg/hook"
	"github.com/goopsie/arcRedirect/pkg/memory"
	"github.com/goopsie/arcRedirect/pkg/modfiles"
	"github.com/goopsie/arcRedirect/pkg/offsets"
	"github.com/goopsie/arcRedirect/pkg/pipeline"
	"github.com/goopsie/arcRedirect/pkg/remap"
	"github.com/goopsie/arcRedirect/pkg/replace"
	"github.com/goopsie/arcRedirect/pkg/replace/nutexb"
	"github.com/goopsie/arcRedirect/pkg/snapshot"
)

var (
	mode         string
	configPath   string
	elfPath      string
	pid          int
	module       string
	snapshotPath string
	outputPath   string
	debug        bool
	quiet        bool
)

func init() {
	flag.StringVar(&mode, "mode", "", "Operation mode: resolve, remap, mods, rehearse")
	flag.StringVar(&configPath, "config", "", "Config file (default: search . and ~/.config/arcredirect)")
	flag.StringVar(&elfPath, "elf", "", "Game executable as AArch64 ELF image")
	flag.IntVar(&pid, "pid", 0, "Read the game executable from a running process")
	flag.StringVar(&module, "module", "main", "Module name of the executable mapping in -pid mode")
	flag.StringVar(&snapshotPath, "snapshot", "", "Archive container snapshot")
	flag.StringVar(&outputPath, "output", "", "Output snapshot for remap mode")
	flag.BoolVar(&debug, "debug", false, "Enable debug output")
	flag.BoolVar(&quiet, "quiet", false, "Only output errors")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := validateFlags(); err != nil {
		flag.Usage()
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := config.CreateLogger(debug || cfg.Log.Debug, quiet || cfg.Log.Quiet)

	switch mode {
	case "resolve":
		return runResolve(logger, cfg)
	case "remap":
		return runRemap(logger, cfg)
	case "mods":
		return runMods(logger, cfg)
	case "rehearse":
		return runRehearse(logger, cfg)
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

func validateFlags() error {
	if mode == "" {
		return fmt.Errorf("mode is required")
	}
	if elfPath != "" && pid != 0 {
		return fmt.Errorf("-elf and -pid are mutually exclusive")
	}

	switch mode {
	case "resolve":
		if elfPath == "" && pid == 0 {
			return fmt.Errorf("resolve mode requires -elf or -pid")
		}
	case "remap":
		if snapshotPath == "" || outputPath == "" {
			return fmt.Errorf("remap mode requires -snapshot and -output")
		}
	case "mods", "rehearse":
		if snapshotPath == "" {
			return fmt.Errorf("%s mode requires -snapshot", mode)
		}
	default:
		return fmt.Errorf("mode must be 'resolve', 'remap', 'mods' or 'rehearse'")
	}

	return nil
}

func openRegion() (*memory.Region, error) {
	switch {
	case elfPath != "":
		return memory.ReadELF(elfPath)
	case pid != 0:
		return memory.OpenProcess(pid, module)
	default:
		return nil, nil
	}
}

// resolveTable resolves the offsets in the configured executable. Without
// one only the fallbacks and config overrides are available.
func resolveTable(logger *log.Logger, cfg *config.Config) (*offsets.Table, uint64, error) {
	opts, err := cfg.ResolverOptions()
	if err != nil {
		return nil, 0, err
	}
	resolver, err := offsets.NewResolver(logger, opts...)
	if err != nil {
		return nil, 0, err
	}

	region, err := openRegion()
	if err != nil {
		return nil, 0, fmt.Errorf("open executable: %w", err)
	}
	if region == nil {
		region = memory.New(0, nil)
	}
	return resolver.Resolve(region), region.Text(), nil
}

func runResolve(logger *log.Logger, cfg *config.Config) error {
	table, text, err := resolveTable(logger, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Text segment at %#x\n", text)
	for _, e := range table.Entries() {
		if !e.Set() {
			fmt.Printf("%-30s %-12s %s\n", e.Name, "-", e.Source)
			continue
		}
		fmt.Printf("%-30s %#-12x %-10s %#x\n", e.Name, e.Offset, e.Source, text+e.Offset)
	}
	return nil
}

func runRemap(logger *log.Logger, cfg *config.Config) error {
	tables, err := snapshot.ReadFile(snapshotPath)
	if err != nil {
		return err
	}

	results, err := remap.New(logger, tables).UnshareAll(cfg.Remap.Paths)
	for _, res := range results {
		fmt.Printf("%s: slot %d -> %d (FileInfo %d, shared %t)\n",
			res.Path, res.OldSlot, res.NewSlot, res.NewFileInfo, res.Shared)
	}
	if err != nil {
		return err
	}

	if err := tables.Check(); err != nil {
		return fmt.Errorf("remapped container is inconsistent: %w", err)
	}
	if err := snapshot.WriteFile(outputPath, tables); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	fmt.Printf("Remapped %d files, snapshot written to %s\n", len(results), outputPath)
	return nil
}

func runMods(logger *log.Logger, cfg *config.Config) error {
	tables, err := snapshot.ReadFile(snapshotPath)
	if err != nil {
		return err
	}

	mods, err := modfiles.Scan(logger, cfg.Mods.Dir, tables, modfiles.WithCacheTTL(cfg.Mods.CacheTTL))
	if err != nil {
		return err
	}

	for _, f := range mods.Files() {
		fmt.Printf("%8d %s %8d %s\n", f.Slot, f.Hash, f.Size, f.Path)
		if !f.Texture {
			continue
		}
		content, err := mods.Content(f)
		if err != nil {
			return err
		}
		footer, err := nutexb.ParseFooter(content)
		if err != nil {
			fmt.Printf("%8s invalid texture: %v\n", "", err)
			continue
		}
		fmt.Printf("%8s %s\n", "", footer)
	}
	fmt.Printf("%d substitutes\n", mods.Len())
	return nil
}

// runRehearse installs the pipeline into an in-process dispatcher and plays
// the loader through the installed hooks: the initial loading, then one load
// of every discovered substitute. Loads rotate over the copy call sites.
func runRehearse(logger *log.Logger, cfg *config.Config) error {
	tables, err := snapshot.ReadFile(snapshotPath)
	if err != nil {
		return err
	}
	pc, err := cfg.PipelineConfig()
	if err != nil {
		return err
	}

	var mods *modfiles.Mods
	discover := func(tables *arc.LoadedTables) (replace.Provider, error) {
		m, err := modfiles.Scan(logger, cfg.Mods.Dir, tables, modfiles.WithCacheTTL(cfg.Mods.CacheTTL))
		if err != nil {
			return nil, err
		}
		mods = m
		return m, nil
	}
	p := pipeline.New(logger, pc, tables, discover)

	table, text, err := resolveTable(logger, cfg)
	if err != nil {
		return err
	}
	dispatcher := hook.NewDispatcher(logger)
	if err := p.Install(dispatcher, table, text); err != nil {
		return err
	}
	for _, h := range dispatcher.Installed() {
		fmt.Printf("%-8s %#x %s\n", h.Kind, h.Addr, h.Name)
	}

	host := pipeline.NewHost(dispatcher, tables, table, text, pc.Region)
	if err := host.Boot(); err != nil {
		return err
	}
	if mods == nil {
		return errors.New("no substitutes discovered")
	}

	for i, f := range mods.Files() {
		site := pipeline.CommitSites[i%len(pipeline.CommitSites)]
		data, err := host.Load(f.Slot, site)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Path, err)
		}
		fmt.Printf("%8d %#10x bytes %-8s %s\n", f.Slot, len(data), site, f.Path)
	}

	stats := p.Stats()
	fmt.Printf("Announced %d, suppressed %d, replaced %d, failed %d\n",
		stats.Announced, stats.Suppressed, stats.Replaced, stats.Failed)
	return nil
}
