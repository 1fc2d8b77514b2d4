package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/pkg/arc"
	"github.com/goopsie/arcRedirect/pkg/memory"
	"github.com/goopsie/arcRedirect/pkg/offsets"
	"github.com/goopsie/arcRedirect/pkg/remap"
)

const testConfig = `
log:
  debug: true
offsets:
  inflate: "0x33b8c54"
  memcpy_1: 33b8d24
signatures:
  memcpy_2: ["Ldp64Off", "=>", "BCond"]
patterns:
  memcpy_3: "e0 03 ?? aa"
remap:
  paths:
    - path: fighter/marth/model/body/c00/model.numshb
      directory: fighter/marth/c00
mods:
  dir: /sd/mods
  cache_ttl: 5m
pipeline:
  version: 1.2.0
region: eu_fr
`

func TestRead(t *testing.T) {
	cfg, err := Read(strings.NewReader(testConfig), "yaml")
	assert.NoError(t, err)

	assert.True(t, cfg.Log.Debug)
	assert.False(t, cfg.Log.Quiet)
	assert.Equal(t, "/sd/mods", cfg.Mods.Dir)
	assert.Equal(t, 5*time.Minute, cfg.Mods.CacheTTL)
	assert.Equal(t, "arcRedirect", cfg.Pipeline.Name)
	assert.Equal(t, "1.2.0", cfg.Pipeline.Version)

	expected := []remap.Target{{
		Path:      "fighter/marth/model/body/c00/model.numshb",
		Directory: "fighter/marth/c00",
	}}
	if diff := deep.Equal(expected, cfg.Remap.Paths); diff != nil {
		t.Error(diff)
	}

	pc, err := cfg.PipelineConfig()
	assert.NoError(t, err)
	assert.Equal(t, arc.RegionEuFrench, pc.Region)
	assert.Len(t, pc.Remap, 1)
}

func TestDefaults(t *testing.T) {
	cfg, err := Read(strings.NewReader("{}"), "json")
	assert.NoError(t, err)

	assert.Equal(t, "mods", cfg.Mods.Dir)
	assert.Equal(t, 30*time.Second, cfg.Mods.CacheTTL)
	assert.Equal(t, "us_en", cfg.Region)

	opts, err := cfg.ResolverOptions()
	assert.NoError(t, err)
	assert.Empty(t, opts)
}

func TestResolverOptions(t *testing.T) {
	cfg, err := Read(strings.NewReader(testConfig), "yaml")
	assert.NoError(t, err)

	opts, err := cfg.ResolverOptions()
	assert.NoError(t, err)
	assert.Len(t, opts, 4)

	resolver, err := offsets.NewResolver(log.NewTestLogger(t), opts...)
	assert.NoError(t, err)

	// ldp x20, x19, [sp, #16]; b.eq; mov x0, sp-ish bytes
	code := []byte{
		0xF4, 0x4F, 0x41, 0xA9,
		0x40, 0x00, 0x00, 0x54,
		0xE0, 0x03, 0x01, 0xAA,
	}
	table := resolver.Resolve(memory.New(0x1000, code))

	assert.Equal(t, uint64(0x33b8c54), table.Offset(offsets.Inflate))
	assert.Equal(t, uint64(0x33b8d24), table.Offset(offsets.Memcpy1))
	assert.Equal(t, uint64(4), table.Offset(offsets.Memcpy2))
	assert.Equal(t, uint64(8), table.Offset(offsets.Memcpy3))
}

func TestInvalid(t *testing.T) {
	t.Run("Offset", func(t *testing.T) {
		cfg := &Config{Offsets: map[string]string{"inflate": "zz"}}
		_, err := cfg.ResolverOptions()
		assert.ErrorContains(t, err, "offset inflate")
	})

	t.Run("Signature", func(t *testing.T) {
		cfg := &Config{Signatures: map[string][]string{"inflate": {"NotAClass"}}}
		_, err := cfg.ResolverOptions()
		assert.ErrorContains(t, err, "signature inflate")
	})

	t.Run("Pattern", func(t *testing.T) {
		cfg := &Config{Patterns: map[string]string{"inflate": "0g"}}
		_, err := cfg.ResolverOptions()
		assert.ErrorContains(t, err, "pattern inflate")
	})

	t.Run("Region", func(t *testing.T) {
		cfg := &Config{Region: "mars"}
		_, err := cfg.PipelineConfig()
		assert.ErrorContains(t, err, "unknown region")
	})
}

func TestLoad(t *testing.T) {
	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "arcredirect.yaml")
		assert.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

		cfg, err := Load(path)
		assert.NoError(t, err)
		assert.Equal(t, "eu_fr", cfg.Region)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Environment", func(t *testing.T) {
		t.Setenv("ARCREDIRECT_MODS_DIR", "/env/mods")
		path := filepath.Join(t.TempDir(), "arcredirect.yaml")
		assert.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

		cfg, err := Load(path)
		assert.NoError(t, err)
		assert.Equal(t, "/env/mods", cfg.Mods.Dir)
	})
}

func TestParseOffset(t *testing.T) {
	for _, s := range []string{"0x35b3f40", "35b3f40", " 0X35B3F40 "} {
		offset, err := ParseOffset(s)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0x35b3f40), offset)
	}
}

func TestCreateLogger(t *testing.T) {
	assert.NotNil(t, CreateLogger(true, false))
	assert.NotNil(t, CreateLogger(false, true))
}
