package offsets

import (
	"encoding/binary"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"

	"github.com/goopsie/arcRedirect/pkg/memory"
	"github.com/goopsie/arcRedirect/pkg/signature"
)

func region(base uint64, ws ...uint32) *memory.Region {
	code := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(code[4*i:], w)
	}
	return memory.New(base, code)
}

const (
	nop      = 0xD503201F
	stpPre   = 0xA9BF7BFD
	movFP    = 0x910003FD // add x29, sp, #0
	ldrX0    = 0xF9400400
	ret      = 0xD65F03C0
	textBase = 0x7100000000
)

func TestCatalog(t *testing.T) {
	seen := map[string]bool{}
	for _, target := range Catalog() {
		assert.False(t, seen[target.Name], target.Name)
		seen[target.Name] = true

		if target.Signature != "" {
			_, err := signature.ParseString(target.Signature)
			assert.NoError(t, err)
		}
	}
	assert.Equal(t, uint64(0x335a350), Defaults().Offset(LookupStreamHash))
	assert.Equal(t, uint64(0x35528f4), Defaults().Offset(ParseNus3bankFile))
}

func TestResolve(t *testing.T) {
	r := region(textBase, nop, nop, stpPre, movFP, ldrX0, ret, nop)
	targets := []Target{
		{Name: "found", Default: 0x1000, Signature: "Stp64Pre => AddImm64 Ldr64Pos"},
		{Name: "missing", Default: 0x2000, Signature: "Ret Ret"},
		{Name: "unknown", Signature: "Udf Udf"},
		{Name: "pattern", Default: 0x3000, Pattern: "c0 03 5f d6"},
		{Name: "fixed", Default: 0x4000},
		{Name: "overridden", Default: 0x5000, Signature: "Stp64Pre"},
	}

	resolver, err := NewResolver(log.NewTestLogger(t),
		WithTargets(targets),
		WithOverride("overridden", 0x42),
	)
	assert.NoError(t, err)
	table := resolver.Resolve(r)

	tests := []struct {
		name   string
		offset uint64
		source Source
		set    bool
	}{
		{"found", 0x0C, Signature, true},
		{"missing", 0x2000, Default, true},
		{"unknown", 0, Unset, false},
		{"pattern", 0x14, Pattern, true},
		{"fixed", 0x4000, Default, true},
		{"overridden", 0x42, Override, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := table.Lookup(tt.name)
			assert.Equal(t, tt.set, ok)
			assert.Equal(t, tt.offset, e.Offset)
			assert.Equal(t, tt.source, e.Source)
		})
	}

	assert.Len(t, table.Entries(), len(targets))
	assert.Equal(t, "fixed", table.Entries()[0].Name)
}

func TestResolveOptions(t *testing.T) {
	r := region(textBase, nop, stpPre, movFP, ret)
	targets := []Target{{Name: "entry", Default: 0x1000, Signature: "Ret Ret"}}

	t.Run("SignatureOverride", func(t *testing.T) {
		resolver, err := NewResolver(log.NewTestLogger(t),
			WithTargets(targets),
			WithSignature("entry", signature.MustParse("Stp64Pre AddImm64")),
		)
		assert.NoError(t, err)
		assert.Equal(t, uint64(4), resolver.Resolve(r).Offset("entry"))
	})

	t.Run("PatternBeforeSignature", func(t *testing.T) {
		p, err := signature.ParseHex("c0 03 5f d6")
		assert.NoError(t, err)
		resolver, err := NewResolver(log.NewTestLogger(t),
			WithTargets(targets),
			WithPattern("entry", p),
		)
		assert.NoError(t, err)
		e, _ := resolver.Resolve(r).Lookup("entry")
		assert.Equal(t, uint64(0xC), e.Offset)
		assert.Equal(t, Pattern, e.Source)
	})

	t.Run("InvalidSignature", func(t *testing.T) {
		_, err := NewResolver(log.NewTestLogger(t),
			WithTargets([]Target{{Name: "bad", Signature: "NotAClass"}}),
		)
		assert.ErrorContains(t, err, "signature for bad")
	})
}
