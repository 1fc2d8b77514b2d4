package offsets

// Names of the offsets used by the interception pipeline and the parsers it
// observes.
const (
	LookupStreamHash        = "lookup_stream_hash"
	Idk                     = "idk"
	AddIdxToTable1AndTable2 = "add_idx_to_table1_and_table2"
	ParseEff                = "parse_eff"
	ParseEffNutexb          = "parse_eff_nutexb"
	ParseParam              = "parse_param"
	ParseModelXmb           = "parse_model_xmb"
	ParseArcFile            = "parse_arc_file"
	ParseFontFile           = "parse_font_file"
	ParseNumshbFile         = "parse_numshb_file"
	ParseNumatbNutexb       = "parse_numatb_nutexb"
	ParseNumshexbFile       = "parse_numshexb_file"
	ParseNumatbFile         = "parse_numatb_file"
	ParseNumdlbFile         = "parse_numdlb_file"
	ParseLogXmb             = "parse_log_xmb"
	ParseModelXmb2          = "parse_model_xmb_2"
	TitleScreenVersion      = "title_screen_version"
	ParseNus3bankFile       = "parse_nus3bank_file"
	LoadedTables            = "loaded_tables"
	ResService              = "res_service"

	Inflate         = "inflate"
	Memcpy1         = "memcpy_1"
	Memcpy2         = "memcpy_2"
	Memcpy3         = "memcpy_3"
	InflateDirFile  = "inflate_dir_file"
	LoadingIncoming = "loading_incoming"
	InitialLoading  = "initial_loading"
)

// Target describes how to locate one named offset. Offsets are relative to
// the start of the text segment. A zero Default means no fallback is known.
type Target struct {
	Name      string
	Default   uint64
	Signature string // instruction classes, see signature.ParseString
	Pattern   string // hex bytes, see signature.ParseHex
}

// Catalog returns the built-in targets with the 9.0.1 fallbacks.
func Catalog() []Target {
	return []Target{
		{
			Name:      Idk,
			Default:   0x335f150,
			Signature: "=> Stp64Pre Stp64Off Stp64Off Stp64Off AddImm64 OrrImm32 SubsShift32 BCond Ldr64Pos Ldr64Pos",
		},
		{
			Name:      AddIdxToTable1AndTable2,
			Default:   0x33595a0,
			Signature: "=> Stp64Pre Stp64Off Stp64Off AddImm64 Ldr32Pos SubsShift32 BCond Ldr64Pos OrrShift64 OrrShift64",
		},
		{
			Name:      LookupStreamHash,
			Default:   0x335a350,
			Signature: "=> Ldr64Pos Ldr64Pos Ldr32Pos AddShift64 Cbz32 SubsImm64 Csinc64 Sbfm64 AddShift64 Ldr64Post",
		},
		{
			Name:      ParseEffNutexb,
			Default:   0x337a2f0,
			Signature: "=> Ldr64Pos B OrrShift64 Adrp Ldr64Pos Stur64 Stp64Off Ldr64Pos Ldr64Pos Ldr64Pos",
		},
		{
			Name:      ParseEff,
			Default:   0x3379e14,
			Signature: "=> Ldr32Pos SubsShift32 OrrShift64 BCond Ldr64Pos AddShift64 Ldrb32Pos Cbz32 Ubfm64 Ldr32Regoff",
		},
		{
			Name:      ParseParam,
			Default:   0x3539714,
			Signature: "=> Ldr64Pos Cbz64 AddImm64 Stp64Off Ldrsw64Pos AddShift64 Str64Pos Ldrsw64Pos AddShift64 Str64Pos",
		},
		{
			Name:      ParseModelXmb,
			Default:   0x33fad28,
			Signature: "=> Ldr64Pos B Ldr64Pos OrrShift64 Ldr64Pos BL Ldr64Pos Ldr64Pos Str32Pos Ldr64Pos",
		},
		{
			Name:      ParseArcFile,
			Default:   0x3588f3c,
			Signature: "=> Ldr64Pos B OrrShift64 Ldr64Pos Ldr64Pos Ldr64Pos Ldr64Pos Ldr32Pos SubsShift32 BCond",
		},
		{
			Name:      ParseFontFile,
			Default:   0x3576f28,
			Signature: "=> Ldr64Pos B Ldrb32Pos Cbz32 Ret Ldr64Pos Cbz64 Ldr64Pos Ldr64Pos Br",
		},
		{
			Name:    ParseNumshbFile,
			Default: 0x33e1d50,
		},
		{
			Name:      ParseNumatbNutexb,
			Default:   0x3408384,
			Signature: "=> Ldr64Pos B OrrShift64 Adrp Ldr64Pos Ldr64Pos Ldr64Pos Ldr64Pos Ldr32Pos SubsShift32",
		},
		{
			Name:      ParseNumshexbFile,
			Default:   0x33e3c44,
			Signature: "=> Ldr64Pos B Adrp AddImm64 Str64Pos Adrp B OrrShift64 Movz32 OrrImm32",
		},
		{
			// shares its shape with parse_arc_file and usually resolves to the same address
			Name:      ParseNumatbFile,
			Default:   0x340791c,
			Signature: "=> Ldr64Pos B OrrShift64 Ldr64Pos Ldr64Pos Ldr64Pos Ldr64Pos Ldr32Pos SubsShift32 BCond",
		},
		{
			Name:      ParseNumdlbFile,
			Default:   0x33dc6a8,
			Signature: "=> Ldr64Pos B Str64Pre Stp64Off AddImm64 OrrShift64 BL Cbz64 Ldp64Off OrrShift64",
		},
		{
			Name:      ParseLogXmb,
			Default:   0x33fadf4,
			Signature: "=> Ldr64Pos B OrrShift64 OrrImm32 OrrImm32 BL OrrShift64 Cbnz64 Adrp Ldr64Pos",
		},
		{
			Name:      ParseModelXmb2,
			Default:   0x3406f44,
			Signature: "=> Ldr64Pos B Udf Adrp AddImm64 Str64Pos Ldr64Pos Cbz64 Ldr64Pos Ldr64Pos",
		},
		{
			Name:      TitleScreenVersion,
			Default:   0x35ba960,
			Signature: "=> Str64Pre Stp64Off Stp64Off AddImm64 SubImm64 OrrShift64 OrrShift64 AddImm64 OrrImm32 OrrShift32",
		},
		{
			Name:    ParseNus3bankFile,
			Default: 0x35528f4,
		},
		{
			Name:      LoadedTables,
			Signature: "=> Adrp Ldr64Pos OrrShift32 BL Ldr64Pos Ldr32Pos SubsShift32 BCond Ldr64Pos AddExt64",
		},
		{
			Name:      ResService,
			Signature: "=> Adrp Ldr64Pos Strb32Pos Ldrh32Pos Strh32Pos Cbz64 AddImm64 AndImm64 SubsImm32 BCond",
		},
		{Name: Inflate},
		{Name: Memcpy1},
		{Name: Memcpy2},
		{Name: Memcpy3},
		{Name: InflateDirFile},
		{Name: LoadingIncoming, Default: 0x33b6798},
		{Name: InitialLoading, Default: 0x35b3f40},
	}
}
