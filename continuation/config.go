package continuation

import "github.com/veritum-project/cube/cube"

// MinChunkDefault is the minimum free space, in bytes including the
// fragment's 2-byte TLV header, a chunk must have left before a
// variable-length field is split into it (spec §4.4 "MIN_CHUNK
// = 10 bytes").
const MinChunkDefault = 10

// ChunkInfo is passed to a Config's TransformChunk callback, identifying
// the chunk about to be finalized.
type ChunkInfo struct {
	ChunkIndex int
	ChunkCount int
}

// Config configures one Split/Recombine pair (spec §4.4 "Configuration").
type Config struct {
	// MaxChunkSize reports the TLV payload budget available for chunk i,
	// already net of positional overhead (mirroring the crypto layer's
	// max_chunk_size in spec §4.5, which additionally nets out
	// encryption overhead). Required.
	MaxChunkSize func(chunkIndex int) int

	// Exclude lists field types dropped from the split stream entirely:
	// every positional of the cube type, CCI_END, PADDING, REMAINDER,
	// and (for raw-content cube types) the raw-content field.
	Exclude map[cube.FieldType]bool

	// MapFieldToChunk withdraws a positional-carrying field type from
	// the split stream and instead places its value directly as that
	// chunk's positional, per the -1/"every chunk" or explicit-index
	// rule (spec §4.4 Configuration, §9 known asymmetry).
	MapFieldToChunk map[cube.FieldType]int

	// TransformChunk runs immediately before a chunk's final compile
	// (spec §4.4 "chunk_transformation_callback"). May be nil.
	TransformChunk func(fields []cube.Field, info ChunkInfo) []cube.Field

	// MinChunk is the minimum free space (TLV header included) a chunk
	// must have left for a variable-length field to be split into it;
	// below this the splitter rolls the whole field into a new chunk
	// instead.
	MinChunk int
}

// defaultExclude builds the default Exclude set for def (spec §4.4
// defaults: "all positionals, raw-content, CCI_END, PADDING, REMAINDER").
func defaultExclude(def cube.FieldDef) map[cube.FieldType]bool {
	ex := map[cube.FieldType]bool{
		def.Stop:      true,
		cube.FieldPADDING:   true,
		def.Remainder: true,
	}
	for _, p := range def.PositionalFront {
		ex[p.Type] = true
	}
	for _, p := range def.PositionalBack {
		ex[p.Type] = true
	}
	if !def.TLVEnabled {
		ex[def.RawContentType] = true
	}
	return ex
}

// DefaultConfig returns the spec §4.4 default configuration for cube
// type def: a constant per-chunk budget of CubeSize minus def's
// positional overhead, and the default field-to-chunk mapping
// {DATE:-1, NOTIFY:1, PMUC_UPDATE_COUNT:0}.
func DefaultConfig(def cube.FieldDef) Config {
	budget := cube.CubeSize - sumLen(def.PositionalFront) - sumLen(def.PositionalBack)
	return Config{
		MaxChunkSize: func(int) int { return budget },
		Exclude:      defaultExclude(def),
		MapFieldToChunk: map[cube.FieldType]int{
			cube.FieldDATE:              -1,
			cube.FieldNOTIFY:            1,
			cube.FieldPMUC_UPDATE_COUNT: 0,
		},
		MinChunk: MinChunkDefault,
	}
}

func sumLen(ps []cube.PositionalField) int {
	n := 0
	for _, p := range ps {
		n += p.Length
	}
	return n
}

// isFixedLen reports whether t is fixed-length under def and, if so,
// its length — duplicated from the cube package's unexported isFixed
// since FieldDef's constituent slices/maps are exported and cheap to
// walk directly.
func isFixedLen(def cube.FieldDef, t cube.FieldType) (int, bool) {
	for _, p := range def.PositionalFront {
		if p.Type == t {
			return p.Length, true
		}
	}
	for _, p := range def.PositionalBack {
		if p.Type == t {
			return p.Length, true
		}
	}
	if n, ok := def.FixedLength[t]; ok {
		return n, true
	}
	return 0, false
}

// encodedLength returns the number of wire bytes f occupies under def:
// 1+length for fixed TLV fields, 2+len(value) for variable-length ones.
func encodedLength(f cube.Field, def cube.FieldDef) int {
	if n, ok := isFixedLen(def, f.Type); ok {
		return 1 + n
	}
	return 2 + len(f.Value)
}
