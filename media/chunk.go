// Package media defines the passive data types that flow through the smear
// render pipeline: encoded frame chunks, declarative segment instructions,
// and the synthetic audio specifications attached to them.
package media

// ChunkKind tags an encoded chunk as independently decodable or
// inter-predicted. Delta chunks replayed without their original key frame
// are the mechanism behind the datamosh artifact, so the tag must survive
// timeline expansion unmodified.
type ChunkKind int

// Chunk kinds.
const (
	ChunkKey ChunkKind = iota
	ChunkDelta
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkKey:
		return "key"
	case ChunkDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// EncodedChunk is one compressed video frame together with its timing
// metadata. Chunks are immutable once produced by a source loader; the
// timeline expander borrows them and never rewrites payloads.
type EncodedChunk struct {
	Kind            ChunkKind
	TimestampMicros uint64
	DurationMicros  uint64
	Payload         []byte
}

// DecoderConfig carries the opaque codec parameters a decoder needs before
// any chunk can be rendered. It is produced by the source loader alongside
// the chunk array.
type DecoderConfig struct {
	Codec       string // "vp8" or "vp9"
	CodedWidth  uint32
	CodedHeight uint32
	Description []byte // codec-specific description blob, may be nil
}

// Settings holds the output raster dimensions for a render.
type Settings struct {
	Width  uint32
	Height uint32
}

// RasterFrame is one decoded picture in tightly packed RGBA order, as
// produced by the decode collaborator and consumed by the capture surface.
type RasterFrame struct {
	Width  int
	Height int
	Pixels []byte // 4*Width*Height bytes, RGBA
}
