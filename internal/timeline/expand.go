// Package timeline expands declarative segment lists into the flat ordered
// chunk stream that drives the capture loop. Expansion is pure and
// deterministic: all randomness (preset selection, hybrid merging) lives in
// preset.go behind an injected RNG and produces plain segment lists before
// Expand ever runs.
package timeline

import (
	"fmt"

	"github.com/voidwire/smear/media"
)

// Expand flattens segments against their source chunk arrays. For each
// segment in list order the clamped sub-slice source[from:to) is appended
// Repeat times, so the output length is Σ repeat_i * (to_i' - from_i').
// Chunk values are copied as-is: in particular the key/delta kind tag is
// preserved unmodified, because replaying delta chunks away from their
// original key frame is the whole point of the operation.
func Expand(segments []media.Segment, sources map[string][]media.EncodedChunk) ([]media.EncodedChunk, error) {
	total := 0
	for i, seg := range segments {
		src, ok := sources[seg.SourceID]
		if !ok {
			return nil, fmt.Errorf("timeline: segment %d references unknown source %q", i, seg.SourceID)
		}
		total += seg.TotalFrames(len(src))
	}

	out := make([]media.EncodedChunk, 0, total)
	for _, seg := range segments {
		src := sources[seg.SourceID]
		from, to := seg.Bounds(len(src))
		for r := 0; r < seg.Repeat; r++ {
			out = append(out, src[from:to]...)
		}
	}
	return out, nil
}

// FrameCount returns the total number of frames Expand would produce for
// segments against sources holding the given chunk counts. The audio
// synthesizer uses the same per-segment math, which is what keeps the two
// tracks in sample-accurate agreement.
func FrameCount(segments []media.Segment, counts map[string]int) int {
	total := 0
	for _, seg := range segments {
		total += seg.TotalFrames(counts[seg.SourceID])
	}
	return total
}

// SourceCounts derives the per-source chunk counts from loaded sources,
// for handing to FrameCount and the synthesizer.
func SourceCounts(sources map[string][]media.EncodedChunk) map[string]int {
	counts := make(map[string]int, len(sources))
	for id, chunks := range sources {
		counts[id] = len(chunks)
	}
	return counts
}
