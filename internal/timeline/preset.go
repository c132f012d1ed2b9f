package timeline

import (
	"fmt"
	"math/rand"

	"github.com/voidwire/smear/media"
)

// Preset is a named segment template. Segments may leave SourceID empty,
// meaning "any source"; Bind assigns concrete sources before expansion.
type Preset struct {
	Name     string
	Segments []media.Segment
}

// Bind returns a copy of the preset's segments with every empty SourceID
// replaced by a source drawn from sourceIDs via rng. Segments that already
// name a source are left alone. The caller controls determinism by seeding
// rng; Bind itself contains no ambient randomness.
func (p Preset) Bind(sourceIDs []string, rng *rand.Rand) ([]media.Segment, error) {
	if len(sourceIDs) == 0 {
		return nil, fmt.Errorf("timeline: preset %q bound with no sources", p.Name)
	}
	out := make([]media.Segment, len(p.Segments))
	copy(out, p.Segments)
	for i := range out {
		if out[i].SourceID == "" {
			out[i].SourceID = sourceIDs[rng.Intn(len(sourceIDs))]
		}
	}
	return out, nil
}

// Hybrid builds a new preset by interleaving segments drawn from several
// named presets. Each output position takes the next unconsumed segment of a
// preset chosen by rng, so repeated calls with the same seed reproduce the
// same merge. The result has the combined length of all inputs.
func Hybrid(name string, presets []Preset, rng *rand.Rand) Preset {
	cursors := make([]int, len(presets))
	remaining := 0
	for _, p := range presets {
		remaining += len(p.Segments)
	}

	merged := make([]media.Segment, 0, remaining)
	for remaining > 0 {
		pick := rng.Intn(len(presets))
		for cursors[pick] >= len(presets[pick].Segments) {
			pick = (pick + 1) % len(presets)
		}
		merged = append(merged, presets[pick].Segments[cursors[pick]])
		cursors[pick]++
		remaining--
	}
	return Preset{Name: name, Segments: merged}
}
