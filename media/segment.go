package media

// NoiseColor selects the spectral shape of a synthesized noise segment.
type NoiseColor int

// Noise colors.
const (
	NoiseWhite NoiseColor = iota
	NoisePink
	NoiseBrown
)

func (c NoiseColor) String() string {
	switch c {
	case NoiseWhite:
		return "white"
	case NoisePink:
		return "pink"
	case NoiseBrown:
		return "brown"
	default:
		return "unknown"
	}
}

// AudioKind discriminates the AudioSpec tagged union.
type AudioKind int

// Audio spec variants.
const (
	AudioNoise AudioKind = iota
	AudioSine
	AudioSample
)

// AudioSpec describes the synthetic audio attached to one segment. It is a
// closed tagged union: exactly the fields selected by Kind are meaningful.
type AudioSpec struct {
	Kind AudioKind

	Noise       NoiseColor // AudioNoise
	FrequencyHz float64    // AudioSine
	URL         string     // AudioSample

	// Volume is the per-segment gain, nil meaning 1.0. It multiplies the
	// global timeline volume.
	Volume *float64
}

// NoiseSpec returns an AudioSpec for synthesized noise of the given color.
func NoiseSpec(color NoiseColor) *AudioSpec {
	return &AudioSpec{Kind: AudioNoise, Noise: color}
}

// SineSpec returns an AudioSpec for a pure tone at the given frequency.
func SineSpec(frequencyHz float64) *AudioSpec {
	return &AudioSpec{Kind: AudioSine, FrequencyHz: frequencyHz}
}

// SampleSpec returns an AudioSpec that retriggers the audio resource at url.
func SampleSpec(url string) *AudioSpec {
	return &AudioSpec{Kind: AudioSample, URL: url}
}

// Gain resolves the effective per-sample gain for this spec against the
// global timeline volume.
func (s *AudioSpec) Gain(global float64) float64 {
	v := 1.0
	if s.Volume != nil {
		v = *s.Volume
	}
	return v * global
}

// Segment is one declarative timeline instruction: play chunks [From, To) of
// the named source, Repeat times, optionally with synthetic audio. From and
// To are caller-supplied and may be out of range or inverted; Bounds applies
// the clamp policy before any frame or sample math.
type Segment struct {
	SourceID string
	From     int
	To       int
	Repeat   int
	Audio    *AudioSpec
}

// Bounds clamps the segment range against a source holding n chunks and
// returns the effective half-open range [from, to). The policy guarantees
// from < to for any input when n > 0: from is clamped into [0, n-1], then to
// is forced past from and clamped to n. A zero-length source yields (0, 0).
func (s Segment) Bounds(n int) (from, to int) {
	if n <= 0 {
		return 0, 0
	}
	from = clamp(s.From, 0, n-1)
	to = s.To
	if to < s.From+1 {
		to = s.From + 1
	}
	to = clamp(to, from+1, n)
	return from, to
}

// Frames returns the single-play frame count of the segment against a source
// of n chunks. This is the one formula both the timeline expander and the
// audio synthesizer derive duration from; any second derivation is a bug.
func (s Segment) Frames(n int) int {
	from, to := s.Bounds(n)
	return to - from
}

// TotalFrames returns Frames multiplied by the repeat count. A repeat of
// zero contributes nothing without being an error.
func (s Segment) TotalFrames(n int) int {
	if s.Repeat <= 0 {
		return 0
	}
	return s.Repeat * s.Frames(n)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
