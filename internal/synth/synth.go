package synth

import (
	"context"
	"log/slog"
	"math"
	"math/rand"

	"github.com/voidwire/smear/media"
)

// silentPlaceholderSamples is the fixed length of the buffer returned when
// no segment carries an audio spec. It is deliberately independent of the
// timeline duration so silent renders allocate nothing of consequence.
const silentPlaceholderSamples = 1024

// Fetcher resolves a Sample audio URL to decoded PCM. Fetch failures are
// recovered locally by the synthesizer as silence; implementations should
// not retry indefinitely.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*PCMBuffer, error)
}

// Options configures a Synthesizer. Zero values select the defaults noted
// on each field.
type Options struct {
	SampleRate int // default 48000
	FPS        int // default 30

	// GlobalVolume is multiplied into every per-segment gain. nil selects
	// the default of 1.0; an explicit zero silences the whole track.
	GlobalVolume *float64

	// ContinuousPinkState keeps the pink-noise filter taps warm across the
	// repeats of one segment instead of resetting them at every single-play
	// boundary. The reset behavior is the historical default.
	ContinuousPinkState bool

	// Seed drives all noise generation. Two Synthesize calls with the same
	// seed and inputs produce byte-identical buffers.
	Seed int64

	Fetcher Fetcher
	Log     *slog.Logger

	// OnResourceError is invoked once per segment whose Sample resource
	// failed to fetch or decode and was substituted with silence.
	OnResourceError func(err error)
}

// Synthesizer assembles the mono audio track for a segment timeline.
type Synthesizer struct {
	opts   Options
	volume float64
	log    *slog.Logger
}

// New creates a Synthesizer, applying option defaults.
func New(opts Options) *Synthesizer {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	volume := 1.0
	if opts.GlobalVolume != nil {
		volume = *opts.GlobalVolume
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{opts: opts, volume: volume, log: log.With("component", "synth")}
}

// Synthesize builds one mono track for segments against sources holding the
// given chunk counts. Per segment, the single-play sample count is
// round(sampleRate * frames / fps) with frames taken from the identical
// clamped-bounds formula the timeline expander uses; a segment's audio is
// generated once at that length and copied Repeat times back to back, which
// is what produces the audible retrigger aligned with the visual repeat.
// Segments without an audio spec advance the write cursor over pre-zeroed
// silence. A Sample fetch failure degrades that one segment to silence and
// is never fatal.
func (s *Synthesizer) Synthesize(ctx context.Context, segments []media.Segment, counts map[string]int) (*PCMBuffer, error) {
	rate := s.opts.SampleRate

	hasAudio := false
	for _, seg := range segments {
		if seg.Audio != nil && seg.Repeat > 0 && seg.Frames(counts[seg.SourceID]) > 0 {
			hasAudio = true
			break
		}
	}
	if !hasAudio {
		return &PCMBuffer{SampleRate: rate, Data: make([]float32, silentPlaceholderSamples)}, nil
	}

	total := 0
	for _, seg := range segments {
		if seg.Repeat <= 0 {
			continue
		}
		total += seg.Repeat * s.singlePlaySamples(seg, counts)
	}

	track := make([]float32, total)
	rng := rand.New(rand.NewSource(s.opts.Seed))

	cursor := 0
	for i, seg := range segments {
		if seg.Repeat <= 0 {
			continue
		}
		d := s.singlePlaySamples(seg, counts)
		if seg.Audio == nil || d == 0 {
			cursor += seg.Repeat * d
			continue
		}

		if seg.Audio.Kind == media.AudioNoise && seg.Audio.Noise == media.NoisePink && s.opts.ContinuousPinkState {
			s.fillContinuousPink(track[cursor:cursor+seg.Repeat*d], seg.Audio.Gain(s.volume), rng)
			cursor += seg.Repeat * d
			continue
		}

		single := s.singlePlay(ctx, i, seg.Audio, d, rng)
		for r := 0; r < seg.Repeat; r++ {
			copy(track[cursor:cursor+d], single)
			cursor += d
		}
	}

	return &PCMBuffer{SampleRate: rate, Data: track}, nil
}

// singlePlaySamples converts one segment's single-play frame count into a
// sample count. This is the only place frame math meets sample math.
func (s *Synthesizer) singlePlaySamples(seg media.Segment, counts map[string]int) int {
	frames := seg.Frames(counts[seg.SourceID])
	return int(math.Round(float64(frames) * float64(s.opts.SampleRate) / float64(s.opts.FPS)))
}

// singlePlay generates one buffer of d samples for spec, with the resolved
// gain already applied. Sample fetch or decode failure returns silence.
func (s *Synthesizer) singlePlay(ctx context.Context, index int, spec *media.AudioSpec, d int, rng *rand.Rand) []float32 {
	buf := make([]float32, d)
	gain := float32(spec.Gain(s.volume))

	switch spec.Kind {
	case media.AudioNoise, media.AudioSine:
		gen := s.newGenerator(spec, rng)
		for i := range buf {
			buf[i] = gen.sample() * gain
		}

	case media.AudioSample:
		src, err := s.fetchSample(ctx, spec.URL)
		if err != nil {
			s.log.Warn("sample fetch failed, substituting silence",
				"segment", index, "url", spec.URL, "error", err)
			if s.opts.OnResourceError != nil {
				s.opts.OnResourceError(err)
			}
			return buf
		}
		n := len(src.Data)
		if n > d {
			n = d
		}
		for i := 0; i < n; i++ {
			buf[i] = src.Data[i] * gain
		}
	}
	return buf
}

func (s *Synthesizer) newGenerator(spec *media.AudioSpec, rng *rand.Rand) generator {
	if spec.Kind == media.AudioSine {
		return &sineWave{frequencyHz: spec.FrequencyHz, sampleRate: s.opts.SampleRate}
	}
	switch spec.Noise {
	case media.NoisePink:
		return &pinkNoise{rng: rng}
	case media.NoiseBrown:
		return &brownNoise{rng: rng}
	default:
		return &whiteNoise{rng: rng}
	}
}

// fillContinuousPink streams pink noise over the whole repeat span with one
// warm filter, so repeat boundaries carry no spectral discontinuity.
func (s *Synthesizer) fillContinuousPink(dst []float32, gain float64, rng *rand.Rand) {
	gen := &pinkNoise{rng: rng}
	g := float32(gain)
	for i := range dst {
		dst[i] = gen.sample() * g
	}
}

// fetchSample resolves a Sample URL to PCM at the synthesizer's rate,
// resampling by nearest sample if the resource was encoded at another rate.
func (s *Synthesizer) fetchSample(ctx context.Context, url string) (*PCMBuffer, error) {
	if s.opts.Fetcher == nil {
		return nil, &ResourceError{URL: url, Err: errNoFetcher}
	}
	src, err := s.opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &ResourceError{URL: url, Err: err}
	}
	if src.SampleRate == s.opts.SampleRate || src.SampleRate <= 0 {
		return src, nil
	}

	ratio := float64(src.SampleRate) / float64(s.opts.SampleRate)
	out := make([]float32, int(float64(len(src.Data))/ratio))
	for i := range out {
		out[i] = src.Data[int(float64(i)*ratio)]
	}
	return &PCMBuffer{SampleRate: s.opts.SampleRate, Data: out}, nil
}
