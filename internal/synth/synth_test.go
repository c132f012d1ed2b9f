package synth

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/voidwire/smear/media"
)

type fakeFetcher struct {
	buf   *PCMBuffer
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) (*PCMBuffer, error) {
	f.calls++
	return f.buf, f.err
}

func TestSynthesizeFastPathNoAudio(t *testing.T) {
	t.Parallel()

	s := New(Options{SampleRate: 48000, FPS: 30})
	counts := map[string]int{"clip": 10_000}

	short := []media.Segment{{SourceID: "clip", From: 0, To: 10, Repeat: 1}}
	long := []media.Segment{{SourceID: "clip", From: 0, To: 10_000, Repeat: 50}}

	a, err := s.Synthesize(context.Background(), short, counts)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	b, err := s.Synthesize(context.Background(), long, counts)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(a.Data) != len(b.Data) {
		t.Errorf("silent placeholder length depends on duration: %d vs %d", len(a.Data), len(b.Data))
	}
	if len(a.Data) != silentPlaceholderSamples {
		t.Errorf("placeholder length: got %d, want %d", len(a.Data), silentPlaceholderSamples)
	}
}

func TestSynthesizeDurationAgreement(t *testing.T) {
	t.Parallel()

	const (
		rate = 48000
		fps  = 30
	)
	s := New(Options{SampleRate: rate, FPS: fps})
	counts := map[string]int{"clip": 20}

	segments := []media.Segment{
		{SourceID: "clip", From: 0, To: 10, Repeat: 2, Audio: media.NoiseSpec(media.NoiseWhite)},
		{SourceID: "clip", From: 5, To: 8, Repeat: 1},
		{SourceID: "clip", From: -5, To: 1_000_000, Repeat: 3, Audio: media.SineSpec(440)},
	}

	buf, err := s.Synthesize(context.Background(), segments, counts)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	videoFrames := 0
	for _, seg := range segments {
		videoFrames += seg.TotalFrames(counts[seg.SourceID])
	}
	audioFrames := int(math.Round(float64(len(buf.Data)) / rate * fps))
	if diff := audioFrames - videoFrames; diff < -1 || diff > 1 {
		t.Errorf("duration mismatch: audio %d frames, video %d frames", audioFrames, videoFrames)
	}
}

func TestSynthesizeRetrigger(t *testing.T) {
	t.Parallel()

	const (
		rate = 1000
		fps  = 30
	)
	sample := &PCMBuffer{SampleRate: rate, Data: make([]float32, 100)}
	for i := range sample.Data {
		sample.Data[i] = float32(i+1) / 200
	}

	s := New(Options{SampleRate: rate, FPS: fps, Fetcher: &fakeFetcher{buf: sample}})
	segments := []media.Segment{
		{SourceID: "clip", From: 0, To: 30, Repeat: 3, Audio: media.SampleSpec("hit.wav")},
	}
	counts := map[string]int{"clip": 30}

	buf, err := s.Synthesize(context.Background(), segments, counts)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	d := int(math.Round(30.0 * rate / fps))
	if len(buf.Data) != 3*d {
		t.Fatalf("track length: got %d, want %d", len(buf.Data), 3*d)
	}
	for k := 1; k < 3; k++ {
		if !reflect.DeepEqual(buf.Data[k*d:k*d+len(sample.Data)], buf.Data[:len(sample.Data)]) {
			t.Errorf("repeat %d is not a retrigger of the first play", k)
		}
	}
	// Past the short sample, each single play is zero-padded, not looped.
	for i := len(sample.Data); i < d; i++ {
		if buf.Data[i] != 0 {
			t.Fatalf("expected zero padding at %d, got %g", i, buf.Data[i])
		}
	}
}

func TestSynthesizeSilentSegmentsStaySilent(t *testing.T) {
	t.Parallel()

	const (
		rate = 1200
		fps  = 30
	)
	s := New(Options{SampleRate: rate, FPS: fps, Seed: 5})
	segments := []media.Segment{
		{SourceID: "clip", From: 0, To: 30, Repeat: 1},
		{SourceID: "clip", From: 0, To: 30, Repeat: 1, Audio: media.SineSpec(100)},
	}
	counts := map[string]int{"clip": 30}

	buf, err := s.Synthesize(context.Background(), segments, counts)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	d := rate // 30 frames at 30fps is one second
	for i := 0; i < d; i++ {
		if buf.Data[i] != 0 {
			t.Fatalf("silent segment wrote sample %d: %g", i, buf.Data[i])
		}
	}
	var energy float64
	for _, v := range buf.Data[d:] {
		energy += float64(v) * float64(v)
	}
	if energy == 0 {
		t.Error("sine segment produced no signal")
	}
}

func TestSynthesizeFetchFailureSubstitutesSilence(t *testing.T) {
	t.Parallel()

	substitutions := 0
	s := New(Options{
		SampleRate:      1000,
		FPS:             30,
		Fetcher:         &fakeFetcher{err: errors.New("boom")},
		OnResourceError: func(error) { substitutions++ },
	})
	segments := []media.Segment{
		{SourceID: "clip", From: 0, To: 30, Repeat: 2, Audio: media.SampleSpec("gone.wav")},
	}
	counts := map[string]int{"clip": 30}

	buf, err := s.Synthesize(context.Background(), segments, counts)
	if err != nil {
		t.Fatalf("fetch failure must not abort synthesis: %v", err)
	}
	for i, v := range buf.Data {
		if v != 0 {
			t.Fatalf("expected silence at %d, got %g", i, v)
		}
	}
	if substitutions != 1 {
		t.Errorf("substitution callback: got %d calls, want 1", substitutions)
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	t.Parallel()

	segments := []media.Segment{
		{SourceID: "clip", From: 0, To: 15, Repeat: 2, Audio: media.NoiseSpec(media.NoisePink)},
		{SourceID: "clip", From: 0, To: 10, Repeat: 1, Audio: media.NoiseSpec(media.NoiseBrown)},
	}
	counts := map[string]int{"clip": 30}

	run := func() []float32 {
		s := New(Options{SampleRate: 8000, FPS: 30, Seed: 1234})
		buf, err := s.Synthesize(context.Background(), segments, counts)
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		return buf.Data
	}

	if !reflect.DeepEqual(run(), run()) {
		t.Error("same seed and inputs produced different tracks")
	}
}

func TestSynthesizeAppliesVolume(t *testing.T) {
	t.Parallel()

	const rate = 1000
	half := 0.5
	spec := media.SineSpec(250)
	spec.Volume = &half

	global := 0.5
	s := New(Options{SampleRate: rate, FPS: 30, GlobalVolume: &global})
	segments := []media.Segment{{SourceID: "clip", From: 0, To: 30, Repeat: 1, Audio: spec}}
	buf, err := s.Synthesize(context.Background(), segments, map[string]int{"clip": 30})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	var peak float64
	for _, v := range buf.Data {
		if a := math.Abs(float64(v)); a > peak {
			peak = a
		}
	}
	if peak > 0.26 || peak < 0.2 {
		t.Errorf("peak after 0.5*0.5 gain: got %g, want ~0.25", peak)
	}
}

func TestSynthesizeZeroVolumeSilencesTrack(t *testing.T) {
	t.Parallel()

	// An explicit zero is a valid gain and must not be promoted to the
	// default; only a nil GlobalVolume means "use 1.0".
	zero := 0.0
	s := New(Options{SampleRate: 1000, FPS: 30, Seed: 7, GlobalVolume: &zero})
	segments := []media.Segment{
		{SourceID: "clip", From: 0, To: 30, Repeat: 1, Audio: media.SineSpec(250)},
		{SourceID: "clip", From: 0, To: 30, Repeat: 2, Audio: media.NoiseSpec(media.NoiseWhite)},
	}

	buf, err := s.Synthesize(context.Background(), segments, map[string]int{"clip": 30})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	for i, v := range buf.Data {
		if v != 0 {
			t.Fatalf("zero volume leaked signal at sample %d: %g", i, v)
		}
	}
}
