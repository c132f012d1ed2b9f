package media

import "testing"

func TestSegmentBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from, to int
		n        int
		wantFrom int
		wantTo   int
	}{
		{"in range", 5, 8, 20, 5, 8},
		{"negative from and huge to", -5, 1_000_000, 50, 0, 50},
		{"from past end", 100, 200, 50, 49, 50},
		{"inverted range", 7, 3, 20, 7, 8},
		{"equal bounds", 4, 4, 20, 4, 5},
		{"full source", 0, 20, 20, 0, 20},
		{"empty source", 0, 10, 0, 0, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			seg := Segment{From: tt.from, To: tt.to}
			from, to := seg.Bounds(tt.n)
			if from != tt.wantFrom || to != tt.wantTo {
				t.Errorf("Bounds(%d): got (%d, %d), want (%d, %d)",
					tt.n, from, to, tt.wantFrom, tt.wantTo)
			}
			if tt.n > 0 && from >= to {
				t.Errorf("Bounds(%d): from %d not below to %d", tt.n, from, to)
			}
		})
	}
}

func TestSegmentTotalFrames(t *testing.T) {
	t.Parallel()

	seg := Segment{From: 0, To: 10, Repeat: 2}
	if got := seg.TotalFrames(20); got != 20 {
		t.Errorf("TotalFrames: got %d, want 20", got)
	}

	zero := Segment{From: 0, To: 10, Repeat: 0}
	if got := zero.TotalFrames(20); got != 0 {
		t.Errorf("repeat=0 should contribute zero frames, got %d", got)
	}
}

func TestAudioSpecGain(t *testing.T) {
	t.Parallel()

	spec := NoiseSpec(NoiseWhite)
	if got := spec.Gain(0.5); got != 0.5 {
		t.Errorf("default volume gain: got %g, want 0.5", got)
	}

	half := 0.5
	spec.Volume = &half
	if got := spec.Gain(0.5); got != 0.25 {
		t.Errorf("explicit volume gain: got %g, want 0.25", got)
	}
}

func TestAudioSpecConstructors(t *testing.T) {
	t.Parallel()

	if s := NoiseSpec(NoisePink); s.Kind != AudioNoise || s.Noise != NoisePink {
		t.Errorf("NoiseSpec: got %+v", s)
	}
	if s := SineSpec(440); s.Kind != AudioSine || s.FrequencyHz != 440 {
		t.Errorf("SineSpec: got %+v", s)
	}
	if s := SampleSpec("x.wav"); s.Kind != AudioSample || s.URL != "x.wav" {
		t.Errorf("SampleSpec: got %+v", s)
	}
}
