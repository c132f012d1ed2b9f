package synth

import (
	"math"
	"math/rand"
)

// generator produces one mono sample per call. Generators are stateful
// (noise RNG position, IIR filter taps, sine phase) and are created fresh
// per single-play buffer unless the synthesizer is configured otherwise.
type generator interface {
	sample() float32
}

type whiteNoise struct {
	rng *rand.Rand
}

func (g *whiteNoise) sample() float32 {
	return float32(g.rng.Float64()*2 - 1)
}

// pinkNoise approximates a 1/f spectrum with Paul Kellet's six-pole IIR
// filter over white noise. The taps start at zero; whether a fresh filter
// is used per single-play buffer or one filter spans a segment's repeats is
// the synthesizer's ContinuousPinkState option.
type pinkNoise struct {
	rng                        *rand.Rand
	b0, b1, b2, b3, b4, b5, b6 float64
}

func (g *pinkNoise) sample() float32 {
	white := g.rng.Float64()*2 - 1
	g.b0 = 0.99886*g.b0 + white*0.0555179
	g.b1 = 0.99332*g.b1 + white*0.0750759
	g.b2 = 0.96900*g.b2 + white*0.1538520
	g.b3 = 0.86650*g.b3 + white*0.3104856
	g.b4 = 0.55000*g.b4 + white*0.5329522
	g.b5 = -0.7616*g.b5 - white*0.0168980
	pink := g.b0 + g.b1 + g.b2 + g.b3 + g.b4 + g.b5 + g.b6 + white*0.5362
	g.b6 = white * 0.115926
	return float32(pink * 0.11)
}

// brownNoise integrates white noise through a leaky accumulator, giving the
// steeper 1/f² rolloff. The 3.5x make-up gain compensates for the
// integrator's low output level.
type brownNoise struct {
	rng  *rand.Rand
	last float64
}

func (g *brownNoise) sample() float32 {
	white := g.rng.Float64()*2 - 1
	g.last = (g.last + 0.02*white) / 1.02
	return float32(g.last * 3.5)
}

type sineWave struct {
	frequencyHz float64
	sampleRate  int
	n           int
}

func (g *sineWave) sample() float32 {
	v := math.Sin(2 * math.Pi * g.frequencyHz * float64(g.n) / float64(g.sampleRate))
	g.n++
	return float32(v)
}
