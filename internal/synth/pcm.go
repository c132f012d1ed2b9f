// Package synth generates the mono audio track for a segment timeline. The
// track's duration is derived from the exact same per-segment frame math as
// the video expansion, which is what keeps the two streams in sample-accurate
// agreement; see Synthesizer.Synthesize.
package synth

import "time"

// PCMBuffer is a mono float32 sample buffer at a fixed rate. Samples are
// nominally in [-1, 1]; the WAV encoder clips anything outside.
type PCMBuffer struct {
	SampleRate int
	Data       []float32
}

// Duration returns the buffer's play time.
func (b *PCMBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Data)) / float64(b.SampleRate) * float64(time.Second))
}
