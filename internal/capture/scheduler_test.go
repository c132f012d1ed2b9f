package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voidwire/smear/media"
)

type fakeDecoder struct {
	configured media.DecoderConfig
	decoded    int
	failAt     int // chunk index that fails, -1 for never
	closed     bool
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{failAt: -1}
}

func (d *fakeDecoder) Configure(_ context.Context, cfg media.DecoderConfig) error {
	d.configured = cfg
	return nil
}

func (d *fakeDecoder) Decode(_ context.Context, chunk media.EncodedChunk) (*media.RasterFrame, error) {
	if d.decoded == d.failAt {
		return nil, errors.New("bitstream rejected")
	}
	d.decoded++
	shade := byte(len(chunk.Payload))
	return &media.RasterFrame{
		Width:  2,
		Height: 2,
		Pixels: []byte{
			shade, 0, 0, 255, shade, 0, 0, 255,
			shade, 0, 0, 255, shade, 0, 0, 255,
		},
	}, nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

type fakeSink struct {
	frames    int
	finalized bool
	writeErr  error
}

func (s *fakeSink) WriteFrame(context.Context, []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames++
	return nil
}

func (s *fakeSink) Finalize(context.Context) ([]byte, error) {
	s.finalized = true
	return []byte("video"), nil
}

type fakeEncoder struct {
	sink *fakeSink
}

func (e *fakeEncoder) Start(context.Context, media.Settings, int) (Sink, error) {
	return e.sink, nil
}

func chunks(n int) []media.EncodedChunk {
	out := make([]media.EncodedChunk, n)
	for i := range out {
		out[i] = media.EncodedChunk{Kind: media.ChunkDelta, Payload: []byte{byte(i)}}
	}
	return out
}

// fastClock replaces the scheduler's timing hooks with a virtual clock that
// records every requested sleep instead of waiting.
type fastClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fastClock) install(s *Scheduler) {
	s.now = func() time.Time { return c.now }
	s.sleep = func(_ context.Context, d time.Duration) error {
		c.sleeps = append(c.sleeps, d)
		c.now = c.now.Add(d)
		return nil
	}
}

func TestSchedulerCapturesEveryChunk(t *testing.T) {
	t.Parallel()

	dec := newFakeDecoder()
	sink := &fakeSink{}
	s := NewScheduler(dec, &fakeEncoder{sink: sink}, media.Settings{Width: 4, Height: 4}, 30, nil)
	(&fastClock{now: time.Unix(0, 0)}).install(s)

	blob, err := s.Capture(context.Background(), chunks(25), media.DecoderConfig{Codec: "vp8"}, nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if string(blob) != "video" {
		t.Errorf("blob: got %q", blob)
	}
	if dec.decoded != 25 || sink.frames != 25 {
		t.Errorf("decoded %d, captured %d, want 25 each", dec.decoded, sink.frames)
	}
	if !dec.closed || !sink.finalized {
		t.Error("decoder not closed or sink not finalized")
	}
	if s.State() != StateDone {
		t.Errorf("state: got %v, want %v", s.State(), StateDone)
	}
}

func TestSchedulerProgressThrottledAndMonotone(t *testing.T) {
	t.Parallel()

	s := NewScheduler(newFakeDecoder(), &fakeEncoder{sink: &fakeSink{}}, media.Settings{Width: 2, Height: 2}, 30, nil)
	(&fastClock{now: time.Unix(0, 0)}).install(s)

	var reports []float64
	_, err := s.Capture(context.Background(), chunks(25), media.DecoderConfig{}, func(f float64) {
		reports = append(reports, f)
	})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	// 25 frames at every-10 reporting: frames 10, 20, and the final 25.
	want := []float64{10.0 / 25, 20.0 / 25, 1.0}
	if len(reports) != len(want) {
		t.Fatalf("reports: got %v, want %v", reports, want)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Errorf("report %d: got %g, want %g", i, reports[i], want[i])
		}
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Errorf("progress went backwards at %d: %v", i, reports)
		}
	}
}

func TestSchedulerAdditiveTiming(t *testing.T) {
	t.Parallel()

	clock := &fastClock{now: time.Unix(0, 0)}
	s := NewScheduler(newFakeDecoder(), &fakeEncoder{sink: &fakeSink{}}, media.Settings{Width: 2, Height: 2}, 50, nil)
	clock.install(s)

	start := clock.now
	if _, err := s.Capture(context.Background(), chunks(10), media.DecoderConfig{}, nil); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	// With instantaneous work the virtual clock must land exactly on
	// frames/fps plus the two-interval flush wait: no cumulative drift.
	interval := time.Second / 50
	want := 10*interval + 2*interval
	if got := clock.now.Sub(start); got != want {
		t.Errorf("elapsed: got %v, want %v", got, want)
	}
	if len(clock.sleeps) != 11 {
		t.Errorf("sleep count: got %d, want 11", len(clock.sleeps))
	}
}

func TestSchedulerDecodeFailureAborts(t *testing.T) {
	t.Parallel()

	dec := newFakeDecoder()
	dec.failAt = 3
	sink := &fakeSink{}
	s := NewScheduler(dec, &fakeEncoder{sink: sink}, media.Settings{Width: 2, Height: 2}, 30, nil)
	(&fastClock{now: time.Unix(0, 0)}).install(s)

	_, err := s.Capture(context.Background(), chunks(10), media.DecoderConfig{}, nil)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decodeErr.Chunk != 3 {
		t.Errorf("failing chunk: got %d, want 3", decodeErr.Chunk)
	}
	if sink.finalized {
		t.Error("sink must not finalize after a fatal decode error")
	}
}

func TestSchedulerEncodeFailureAborts(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{writeErr: errors.New("sink full")}
	s := NewScheduler(newFakeDecoder(), &fakeEncoder{sink: sink}, media.Settings{Width: 2, Height: 2}, 30, nil)
	(&fastClock{now: time.Unix(0, 0)}).install(s)

	_, err := s.Capture(context.Background(), chunks(5), media.DecoderConfig{}, nil)
	var encodeErr *EncodeError
	if !errors.As(err, &encodeErr) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
}

func TestSchedulerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScheduler(newFakeDecoder(), &fakeEncoder{sink: &fakeSink{}}, media.Settings{Width: 2, Height: 2}, 30, nil)

	_, err := s.Capture(ctx, chunks(100), media.DecoderConfig{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
