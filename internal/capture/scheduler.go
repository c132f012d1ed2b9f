package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/voidwire/smear/media"
)

// Decoder is the external decode collaborator. It is stateful across a GOP:
// a delta chunk decodes relative to whatever reference frames earlier chunks
// left behind, which is exactly the dependency the datamosh technique
// exploits when chunks arrive out of original order.
type Decoder interface {
	// Configure binds the decoder to ctx: implementations backed by an
	// external process must die with it, so a deadline expiring mid-render
	// also unblocks any read pending inside Decode.
	Configure(ctx context.Context, cfg media.DecoderConfig) error
	Decode(ctx context.Context, chunk media.EncodedChunk) (*media.RasterFrame, error)
	Close() error
}

// Sink receives raster frames at the capture cadence and accumulates
// compressed output. Finalize flushes and returns the video-only blob.
type Sink interface {
	WriteFrame(ctx context.Context, pixels []byte) error
	Finalize(ctx context.Context) ([]byte, error)
}

// Encoder opens capture sinks. It is the external encode collaborator.
type Encoder interface {
	Start(ctx context.Context, settings media.Settings, fps int) (Sink, error)
}

// State tracks where the scheduler is in its per-frame cycle. Exposed for
// tests and for debug logging; the scheduler itself is single-threaded.
type State int

// Scheduler states.
const (
	StateIdle State = iota
	StateDecoding
	StateDrawn
	StateCaptured
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateDrawn:
		return "drawn"
	case StateCaptured:
		return "captured"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// progressEvery throttles progress reporting to every Nth frame so callers
// driving UI do not oscillate on per-frame noise.
const progressEvery = 10

// Scheduler runs the fixed-cadence decode-draw-capture loop over an
// expanded chunk list.
type Scheduler struct {
	dec      Decoder
	enc      Encoder
	settings media.Settings
	fps      int
	log      *slog.Logger

	state State

	// now and sleep are injectable for deterministic timing tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a Scheduler over the given collaborators. fps must be
// positive; log may be nil.
func NewScheduler(dec Decoder, enc Encoder, settings media.Settings, fps int, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		dec:      dec,
		enc:      enc,
		settings: settings,
		fps:      fps,
		log:      log.With("component", "capture"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// State reports the scheduler's current position in the capture cycle.
func (s *Scheduler) State() State {
	return s.state
}

// Capture decodes every chunk in order, draws it to the surface, hands the
// raster to the sink, and paces the loop with an additive schedule:
// nextFrameTime advances by exactly one frame interval per iteration and the
// sleep is the remaining gap, so per-iteration overhead never accumulates
// into drift. Progress is reported every progressEvery frames as i/N in
// [0, 1]; the caller rescales into its own range. After the last chunk the
// scheduler waits two frame intervals for the sink to flush, then finalizes.
func (s *Scheduler) Capture(ctx context.Context, chunks []media.EncodedChunk, cfg media.DecoderConfig, progress func(float64)) ([]byte, error) {
	if err := s.dec.Configure(ctx, cfg); err != nil {
		return nil, &DecodeError{Err: err}
	}
	defer s.dec.Close()

	sink, err := s.enc.Start(ctx, s.settings, s.fps)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	surface := NewSurface(int(s.settings.Width), int(s.settings.Height))
	interval := time.Second / time.Duration(s.fps)
	next := s.now()

	s.log.Info("capture starting", "frames", len(chunks), "fps", s.fps,
		"width", s.settings.Width, "height", s.settings.Height)

	for i, chunk := range chunks {
		s.state = StateDecoding
		frame, err := s.dec.Decode(ctx, chunk)
		if err != nil {
			return nil, &DecodeError{Chunk: i, Err: err}
		}

		// After the draw the surface holds the only copy we need; the
		// decoded frame is dropped here, keeping memory bounded to O(1)
		// frames no matter how long the expanded list is.
		surface.Draw(frame)
		s.state = StateDrawn

		if err := sink.WriteFrame(ctx, surface.Pixels()); err != nil {
			return nil, &EncodeError{Err: err}
		}
		s.state = StateCaptured

		if progress != nil && ((i+1)%progressEvery == 0 || i+1 == len(chunks)) {
			progress(float64(i+1) / float64(len(chunks)))
		}

		next = next.Add(interval)
		if d := next.Sub(s.now()); d > 0 {
			if err := s.sleep(ctx, d); err != nil {
				return nil, err
			}
		}
	}

	s.state = StateFinalizing
	// Let the sink observe the final raster for a couple of intervals
	// before cutting it off, or the last frame can go missing.
	if err := s.sleep(ctx, 2*interval); err != nil {
		return nil, err
	}

	blob, err := sink.Finalize(ctx)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	s.state = StateDone
	s.log.Info("capture finished", "frames", len(chunks), "bytes", len(blob))
	return blob, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
