// Package render owns the per-item pipeline: expand the segment timeline,
// synthesize the audio track, run the capture loop, and mux the two streams
// into one deliverable. Each render call owns its buffers end to end; there
// is no shared mutable state between items beyond the bounded output queue.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voidwire/smear/internal/capture"
	"github.com/voidwire/smear/internal/ffmpeg"
	"github.com/voidwire/smear/internal/metrics"
	"github.com/voidwire/smear/internal/store"
	"github.com/voidwire/smear/internal/synth"
	"github.com/voidwire/smear/internal/timeline"
	"github.com/voidwire/smear/media"
)

// Capture owns progress up to this fraction; the mux takes the rest.
const captureProgressShare = 0.70

// Progress receives non-decreasing values in [0, 1] as a render advances.
type Progress func(fraction float64)

// Job is one render request. Sources and segments are read-only inputs
// prepared by the caller; the pipeline never mutates them.
type Job struct {
	ID            uuid.UUID
	Segments      []media.Segment
	Sources       map[string][]media.EncodedChunk
	DecoderConfig media.DecoderConfig
}

// Deliverable is one finished, fully muxed output.
type Deliverable struct {
	ID           uuid.UUID
	Key          string
	Data         []byte
	Frames       int
	AudioSamples int
	Duration     time.Duration
}

// Config carries the per-pipeline render parameters.
type Config struct {
	Settings            media.Settings
	FPS                 int           // default 30
	SampleRate          int           // default 48000
	Volume              *float64      // global audio volume, nil for 1.0; explicit 0 is honored
	Seed                int64         // noise determinism
	ContinuousPinkState bool          // see synth.Options
	Timeout             time.Duration // per-item deadline, default 10m
	QueueSize           int           // output queue bound, default 4
}

// Collaborators are the external capabilities a pipeline renders through.
// NewDecoder is a factory because decoders are stateful across one chunk
// stream and cannot be reused between items.
type Collaborators struct {
	NewDecoder func() capture.Decoder
	Encoder    capture.Encoder
	Muxer      ffmpeg.Muxer
	Fetcher    synth.Fetcher
	Store      store.KeyedBlobStore // optional; deliverables are persisted when set
}

// Pipeline renders jobs one at a time per call and queues finished
// deliverables on a bounded channel. Multiple Render calls may run
// concurrently; each owns its own decoder and buffers.
type Pipeline struct {
	cfg     Config
	collab  Collaborators
	log     *slog.Logger
	met     *metrics.Metrics
	tracker *Tracker
	out     chan *Deliverable
}

// New creates a Pipeline. met may be nil to disable instrumentation; log
// may be nil for slog.Default().
func New(cfg Config, collab Collaborators, met *metrics.Metrics, log *slog.Logger) *Pipeline {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:     cfg,
		collab:  collab,
		log:     log.With("component", "render"),
		met:     met,
		tracker: NewTracker(log),
		out:     make(chan *Deliverable, cfg.QueueSize),
	}
}

// Output is the bounded queue of finished deliverables.
func (p *Pipeline) Output() <-chan *Deliverable {
	return p.out
}

// Active lists the renders currently in flight.
func (p *Pipeline) Active() []JobStatus {
	return p.tracker.List()
}

// Render runs one job under the per-item deadline. Either a complete,
// correctly muxed deliverable is produced and queued, or a typed error is
// returned and nothing reaches the queue; there is no partial success.
func (p *Pipeline) Render(ctx context.Context, job Job, progress Progress) (*Deliverable, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	log := p.log.With("job", job.ID)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if p.met != nil {
		p.met.RendersStarted.Inc()
		p.met.ActiveRenders.Inc()
		defer p.met.ActiveRenders.Dec()
	}

	expanded, err := timeline.Expand(job.Segments, job.Sources)
	if err != nil {
		return nil, p.fail(err)
	}
	if len(expanded) == 0 {
		return nil, p.fail(ErrEmptyTimeline)
	}

	tracked := p.tracker.add(job.ID, len(expanded))
	defer p.tracker.remove(job.ID)
	report := p.monotonic(progress, tracked)

	log.Info("render starting", "segments", len(job.Segments), "frames", len(expanded))

	// Audio is a single batch computation: its duration depends only on the
	// segment math, never on live capture progress, so it runs up front.
	counts := timeline.SourceCounts(job.Sources)
	sy := synth.New(synth.Options{
		SampleRate:          p.cfg.SampleRate,
		FPS:                 p.cfg.FPS,
		GlobalVolume:        p.cfg.Volume,
		ContinuousPinkState: p.cfg.ContinuousPinkState,
		Seed:                p.cfg.Seed,
		Fetcher:             p.collab.Fetcher,
		Log:                 log,
		OnResourceError: func(error) {
			if p.met != nil {
				p.met.AudioSubstitutions.Inc()
			}
		},
	})
	pcm, err := sy.Synthesize(ctx, job.Segments, counts)
	if err != nil {
		return nil, p.fail(fmt.Errorf("render: synthesize: %w", err))
	}
	audioBlob, err := synth.EncodeWAV(pcm)
	if err != nil {
		return nil, p.fail(fmt.Errorf("render: encode audio: %w", err))
	}

	sched := capture.NewScheduler(p.collab.NewDecoder(), p.collab.Encoder, p.cfg.Settings, p.cfg.FPS, log)
	videoBlob, err := sched.Capture(ctx, expanded, job.DecoderConfig, func(f float64) {
		report(f * captureProgressShare)
	})
	if err != nil {
		return nil, p.fail(err)
	}
	if p.met != nil {
		p.met.FramesCaptured.Add(float64(len(expanded)))
	}

	report(captureProgressShare)
	final, err := p.collab.Muxer.Mux(ctx, videoBlob, audioBlob)
	if err != nil {
		return nil, p.fail(fmt.Errorf("render: %w", err))
	}
	report(1.0)

	d := &Deliverable{
		ID:           job.ID,
		Key:          job.ID.String() + ".webm",
		Data:         final,
		Frames:       len(expanded),
		AudioSamples: len(pcm.Data),
		Duration:     time.Duration(len(expanded)) * time.Second / time.Duration(p.cfg.FPS),
	}

	if p.collab.Store != nil {
		if err := p.collab.Store.Put(ctx, d.Key, d.Data); err != nil {
			return nil, p.fail(fmt.Errorf("render: persist deliverable: %w", err))
		}
	}

	select {
	case p.out <- d:
	case <-ctx.Done():
		// A discarded item leaves no trace: the blob persisted above must
		// not outlive a render the caller was told failed.
		if p.collab.Store != nil {
			if derr := p.collab.Store.Delete(context.WithoutCancel(ctx), d.Key); derr != nil {
				log.Warn("failed to unwind stored deliverable", "key", d.Key, "error", derr)
			}
		}
		return nil, p.fail(ctx.Err())
	}

	if p.met != nil {
		p.met.RendersCompleted.Inc()
		p.met.RenderDuration.Observe(time.Since(start).Seconds())
		p.met.OutputBytes.Observe(float64(len(d.Data)))
	}
	log.Info("render finished", "frames", d.Frames, "bytes", len(d.Data),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return d, nil
}

// fail maps a failure onto the error taxonomy: deadline overruns become
// ErrTimeout, everything else passes through, and the matching counters
// fire exactly once.
func (p *Pipeline) fail(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		if p.met != nil {
			p.met.RendersTimedOut.Inc()
		}
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if p.met != nil {
		p.met.RendersFailed.Inc()
	}
	return err
}

// monotonic clamps progress into [0, 1] and refuses to move backwards, so
// callers can drive UI directly from the raw callback.
func (p *Pipeline) monotonic(progress Progress, tracked *trackedJob) Progress {
	last := 0.0
	return func(f float64) {
		if f < last {
			f = last
		}
		if f > 1 {
			f = 1
		}
		last = f
		tracked.setProgress(f)
		if progress != nil {
			progress(f)
		}
	}
}
