// Package metrics defines the Prometheus instrumentation for the render
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the pipeline updates. Construct once per
// process with New.
type Metrics struct {
	RendersStarted   prometheus.Counter
	RendersCompleted prometheus.Counter
	RendersFailed    prometheus.Counter
	RendersTimedOut  prometheus.Counter
	ActiveRenders    prometheus.Gauge

	FramesCaptured     prometheus.Counter
	MuxRetries         prometheus.Counter
	AudioSubstitutions prometheus.Counter

	RenderDuration prometheus.Histogram
	OutputBytes    prometheus.Histogram
}

// New creates and registers all collectors with reg. Passing nil registers
// against the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RendersStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "smear_renders_started_total",
			Help: "Render jobs accepted by the pipeline",
		}),
		RendersCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "smear_renders_completed_total",
			Help: "Render jobs that produced a muxed deliverable",
		}),
		RendersFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "smear_renders_failed_total",
			Help: "Render jobs aborted by a fatal error",
		}),
		RendersTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "smear_renders_timed_out_total",
			Help: "Render jobs discarded for exceeding the per-item deadline",
		}),
		ActiveRenders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "smear_active_renders",
			Help: "Render jobs currently in flight",
		}),
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "smear_frames_captured_total",
			Help: "Video frames decoded, drawn, and captured",
		}),
		MuxRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "smear_mux_retries_total",
			Help: "Mux invocations that fell back to the alternative stream mapping",
		}),
		AudioSubstitutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "smear_audio_substitutions_total",
			Help: "Sample segments degraded to silence after a fetch failure",
		}),
		RenderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "smear_render_duration_seconds",
			Help:    "Wall time per completed render",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		OutputBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "smear_output_bytes",
			Help:    "Size of finished deliverables",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10),
		}),
	}
}
