package render

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus is a point-in-time view of one in-flight render, suitable for
// JSON serialization on the status endpoint.
type JobStatus struct {
	ID        uuid.UUID `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	Frames    int       `json:"frames"`
	Progress  float64   `json:"progress"`
}

type trackedJob struct {
	id        uuid.UUID
	startedAt time.Time
	frames    int

	mu       sync.Mutex
	progress float64
}

func (j *trackedJob) setProgress(v float64) {
	j.mu.Lock()
	j.progress = v
	j.mu.Unlock()
}

// Tracker registers in-flight renders by ID so concurrent pipelines can be
// observed from outside. It imposes no lifecycle of its own; the pipeline
// adds a job when a render starts and removes it when the render returns,
// success or not.
type Tracker struct {
	log  *slog.Logger
	mu   sync.RWMutex
	jobs map[uuid.UUID]*trackedJob
}

// NewTracker creates a Tracker. If log is nil, slog.Default() is used.
func NewTracker(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		log:  log.With("component", "job-tracker"),
		jobs: make(map[uuid.UUID]*trackedJob),
	}
}

func (t *Tracker) add(id uuid.UUID, frames int) *trackedJob {
	j := &trackedJob{id: id, startedAt: time.Now(), frames: frames}
	t.mu.Lock()
	t.jobs[id] = j
	t.mu.Unlock()
	t.log.Debug("job registered", "id", id, "frames", frames)
	return j
}

func (t *Tracker) remove(id uuid.UUID) {
	t.mu.Lock()
	delete(t.jobs, id)
	t.mu.Unlock()
	t.log.Debug("job removed", "id", id)
}

// List returns the status of every in-flight render.
func (t *Tracker) List() []JobStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]JobStatus, 0, len(t.jobs))
	for _, j := range t.jobs {
		j.mu.Lock()
		p := j.progress
		j.mu.Unlock()
		out = append(out, JobStatus{
			ID:        j.id,
			StartedAt: j.startedAt,
			Frames:    j.frames,
			Progress:  p,
		})
	}
	return out
}
