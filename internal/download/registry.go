package download

import (
	"sync"
	"time"

	"github.com/vibe/vibe-go/internal/monitoring"
	"github.com/vibe/vibe-go/internal/network"
)

// Job is the registry's view of one in-flight acquisition
type Job struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"display_name"`
	Attempt       int       `json:"attempt"`
	Progress      float64   `json:"progress"` // 0..1, resets when a new attempt starts
	BytesReceived int64     `json:"bytes_received"`
	BytesExpected int64     `json:"bytes_expected"` // <= 0 when unknown
	UpdatedAt     time.Time `json:"updated_at"`
}

// Indeterminate reports whether the total size is unknown
func (j Job) Indeterminate() bool {
	return j.BytesExpected <= 0
}

// Registry tracks in-flight jobs in insertion order and publishes the full
// list to subscribers after every change.
type Registry struct {
	mu          sync.Mutex
	jobs        []Job
	subscribers map[int]chan []Job
	nextSubID   int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[int]chan []Job),
	}
}

// Register adds a job with zero progress, or renames it if already present
func (r *Registry) Register(jobID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(jobID); i >= 0 {
		r.jobs[i].DisplayName = displayName
		r.jobs[i].UpdatedAt = time.Now()
	} else {
		r.jobs = append(r.jobs, Job{ID: jobID, DisplayName: displayName, UpdatedAt: time.Now()})
	}

	r.publishLocked()
}

// OnProgress upserts the job's progress for the given attempt.
// An existing entry is replaced in place so list order stays stable.
func (r *Registry) OnProgress(jobID string, attempt int, p network.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := Job{
		ID:            jobID,
		Attempt:       attempt,
		Progress:      p.Fraction,
		BytesReceived: p.BytesReceived,
		BytesExpected: p.BytesExpected,
		UpdatedAt:     time.Now(),
	}

	if i := r.indexOf(jobID); i >= 0 {
		job.DisplayName = r.jobs[i].DisplayName
		r.jobs[i] = job
	} else {
		r.jobs = append(r.jobs, job)
	}

	r.publishLocked()
}

// OnTerminal removes the job. Unknown ids are ignored.
func (r *Registry) OnTerminal(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(jobID)
	if i < 0 {
		return
	}
	r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)

	r.publishLocked()
}

// Snapshot returns a copy of the current job list
func (r *Registry) Snapshot() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Len returns the number of tracked jobs
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Subscribe returns a channel that receives the full job list after every change,
// starting with the current one. A slow subscriber only sees the newest list.
// The returned function unsubscribes and closes the channel.
func (r *Registry) Subscribe() (<-chan []Job, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSubID
	r.nextSubID++

	ch := make(chan []Job, 1)
	ch <- r.snapshotLocked()
	r.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subscribers, id)
			close(ch)
		})
	}
}

func (r *Registry) indexOf(jobID string) int {
	for i := range r.jobs {
		if r.jobs[i].ID == jobID {
			return i
		}
	}
	return -1
}

func (r *Registry) snapshotLocked() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// publishLocked must be called with r.mu held
func (r *Registry) publishLocked() {
	monitoring.SetActiveJobs(len(r.jobs))

	for _, ch := range r.subscribers {
		snapshot := r.snapshotLocked()
		select {
		case ch <- snapshot:
		default:
			// Replace the stale snapshot nobody has read yet
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
