package trim

import (
	"sync"

	"github.com/cuttothechase/cttc-server/internal/ffmpeg"
)

// Registry maps job ids to their currently executing external process.
// Entries are written only by the single worker owning the job; the map
// itself is mutex-guarded because jobs run concurrently and cancellation
// arrives from transport goroutines.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*jobEntry
}

type jobEntry struct {
	proc      ffmpeg.Handle
	cancelled bool
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*jobEntry)}
}

// Cancel terminates the registered process for the job, if one is live, and
// returns true. An absent job id or a job with no running process returns
// false with no action.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	entry := r.jobs[jobID]
	if entry == nil || entry.proc == nil {
		r.mu.Unlock()
		return false
	}
	entry.cancelled = true
	proc := entry.proc
	r.mu.Unlock()

	proc.Terminate()
	return true
}

// begin creates the job's entry for the duration of a run.
func (r *Registry) begin(jobID string) {
	r.mu.Lock()
	r.jobs[jobID] = &jobEntry{}
	r.mu.Unlock()
}

// end drops the job's entry on any terminal transition.
func (r *Registry) end(jobID string) {
	r.mu.Lock()
	delete(r.jobs, jobID)
	r.mu.Unlock()
}

// setProcess registers the external process about to be awaited.
func (r *Registry) setProcess(jobID string, h ffmpeg.Handle) {
	r.mu.Lock()
	if entry := r.jobs[jobID]; entry != nil {
		entry.proc = h
	}
	r.mu.Unlock()
}

// clearProcess deregisters the process after it has been awaited.
func (r *Registry) clearProcess(jobID string) {
	r.mu.Lock()
	if entry := r.jobs[jobID]; entry != nil {
		entry.proc = nil
	}
	r.mu.Unlock()
}

// wasCancelled reports whether Cancel fired for this job during its run.
func (r *Registry) wasCancelled(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.jobs[jobID]
	return entry != nil && entry.cancelled
}
