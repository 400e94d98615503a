package jobregistry

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// DuplicateJobError is returned by Insert when the job id is already active.
type DuplicateJobError struct {
	ID string
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job already in progress: %s", e.ID)
}

// NotFoundError is returned when a job id is not in the registry.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.ID)
}

// Registry is the shared table of in-flight jobs, keyed by job id. A single
// mutex serializes every read and write; no method performs I/O while
// holding it. It is the sole source of truth for "is this job active".
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Insert adds a job. Fails with DuplicateJobError if the id is taken.
func (r *Registry) Insert(job *Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return &DuplicateJobError{ID: job.ID}
	}
	r.jobs[job.ID] = job
	return nil
}

// Get returns a snapshot of the job, without the process handle.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return j.snapshotLocked(), true
}

// Handle returns the live Job pointer for internal callers that need the
// monitor binding or event sink. The returned Job's mutable fields must
// still only be touched through Registry methods.
func (r *Registry) Handle(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Remove deletes the job from the active table.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// RemoveByName removes every active job sharing the logical name and
// returns their snapshots. Monitor cancellation is the caller's business:
// the registry never blocks on goroutines while holding its lock.
func (r *Registry) RemoveByName(name string) []Snapshot {
	r.mu.Lock()
	removed := make([]Snapshot, 0, 1)
	handles := make([]*Job, 0, 1)
	for id, j := range r.jobs {
		if j.Name == name {
			removed = append(removed, j.snapshotLocked())
			handles = append(handles, j)
			delete(r.jobs, id)
		}
	}
	r.mu.Unlock()

	for _, j := range handles {
		j.CancelMonitor()
	}
	return removed
}

// ListActive returns snapshots of all active jobs, newest first.
func (r *Registry) ListActive() []Snapshot {
	r.mu.Lock()
	out := make([]Snapshot, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.snapshotLocked())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		return out[i].StartTime.After(out[k].StartTime)
	})
	return out
}

// Len returns the number of active jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// SetProgressing marks log activity: status becomes Progressing and the
// progress estimate grows by step, capped at 95. Terminal statuses are
// never overwritten and progress never decreases.
func (r *Registry) SetProgressing(id string, step int) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	if j.Status.Terminal() {
		return j.snapshotLocked(), true
	}
	j.Status = StatusProgressing
	if p := j.Progress + step; p <= 95 {
		j.Progress = p
	} else if j.Progress < 95 {
		j.Progress = 95
	}
	return j.snapshotLocked(), true
}

// CaptureMirrorPID records the secondary process id scraped from the log.
// Only the first capture wins.
func (r *Registry) CaptureMirrorPID(id string, pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.MirrorPID != 0 {
		return false
	}
	j.MirrorPID = pid
	return true
}

// MarkStopped flips a Running/Progressing job to Stopped and stamps the end
// time. Returns false when the job is absent or already terminal.
func (r *Registry) MarkStopped(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status.Terminal() {
		return false
	}
	j.Status = StatusStopped
	j.EndTime = time.Now().UTC()
	return true
}

// Finalize performs the job's single terminal transition. The first caller
// wins; later calls return ok=false so only one code path ever emits the
// terminal record. A terminal status already set (e.g. Stopped) is sticky
// and takes precedence over the proposed status.
func (r *Registry) Finalize(id string, status Status, exitCode int) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.finalized {
		return Snapshot{}, false
	}
	j.finalized = true
	if !j.Status.Terminal() {
		j.Status = status
	}
	if j.Status == StatusCompleted {
		j.Progress = 100
	}
	if j.EndTime.IsZero() {
		j.EndTime = time.Now().UTC()
	}
	snap := j.snapshotLocked()
	snap.ExitCode = exitCode
	return snap, true
}

// Signal delivers sig to the job's primary process.
func (r *Registry) Signal(id string, sig os.Signal) error {
	r.mu.Lock()
	j, ok := r.jobs[id]
	var p *os.Process
	if ok {
		p = j.process
	}
	r.mu.Unlock()

	if !ok {
		return &NotFoundError{ID: id}
	}
	if p == nil {
		return fmt.Errorf("job %s has no process attached", id)
	}
	return p.Signal(sig)
}
