// Package compaction holds the value types shared by every coordinator
// component: the queue/priority key tablet servers advertise into, the
// tablet server identity, the job handed to a compactor, and the
// in-flight RunningCompaction record with its small state machine.
package compaction

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownCompactionID is returned by operations that reference an
// externalCompactionId not present in the RunningTable.
var ErrUnknownCompactionID = errors.New("unknown compaction id")

// QueueAndPriority is the key tablet servers advertise work under.
// Priority is larger-is-more-urgent. Queue is expected to have been
// interned by the caller (see pkg/jobindex) so that equal queue names
// compare cheaply.
type QueueAndPriority struct {
	Queue    string
	Priority int64
}

// TabletServerID is the opaque identity of a live tablet server. Two
// IDs are equal only if host, port, and session all match; a restarted
// tablet server gets a new session and is therefore a distinct identity
// even if host:port is reused.
type TabletServerID struct {
	Host    string
	Port    int
	Session string
}

func (t TabletServerID) String() string {
	return fmt.Sprintf("%s:%d#%s", t.Host, t.Port, t.Session)
}

// TabletExtent identifies the tablet a job's files belong to.
type TabletExtent struct {
	TableID    string
	EndRow     string
	PrevEndRow string
}

// Job is the concrete unit of work a tablet server hands to a
// compactor via ReserveCompactionJob. An empty Job (ExternalCompactionID
// == "") is the sentinel for "no job available".
type Job struct {
	ExternalCompactionID string
	Queue                string
	Priority             int64
	Files                []string
	Extent               TabletExtent
}

// Empty reports whether j is the "no job" sentinel.
func (j Job) Empty() bool {
	return j.ExternalCompactionID == ""
}

// CompactionState is one of the states a compactor reports via
// UpdateCompactionStatus.
type CompactionState string

const (
	StateStarted    CompactionState = "STARTED"
	StateInProgress CompactionState = "IN_PROGRESS"
	StateSucceeded  CompactionState = "SUCCEEDED"
	StateFailed     CompactionState = "FAILED"
	StateCancelled  CompactionState = "CANCELLED"
)

// StatusUpdate is one entry in a RunningCompaction's update log. Updates
// are appended in arrival order; Timestamp is informational only.
type StatusUpdate struct {
	Timestamp time.Time
	State     CompactionState
	Message   string
}

// Stats are the final counters a compactor reports on completion.
type Stats struct {
	FileSize       int64
	EntriesWritten int64
}

// Phase is the coordinator-side lifecycle phase of a RunningCompaction.
// It tracks progress for diagnostics; removal from the RunningTable is
// what actually retires an entry.
type Phase string

const (
	PhaseReserved   Phase = "RESERVED"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseCancelling Phase = "CANCELLING"
)

// RunningCompaction is the per-in-flight-job record held by the
// RunningTable. All mutation goes through its own mutex so the table
// itself only needs to serialize insert/remove, not field updates.
type RunningCompaction struct {
	ExternalCompactionID string
	Job                  Job
	CompactorAddress     string
	TServer              TabletServerID

	mu        sync.Mutex
	phase     Phase
	updates   []StatusUpdate
	stats     *Stats
	completed bool
}

// NewRunningCompaction builds a RESERVED entry for a freshly reserved job.
func NewRunningCompaction(job Job, compactorAddress string, tserver TabletServerID) *RunningCompaction {
	return &RunningCompaction{
		ExternalCompactionID: job.ExternalCompactionID,
		Job:                  job,
		CompactorAddress:     compactorAddress,
		TServer:              tserver,
		phase:                PhaseReserved,
	}
}

// AddUpdate appends a status update, advancing the phase to IN_PROGRESS
// on the first update after RESERVED.
func (r *RunningCompaction) AddUpdate(state CompactionState, message string, ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, StatusUpdate{Timestamp: ts, State: state, Message: message})
	if r.phase == PhaseReserved {
		r.phase = PhaseInProgress
	}
}

// Updates returns a copy of the recorded status updates.
func (r *RunningCompaction) Updates() []StatusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StatusUpdate, len(r.updates))
	copy(out, r.updates)
	return out
}

// SetStats records the final stats and marks the entry completed.
func (r *RunningCompaction) SetStats(stats Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = &stats
	r.completed = true
	r.phase = PhaseCompleted
}

// Stats returns the recorded stats, or nil if not yet completed.
func (r *RunningCompaction) Stats() *Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Completed reports whether CompactionCompleted has recorded stats.
func (r *RunningCompaction) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// SetCancelling marks the entry as best-effort cancelling.
func (r *RunningCompaction) SetCancelling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.completed {
		r.phase = PhaseCancelling
	}
}

// Phase returns the current lifecycle phase.
func (r *RunningCompaction) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}
