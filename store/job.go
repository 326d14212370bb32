// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The Job object and its lifecycle state machine.6.

package store

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Job states.6.
const (
	JobPending    = "pending"
	JobHeld       = "held"
	JobProcessing = "processing"
	JobStopped    = "stopped"
	JobCanceled   = "canceled"
	JobAborted    = "aborted"
	JobCompleted  = "completed"
)

// TerminalStates lists the terminal job states: once reached, no
// further observable mutation of the Job occurs.
var TerminalStates = map[string]bool{
	JobCanceled:  true,
	JobAborted:   true,
	JobCompleted: true,
}

// Job is a single print job, owned by exactly one Printer.
type Job struct {
	mu sync.RWMutex

	ID      int
	Printer *Printer

	fsm *fsm.FSM

	StateReasons *ipp.ReasonSet

	Attrs    *ipp.AttributeSet // job-level IPP attributes
	DocAttrs *ipp.AttributeSet // document-level IPP attributes

	Format   string // MIME type
	Filename string // spool file path
	file     *os.File

	Priority  int
	Username  string
	DevUUID   uuid.UUID
	HasDev    bool

	DevState            int
	DevStateReasons      *ipp.ReasonSet
	DevStateMessage      string

	Impressions          int
	ImpressionsCompleted int

	Created    time.Time
	Processing time.Time
	Completed  time.Time

	HoldUntil time.Time

	cancel bool

	TransformPID int
}

// NewJob creates a Job in the pending state, owned by p.
func NewJob(id int, p *Printer, username string) *Job {
	j := &Job{
		ID:              id,
		Printer:         p,
		StateReasons:    ipp.NewReasonSet("job-incoming"),
		Attrs:           ipp.NewAttributeSet(ipp.GroupJob),
		DocAttrs:        ipp.NewAttributeSet(ipp.GroupJob),
		Priority:        50,
		Username:        username,
		DevStateReasons: ipp.NewReasonSet(),
		Created:         time.Now(),
	}
	j.fsm = fsm.NewFSM(
		JobPending,
		fsm.Events{
			{Name: "hold", Src: []string{JobPending}, Dst: JobHeld},
			{Name: "release", Src: []string{JobHeld}, Dst: JobPending},
			{Name: "start", Src: []string{JobPending}, Dst: JobProcessing},
			{Name: "stop", Src: []string{JobProcessing}, Dst: JobStopped},
			{Name: "resume", Src: []string{JobStopped}, Dst: JobProcessing},
			{Name: "complete", Src: []string{JobProcessing}, Dst: JobCompleted},
			{Name: "cancel", Src: []string{JobPending, JobHeld, JobProcessing, JobStopped}, Dst: JobCanceled},
			{Name: "abort", Src: []string{JobPending, JobHeld, JobProcessing, JobStopped}, Dst: JobAborted},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				j.onEnterState(e.Dst)
			},
		},
	)
	return j
}

// onEnterState updates the Job's own timestamps. It deliberately does
// NOT touch the owning Printer: it runs with the Job write lock held,
// and the locking order is Printer -> Job, never the reverse. The
// single post-transition hook that removes a terminal job from its
// printer's ActiveJobs and clears ProcessingJob lives in Transition's
// caller instead, see Transition's doc comment.
func (j *Job) onEnterState(dst string) {
	switch dst {
	case JobProcessing:
		j.Processing = time.Now()
	case JobCompleted, JobCanceled, JobAborted:
		j.Completed = time.Now()
	}
}

// Lock/Unlock/RLock/RUnlock expose the job's reader-writer lock.
func (j *Job) Lock()    { j.mu.Lock() }
func (j *Job) Unlock()  { j.mu.Unlock() }
func (j *Job) RLock()   { j.mu.RLock() }
func (j *Job) RUnlock() { j.mu.RUnlock() }

// State returns the job's current IPP job-state keyword. Caller must
// not already hold the job's own lock (State takes it internally).
func (j *Job) State() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.fsm.Current()
}

// StateLocked returns the job's current IPP job-state keyword. The
// caller must already hold j's lock (read or write); unlike State, it
// does not take the lock itself, so it is safe to call from code that
// is already inside a Lock/Unlock or RLock/RUnlock pair.
func (j *Job) StateLocked() string {
	return j.fsm.Current()
}

// IsTerminal reports whether the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return TerminalStates[j.State()]
}

// Transition drives the job's FSM with the given event name and
// reports whether the job landed in a terminal state. Callers MUST
// already hold the owning Printer's write lock (locking order Printer
// -> Job is never violated), and MUST call
// Printer.RemoveFromActive(job) immediately afterward when reached is
// true - that call is the single post-transition hook that keeps
// ActiveJobs holding exactly the non-terminal jobs, with at most one
// processing job.
func (j *Job) Transition(ctx context.Context, event string) (reached bool, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.fsm.Event(ctx, event); err != nil {
		return false, err
	}
	return TerminalStates[j.fsm.Current()], nil
}

// SetCancelFlag marks the job for cancellation; used when a
// processing job is asked to cancel but must wait for its subprocess
// to be reaped before the terminal transition is applied.
func (j *Job) SetCancelFlag() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = true
}

// CancelRequested reports whether SetCancelFlag was called.
func (j *Job) CancelRequested() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.cancel
}

// JobStateCode maps an IPP job-state keyword to its wire enum value
// (RFC 8011 §5.3.7), mirroring the CUPS PENDING..COMPLETED=3..9 scheme.
func JobStateCode(state string) int {
	switch state {
	case JobPending:
		return 3
	case JobHeld:
		return 4
	case JobProcessing:
		return 5
	case JobStopped:
		return 6
	case JobCanceled:
		return 7
	case JobAborted:
		return 8
	case JobCompleted:
		return 9
	}
	return 0
}
