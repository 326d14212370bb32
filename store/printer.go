// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The Printer object.

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Printer states.
const (
	PrinterIdle       = "idle"
	PrinterProcessing = "processing"
	PrinterStopped    = "stopped"
)

// Printer is one logical printer service.
type Printer struct {
	mu sync.RWMutex

	ID       int
	Name     string
	UUID     uuid.UUID
	Resource string // resource path, e.g. "ipp/print/office"

	fsm *fsm.FSM

	StateReasons *ipp.ReasonSet
	IsAccepting  bool
	IsShutdown   bool

	PInfo    *ipp.AttributeSet // static attributes, e.g. printer-info, device-uri
	DevAttrs *ipp.AttributeSet // proxy-supplied capability snapshot

	IdentifyActions []string
	IdentifyMessage string

	ActiveJobs    []*Job // ordered by priority desc, then id asc
	Jobs          []*Job // all jobs, including terminal
	ProcessingJob *Job
	Resources     map[int]bool // allocated resource ids

	PrintGroup string // "" = public
	ProxyGroup string

	StartTime      time.Time
	StateTime      time.Time
	ConfigTime     time.Time

	// HoldNewJobs is the printer-local counterpart of Hold-New-Jobs:
	// every job created while it is set transitions straight to held.
	HoldNewJobs bool

	Devices map[string]*Device // output-device-uuid -> Device
}

// NewPrinter creates a Printer in the idle, accepting state.
func NewPrinter(id int, name string) *Printer {
	now := time.Now()
	p := &Printer{
		ID:           id,
		Name:         name,
		UUID:         uuid.New(),
		Resource:     "ipp/print/" + name,
		StateReasons: ipp.NewReasonSet(),
		IsAccepting:  true,
		PInfo:        ipp.NewAttributeSet(ipp.GroupPrinter),
		DevAttrs:     ipp.NewAttributeSet(ipp.GroupPrinter),
		Resources:    map[int]bool{},
		Devices:      map[string]*Device{},
		StartTime:    now,
		StateTime:    now,
		ConfigTime:   now,
	}
	p.fsm = fsm.NewFSM(
		PrinterIdle,
		fsm.Events{
			{Name: "job-start", Src: []string{PrinterIdle}, Dst: PrinterProcessing},
			{Name: "job-done", Src: []string{PrinterProcessing}, Dst: PrinterIdle},
			{Name: "stop", Src: []string{PrinterIdle, PrinterProcessing}, Dst: PrinterStopped},
			{Name: "resume", Src: []string{PrinterStopped}, Dst: PrinterIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				p.StateTime = time.Now()
			},
		},
	)
	return p
}

// State returns the printer's current IPP state keyword.
func (p *Printer) State() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fsm.Current()
}

// StateLocked returns the printer's current IPP state keyword. The
// caller must already hold p's lock (read or write); unlike State, it
// does not take the lock itself, so it is safe to call from code that
// is already inside a Lock/Unlock or RLock/RUnlock pair.
func (p *Printer) StateLocked() string {
	return p.fsm.Current()
}

// Lock/Unlock/RLock/RUnlock expose the printer's reader-writer lock to
// handlers, which must always take it before touching any field above.
func (p *Printer) Lock()    { p.mu.Lock() }
func (p *Printer) Unlock()  { p.mu.Unlock() }
func (p *Printer) RLock()   { p.mu.RLock() }
func (p *Printer) RUnlock() { p.mu.RUnlock() }

// transition drives the printer FSM. Caller must hold the write lock.
func (p *Printer) transition(ctx context.Context, event string) error {
	return p.fsm.Event(ctx, event)
}

// StartProcessing transitions idle -> processing and records job as
// the currently-processing job. Caller must hold the write lock.
func (p *Printer) StartProcessing(ctx context.Context, job *Job) error {
	if err := p.transition(ctx, "job-start"); err != nil {
		return err
	}
	p.ProcessingJob = job
	return nil
}

// FinishProcessing transitions processing -> idle and clears
// ProcessingJob. Caller must hold the write lock.
func (p *Printer) FinishProcessing(ctx context.Context) error {
	if err := p.transition(ctx, "job-done"); err != nil {
		return err
	}
	p.ProcessingJob = nil
	return nil
}

// Stop transitions the printer to stopped. Caller must hold the write lock.
func (p *Printer) Stop(ctx context.Context) error {
	return p.transition(ctx, "stop")
}

// Resume transitions a stopped printer back to idle. Caller must hold
// the write lock.
func (p *Printer) Resume(ctx context.Context) error {
	return p.transition(ctx, "resume")
}

// PickNextJob returns the highest-priority pending, unheld,
// due-to-run job, or nil if none qualifies.6's
// scheduler rule. Caller must hold at least the printer read lock;
// the returned Job's own lock is not taken.
func (p *Printer) PickNextJob(now time.Time) *Job {
	var best *Job
	for _, j := range p.ActiveJobs {
		j.mu.RLock()
		state := j.fsm.Current()
		holdUntil := j.HoldUntil
		priority := j.Priority
		id := j.ID
		j.mu.RUnlock()

		if state != JobPending {
			continue
		}
		if !holdUntil.IsZero() && holdUntil.After(now) {
			continue
		}
		if best == nil {
			best = j
			continue
		}
		best.mu.RLock()
		bestPriority, bestID := best.Priority, best.ID
		best.mu.RUnlock()
		if priority > bestPriority || (priority == bestPriority && id < bestID) {
			best = j
		}
	}
	return best
}

// RemoveFromActive removes job from ActiveJobs. This is the single
// post-transition hook: every terminal transition of a Job must route
// through here, and nowhere else, so ActiveJobs always holds exactly
// the non-terminal jobs with at most one processing at a time. Caller
// must hold the printer write lock.
func (p *Printer) RemoveFromActive(job *Job) {
	out := p.ActiveJobs[:0]
	for _, j := range p.ActiveJobs {
		if j != job {
			out = append(out, j)
		}
	}
	p.ActiveJobs = out
	if p.ProcessingJob == job {
		p.ProcessingJob = nil
	}
}

// SortActiveJobs reorders ActiveJobs by priority desc, then id asc,
// matching the scheduler order. Caller must hold the printer write lock.
func (p *Printer) SortActiveJobs() {
	sort.SliceStable(p.ActiveJobs, func(i, j int) bool {
		a, b := p.ActiveJobs[i], p.ActiveJobs[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
}
