// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The printer scheduling loop.6: a printer that is
// accepting, not stopped, and not already processing a job picks its
// next pending job and runs it through the transform command.

package jobengine

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/OpenPrinting/go-ippd/events"
	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/log"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/OpenPrinting/goipp"
)

// pollInterval bounds how long a printer waits between scheduling
// attempts absent a more specific wake-up.
const pollInterval = 250 * time.Millisecond

// Config carries the scheduler's external dependencies.
type Config struct {
	// CommandFor resolves the transform command for a document format;
	// empty means the document is delivered to the device unmodified.
	CommandFor func(format string) string

	SpoolDir  string
	AllowDirs []string
	LogLevel  string

	// DeviceOutput is not consulted by the scheduler: runJob always
	// writes the transform's stdout to a ".out" file beside the job's
	// spool file (ToFile mode).
	DeviceOutput func(ctx context.Context, printer *store.Printer) (*os.File, error)
}

// Scheduler runs the per-printer scheduling loop for every printer in
// a System.
type Scheduler struct {
	sys *store.System
	ev  *events.Engine
	cfg Config

	mu      sync.Mutex
	wake    map[int]chan struct{}
	started map[int]bool
}

// NewScheduler creates a Scheduler bound to sys.
func NewScheduler(sys *store.System, ev *events.Engine, cfg Config) *Scheduler {
	return &Scheduler{
		sys:     sys,
		ev:      ev,
		cfg:     cfg,
		wake:    map[int]chan struct{}{},
		started: map[int]bool{},
	}
}

// Wake prompts an immediate re-check of printer's queue instead of
// waiting for the next poll tick; called after job creation,
// Release-Job, printer state changes, and job completion.
func (s *Scheduler) Wake(printerID int) {
	s.mu.Lock()
	ch, ok := s.wake[printerID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run starts a scheduling goroutine for every printer currently
// registered, and for every printer registered afterward. It blocks
// until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		s.sys.Printers.Each(func(id int, p *store.Printer) bool {
			s.ensureStarted(ctx, id, p)
			return true
		})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) ensureStarted(ctx context.Context, id int, p *store.Printer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started[id] {
		return
	}
	s.started[id] = true
	ch := make(chan struct{}, 1)
	s.wake[id] = ch
	go s.printerLoop(ctx, p, ch)
}

func (s *Scheduler) printerLoop(ctx context.Context, p *store.Printer, wake chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		s.tryStartNext(ctx, p)

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-ticker.C:
		}
	}
}

// tryStartNext starts the printer's next eligible job, if any, and
// runs it to completion on this goroutine. Only one job runs per
// printer at a time, enforced by checking ProcessingJob under the
// printer's own write lock.
func (s *Scheduler) tryStartNext(ctx context.Context, p *store.Printer) {
	p.Lock()
	if p.IsShutdown || p.StateLocked() == store.PrinterStopped || !p.IsAccepting || p.ProcessingJob != nil {
		p.Unlock()
		return
	}
	job := p.PickNextJob(time.Now())
	if job == nil {
		p.Unlock()
		return
	}
	if err := p.StartProcessing(ctx, job); err != nil {
		p.Unlock()
		return
	}
	if _, err := job.Transition(ctx, "start"); err != nil {
		p.FinishProcessing(ctx)
		p.Unlock()
		return
	}
	p.Unlock()

	prefix := "printer " + p.Name + " job " + strconv.Itoa(job.ID)
	log.Info(ctx, "%s: starting", prefix)

	s.ev.AddEvent(p, job, "JobState", nil)

	outcome := s.runJob(ctx, p, job)

	p.Lock()
	event := "complete"
	switch {
	case job.CancelRequested():
		event = "cancel"
	case outcome != nil:
		event = "abort"
	}
	reached, err := job.Transition(ctx, event)
	if err == nil && reached {
		p.RemoveFromActive(job)
	}
	p.FinishProcessing(ctx)
	p.SortActiveJobs()
	p.Unlock()

	if outcome != nil {
		log.Error(ctx, "%s: transform failed: %v", prefix, outcome)
	} else {
		log.Info(ctx, "%s: completed", prefix)
	}

	s.ev.AddEvent(p, job, "JobState", nil)
	s.Wake(p.ID)
}

// runJob executes the transform for job's document and returns a
// non-nil error if the job should be treated as aborted.
func (s *Scheduler) runJob(ctx context.Context, p *store.Printer, job *store.Job) error {
	job.RLock()
	format, spoolPath := job.Format, job.Filename
	job.RUnlock()

	command := ""
	if s.cfg.CommandFor != nil {
		command = s.cfg.CommandFor(format)
	}
	if command == "" {
		return nil
	}

	p.RLock()
	env := Env{
		ContentType:  format,
		DeviceURI:    deviceURI(p),
		OutputType:   format,
		LogLevel:     s.cfg.LogLevel,
		PrinterAttrs: p.PInfo,
		DeviceAttrs:  p.DevAttrs,
	}
	p.RUnlock()

	job.RLock()
	env.JobAttrs = job.Attrs
	env.DocAttrs = job.DocAttrs
	job.RUnlock()

	environ, err := BuildEnviron(env)
	if err != nil {
		return err
	}

	handler := &schedulerSideband{sched: s, printer: p, job: job}

	outPath := JobSpoolPath(s.cfg.SpoolDir, p.Name, job.ID, format) + ".out"
	outFile, err := SpoolWriter(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	tr, err := Start(ctx, command, spoolPath, environ, ToFile, outFile, handler, false)
	if err != nil {
		return err
	}

	job.Lock()
	job.TransformPID = 0
	job.Unlock()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopWatch:
				return
			case <-ticker.C:
				if job.CancelRequested() {
					tr.MarkStopped()
					tr.Stop()
					return
				}
			}
		}
	}()

	res := tr.Wait()

	if res.Failed() {
		return errTransformFailed
	}
	return nil
}

func deviceURI(p *store.Printer) string {
	if a, ok := p.PInfo.Find("device-uri"); ok && len(a.Values) > 0 {
		return a.Values[0].V.String()
	}
	return ""
}

var errTransformFailed = &transformError{}

type transformError struct{}

func (*transformError) Error() string { return "transform process failed" }

// schedulerSideband adapts a running job/printer pair to the
// SidebandHandler interface consumed by parseSideband.
type schedulerSideband struct {
	sched   *Scheduler
	printer *store.Printer
	job     *store.Job
}

func (h *schedulerSideband) OnPrinterStateAdd(kw string) {
	h.printer.Lock()
	h.printer.StateReasons.Add(kw)
	h.printer.Unlock()
}

func (h *schedulerSideband) OnPrinterStateRemove(kw string) {
	h.printer.Lock()
	h.printer.StateReasons.Remove(kw)
	h.printer.Unlock()
}

func (h *schedulerSideband) OnPrinterStateReplace(kws []string) {
	h.printer.Lock()
	h.printer.StateReasons.Replace(kws...)
	h.printer.Unlock()
}

func (h *schedulerSideband) OnJobStateAdd(kw string) {
	h.job.Lock()
	h.job.StateReasons.Add(kw)
	h.job.Unlock()
}

func (h *schedulerSideband) OnJobStateRemove(kw string) {
	h.job.Lock()
	h.job.StateReasons.Remove(kw)
	h.job.Unlock()
}

func (h *schedulerSideband) OnJobAbort() {
	h.job.SetCancelFlag()
}

func (h *schedulerSideband) OnAttr(name, value string, _ bool) {
	h.job.Lock()
	defer h.job.Unlock()
	switch name {
	case "job-impressions-completed":
		if n, err := strconv.Atoi(value); err == nil {
			h.job.ImpressionsCompleted = n
		}
	default:
		h.job.Attrs.Set(ipp.NewAttribute(name, goipp.TagKeyword, goipp.String(value)))
	}
}

func (h *schedulerSideband) OnLogLine(string) {}
