// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The event/subscription engine: fan-out of events to interested
// subscriptions and the bounded-wait pull delivery of Get-Notifications,
//.7.

package events

import (
	"context"
	"sync"
	"time"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/store"
)

// MaxWait is the bound on a single Get-Notifications wait iteration,
//.7/§5.
const MaxWait = 30 * time.Second

// Engine fans events out to every matching subscription and wakes
// blocked Get-Notifications callers.
type Engine struct {
	sys *store.System

	mu   sync.Mutex
	cond *sync.Cond
}

// NewEngine creates an Engine bound to sys.
func NewEngine(sys *store.System) *Engine {
	e := &Engine{sys: sys}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// AddEvent enqueues action into every subscription whose Events set
// intersects it, attaching attrs as the event's payload. It then
// broadcasts to every Get-Notifications call blocked in Wait.
//
// printer/job/resource pin down which subscriptions are eligible: a
// system-owned subscription receives everything; a printer-owned one
// only events for that printer (or its jobs); a job-owned one only
// events for that job.
func (e *Engine) AddEvent(printer *store.Printer, job *store.Job,
	action string, attrs *ipp.AttributeSet) {

	now := time.Now()
	e.sys.Subscriptions.Each(func(_ int, sub *store.Subscription) bool {
		sub.RLock()
		owner, subPrinter, subJob := sub.Owner, sub.Printer, sub.Job
		sub.RUnlock()

		switch owner {
		case store.OwnerJob:
			if job == nil || subJob != job {
				return true
			}
		case store.OwnerPrinter:
			if printer == nil || subPrinter != printer {
				return true
			}
		}

		if !sub.Matches(action) {
			return true
		}

		sub.Lock()
		sub.AddEvent(action, attrs, now)
		sub.Unlock()
		return true
	})

	e.mu.Lock()
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Wait blocks until AddEvent is next called, ctx is done, or MaxWait
// elapses, whichever comes first.
func (e *Engine) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		timer := time.AfterFunc(MaxWait, func() {
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		})
		e.cond.Wait()
		timer.Stop()
		e.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Poll gathers every event with Seq >= since for subscription sub,
// which must not be nil.
func Poll(sub *store.Subscription, since int) []store.Event {
	sub.RLock()
	defer sub.RUnlock()
	return sub.EventsSince(since)
}
