// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Subscription fan-out and bounded-wait delivery tests.

package events

import (
	"context"
	"testing"
	"time"

	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/go-ippd/store"
	"github.com/stretchr/testify/require"
)

func newTestSub(sys *store.System, owner store.SubscriptionOwnerKind, printer *store.Printer, job *store.Job, actions ...string) *store.Subscription {
	sub := store.NewSubscription(sys.Subscriptions.Len()+1, 4)
	sub.Owner = owner
	sub.Printer = printer
	sub.Job = job
	sub.Events = map[string]bool{}
	for _, a := range actions {
		sub.Events[a] = true
	}
	sys.Subscriptions.Put(sub.ID, sub)
	return sub
}

// TestAddEventDeliversOnlyToMatchingSubscriptions checks that a
// printer-owned subscription must not receive another printer's
// events, and that event filtering by action must hold.
func TestAddEventDeliversOnlyToMatchingSubscriptions(t *testing.T) {
	sys := store.NewSystem()
	p1 := sys.CreatePrinter("one")
	p2 := sys.CreatePrinter("two")

	subAll := newTestSub(sys, store.OwnerSystem, nil, nil, "all")
	subP1 := newTestSub(sys, store.OwnerPrinter, p1, nil, "printer-state-changed")
	subP2Wrong := newTestSub(sys, store.OwnerPrinter, p2, nil, "printer-state-changed")

	e := NewEngine(sys)
	e.AddEvent(p1, nil, "printer-state-changed", ipp.NewAttributeSet(ipp.GroupEvent))

	subAll.RLock()
	_, lastAll := subAll.SequenceBounds()
	subAll.RUnlock()
	require.Equal(t, 1, lastAll)

	subP1.RLock()
	_, lastP1 := subP1.SequenceBounds()
	subP1.RUnlock()
	require.Equal(t, 1, lastP1)

	subP2Wrong.RLock()
	_, lastP2 := subP2Wrong.SequenceBounds()
	subP2Wrong.RUnlock()
	require.Equal(t, 0, lastP2, "subscription owned by a different printer must not receive the event")
}

// TestAddEventJobOwnedSubscriptionFiltersByJob checks job-owned
// subscriptions ignore events for any other job, even on the same
// printer.
func TestAddEventJobOwnedSubscriptionFiltersByJob(t *testing.T) {
	sys := store.NewSystem()
	p := sys.CreatePrinter("office")
	job1 := store.NewJob(1, p, "alice")
	job2 := store.NewJob(2, p, "bob")

	subJob1 := newTestSub(sys, store.OwnerJob, p, job1, "job-state-changed")

	e := NewEngine(sys)
	e.AddEvent(p, job2, "job-state-changed", ipp.NewAttributeSet(ipp.GroupEvent))

	subJob1.RLock()
	_, last := subJob1.SequenceBounds()
	subJob1.RUnlock()
	require.Equal(t, 0, last, "job-owned subscription must not see another job's event")

	e.AddEvent(p, job1, "job-state-changed", ipp.NewAttributeSet(ipp.GroupEvent))
	subJob1.RLock()
	_, last = subJob1.SequenceBounds()
	subJob1.RUnlock()
	require.Equal(t, 1, last)
}

// TestWaitReturnsOnBroadcast checks Wait unblocks promptly when AddEvent
// fires, rather than sleeping out the full MaxWait bound.
func TestWaitReturnsOnBroadcast(t *testing.T) {
	sys := store.NewSystem()
	p := sys.CreatePrinter("office")
	newTestSub(sys, store.OwnerSystem, nil, nil, "all")

	e := NewEngine(sys)

	done := make(chan struct{})
	go func() {
		e.Wait(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	e.AddEvent(p, nil, "printer-state-changed", ipp.NewAttributeSet(ipp.GroupEvent))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after AddEvent broadcast")
	}
}

// TestWaitReturnsOnContextCancel checks Wait also unblocks when the
// caller's context is canceled, without waiting for MaxWait.
func TestWaitReturnsOnContextCancel(t *testing.T) {
	sys := store.NewSystem()
	e := NewEngine(sys)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Wait(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}
}

// TestPollReturnsEventsSinceSequence checks Poll surfaces only events
// at or after the requested sequence number.
func TestPollReturnsEventsSinceSequence(t *testing.T) {
	sys := store.NewSystem()
	p := sys.CreatePrinter("office")
	sub := newTestSub(sys, store.OwnerSystem, nil, nil, "all")

	e := NewEngine(sys)
	e.AddEvent(p, nil, "printer-state-changed", ipp.NewAttributeSet(ipp.GroupEvent))
	e.AddEvent(p, nil, "printer-state-changed", ipp.NewAttributeSet(ipp.GroupEvent))
	e.AddEvent(p, nil, "printer-state-changed", ipp.NewAttributeSet(ipp.GroupEvent))

	evs := Poll(sub, 2)
	require.Len(t, evs, 2)
	require.Equal(t, 2, evs[0].Seq)
	require.Equal(t, 3, evs[1].Seq)
}

// TestSubscriptionRingEvictsOldest checks the ring buffer invariant
// lastSeq-firstSeq+1 == len(ring) holds once the ring overflows its
// capacity.
func TestSubscriptionRingEvictsOldest(t *testing.T) {
	sys := store.NewSystem()
	p := sys.CreatePrinter("office")
	sub := store.NewSubscription(1, 2)
	sub.Owner = store.OwnerSystem
	sub.Events = map[string]bool{"all": true}
	sys.Subscriptions.Put(sub.ID, sub)

	e := NewEngine(sys)
	for i := 0; i < 5; i++ {
		e.AddEvent(p, nil, "printer-state-changed", ipp.NewAttributeSet(ipp.GroupEvent))
	}

	sub.RLock()
	first, last := sub.SequenceBounds()
	evs := sub.EventsSince(0)
	sub.RUnlock()

	require.Equal(t, 5, last)
	require.Equal(t, 4, first, "ring of capacity 2 should retain only the last two sequence numbers")
	require.Len(t, evs, 2)
}
